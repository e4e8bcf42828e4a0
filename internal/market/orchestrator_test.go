package market

import (
	"bytes"
	"context"
	"io"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/predictfi/gomarket/internal/contracts"
	"github.com/predictfi/gomarket/internal/proxy"
	"github.com/predictfi/gomarket/internal/txn"
	"github.com/predictfi/gomarket/pkg/ctf"
)

var (
	userAddr     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	proxyAddr    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	marketAddr   = common.HexToAddress("0x3333333333333333333333333333333333333333")
	tokenAddr    = common.HexToAddress("0x4444444444444444444444444444444444444444")
	registryAddr = common.HexToAddress("0x5555555555555555555555555555555555555555")
	factoryAddr  = common.HexToAddress("0x6666666666666666666666666666666666666666")
	wrappedAddr  = common.HexToAddress("0x7777777777777777777777777777777777777777")
	oracleAddr   = common.HexToAddress("0x8888888888888888888888888888888888888888")
	realitioAddr = common.HexToAddress("0x9999999999999999999999999999999999999999")
)

type balanceKey struct {
	account  common.Address
	position string
}

// fakeGateway answers queries from fixed values and counts reads so tests can
// assert the query phase has no hidden state.
type fakeGateway struct {
	allowance       *big.Int
	approvedForAll  bool
	conditionExists bool
	slotCount       uint
	resolved        bool
	winning         uint
	buyQuote        *big.Int
	sellQuote       *big.Int
	fees            *big.Int
	totalSupply     *big.Int
	balances        map[balanceKey]*big.Int
	hasCode         bool
	reads           int
}

func (f *fakeGateway) Allowance(context.Context, common.Address, common.Address, common.Address) (*big.Int, error) {
	f.reads++
	return f.allowance, nil
}

func (f *fakeGateway) IsApprovedForAll(context.Context, common.Address, common.Address) (bool, error) {
	f.reads++
	return f.approvedForAll, nil
}

func (f *fakeGateway) ConditionExists(context.Context, common.Hash) (bool, error) {
	f.reads++
	return f.conditionExists, nil
}

func (f *fakeGateway) ConditionOutcomeSlotCount(context.Context, common.Hash) (uint, error) {
	f.reads++
	if f.slotCount == 0 {
		return 0, ErrNotFound
	}
	return f.slotCount, nil
}

func (f *fakeGateway) IsConditionResolved(context.Context, common.Hash) (bool, error) {
	f.reads++
	return f.resolved, nil
}

func (f *fakeGateway) WinningOutcome(context.Context, common.Hash, uint) (uint, error) {
	f.reads++
	if !f.resolved {
		return 0, ErrNotFound
	}
	return f.winning, nil
}

func (f *fakeGateway) CalcBuyAmount(context.Context, common.Address, *big.Int, uint) (*big.Int, error) {
	f.reads++
	return f.buyQuote, nil
}

func (f *fakeGateway) CalcSellAmount(context.Context, common.Address, *big.Int, uint) (*big.Int, error) {
	f.reads++
	return f.sellQuote, nil
}

func (f *fakeGateway) FeesWithdrawableBy(context.Context, common.Address, common.Address) (*big.Int, error) {
	f.reads++
	return f.fees, nil
}

func (f *fakeGateway) PoolTotalSupply(context.Context, common.Address) (*big.Int, error) {
	f.reads++
	return f.totalSupply, nil
}

func (f *fakeGateway) PoolShareBalance(context.Context, common.Address, common.Address) (*big.Int, error) {
	f.reads++
	return big.NewInt(0), nil
}

func (f *fakeGateway) OutcomeTokenBalance(_ context.Context, account common.Address, positionID *big.Int) (*big.Int, error) {
	f.reads++
	if bal, ok := f.balances[balanceKey{account, positionID.String()}]; ok {
		return bal, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeGateway) MarketCollateralToken(context.Context, common.Address) (common.Address, error) {
	f.reads++
	return tokenAddr, nil
}

func (f *fakeGateway) MarketConditionID(context.Context, common.Address) (common.Hash, error) {
	f.reads++
	return common.HexToHash("0xc0ffee"), nil
}

func (f *fakeGateway) HasCode(context.Context, common.Address) (bool, error) {
	f.reads++
	return f.hasCode, nil
}

// fakeExecutor records submitted batches and confirms them immediately.
type fakeExecutor struct {
	batches []*txn.Batch
}

func (f *fakeExecutor) Execute(_ context.Context, batch *txn.Batch) (common.Hash, error) {
	f.batches = append(f.batches, batch)
	return common.HexToHash("0xabcdef"), nil
}

func (f *fakeExecutor) AwaitConfirmation(_ context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	return &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, TxHash: txHash}, nil
}

func newTestOrchestrator(gw StateQuery, exec txn.Executor) *Orchestrator {
	log := logrus.New()
	log.SetOutput(io.Discard)
	account := proxy.NewAccount(nil, proxyAddr, common.Address{})
	addrs := Addresses{
		ConditionalTokens:  registryAddr,
		WrappedNative:      wrappedAddr,
		MarketMakerFactory: factoryAddr,
		Oracle:             oracleAddr,
		Realitio:           realitioAddr,
		MarketInitCodeHash: common.HexToHash("0x01"),
	}
	return NewOrchestrator(gw, exec, account, addrs, big.NewInt(137), userAddr, 100, logrus.NewEntry(log))
}

func testMarket() MarketRef {
	return MarketRef{
		Address:          marketAddr,
		Collateral:       tokenAddr,
		ConditionID:      common.HexToHash("0xc0ffee"),
		OutcomeSlotCount: 2,
	}
}

func hasSelector(batch *txn.Batch, selector []byte) bool {
	for _, c := range batch.Calls() {
		if len(c.Data) >= 4 && bytes.Equal(c.Data[:4], selector) {
			return true
		}
	}
	return false
}

var (
	selApprove      = []byte{0x09, 0x5e, 0xa7, 0xb3}
	selTransfer     = []byte{0xa9, 0x05, 0x9c, 0xbb}
	selTransferFrom = []byte{0x23, 0xb8, 0x72, 0xdd}
	selDeposit      = []byte{0xd0, 0xe3, 0x0d, 0xb0}
)

func TestBuyBatchShape(t *testing.T) {
	tests := []struct {
		name      string
		allowance *big.Int
		wantCalls int
	}{
		{"sufficient allowance skips approve", big.NewInt(1000), 2},
		{"insufficient allowance prepends approve", big.NewInt(0), 3},
		{"exact allowance skips approve", big.NewInt(100), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{allowance: tt.allowance, buyQuote: big.NewInt(95)}
			exec := &fakeExecutor{}
			o := newTestOrchestrator(gw, exec)

			res, err := o.Buy(context.Background(), BuyParams{
				Market: testMarket(), Amount: big.NewInt(100), OutcomeIndex: 1,
			})
			require.NoError(t, err)
			require.NotNil(t, res.Receipt)
			require.Len(t, exec.batches, 1)

			calls := exec.batches[0].Calls()
			require.Len(t, calls, tt.wantCalls)
			if tt.wantCalls == 3 {
				require.Equal(t, selApprove, calls[0].Data[:4])
			}
			// transfer then buy, always last two, in that order
			require.Equal(t, selTransferFrom, calls[len(calls)-2].Data[:4])
			require.Equal(t, marketAddr, calls[len(calls)-1].To)
		})
	}
}

func TestBuyEndToEnd(t *testing.T) {
	gw := &fakeGateway{allowance: big.NewInt(0), buyQuote: big.NewInt(95)}
	exec := &fakeExecutor{}
	o := newTestOrchestrator(gw, exec)

	res, err := o.Buy(context.Background(), BuyParams{
		Market: testMarket(), Amount: big.NewInt(100), OutcomeIndex: 1,
	})
	require.NoError(t, err)
	require.Equal(t, ethtypes.ReceiptStatusSuccessful, res.Receipt.Status)

	calls := exec.batches[0].Calls()
	require.Len(t, calls, 3)

	wantApprove, err := contracts.EncodeApprove(tokenAddr, marketAddr, contracts.MaxUint256)
	require.NoError(t, err)
	require.Equal(t, wantApprove.Data, calls[0].Data)

	wantTransfer, err := contracts.EncodeTransferFrom(tokenAddr, userAddr, proxyAddr, big.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, wantTransfer.Data, calls[1].Data)

	// minOut = quote shaved by 100 bps: 95 * 9900 / 10000 = 94
	wantBuy, err := contracts.EncodeBuy(marketAddr, big.NewInt(100), 1, big.NewInt(94))
	require.NoError(t, err)
	require.Equal(t, wantBuy.Data, calls[2].Data)

	for _, c := range calls {
		require.Zero(t, c.NativeValue().Sign(), "non-native collateral must attach no value")
	}
}

func TestSellBatchShape(t *testing.T) {
	t.Run("approval missing", func(t *testing.T) {
		gw := &fakeGateway{approvedForAll: false, sellQuote: big.NewInt(110)}
		exec := &fakeExecutor{}
		o := newTestOrchestrator(gw, exec)

		_, err := o.Sell(context.Background(), SellParams{
			Market: testMarket(), ReturnAmount: big.NewInt(100), OutcomeIndex: 0,
		})
		require.NoError(t, err)

		calls := exec.batches[0].Calls()
		require.Len(t, calls, 3)
		require.Equal(t, registryAddr, calls[0].To)
		require.Equal(t, marketAddr, calls[1].To)
		require.Equal(t, selTransfer, calls[2].Data[:4])
	})

	t.Run("approval present", func(t *testing.T) {
		gw := &fakeGateway{approvedForAll: true, sellQuote: big.NewInt(110)}
		exec := &fakeExecutor{}
		o := newTestOrchestrator(gw, exec)

		_, err := o.Sell(context.Background(), SellParams{
			Market: testMarket(), ReturnAmount: big.NewInt(100), OutcomeIndex: 0,
		})
		require.NoError(t, err)
		require.Equal(t, 2, exec.batches[0].Len())
	})
}

func createParams() CreateMarketParams {
	half := decimal.NewFromFloat(0.5)
	return CreateMarketParams{
		Collateral:           tokenAddr,
		Funding:              big.NewInt(5000),
		Fee:                  big.NewInt(200),
		Oracle:               oracleAddr,
		Question:             contracts.QuestionParams{Question: "q?", OpeningTS: 1700000000, Nonce: big.NewInt(0)},
		OutcomeProbabilities: []decimal.Decimal{half, half},
	}
}

func TestCreateMarketNativeCollateral(t *testing.T) {
	gw := &fakeGateway{hasCode: true}
	exec := &fakeExecutor{}
	o := newTestOrchestrator(gw, exec)

	p := createParams()
	p.CollateralIsNative = true
	res, err := o.CreateMarket(context.Background(), p)
	require.NoError(t, err)
	require.NotEqual(t, common.Address{}, res.MarketAddress)

	batch := exec.batches[0]
	calls := batch.Calls()
	require.Equal(t, wrappedAddr, calls[0].To)
	require.Equal(t, selDeposit, calls[0].Data[:4])
	require.Equal(t, big.NewInt(5000), calls[0].NativeValue())
	require.False(t, hasSelector(batch, selTransferFrom), "native funding must not also transfer tokens")
	require.Equal(t, big.NewInt(5000), batch.AggregateValue())
}

func TestCreateMarketTokenCollateral(t *testing.T) {
	gw := &fakeGateway{hasCode: true}
	exec := &fakeExecutor{}
	o := newTestOrchestrator(gw, exec)

	_, err := o.CreateMarket(context.Background(), createParams())
	require.NoError(t, err)

	batch := exec.batches[0]
	require.False(t, hasSelector(batch, selDeposit), "token funding must not wrap")
	require.True(t, hasSelector(batch, selTransferFrom))
	require.Zero(t, batch.AggregateValue().Sign())
}

func TestCreateMarketPreparedQuestionOmitsSetupCalls(t *testing.T) {
	gw := &fakeGateway{conditionExists: true, hasCode: true}
	exec := &fakeExecutor{}
	o := newTestOrchestrator(gw, exec)

	p := createParams()
	p.QuestionID = common.HexToHash("0xdead")
	p.Question = contracts.QuestionParams{}
	_, err := o.CreateMarket(context.Background(), p)
	require.NoError(t, err)

	calls := exec.batches[0].Calls()
	// approve, transfer funding, deploy; nothing else
	require.Len(t, calls, 3)
	require.Equal(t, selApprove, calls[0].Data[:4])
	require.Equal(t, selTransferFrom, calls[1].Data[:4])
	require.Equal(t, factoryAddr, calls[2].To)
}

func TestCreateMarketFreshQuestionAlwaysPrepares(t *testing.T) {
	// Existence is not even checked for a freshly-derived question; the
	// prepare call is unconditional.
	gw := &fakeGateway{conditionExists: true, hasCode: true}
	exec := &fakeExecutor{}
	o := newTestOrchestrator(gw, exec)

	_, err := o.CreateMarket(context.Background(), createParams())
	require.NoError(t, err)

	calls := exec.batches[0].Calls()
	// askQuestion, prepareCondition, approve, transfer, deploy
	require.Len(t, calls, 5)
	require.Equal(t, realitioAddr, calls[0].To)
	require.Equal(t, registryAddr, calls[1].To)
}

func TestCreateMarketCustomOracle(t *testing.T) {
	custom := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	p := createParams()
	p.Oracle = custom
	exec := &fakeExecutor{}
	_, err := newTestOrchestrator(&fakeGateway{hasCode: true}, exec).CreateMarket(context.Background(), p)
	require.NoError(t, err)

	questionID := contracts.QuestionID(proxyAddr, p.Question, big.NewInt(137))
	want, err := contracts.EncodePrepareCondition(registryAddr, custom, questionID, 2)
	require.NoError(t, err)
	require.Equal(t, want.Data, exec.batches[0].Calls()[1].Data)

	// A zero oracle falls back to the configured adapter.
	p = createParams()
	p.Oracle = common.Address{}
	exec = &fakeExecutor{}
	_, err = newTestOrchestrator(&fakeGateway{hasCode: true}, exec).CreateMarket(context.Background(), p)
	require.NoError(t, err)

	want, err = contracts.EncodePrepareCondition(registryAddr, oracleAddr, questionID, 2)
	require.NoError(t, err)
	require.Equal(t, want.Data, exec.batches[0].Calls()[1].Data)
}

func TestCreateMarketMissingResolutionTime(t *testing.T) {
	o := newTestOrchestrator(&fakeGateway{}, &fakeExecutor{})
	p := createParams()
	p.Question.OpeningTS = 0
	_, err := o.CreateMarket(context.Background(), p)
	var preErr *PreconditionError
	require.ErrorAs(t, err, &preErr)
}

func TestAddFundingShapes(t *testing.T) {
	t.Run("native", func(t *testing.T) {
		gw := &fakeGateway{allowance: big.NewInt(0)}
		exec := &fakeExecutor{}
		o := newTestOrchestrator(gw, exec)

		_, err := o.AddFunding(context.Background(), AddFundingParams{
			Market: testMarket(), Amount: big.NewInt(300), CollateralIsNative: true,
		})
		require.NoError(t, err)

		batch := exec.batches[0]
		calls := batch.Calls()
		// wrap, approve, addFunding; no transfer for native
		require.Len(t, calls, 3)
		require.Equal(t, selDeposit, calls[0].Data[:4])
		require.Equal(t, big.NewInt(300), batch.AggregateValue())
		require.False(t, hasSelector(batch, selTransferFrom))
	})

	t.Run("token with allowance", func(t *testing.T) {
		gw := &fakeGateway{allowance: big.NewInt(1000)}
		exec := &fakeExecutor{}
		o := newTestOrchestrator(gw, exec)

		_, err := o.AddFunding(context.Background(), AddFundingParams{
			Market: testMarket(), Amount: big.NewInt(300),
		})
		require.NoError(t, err)

		calls := exec.batches[0].Calls()
		// transfer, addFunding
		require.Len(t, calls, 2)
		require.Equal(t, selTransferFrom, calls[0].Data[:4])
		require.Equal(t, marketAddr, calls[1].To)
	})
}

func TestRemoveFundingAlwaysThreeCalls(t *testing.T) {
	m := testMarket()
	pos0 := ctf.OutcomePositionID(m.Collateral, m.ConditionID, 0)
	pos1 := ctf.OutcomePositionID(m.Collateral, m.ConditionID, 1)

	gw := &fakeGateway{
		totalSupply: big.NewInt(1000),
		fees:        big.NewInt(7),
		balances: map[balanceKey]*big.Int{
			{marketAddr, pos0.String()}: big.NewInt(400),
			{marketAddr, pos1.String()}: big.NewInt(600),
		},
	}
	exec := &fakeExecutor{}
	o := newTestOrchestrator(gw, exec)

	_, err := o.RemoveFunding(context.Background(), RemoveFundingParams{
		Market: m, SharesToBurn: big.NewInt(100),
	})
	require.NoError(t, err)

	calls := exec.batches[0].Calls()
	require.Len(t, calls, 3)
	require.Equal(t, marketAddr, calls[0].To)
	require.Equal(t, registryAddr, calls[1].To)

	// amountToMerge = min(400*100/1000, 600*100/1000) = 40; payout = 40 + 7
	wantTransfer, err := contracts.EncodeTransfer(m.Collateral, userAddr, big.NewInt(47))
	require.NoError(t, err)
	require.Equal(t, wantTransfer.Data, calls[2].Data)
}

func TestRemoveFundingRejectsBadSlotCount(t *testing.T) {
	o := newTestOrchestrator(&fakeGateway{totalSupply: big.NewInt(1000)}, &fakeExecutor{})

	m := testMarket()
	m.OutcomeSlotCount = 0
	_, err := o.RemoveFunding(context.Background(), RemoveFundingParams{
		Market: m, SharesToBurn: big.NewInt(100),
	})
	var preErr *PreconditionError
	require.ErrorAs(t, err, &preErr)
}

func TestRedeemShapes(t *testing.T) {
	m := testMarket()
	winning := ctf.OutcomePositionID(m.Collateral, m.ConditionID, 1)
	payload := ResolutionPayload{
		QuestionID:      common.HexToHash("0xdead"),
		RawQuestion:     "q?",
		ReportedOutcome: 1,
	}
	params := RedeemParams{
		Collateral:       m.Collateral,
		ConditionID:      m.ConditionID,
		OutcomeSlotCount: 2,
		Resolution:       payload,
	}

	tests := []struct {
		name      string
		resolved  bool
		earned    *big.Int
		wantCalls int
	}{
		{"unresolved with winnings", false, big.NewInt(50), 3},
		{"resolved with winnings", true, big.NewInt(50), 2},
		{"unresolved without winnings", false, big.NewInt(0), 2},
		{"resolved without winnings", true, big.NewInt(0), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{
				resolved: tt.resolved,
				winning:  1,
				balances: map[balanceKey]*big.Int{
					{proxyAddr, winning.String()}: tt.earned,
				},
			}
			exec := &fakeExecutor{}
			o := newTestOrchestrator(gw, exec)

			_, err := o.Redeem(context.Background(), params)
			require.NoError(t, err)

			batch := exec.batches[0]
			require.Equal(t, tt.wantCalls, batch.Len())

			calls := batch.Calls()
			if !tt.resolved {
				require.Equal(t, oracleAddr, calls[0].To)
			} else {
				require.NotEqual(t, oracleAddr, calls[0].To)
			}
			if tt.earned.Sign() > 0 {
				require.Equal(t, selTransfer, calls[len(calls)-1].Data[:4])
			} else {
				require.Equal(t, registryAddr, calls[len(calls)-1].To)
			}
		})
	}
}

func TestQueryPhaseIdempotent(t *testing.T) {
	gw := &fakeGateway{allowance: big.NewInt(0), buyQuote: big.NewInt(95)}
	exec := &fakeExecutor{}
	o := newTestOrchestrator(gw, exec)

	params := BuyParams{Market: testMarket(), Amount: big.NewInt(100), OutcomeIndex: 1}
	_, err := o.Buy(context.Background(), params)
	require.NoError(t, err)
	_, err = o.Buy(context.Background(), params)
	require.NoError(t, err)

	require.Len(t, exec.batches, 2)
	require.Equal(t, exec.batches[0].Calls(), exec.batches[1].Calls())
}

func TestBuyPreconditions(t *testing.T) {
	o := newTestOrchestrator(&fakeGateway{}, &fakeExecutor{})

	var preErr *PreconditionError
	_, err := o.Buy(context.Background(), BuyParams{Market: testMarket(), Amount: big.NewInt(0)})
	require.ErrorAs(t, err, &preErr)

	_, err = o.Buy(context.Background(), BuyParams{Market: testMarket(), Amount: big.NewInt(10), OutcomeIndex: 5})
	require.ErrorAs(t, err, &preErr)
}

func TestRedeemUnresolvedNeedsPayload(t *testing.T) {
	o := newTestOrchestrator(&fakeGateway{}, &fakeExecutor{})
	_, err := o.Redeem(context.Background(), RedeemParams{
		Collateral:       tokenAddr,
		ConditionID:      common.HexToHash("0xc0ffee"),
		OutcomeSlotCount: 2,
	})
	var preErr *PreconditionError
	require.ErrorAs(t, err, &preErr)
}
