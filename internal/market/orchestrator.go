// Package market implements the transaction-batch orchestrator: it turns a
// high-level intent (buy, sell, create market, add/remove funding, redeem)
// into one ordered call batch, decided against live chain state, submitted
// exactly once through the proxy account.
package market

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/predictfi/gomarket/internal/contracts"
	"github.com/predictfi/gomarket/internal/proxy"
	"github.com/predictfi/gomarket/internal/txn"
	"github.com/predictfi/gomarket/pkg/ctf"
)

// Addresses are the protocol contracts one orchestrator instance talks to.
type Addresses struct {
	ConditionalTokens  common.Address
	WrappedNative      common.Address
	MarketMakerFactory common.Address
	// Oracle is the adapter contract that reports answers into the registry
	// and is recorded as the condition oracle.
	Oracle   common.Address
	Realitio common.Address
	// MarketInitCodeHash is fixed per factory release; it feeds the CREATE2
	// address prediction.
	MarketInitCodeHash common.Hash
}

// Orchestrator runs each intent as a single pass: query, conditional build,
// one submission, await confirmation. Nothing is cached across invocations;
// every run re-reads the chain.
type Orchestrator struct {
	gateway     StateQuery
	exec        txn.Executor
	account     *proxy.Account
	addrs       Addresses
	chainID     *big.Int
	user        common.Address
	proxyAddr   common.Address
	slippageBps uint
	log         *logrus.Entry
}

func NewOrchestrator(gateway StateQuery, exec txn.Executor, account *proxy.Account,
	addrs Addresses, chainID *big.Int, user common.Address, slippageBps uint,
	log *logrus.Entry) *Orchestrator {

	return &Orchestrator{
		gateway:     gateway,
		exec:        exec,
		account:     account,
		addrs:       addrs,
		chainID:     chainID,
		user:        user,
		proxyAddr:   account.Address,
		slippageBps: slippageBps,
		log:         log,
	}
}

// run submits a built batch and waits for inclusion. Exactly one submission
// happens; there is no retry, since chain state may have moved and the batch
// would be stale.
func (o *Orchestrator) run(ctx context.Context, op string, batch *txn.Batch) (*Result, error) {
	if batch.Len() == 0 {
		return nil, &PreconditionError{Op: op, Reason: "empty batch"}
	}
	o.log.WithFields(logrus.Fields{"op": op, "calls": batch.Len()}).Info("submitting batch")
	hash, err := o.exec.Execute(ctx, batch)
	if err != nil {
		o.log.WithField("op", op).Errorf("submission rejected: %v", err)
		return nil, &SubmissionError{Op: op, Err: err}
	}
	receipt, err := o.exec.AwaitConfirmation(ctx, hash)
	if err != nil {
		o.log.WithFields(logrus.Fields{"op": op, "tx": hash.Hex()}).Errorf("await confirmation: %v", err)
		return nil, &StateQueryError{Op: op, Err: err}
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		o.log.WithFields(logrus.Fields{"op": op, "tx": hash.Hex()}).Error("batch reverted")
		return nil, &ExecutionRevertedError{Op: op, TxHash: hash}
	}
	o.log.WithFields(logrus.Fields{"op": op, "tx": hash.Hex()}).Info("batch confirmed")
	return &Result{TxHash: hash, Receipt: receipt}, nil
}

// Buy purchases outcome shares for p.Amount of the market's collateral. The
// approval is included only when the proxy's allowance does not cover the
// amount; the minimum-shares-out guard is quoted at build time.
func (o *Orchestrator) Buy(ctx context.Context, p BuyParams) (*Result, error) {
	const op = "buy"
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return nil, &PreconditionError{Op: op, Reason: "amount must be positive"}
	}
	if p.OutcomeIndex >= p.Market.OutcomeSlotCount {
		return nil, &PreconditionError{Op: op, Reason: "outcome index out of range"}
	}
	o.log.WithFields(logrus.Fields{"op": op, "market": p.Market.Address.Hex(), "amount": p.Amount.String()}).Debug("building batch")

	steps := []step{
		{
			name: op + "/approve",
			include: func(ctx context.Context) (bool, error) {
				allowance, err := o.gateway.Allowance(ctx, p.Market.Collateral, o.proxyAddr, p.Market.Address)
				if err != nil {
					return false, err
				}
				return allowance.Cmp(p.Amount) < 0, nil
			},
			build: func(context.Context) (txn.Call, error) {
				return contracts.EncodeApprove(p.Market.Collateral, p.Market.Address, contracts.MaxUint256)
			},
		},
		{
			name: op + "/transfer",
			build: func(context.Context) (txn.Call, error) {
				return contracts.EncodeTransferFrom(p.Market.Collateral, o.user, o.proxyAddr, p.Amount)
			},
		},
		{
			name: op + "/buy",
			build: func(ctx context.Context) (txn.Call, error) {
				quoted, err := o.gateway.CalcBuyAmount(ctx, p.Market.Address, p.Amount, p.OutcomeIndex)
				if err != nil {
					return txn.Call{}, &StateQueryError{Op: op + "/quote", Err: err}
				}
				minOut := applySlippage(quoted, o.slippageBps)
				return contracts.EncodeBuy(p.Market.Address, p.Amount, p.OutcomeIndex, minOut)
			},
		},
	}
	batch, err := buildBatch(ctx, steps)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, op, batch)
}

// Sell disposes of outcome shares for exactly p.ReturnAmount of collateral
// and forwards the proceeds from the proxy to the user. The operator
// approval on the registry is included only when missing; the
// maximum-shares-in guard is quoted at build time.
func (o *Orchestrator) Sell(ctx context.Context, p SellParams) (*Result, error) {
	const op = "sell"
	if p.ReturnAmount == nil || p.ReturnAmount.Sign() <= 0 {
		return nil, &PreconditionError{Op: op, Reason: "return amount must be positive"}
	}
	if p.OutcomeIndex >= p.Market.OutcomeSlotCount {
		return nil, &PreconditionError{Op: op, Reason: "outcome index out of range"}
	}
	o.log.WithFields(logrus.Fields{"op": op, "market": p.Market.Address.Hex(), "return": p.ReturnAmount.String()}).Debug("building batch")

	steps := []step{
		{
			name: op + "/setApprovalForAll",
			include: func(ctx context.Context) (bool, error) {
				approved, err := o.gateway.IsApprovedForAll(ctx, o.proxyAddr, p.Market.Address)
				if err != nil {
					return false, err
				}
				return !approved, nil
			},
			build: func(context.Context) (txn.Call, error) {
				return contracts.EncodeSetApprovalForAll(o.addrs.ConditionalTokens, p.Market.Address, true)
			},
		},
		{
			name: op + "/sell",
			build: func(ctx context.Context) (txn.Call, error) {
				quoted, err := o.gateway.CalcSellAmount(ctx, p.Market.Address, p.ReturnAmount, p.OutcomeIndex)
				if err != nil {
					return txn.Call{}, &StateQueryError{Op: op + "/quote", Err: err}
				}
				maxIn := addSlippage(quoted, o.slippageBps)
				return contracts.EncodeSell(p.Market.Address, p.ReturnAmount, p.OutcomeIndex, maxIn)
			},
		},
		{
			name: op + "/payout",
			build: func(context.Context) (txn.Call, error) {
				return contracts.EncodeTransfer(p.Market.Collateral, o.user, p.ReturnAmount)
			},
		},
	}
	batch, err := buildBatch(ctx, steps)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, op, batch)
}

// CreateMarket deploys and funds a new market maker in one batch. Native
// funding rides in as attached value on a wrap call; a missing question id
// is derived ahead of time and the ask-question call included. The returned
// address is the CREATE2 prediction, asserted against deployed code after
// confirmation.
func (o *Orchestrator) CreateMarket(ctx context.Context, p CreateMarketParams) (*CreateMarketResult, error) {
	const op = "createMarket"
	if p.Funding == nil || p.Funding.Sign() <= 0 {
		return nil, &PreconditionError{Op: op, Reason: "funding must be positive"}
	}
	if p.Fee == nil || p.Fee.Sign() < 0 {
		return nil, &PreconditionError{Op: op, Reason: "fee missing"}
	}
	if len(p.OutcomeProbabilities) < 2 {
		return nil, &PreconditionError{Op: op, Reason: "need at least two outcomes"}
	}
	askQuestion := p.QuestionID == (common.Hash{})
	if askQuestion {
		if p.Question.Question == "" {
			return nil, &PreconditionError{Op: op, Reason: "neither question id nor question text supplied"}
		}
		if p.Question.OpeningTS == 0 {
			return nil, &PreconditionError{Op: op, Reason: "question has no resolution time"}
		}
	}
	hint, err := DistributionHint(p.OutcomeProbabilities)
	if err != nil {
		return nil, &PreconditionError{Op: op, Reason: err.Error()}
	}

	collateral := p.Collateral
	if p.CollateralIsNative {
		collateral = o.addrs.WrappedNative
	}
	oracle := p.Oracle
	if oracle == (common.Address{}) {
		oracle = o.addrs.Oracle
	}
	questionID := p.QuestionID
	if askQuestion {
		// The ask-question call executes from the proxy, so the proxy is
		// the asker the oracle hashes into the id.
		questionID = contracts.QuestionID(o.proxyAddr, p.Question, o.chainID)
	}
	outcomeCount := uint(len(p.OutcomeProbabilities))
	conditionID := ctf.ConditionID(oracle, questionID, outcomeCount)

	salt, err := ctf.RandomSalt()
	if err != nil {
		return nil, &PreconditionError{Op: op, Reason: err.Error()}
	}
	predicted := ctf.PredictMarketAddress(o.addrs.MarketMakerFactory, o.addrs.MarketInitCodeHash,
		salt, conditionID, collateral, o.proxyAddr, p.Fee)

	o.log.WithFields(logrus.Fields{
		"op":        op,
		"condition": conditionID.Hex(),
		"funding":   p.Funding.String(),
		"predicted": predicted.Hex(),
	}).Debug("building batch")

	steps := []step{
		{
			name: op + "/wrap",
			include: func(context.Context) (bool, error) {
				return p.CollateralIsNative, nil
			},
			build: func(context.Context) (txn.Call, error) {
				return contracts.EncodeWrap(o.addrs.WrappedNative, p.Funding)
			},
		},
		{
			name: op + "/askQuestion",
			include: func(context.Context) (bool, error) {
				return askQuestion, nil
			},
			build: func(context.Context) (txn.Call, error) {
				return contracts.EncodeAskQuestion(o.addrs.Realitio, p.Question)
			},
		},
		{
			name: op + "/prepareCondition",
			include: func(ctx context.Context) (bool, error) {
				// A freshly-derived question cannot have a prepared
				// condition, so existence is only worth checking for
				// pre-supplied question ids.
				if askQuestion {
					return true, nil
				}
				exists, err := o.gateway.ConditionExists(ctx, conditionID)
				if err != nil {
					return false, err
				}
				return !exists, nil
			},
			build: func(context.Context) (txn.Call, error) {
				return contracts.EncodePrepareCondition(o.addrs.ConditionalTokens, oracle, questionID, outcomeCount)
			},
		},
		{
			name: op + "/approve",
			build: func(context.Context) (txn.Call, error) {
				return contracts.EncodeApprove(collateral, o.addrs.MarketMakerFactory, contracts.MaxUint256)
			},
		},
		{
			name: op + "/transferFunding",
			include: func(context.Context) (bool, error) {
				// Native funding already sits in the proxy via the wrap
				// call's attached value.
				return !p.CollateralIsNative, nil
			},
			build: func(context.Context) (txn.Call, error) {
				return contracts.EncodeTransferFrom(collateral, o.user, o.proxyAddr, p.Funding)
			},
		},
		{
			name: op + "/deploy",
			build: func(context.Context) (txn.Call, error) {
				return contracts.EncodeCreateMarketMaker(o.addrs.MarketMakerFactory, salt, conditionID,
					collateral, p.Fee, p.Funding, hint)
			},
		},
	}
	batch, err := buildBatch(ctx, steps)
	if err != nil {
		return nil, err
	}
	res, err := o.run(ctx, op, batch)
	if err != nil {
		return nil, err
	}

	// The prediction must equal the deployed address by construction of the
	// salt scheme; verify rather than trust, so a factory change fails loudly.
	deployed, err := o.gateway.HasCode(ctx, predicted)
	if err != nil {
		return nil, &StateQueryError{Op: op + "/verify", Err: err}
	}
	if !deployed {
		return nil, pkgerrors.Errorf("%s: no code at predicted market address %s after confirmation (tx %s)",
			op, predicted.Hex(), res.TxHash.Hex())
	}
	return &CreateMarketResult{Result: *res, MarketAddress: predicted}, nil
}

// AddFunding deposits liquidity into an existing market, wrapping native
// funding and topping up the allowance only when needed.
func (o *Orchestrator) AddFunding(ctx context.Context, p AddFundingParams) (*Result, error) {
	const op = "addFunding"
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return nil, &PreconditionError{Op: op, Reason: "amount must be positive"}
	}
	o.log.WithFields(logrus.Fields{"op": op, "market": p.Market.Address.Hex(), "amount": p.Amount.String()}).Debug("building batch")

	steps := []step{
		{
			name: op + "/wrap",
			include: func(context.Context) (bool, error) {
				return p.CollateralIsNative, nil
			},
			build: func(context.Context) (txn.Call, error) {
				return contracts.EncodeWrap(p.Market.Collateral, p.Amount)
			},
		},
		{
			name: op + "/approve",
			include: func(ctx context.Context) (bool, error) {
				allowance, err := o.gateway.Allowance(ctx, p.Market.Collateral, o.proxyAddr, p.Market.Address)
				if err != nil {
					return false, err
				}
				return allowance.Cmp(p.Amount) < 0, nil
			},
			build: func(context.Context) (txn.Call, error) {
				return contracts.EncodeApprove(p.Market.Collateral, p.Market.Address, contracts.MaxUint256)
			},
		},
		{
			name: op + "/transfer",
			include: func(context.Context) (bool, error) {
				return !p.CollateralIsNative, nil
			},
			build: func(context.Context) (txn.Call, error) {
				return contracts.EncodeTransferFrom(p.Market.Collateral, o.user, o.proxyAddr, p.Amount)
			},
		},
		{
			name: op + "/addFunding",
			build: func(context.Context) (txn.Call, error) {
				return contracts.EncodeAddFunding(p.Market.Address, p.Amount, nil)
			},
		},
	}
	batch, err := buildBatch(ctx, steps)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, op, batch)
}

// RemoveFunding burns pool shares, merges the freed per-outcome positions
// back into raw collateral, and pays out proceeds plus earned fees. The
// batch is always exactly burn, merge, transfer; the merge amount is the
// smallest per-outcome entitlement because merging consumes equal amounts of
// every position.
func (o *Orchestrator) RemoveFunding(ctx context.Context, p RemoveFundingParams) (*Result, error) {
	const op = "removeFunding"
	if p.SharesToBurn == nil || p.SharesToBurn.Sign() <= 0 {
		return nil, &PreconditionError{Op: op, Reason: "shares to burn must be positive"}
	}
	if p.Market.OutcomeSlotCount < 2 {
		return nil, &PreconditionError{Op: op, Reason: "condition needs at least two outcome slots"}
	}
	o.log.WithFields(logrus.Fields{"op": op, "market": p.Market.Address.Hex(), "shares": p.SharesToBurn.String()}).Debug("building batch")

	totalSupply, err := o.gateway.PoolTotalSupply(ctx, p.Market.Address)
	if err != nil {
		return nil, &StateQueryError{Op: op + "/totalSupply", Err: err}
	}
	if totalSupply.Sign() == 0 {
		return nil, &PreconditionError{Op: op, Reason: "pool has no outstanding shares"}
	}
	var amountToMerge *big.Int
	for i := uint(0); i < p.Market.OutcomeSlotCount; i++ {
		positionID := ctf.OutcomePositionID(p.Market.Collateral, p.Market.ConditionID, i)
		poolBalance, err := o.gateway.OutcomeTokenBalance(ctx, p.Market.Address, positionID)
		if err != nil {
			return nil, &StateQueryError{Op: op + "/poolBalance", Err: err}
		}
		entitled := new(big.Int).Mul(poolBalance, p.SharesToBurn)
		entitled.Div(entitled, totalSupply)
		if amountToMerge == nil || entitled.Cmp(amountToMerge) < 0 {
			amountToMerge = entitled
		}
	}
	earnings, err := o.gateway.FeesWithdrawableBy(ctx, p.Market.Address, o.proxyAddr)
	if err != nil {
		return nil, &StateQueryError{Op: op + "/fees", Err: err}
	}
	payout := new(big.Int).Add(amountToMerge, earnings)

	steps := []step{
		{
			name: op + "/burn",
			build: func(context.Context) (txn.Call, error) {
				return contracts.EncodeRemoveFunding(p.Market.Address, p.SharesToBurn)
			},
		},
		{
			name: op + "/merge",
			build: func(context.Context) (txn.Call, error) {
				return contracts.EncodeMergePositions(o.addrs.ConditionalTokens, p.Market.Collateral,
					p.Market.ConditionID, ctf.FullPartition(p.Market.OutcomeSlotCount), amountToMerge)
			},
		},
		{
			name: op + "/payout",
			build: func(context.Context) (txn.Call, error) {
				return contracts.EncodeTransfer(p.Market.Collateral, o.user, payout)
			},
		},
	}
	batch, err := buildBatch(ctx, steps)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, op, batch)
}

// Redeem claims winnings for a condition. An unresolved condition gets a
// resolve call first, using the oracle's finalized answer; the payout
// transfer is included only when the proxy actually holds winning shares.
func (o *Orchestrator) Redeem(ctx context.Context, p RedeemParams) (*Result, error) {
	const op = "redeem"
	if p.OutcomeSlotCount < 2 {
		return nil, &PreconditionError{Op: op, Reason: "outcome slot count must be at least 2"}
	}
	o.log.WithFields(logrus.Fields{"op": op, "condition": p.ConditionID.Hex()}).Debug("building batch")

	resolved, err := o.gateway.IsConditionResolved(ctx, p.ConditionID)
	if err != nil {
		return nil, &StateQueryError{Op: op + "/resolved", Err: err}
	}
	var winning uint
	if resolved {
		winning, err = o.gateway.WinningOutcome(ctx, p.ConditionID, p.OutcomeSlotCount)
		if err != nil {
			return nil, &StateQueryError{Op: op + "/winningOutcome", Err: err}
		}
	} else {
		if p.Resolution.QuestionID == (common.Hash{}) || p.Resolution.RawQuestion == "" {
			return nil, &PreconditionError{Op: op, Reason: "condition unresolved and no resolution payload supplied"}
		}
		if p.Resolution.ReportedOutcome >= p.OutcomeSlotCount {
			return nil, &PreconditionError{Op: op, Reason: "reported outcome out of range"}
		}
		winning = p.Resolution.ReportedOutcome
	}
	winningPosition := ctf.OutcomePositionID(p.Collateral, p.ConditionID, winning)
	earned, err := o.gateway.OutcomeTokenBalance(ctx, o.proxyAddr, winningPosition)
	if err != nil {
		return nil, &StateQueryError{Op: op + "/earned", Err: err}
	}

	steps := []step{
		{
			name: op + "/resolve",
			include: func(context.Context) (bool, error) {
				return !resolved, nil
			},
			build: func(context.Context) (txn.Call, error) {
				return contracts.EncodeResolve(o.addrs.Oracle, p.Resolution.QuestionID,
					p.Resolution.TemplateID, p.Resolution.RawQuestion, p.OutcomeSlotCount)
			},
		},
		{
			name: op + "/redeem",
			build: func(context.Context) (txn.Call, error) {
				return contracts.EncodeRedeemPositions(o.addrs.ConditionalTokens, p.Collateral,
					p.ConditionID, ctf.FullPartition(p.OutcomeSlotCount))
			},
		},
		{
			name: op + "/payout",
			include: func(context.Context) (bool, error) {
				return earned.Sign() > 0, nil
			},
			build: func(context.Context) (txn.Call, error) {
				return contracts.EncodeTransfer(p.Collateral, o.user, earned)
			},
		},
	}
	batch, err := buildBatch(ctx, steps)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, op, batch)
}

// IsProxyUpToDate reports whether the proxy is deployed with the target
// implementation. It is consulted by callers, never auto-invoked by the
// workflows; upgrading stays an explicit action.
func (o *Orchestrator) IsProxyUpToDate(ctx context.Context) (bool, error) {
	upToDate, err := o.account.IsUpToDate(ctx)
	if err != nil {
		return false, &StateQueryError{Op: "proxyStatus", Err: err}
	}
	return upToDate, nil
}

// UpgradeProxy submits the change-master-copy call as its own single-call
// batch.
func (o *Orchestrator) UpgradeProxy(ctx context.Context) (*Result, error) {
	const op = "upgradeProxy"
	upToDate, err := o.IsProxyUpToDate(ctx)
	if err != nil {
		return nil, err
	}
	if upToDate {
		return nil, &PreconditionError{Op: op, Reason: "proxy already runs the target implementation"}
	}
	call, err := o.account.UpgradeCall()
	if err != nil {
		return nil, &PreconditionError{Op: op, Reason: err.Error()}
	}
	batch := txn.NewBatch()
	batch.Push(call)
	return o.run(ctx, op, batch)
}

// ResolveMarket reads a deployed market's collateral, condition, and outcome
// count once, producing the immutable reference intents are built against.
func (o *Orchestrator) ResolveMarket(ctx context.Context, address common.Address) (MarketRef, error) {
	const op = "resolveMarket"
	collateral, err := o.gateway.MarketCollateralToken(ctx, address)
	if err != nil {
		return MarketRef{}, &StateQueryError{Op: op + "/collateral", Err: err}
	}
	conditionID, err := o.gateway.MarketConditionID(ctx, address)
	if err != nil {
		return MarketRef{}, &StateQueryError{Op: op + "/condition", Err: err}
	}
	slots, err := o.gateway.ConditionOutcomeSlotCount(ctx, conditionID)
	if err != nil {
		return MarketRef{}, &StateQueryError{Op: op + "/slots", Err: err}
	}
	return MarketRef{
		Address:          address,
		Collateral:       collateral,
		ConditionID:      conditionID,
		OutcomeSlotCount: slots,
	}, nil
}
