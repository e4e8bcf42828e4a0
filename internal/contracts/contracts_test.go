package contracts

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/predictfi/gomarket/internal/txn"
)

var (
	token   = common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
	spender = common.HexToAddress("0x1111111111111111111111111111111111111111")
	holder  = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// Selectors are part of the wire contract; pin the well-known ones so an ABI
// string edit cannot silently change an encoded payload.
func TestEncodedSelectors(t *testing.T) {
	approve, err := EncodeApprove(token, spender, big.NewInt(1))
	require.NoError(t, err)
	transfer, err := EncodeTransfer(token, spender, big.NewInt(1))
	require.NoError(t, err)
	transferFrom, err := EncodeTransferFrom(token, holder, spender, big.NewInt(1))
	require.NoError(t, err)
	wrap, err := EncodeWrap(token, big.NewInt(1))
	require.NoError(t, err)
	unwrap, err := EncodeUnwrap(token, big.NewInt(1))
	require.NoError(t, err)
	setApproval, err := EncodeSetApprovalForAll(token, spender, true)
	require.NoError(t, err)

	tests := []struct {
		name string
		call txn.Call
		want string
	}{
		{"approve", approve, "095ea7b3"},
		{"transfer", transfer, "a9059cbb"},
		{"transferFrom", transferFrom, "23b872dd"},
		{"deposit", wrap, "d0e30db0"},
		{"withdraw", unwrap, "2e1a7d4d"},
		{"setApprovalForAll", setApproval, "a22cb465"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.GreaterOrEqual(t, len(tt.call.Data), 4)
			require.Equal(t, tt.want, hex.EncodeToString(tt.call.Data[:4]))
		})
	}
}

func TestEncodeWrapCarriesValue(t *testing.T) {
	amount := big.NewInt(123456)
	wrap, err := EncodeWrap(token, amount)
	require.NoError(t, err)
	require.Equal(t, 0, wrap.NativeValue().Cmp(amount))

	// The input amount must not alias the call's value.
	amount.SetInt64(1)
	require.Equal(t, int64(123456), wrap.NativeValue().Int64())
}

func TestEncodeCallsCarryNoValue(t *testing.T) {
	cond := common.HexToHash("0x3333333333333333333333333333333333333333333333333333333333333333")

	merge, err := EncodeMergePositions(token, token, cond, []*big.Int{big.NewInt(1), big.NewInt(2)}, big.NewInt(5))
	require.NoError(t, err)
	redeem, err := EncodeRedeemPositions(token, token, cond, []*big.Int{big.NewInt(1), big.NewInt(2)})
	require.NoError(t, err)
	buy, err := EncodeBuy(token, big.NewInt(100), 1, big.NewInt(95))
	require.NoError(t, err)

	for _, c := range []txn.Call{merge, redeem, buy} {
		require.Equal(t, 0, c.NativeValue().Sign())
		require.Equal(t, txn.OpCall, c.Operation)
	}
}

func TestQuestionIDDeterministic(t *testing.T) {
	p := QuestionParams{
		TemplateID: 2,
		Question:   "Will it rain tomorrow?␟Yes|No␟weather␟en",
		Category:   "weather",
		Arbitrator: spender,
		Timeout:    86400,
		OpeningTS:  1700000000,
	}
	chainID := big.NewInt(100)

	a := QuestionID(holder, p, chainID)
	b := QuestionID(holder, p, chainID)
	require.Equal(t, a, b)

	p2 := p
	p2.OpeningTS = 1700000001
	require.NotEqual(t, a, QuestionID(holder, p2, chainID))
	require.NotEqual(t, a, QuestionID(spender, p, chainID))
	require.NotEqual(t, a, QuestionID(holder, p, big.NewInt(1)))
}
