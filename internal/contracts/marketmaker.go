package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/predictfi/gomarket/internal/txn"
)

const marketMakerJSON = `[
	{"inputs":[{"name":"investmentAmount","type":"uint256"},{"name":"outcomeIndex","type":"uint256"},{"name":"minOutcomeTokensToBuy","type":"uint256"}],"name":"buy","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"returnAmount","type":"uint256"},{"name":"outcomeIndex","type":"uint256"},{"name":"maxOutcomeTokensToSell","type":"uint256"}],"name":"sell","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"addedFunds","type":"uint256"},{"name":"distributionHint","type":"uint256[]"}],"name":"addFunding","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"sharesToBurn","type":"uint256"}],"name":"removeFunding","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"investmentAmount","type":"uint256"},{"name":"outcomeIndex","type":"uint256"}],"name":"calcBuyAmount","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"returnAmount","type":"uint256"},{"name":"outcomeIndex","type":"uint256"}],"name":"calcSellAmount","outputs":[{"name":"outcomeTokenSellAmount","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"account","type":"address"}],"name":"feesWithdrawableBy","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"collateralToken","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"","type":"uint256"}],"name":"conditionIds","outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var marketMakerABI = mustABI(marketMakerJSON)

// EncodeBuy trades investmentAmount of collateral for at least minOutcomeTokens
// of the given outcome. minOutcomeTokens is the slippage guard and must be
// computed from a calcBuyAmount read taken at build time.
func EncodeBuy(market common.Address, investmentAmount *big.Int, outcomeIndex uint, minOutcomeTokens *big.Int) (txn.Call, error) {
	data, err := marketMakerABI.Pack("buy", investmentAmount, new(big.Int).SetUint64(uint64(outcomeIndex)), minOutcomeTokens)
	if err != nil {
		return txn.Call{}, err
	}
	return txn.Call{To: market, Data: data, Value: big.NewInt(0)}, nil
}

// EncodeSell trades outcome tokens back for exactly returnAmount of
// collateral, selling at most maxOutcomeTokens.
func EncodeSell(market common.Address, returnAmount *big.Int, outcomeIndex uint, maxOutcomeTokens *big.Int) (txn.Call, error) {
	data, err := marketMakerABI.Pack("sell", returnAmount, new(big.Int).SetUint64(uint64(outcomeIndex)), maxOutcomeTokens)
	if err != nil {
		return txn.Call{}, err
	}
	return txn.Call{To: market, Data: data, Value: big.NewInt(0)}, nil
}

// EncodeAddFunding deposits collateral as liquidity. distributionHint may be
// empty for an already-funded market.
func EncodeAddFunding(market common.Address, addedFunds *big.Int, distributionHint []*big.Int) (txn.Call, error) {
	if distributionHint == nil {
		distributionHint = []*big.Int{}
	}
	data, err := marketMakerABI.Pack("addFunding", addedFunds, distributionHint)
	if err != nil {
		return txn.Call{}, err
	}
	return txn.Call{To: market, Data: data, Value: big.NewInt(0)}, nil
}

// EncodeRemoveFunding burns pool shares for the underlying outcome-token
// positions plus accrued fees.
func EncodeRemoveFunding(market common.Address, sharesToBurn *big.Int) (txn.Call, error) {
	data, err := marketMakerABI.Pack("removeFunding", sharesToBurn)
	if err != nil {
		return txn.Call{}, err
	}
	return txn.Call{To: market, Data: data, Value: big.NewInt(0)}, nil
}

// CalcBuyAmount reads the outcome tokens bought for investmentAmount at the
// market's current pricing curve.
func CalcBuyAmount(ctx context.Context, caller Caller, market common.Address, investmentAmount *big.Int, outcomeIndex uint) (*big.Int, error) {
	var out *big.Int
	if err := call(ctx, caller, market, marketMakerABI, "calcBuyAmount", &out, investmentAmount, new(big.Int).SetUint64(uint64(outcomeIndex))); err != nil {
		return nil, err
	}
	return out, nil
}

// CalcSellAmount reads the outcome tokens that must be sold to receive
// returnAmount of collateral.
func CalcSellAmount(ctx context.Context, caller Caller, market common.Address, returnAmount *big.Int, outcomeIndex uint) (*big.Int, error) {
	var out *big.Int
	if err := call(ctx, caller, market, marketMakerABI, "calcSellAmount", &out, returnAmount, new(big.Int).SetUint64(uint64(outcomeIndex))); err != nil {
		return nil, err
	}
	return out, nil
}

// FeesWithdrawableBy reads the fee earnings claimable by account on funding
// removal.
func FeesWithdrawableBy(ctx context.Context, caller Caller, market, account common.Address) (*big.Int, error) {
	var out *big.Int
	if err := call(ctx, caller, market, marketMakerABI, "feesWithdrawableBy", &out, account); err != nil {
		return nil, err
	}
	return out, nil
}

// MarketCollateralToken resolves the market's backing collateral.
func MarketCollateralToken(ctx context.Context, caller Caller, market common.Address) (common.Address, error) {
	var out common.Address
	if err := call(ctx, caller, market, marketMakerABI, "collateralToken", &out); err != nil {
		return common.Address{}, err
	}
	return out, nil
}

// MarketConditionID resolves the condition the market trades on.
func MarketConditionID(ctx context.Context, caller Caller, market common.Address) (common.Hash, error) {
	var out common.Hash
	if err := call(ctx, caller, market, marketMakerABI, "conditionIds", &out, big.NewInt(0)); err != nil {
		return common.Hash{}, err
	}
	return out, nil
}

// PoolTotalSupply reads the total liquidity shares outstanding.
func PoolTotalSupply(ctx context.Context, caller Caller, market common.Address) (*big.Int, error) {
	var out *big.Int
	if err := call(ctx, caller, market, marketMakerABI, "totalSupply", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PoolShareBalance reads the liquidity-share balance of account.
func PoolShareBalance(ctx context.Context, caller Caller, market, account common.Address) (*big.Int, error) {
	var out *big.Int
	if err := call(ctx, caller, market, marketMakerABI, "balanceOf", &out, account); err != nil {
		return nil, err
	}
	return out, nil
}
