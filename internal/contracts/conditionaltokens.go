package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/predictfi/gomarket/internal/txn"
)

const conditionalTokensJSON = `[
	{"inputs":[{"name":"oracle","type":"address"},{"name":"questionId","type":"bytes32"},{"name":"outcomeSlotCount","type":"uint256"}],"name":"prepareCondition","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"operator","type":"address"},{"name":"approved","type":"bool"}],"name":"setApprovalForAll","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"collateralToken","type":"address"},{"name":"parentCollectionId","type":"bytes32"},{"name":"conditionId","type":"bytes32"},{"name":"partition","type":"uint256[]"},{"name":"amount","type":"uint256"}],"name":"splitPosition","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"collateralToken","type":"address"},{"name":"parentCollectionId","type":"bytes32"},{"name":"conditionId","type":"bytes32"},{"name":"partition","type":"uint256[]"},{"name":"amount","type":"uint256"}],"name":"mergePositions","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"collateralToken","type":"address"},{"name":"parentCollectionId","type":"bytes32"},{"name":"conditionId","type":"bytes32"},{"name":"indexSets","type":"uint256[]"}],"name":"redeemPositions","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"conditionId","type":"bytes32"}],"name":"getOutcomeSlotCount","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"","type":"bytes32"}],"name":"payoutDenominator","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"","type":"bytes32"},{"name":"","type":"uint256"}],"name":"payoutNumerators","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"owner","type":"address"},{"name":"operator","type":"address"}],"name":"isApprovedForAll","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"account","type":"address"},{"name":"id","type":"uint256"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var conditionalTokensABI = mustABI(conditionalTokensJSON)

// EncodePrepareCondition registers a condition with the outcome-token registry.
func EncodePrepareCondition(registry, oracle common.Address, questionID common.Hash, outcomeSlotCount uint) (txn.Call, error) {
	data, err := conditionalTokensABI.Pack("prepareCondition", oracle, questionID, new(big.Int).SetUint64(uint64(outcomeSlotCount)))
	if err != nil {
		return txn.Call{}, err
	}
	return txn.Call{To: registry, Data: data, Value: big.NewInt(0)}, nil
}

// EncodeSetApprovalForAll grants (or revokes) operator rights over all of the
// executing account's outcome tokens.
func EncodeSetApprovalForAll(registry, operator common.Address, approved bool) (txn.Call, error) {
	data, err := conditionalTokensABI.Pack("setApprovalForAll", operator, approved)
	if err != nil {
		return txn.Call{}, err
	}
	return txn.Call{To: registry, Data: data, Value: big.NewInt(0)}, nil
}

// EncodeMergePositions recombines one unit of every outcome in partition back
// into raw collateral.
func EncodeMergePositions(registry, collateral common.Address, conditionID common.Hash, partition []*big.Int, amount *big.Int) (txn.Call, error) {
	data, err := conditionalTokensABI.Pack("mergePositions", collateral, common.Hash{}, conditionID, partition, amount)
	if err != nil {
		return txn.Call{}, err
	}
	return txn.Call{To: registry, Data: data, Value: big.NewInt(0)}, nil
}

// EncodeRedeemPositions claims collateral for the winning outcome after
// resolution.
func EncodeRedeemPositions(registry, collateral common.Address, conditionID common.Hash, indexSets []*big.Int) (txn.Call, error) {
	data, err := conditionalTokensABI.Pack("redeemPositions", collateral, common.Hash{}, conditionID, indexSets)
	if err != nil {
		return txn.Call{}, err
	}
	return txn.Call{To: registry, Data: data, Value: big.NewInt(0)}, nil
}

// ConditionOutcomeSlotCount reads the registered slot count; zero means the
// condition has not been prepared.
func ConditionOutcomeSlotCount(ctx context.Context, caller Caller, registry common.Address, conditionID common.Hash) (*big.Int, error) {
	var out *big.Int
	if err := call(ctx, caller, registry, conditionalTokensABI, "getOutcomeSlotCount", &out, conditionID); err != nil {
		return nil, err
	}
	return out, nil
}

// PayoutDenominator is non-zero once the condition has been resolved.
func PayoutDenominator(ctx context.Context, caller Caller, registry common.Address, conditionID common.Hash) (*big.Int, error) {
	var out *big.Int
	if err := call(ctx, caller, registry, conditionalTokensABI, "payoutDenominator", &out, conditionID); err != nil {
		return nil, err
	}
	return out, nil
}

// PayoutNumerator reads the payout share reported for one outcome slot.
func PayoutNumerator(ctx context.Context, caller Caller, registry common.Address, conditionID common.Hash, index uint) (*big.Int, error) {
	var out *big.Int
	if err := call(ctx, caller, registry, conditionalTokensABI, "payoutNumerators", &out, conditionID, new(big.Int).SetUint64(uint64(index))); err != nil {
		return nil, err
	}
	return out, nil
}

// IsApprovedForAll reads the operator approval flag.
func IsApprovedForAll(ctx context.Context, caller Caller, registry, owner, operator common.Address) (bool, error) {
	var out bool
	if err := call(ctx, caller, registry, conditionalTokensABI, "isApprovedForAll", &out, owner, operator); err != nil {
		return false, err
	}
	return out, nil
}

// OutcomeTokenBalance reads the ERC-1155 balance of one position id.
func OutcomeTokenBalance(ctx context.Context, caller Caller, registry, account common.Address, positionID *big.Int) (*big.Int, error) {
	var out *big.Int
	if err := call(ctx, caller, registry, conditionalTokensABI, "balanceOf", &out, account, positionID); err != nil {
		return nil, err
	}
	return out, nil
}
