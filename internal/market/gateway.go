package market

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	pkgerrors "github.com/pkg/errors"

	"github.com/predictfi/gomarket/internal/contracts"
	"github.com/predictfi/gomarket/pkg/cache"
)

// StateQuery is the read-only view of chain state the orchestrator builds
// batches from. Every method is independent and idempotent: re-running the
// query phase without an intervening submission yields identical answers.
type StateQuery interface {
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error)
	ConditionExists(ctx context.Context, conditionID common.Hash) (bool, error)
	// ConditionOutcomeSlotCount returns ErrNotFound for unprepared conditions.
	ConditionOutcomeSlotCount(ctx context.Context, conditionID common.Hash) (uint, error)
	IsConditionResolved(ctx context.Context, conditionID common.Hash) (bool, error)
	// WinningOutcome returns ErrNotFound while the condition is unresolved.
	WinningOutcome(ctx context.Context, conditionID common.Hash, outcomeSlotCount uint) (uint, error)
	CalcBuyAmount(ctx context.Context, market common.Address, investment *big.Int, outcomeIndex uint) (*big.Int, error)
	CalcSellAmount(ctx context.Context, market common.Address, returnAmount *big.Int, outcomeIndex uint) (*big.Int, error)
	FeesWithdrawableBy(ctx context.Context, market, account common.Address) (*big.Int, error)
	PoolTotalSupply(ctx context.Context, market common.Address) (*big.Int, error)
	PoolShareBalance(ctx context.Context, market, account common.Address) (*big.Int, error)
	OutcomeTokenBalance(ctx context.Context, account common.Address, positionID *big.Int) (*big.Int, error)
	MarketCollateralToken(ctx context.Context, market common.Address) (common.Address, error)
	MarketConditionID(ctx context.Context, market common.Address) (common.Hash, error)
	HasCode(ctx context.Context, account common.Address) (bool, error)
}

// CodeReader is the extra read surface beyond contracts.Caller.
// *ethclient.Client satisfies both.
type CodeReader interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// ChainGateway implements StateQuery against a live chain. The only caching
// is the positive condition-existence fact: a prepared condition never
// un-prepares, so a cached true can never flip a workflow decision.
type ChainGateway struct {
	caller   contracts.Caller
	code     CodeReader
	registry common.Address
	exists   *cache.InMemoryCache[common.Hash, bool]
}

func NewChainGateway(caller contracts.Caller, code CodeReader, registry common.Address) *ChainGateway {
	return &ChainGateway{
		caller:   caller,
		code:     code,
		registry: registry,
		exists:   cache.NewInMemoryCache[common.Hash, bool](10 * time.Minute),
	}
}

func (g *ChainGateway) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := contracts.ERC20Allowance(ctx, g.caller, token, owner, spender)
	return out, pkgerrors.Wrap(err, "allowance")
}

func (g *ChainGateway) IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error) {
	out, err := contracts.IsApprovedForAll(ctx, g.caller, g.registry, owner, operator)
	return out, pkgerrors.Wrap(err, "isApprovedForAll")
}

func (g *ChainGateway) ConditionExists(ctx context.Context, conditionID common.Hash) (bool, error) {
	if hit, ok := g.exists.Get(conditionID); ok && hit {
		return true, nil
	}
	count, err := contracts.ConditionOutcomeSlotCount(ctx, g.caller, g.registry, conditionID)
	if err != nil {
		return false, pkgerrors.Wrap(err, "getOutcomeSlotCount")
	}
	exists := count.Sign() > 0
	if exists {
		g.exists.Set(conditionID, true, 0)
	}
	return exists, nil
}

func (g *ChainGateway) ConditionOutcomeSlotCount(ctx context.Context, conditionID common.Hash) (uint, error) {
	count, err := contracts.ConditionOutcomeSlotCount(ctx, g.caller, g.registry, conditionID)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "getOutcomeSlotCount")
	}
	if count.Sign() == 0 {
		return 0, ErrNotFound
	}
	return uint(count.Uint64()), nil
}

func (g *ChainGateway) IsConditionResolved(ctx context.Context, conditionID common.Hash) (bool, error) {
	den, err := contracts.PayoutDenominator(ctx, g.caller, g.registry, conditionID)
	if err != nil {
		return false, pkgerrors.Wrap(err, "payoutDenominator")
	}
	return den.Sign() > 0, nil
}

func (g *ChainGateway) WinningOutcome(ctx context.Context, conditionID common.Hash, outcomeSlotCount uint) (uint, error) {
	resolved, err := g.IsConditionResolved(ctx, conditionID)
	if err != nil {
		return 0, err
	}
	if !resolved {
		return 0, ErrNotFound
	}
	for i := uint(0); i < outcomeSlotCount; i++ {
		num, err := contracts.PayoutNumerator(ctx, g.caller, g.registry, conditionID, i)
		if err != nil {
			return 0, pkgerrors.Wrap(err, "payoutNumerators")
		}
		if num.Sign() > 0 {
			return i, nil
		}
	}
	return 0, ErrNotFound
}

func (g *ChainGateway) CalcBuyAmount(ctx context.Context, market common.Address, investment *big.Int, outcomeIndex uint) (*big.Int, error) {
	out, err := contracts.CalcBuyAmount(ctx, g.caller, market, investment, outcomeIndex)
	return out, pkgerrors.Wrap(err, "calcBuyAmount")
}

func (g *ChainGateway) CalcSellAmount(ctx context.Context, market common.Address, returnAmount *big.Int, outcomeIndex uint) (*big.Int, error) {
	out, err := contracts.CalcSellAmount(ctx, g.caller, market, returnAmount, outcomeIndex)
	return out, pkgerrors.Wrap(err, "calcSellAmount")
}

func (g *ChainGateway) FeesWithdrawableBy(ctx context.Context, market, account common.Address) (*big.Int, error) {
	out, err := contracts.FeesWithdrawableBy(ctx, g.caller, market, account)
	return out, pkgerrors.Wrap(err, "feesWithdrawableBy")
}

func (g *ChainGateway) PoolTotalSupply(ctx context.Context, market common.Address) (*big.Int, error) {
	out, err := contracts.PoolTotalSupply(ctx, g.caller, market)
	return out, pkgerrors.Wrap(err, "totalSupply")
}

func (g *ChainGateway) PoolShareBalance(ctx context.Context, market, account common.Address) (*big.Int, error) {
	out, err := contracts.PoolShareBalance(ctx, g.caller, market, account)
	return out, pkgerrors.Wrap(err, "pool balanceOf")
}

func (g *ChainGateway) OutcomeTokenBalance(ctx context.Context, account common.Address, positionID *big.Int) (*big.Int, error) {
	out, err := contracts.OutcomeTokenBalance(ctx, g.caller, g.registry, account, positionID)
	return out, pkgerrors.Wrap(err, "outcome balanceOf")
}

func (g *ChainGateway) MarketCollateralToken(ctx context.Context, market common.Address) (common.Address, error) {
	out, err := contracts.MarketCollateralToken(ctx, g.caller, market)
	return out, pkgerrors.Wrap(err, "collateralToken")
}

func (g *ChainGateway) MarketConditionID(ctx context.Context, market common.Address) (common.Hash, error) {
	out, err := contracts.MarketConditionID(ctx, g.caller, market)
	return out, pkgerrors.Wrap(err, "conditionIds")
}

func (g *ChainGateway) HasCode(ctx context.Context, account common.Address) (bool, error) {
	code, err := g.code.CodeAt(ctx, account, nil)
	if err != nil {
		return false, pkgerrors.Wrap(err, "codeAt")
	}
	return len(code) > 0, nil
}
