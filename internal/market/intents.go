package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/predictfi/gomarket/internal/contracts"
)

// MarketRef is a handle to a deployed market maker. Collateral and condition
// are resolved once (see Orchestrator.ResolveMarket) and treated as immutable
// for the lifetime of the reference.
type MarketRef struct {
	Address          common.Address
	Collateral       common.Address
	ConditionID      common.Hash
	OutcomeSlotCount uint
}

// BuyParams buys outcome shares for Amount of collateral.
type BuyParams struct {
	Market       MarketRef
	Amount       *big.Int
	OutcomeIndex uint
}

// SellParams sells outcome shares for exactly ReturnAmount of collateral.
type SellParams struct {
	Market       MarketRef
	ReturnAmount *big.Int
	OutcomeIndex uint
}

// CreateMarketParams deploys a new market maker, funding it in the same
// batch. QuestionID may reference an already-asked oracle question; when it
// is zero, Question is registered with the oracle inside the batch and the
// id is derived deterministically ahead of time.
type CreateMarketParams struct {
	Collateral         common.Address
	CollateralIsNative bool
	Funding            *big.Int
	Fee                *big.Int
	// Oracle is the adapter recorded as the condition's reporter; the
	// configured default is used when zero.
	Oracle common.Address
	QuestionID         common.Hash
	Question           contracts.QuestionParams
	// OutcomeProbabilities must sum to 1 within tolerance; its length is the
	// market's outcome slot count.
	OutcomeProbabilities []decimal.Decimal
}

// AddFundingParams deposits liquidity into an existing market.
type AddFundingParams struct {
	Market             MarketRef
	Amount             *big.Int
	CollateralIsNative bool
}

// RemoveFundingParams burns pool shares, merges the freed positions back to
// collateral, and pays the proceeds plus earned fees out to the user.
type RemoveFundingParams struct {
	Market       MarketRef
	SharesToBurn *big.Int
}

// ResolutionPayload carries the oracle question data needed to resolve a
// condition that the registry does not know the answer to yet. The reported
// outcome comes from the oracle's finalized answer.
type ResolutionPayload struct {
	QuestionID      common.Hash
	TemplateID      uint
	RawQuestion     string
	ReportedOutcome uint
}

// RedeemParams claims winnings for a condition the proxy holds positions in.
type RedeemParams struct {
	Collateral       common.Address
	ConditionID      common.Hash
	OutcomeSlotCount uint
	Resolution       ResolutionPayload
}

// Result is the confirmed outcome of one intent.
type Result struct {
	TxHash  common.Hash
	Receipt *ethtypes.Receipt
}

// CreateMarketResult additionally reports the address the market maker was
// deployed to, which equals the prediction by construction of the salt
// scheme.
type CreateMarketResult struct {
	Result
	MarketAddress common.Address
}
