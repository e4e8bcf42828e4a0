package market

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// probabilitySumTolerance allows for rounding in user-supplied probability
// vectors (e.g. 0.333/0.333/0.334).
var probabilitySumTolerance = decimal.NewFromFloat(0.001)

// hintScale keeps integer hints large enough that the pool's implied odds
// survive rounding.
var hintScale = decimal.New(1, 18)

// DistributionHint converts an outcome probability vector into the integer
// hint vector the market factory seeds initial balances from. The pool prices
// an outcome inversely to its balance, so each hint is the product of all the
// OTHER outcomes' probabilities. An empty vector means uniform odds and maps
// to no hint at all.
func DistributionHint(probabilities []decimal.Decimal) ([]*big.Int, error) {
	if len(probabilities) == 0 {
		return nil, nil
	}
	sum := decimal.Zero
	for i, p := range probabilities {
		if p.Sign() <= 0 {
			return nil, fmt.Errorf("probability %d must be positive, got %s", i, p)
		}
		sum = sum.Add(p)
	}
	if sum.Sub(decimal.New(1, 0)).Abs().GreaterThan(probabilitySumTolerance) {
		return nil, fmt.Errorf("probabilities sum to %s, want 1", sum)
	}
	hints := make([]*big.Int, len(probabilities))
	for i := range probabilities {
		h := hintScale
		for j, p := range probabilities {
			if j != i {
				h = h.Mul(p)
			}
		}
		hints[i] = h.Round(0).BigInt()
		if hints[i].Sign() <= 0 {
			return nil, fmt.Errorf("probability vector too skewed: hint %d rounds to zero", i)
		}
	}
	return hints, nil
}

// applySlippage shaves bps off a quoted amount, rounding down, to produce the
// minimum acceptable fill.
func applySlippage(quoted *big.Int, bps uint) *big.Int {
	out := new(big.Int).Mul(quoted, big.NewInt(int64(10000-bps)))
	return out.Div(out, big.NewInt(10000))
}

// addSlippage pads a quoted amount up by bps, producing the maximum the
// caller is willing to spend.
func addSlippage(quoted *big.Int, bps uint) *big.Int {
	out := new(big.Int).Mul(quoted, big.NewInt(int64(10000+bps)))
	return out.Div(out, big.NewInt(10000))
}
