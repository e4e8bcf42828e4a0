package market

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestDistributionHint(t *testing.T) {
	t.Run("empty vector means no hint", func(t *testing.T) {
		hints, err := DistributionHint(nil)
		require.NoError(t, err)
		require.Nil(t, hints)
	})

	t.Run("uniform probabilities give equal hints", func(t *testing.T) {
		hints, err := DistributionHint([]decimal.Decimal{dec("0.5"), dec("0.5")})
		require.NoError(t, err)
		require.Len(t, hints, 2)
		require.Equal(t, hints[0], hints[1])
	})

	t.Run("hints preserve relative odds", func(t *testing.T) {
		// hint_i = prod of the other probabilities, so a likelier outcome
		// gets a smaller initial balance and therefore a higher price.
		hints, err := DistributionHint([]decimal.Decimal{dec("0.8"), dec("0.2")})
		require.NoError(t, err)
		require.Equal(t, -1, hints[0].Cmp(hints[1]))
		// hint ratio equals the inverse probability ratio: 0.2/0.8 = 1/4
		require.Equal(t, new(big.Int).Mul(hints[0], big.NewInt(4)), hints[1])
	})

	t.Run("three outcomes", func(t *testing.T) {
		hints, err := DistributionHint([]decimal.Decimal{dec("0.5"), dec("0.3"), dec("0.2")})
		require.NoError(t, err)
		require.Len(t, hints, 3)
		// 0.3*0.2 < 0.5*0.2 < 0.5*0.3
		require.Equal(t, -1, hints[0].Cmp(hints[1]))
		require.Equal(t, -1, hints[1].Cmp(hints[2]))
	})

	t.Run("rounding within tolerance is accepted", func(t *testing.T) {
		_, err := DistributionHint([]decimal.Decimal{dec("0.333"), dec("0.333"), dec("0.334")})
		require.NoError(t, err)
	})

	t.Run("bad sum rejected", func(t *testing.T) {
		_, err := DistributionHint([]decimal.Decimal{dec("0.6"), dec("0.6")})
		require.Error(t, err)
	})

	t.Run("non-positive probability rejected", func(t *testing.T) {
		_, err := DistributionHint([]decimal.Decimal{dec("1"), dec("0")})
		require.Error(t, err)
	})
}

func TestSlippageBounds(t *testing.T) {
	require.Equal(t, big.NewInt(94), applySlippage(big.NewInt(95), 100))
	require.Equal(t, big.NewInt(95), applySlippage(big.NewInt(95), 0))
	require.Equal(t, big.NewInt(111), addSlippage(big.NewInt(110), 100))
	require.Equal(t, big.NewInt(110), addSlippage(big.NewInt(110), 0))
}
