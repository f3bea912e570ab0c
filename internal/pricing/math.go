package pricing

import (
	"fmt"
	"math/big"

	"IntentVault/internal/errs"
	"IntentVault/internal/model"
)

// Scaled price arithmetic. Amounts and prices are at-least-128-bit signed
// integers; intermediates use big.Int so multiplication never wraps, and any
// result outside the 128-bit signed range fails with ErrMathOverflow.

var (
	priceScale = big.NewInt(model.PriceScale)

	// [-2^127, 2^127-1]
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// CheckInt128 rejects values outside the 128-bit signed range.
func CheckInt128(v *big.Int) error {
	if v.Cmp(maxInt128) > 0 || v.Cmp(minInt128) < 0 {
		return fmt.Errorf("value %s exceeds 128-bit range: %w", v, errs.ErrMathOverflow)
	}
	return nil
}

// MulDiv computes a*b/den with floor semantics, multiplying before dividing
// so no precision is lost. den must be positive.
func MulDiv(a, b, den *big.Int) (*big.Int, error) {
	if den.Sign() <= 0 {
		return nil, fmt.Errorf("division by %s: %w", den, errs.ErrMathOverflow)
	}

	out := new(big.Int).Mul(a, b)
	out.Quo(out, den)

	if err := CheckInt128(out); err != nil {
		return nil, err
	}
	return out, nil
}

// ScaledRatio computes num*PriceScale/den, the fixed-point representation of
// num/den. This is the cross-rate kernel: both legs are oracle base-currency
// prices, so the ratio is the buy-per-sell exchange rate.
func ScaledRatio(num, den *big.Int) (*big.Int, error) {
	return MulDiv(num, priceScale, den)
}
