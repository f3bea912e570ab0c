package pricing_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"IntentVault/internal/errs"
	"IntentVault/internal/model"
	"IntentVault/internal/pricing"
)

// fakeOracle serves scripted per-asset prices and TWAP values.
type fakeOracle struct {
	prices map[string]*big.Int
	twaps  map[string]*big.Int
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		prices: make(map[string]*big.Int),
		twaps:  make(map[string]*big.Int),
	}
}

func (f *fakeOracle) setPrice(token model.Token, price int64) {
	f.prices[pricing.TokenAsset(token).String()] = big.NewInt(price)
}

func (f *fakeOracle) setTWAP(token model.Token, price int64) {
	f.twaps[pricing.TokenAsset(token).String()] = big.NewInt(price)
}

func (f *fakeOracle) LastPrice(_ context.Context, asset pricing.Asset) (*pricing.PriceData, error) {
	p, ok := f.prices[asset.String()]
	if !ok {
		return nil, fmt.Errorf("no feed for %s: %w", asset, errs.ErrPriceUnavailable)
	}
	return &pricing.PriceData{Price: new(big.Int).Set(p), Timestamp: 1000}, nil
}

func (f *fakeOracle) TWAP(_ context.Context, asset pricing.Asset, _ uint32) (*big.Int, error) {
	p, ok := f.twaps[asset.String()]
	if !ok {
		return nil, fmt.Errorf("no twap for %s: %w", asset, errs.ErrPriceUnavailable)
	}
	return new(big.Int).Set(p), nil
}

func (f *fakeOracle) CrossLastPrice(ctx context.Context, base, quote pricing.Asset) (*pricing.PriceData, error) {
	bp, err := f.LastPrice(ctx, base)
	if err != nil {
		return nil, err
	}
	qp, err := f.LastPrice(ctx, quote)
	if err != nil {
		return nil, err
	}
	rate, err := pricing.ScaledRatio(bp.Price, qp.Price)
	if err != nil {
		return nil, err
	}
	return &pricing.PriceData{Price: rate, Timestamp: 1000}, nil
}

func (f *fakeOracle) Decimals(context.Context) (uint32, error) { return 7, nil }

func (f *fakeOracle) SupportedAssets(context.Context) ([]pricing.Asset, error) {
	out := make([]pricing.Asset, 0, len(f.prices))
	for k := range f.prices {
		out = append(out, pricing.SymbolAsset(k))
	}
	return out, nil
}

const (
	tokenX = model.Token("TOKEN_X")
	tokenY = model.Token("TOKEN_Y")
)

func TestCrossRate_FloorSemantics(t *testing.T) {
	oracle := newFakeOracle()
	// 1/3 scaled by 1e7 floors to 3_333_333.
	oracle.setPrice(tokenX, 1)
	oracle.setPrice(tokenY, 3)

	v := pricing.NewVerifier(oracle, pricing.Config{})
	rate, err := v.CrossRate(context.Background(), tokenX, tokenY)
	if err != nil {
		t.Fatalf("cross rate: %v", err)
	}
	if rate.Cmp(big.NewInt(3_333_333)) != 0 {
		t.Errorf("rate=%s, want 3333333", rate)
	}
}

func TestCrossRate_MissingLeg(t *testing.T) {
	oracle := newFakeOracle()
	oracle.setPrice(tokenX, 100)

	v := pricing.NewVerifier(oracle, pricing.Config{})
	if _, err := v.CrossRate(context.Background(), tokenX, tokenY); !errors.Is(err, errs.ErrPriceUnavailable) {
		t.Errorf("got %v, want ErrPriceUnavailable", err)
	}
	if _, err := v.CrossRate(context.Background(), tokenY, tokenX); !errors.Is(err, errs.ErrPriceUnavailable) {
		t.Errorf("got %v, want ErrPriceUnavailable", err)
	}
}

func TestIsSatisfied_Boundaries(t *testing.T) {
	tests := []struct {
		name      string
		sellPrice int64
		buyPrice  int64
		target    int64
		want      bool
	}{
		{"below target", 12, 100, 1_500_000, false}, // rate 1_200_000
		{"equal counts as satisfied", 15, 100, 1_500_000, true},
		{"above target", 20, 100, 1_500_000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := newFakeOracle()
			oracle.setPrice(tokenX, tt.sellPrice)
			oracle.setPrice(tokenY, tt.buyPrice)

			in := &model.Intent{
				SellToken:   tokenX,
				BuyToken:    tokenY,
				TargetPrice: big.NewInt(tt.target),
			}

			v := pricing.NewVerifier(oracle, pricing.Config{})
			ok, rate, err := v.IsSatisfied(context.Background(), in)
			if err != nil {
				t.Fatalf("is satisfied: %v", err)
			}
			if ok != tt.want {
				t.Errorf("satisfied=%v (rate=%s), want %v", ok, rate, tt.want)
			}
		})
	}
}

func TestIsSatisfied_TWAPLegs(t *testing.T) {
	oracle := newFakeOracle()
	// Spot would trigger, TWAP would not: the configured source must win.
	oracle.setPrice(tokenX, 20)
	oracle.setPrice(tokenY, 100)
	oracle.setTWAP(tokenX, 10)
	oracle.setTWAP(tokenY, 100)

	in := &model.Intent{
		SellToken:   tokenX,
		BuyToken:    tokenY,
		TargetPrice: big.NewInt(1_500_000),
	}

	v := pricing.NewVerifier(oracle, pricing.Config{UseTWAP: true, TWAPRecords: 5})
	ok, rate, err := v.IsSatisfied(context.Background(), in)
	if err != nil {
		t.Fatalf("is satisfied: %v", err)
	}
	if ok {
		t.Errorf("satisfied over TWAP legs (rate=%s), want not satisfied", rate)
	}
	if rate.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Errorf("twap rate=%s, want 1000000", rate)
	}
}

func TestMulDiv_MultiplyBeforeDivide(t *testing.T) {
	// 3*5/15 == 1 exactly; dividing first would floor each operand to 0.
	got, err := pricing.MulDiv(big.NewInt(3), big.NewInt(5), big.NewInt(15))
	if err != nil {
		t.Fatalf("muldiv: %v", err)
	}
	if got.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("got %s, want 1", got)
	}
}

func TestMulDiv_Overflow(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 127)
	if _, err := pricing.MulDiv(huge, big.NewInt(2), big.NewInt(1)); !errors.Is(err, errs.ErrMathOverflow) {
		t.Errorf("got %v, want ErrMathOverflow", err)
	}
}

func TestCheckInt128_Bounds(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	if err := pricing.CheckInt128(max); err != nil {
		t.Errorf("2^127-1 should fit: %v", err)
	}
	if err := pricing.CheckInt128(new(big.Int).Add(max, big.NewInt(1))); !errors.Is(err, errs.ErrMathOverflow) {
		t.Errorf("2^127 should overflow, got %v", err)
	}

	min := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	if err := pricing.CheckInt128(min); err != nil {
		t.Errorf("-2^127 should fit: %v", err)
	}
	if err := pricing.CheckInt128(new(big.Int).Sub(min, big.NewInt(1))); !errors.Is(err, errs.ErrMathOverflow) {
		t.Errorf("-2^127-1 should overflow, got %v", err)
	}
}
