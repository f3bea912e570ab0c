package pricing

import (
	"context"
	"fmt"
	"math/big"

	"IntentVault/internal/model"
)

// Config controls the verifier's price source.
type Config struct {
	// UseTWAP switches both legs from last price to a time-weighted average,
	// a more manipulation-resistant input at the cost of reaction speed.
	UseTWAP bool
	// TWAPRecords is the number of historical samples averaged per leg.
	TWAPRecords uint32
}

// DefaultTWAPRecords matches the source protocol's smoothing window.
const DefaultTWAPRecords uint32 = 5

// Verifier is the stateless facade deciding whether an intent's target price
// has been reached.
type Verifier struct {
	oracle Oracle
	cfg    Config
}

func NewVerifier(oracle Oracle, cfg Config) *Verifier {
	if cfg.UseTWAP && cfg.TWAPRecords == 0 {
		cfg.TWAPRecords = DefaultTWAPRecords
	}
	return &Verifier{oracle: oracle, cfg: cfg}
}

// legPrice fetches one asset's base-currency price per the configured source.
func (v *Verifier) legPrice(ctx context.Context, asset Asset) (*big.Int, error) {
	if v.cfg.UseTWAP {
		return v.oracle.TWAP(ctx, asset, v.cfg.TWAPRecords)
	}

	pd, err := v.oracle.LastPrice(ctx, asset)
	if err != nil {
		return nil, err
	}
	return pd.Price, nil
}

// CrossRate returns sellToken's price in buyToken units, scaled by
// PriceScale: price(sell)*PriceScale/price(buy), floor. Both legs are quoted
// in the oracle's base currency, so the base cancels out of the ratio.
func (v *Verifier) CrossRate(ctx context.Context, sellToken, buyToken model.Token) (*big.Int, error) {
	sellPrice, err := v.legPrice(ctx, TokenAsset(sellToken))
	if err != nil {
		return nil, fmt.Errorf("sell leg %s: %w", sellToken, err)
	}

	buyPrice, err := v.legPrice(ctx, TokenAsset(buyToken))
	if err != nil {
		return nil, fmt.Errorf("buy leg %s: %w", buyToken, err)
	}

	return ScaledRatio(sellPrice, buyPrice)
}

// IsSatisfied reports whether the intent's price condition holds, along with
// the current cross-rate. The condition is crossRate >= targetPrice:
// equality counts as satisfied, and a rising sell-token value relative to
// the buy token is what triggers execution.
func (v *Verifier) IsSatisfied(ctx context.Context, in *model.Intent) (bool, *big.Int, error) {
	rate, err := v.CrossRate(ctx, in.SellToken, in.BuyToken)
	if err != nil {
		return false, nil, err
	}
	return rate.Cmp(in.TargetPrice) >= 0, rate, nil
}

// TokenTWAP exposes the smoothing query for a single asset.
func (v *Verifier) TokenTWAP(ctx context.Context, asset Asset, records uint32) (*big.Int, error) {
	return v.oracle.TWAP(ctx, asset, records)
}
