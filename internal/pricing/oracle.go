// Package pricing decides whether an intent's price condition holds. It
// converts oracle readings into scaled cross-rates and a yes/no trigger
// decision; all arithmetic is integer, multiply-before-divide, floor.
package pricing

import (
	"context"
	"math/big"

	"IntentVault/internal/model"
)

// AssetKind discriminates the oracle asset variants.
type AssetKind int32

const (
	// AssetToken references an on-chain token held by the vault.
	AssetToken AssetKind = iota
	// AssetSymbol references an external currency/commodity code, usable for
	// price reference only, never tradable directly.
	AssetSymbol
)

// Asset is a tagged variant identifying something the oracle can quote.
type Asset struct {
	Kind   AssetKind
	Token  model.Token
	Symbol string
}

// TokenAsset wraps a vault token as an oracle asset.
func TokenAsset(t model.Token) Asset {
	return Asset{Kind: AssetToken, Token: t}
}

// SymbolAsset wraps an external symbol as an oracle asset.
func SymbolAsset(s string) Asset {
	return Asset{Kind: AssetSymbol, Symbol: s}
}

func (a Asset) String() string {
	if a.Kind == AssetSymbol {
		return "sym:" + a.Symbol
	}
	return "token:" + string(a.Token)
}

// PriceData is one oracle price record in the oracle's base currency.
type PriceData struct {
	Price     *big.Int
	Timestamp int64
}

// Oracle is the external price feed capability. Implementations return an
// error wrapping errs.ErrPriceUnavailable when an asset has no feed.
type Oracle interface {
	// LastPrice returns the most recent price record for the asset.
	LastPrice(ctx context.Context, asset Asset) (*PriceData, error)

	// TWAP returns the time-weighted average over the last records samples.
	TWAP(ctx context.Context, asset Asset, records uint32) (*big.Int, error)

	// CrossLastPrice returns the most recent direct cross price for a pair.
	CrossLastPrice(ctx context.Context, base, quote Asset) (*PriceData, error)

	// Decimals returns the price precision of the feed.
	Decimals(ctx context.Context) (uint32, error)

	// SupportedAssets lists every asset the oracle quotes.
	SupportedAssets(ctx context.Context) ([]Asset, error)
}
