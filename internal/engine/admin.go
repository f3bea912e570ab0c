package engine

import (
	"context"
	"fmt"
	"math/big"

	"IntentVault/internal/errs"
	"IntentVault/internal/model"
	"IntentVault/internal/pricing"
)

// Admin returns the configured admin principal.
func (e *Engine) Admin() model.Address {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.admin
}

// Router returns the configured swap-venue address.
func (e *Engine) Router() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.routerAddr
}

// OracleAddr returns the configured oracle address.
func (e *Engine) OracleAddr() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.oracleAddr
}

// SetRouter swaps the external swap-venue collaborator. Admin only.
func (e *Engine) SetRouter(admin model.Address, addr string, venue SwapVenue) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if admin != e.admin {
		return fmt.Errorf("set router by %s: %w", admin, errs.ErrUnauthorized)
	}

	e.routerAddr = addr
	e.venue = venue
	e.log.Info().Str("router", addr).Msg("router updated")
	return nil
}

// SetOracle swaps the external price-oracle collaborator and rebuilds the
// verifier over it. Admin only.
func (e *Engine) SetOracle(admin model.Address, addr string, oracle pricing.Oracle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if admin != e.admin {
		return fmt.Errorf("set oracle by %s: %w", admin, errs.ErrUnauthorized)
	}

	e.oracleAddr = addr
	e.oracle = oracle
	e.verifier = pricing.NewVerifier(oracle, e.pricing)
	e.log.Info().Str("oracle", addr).Msg("oracle updated")
	return nil
}

// GetPriceQuote asks the swap venue for the indicative output of selling
// sellAmount. Advisory only; settlement never consults it.
func (e *Engine) GetPriceQuote(ctx context.Context, sellToken, buyToken model.Token, sellAmount *big.Int) (*big.Int, error) {
	e.mu.RLock()
	venue := e.venue
	e.mu.RUnlock()

	if venue == nil {
		return nil, fmt.Errorf("no router configured: %w", errs.ErrUnauthorized)
	}
	return venue.Quote(ctx, sellToken, buyToken, sellAmount)
}

// GetTokenPrice returns the oracle's latest base-currency price for a token.
func (e *Engine) GetTokenPrice(ctx context.Context, token model.Token) (*pricing.PriceData, error) {
	oracle, err := e.currentOracle()
	if err != nil {
		return nil, err
	}
	return oracle.LastPrice(ctx, pricing.TokenAsset(token))
}

// GetTokenCrossRate returns the oracle's direct cross price for a pair.
func (e *Engine) GetTokenCrossRate(ctx context.Context, sellToken, buyToken model.Token) (*pricing.PriceData, error) {
	oracle, err := e.currentOracle()
	if err != nil {
		return nil, err
	}
	return oracle.CrossLastPrice(ctx, pricing.TokenAsset(sellToken), pricing.TokenAsset(buyToken))
}

// GetTokenTWAP returns the time-weighted average over the last records
// samples for a token.
func (e *Engine) GetTokenTWAP(ctx context.Context, token model.Token, records uint32) (*big.Int, error) {
	oracle, err := e.currentOracle()
	if err != nil {
		return nil, err
	}
	return oracle.TWAP(ctx, pricing.TokenAsset(token), records)
}

// GetOracleSupportedAssets lists every asset the oracle quotes, so callers
// know which tokens have price feeds.
func (e *Engine) GetOracleSupportedAssets(ctx context.Context) ([]pricing.Asset, error) {
	oracle, err := e.currentOracle()
	if err != nil {
		return nil, err
	}
	return oracle.SupportedAssets(ctx)
}

// GetOracleDecimals returns the oracle's price precision.
func (e *Engine) GetOracleDecimals(ctx context.Context) (uint32, error) {
	oracle, err := e.currentOracle()
	if err != nil {
		return 0, err
	}
	return oracle.Decimals(ctx)
}

func (e *Engine) currentOracle() (pricing.Oracle, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.oracle == nil {
		return nil, fmt.Errorf("no oracle configured: %w", errs.ErrUnauthorized)
	}
	return e.oracle, nil
}
