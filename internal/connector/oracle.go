package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"IntentVault/internal/errs"
	"IntentVault/internal/model"
	"IntentVault/internal/pricing"
)

// OracleClient reads prices from the external oracle service. It implements
// pricing.Oracle. A 404 from the oracle means the asset has no feed and maps
// to errs.ErrPriceUnavailable.
type OracleClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewOracleClient(baseURL string, timeout time.Duration) (*OracleClient, error) {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		return nil, fmt.Errorf("oracle: base url required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OracleClient{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type priceResponse struct {
	Price     string `json:"price"`
	Timestamp int64  `json:"timestamp"`
}

type twapResponse struct {
	Price string `json:"price"`
}

type decimalsResponse struct {
	Decimals uint32 `json:"decimals"`
}

type assetsResponse struct {
	Assets []assetDTO `json:"assets"`
}

type assetDTO struct {
	Kind   string `json:"kind"` // "token" or "symbol"
	Token  string `json:"token,omitempty"`
	Symbol string `json:"symbol,omitempty"`
}

func assetQuery(prefix string, a pricing.Asset) url.Values {
	v := url.Values{}
	switch a.Kind {
	case pricing.AssetToken:
		v.Set(prefix+"_kind", "token")
		v.Set(prefix+"_id", string(a.Token))
	case pricing.AssetSymbol:
		v.Set(prefix+"_kind", "symbol")
		v.Set(prefix+"_id", a.Symbol)
	}
	return v
}

func mergeValues(dst, src url.Values) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

// LastPrice returns the latest base-currency price for an asset.
func (c *OracleClient) LastPrice(ctx context.Context, asset pricing.Asset) (*pricing.PriceData, error) {
	var resp priceResponse
	if err := c.get(ctx, "/prices/last", assetQuery("asset", asset), &resp); err != nil {
		return nil, err
	}
	price, ok := model.ParseAmount(resp.Price)
	if !ok {
		return nil, fmt.Errorf("oracle: bad price %q for %s", resp.Price, asset)
	}
	return &pricing.PriceData{Price: price, Timestamp: resp.Timestamp}, nil
}

// TWAP returns the time-weighted average over the last records samples.
func (c *OracleClient) TWAP(ctx context.Context, asset pricing.Asset, records uint32) (*big.Int, error) {
	q := assetQuery("asset", asset)
	q.Set("records", fmt.Sprintf("%d", records))

	var resp twapResponse
	if err := c.get(ctx, "/prices/twap", q, &resp); err != nil {
		return nil, err
	}
	price, ok := model.ParseAmount(resp.Price)
	if !ok {
		return nil, fmt.Errorf("oracle: bad twap %q for %s", resp.Price, asset)
	}
	return price, nil
}

// CrossLastPrice returns the oracle's own base/quote cross price.
func (c *OracleClient) CrossLastPrice(ctx context.Context, base, quote pricing.Asset) (*pricing.PriceData, error) {
	q := assetQuery("base", base)
	mergeValues(q, assetQuery("quote", quote))

	var resp priceResponse
	if err := c.get(ctx, "/prices/cross", q, &resp); err != nil {
		return nil, err
	}
	price, ok := model.ParseAmount(resp.Price)
	if !ok {
		return nil, fmt.Errorf("oracle: bad cross price %q", resp.Price)
	}
	return &pricing.PriceData{Price: price, Timestamp: resp.Timestamp}, nil
}

// Decimals returns the oracle's price precision.
func (c *OracleClient) Decimals(ctx context.Context) (uint32, error) {
	var resp decimalsResponse
	if err := c.get(ctx, "/decimals", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Decimals, nil
}

// SupportedAssets lists every asset the oracle has a feed for.
func (c *OracleClient) SupportedAssets(ctx context.Context) ([]pricing.Asset, error) {
	var resp assetsResponse
	if err := c.get(ctx, "/assets", nil, &resp); err != nil {
		return nil, err
	}

	assets := make([]pricing.Asset, 0, len(resp.Assets))
	for _, a := range resp.Assets {
		switch a.Kind {
		case "token":
			assets = append(assets, pricing.TokenAsset(model.Token(a.Token)))
		case "symbol":
			assets = append(assets, pricing.SymbolAsset(a.Symbol))
		}
	}
	return assets, nil
}

func (c *OracleClient) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("oracle: request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("oracle: call: %v: %w", err, errs.ErrPriceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("oracle: no feed: %w", errs.ErrPriceUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("oracle: status %d: %w", resp.StatusCode, errs.ErrPriceUnavailable)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("oracle: decode: %w", err)
	}
	return nil
}
