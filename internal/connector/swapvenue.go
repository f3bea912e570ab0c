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

	"IntentVault/internal/model"
)

// SwapVenueClient fetches indicative swap quotes from the external router.
// It implements engine.SwapVenue. Quotes are advisory; the engine never
// settles against them.
type SwapVenueClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewSwapVenueClient(baseURL string, timeout time.Duration) (*SwapVenueClient, error) {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		return nil, fmt.Errorf("swap venue: base url required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &SwapVenueClient{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type quoteResponse struct {
	AmountOut string `json:"amount_out"`
}

// Quote returns the router's expected output for selling sellAmount.
func (c *SwapVenueClient) Quote(ctx context.Context, sellToken, buyToken model.Token, sellAmount *big.Int) (*big.Int, error) {
	q := url.Values{}
	q.Set("sell_token", string(sellToken))
	q.Set("buy_token", string(buyToken))
	q.Set("amount_in", sellAmount.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("swap venue: request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("swap venue: call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("swap venue: status %d", resp.StatusCode)
	}

	var payload quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("swap venue: decode: %w", err)
	}

	out, ok := model.ParseAmount(payload.AmountOut)
	if !ok {
		return nil, fmt.Errorf("swap venue: bad amount %q", payload.AmountOut)
	}
	return out, nil
}
