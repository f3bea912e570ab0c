// Package connector holds the HTTP clients for the vault's external
// collaborators: the custodial token ledger, the price oracle, and the swap
// router. Each client implements the capability interface its consumer
// declares, so the engine and vault never see HTTP.
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"IntentVault/internal/errs"
	"IntentVault/internal/model"
)

const defaultTimeout = 10 * time.Second

// TokenLedgerClient moves tokens between external accounts and the vault's
// custody account. It implements vault.TokenLedger.
type TokenLedgerClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewTokenLedgerClient(baseURL string, timeout time.Duration) (*TokenLedgerClient, error) {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		return nil, fmt.Errorf("token ledger: base url required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &TokenLedgerClient{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type transferRequest struct {
	Account string `json:"account"`
	Token   string `json:"token"`
	Amount  string `json:"amount"`
}

// TransferIn pulls amount of token from the account into vault custody.
func (c *TokenLedgerClient) TransferIn(ctx context.Context, from model.Address, token model.Token, amount *big.Int) error {
	return c.post(ctx, "/transfers/in", transferRequest{
		Account: string(from),
		Token:   string(token),
		Amount:  amount.String(),
	})
}

// TransferOut pays amount of token from vault custody to the account.
func (c *TokenLedgerClient) TransferOut(ctx context.Context, to model.Address, token model.Token, amount *big.Int) error {
	return c.post(ctx, "/transfers/out", transferRequest{
		Account: string(to),
		Token:   string(token),
		Amount:  amount.String(),
	})
}

func (c *TokenLedgerClient) post(ctx context.Context, path string, body transferRequest) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("token ledger: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("token ledger: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token ledger: call: %v: %w", err, errs.ErrTransferFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token ledger: status %d: %w", resp.StatusCode, errs.ErrTransferFailed)
	}
	return nil
}
