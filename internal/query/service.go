// Package query serves read-only lookups from the Postgres projection
// tables. It never touches the live engine: reads reflect the last persisted
// batch, and every response carries the watermark it was served at.
package query

import (
	"context"
	"database/sql"
	"fmt"

	"IntentVault/internal/errs"
	"IntentVault/internal/model"
)

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// GetBalance returns one (owner, token) balance. A missing row is a zero
// balance, not an error.
func (s *Service) GetBalance(ctx context.Context, owner, token string) (*BalanceResponse, error) {
	asOf, err := s.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	resp := &BalanceResponse{
		Owner:        owner,
		Token:        token,
		Available:    "0",
		Locked:       "0",
		AsOfSequence: asOf,
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT available, locked FROM projections.balances
		WHERE owner = $1 AND token = $2
	`, owner, token).Scan(&resp.Available, &resp.Locked)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return resp, nil
}

// GetIntent returns one intent by id.
func (s *Service) GetIntent(ctx context.Context, id uint64) (*IntentResponse, error) {
	asOf, err := s.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, creator, sell_token, sell_amount, buy_token, min_buy_amount,
		       target_price, incentive, expiry, status, executor, actual_buy_amount
		FROM projections.intents
		WHERE id = $1
	`, id)

	resp, err := scanIntent(row, asOf)
	if err == sql.ErrNoRows {
		return nil, errs.ErrIntentNotFound
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ListUserIntents returns a creator's intents in creation order with
// cursor-based pagination: pass the last seen id as afterID to continue.
func (s *Service) ListUserIntents(ctx context.Context, creator string, status *string, limit int, afterID *uint64) (*IntentListResponse, error) {
	asOf, err := s.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	if limit <= 0 || limit > 500 {
		limit = 100
	}

	q := `
		SELECT id, creator, sell_token, sell_amount, buy_token, min_buy_amount,
		       target_price, incentive, expiry, status, executor, actual_buy_amount
		FROM projections.intents
		WHERE creator = $1`
	args := []interface{}{creator}
	argIdx := 2

	if status != nil {
		code, ok := statusCode(*status)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", *status)
		}
		q += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, code)
		argIdx++
	}
	if afterID != nil {
		q += fmt.Sprintf(" AND id > $%d", argIdx)
		args = append(args, *afterID)
		argIdx++
	}

	q += fmt.Sprintf(" ORDER BY id LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resp := &IntentListResponse{Creator: creator, AsOfSequence: asOf}
	for rows.Next() {
		in, err := scanIntent(rows, asOf)
		if err != nil {
			return nil, err
		}
		resp.Intents = append(resp.Intents, *in)
	}
	return resp, rows.Err()
}

func (s *Service) getWatermark(ctx context.Context) (int64, error) {
	var watermark int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_sequence FROM projections.watermark WHERE id`).Scan(&watermark)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return watermark, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIntent(row rowScanner, asOf int64) (*IntentResponse, error) {
	var (
		resp     IntentResponse
		status   int32
		executor sql.NullString
		actual   sql.NullString
	)
	if err := row.Scan(&resp.IntentID, &resp.Creator, &resp.SellToken,
		&resp.SellAmount, &resp.BuyToken, &resp.MinBuyAmount,
		&resp.TargetPrice, &resp.Incentive, &resp.Expiry, &status,
		&executor, &actual); err != nil {
		return nil, err
	}

	resp.Status = model.IntentStatus(status).String()
	if executor.Valid {
		resp.Executor = &executor.String
	}
	if actual.Valid {
		resp.ActualBuyAmount = &actual.String
	}
	resp.AsOfSequence = asOf
	return &resp, nil
}

func statusCode(name string) (int32, bool) {
	switch name {
	case model.IntentActive.String():
		return int32(model.IntentActive), true
	case model.IntentExecuted.String():
		return int32(model.IntentExecuted), true
	case model.IntentCancelled.String():
		return int32(model.IntentCancelled), true
	default:
		return 0, false
	}
}
