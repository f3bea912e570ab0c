package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"IntentVault/internal/intent"
	"IntentVault/internal/model"
	"IntentVault/internal/vault"
)

// Loader rebuilds in-memory state from the projection tables at startup.
// Projections commit in the same transaction as the event rows, so the
// watermark sequence is exactly the state the tables describe.
type Loader struct {
	db *sql.DB
}

func NewLoader(db *sql.DB) *Loader {
	return &Loader{db: db}
}

// LoadState populates the ledger and intent store from the projections and
// returns the watermark sequence to seed the engine's event counter.
func (l *Loader) LoadState(ctx context.Context, ledger *vault.Ledger, intents *intent.Store) (int64, error) {
	if err := l.loadBalances(ctx, ledger); err != nil {
		return 0, fmt.Errorf("load balances: %w", err)
	}
	if err := l.loadIntents(ctx, intents); err != nil {
		return 0, fmt.Errorf("load intents: %w", err)
	}

	watermark, err := l.loadWatermark(ctx)
	if err != nil {
		return 0, fmt.Errorf("load watermark: %w", err)
	}
	return watermark, nil
}

func (l *Loader) loadBalances(ctx context.Context, ledger *vault.Ledger) error {
	rows, err := l.db.QueryContext(ctx,
		`SELECT owner, token, available, locked FROM projections.balances`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var owner, token, available, locked string
		if err := rows.Scan(&owner, &token, &available, &locked); err != nil {
			return err
		}

		av, ok := model.ParseAmount(available)
		if !ok {
			return fmt.Errorf("balance row (%s, %s): bad available %q", owner, token, available)
		}
		lk, ok := model.ParseAmount(locked)
		if !ok {
			return fmt.Errorf("balance row (%s, %s): bad locked %q", owner, token, locked)
		}

		ledger.Restore(model.Address(owner), model.Token(token), &model.Balance{
			Available: av,
			Locked:    lk,
		})
	}
	return rows.Err()
}

// loadIntents restores intents in id order so the store's id counter and the
// per-user indexes come back in creation order.
func (l *Loader) loadIntents(ctx context.Context, intents *intent.Store) error {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, creator, sell_token, sell_amount, buy_token, min_buy_amount,
		       target_price, incentive, expiry, status, executor, actual_buy_amount
		FROM projections.intents
		ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id                           uint64
			creator, sellToken, buyToken string
			sellAmount, minBuyAmount     string
			targetPrice, incentive       string
			expiry                       int64
			status                       int32
			executor, actualBuyAmount    sql.NullString
		)
		if err := rows.Scan(&id, &creator, &sellToken, &sellAmount, &buyToken,
			&minBuyAmount, &targetPrice, &incentive, &expiry, &status,
			&executor, &actualBuyAmount); err != nil {
			return err
		}

		in := &model.Intent{
			ID:        id,
			Creator:   model.Address(creator),
			SellToken: model.Token(sellToken),
			BuyToken:  model.Token(buyToken),
			Expiry:    expiry,
			Status:    model.IntentStatus(status),
		}

		var ok bool
		if in.SellAmount, ok = model.ParseAmount(sellAmount); !ok {
			return fmt.Errorf("intent %d: bad sell_amount %q", id, sellAmount)
		}
		if in.MinBuyAmount, ok = model.ParseAmount(minBuyAmount); !ok {
			return fmt.Errorf("intent %d: bad min_buy_amount %q", id, minBuyAmount)
		}
		if in.TargetPrice, ok = model.ParseAmount(targetPrice); !ok {
			return fmt.Errorf("intent %d: bad target_price %q", id, targetPrice)
		}
		if in.Incentive, ok = model.ParseAmount(incentive); !ok {
			return fmt.Errorf("intent %d: bad incentive %q", id, incentive)
		}
		if executor.Valid {
			addr := model.Address(executor.String)
			in.Executor = &addr
		}
		if actualBuyAmount.Valid {
			if in.ActualBuyAmount, ok = model.ParseAmount(actualBuyAmount.String); !ok {
				return fmt.Errorf("intent %d: bad actual_buy_amount %q", id, actualBuyAmount.String)
			}
		}

		intents.Restore(in)
	}
	return rows.Err()
}

func (l *Loader) loadWatermark(ctx context.Context) (int64, error) {
	var watermark int64
	err := l.db.QueryRowContext(ctx,
		`SELECT last_sequence FROM projections.watermark WHERE id`).Scan(&watermark)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return watermark, nil
}
