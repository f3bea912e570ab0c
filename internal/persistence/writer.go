// Package persistence writes committed vault events and their projections to
// Postgres. The event log is the durable source of truth; the projection
// tables exist so queries and recovery never replay the full log.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"IntentVault/internal/engine"
	"IntentVault/internal/model"
)

// EventRow is one row in event_log.events.
type EventRow struct {
	Sequence  int64
	EventID   string
	EventType string
	Payload   []byte
	Timestamp time.Time
}

// Writer issues the batch statements for one flush transaction.
type Writer struct {
	db *sql.DB
}

func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// WriteEventBatch appends events to the log with a multi-row INSERT.
// ON CONFLICT DO NOTHING makes replays after a crash idempotent.
func (w *Writer) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.events
		(sequence, event_id, event_type, payload, created_at)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*5)

	for i, e := range events {
		base := i * 5
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5,
		))
		args = append(args, e.Sequence, e.EventID, e.EventType, e.Payload, e.Timestamp)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// UpsertBalances writes the post-commit balance rows carried by a batch.
// Later sequences win, so replaying an old batch never regresses a row.
func (w *Writer) UpsertBalances(ctx context.Context, tx *sql.Tx, updates []engine.BalanceUpdate, sequence int64) error {
	if len(updates) == 0 {
		return nil
	}

	const query = `INSERT INTO projections.balances
		(owner, token, available, locked, updated_sequence)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner, token) DO UPDATE SET
			available = EXCLUDED.available,
			locked = EXCLUDED.locked,
			updated_sequence = EXCLUDED.updated_sequence
		WHERE projections.balances.updated_sequence < EXCLUDED.updated_sequence`

	for _, u := range updates {
		if _, err := tx.ExecContext(ctx, query,
			string(u.Owner), string(u.Token),
			u.Available.String(), u.Locked.String(), sequence,
		); err != nil {
			return err
		}
	}
	return nil
}

// UpsertIntent writes the post-commit state of one intent.
func (w *Writer) UpsertIntent(ctx context.Context, tx *sql.Tx, in *model.Intent, sequence int64) error {
	const query = `INSERT INTO projections.intents
		(id, creator, sell_token, sell_amount, buy_token, min_buy_amount,
		 target_price, incentive, expiry, status, executor, actual_buy_amount,
		 updated_sequence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			executor = EXCLUDED.executor,
			actual_buy_amount = EXCLUDED.actual_buy_amount,
			updated_sequence = EXCLUDED.updated_sequence
		WHERE projections.intents.updated_sequence < EXCLUDED.updated_sequence`

	var executor *string
	if in.Executor != nil {
		s := string(*in.Executor)
		executor = &s
	}
	var actual *string
	if in.ActualBuyAmount != nil {
		s := in.ActualBuyAmount.String()
		actual = &s
	}

	_, err := tx.ExecContext(ctx, query,
		in.ID, string(in.Creator),
		string(in.SellToken), in.SellAmount.String(),
		string(in.BuyToken), in.MinBuyAmount.String(),
		in.TargetPrice.String(), in.Incentive.String(),
		in.Expiry, int32(in.Status), executor, actual,
		sequence,
	)
	return err
}

// SetWatermark records the last sequence whose projections are durable.
// Recovery resumes the event counter from here.
func (w *Writer) SetWatermark(ctx context.Context, tx *sql.Tx, sequence int64) error {
	const query = `INSERT INTO projections.watermark (id, last_sequence)
		VALUES (TRUE, $1)
		ON CONFLICT (id) DO UPDATE SET last_sequence = EXCLUDED.last_sequence
		WHERE projections.watermark.last_sequence < EXCLUDED.last_sequence`

	_, err := tx.ExecContext(ctx, query, sequence)
	return err
}
