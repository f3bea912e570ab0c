package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"IntentVault/internal/engine"
	"IntentVault/internal/observability"
)

// Worker drains the engine's persist channel and batch-writes to Postgres.
// The engine sends on that channel with a blocking send, so if this worker
// falls behind, settlement stalls rather than losing an event.
type Worker struct {
	writer       *Writer
	input        <-chan engine.Output
	batchSize    int
	flushTimeout time.Duration
	log          zerolog.Logger
	metrics      *observability.Metrics
}

func NewWorker(
	db *sql.DB,
	input <-chan engine.Output,
	batchSize int,
	flushTimeout time.Duration,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		writer:       NewWriter(db),
		input:        input,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		log:          log,
		metrics:      metrics,
	}
}

// Run batches incoming outputs and flushes either when the batch is full or
// the flush timeout expires. Blocks until ctx is cancelled or the input
// channel closes; a final flush drains whatever is buffered.
func (w *Worker) Run(ctx context.Context) error {
	batch := make([]engine.Output, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				if err := w.flush(context.Background(), batch); err != nil {
					w.log.Error().Err(err).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case out, ok := <-w.input:
			if !ok {
				if len(batch) > 0 {
					if err := w.flush(context.Background(), batch); err != nil {
						w.log.Error().Err(err).Msg("final flush failed")
					}
				}
				return nil
			}

			batch = append(batch, out)
			if len(batch) >= w.batchSize {
				if err := w.flushWithRetry(ctx, batch); err != nil {
					w.log.Error().Err(err).Msg("batch flush failed after retries")
				}
				batch = batch[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				if err := w.flushWithRetry(ctx, batch); err != nil {
					w.log.Error().Err(err).Msg("timeout flush failed after retries")
				}
				batch = batch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff until the write succeeds
// or the context is cancelled. The worker never drops a batch; on shutdown
// it attempts one final flush with a background context.
func (w *Worker) flushWithRetry(ctx context.Context, batch []engine.Output) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.log.Warn().Int("attempt", attempt).Dur("backoff", backoff).
				Int("events", len(batch)).Msg("persistence retry")
			select {
			case <-ctx.Done():
				if err := w.flush(context.Background(), batch); err != nil {
					return fmt.Errorf("final flush on shutdown: %w", err)
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := w.flush(ctx, batch)
		if err == nil {
			if attempt > 0 {
				w.log.Info().Int("retries", attempt).Msg("persistence flush recovered")
			}
			return nil
		}

		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("retry").Inc()
		}
	}
}

// flush writes one batch in a single transaction: event rows, projection
// upserts, and the watermark all commit or none do.
func (w *Worker) flush(ctx context.Context, batch []engine.Output) error {
	start := time.Now()

	tx, err := w.writer.db.BeginTx(ctx, nil)
	if err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return err
	}
	defer tx.Rollback()

	events := make([]EventRow, 0, len(batch))
	for _, out := range batch {
		events = append(events, EventRow{
			Sequence:  out.Envelope.Sequence,
			EventID:   out.Envelope.EventID.String(),
			EventType: out.Envelope.Type.String(),
			Payload:   out.Envelope.Payload,
			Timestamp: out.Envelope.Timestamp,
		})
	}

	if err := w.writer.WriteEventBatch(ctx, tx, events); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_events").Inc()
		}
		return err
	}

	for _, out := range batch {
		if err := w.writer.UpsertBalances(ctx, tx, out.Balances, out.Envelope.Sequence); err != nil {
			if w.metrics != nil {
				w.metrics.PersistErrors.WithLabelValues("upsert_balances").Inc()
			}
			return err
		}
		if out.Intent != nil {
			if err := w.writer.UpsertIntent(ctx, tx, out.Intent, out.Envelope.Sequence); err != nil {
				if w.metrics != nil {
					w.metrics.PersistErrors.WithLabelValues("upsert_intent").Inc()
				}
				return err
			}
		}
	}

	last := batch[len(batch)-1].Envelope.Sequence
	if err := w.writer.SetWatermark(ctx, tx, last); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("watermark").Inc()
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistBatchSize.Observe(float64(len(batch)))
		w.metrics.PersistEventsWritten.Add(float64(len(batch)))
		w.metrics.PersistLastSequence.Set(float64(last))
	}

	return nil
}
