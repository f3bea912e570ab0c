// Package stream publishes committed vault events to NATS JetStream for
// downstream consumers. Publishing is best-effort and happens after the
// engine has committed the state change; the event log in Postgres remains
// the source of truth.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"IntentVault/internal/engine"
	"IntentVault/internal/observability"
)

const (
	streamName    = "INTENT_VAULT_EVENTS"
	subjectPrefix = "vault.intents.events"
)

// OutboundMessage is the wire form of one published event. Payload carries
// the event-specific fields already encoded by the engine.
type OutboundMessage struct {
	Sequence  int64           `json:"sequence"`
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Publisher drains the engine's publish channel and ships each event to
// vault.intents.events.{event_type}.
type Publisher struct {
	js      jetstream.JetStream
	input   <-chan engine.Output
	log     zerolog.Logger
	metrics *observability.Metrics
}

func NewPublisher(js jetstream.JetStream, input <-chan engine.Output, log zerolog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		js:      js,
		input:   input,
		log:     log,
		metrics: metrics,
	}
}

// Run drains the input channel until it closes or the context is cancelled.
// A failed publish is logged and skipped; consumers that need a complete
// history read the event log instead.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-p.input:
			if !ok {
				return nil
			}
			if err := p.publish(ctx, out); err != nil {
				if p.metrics != nil {
					p.metrics.PublishDrops.Inc()
				}
				p.log.Warn().Err(err).Int64("sequence", out.Envelope.Sequence).Msg("outbound publish failed")
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, out engine.Output) error {
	msg := OutboundMessage{
		Sequence:  out.Envelope.Sequence,
		EventID:   out.Envelope.EventID.String(),
		EventType: out.Envelope.Type.String(),
		Timestamp: out.Envelope.Timestamp,
		Payload:   out.Envelope.Payload,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal outbound message: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", subjectPrefix, out.Envelope.Type)
	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// EnsureStream creates or updates the outbound events stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream, log zerolog.Logger) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subjectPrefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Info().Str("stream", streamName).Msg("ensured outbound stream")
	return nil
}
