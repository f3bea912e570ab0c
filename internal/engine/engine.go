// Package engine is the settlement core: the only entry point for
// state-changing operations. It composes the vault ledger, the intent store,
// and the price verifier into atomic, serialized operations, and emits one
// event per committed state change.
package engine

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"IntentVault/internal/errs"
	"IntentVault/internal/event"
	"IntentVault/internal/intent"
	"IntentVault/internal/model"
	"IntentVault/internal/observability"
	"IntentVault/internal/pricing"
	"IntentVault/internal/vault"
)

// SwapVenue supplies indicative quotes from the external swap router. The
// engine never executes a swap itself; quotes are advisory and feed only the
// quote getters, never settlement decisions.
type SwapVenue interface {
	Quote(ctx context.Context, sellToken, buyToken model.Token, sellAmount *big.Int) (*big.Int, error)
}

// BalanceUpdate is the post-commit state of one (owner, token) balance,
// shipped with the event for projection upserts.
type BalanceUpdate struct {
	Owner     model.Address
	Token     model.Token
	Available *big.Int
	Locked    *big.Int
}

// Output is one committed state change: the event envelope plus the
// projection rows it implies. The persistence worker and the outbound
// publisher both consume it.
type Output struct {
	Envelope event.Envelope
	Balances []BalanceUpdate
	Intent   *model.Intent
}

// Config wires the engine's collaborators. Oracle, Venue, and the token
// ledger inside Vault are injected capabilities so tests run on doubles.
type Config struct {
	Vault   *vault.Ledger
	Intents *intent.Store
	Oracle  pricing.Oracle
	Venue   SwapVenue
	Pricing pricing.Config

	Admin      model.Address
	RouterAddr string
	OracleAddr string

	// Now returns the current unix timestamp; defaults to time.Now().Unix().
	Now func() int64

	// StartSequence seeds the event sequence after recovery.
	StartSequence int64

	// PersistChan receives every Output with a blocking send: if persistence
	// falls behind, the engine stalls rather than losing an event.
	PersistChan chan<- Output

	// PublishChan receives Outputs best-effort; overflow drops are counted.
	PublishChan chan<- Output

	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// Engine serializes every state-changing call behind one mutex: the whole
// operation, external calls included, is a single transaction boundary.
// Read-only queries take the read lock and return copies.
type Engine struct {
	mu sync.RWMutex

	vault    *vault.Ledger
	intents  *intent.Store
	verifier *pricing.Verifier
	oracle   pricing.Oracle
	venue    SwapVenue
	pricing  pricing.Config

	admin      model.Address
	routerAddr string
	oracleAddr string

	now      func() int64
	sequence int64

	persistCh chan<- Output
	publishCh chan<- Output

	log     zerolog.Logger
	metrics *observability.Metrics
}

func New(cfg Config) *Engine {
	now := cfg.Now
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}

	return &Engine{
		vault:      cfg.Vault,
		intents:    cfg.Intents,
		verifier:   pricing.NewVerifier(cfg.Oracle, cfg.Pricing),
		oracle:     cfg.Oracle,
		venue:      cfg.Venue,
		pricing:    cfg.Pricing,
		admin:      cfg.Admin,
		routerAddr: cfg.RouterAddr,
		oracleAddr: cfg.OracleAddr,
		now:        now,
		sequence:   cfg.StartSequence,
		persistCh:  cfg.PersistChan,
		publishCh:  cfg.PublishChan,
		log:        cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// emit commits one event: assigns the next sequence, snapshots the touched
// balances, and hands the output to the persistence and publish consumers.
// Called with the write lock held.
func (e *Engine) emit(t event.Type, payload interface{}, touched []vault.BalanceKey, in *model.Intent) {
	e.sequence++

	data, err := json.Marshal(payload)
	if err != nil {
		// Payload structs are plain data; this cannot fail for them.
		e.log.Error().Err(err).Str("event", t.String()).Msg("marshal event payload")
		data = []byte("{}")
	}

	out := Output{
		Envelope: event.Envelope{
			Sequence:  e.sequence,
			EventID:   uuid.New(),
			Type:      t,
			Timestamp: time.Now().UTC(),
			Payload:   data,
		},
		Intent: in,
	}
	for _, key := range touched {
		b := e.vault.Get(key.Owner, key.Token)
		out.Balances = append(out.Balances, BalanceUpdate{
			Owner:     key.Owner,
			Token:     key.Token,
			Available: b.Available,
			Locked:    b.Locked,
		})
	}

	if e.metrics != nil {
		e.metrics.CoreSequence.Set(float64(e.sequence))
		seen := make(map[model.Token]bool, len(touched))
		for _, key := range touched {
			if seen[key.Token] {
				continue
			}
			seen[key.Token] = true
			locked, _ := new(big.Float).SetInt(e.vault.TokenLocked(key.Token)).Float64()
			e.metrics.LockedValue.WithLabelValues(string(key.Token)).Set(locked)
		}
	}

	if e.persistCh != nil {
		e.persistCh <- out
	}
	if e.publishCh != nil {
		select {
		case e.publishCh <- out:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
			e.log.Warn().Int64("sequence", out.Envelope.Sequence).Msg("publish channel full, event dropped")
		}
	}
}

func (e *Engine) observe(op string, start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		e.metrics.OpsRejected.WithLabelValues(op, errs.Code(err)).Inc()
	} else {
		e.metrics.OpsTotal.WithLabelValues(op).Inc()
	}
}

// Sequence returns the last committed event sequence.
func (e *Engine) Sequence() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sequence
}

// Deposit pulls tokens from the owner's external account into the vault and
// credits the owner's available balance.
func (e *Engine) Deposit(ctx context.Context, owner model.Address, token model.Token, amount *big.Int) (err error) {
	start := time.Now()
	defer func() { e.observe("deposit", start, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err = e.vault.Deposit(ctx, owner, token, amount); err != nil {
		return err
	}

	e.log.Info().Str("owner", string(owner)).Str("token", string(token)).
		Str("amount", amount.String()).Msg("deposit")
	e.emit(event.TypeDeposited, event.Deposited{
		Owner:  string(owner),
		Token:  string(token),
		Amount: amount.String(),
	}, []vault.BalanceKey{{Owner: owner, Token: token}}, nil)
	return nil
}

// Withdraw debits the owner's available balance and pays out externally.
func (e *Engine) Withdraw(ctx context.Context, owner model.Address, token model.Token, amount *big.Int, to model.Address) (err error) {
	start := time.Now()
	defer func() { e.observe("withdraw", start, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err = e.vault.Withdraw(ctx, owner, token, amount, to); err != nil {
		return err
	}

	e.log.Info().Str("owner", string(owner)).Str("token", string(token)).
		Str("amount", amount.String()).Str("to", string(to)).Msg("withdraw")
	e.emit(event.TypeWithdrawn, event.Withdrawn{
		Owner:  string(owner),
		Token:  string(token),
		Amount: amount.String(),
		To:     string(to),
	}, []vault.BalanceKey{{Owner: owner, Token: token}}, nil)
	return nil
}

// GetBalance returns a consistent snapshot of one (owner, token) balance.
func (e *Engine) GetBalance(owner model.Address, token model.Token) *model.Balance {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.vault.Get(owner, token)
}

// GetIntent returns a copy of one intent.
func (e *Engine) GetIntent(id uint64) (*model.Intent, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	in, ok := e.intents.Get(id)
	if !ok {
		return nil, errs.ErrIntentNotFound
	}
	return in, nil
}

// GetUserIntents returns the creator's intent ids in creation order.
func (e *Engine) GetUserIntents(user model.Address) []uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.intents.ListForUser(user)
}
