package persistence_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"IntentVault/internal/engine"
	"IntentVault/internal/event"
	"IntentVault/internal/intent"
	"IntentVault/internal/model"
	"IntentVault/internal/persistence"
	"IntentVault/internal/testutil"
	"IntentVault/internal/vault"
)

type nopTokenLedger struct{}

func (nopTokenLedger) TransferIn(context.Context, model.Address, model.Token, *big.Int) error {
	return nil
}

func (nopTokenLedger) TransferOut(context.Context, model.Address, model.Token, *big.Int) error {
	return nil
}

func output(seq int64, t event.Type, balances []engine.BalanceUpdate, in *model.Intent) engine.Output {
	return engine.Output{
		Envelope: event.Envelope{
			Sequence:  seq,
			EventID:   uuid.New(),
			Type:      t,
			Timestamp: time.Now().UTC(),
			Payload:   []byte(`{}`),
		},
		Balances: balances,
		Intent:   in,
	}
}

// TestWorkerLoaderRoundTrip writes a batch through the worker and verifies
// the loader rebuilds identical in-memory state from the projections.
func TestWorkerLoaderRoundTrip(t *testing.T) {
	testutil.RequireIntegration(t)

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := persistence.NewMigrator(db, "../../migrations", zerolog.Nop()).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	executor := model.Address("executor")
	active := &model.Intent{
		ID:           0,
		Creator:      "creator",
		SellToken:    "TOKEN_X",
		SellAmount:   big.NewInt(100_000_000),
		BuyToken:     "TOKEN_Y",
		MinBuyAmount: big.NewInt(15_000_000),
		TargetPrice:  big.NewInt(1_500_000),
		Incentive:    big.NewInt(1_000_000),
		Expiry:       1_700_086_400,
		Status:       model.IntentActive,
	}
	executed := active.Clone()
	executed.Status = model.IntentExecuted
	executed.Executor = &executor
	executed.ActualBuyAmount = big.NewInt(16_000_000)

	input := make(chan engine.Output, 8)
	input <- output(1, event.TypeDeposited, []engine.BalanceUpdate{
		{Owner: "creator", Token: "TOKEN_X", Available: big.NewInt(101_000_000), Locked: big.NewInt(0)},
	}, nil)
	input <- output(2, event.TypeIntentCreated, []engine.BalanceUpdate{
		{Owner: "creator", Token: "TOKEN_X", Available: big.NewInt(0), Locked: big.NewInt(101_000_000)},
	}, active)
	input <- output(3, event.TypeIntentExecuted, []engine.BalanceUpdate{
		{Owner: "creator", Token: "TOKEN_X", Available: big.NewInt(0), Locked: big.NewInt(0)},
		{Owner: "creator", Token: "TOKEN_Y", Available: big.NewInt(16_000_000), Locked: big.NewInt(0)},
		{Owner: "executor", Token: "TOKEN_X", Available: big.NewInt(101_000_000), Locked: big.NewInt(0)},
	}, executed)
	close(input)

	worker := persistence.NewWorker(db, input, 16, 50*time.Millisecond, zerolog.Nop(), nil)
	if err := worker.Run(ctx); err != nil {
		t.Fatalf("worker run: %v", err)
	}

	ledger := vault.NewLedger(nopTokenLedger{})
	intents := intent.NewStore()
	watermark, err := persistence.NewLoader(db).LoadState(ctx, ledger, intents)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}

	if watermark != 3 {
		t.Errorf("watermark=%d, want 3", watermark)
	}

	if b := ledger.Get("creator", "TOKEN_Y"); b.Available.Cmp(big.NewInt(16_000_000)) != 0 {
		t.Errorf("creator Y available=%s, want 16000000", b.Available)
	}
	if b := ledger.Get("executor", "TOKEN_X"); b.Available.Cmp(big.NewInt(101_000_000)) != 0 {
		t.Errorf("executor X available=%s, want 101000000", b.Available)
	}

	got, ok := intents.Get(0)
	if !ok {
		t.Fatal("intent 0 not restored")
	}
	if got.Status != model.IntentExecuted {
		t.Errorf("status=%s, want Executed", got.Status)
	}
	if got.Executor == nil || *got.Executor != executor {
		t.Errorf("executor=%v, want %s", got.Executor, executor)
	}
	if got.ActualBuyAmount == nil || got.ActualBuyAmount.Cmp(big.NewInt(16_000_000)) != 0 {
		t.Errorf("actual buy amount=%v, want 16000000", got.ActualBuyAmount)
	}

	// The next intent id continues after the restored one.
	if id := intents.NextID(); id != 1 {
		t.Errorf("next id=%d, want 1", id)
	}
}

// TestWorkerDrainsQueuedOutputsOnClose mirrors shutdown: outputs are still
// queued when the channel closes, and the worker must flush every one of
// them before returning. A worker that exits early here would hand recovery
// stale projections.
func TestWorkerDrainsQueuedOutputsOnClose(t *testing.T) {
	testutil.RequireIntegration(t)

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := persistence.NewMigrator(db, "../../migrations", zerolog.Nop()).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	const queued = 10
	input := make(chan engine.Output, queued)
	for seq := int64(1); seq <= queued; seq++ {
		input <- output(seq, event.TypeDeposited, []engine.BalanceUpdate{
			{Owner: "creator", Token: "TOKEN_X", Available: big.NewInt(seq), Locked: big.NewInt(0)},
		}, nil)
	}
	close(input)

	// Batch size smaller than the backlog: the worker needs several flushes
	// plus the final one to empty the channel.
	worker := persistence.NewWorker(db, input, 3, 50*time.Millisecond, zerolog.Nop(), nil)
	if err := worker.Run(ctx); err != nil {
		t.Fatalf("worker run: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM event_log.events").Scan(&count); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != queued {
		t.Errorf("events persisted=%d, want %d", count, queued)
	}

	watermark, err := persistence.NewLoader(db).LoadState(ctx, vault.NewLedger(nopTokenLedger{}), intent.NewStore())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if watermark != queued {
		t.Errorf("watermark=%d, want %d", watermark, queued)
	}
}

// TestWorkerIdempotentReplay re-runs the same batch and verifies the event
// log and projections do not regress.
func TestWorkerIdempotentReplay(t *testing.T) {
	testutil.RequireIntegration(t)

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := persistence.NewMigrator(db, "../../migrations", zerolog.Nop()).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	deposit := output(1, event.TypeDeposited, []engine.BalanceUpdate{
		{Owner: "creator", Token: "TOKEN_X", Available: big.NewInt(500), Locked: big.NewInt(0)},
	}, nil)

	for i := 0; i < 2; i++ {
		input := make(chan engine.Output, 1)
		input <- deposit
		close(input)

		worker := persistence.NewWorker(db, input, 16, 50*time.Millisecond, zerolog.Nop(), nil)
		if err := worker.Run(ctx); err != nil {
			t.Fatalf("worker run %d: %v", i, err)
		}
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM event_log.events`).Scan(&count); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 1 {
		t.Errorf("event rows=%d, want 1 after replay", count)
	}
}
