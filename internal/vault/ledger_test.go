package vault_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"IntentVault/internal/errs"
	"IntentVault/internal/model"
	"IntentVault/internal/vault"
)

// fakeTokenLedger is a scriptable external token ledger.
type fakeTokenLedger struct {
	failIn  bool
	failOut bool
	inCalls int
	outCalls int
}

func (f *fakeTokenLedger) TransferIn(_ context.Context, _ model.Address, _ model.Token, _ *big.Int) error {
	f.inCalls++
	if f.failIn {
		return errors.New("rejected by token contract")
	}
	return nil
}

func (f *fakeTokenLedger) TransferOut(_ context.Context, _ model.Address, _ model.Token, _ *big.Int) error {
	f.outCalls++
	if f.failOut {
		return errors.New("rejected by token contract")
	}
	return nil
}

const (
	alice  = model.Address("alice")
	tokenX = model.Token("TOKEN_X")
)

func amt(v int64) *big.Int { return big.NewInt(v) }

func TestLedger_DepositWithdrawRoundTrip(t *testing.T) {
	ctx := context.Background()
	ledger := vault.NewLedger(&fakeTokenLedger{})

	if err := ledger.Deposit(ctx, alice, tokenX, amt(500)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	b := ledger.Get(alice, tokenX)
	if b.Available.Cmp(amt(500)) != 0 || b.Locked.Sign() != 0 {
		t.Errorf("after deposit: available=%s locked=%s, want 500/0", b.Available, b.Locked)
	}

	if err := ledger.Withdraw(ctx, alice, tokenX, amt(500), alice); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	b = ledger.Get(alice, tokenX)
	if b.Available.Sign() != 0 || b.Locked.Sign() != 0 {
		t.Errorf("after round trip: available=%s locked=%s, want 0/0", b.Available, b.Locked)
	}
}

func TestLedger_DepositRejectsNonPositive(t *testing.T) {
	ctx := context.Background()
	tokens := &fakeTokenLedger{}
	ledger := vault.NewLedger(tokens)

	for _, v := range []int64{0, -1} {
		if err := ledger.Deposit(ctx, alice, tokenX, amt(v)); !errors.Is(err, errs.ErrInvalidAmount) {
			t.Errorf("deposit %d: got %v, want ErrInvalidAmount", v, err)
		}
	}
	if tokens.inCalls != 0 {
		t.Errorf("external transfer attempted for invalid amounts: %d calls", tokens.inCalls)
	}
}

func TestLedger_DepositTransferFailureLeavesNoState(t *testing.T) {
	ctx := context.Background()
	ledger := vault.NewLedger(&fakeTokenLedger{failIn: true})

	err := ledger.Deposit(ctx, alice, tokenX, amt(100))
	if !errors.Is(err, errs.ErrTransferFailed) {
		t.Fatalf("got %v, want ErrTransferFailed", err)
	}

	if b := ledger.Get(alice, tokenX); b.Available.Sign() != 0 {
		t.Errorf("balance mutated despite failed transfer: %s", b.Available)
	}
}

func TestLedger_WithdrawInsufficient(t *testing.T) {
	ctx := context.Background()
	ledger := vault.NewLedger(&fakeTokenLedger{})

	if err := ledger.Deposit(ctx, alice, tokenX, amt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	err := ledger.Withdraw(ctx, alice, tokenX, amt(101), alice)
	if !errors.Is(err, errs.ErrInsufficientBalance) {
		t.Fatalf("got %v, want ErrInsufficientBalance", err)
	}
}

func TestLedger_WithdrawRollbackOnTransferFailure(t *testing.T) {
	ctx := context.Background()
	tokens := &fakeTokenLedger{}
	ledger := vault.NewLedger(tokens)

	if err := ledger.Deposit(ctx, alice, tokenX, amt(300)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	tokens.failOut = true
	err := ledger.Withdraw(ctx, alice, tokenX, amt(200), alice)
	if !errors.Is(err, errs.ErrTransferFailed) {
		t.Fatalf("got %v, want ErrTransferFailed", err)
	}

	// The debit must have been compensated.
	if b := ledger.Get(alice, tokenX); b.Available.Cmp(amt(300)) != 0 {
		t.Errorf("available=%s after rollback, want 300", b.Available)
	}
}

func TestLedger_LockUnlock(t *testing.T) {
	ctx := context.Background()
	ledger := vault.NewLedger(&fakeTokenLedger{})

	if err := ledger.Deposit(ctx, alice, tokenX, amt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if err := ledger.Lock(alice, tokenX, amt(400)); err != nil {
		t.Fatalf("lock: %v", err)
	}
	b := ledger.Get(alice, tokenX)
	if b.Available.Cmp(amt(600)) != 0 || b.Locked.Cmp(amt(400)) != 0 {
		t.Errorf("after lock: available=%s locked=%s, want 600/400", b.Available, b.Locked)
	}

	// Locked funds are not withdrawable.
	if err := ledger.Withdraw(ctx, alice, tokenX, amt(700), alice); !errors.Is(err, errs.ErrInsufficientBalance) {
		t.Errorf("withdraw of locked funds: got %v, want ErrInsufficientBalance", err)
	}

	if err := ledger.UnlockToAvailable(alice, tokenX, amt(400)); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	b = ledger.Get(alice, tokenX)
	if b.Available.Cmp(amt(1000)) != 0 || b.Locked.Sign() != 0 {
		t.Errorf("after unlock: available=%s locked=%s, want 1000/0", b.Available, b.Locked)
	}
}

func TestLedger_LockInsufficient(t *testing.T) {
	ledger := vault.NewLedger(&fakeTokenLedger{})
	if err := ledger.Lock(alice, tokenX, amt(1)); !errors.Is(err, errs.ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
}

func TestLedger_UnlockBeyondLockedIsInvariantError(t *testing.T) {
	ledger := vault.NewLedger(&fakeTokenLedger{})
	if err := ledger.UnlockToAvailable(alice, tokenX, amt(1)); err == nil {
		t.Error("unlock beyond locked succeeded, want invariant error")
	}
}

func TestLedger_SettleTransfer(t *testing.T) {
	ctx := context.Background()
	bob := model.Address("bob")
	tokens := &fakeTokenLedger{}
	ledger := vault.NewLedger(tokens)

	if err := ledger.Deposit(ctx, alice, tokenX, amt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := ledger.Lock(alice, tokenX, amt(1000)); err != nil {
		t.Fatalf("lock: %v", err)
	}

	before := tokens.inCalls + tokens.outCalls
	if err := ledger.SettleTransfer(alice, tokenX, amt(1000), bob); err != nil {
		t.Fatalf("settle: %v", err)
	}

	// Settlement is pure bookkeeping: no external movement.
	if tokens.inCalls+tokens.outCalls != before {
		t.Error("settle transfer touched the external token ledger")
	}

	if b := ledger.Get(alice, tokenX); b.Available.Sign() != 0 || b.Locked.Sign() != 0 {
		t.Errorf("payer balance: available=%s locked=%s, want 0/0", b.Available, b.Locked)
	}
	if b := ledger.Get(bob, tokenX); b.Available.Cmp(amt(1000)) != 0 {
		t.Errorf("payee available=%s, want 1000", b.Available)
	}
}

func TestLedger_TokenLockedSumsAcrossOwners(t *testing.T) {
	l := vault.NewLedger(&fakeTokenLedger{})
	ctx := context.Background()

	bob := model.Address("bob")
	if err := l.Deposit(ctx, alice, tokenX, amt(100)); err != nil {
		t.Fatalf("deposit alice: %v", err)
	}
	if err := l.Deposit(ctx, bob, tokenX, amt(50)); err != nil {
		t.Fatalf("deposit bob: %v", err)
	}
	if err := l.Lock(alice, tokenX, amt(60)); err != nil {
		t.Fatalf("lock alice: %v", err)
	}
	if err := l.Lock(bob, tokenX, amt(30)); err != nil {
		t.Fatalf("lock bob: %v", err)
	}

	if got := l.TokenLocked(tokenX); got.Cmp(amt(90)) != 0 {
		t.Errorf("locked total after locks: got %s, want 90", got)
	}

	// Settlement moves escrow out of locked; the total follows.
	if err := l.SettleTransfer(alice, tokenX, amt(60), bob); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if got := l.TokenLocked(tokenX); got.Cmp(amt(30)) != 0 {
		t.Errorf("locked total after settle: got %s, want 30", got)
	}

	if got := l.TokenLocked(model.Token("TOKEN_Y")); got.Sign() != 0 {
		t.Errorf("locked total for untouched token: got %s, want 0", got)
	}
}

func TestLedger_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	ledger := vault.NewLedger(&fakeTokenLedger{})
	if err := ledger.Deposit(ctx, alice, tokenX, amt(50)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	b := ledger.Get(alice, tokenX)
	b.Available.SetInt64(999_999)

	if again := ledger.Get(alice, tokenX); again.Available.Cmp(amt(50)) != 0 {
		t.Errorf("ledger state mutated through a returned copy: %s", again.Available)
	}
}
