// Package vault owns all balance state. Every available/locked mutation in
// the system goes through the Ledger; callers outside the settlement engine
// only ever see copies.
package vault

import (
	"context"
	"fmt"
	"math/big"

	"IntentVault/internal/errs"
	"IntentVault/internal/model"
)

// TokenLedger is the external token contract/ledger capability. It performs
// the physical asset movement; the vault only keeps bookkeeping over it.
type TokenLedger interface {
	// TransferIn moves amount of token from the owner's external account into
	// the custodial vault.
	TransferIn(ctx context.Context, from model.Address, token model.Token, amount *big.Int) error

	// TransferOut moves amount of token from the custodial vault to the
	// recipient's external account.
	TransferOut(ctx context.Context, to model.Address, token model.Token, amount *big.Int) error
}

// BalanceKey addresses one (owner, token) balance record.
type BalanceKey struct {
	Owner model.Address
	Token model.Token
}

// Ledger maintains the per-(owner, token) balances of the custodial vault.
// It is not internally synchronized: the settlement engine serializes all
// state-changing calls against it.
type Ledger struct {
	balances map[BalanceKey]*model.Balance
	tokens   TokenLedger
}

func NewLedger(tokens TokenLedger) *Ledger {
	return &Ledger{
		balances: make(map[BalanceKey]*model.Balance),
		tokens:   tokens,
	}
}

// SetTokenLedger swaps the external token ledger capability.
func (l *Ledger) SetTokenLedger(tokens TokenLedger) {
	l.tokens = tokens
}

func (l *Ledger) balance(owner model.Address, token model.Token) *model.Balance {
	key := BalanceKey{Owner: owner, Token: token}
	b, ok := l.balances[key]
	if !ok {
		b = model.NewBalance()
		l.balances[key] = b
	}
	return b
}

// Get returns a copy of the (owner, token) balance, zero if never touched.
func (l *Ledger) Get(owner model.Address, token model.Token) *model.Balance {
	if b, ok := l.balances[BalanceKey{Owner: owner, Token: token}]; ok {
		return b.Clone()
	}
	return model.NewBalance()
}

// Deposit pulls amount of token from the owner's external account and
// credits the owner's available balance. The external transfer happens
// first, so a rejected transfer leaves the ledger untouched.
func (l *Ledger) Deposit(ctx context.Context, owner model.Address, token model.Token, amount *big.Int) error {
	return l.DepositFrom(ctx, owner, owner, token, amount)
}

// DepositFrom pulls amount of token from the payer's external account and
// credits the beneficiary's available balance. Execution settlement uses
// this to credit the creator with buy tokens delivered by the executor.
func (l *Ledger) DepositFrom(ctx context.Context, payer, beneficiary model.Address, token model.Token, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("deposit %s/%s: %w", beneficiary, token, errs.ErrInvalidAmount)
	}

	if err := l.tokens.TransferIn(ctx, payer, token, amount); err != nil {
		return fmt.Errorf("deposit %s/%s: %w: %v", beneficiary, token, errs.ErrTransferFailed, err)
	}

	b := l.balance(beneficiary, token)
	b.Available.Add(b.Available, amount)
	return nil
}

// Withdraw debits the owner's available balance and pushes amount of token
// to the recipient's external account. If the external transfer fails after
// the debit, the debit is compensated, so the operation is atomic from the
// caller's perspective.
func (l *Ledger) Withdraw(ctx context.Context, owner model.Address, token model.Token, amount *big.Int, to model.Address) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("withdraw %s/%s: %w", owner, token, errs.ErrInvalidAmount)
	}

	b := l.balance(owner, token)
	if b.Available.Cmp(amount) < 0 {
		return fmt.Errorf("withdraw %s/%s: have=%s need=%s: %w",
			owner, token, b.Available, amount, errs.ErrInsufficientBalance)
	}

	b.Available.Sub(b.Available, amount)

	if err := l.tokens.TransferOut(ctx, to, token, amount); err != nil {
		// Compensating rollback: restore the debit.
		b.Available.Add(b.Available, amount)
		return fmt.Errorf("withdraw %s/%s: %w: %v", owner, token, errs.ErrTransferFailed, err)
	}

	return nil
}

// Lock moves amount from available to locked, escrowing it for an intent.
func (l *Ledger) Lock(owner model.Address, token model.Token, amount *big.Int) error {
	b := l.balance(owner, token)
	if b.Available.Cmp(amount) < 0 {
		return fmt.Errorf("lock %s/%s: have=%s need=%s: %w",
			owner, token, b.Available, amount, errs.ErrInsufficientBalance)
	}

	b.Available.Sub(b.Available, amount)
	b.Locked.Add(b.Locked, amount)
	return nil
}

// UnlockToAvailable releases amount from locked back to available, used on
// cancellation. A shortfall here is a bookkeeping bug, never a user error:
// correct callers only unlock what an earlier Lock escrowed.
func (l *Ledger) UnlockToAvailable(owner model.Address, token model.Token, amount *big.Int) error {
	b := l.balance(owner, token)
	if b.Locked.Cmp(amount) < 0 {
		return fmt.Errorf("unlock %s/%s: locked=%s release=%s: ledger invariant violated",
			owner, token, b.Locked, amount)
	}

	b.Locked.Sub(b.Locked, amount)
	b.Available.Add(b.Available, amount)
	return nil
}

// SettleTransfer moves amount from the payer's locked balance to the payee's
// available balance. The tokens never leave the custodial vault; only the
// internal bookkeeping owner changes. This is how execution pays the
// executor without an on-chain movement beyond the original deposit.
func (l *Ledger) SettleTransfer(fromLockedOwner model.Address, token model.Token, amount *big.Int, toOwner model.Address) error {
	from := l.balance(fromLockedOwner, token)
	if from.Locked.Cmp(amount) < 0 {
		return fmt.Errorf("settle %s/%s: locked=%s transfer=%s: ledger invariant violated",
			fromLockedOwner, token, from.Locked, amount)
	}

	from.Locked.Sub(from.Locked, amount)
	to := l.balance(toOwner, token)
	to.Available.Add(to.Available, amount)
	return nil
}

// TokenLocked sums the locked balances of one token across all owners: the
// total value currently held in intent escrow.
func (l *Ledger) TokenLocked(token model.Token) *big.Int {
	total := new(big.Int)
	for key, b := range l.balances {
		if key.Token == token {
			total.Add(total, b.Locked)
		}
	}
	return total
}

// Snapshot returns a deep copy of all balances, keyed by (owner, token).
func (l *Ledger) Snapshot() map[BalanceKey]*model.Balance {
	out := make(map[BalanceKey]*model.Balance, len(l.balances))
	for k, v := range l.balances {
		out[k] = v.Clone()
	}
	return out
}

// Restore installs a persisted balance during startup recovery.
func (l *Ledger) Restore(owner model.Address, token model.Token, balance *model.Balance) {
	l.balances[BalanceKey{Owner: owner, Token: token}] = balance.Clone()
}
