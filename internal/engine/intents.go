package engine

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"IntentVault/internal/errs"
	"IntentVault/internal/event"
	"IntentVault/internal/model"
	"IntentVault/internal/pricing"
	"IntentVault/internal/vault"
)

// CreateParams are the caller-supplied fields of a new intent.
type CreateParams struct {
	Creator      model.Address
	SellToken    model.Token
	SellAmount   *big.Int
	BuyToken     model.Token
	MinBuyAmount *big.Int
	TargetPrice  *big.Int
	Incentive    *big.Int
	Expiry       int64
}

func (p *CreateParams) validate(now int64) error {
	if p.SellToken == "" || p.BuyToken == "" || p.SellToken == p.BuyToken {
		return fmt.Errorf("sell=%q buy=%q: %w", p.SellToken, p.BuyToken, errs.ErrInvalidToken)
	}
	if p.SellAmount == nil || p.SellAmount.Sign() <= 0 ||
		p.MinBuyAmount == nil || p.MinBuyAmount.Sign() <= 0 {
		return errs.ErrInvalidAmount
	}
	if p.TargetPrice == nil || p.TargetPrice.Sign() <= 0 {
		return errs.ErrInvalidPrice
	}
	// The incentive is paid out of the same escrow as the sell amount; an
	// incentive above the sell amount is never economically meaningful.
	if p.Incentive == nil || p.Incentive.Sign() < 0 || p.Incentive.Cmp(p.SellAmount) > 0 {
		return fmt.Errorf("incentive %s: %w", p.Incentive, errs.ErrInvalidAmount)
	}
	for _, v := range []*big.Int{p.SellAmount, p.MinBuyAmount, p.Incentive} {
		if err := pricing.CheckInt128(v); err != nil {
			return fmt.Errorf("%v: %w", err, errs.ErrInvalidAmount)
		}
	}
	if err := pricing.CheckInt128(p.TargetPrice); err != nil {
		return fmt.Errorf("%v: %w", err, errs.ErrInvalidPrice)
	}
	if p.Expiry <= now {
		return fmt.Errorf("expiry %d <= now %d: %w", p.Expiry, now, errs.ErrIntentExpired)
	}
	return nil
}

// CreateIntent validates the request, escrows sell_amount+incentive from the
// creator's available balance, and stores the new Active intent. A failed
// lock creates nothing: the id counter does not advance.
func (e *Engine) CreateIntent(ctx context.Context, p CreateParams) (id uint64, err error) {
	start := time.Now()
	defer func() { e.observe("create_intent", start, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err = p.validate(e.now()); err != nil {
		return 0, err
	}

	total := new(big.Int).Add(p.SellAmount, p.Incentive)
	if err = e.vault.Lock(p.Creator, p.SellToken, total); err != nil {
		return 0, err
	}

	id = e.intents.Insert(&model.Intent{
		Creator:      p.Creator,
		SellToken:    p.SellToken,
		SellAmount:   p.SellAmount,
		BuyToken:     p.BuyToken,
		MinBuyAmount: p.MinBuyAmount,
		TargetPrice:  p.TargetPrice,
		Incentive:    p.Incentive,
		Expiry:       p.Expiry,
		Status:       model.IntentActive,
	})

	if e.metrics != nil {
		e.metrics.IntentsActive.Inc()
	}
	e.log.Info().Uint64("intent", id).Str("creator", string(p.Creator)).
		Str("sell", string(p.SellToken)).Str("buy", string(p.BuyToken)).
		Str("locked", total.String()).Msg("intent created")

	stored, _ := e.intents.Get(id)
	e.emit(event.TypeIntentCreated, event.IntentCreated{
		IntentID:     id,
		Creator:      string(p.Creator),
		SellToken:    string(p.SellToken),
		SellAmount:   p.SellAmount.String(),
		BuyToken:     string(p.BuyToken),
		MinBuyAmount: p.MinBuyAmount.String(),
		TargetPrice:  p.TargetPrice.String(),
		Incentive:    p.Incentive.String(),
		Expiry:       p.Expiry,
		LockedTotal:  total.String(),
	}, []vault.BalanceKey{{Owner: p.Creator, Token: p.SellToken}}, stored)

	return id, nil
}

// checkLifecycle rejects terminal intents with the status-specific error.
func checkLifecycle(in *model.Intent) error {
	switch in.Status {
	case model.IntentExecuted:
		return fmt.Errorf("intent %d: %w", in.ID, errs.ErrIntentAlreadyExecuted)
	case model.IntentCancelled:
		return fmt.Errorf("intent %d: %w", in.ID, errs.ErrIntentCancelled)
	}
	return nil
}

// ExecuteIntent settles an Active intent. The executor must have obtained
// buyAmount of the buy token; the engine pulls it from the executor's
// external account (the transfer is the first effect, so a rejected transfer
// aborts with zero mutation), then moves the escrowed sell_amount+incentive
// to the executor's available balance and credits the creator.
//
// Expiry is exclusive at the boundary: execution requires now < expiry, so
// now == expiry fails closed with ErrIntentExpired.
func (e *Engine) ExecuteIntent(ctx context.Context, id uint64, executor model.Address, buyAmount *big.Int) (err error) {
	start := time.Now()
	defer func() { e.observe("execute_intent", start, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	in, ok := e.intents.Get(id)
	if !ok {
		return fmt.Errorf("intent %d: %w", id, errs.ErrIntentNotFound)
	}
	if err = checkLifecycle(in); err != nil {
		return err
	}
	if now := e.now(); now >= in.Expiry {
		return fmt.Errorf("intent %d: now=%d expiry=%d: %w", id, now, in.Expiry, errs.ErrIntentExpired)
	}
	if buyAmount == nil || buyAmount.Cmp(in.MinBuyAmount) < 0 {
		return fmt.Errorf("intent %d: offered=%s floor=%s: %w",
			id, buyAmount, in.MinBuyAmount, errs.ErrMinBuyAmountNotMet)
	}
	if err = pricing.CheckInt128(buyAmount); err != nil {
		return fmt.Errorf("%v: %w", err, errs.ErrInvalidAmount)
	}

	satisfied, rate, err := e.verifier.IsSatisfied(ctx, in)
	if err != nil {
		if e.metrics != nil {
			e.metrics.OracleUnavailable.Inc()
		}
		return fmt.Errorf("intent %d: %w", id, err)
	}
	if !satisfied {
		return fmt.Errorf("intent %d: rate=%s target=%s: %w",
			id, rate, in.TargetPrice, errs.ErrPriceConditionNotMet)
	}

	// The executor's reported trade must itself clear the target:
	// buyAmount/sellAmount, scaled, may not undercut the price the creator
	// asked for even when the oracle rate is already there.
	implied, err := pricing.ScaledRatio(buyAmount, in.SellAmount)
	if err != nil {
		return fmt.Errorf("intent %d: %w", id, err)
	}
	if implied.Cmp(in.TargetPrice) < 0 {
		return fmt.Errorf("intent %d: implied=%s target=%s: %w",
			id, implied, in.TargetPrice, errs.ErrPriceConditionNotMet)
	}

	payout := in.LockedTotal()
	// The escrow was locked at creation; anything less here is corruption,
	// caught before the external transfer so no compensation is ever needed.
	if locked := e.vault.Get(in.Creator, in.SellToken).Locked; locked.Cmp(payout) < 0 {
		return fmt.Errorf("intent %d: locked=%s payout=%s: ledger invariant violated", id, locked, payout)
	}

	// External effect first: pull the buy tokens from the executor and
	// credit the creator. Everything after this point cannot fail.
	if err = e.vault.DepositFrom(ctx, executor, in.Creator, in.BuyToken, buyAmount); err != nil {
		return fmt.Errorf("intent %d: %w", id, err)
	}

	if err = e.vault.SettleTransfer(in.Creator, in.SellToken, payout, executor); err != nil {
		return fmt.Errorf("intent %d: %w", id, err)
	}
	if err = e.intents.UpdateStatus(id, model.IntentExecuted, &executor, buyAmount); err != nil {
		return fmt.Errorf("intent %d: %w", id, err)
	}

	if e.metrics != nil {
		e.metrics.IntentsActive.Dec()
		e.metrics.IntentsExecuted.Inc()
	}
	e.log.Info().Uint64("intent", id).Str("executor", string(executor)).
		Str("buy_amount", buyAmount.String()).Str("payout", payout.String()).
		Str("rate", rate.String()).Msg("intent executed")

	settled, _ := e.intents.Get(id)
	e.emit(event.TypeIntentExecuted, event.IntentExecuted{
		IntentID:  id,
		Executor:  string(executor),
		BuyAmount: buyAmount.String(),
		Payout:    payout.String(),
		CrossRate: rate.String(),
	}, []vault.BalanceKey{
		{Owner: in.Creator, Token: in.SellToken},
		{Owner: in.Creator, Token: in.BuyToken},
		{Owner: executor, Token: in.SellToken},
	}, settled)

	return nil
}

// CancelIntent cancels an Active intent and refunds the escrow. Only the
// creator may cancel, and cancellation stays possible after expiry:
// an expired Active intent must remain recoverable.
func (e *Engine) CancelIntent(ctx context.Context, id uint64, creator model.Address) (err error) {
	start := time.Now()
	defer func() { e.observe("cancel_intent", start, err) }()
	return e.cancel(id, creator, false)
}

// AdminCancelIntent is the emergency override: same semantics as
// CancelIntent but authorized by the configured admin.
func (e *Engine) AdminCancelIntent(ctx context.Context, id uint64, admin model.Address) (err error) {
	start := time.Now()
	defer func() { e.observe("admin_cancel_intent", start, err) }()
	return e.cancel(id, admin, true)
}

func (e *Engine) cancel(id uint64, caller model.Address, asAdmin bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	in, ok := e.intents.Get(id)
	if !ok {
		return fmt.Errorf("intent %d: %w", id, errs.ErrIntentNotFound)
	}

	if asAdmin {
		if caller != e.admin {
			return fmt.Errorf("intent %d: caller %s: %w", id, caller, errs.ErrUnauthorized)
		}
	} else if in.Creator != caller {
		return fmt.Errorf("intent %d: caller %s: %w", id, caller, errs.ErrOnlyCreatorCanCancel)
	}

	if err := checkLifecycle(in); err != nil {
		return err
	}

	refund := in.LockedTotal()
	if err := e.vault.UnlockToAvailable(in.Creator, in.SellToken, refund); err != nil {
		return fmt.Errorf("intent %d: %w", id, err)
	}
	if err := e.intents.UpdateStatus(id, model.IntentCancelled, nil, nil); err != nil {
		return fmt.Errorf("intent %d: %w", id, err)
	}

	by := "creator"
	if asAdmin {
		by = "admin"
	}
	if e.metrics != nil {
		e.metrics.IntentsActive.Dec()
		e.metrics.IntentsCancelled.WithLabelValues(by).Inc()
	}
	e.log.Info().Uint64("intent", id).Str("by", by).Str("refund", refund.String()).Msg("intent cancelled")

	cancelled, _ := e.intents.Get(id)
	e.emit(event.TypeIntentCancelled, event.IntentCancelled{
		IntentID:    id,
		Creator:     string(in.Creator),
		CancelledBy: by,
		Refund:      refund.String(),
	}, []vault.BalanceKey{{Owner: in.Creator, Token: in.SellToken}}, cancelled)

	return nil
}

// CheckIntentExecutable reports whether an intent could execute right now,
// along with the current cross-rate. Terminal and expired intents report
// (false, 0) without an oracle round-trip. Never mutates state.
func (e *Engine) CheckIntentExecutable(ctx context.Context, id uint64) (bool, *big.Int, error) {
	e.mu.RLock()
	in, ok := e.intents.Get(id)
	now := e.now()
	verifier := e.verifier
	e.mu.RUnlock()

	if !ok {
		return false, nil, fmt.Errorf("intent %d: %w", id, errs.ErrIntentNotFound)
	}
	if in.Status != model.IntentActive || now >= in.Expiry {
		return false, new(big.Int), nil
	}

	// Oracle round-trip outside the lock: this is a pure read and must not
	// stall settlement.
	satisfied, rate, err := verifier.IsSatisfied(ctx, in)
	if err != nil {
		if e.metrics != nil {
			e.metrics.OracleUnavailable.Inc()
		}
		return false, nil, fmt.Errorf("intent %d: %w", id, err)
	}
	return satisfied, rate, nil
}
