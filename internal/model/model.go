package model

import "math/big"

// Address identifies a principal: a depositor, an intent creator, an executor,
// or the configured admin.
type Address string

// Token identifies a token held in the custodial vault.
type Token string

// PriceScale is the fixed-point scale for target and cross-rate prices.
// A price of 1.5 buy-per-sell is stored as 15_000_000.
const PriceScale int64 = 10_000_000

// Balance is the per-(owner, token) bookkeeping record over the custodial
// vault. Both sub-balances are always >= 0; available + locked equals the net
// deposited-minus-withdrawn amount for the pair.
type Balance struct {
	Available *big.Int
	Locked    *big.Int
}

// NewBalance returns a zeroed balance.
func NewBalance() *Balance {
	return &Balance{
		Available: new(big.Int),
		Locked:    new(big.Int),
	}
}

// Clone returns a deep copy so readers never alias ledger-owned state.
func (b *Balance) Clone() *Balance {
	return &Balance{
		Available: new(big.Int).Set(b.Available),
		Locked:    new(big.Int).Set(b.Locked),
	}
}

// IntentStatus is the lifecycle state of an intent. Executed and Cancelled
// are terminal. Expiry is observed at execution time, not stored: an expired
// intent remains Active until executed (rejected) or cancelled.
type IntentStatus int32

const (
	IntentActive IntentStatus = iota
	IntentExecuted
	IntentCancelled
)

func (s IntentStatus) String() string {
	switch s {
	case IntentActive:
		return "Active"
	case IntentExecuted:
		return "Executed"
	case IntentCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Intent is one stored limit order: sell SellAmount of SellToken for at least
// MinBuyAmount of BuyToken once the oracle cross-rate reaches TargetPrice.
// SellAmount+Incentive of SellToken is locked in the creator's balance for
// the whole Active lifetime of the intent.
type Intent struct {
	ID           uint64
	Creator      Address
	SellToken    Token
	SellAmount   *big.Int
	BuyToken     Token
	MinBuyAmount *big.Int
	// TargetPrice is buy-per-sell, scaled by PriceScale.
	TargetPrice *big.Int
	// Incentive is the executor reward, denominated in SellToken.
	Incentive *big.Int
	// Expiry is a unix timestamp (seconds). Execution requires now < Expiry.
	Expiry int64
	Status IntentStatus
	// Executor and ActualBuyAmount are set only when the intent executes.
	Executor        *Address
	ActualBuyAmount *big.Int
}

// LockedTotal returns SellAmount + Incentive, the amount escrowed at creation.
func (i *Intent) LockedTotal() *big.Int {
	return new(big.Int).Add(i.SellAmount, i.Incentive)
}

// Clone returns a deep copy of the intent.
func (i *Intent) Clone() *Intent {
	c := &Intent{
		ID:           i.ID,
		Creator:      i.Creator,
		SellToken:    i.SellToken,
		SellAmount:   new(big.Int).Set(i.SellAmount),
		BuyToken:     i.BuyToken,
		MinBuyAmount: new(big.Int).Set(i.MinBuyAmount),
		TargetPrice:  new(big.Int).Set(i.TargetPrice),
		Incentive:    new(big.Int).Set(i.Incentive),
		Expiry:       i.Expiry,
		Status:       i.Status,
	}
	if i.Executor != nil {
		e := *i.Executor
		c.Executor = &e
	}
	if i.ActualBuyAmount != nil {
		c.ActualBuyAmount = new(big.Int).Set(i.ActualBuyAmount)
	}
	return c
}

// ParseAmount parses a decimal string into an amount. Returns false for
// malformed input.
func ParseAmount(s string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	return v, ok
}
