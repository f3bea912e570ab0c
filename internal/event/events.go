package event

// Event payloads. Amounts and prices are decimal strings so 128-bit values
// survive JSON encoding without precision loss.

// Deposited records a confirmed external transfer-in credited to available.
type Deposited struct {
	Owner  string `json:"owner"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// Withdrawn records an available-balance debit paid out externally.
type Withdrawn struct {
	Owner  string `json:"owner"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
	To     string `json:"to"`
}

// IntentCreated records a new Active intent and its escrow lock.
type IntentCreated struct {
	IntentID     uint64 `json:"intent_id"`
	Creator      string `json:"creator"`
	SellToken    string `json:"sell_token"`
	SellAmount   string `json:"sell_amount"`
	BuyToken     string `json:"buy_token"`
	MinBuyAmount string `json:"min_buy_amount"`
	TargetPrice  string `json:"target_price"`
	Incentive    string `json:"incentive"`
	Expiry       int64  `json:"expiry"`
	LockedTotal  string `json:"locked_total"`
}

// IntentExecuted records a settled execution: the executor received the
// escrowed payout and the creator was credited the delivered buy amount.
type IntentExecuted struct {
	IntentID  uint64 `json:"intent_id"`
	Executor  string `json:"executor"`
	BuyAmount string `json:"buy_amount"`
	Payout    string `json:"payout"`
	CrossRate string `json:"cross_rate"`
}

// IntentCancelled records a cancellation and the escrow refund.
type IntentCancelled struct {
	IntentID uint64 `json:"intent_id"`
	Creator  string `json:"creator"`
	// CancelledBy is "creator" or "admin".
	CancelledBy string `json:"cancelled_by"`
	Refund      string `json:"refund"`
}
