package query

// Response types for projection reads. Every response carries AsOfSequence,
// the persistence watermark at query time, so callers can reason about
// freshness relative to the live engine. Amounts are decimal strings.

type BalanceResponse struct {
	Owner        string `json:"owner"`
	Token        string `json:"token"`
	Available    string `json:"available"`
	Locked       string `json:"locked"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

type IntentResponse struct {
	IntentID        uint64  `json:"intent_id"`
	Creator         string  `json:"creator"`
	SellToken       string  `json:"sell_token"`
	SellAmount      string  `json:"sell_amount"`
	BuyToken        string  `json:"buy_token"`
	MinBuyAmount    string  `json:"min_buy_amount"`
	TargetPrice     string  `json:"target_price"`
	Incentive       string  `json:"incentive"`
	Expiry          int64   `json:"expiry"`
	Status          string  `json:"status"`
	Executor        *string `json:"executor,omitempty"`
	ActualBuyAmount *string `json:"actual_buy_amount,omitempty"`
	AsOfSequence    int64   `json:"as_of_sequence"`
}

type IntentListResponse struct {
	Creator      string           `json:"creator"`
	Intents      []IntentResponse `json:"intents"`
	AsOfSequence int64            `json:"as_of_sequence"`
}
