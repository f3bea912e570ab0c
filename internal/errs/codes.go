package errs

import "errors"

// Code returns a stable machine-readable code for a sentinel, used for
// metric labels and API error bodies.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrIntentNotFound):
		return "intent_not_found"
	case errors.Is(err, ErrIntentAlreadyExecuted):
		return "intent_already_executed"
	case errors.Is(err, ErrIntentCancelled):
		return "intent_cancelled"
	case errors.Is(err, ErrIntentExpired):
		return "intent_expired"
	case errors.Is(err, ErrIntentStillActive):
		return "intent_still_active"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrOnlyCreatorCanCancel):
		return "only_creator_can_cancel"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrMinBuyAmountNotMet):
		return "min_buy_amount_not_met"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, ErrPriceUnavailable):
		return "price_unavailable"
	case errors.Is(err, ErrMathOverflow):
		return "math_overflow"
	case errors.Is(err, ErrPriceConditionNotMet):
		return "price_condition_not_met"
	default:
		return "internal"
	}
}
