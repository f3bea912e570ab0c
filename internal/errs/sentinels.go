// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Validation errors: the caller's request was malformed. No state is mutated.
var (
	// ErrInvalidAmount indicates an amount that is zero, negative, or out of range.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidPrice indicates a non-positive target price.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrInvalidToken indicates a malformed token or identical sell/buy tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// State-conflict errors: the intent exists but is in the wrong state.
var (
	// ErrIntentNotFound indicates no intent with the given id.
	ErrIntentNotFound = errors.New("intent not found")

	// ErrIntentAlreadyExecuted indicates a state-changing call on an executed intent.
	ErrIntentAlreadyExecuted = errors.New("intent already executed")

	// ErrIntentCancelled indicates a state-changing call on a cancelled intent.
	ErrIntentCancelled = errors.New("intent cancelled")

	// ErrIntentExpired indicates execution past expiry, or creation with a past expiry.
	ErrIntentExpired = errors.New("intent expired")

	// ErrIntentStillActive indicates an operation that requires a terminal intent.
	ErrIntentStillActive = errors.New("intent still active")
)

// Authorization errors.
var (
	// ErrUnauthorized indicates the caller is not the configured admin.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrOnlyCreatorCanCancel indicates a cancel attempt by a non-creator.
	ErrOnlyCreatorCanCancel = errors.New("only creator can cancel")
)

// Resource errors.
var (
	// ErrInsufficientBalance indicates available balance below the requested amount.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrMinBuyAmountNotMet indicates an execution offering less than the intent floor.
	ErrMinBuyAmountNotMet = errors.New("minimum buy amount not met")
)

// External-dependency and market errors. These are surfaced verbatim so
// callers can tell an invalid request from a temporarily unavailable market.
var (
	// ErrTransferFailed indicates the external token ledger rejected a transfer.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrPriceUnavailable indicates the oracle has no feed for a requested asset.
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrMathOverflow indicates scaled price arithmetic exceeded the 128-bit range.
	ErrMathOverflow = errors.New("math overflow")

	// ErrPriceConditionNotMet indicates the cross-rate is below the target price.
	ErrPriceConditionNotMet = errors.New("price condition not met")
)
