package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidOrder  = errors.New("invalid order parameters")
	ErrSigningFailed = errors.New("signing failed")
	ErrWSDisconnect  = errors.New("websocket disconnected")
	ErrLockHeld      = errors.New("lock already held")
)

// Scanner rejection reasons. Evaluate returns one of these instead of an
// Opportunity; they are expected control flow, not failures.
var (
	ErrBudgetExhausted  = errors.New("remaining budget exhausted")
	ErrNoLiquidity      = errors.New("no tradable ask on at least one leg")
	ErrNotProfitable    = errors.New("total cost at or above 1.0")
	ErrBelowMinProfit   = errors.New("profit below minimum threshold")
	ErrProfitSuspicious = errors.New("profit above maximum threshold, quotes likely stale")
	ErrSizeBelowMin     = errors.New("executable size below minimum")
)
