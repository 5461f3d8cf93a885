// Package service implements the allocation core: the purchase
// allocator for stock-limited items and the seat allocator for
// one-per-user seats, each in a deliberately unsafe and a safe
// variant.  Services recover every failure locally and report a
// structured Result; raw store errors are logged, never surfaced.
package service

import "strings"

// Strategy selects between the unsafe (racy, for demonstration) and
// safe (row-locked) allocation paths.
type Strategy string

const (
	StrategySafe   Strategy = "safe"
	StrategyUnsafe Strategy = "unsafe"
)

// ParseStrategy normalizes a client-supplied strategy flag.  Anything
// other than an explicit "unsafe" selects the safe path.
func ParseStrategy(s string) Strategy {
	if strings.EqualFold(strings.TrimSpace(s), string(StrategyUnsafe)) {
		return StrategyUnsafe
	}
	return StrategySafe
}

// Result codes let callers and the concurrency test harness
// distinguish failure causes without parsing messages.
const (
	CodeNotFound          = "not_found"
	CodeInvalidQuantity   = "invalid_quantity"
	CodeInsufficientStock = "insufficient_stock"
	CodeAlreadyHeld       = "already_held"
	CodeLimitExceeded     = "limit_exceeded"
	CodeUnauthorized      = "unauthorized"
	CodeTxFailure         = "transaction_failure"
)

// Result is the structured outcome of an allocation attempt.  No
// operation lets an internal error escape: failures are folded into
// OK=false with a stable code and a sanitized message.
type Result struct {
	OK             bool   `json:"success"`
	Code           string `json:"code,omitempty"`
	Message        string `json:"message"`
	RemainingStock *int64 `json:"remaining_stock,omitempty"`
}

func failure(code, message string) Result {
	return Result{OK: false, Code: code, Message: message}
}

func success(message string) Result {
	return Result{OK: true, Message: message}
}
