package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy (sentinels). Adapters wrap these with op context so callers
// can branch with errors.Is without parsing messages.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrConflict          = errors.New("concurrency conflict")
	ErrQuotaExhausted    = errors.New("quota exhausted")
	ErrUpstreamTransient = errors.New("transient upstream error")
	ErrPersistence       = errors.New("persistence error")
	ErrEngine            = errors.New("engine error")
)

// QuotaError signals permanent LLM quota/credit exhaustion. It is never
// retried; RetryAfter carries the provider hint when one was sent.
type QuotaError struct {
	Message    string
	StatusCode int
	RetryAfter time.Duration
}

func (e *QuotaError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// Is makes errors.Is(err, ErrQuotaExhausted) match.
func (e *QuotaError) Is(target error) bool { return target == ErrQuotaExhausted }
