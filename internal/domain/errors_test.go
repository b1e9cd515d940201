package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuotaError_IsQuotaExhausted(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("op=chat: %w", &QuotaError{Message: "credits exhausted", StatusCode: 429, RetryAfter: time.Minute})
	assert.True(t, errors.Is(err, ErrQuotaExhausted))
	assert.False(t, errors.Is(err, ErrUpstreamTransient))

	var qe *QuotaError
	assert.True(t, errors.As(err, &qe))
	assert.Equal(t, time.Minute, qe.RetryAfter)
	assert.Contains(t, qe.Error(), "retry after")
}
