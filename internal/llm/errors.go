package llm

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the call-failure taxonomy. Transport errors
// (ErrRateLimited, ServerError) are retried and then fall through to the
// next provider; configuration and semantic errors propagate immediately.
var (
	// ErrMissingCredential means the provider has no usable API key.
	ErrMissingCredential = errors.New("missing credential")
	// ErrNoResponse means the model returned empty or garbled output,
	// including output that violates a requested response schema.
	ErrNoResponse = errors.New("no response from model")
	// ErrRateLimited is a retryable transport failure.
	ErrRateLimited = errors.New("rate limited")
	// ErrAllProvidersFailed is terminal: every provider in the chain
	// exhausted its retries.
	ErrAllProvidersFailed = errors.New("all providers failed")
)

// ServerError is a retryable 5xx-class provider failure.
type ServerError struct {
	Code int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: status %d", e.Code)
}

// IsRetryable reports whether err warrants retry with backoff.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var se *ServerError
	return errors.As(err, &se)
}
