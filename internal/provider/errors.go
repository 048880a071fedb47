package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable indicates the provider could not be reached
	ErrProviderUnavailable = errors.New("provider temporarily unavailable")

	// ErrMalformedResponse indicates the provider answered with a body the
	// gateway could not decode
	ErrMalformedResponse = errors.New("malformed provider response")
)

// ProviderError carries an unexpected provider status and its raw body so
// it can be passed through to the caller unchanged
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}
