package provider

import (
	"context"
)

// Provider abstracts the cloud API that owns the instance power state
type Provider interface {
	// GetInstance fetches the instance detail document
	GetInstance(ctx context.Context, instanceID string) (*Response, error)

	// StartInstance asks the provider to boot the instance
	StartInstance(ctx context.Context, instanceID string) (*Response, error)

	// HaltInstance asks the provider to power the instance off
	HaltInstance(ctx context.Context, instanceID string) (*Response, error)
}

// Response is a fully read provider reply. Implementations return an error
// only when no reply was received; any status code is a valid Response.
type Response struct {
	StatusCode int
	Body       []byte
}
