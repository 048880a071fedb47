// Package infra abstracts the declarative infrastructure tool that owns the
// deployment state. The HTTP layer only sees this interface and never builds
// command lines itself.
package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vultr-power/gateway/internal/models"
)

// ErrIdentifierUnavailable indicates the tool could not produce the server id
var ErrIdentifierUnavailable = errors.New("server ID not found")

// Tool is the narrow contract the service needs from the infrastructure tool
type Tool interface {
	// ResolveIdentifier reads the instance identifier from the stored outputs.
	// Failures wrap ErrIdentifierUnavailable.
	ResolveIdentifier(ctx context.Context) (string, error)

	// RunLifecycleOp applies or destroys the deployment without prompting.
	// Failures are returned as *ToolError.
	RunLifecycleOp(ctx context.Context, op models.LifecycleOp) error
}

// ToolError describes a failed tool invocation
type ToolError struct {
	Op       string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed", e.Op)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, ": %s", s)
	}
	return b.String()
}

func (e *ToolError) Unwrap() error {
	return e.Err
}
