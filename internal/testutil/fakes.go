// Package testutil provides in-memory doubles for the infrastructure tool
// and the cloud provider.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/vultr-power/gateway/internal/infra"
	"github.com/vultr-power/gateway/internal/models"
	"github.com/vultr-power/gateway/internal/provider"
)

// FakeTool is an infra.Tool with canned results
type FakeTool struct {
	mu sync.Mutex

	ServerID   string
	ResolveErr error
	// OpErrs maps an operation to the error it should fail with
	OpErrs map[models.LifecycleOp]error

	ResolveCalls int
	Ops          []models.LifecycleOp
}

// NewFakeTool returns a tool that resolves to serverID and succeeds at
// every lifecycle operation
func NewFakeTool(serverID string) *FakeTool {
	return &FakeTool{ServerID: serverID, OpErrs: make(map[models.LifecycleOp]error)}
}

// FailResolve makes ResolveIdentifier fail the way a non-zero exit would
func (f *FakeTool) FailResolve() *FakeTool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ResolveErr = fmt.Errorf("%w: %w", infra.ErrIdentifierUnavailable, &infra.ToolError{
		Op:       "terraform output",
		ExitCode: 1,
		Stderr:   "No outputs found",
	})
	return f
}

// FailOp makes op fail with the given stderr text
func (f *FakeTool) FailOp(op models.LifecycleOp, stderr string) *FakeTool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OpErrs[op] = &infra.ToolError{
		Op:       "terraform " + string(op),
		ExitCode: 1,
		Stderr:   stderr,
		Err:      fmt.Errorf("exit status 1"),
	}
	return f
}

func (f *FakeTool) ResolveIdentifier(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ResolveCalls++
	if f.ResolveErr != nil {
		return "", f.ResolveErr
	}
	return f.ServerID, nil
}

func (f *FakeTool) RunLifecycleOp(ctx context.Context, op models.LifecycleOp) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ops = append(f.Ops, op)
	return f.OpErrs[op]
}

// Calls returns the number of resolve calls and lifecycle operations seen
func (f *FakeTool) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResolveCalls + len(f.Ops)
}

// ProviderCall records a single provider invocation
type ProviderCall struct {
	Method     string
	InstanceID string
}

// FakeProvider is a provider.Provider returning one canned response per method
type FakeProvider struct {
	mu sync.Mutex

	Responses map[string]*provider.Response
	Err       error
	Calls     []ProviderCall
}

// NewFakeProvider returns a provider answering 404 to everything until
// responses are registered with On
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{Responses: make(map[string]*provider.Response)}
}

// On registers the response for "get", "start" or "halt"
func (f *FakeProvider) On(method string, status int, body string) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Responses[method] = &provider.Response{StatusCode: status, Body: []byte(body)}
	return f
}

// CallCount returns how many provider calls were made
func (f *FakeProvider) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

func (f *FakeProvider) respond(method, instanceID string) (*provider.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, ProviderCall{Method: method, InstanceID: instanceID})
	if f.Err != nil {
		return nil, f.Err
	}
	if resp, ok := f.Responses[method]; ok {
		return resp, nil
	}
	return &provider.Response{StatusCode: 404, Body: []byte(`{"error":"not found","status":404}`)}, nil
}

func (f *FakeProvider) GetInstance(ctx context.Context, instanceID string) (*provider.Response, error) {
	return f.respond("get", instanceID)
}

func (f *FakeProvider) StartInstance(ctx context.Context, instanceID string) (*provider.Response, error) {
	return f.respond("start", instanceID)
}

func (f *FakeProvider) HaltInstance(ctx context.Context, instanceID string) (*provider.Response, error) {
	return f.respond("halt", instanceID)
}
