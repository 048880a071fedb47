package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultr-power/gateway/internal/models"
	"github.com/vultr-power/gateway/internal/provider"
	"github.com/vultr-power/gateway/internal/service"
	"github.com/vultr-power/gateway/internal/testutil"
	"github.com/vultr-power/gateway/pkg/logger"
)

const (
	testToken    = "test-secret"
	testServerID = "cb676a46-66fd-4dfb-b839-443f2e6c0b60"
)

type fixture struct {
	tool    *testutil.FakeTool
	prov    *testutil.FakeProvider
	handler http.Handler
}

func newFixture(t *testing.T, opts RouterOptions) *fixture {
	t.Helper()

	tool := testutil.NewFakeTool(testServerID)
	prov := testutil.NewFakeProvider()
	log := logger.Nop()

	svc := service.NewService(tool, prov, log)
	router := NewRouter(NewHandlers(svc), NewAuthMiddleware(testToken), NewLoggingMiddleware(log), opts)

	return &fixture{tool: tool, prov: prov, handler: router}
}

func (f *fixture) do(method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) models.Envelope {
	t.Helper()
	var env models.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestHealth(t *testing.T) {
	f := newFixture(t, RouterOptions{})

	w := f.do(http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestProtectedEndpoints_RejectBadToken(t *testing.T) {
	headers := []struct {
		name string
		auth string
	}{
		{"missing header", ""},
		{"wrong token", "Bearer nope"},
		{"no scheme", testToken},
		{"lowercase scheme", "bearer " + testToken},
		{"trailing space", "Bearer " + testToken + " "},
	}

	for _, path := range []string{"/start", "/shutdown"} {
		for _, hdr := range headers {
			t.Run(path+"/"+hdr.name, func(t *testing.T) {
				f := newFixture(t, RouterOptions{})

				w := f.do(http.MethodPost, path, hdr.auth)

				assert.Equal(t, http.StatusForbidden, w.Code)
				assert.JSONEq(t, `{"error":"Invalid API token"}`, w.Body.String())
				assert.Zero(t, f.tool.Calls(), "no tool call expected")
				assert.Zero(t, f.prov.CallCount(), "no provider call expected")
			})
		}
	}
}

func TestIdentifierFailure(t *testing.T) {
	tests := []struct {
		method, path string
	}{
		{http.MethodGet, "/status"},
		{http.MethodPost, "/start"},
		{http.MethodPost, "/shutdown"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f := newFixture(t, RouterOptions{})
			f.tool.FailResolve()

			w := f.do(tt.method, tt.path, "Bearer "+testToken)

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			env := decodeEnvelope(t, w)
			assert.Equal(t, models.StatusError, env.Status)
			assert.Equal(t, "Server ID not found", env.Detail)
			assert.Zero(t, f.prov.CallCount())
		})
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name        string
		powerStatus string
		want        string
	}{
		{"running", "running", `{"status":"online"}`},
		{"stopped", "stopped", `{"status":"offline"}`},
		{"starting", "starting", `{"status":"offline"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, RouterOptions{})
			f.prov.On("get", http.StatusOK, `{"instance":{"id":"`+testServerID+`","power_status":"`+tt.powerStatus+`"}}`)

			w := f.do(http.MethodGet, "/status", "")

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestStatus_Idempotent(t *testing.T) {
	f := newFixture(t, RouterOptions{})
	f.prov.On("get", http.StatusOK, `{"instance":{"power_status":"running"}}`)

	first := f.do(http.MethodGet, "/status", "")
	second := f.do(http.MethodGet, "/status", "")

	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 2, f.tool.ResolveCalls)
}

func TestStatus_MalformedProviderBody(t *testing.T) {
	f := newFixture(t, RouterOptions{})
	f.prov.On("get", http.StatusOK, `not json`)

	w := f.do(http.MethodGet, "/status", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, models.StatusError, decodeEnvelope(t, w).Status)
}

func TestPowerActions(t *testing.T) {
	tests := []struct {
		path   string
		method string
		want   string
	}{
		{"/start", "start", `{"status":"started"}`},
		{"/shutdown", "halt", `{"status":"shutdown initiated"}`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f := newFixture(t, RouterOptions{})
			f.prov.On(tt.method, http.StatusNoContent, "")

			w := f.do(http.MethodPost, tt.path, "Bearer "+testToken)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
			require.Len(t, f.prov.Calls, 1)
			assert.Equal(t, testutil.ProviderCall{Method: tt.method, InstanceID: testServerID}, f.prov.Calls[0])
		})
	}
}

func TestProviderErrorPassthrough(t *testing.T) {
	tests := []struct {
		method, path, provMethod string
	}{
		{http.MethodGet, "/status", "get"},
		{http.MethodPost, "/start", "start"},
		{http.MethodPost, "/shutdown", "halt"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f := newFixture(t, RouterOptions{})
			f.prov.On(tt.provMethod, http.StatusServiceUnavailable, "rate limited")

			w := f.do(tt.method, tt.path, "Bearer "+testToken)

			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
			env := decodeEnvelope(t, w)
			assert.Equal(t, models.StatusError, env.Status)
			assert.Equal(t, "rate limited", env.Detail)
		})
	}
}

func TestProviderErrorWithoutBodyBecomesBadGateway(t *testing.T) {
	f := newFixture(t, RouterOptions{})
	f.prov.On("get", http.StatusNoContent, "")

	w := f.do(http.MethodGet, "/status", "")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, models.StatusError, decodeEnvelope(t, w).Status)
}

func TestLifecycle(t *testing.T) {
	tests := []struct {
		path string
		op   models.LifecycleOp
		want string
	}{
		{"/apply", models.OpApply, `{"status":"applied"}`},
		{"/destroy", models.OpDestroy, `{"status":"destroyed"}`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f := newFixture(t, RouterOptions{})

			w := f.do(http.MethodPost, tt.path, "")

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
			assert.Equal(t, []models.LifecycleOp{tt.op}, f.tool.Ops)
		})
	}
}

func TestLifecycle_Failure(t *testing.T) {
	f := newFixture(t, RouterOptions{})
	f.tool.FailOp(models.OpApply, "Error acquiring the state lock: lock held")

	w := f.do(http.MethodPost, "/apply", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, models.StatusError, env.Status)
	assert.Contains(t, env.Detail, "lock held")
}

func TestLifecycle_Protected(t *testing.T) {
	f := newFixture(t, RouterOptions{ProtectLifecycle: true})

	w := f.do(http.MethodPost, "/destroy", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, f.tool.Ops)

	w = f.do(http.MethodPost, "/destroy", "Bearer "+testToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []models.LifecycleOp{models.OpDestroy}, f.tool.Ops)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, RouterOptions{})

	w := f.do(http.MethodGet, "/start", "Bearer "+testToken)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Zero(t, f.prov.CallCount())
}

// panickingProvider blows up on GetInstance and behaves like FakeProvider otherwise
type panickingProvider struct {
	*testutil.FakeProvider
}

func (p panickingProvider) GetInstance(ctx context.Context, instanceID string) (*provider.Response, error) {
	panic("instance lookup exploded")
}

func TestPanicReturnsErrorEnvelope(t *testing.T) {
	prov := panickingProvider{testutil.NewFakeProvider()}
	prov.On("start", http.StatusNoContent, "")
	log := logger.Nop()
	svc := service.NewService(testutil.NewFakeTool(testServerID), prov, log)
	f := &fixture{
		handler: NewRouter(NewHandlers(svc), NewAuthMiddleware(testToken), NewLoggingMiddleware(log), RouterOptions{}),
	}

	w := f.do(http.MethodGet, "/status", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, models.ErrorEnvelope("internal server error"), decodeEnvelope(t, w))

	// the router keeps serving after a panic
	w = f.do(http.MethodPost, "/start", "Bearer "+testToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"started"}`, w.Body.String())
}
