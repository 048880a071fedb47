package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultr-power/gateway/internal/infra"
	"github.com/vultr-power/gateway/internal/models"
	"github.com/vultr-power/gateway/internal/provider"
	"github.com/vultr-power/gateway/internal/testutil"
	"github.com/vultr-power/gateway/pkg/logger"
)

const serverID = "cb676a46-66fd-4dfb-b839-443f2e6c0b60"

func newTestService(tool *testutil.FakeTool, prov *testutil.FakeProvider) *Service {
	return NewService(tool, prov, logger.Nop())
}

func TestService_InstanceActions(t *testing.T) {
	tests := []struct {
		name       string
		call       func(*Service, context.Context) (models.Envelope, error)
		method     string
		status     int
		body       string
		wantStatus string
	}{
		{"status online", (*Service).Status, "get", http.StatusOK, `{"instance":{"power_status":"running"}}`, models.StatusOnline},
		{"status offline", (*Service).Status, "get", http.StatusOK, `{"instance":{"power_status":"stopped"}}`, models.StatusOffline},
		{"start", (*Service).Start, "start", http.StatusNoContent, "", models.StatusStarted},
		{"shutdown", (*Service).Shutdown, "halt", http.StatusNoContent, "", models.StatusShutdownInitiated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := testutil.NewFakeTool(serverID)
			prov := testutil.NewFakeProvider().On(tt.method, tt.status, tt.body)
			svc := newTestService(tool, prov)

			env, err := tt.call(svc, context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, env.Status)

			require.Len(t, prov.Calls, 1)
			assert.Equal(t, testutil.ProviderCall{Method: tt.method, InstanceID: serverID}, prov.Calls[0])
		})
	}
}

func TestService_ResolveFailureSkipsProvider(t *testing.T) {
	calls := []func(*Service, context.Context) (models.Envelope, error){
		(*Service).Status, (*Service).Start, (*Service).Shutdown,
	}

	for _, call := range calls {
		tool := testutil.NewFakeTool(serverID).FailResolve()
		prov := testutil.NewFakeProvider()
		svc := newTestService(tool, prov)

		_, err := call(svc, context.Background())
		assert.ErrorIs(t, err, infra.ErrIdentifierUnavailable)
		assert.Zero(t, prov.CallCount())
	}
}

func TestService_ResolvesOnEveryCall(t *testing.T) {
	tool := testutil.NewFakeTool(serverID)
	prov := testutil.NewFakeProvider().On("get", http.StatusOK, `{"instance":{"power_status":"running"}}`)
	svc := newTestService(tool, prov)

	for i := 0; i < 3; i++ {
		_, err := svc.Status(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, tool.ResolveCalls)
}

func TestService_ProviderUnavailable(t *testing.T) {
	prov := testutil.NewFakeProvider()
	prov.Err = provider.ErrProviderUnavailable
	svc := newTestService(testutil.NewFakeTool(serverID), prov)

	_, err := svc.Start(context.Background())
	assert.ErrorIs(t, err, provider.ErrProviderUnavailable)
}

func TestService_Lifecycle(t *testing.T) {
	tool := testutil.NewFakeTool(serverID)
	svc := newTestService(tool, testutil.NewFakeProvider())

	env, err := svc.Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Envelope{Status: models.StatusApplied}, env)

	env, err = svc.Destroy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Envelope{Status: models.StatusDestroyed}, env)

	assert.Equal(t, []models.LifecycleOp{models.OpApply, models.OpDestroy}, tool.Ops)
	assert.Zero(t, tool.ResolveCalls)
}

func TestService_LifecycleFailure(t *testing.T) {
	tool := testutil.NewFakeTool(serverID).FailOp(models.OpApply, "lock held")
	svc := newTestService(tool, testutil.NewFakeProvider())

	_, err := svc.Apply(context.Background())

	var toolErr *infra.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Contains(t, err.Error(), "lock held")
}
