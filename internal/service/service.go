package service

import (
	"context"
	"fmt"

	"github.com/vultr-power/gateway/internal/infra"
	"github.com/vultr-power/gateway/internal/models"
	"github.com/vultr-power/gateway/internal/provider"
	"github.com/vultr-power/gateway/pkg/logger"
)

// Service coordinates the infrastructure tool and the provider
type Service struct {
	tool     infra.Tool
	provider provider.Provider
	logger   *logger.Logger
}

// NewService creates a new service instance
func NewService(tool infra.Tool, prov provider.Provider, log *logger.Logger) *Service {
	return &Service{
		tool:     tool,
		provider: prov,
		logger:   log,
	}
}

// getLogger retrieves logger from context or falls back to service logger
func (s *Service) getLogger(ctx context.Context) *logger.Logger {
	if ctxLogger := logger.FromContext(ctx); ctxLogger != nil {
		return ctxLogger
	}
	return s.logger
}

// Status reports whether the instance is online. The server id is resolved
// on every call.
func (s *Service) Status(ctx context.Context) (models.Envelope, error) {
	return s.instanceAction(ctx, ActionStatus, s.provider.GetInstance)
}

// Start asks the provider to boot the instance. A success means the action
// was accepted, not that the instance is running.
func (s *Service) Start(ctx context.Context) (models.Envelope, error) {
	return s.instanceAction(ctx, ActionStart, s.provider.StartInstance)
}

// Shutdown asks the provider to halt the instance
func (s *Service) Shutdown(ctx context.Context) (models.Envelope, error) {
	return s.instanceAction(ctx, ActionHalt, s.provider.HaltInstance)
}

func (s *Service) instanceAction(
	ctx context.Context,
	action Action,
	call func(context.Context, string) (*provider.Response, error),
) (models.Envelope, error) {
	logger := s.getLogger(ctx)

	serverID, err := s.tool.ResolveIdentifier(ctx)
	if err != nil {
		logger.Error("service: failed to resolve server id", "action", action.String(), "error", err)
		return models.Envelope{}, err
	}

	logger.Debug("service: calling provider", "action", action.String(), "server_id", serverID)

	resp, err := call(ctx, serverID)
	if err != nil {
		logger.Error("service: provider call failed",
			"action", action.String(),
			"server_id", serverID,
			"error", err)
		return models.Envelope{}, fmt.Errorf("%s instance: %w", action, err)
	}

	env, err := Normalize(action, resp.StatusCode, resp.Body)
	if err != nil {
		logger.Warn("service: provider returned unexpected response",
			"action", action.String(),
			"server_id", serverID,
			"provider_status", resp.StatusCode)
		return models.Envelope{}, err
	}

	logger.Info("service: provider action completed",
		"action", action.String(),
		"server_id", serverID,
		"status", env.Status)
	return env, nil
}

// Apply provisions the deployment
func (s *Service) Apply(ctx context.Context) (models.Envelope, error) {
	return s.lifecycle(ctx, models.OpApply, models.StatusApplied)
}

// Destroy tears the deployment down
func (s *Service) Destroy(ctx context.Context) (models.Envelope, error) {
	return s.lifecycle(ctx, models.OpDestroy, models.StatusDestroyed)
}

func (s *Service) lifecycle(ctx context.Context, op models.LifecycleOp, done string) (models.Envelope, error) {
	logger := s.getLogger(ctx)

	logger.Info("service: running lifecycle operation", "op", string(op))
	if err := s.tool.RunLifecycleOp(ctx, op); err != nil {
		logger.Error("service: lifecycle operation failed", "op", string(op), "error", err)
		return models.Envelope{}, err
	}

	logger.Info("service: lifecycle operation succeeded", "op", string(op))
	return models.Envelope{Status: done}, nil
}
