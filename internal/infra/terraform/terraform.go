package terraform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/vultr-power/gateway/internal/infra"
	"github.com/vultr-power/gateway/internal/models"
	"github.com/vultr-power/gateway/pkg/logger"
)

const tracerName = "github.com/vultr-power/gateway/internal/infra/terraform"

const (
	// outputGrace is how long `terraform output` gets after SIGINT
	outputGrace = 5 * time.Second

	// lifecycleGrace lets terraform finish in-flight resource operations and
	// release the state lock after SIGINT before it is killed
	lifecycleGrace = 2 * time.Minute
)

// Config contains terraform CLI settings
type Config struct {
	Binary           string
	Dir              string
	OutputName       string
	OutputTimeout    time.Duration
	LifecycleTimeout time.Duration
}

// Runner implements infra.Tool by shelling out to the terraform CLI
type Runner struct {
	config *Config
	logger *logger.Logger
	tracer trace.Tracer

	// state is held by every command that writes to the state directory
	state *semaphore.Weighted
}

// New creates a new terraform runner
func New(cfg *Config, log *logger.Logger) *Runner {
	return &Runner{
		config: cfg,
		logger: log,
		tracer: otel.Tracer(tracerName),
		state:  semaphore.NewWeighted(1),
	}
}

var _ infra.Tool = (*Runner)(nil)

// ResolveIdentifier runs `terraform output -raw <name>` and returns the
// trimmed value
func (r *Runner) ResolveIdentifier(ctx context.Context) (string, error) {
	ctx, cancel := withTimeout(ctx, r.config.OutputTimeout)
	defer cancel()

	stdout, err := r.run(ctx, outputGrace, "output", "-raw", r.config.OutputName)
	if err != nil {
		r.logger.Error("terraform: error getting server id", "output", r.config.OutputName, "error", err)
		return "", fmt.Errorf("%w: %w", infra.ErrIdentifierUnavailable, err)
	}

	id := strings.TrimSpace(stdout)
	if id == "" {
		r.logger.Error("terraform: empty output value", "output", r.config.OutputName)
		return "", fmt.Errorf("%w: output %q is empty", infra.ErrIdentifierUnavailable, r.config.OutputName)
	}

	r.logger.Debug("terraform: resolved server id", "server_id", id)
	return id, nil
}

// RunLifecycleOp runs `terraform apply|destroy -auto-approve`. Only one
// lifecycle operation runs at a time; waiters give up when ctx is done.
// Once started, the command is detached from ctx cancellation and only
// LifecycleTimeout can interrupt it.
func (r *Runner) RunLifecycleOp(ctx context.Context, op models.LifecycleOp) error {
	if !op.Valid() {
		return &infra.ToolError{Op: string(op), Err: fmt.Errorf("unknown lifecycle operation")}
	}

	opID := uuid.NewString()
	log := r.logger.With("op", string(op), "op_id", opID)

	if !r.state.TryAcquire(1) {
		log.Info("terraform: waiting for another lifecycle operation to finish")
		if err := r.state.Acquire(ctx, 1); err != nil {
			log.Warn("terraform: gave up waiting for state lock", "error", err)
			return &infra.ToolError{Op: string(op), Err: fmt.Errorf("wait for state lock: %w", err)}
		}
	}
	defer r.state.Release(1)

	ctx, cancel := withTimeout(context.WithoutCancel(ctx), r.config.LifecycleTimeout)
	defer cancel()

	log.Info("terraform: lifecycle operation started", "dir", r.config.Dir)
	start := time.Now()

	stdout, err := r.run(ctx, lifecycleGrace, string(op), "-auto-approve")
	if err != nil {
		log.Error("terraform: lifecycle operation failed",
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return err
	}

	log.Info("terraform: lifecycle operation completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"output_bytes", len(stdout))
	return nil
}

// run executes terraform against the configured directory and returns
// stdout. Failures are returned as *infra.ToolError carrying stderr.
// When ctx ends terraform gets SIGINT, then a kill after grace.
func (r *Runner) run(ctx context.Context, grace time.Duration, args ...string) (string, error) {
	argv := append([]string{"-chdir=" + r.config.Dir}, args...)

	ctx, span := r.tracer.Start(ctx, "terraform "+args[0],
		trace.WithAttributes(
			attribute.String("terraform.dir", r.config.Dir),
			attribute.StringSlice("terraform.args", args),
		))
	defer span.End()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.config.Binary, argv...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	// also bounds provider plugins that outlive terraform and hold the pipes
	cmd.WaitDelay = grace

	r.logger.Debug("terraform: exec", "binary", r.config.Binary, "args", argv)

	if err := cmd.Run(); err != nil {
		toolErr := &infra.ToolError{
			Op:       "terraform " + args[0],
			ExitCode: -1,
			Stderr:   stderr.String(),
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			toolErr.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			toolErr.Err = fmt.Errorf("%w: %v", ctxErr, err)
		}

		span.SetAttributes(attribute.Int("terraform.exit_code", toolErr.ExitCode))
		span.RecordError(toolErr)
		span.SetStatus(codes.Error, "terraform failed")
		return stdout.String(), toolErr
	}

	span.SetAttributes(attribute.Int("terraform.exit_code", 0))
	return stdout.String(), nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
