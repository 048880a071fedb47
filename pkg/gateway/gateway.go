package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/multierr"

	"github.com/vultr-power/gateway/internal/api"
	"github.com/vultr-power/gateway/internal/config"
	"github.com/vultr-power/gateway/internal/infra"
	"github.com/vultr-power/gateway/internal/infra/terraform"
	"github.com/vultr-power/gateway/internal/provider"
	"github.com/vultr-power/gateway/internal/provider/vultr"
	"github.com/vultr-power/gateway/internal/service"
	"github.com/vultr-power/gateway/internal/telemetry"
	"github.com/vultr-power/gateway/pkg/logger"
)

// Gateway represents a gateway instance that can be embedded in applications
type Gateway struct {
	config         *Config
	service        *service.Service
	router         http.Handler
	server         *http.Server
	logger         *logger.Logger
	shutdownTracer func(context.Context) error
}

// Config holds the configuration for the Gateway
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Vultr     VultrConfig
	Terraform TerraformConfig
	Logging   LoggingConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	// Token is the shared secret callers send as "Bearer <token>"
	Token string

	// ProtectLifecycle requires the token on /apply and /destroy as well
	ProtectLifecycle bool
}

// VultrConfig holds Vultr API configuration
type VultrConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// TerraformConfig holds terraform CLI configuration
type TerraformConfig struct {
	Binary           string
	Dir              string
	OutputName       string
	OutputTimeout    time.Duration
	LifecycleTimeout time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// TelemetryConfig holds tracing configuration
type TelemetryConfig struct {
	ServiceName string
}

// New creates a new Gateway instance with the provided configuration
func New(cfg *Config) (*Gateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Auth.Token == "" {
		return nil, fmt.Errorf("auth token cannot be empty")
	}

	appLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	tool := terraform.New(&terraform.Config{
		Binary:           cfg.Terraform.Binary,
		Dir:              cfg.Terraform.Dir,
		OutputName:       cfg.Terraform.OutputName,
		OutputTimeout:    cfg.Terraform.OutputTimeout,
		LifecycleTimeout: cfg.Terraform.LifecycleTimeout,
	}, appLogger)
	appLogger.Info("initialized terraform runner",
		"binary", cfg.Terraform.Binary,
		"dir", cfg.Terraform.Dir,
		"output", cfg.Terraform.OutputName)

	prov := vultr.NewClient(&vultr.Config{
		BaseURL: cfg.Vultr.BaseURL,
		APIKey:  cfg.Vultr.APIKey,
		Timeout: cfg.Vultr.Timeout,
	}, appLogger)
	appLogger.Info("initialized vultr provider", "url", cfg.Vultr.BaseURL)

	shutdownTracer, err := telemetry.InitTracer(context.Background(), cfg.Telemetry.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("initialize tracer: %w", err)
	}

	return newGateway(cfg, tool, prov, appLogger, shutdownTracer), nil
}

func newGateway(cfg *Config, tool infra.Tool, prov provider.Provider, appLogger *logger.Logger, shutdownTracer func(context.Context) error) *Gateway {
	svc := service.NewService(tool, prov, appLogger)

	if !cfg.Auth.ProtectLifecycle {
		appLogger.Warn("/apply and /destroy accept unauthenticated requests; set auth.protect_lifecycle to require the token")
	}

	router := api.NewRouter(
		api.NewHandlers(svc),
		api.NewAuthMiddleware(cfg.Auth.Token),
		api.NewLoggingMiddleware(appLogger),
		api.RouterOptions{
			// resolve + one provider call, each with its own timeout
			RequestTimeout:   cfg.Terraform.OutputTimeout + cfg.Vultr.Timeout,
			ProtectLifecycle: cfg.Auth.ProtectLifecycle,
		},
	)
	handler := otelhttp.NewHandler(router, cfg.Telemetry.ServiceName)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Gateway{
		config:         cfg,
		service:        svc,
		router:         handler,
		server:         srv,
		logger:         appLogger,
		shutdownTracer: shutdownTracer,
	}
}

// Start starts the HTTP server
// This is a blocking call that will run until the context is canceled or an error occurs
func (g *Gateway) Start(ctx context.Context) error {
	serverErrors := make(chan error, 1)

	go func() {
		g.logger.Info("starting http server", "port", g.config.Server.Port)
		serverErrors <- g.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return multierr.Append(fmt.Errorf("server error: %w", err), g.shutdownTracer(context.Background()))
		}
		return nil

	case <-ctx.Done():
		g.logger.Info("shutdown signal received")
		return g.shutdown()
	}
}

func (g *Gateway) shutdown() error {
	timeout := g.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var err error
	if serr := g.server.Shutdown(shutdownCtx); serr != nil {
		g.server.Close()
		err = multierr.Append(err, fmt.Errorf("graceful shutdown failed: %w", serr))
	}
	if terr := g.shutdownTracer(shutdownCtx); terr != nil {
		err = multierr.Append(err, fmt.Errorf("flush traces: %w", terr))
	}

	if err == nil {
		g.logger.Info("server stopped gracefully")
	}
	// stdout cannot be fsynced on most platforms
	_ = g.logger.Sync()
	return err
}

// Handler returns the http.Handler for the gateway
// Use this if you want to integrate the gateway into an existing HTTP server
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Service returns the underlying service layer
// Use this for direct programmatic access to gateway functionality
func (g *Gateway) Service() *service.Service {
	return g.service
}

// NewFromEnv creates a Gateway from an optional YAML file plus environment
// variables. It fails when VULTR_API_KEY is not set.
func NewFromEnv(configFile string) (*Gateway, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return New(fromConfig(cfg))
}

// fromConfig converts a loaded configuration file into a gateway Config
func fromConfig(cfg *config.Config) *Config {
	return &Config{
		Server: ServerConfig{
			Port:            cfg.Server.Port,
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		},
		Auth: AuthConfig{
			Token:            cfg.Auth.Token,
			ProtectLifecycle: cfg.Auth.ProtectLifecycle,
		},
		Vultr: VultrConfig{
			APIKey:  cfg.Vultr.APIKey,
			BaseURL: cfg.Vultr.BaseURL,
			Timeout: cfg.Vultr.Timeout,
		},
		Terraform: TerraformConfig{
			Binary:           cfg.Terraform.Binary,
			Dir:              cfg.Terraform.Dir,
			OutputName:       cfg.Terraform.OutputName,
			OutputTimeout:    cfg.Terraform.OutputTimeout,
			LifecycleTimeout: cfg.Terraform.LifecycleTimeout,
		},
		Logging: LoggingConfig{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		},
		Telemetry: TelemetryConfig{
			ServiceName: cfg.Telemetry.ServiceName,
		},
	}
}
