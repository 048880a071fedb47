package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned when no Vultr API key is configured
var ErrMissingAPIKey = errors.New("VULTR_API_KEY environment var not found")

// Config represents the gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Vultr     VultrConfig     `yaml:"vultr"`
	Terraform TerraformConfig `yaml:"terraform"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig contains authentication settings
type AuthConfig struct {
	// Token is the shared secret expected in "Authorization: Bearer <token>".
	// Defaults to the Vultr API key.
	Token string `yaml:"token"`

	// ProtectLifecycle puts /apply and /destroy behind the token check too
	ProtectLifecycle bool `yaml:"protect_lifecycle"`
}

// VultrConfig contains Vultr API connection settings
type VultrConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// TerraformConfig contains settings for the terraform CLI
type TerraformConfig struct {
	Binary           string        `yaml:"binary"`
	Dir              string        `yaml:"dir"`
	OutputName       string        `yaml:"output_name"`
	OutputTimeout    time.Duration `yaml:"output_timeout"`
	LifecycleTimeout time.Duration `yaml:"lifecycle_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// TelemetryConfig contains tracing settings. Export is enabled by
// OTEL_EXPORTER_OTLP_ENDPOINT.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name"`
}

// Load reads the optional configuration file, applies environment overrides
// and defaults, and validates the result. An empty path or a missing file
// means configuration comes from the environment only.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			// Expand environment variables in the config
			expanded := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("VULTR_API_KEY"); v != "" {
		c.Vultr.APIKey = v
	}
	if v := os.Getenv("GATEWAY_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse GATEWAY_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("TERRAFORM_BIN"); v != "" {
		c.Terraform.Binary = v
	}
	if v := os.Getenv("TERRAFORM_DIR"); v != "" {
		c.Terraform.Dir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Terraform.LifecycleTimeout == 0 {
		c.Terraform.LifecycleTimeout = 15 * time.Minute
	}
	// apply/destroy responses are written only once terraform exits
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = c.Terraform.LifecycleTimeout + time.Minute
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Auth.Token == "" {
		c.Auth.Token = c.Vultr.APIKey
	}
	if c.Vultr.BaseURL == "" {
		c.Vultr.BaseURL = "https://api.vultr.com/v2"
	}
	if c.Vultr.Timeout == 0 {
		c.Vultr.Timeout = 30 * time.Second
	}
	if c.Terraform.Binary == "" {
		c.Terraform.Binary = "terraform"
	}
	if c.Terraform.Dir == "" {
		c.Terraform.Dir = "../vultr_deployment"
	}
	if c.Terraform.OutputName == "" {
		c.Terraform.OutputName = "server_id"
	}
	if c.Terraform.OutputTimeout == 0 {
		c.Terraform.OutputTimeout = 30 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "vultr-power-gateway"
	}
}

// Validate checks the settings the gateway cannot run without
func (c *Config) Validate() error {
	if c.Vultr.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging format %q, expected json or text", c.Logging.Format)
	}
	return nil
}
