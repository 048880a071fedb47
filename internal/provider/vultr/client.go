package vultr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vultr-power/gateway/internal/provider"
	"github.com/vultr-power/gateway/pkg/logger"
)

// DefaultBaseURL is the Vultr v2 API root
const DefaultBaseURL = "https://api.vultr.com/v2"

// maxBodyBytes caps how much of a provider reply is buffered
const maxBodyBytes = 1 << 20

// Config contains Vultr connection settings
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client handles HTTP communication with the Vultr API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new Vultr API client
func NewClient(cfg *Config, log *logger.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: log,
	}
}

var _ provider.Provider = (*Client)(nil)

// GetInstance handles GET /instances/{id}
func (c *Client) GetInstance(ctx context.Context, instanceID string) (*provider.Response, error) {
	return c.doRequest(ctx, http.MethodGet, instancePath(instanceID, ""))
}

// StartInstance handles POST /instances/{id}/start
func (c *Client) StartInstance(ctx context.Context, instanceID string) (*provider.Response, error) {
	return c.doRequest(ctx, http.MethodPost, instancePath(instanceID, "start"))
}

// HaltInstance handles POST /instances/{id}/halt
func (c *Client) HaltInstance(ctx context.Context, instanceID string) (*provider.Response, error) {
	return c.doRequest(ctx, http.MethodPost, instancePath(instanceID, "halt"))
}

func instancePath(instanceID, action string) string {
	path := "/instances/" + url.PathEscape(instanceID)
	if action != "" {
		path += "/" + action
	}
	return path
}

// doRequest performs an authenticated request and buffers the reply
func (c *Client) doRequest(ctx context.Context, method, path string) (*provider.Response, error) {
	c.logger.Debug("provider: http request",
		"method", method,
		"path", path)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		c.logger.Error("provider: failed to create request", "error", err)
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("provider: http request failed",
			"method", method,
			"path", path,
			"error", err)
		return nil, fmt.Errorf("%w: %w", provider.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		c.logger.Error("provider: failed to read response body",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"error", err)
		return nil, fmt.Errorf("%w: read body: %w", provider.ErrProviderUnavailable, err)
	}

	if len(body) > maxBodyBytes {
		body = body[:maxBodyBytes]
		c.logger.Warn("provider: response body truncated",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"limit_bytes", maxBodyBytes)
	}

	c.logger.Debug("provider: http response",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"bytes", len(body))

	return &provider.Response{StatusCode: resp.StatusCode, Body: body}, nil
}
