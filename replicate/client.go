// Package replicate invokes generative models through a Replicate API
// proxy that holds (or forwards) the API key server-side.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/viceroymiami/chatgpt-media-flow/engine"
)

const defaultTimeout = 5 * time.Minute

// Config holds proxy connection settings.
type Config struct {
	// ProxyURL is the base URL of the Replicate proxy, without the
	// /api/replicate path.
	ProxyURL string `yaml:"proxy_url" json:"proxy_url"`
	// APIKey, when set, is forwarded so the proxy can bill the caller's
	// own Replicate account instead of the shared one.
	APIKey  string        `yaml:"api_key" json:"api_key"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// Client calls models through the proxy. It implements engine.Client.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient builds a proxy client. A nil logger is replaced with a
// no-op one.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "replicate")),
	}
}

type runRequest struct {
	Model  string         `json:"model"`
	Input  map[string]any `json:"input"`
	APIKey string         `json:"apiKey,omitempty"`
}

type runResponse struct {
	Output any    `json:"output"`
	Error  string `json:"error"`
}

// Invoke runs one model prediction through the proxy and returns the
// normalized output URLs or text fragments.
func (c *Client) Invoke(ctx context.Context, model string, input map[string]any) ([]string, error) {
	body, err := json.Marshal(runRequest{Model: model, Input: input, APIKey: c.cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := strings.TrimRight(c.cfg.ProxyURL, "/") + "/api/replicate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("invoking model", zap.String("model", model))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error calling proxy: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read proxy response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s", proxyErrorMessage(resp.StatusCode, raw))
	}

	var out runResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode proxy response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%s", out.Error)
	}
	return engine.NormalizeOutput(out.Output), nil
}

// proxyErrorMessage prefers the proxy's own error field over a generic
// status line so credit and auth failures surface verbatim.
func proxyErrorMessage(status int, body []byte) string {
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	return fmt.Sprintf("Proxy error: %d", status)
}

var _ engine.Client = (*Client)(nil)
