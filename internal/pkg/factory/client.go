package factory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
)

// ErrInvalidConfig is returned by New when the base url is missing.
var ErrInvalidConfig = errors.New("factory: base_url is required")

// Config Factory 客户端配置
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Reply is an upstream answer. Data is the decoded JSON body, a
// map{"raw": text} when the body is not JSON, or nil when it is empty.
type Reply struct {
	Status int
	Data   any
	Body   []byte
}

// OK reports a 2xx status.
func (r *Reply) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client Factory HTTP 客户端
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *logger.Logger
}

// New 创建 Factory 客户端
func New(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrInvalidConfig
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log,
	}, nil
}

// Get 发送 GET 请求
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Reply, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil)
}

// Post 发送 JSON POST 请求
func (c *Client) Post(ctx context.Context, path string, body any) (*Reply, error) {
	return c.Do(ctx, http.MethodPost, path, nil, body)
}

// Do performs one request. Any status is a Reply; only transport and
// encoding failures are errors. Requests are never retried.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (*Reply, error) {
	target := c.config.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.Token)

	c.logger.Debug("factory request", zap.String("method", method), zap.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("factory request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("factory response", zap.String("path", path), zap.Int("status", resp.StatusCode))
	return &Reply{Status: resp.StatusCode, Data: decode(raw), Body: raw}, nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func decode(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if !gjson.ValidBytes(raw) {
		return map[string]any{"raw": string(raw)}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]any{"raw": string(raw)}
	}
	return v
}
