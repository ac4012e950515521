package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/ed-intake/pkg/errors"
	"github.com/jwalitptl/ed-intake/pkg/logger"
	"github.com/jwalitptl/ed-intake/pkg/metrics"
)

const (
	HeaderXRequestID = "X-Request-ID"
	maxBodyBytes     = 4 << 20
)

// TokenSource supplies the bearer token and is told when the remote service
// rejects it.
type TokenSource interface {
	Token() string
	Expire(ctx context.Context) error
}

// Request describes one call to the remote service.
type Request struct {
	Method string
	// Path is relative to the base URL and already escaped.
	Path  string
	Query url.Values
	Body  interface{}
	// Endpoint labels metrics and logs. Defaults to Path.
	Endpoint string
	// Anonymous requests carry no token, and their 401 answers are ordinary
	// failures rather than session expiry. Only login uses this.
	Anonymous bool
}

// Response describes a successful exchange.
type Response struct {
	Status    int
	Empty     bool
	RequestID string
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *logger.Logger
	metrics *metrics.Metrics
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.Nop()
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Get(ctx context.Context, path string, out interface{}) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path}, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out interface{}) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Do sends req and decodes a JSON success body into out. A 204 or an empty
// body is a successful empty result: out is left untouched and Response.Empty
// is set. Failures are *errors.AppError of kind AuthExpired, Remote or
// Transport.
func (c *Client) Do(ctx context.Context, req Request, out interface{}) (*Response, error) {
	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = req.Path
	}
	requestID := uuid.New().String()
	log := c.logger.WithFields(map[string]interface{}{
		"request_id": requestID,
		"method":     req.Method,
		"endpoint":   endpoint,
	})

	httpReq, err := c.newRequest(ctx, req, requestID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	c.metrics.GatewayLatency.WithLabelValues(req.Method, endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GatewayRequests.WithLabelValues(req.Method, endpoint, metrics.StatusLabel(0)).Inc()
		log.Debug("remote request failed", "error", err.Error())
		return nil, errors.Transport(err)
	}
	defer resp.Body.Close()

	c.metrics.GatewayRequests.WithLabelValues(req.Method, endpoint, metrics.StatusLabel(resp.StatusCode)).Inc()
	log.Debug("remote request completed", "status", resp.StatusCode, "latency", time.Since(start).String())

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Transport(fmt.Errorf("read response body: %w", err))
	}

	result := &Response{Status: resp.StatusCode, RequestID: requestID}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.failure(ctx, req, resp.StatusCode, body, log)
	}

	if resp.StatusCode == http.StatusNoContent || isEmptyBody(body) {
		result.Empty = true
		return result, nil
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return nil, errors.Transport(fmt.Errorf("decode response from %s: %w", endpoint, err))
		}
	}
	return result, nil
}

func (c *Client) newRequest(ctx context.Context, req Request, requestID string) (*http.Request, error) {
	target := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Transport(fmt.Errorf("encode request body: %w", err))
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, errors.Transport(fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(HeaderXRequestID, requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if !req.Anonymous && c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return httpReq, nil
}

func (c *Client) failure(ctx context.Context, req Request, status int, body []byte, log *logger.Logger) error {
	remote := errors.Remote(status, decodeErrorMessage(status, body))

	if status == http.StatusUnauthorized && !req.Anonymous {
		if c.tokens != nil {
			if err := c.tokens.Expire(ctx); err != nil {
				log.Error(err, "failed to clear expired session")
			}
		}
		return errors.AuthExpired(remote)
	}
	return remote
}

func isEmptyBody(body []byte) bool {
	switch string(bytes.TrimSpace(body)) {
	case "", "null", "{}":
		return true
	}
	return false
}
