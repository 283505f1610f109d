// Package api is the REST client for the agents service: agents, chats,
// ratings, knowledge, and the presenter streams used for WebRTC negotiation.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vango-go/agents-lite/pkg/core"
)

const (
	// DefaultBaseURL is the production REST endpoint.
	DefaultBaseURL = "https://api.d-id.com"

	defaultRequestTimeout = 2 * time.Minute
)

// Client issues authorized JSON requests against the service.
type Client struct {
	baseURL    string
	auth       Auth
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets the logger for the client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithRequestTimeout bounds requests whose context carries no deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// New creates a client authorized with auth.
func New(auth Auth, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		auth:       auth,
		httpClient: newDefaultHTTPClient(),
		logger:     slog.Default(),
		timeout:    defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = newDefaultHTTPClient()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Auth returns the credentials the client was built with.
func (c *Client) Auth() Auth {
	return c.auth
}

func (c *Client) endpoint(path string) (string, error) {
	rawBaseURL := strings.TrimSpace(c.baseURL)
	if rawBaseURL == "" {
		return "", core.NewInvalidRequestError("base URL must not be empty")
	}

	base, err := url.Parse(rawBaseURL)
	if err != nil || strings.TrimSpace(base.Scheme) == "" || strings.TrimSpace(base.Host) == "" {
		return "", core.NewInvalidRequestError("invalid base URL")
	}
	if base.User != nil {
		return "", core.NewInvalidRequestError("base URL must not include credentials")
	}

	base.RawQuery = ""
	base.Fragment = ""

	cleanPath := "/" + strings.TrimLeft(path, "/")
	basePath := strings.TrimSuffix(base.Path, "/")
	if basePath == "" || basePath == "/" {
		base.Path = cleanPath
	} else {
		base.Path = basePath + cleanPath
	}
	base.RawPath = ""

	return base.String(), nil
}

// do sends a JSON request and decodes a JSON response into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	ctx, cancel := c.withDefaultTimeout(ctx)
	defer cancel()

	endpoint, err := c.endpoint(path)
	if err != nil {
		return err
	}
	authHeader, err := c.auth.Header()
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		reqBody, err := json.Marshal(payload)
		if err != nil {
			return core.NewInvalidRequestError("failed to marshal request body")
		}
		body = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &TransportError{Op: method, URL: endpoint, Err: err}
	}
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: method, URL: endpoint, Err: err}
	}
	c.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode, "elapsed_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeErrorResponse(resp, endpoint, method)
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: method, URL: endpoint, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &core.Error{
			Type:      core.ErrAPI,
			Message:   "failed to decode response",
			RequestID: requestIDFromHeader(resp.Header),
			Status:    resp.StatusCode,
		}
	}
	return nil
}

func (c *Client) withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline || c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}
