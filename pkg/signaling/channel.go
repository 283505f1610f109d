// Package signaling is the real-time notifications socket that delivers
// chat progress events (partial tokens, final answers, turn completion).
package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/agents-lite/pkg/api"
	"github.com/vango-go/agents-lite/pkg/core"
	"github.com/vango-go/agents-lite/pkg/core/types"
)

// DefaultURL is the production notifications socket.
const DefaultURL = "wss://notifications.d-id.com"

const (
	defaultConnectTimeout = 15 * time.Second
	closeWriteTimeout     = 2 * time.Second
)

// Handler receives every inbound chat event in arrival order. It runs on
// the channel's read goroutine and must not call Disconnect.
type Handler func(event types.ChatEvent)

// Config configures a signaling channel.
type Config struct {
	URL string
	// Authorization is the full Authorization header value
	// (for example "Bearer <token>").
	Authorization string

	Dialer         *websocket.Dialer
	ConnectTimeout time.Duration
	Logger         *slog.Logger
}

// Channel is an open signaling socket.
type Channel struct {
	conn    *websocket.Conn
	handler Handler
	logger  *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	writeMu   sync.Mutex

	errMu sync.Mutex
	err   error
}

// Open dials the socket and starts delivering events to handler.
func Open(ctx context.Context, cfg Config, handler Handler) (*Channel, error) {
	if handler == nil {
		return nil, core.NewInvalidRequestError("signaling handler must not be nil")
	}
	wsURL, err := socketURL(cfg.URL, cfg.Authorization)
	if err != nil {
		return nil, err
	}

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	dialCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		dialCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	headers := make(http.Header)
	if cfg.Authorization != "" {
		headers.Set("Authorization", cfg.Authorization)
	}

	conn, resp, err := dialer.DialContext(dialCtx, wsURL, headers)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, core.NewConnectionError("signaling channel failed to connect", &api.TransportError{Op: "GET", URL: wsURL, Err: err})
	}

	ch := &Channel{
		conn:    conn,
		handler: handler,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go ch.readLoop()
	logger.Debug("signaling channel open")
	return ch, nil
}

// Disconnect closes the socket. No handler calls happen after it returns.
func (c *Channel) Disconnect() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeWriteTimeout))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
	<-c.done
	return nil
}

// Done is closed when the read loop exits.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err returns the terminal read error (if any) once the channel is done.
func (c *Channel) Err() error {
	if c == nil {
		return nil
	}
	<-c.done
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Channel) setErr(err error) {
	if err == nil {
		return
	}
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *Channel) readLoop() {
	defer close(c.done)

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			c.setErr(err)
			c.logger.Warn("signaling channel read failed", "error", err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		event, err := decodeFrame(data)
		if err != nil {
			c.logger.Debug("dropping undecodable signaling frame", "error", err)
			continue
		}
		if c.closed.Load() {
			return
		}
		c.handler(event)
	}
}

// decodeFrame parses {"event":"chat/partial","content":"..."}.
func decodeFrame(data []byte) (types.ChatEvent, error) {
	var frame struct {
		Event   string          `json:"event"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return types.ChatEvent{}, fmt.Errorf("decode signaling frame: %w", err)
	}
	if strings.TrimSpace(frame.Event) == "" {
		return types.ChatEvent{}, errors.New("signaling frame missing event")
	}
	progress, _ := types.ParseChatProgress(frame.Event)

	var content string
	if len(frame.Content) > 0 {
		if err := json.Unmarshal(frame.Content, &content); err != nil {
			// Non-string payloads are passed through verbatim.
			content = string(frame.Content)
		}
	}
	return types.ChatEvent{
		Progress: progress,
		Content:  content,
		Raw:      append([]byte(nil), data...),
	}, nil
}

func socketURL(raw, authorization string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", core.NewInvalidRequestError("invalid signaling URL")
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", core.NewInvalidRequestError("signaling URL must use http(s) or ws(s)")
	}
	if authorization != "" {
		q := u.Query()
		q.Set("authorization", authorization)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
