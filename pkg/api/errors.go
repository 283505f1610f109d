package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/vango-go/agents-lite/pkg/core"
)

// TransportError represents HTTP transport-level failures (DNS, timeouts,
// connection reset, TLS handshake, etc.) while talking to the service.
//
// Use errors.As(err, &TransportError{}) to distinguish transport failures
// from API errors (*core.Error).
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Op != "" && e.URL != "":
		return fmt.Sprintf("transport error during %s %s: %v", e.Op, redactURLUserInfo(e.URL), e.Err)
	case e.Op != "":
		return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func redactURLUserInfo(raw string) string {
	if raw == "" {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed == nil {
		return raw
	}
	parsed.User = nil
	q := parsed.Query()
	if q.Has("authorization") {
		q.Set("authorization", "redacted")
		parsed.RawQuery = q.Encode()
	}
	return parsed.String()
}

// decodeErrorResponse turns a non-2xx response into a *core.Error. Both the
// service's {"kind","description"} body and the {"error":{...}} envelope are
// understood.
func decodeErrorResponse(resp *http.Response, endpoint, method string) error {
	defer resp.Body.Close()

	requestID := requestIDFromHeader(resp.Header)
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &TransportError{Op: method, URL: endpoint, Err: err}
	}

	var env struct {
		Kind        string      `json:"kind"`
		Description string      `json:"description"`
		Error       *core.Error `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		switch {
		case env.Error != nil:
			if env.Error.RequestID == "" {
				env.Error.RequestID = requestID
			}
			if env.Error.Type == "" {
				env.Error.Type = inferErrorType(resp.StatusCode)
			}
			if env.Error.Message == "" {
				env.Error.Message = http.StatusText(resp.StatusCode)
			}
			env.Error.Status = resp.StatusCode
			return env.Error
		case env.Kind != "" || env.Description != "":
			msg := strings.TrimSpace(env.Description)
			if msg == "" {
				msg = http.StatusText(resp.StatusCode)
			}
			return &core.Error{
				Type:      inferErrorType(resp.StatusCode),
				Message:   msg,
				Code:      strings.TrimSpace(env.Kind),
				RequestID: requestID,
				Status:    resp.StatusCode,
			}
		}
	}

	msg := "request failed"
	if resp.StatusCode > 0 {
		msg = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}
	return &core.Error{
		Type:      inferErrorType(resp.StatusCode),
		Message:   msg,
		RequestID: requestID,
		Status:    resp.StatusCode,
	}
}

func inferErrorType(statusCode int) core.ErrorType {
	switch statusCode {
	case http.StatusBadRequest:
		return core.ErrInvalidRequest
	case http.StatusUnauthorized:
		return core.ErrAuthentication
	case http.StatusForbidden:
		return core.ErrPermission
	case http.StatusNotFound:
		return core.ErrNotFound
	case http.StatusTooManyRequests:
		return core.ErrRateLimit
	default:
		return core.ErrAPI
	}
}

func requestIDFromHeader(h http.Header) string {
	if h == nil {
		return ""
	}
	if reqID := strings.TrimSpace(h.Get("X-Request-Id")); reqID != "" {
		return reqID
	}
	return strings.TrimSpace(h.Get("X-Amzn-Requestid"))
}
