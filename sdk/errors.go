package agents

import (
	"github.com/vango-go/agents-lite/pkg/api"
	"github.com/vango-go/agents-lite/pkg/core"
)

// SDK-level error type that wraps core errors
type Error = core.Error

// Error types
const (
	ErrValidation     = core.ErrValidation
	ErrMode           = core.ErrMode
	ErrNotInitialized = core.ErrNotInitialized
	ErrNotFound       = core.ErrNotFound
	ErrConnection     = core.ErrConnection
	ErrInvalidPayload = core.ErrInvalidPayload
	ErrInvalidRequest = core.ErrInvalidRequest
	ErrAuthentication = core.ErrAuthentication
	ErrPermission     = core.ErrPermission
	ErrRateLimit      = core.ErrRateLimit
	ErrAPI            = core.ErrAPI
)

// TransportError represents HTTP or websocket transport failures (DNS,
// timeouts, connection reset, TLS handshake, etc.).
//
// Use errors.As(err, &TransportError{}) to distinguish transport failures
// from API errors (*core.Error).
type TransportError = api.TransportError

// IsType reports whether err is a *Error of the given type.
func IsType(err error, typ core.ErrorType) bool {
	return core.IsType(err, typ)
}
