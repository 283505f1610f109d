package agents

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/vango-go/agents-lite/pkg/api"
	"github.com/vango-go/agents-lite/pkg/core/types"
	"github.com/vango-go/agents-lite/pkg/media"
	"github.com/vango-go/agents-lite/pkg/telemetry"
	"github.com/vango-go/agents-lite/pkg/transcript"
)

// Option is a function that configures a Manager.
type Option func(*Manager)

// WithAuth sets the credentials used for REST calls and the signaling
// socket.
func WithAuth(auth api.Auth) Option {
	return func(m *Manager) {
		m.auth = auth
	}
}

// WithBaseURL sets the REST API base URL.
func WithBaseURL(url string) Option {
	return func(m *Manager) {
		m.baseURL = url
	}
}

// WithWebSocketURL sets the notifications socket URL.
func WithWebSocketURL(url string) Option {
	return func(m *Manager) {
		m.wsURL = url
	}
}

// WithHTTPClient sets a custom HTTP client for REST calls.
func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) {
		m.httpClient = client
	}
}

// WithRequestTimeout bounds REST calls whose context has no deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.requestTimeout = d
	}
}

// WithConnectTimeout bounds how long the media session may take to reach
// the connected state.
func WithConnectTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.connectTimeout = d
	}
}

// WithLogger sets the logger for the manager.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithObserver sets the telemetry observer. *telemetry.Metrics implements it.
func WithObserver(o telemetry.Observer) Option {
	return func(m *Manager) {
		m.observer = o
	}
}

// WithCallbacks registers host callbacks.
func WithCallbacks(cb Callbacks) Option {
	return func(m *Manager) {
		m.callbacks = append(m.callbacks, cb)
	}
}

// WithContext scopes the whole session to ctx. Cancelling it aborts
// in-flight REST calls and connects.
func WithContext(ctx context.Context) Option {
	return func(m *Manager) {
		m.sessionCtx = ctx
	}
}

// WithStreamOptions sets optional stream creation arguments such as warmup
// or output resolution.
func WithStreamOptions(req types.CreateStreamRequest) Option {
	return func(m *Manager) {
		m.streamArgs = req
	}
}

// WithICEServers appends STUN/TURN servers to those returned by the API.
func WithICEServers(servers ...webrtc.ICEServer) Option {
	return func(m *Manager) {
		m.iceServers = append(m.iceServers, servers...)
	}
}

// WithPeerFactory overrides how WebRTC peer connections are created.
func WithPeerFactory(f media.PeerFactory) Option {
	return func(m *Manager) {
		m.newPeer = f
	}
}

// WithSignalingOpener replaces the signaling channel implementation.
func WithSignalingOpener(open SignalingOpener) Option {
	return func(m *Manager) {
		m.openSignaling = open
	}
}

// WithMediaOpener replaces the media session implementation.
func WithMediaOpener(open MediaOpener) Option {
	return func(m *Manager) {
		m.openMedia = open
	}
}

// WithTranscriptOptions configures the transcript store (clock, id
// generator, greeting picker).
func WithTranscriptOptions(opts ...transcript.Option) Option {
	return func(m *Manager) {
		m.transcriptOpts = append(m.transcriptOpts, opts...)
	}
}
