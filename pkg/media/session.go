// Package media negotiates and drives the presenter's WebRTC stream: it
// creates the stream over REST, answers the server's SDP offer, trickles
// local ICE candidates, and reports connection and video state.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/vango-go/agents-lite/pkg/core"
	"github.com/vango-go/agents-lite/pkg/core/types"
)

// connectTimeout is the maximum time to wait for the PeerConnection to reach
// the Connected state after the answer is posted.
const connectTimeout = 30 * time.Second

// candidateTimeout bounds each trickled ICE candidate request.
const candidateTimeout = 10 * time.Second

// closeTimeout bounds the CloseStream request made on disconnect.
const closeTimeout = 5 * time.Second

// StreamAPI is the subset of the streams REST API a session needs.
// *api.Streams implements it.
type StreamAPI interface {
	CreateStream(ctx context.Context, req types.CreateStreamRequest) (*types.CreateStreamResponse, error)
	StartConnection(ctx context.Context, streamID string, answer types.SessionDescription, sessionID string) error
	AddIceCandidate(ctx context.Context, streamID string, candidate types.IceCandidate, sessionID string) error
	SendStreamRequest(ctx context.Context, streamID string, req types.SpeakRequest) (*types.SendStreamResponse, error)
	CloseStream(ctx context.Context, streamID, sessionID string) error
}

// Peer is the subset of *webrtc.PeerConnection a session uses.
type Peer interface {
	SetRemoteDescription(desc webrtc.SessionDescription) error
	CreateAnswer(options *webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	OnICECandidate(f func(*webrtc.ICECandidate))
	OnConnectionStateChange(f func(webrtc.PeerConnectionState))
	OnTrack(f func(*webrtc.TrackRemote, *webrtc.RTPReceiver))
	GetStats() webrtc.StatsReport
	Close() error
}

// PeerFactory creates a Peer for a configuration.
type PeerFactory func(config webrtc.Configuration) (Peer, error)

// NewPionPeer is the default PeerFactory.
func NewPionPeer(config webrtc.Configuration) (Peer, error) {
	pc, err := webrtc.NewPeerConnection(config)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

// Callbacks receive session notifications. All are optional.
type Callbacks struct {
	OnConnectionStateChange func(state types.ConnectionState)
	OnVideoStateChange      func(state types.VideoState, stats *types.VideoStats)
	// OnTrack receives remote audio and video tracks for rendering.
	OnTrack func(track *webrtc.TrackRemote)
	// OnFailure is called once if the connection fails after Open returned.
	OnFailure func(err error)
}

// Config configures a media session.
type Config struct {
	Presenter *types.Presenter
	// Stream carries optional creation arguments (warmup, compatibility,
	// resolution). Presenter identifiers are filled in from Presenter.
	Stream types.CreateStreamRequest

	ICEServers     []webrtc.ICEServer
	ConnectTimeout time.Duration
	StatsInterval  time.Duration
	NewPeer        PeerFactory
	Logger         *slog.Logger
	Callbacks      Callbacks
}

// Session is an open presenter stream.
type Session struct {
	api       StreamAPI
	peer      Peer
	streamID  string
	sessionID string
	voice     *types.Voice
	logger    *slog.Logger
	callbacks Callbacks

	ctx    context.Context
	cancel context.CancelFunc

	connected   chan struct{}
	connectOnce sync.Once
	failed      chan struct{}
	failOnce    sync.Once
	opened      chan struct{}

	mu        sync.Mutex
	closing   bool
	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup
}

// Open creates the stream, negotiates the PeerConnection and blocks until
// it is connected. A Failed state, ctx cancellation or timeout rejects with
// a connection error and releases the stream.
func Open(ctx context.Context, streams StreamAPI, cfg Config) (*Session, error) {
	if streams == nil {
		return nil, core.NewInvalidRequestError("stream api must not be nil")
	}
	req, err := createRequest(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newPeer := cfg.NewPeer
	if newPeer == nil {
		newPeer = NewPionPeer
	}

	created, err := streams.CreateStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}
	logger = logger.With("stream_id", created.ID)

	peer, err := newPeer(ICEConfig(created.IceServers, cfg.ICEServers))
	if err != nil {
		releaseStream(streams, created.ID, created.SessionID, logger)
		return nil, core.NewConnectionError("creating PeerConnection", err)
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		api:       streams,
		peer:      peer,
		streamID:  created.ID,
		sessionID: created.SessionID,
		voice:     voiceOf(cfg.Presenter),
		logger:    logger,
		callbacks: cfg.Callbacks,
		ctx:       sessionCtx,
		cancel:    cancel,
		connected: make(chan struct{}),
		failed:    make(chan struct{}),
		opened:    make(chan struct{}),
	}

	if err := s.negotiate(ctx, created.Offer); err != nil {
		s.Disconnect(context.Background())
		return nil, core.NewConnectionError("media session negotiation failed", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = connectTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.connected:
	case <-s.failed:
		s.Disconnect(context.Background())
		return nil, core.NewConnectionError("media session failed to connect", nil)
	case <-timer.C:
		s.Disconnect(context.Background())
		return nil, core.NewConnectionError(fmt.Sprintf("media session did not connect within %s", timeout), nil)
	case <-ctx.Done():
		s.Disconnect(context.Background())
		return nil, core.NewConnectionError("media session connect cancelled", ctx.Err())
	}

	close(s.opened)
	s.startStatsPoller(cfg.StatsInterval)
	logger.Info("media session connected", "session_id", s.sessionID)
	return s, nil
}

func (s *Session) negotiate(ctx context.Context, offer types.SessionDescription) error {
	s.peer.OnConnectionStateChange(s.handleConnectionState)
	s.peer.OnICECandidate(s.handleICECandidate)
	s.peer.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		s.logger.Debug("remote track", "kind", track.Kind().String())
		if s.callbacks.OnTrack != nil {
			s.callbacks.OnTrack(track)
		}
	})

	if err := s.peer.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offer.SDP,
	}); err != nil {
		return fmt.Errorf("setting remote description: %w", err)
	}
	answer, err := s.peer.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("creating SDP answer: %w", err)
	}
	if err := s.peer.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("setting local description: %w", err)
	}
	if err := s.api.StartConnection(ctx, s.streamID, types.SessionDescription{
		Type: answer.Type.String(),
		SDP:  answer.SDP,
	}, s.sessionID); err != nil {
		return fmt.Errorf("posting SDP answer: %w", err)
	}
	return nil
}

func (s *Session) handleICECandidate(candidate *webrtc.ICECandidate) {
	var payload types.IceCandidate
	if candidate != nil {
		init := candidate.ToJSON()
		payload = types.IceCandidate{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		}
	}
	if !s.track() {
		return
	}
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, candidateTimeout)
		defer cancel()
		if err := s.api.AddIceCandidate(ctx, s.streamID, payload, s.sessionID); err != nil && s.ctx.Err() == nil {
			s.logger.Warn("sending ICE candidate failed", "error", err)
		}
	}()
}

func (s *Session) handleConnectionState(state webrtc.PeerConnectionState) {
	if s.ctx.Err() != nil {
		return
	}
	mapped := connectionState(state)
	s.logger.Debug("media connection state", "state", mapped)
	if s.callbacks.OnConnectionStateChange != nil {
		s.callbacks.OnConnectionStateChange(mapped)
	}

	switch state {
	case webrtc.PeerConnectionStateConnected:
		s.connectOnce.Do(func() { close(s.connected) })
	case webrtc.PeerConnectionStateFailed:
		s.failOnce.Do(func() {
			close(s.failed)
			select {
			case <-s.opened:
				s.logger.Warn("media session failed")
				if s.callbacks.OnFailure != nil {
					s.callbacks.OnFailure(core.NewConnectionError("media session failed", nil))
				}
			default:
			}
		})
	}
}

// track registers a background goroutine unless the session is closing.
func (s *Session) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	return true
}

// StreamID returns the server stream identifier.
func (s *Session) StreamID() string { return s.streamID }

// SessionID returns the server session identifier.
func (s *Session) SessionID() string { return s.sessionID }

// Speak sends a text or audio script to the presenter.
func (s *Session) Speak(ctx context.Context, script types.Script) (*types.SendStreamResponse, error) {
	normalized, err := NormalizeScript(script, s.voice)
	if err != nil {
		return nil, err
	}
	if s.ctx.Err() != nil {
		return nil, core.NewNotInitializedError("media session is closed")
	}
	return s.api.SendStreamRequest(ctx, s.streamID, types.SpeakRequest{
		SessionID: s.sessionID,
		Script:    normalized,
	})
}

// NormalizeScript validates a speak payload and fills in defaults. Text
// scripts without a provider use voice.
func NormalizeScript(script types.Script, voice *types.Voice) (types.Script, error) {
	switch v := script.(type) {
	case types.TextScript:
		return normalizeText(v, voice)
	case *types.TextScript:
		if v == nil {
			return nil, core.NewInvalidPayloadError("speak payload must not be nil")
		}
		return normalizeText(*v, voice)
	case types.AudioScript:
		return normalizeAudio(v)
	case *types.AudioScript:
		if v == nil {
			return nil, core.NewInvalidPayloadError("speak payload must not be nil")
		}
		return normalizeAudio(*v)
	case nil:
		return nil, core.NewInvalidPayloadError("speak payload must not be nil")
	default:
		return nil, core.NewInvalidPayloadError(fmt.Sprintf("unsupported speak payload %T", script))
	}
}

func normalizeText(script types.TextScript, voice *types.Voice) (types.Script, error) {
	if strings.TrimSpace(script.Input) == "" {
		return nil, core.NewInvalidPayloadError("text script input must not be empty")
	}
	if script.Provider == nil && voice != nil {
		script.Provider = &types.TTSProvider{Type: voice.Type, VoiceID: voice.VoiceID}
	}
	if script.Provider == nil || strings.TrimSpace(script.Provider.Type) == "" {
		return nil, core.NewInvalidPayloadError("text script requires a voice provider")
	}
	script.Type = types.ScriptTypeText
	return script, nil
}

func normalizeAudio(script types.AudioScript) (types.Script, error) {
	if strings.TrimSpace(script.AudioURL) == "" {
		return nil, core.NewInvalidPayloadError("audio script requires audio_url")
	}
	script.Type = types.ScriptTypeAudio
	return script, nil
}

// Disconnect closes the remote stream and the PeerConnection. It is
// idempotent; later calls return the first result.
func (s *Session) Disconnect(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()
		s.cancel()
		if ctx == nil {
			ctx = context.Background()
		}
		closeCtx, cancel := context.WithTimeout(ctx, closeTimeout)
		defer cancel()

		var errs []error
		if err := s.api.CloseStream(closeCtx, s.streamID, s.sessionID); err != nil {
			errs = append(errs, fmt.Errorf("close stream: %w", err))
		}
		if err := s.peer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close peer connection: %w", err))
		}
		s.wg.Wait()
		s.closeErr = errors.Join(errs...)
		s.logger.Debug("media session closed")
	})
	return s.closeErr
}

func createRequest(cfg Config) (types.CreateStreamRequest, error) {
	req := cfg.Stream
	p := cfg.Presenter
	if p == nil {
		return req, core.NewInvalidRequestError("agent has no presenter")
	}
	switch p.Type {
	case types.PresenterTypeClip:
		if p.DriverID == "" && p.PresenterID == "" {
			return req, core.NewInvalidRequestError("clip presenter requires driver_id or presenter_id")
		}
		req.DriverID = p.DriverID
		req.PresenterID = p.PresenterID
		req.SourceURL = ""
	case types.PresenterTypeTalk:
		if p.SourceURL == "" {
			return req, core.NewInvalidRequestError("talk presenter requires source_url")
		}
		req.SourceURL = p.SourceURL
		req.DriverID, req.PresenterID = "", ""
	default:
		return req, core.NewInvalidRequestError("unsupported presenter type " + string(p.Type))
	}
	return req, nil
}

func voiceOf(p *types.Presenter) *types.Voice {
	if p == nil || p.Voice == nil {
		return nil
	}
	v := *p.Voice
	return &v
}

func releaseStream(streams StreamAPI, streamID, sessionID string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := streams.CloseStream(ctx, streamID, sessionID); err != nil {
		logger.Warn("releasing stream failed", "error", err)
	}
}
