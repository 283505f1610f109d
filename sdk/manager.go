// Package agents is the Go client for conversational video agents.
//
// A Manager binds one agent to a chat resource, a notifications socket that
// streams answer tokens, and a WebRTC stream of the agent's presenter. Hosts
// drive it with Connect, Chat, Speak, Rate and Disconnect, and observe it
// through Callbacks or Subscribe.
package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"golang.org/x/sync/errgroup"

	"github.com/vango-go/agents-lite/pkg/api"
	"github.com/vango-go/agents-lite/pkg/core"
	"github.com/vango-go/agents-lite/pkg/core/types"
	"github.com/vango-go/agents-lite/pkg/media"
	"github.com/vango-go/agents-lite/pkg/signaling"
	"github.com/vango-go/agents-lite/pkg/telemetry"
	"github.com/vango-go/agents-lite/pkg/transcript"
)

// Manager is a session with one agent. It is safe for concurrent use.
type Manager struct {
	agentID string

	// Set by options.
	auth           api.Auth
	baseURL        string
	wsURL          string
	httpClient     *http.Client
	requestTimeout time.Duration
	connectTimeout time.Duration
	logger         *slog.Logger
	observer       telemetry.Observer
	callbacks      []Callbacks
	sessionCtx     context.Context
	streamArgs     types.CreateStreamRequest
	iceServers     []webrtc.ICEServer
	newPeer        media.PeerFactory
	openSignaling  SignalingOpener
	openMedia      MediaOpener
	transcriptOpts []transcript.Option

	client     *api.Client
	agent      *types.Agent
	starters   []string
	transcript *transcript.Store
	bus        *bus

	// lifecycle serializes Connect, Reconnect, Disconnect, ChangeMode and
	// Close. chatMu serializes lazy chat creation.
	lifecycle sync.Mutex
	chatMu    sync.Mutex

	mu        sync.Mutex
	state     State
	mode      types.ChatMode
	chatID    string
	signaling SignalingChannel
	media     MediaSession
	// gen tags the current pair of handles. Callbacks from handles of an
	// older generation are dropped.
	gen     uint64
	aborted bool
	closed  bool
}

// NewManager resolves the agent definition and returns a Manager in the
// idle state with a seeded transcript.
func NewManager(ctx context.Context, agentID string, opts ...Option) (*Manager, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return nil, core.NewValidationError("agent id must not be empty", "agent_id")
	}

	m := &Manager{
		agentID:       agentID,
		logger:        slog.Default(),
		observer:      telemetry.NopObserver{},
		sessionCtx:    context.Background(),
		openSignaling: openSignaling,
		openMedia:     openMedia,
		state:         StateIdle,
		mode:          types.ChatModeFunctional,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.observer == nil {
		m.observer = telemetry.NopObserver{}
	}
	if m.sessionCtx == nil {
		m.sessionCtx = context.Background()
	}
	m.logger = m.logger.With("agent_id", agentID)

	apiOpts := []api.Option{api.WithLogger(m.logger)}
	if m.baseURL != "" {
		apiOpts = append(apiOpts, api.WithBaseURL(m.baseURL))
	}
	if m.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(m.httpClient))
	}
	if m.requestTimeout > 0 {
		apiOpts = append(apiOpts, api.WithRequestTimeout(m.requestTimeout))
	}
	m.client = api.New(m.auth, apiOpts...)

	start := time.Now()
	callCtx, cancel := m.callContext(ctx)
	defer cancel()

	agent, err := m.client.GetAgentByID(callCtx, agentID)
	if err == nil && agent.Presenter == nil {
		err = core.NewInvalidRequestError("agent has no presenter")
	}
	if err != nil {
		m.observe("init", start, err)
		return nil, err
	}
	m.agent = agent
	if agent.ChatMode.Valid() {
		m.mode = agent.ChatMode
	}
	m.starters = m.loadStarterMessages(callCtx)

	m.transcript = transcript.New(m.transcriptOpts...)
	m.bus = newBus()
	for _, cb := range m.callbacks {
		m.bus.subscribe(cb.dispatch)
	}
	m.publishMessages(m.transcript.Reset(agent))
	m.bus.publish(AgentReadyEvent{Agent: m.Agent()})

	m.logger.Info("agent ready", "presenter", agent.Presenter.Type, "mode", m.mode)
	m.observe("init", start, nil)
	return m, nil
}

func (m *Manager) loadStarterMessages(ctx context.Context) []string {
	ref := m.agent.Knowledge
	if ref == nil || ref.ID == "" {
		return nil
	}
	knowledge, err := m.client.GetKnowledge(ctx, ref.ID)
	if err != nil {
		m.logger.Warn("loading knowledge failed", "knowledge_id", ref.ID, "error", err)
		return nil
	}
	return append([]string(nil), knowledge.StarterMessage...)
}

// Connect opens the signaling channel and the media session, creates the
// chat if none exists yet, and switches to Functional mode. Prior handles
// are discarded and the transcript is reseeded first. If any step fails the
// whole call fails and nothing stays open.
func (m *Manager) Connect(ctx context.Context) error {
	start := time.Now()
	err := m.connect(ctx, false)
	m.observe("connect", start, err)
	return err
}

// Reconnect reopens the signaling channel and media session bound to the
// existing chat, keeping the transcript. Without a chat it behaves like
// Connect.
func (m *Manager) Reconnect(ctx context.Context) error {
	start := time.Now()
	err := m.connect(ctx, true)
	m.observe("reconnect", start, err)
	return err
}

func (m *Manager) connect(ctx context.Context, reuseChat bool) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}

	ctx, cancel := m.callContext(ctx)
	defer cancel()

	ev := evConnectRequested
	m.mu.Lock()
	if reuseChat && m.chatID != "" {
		ev = evReconnectRequested
	}
	m.mu.Unlock()
	if err := m.apply(ctx, ev, 0); err != nil {
		m.logger.Warn("closing previous session failed", "error", err)
	}

	m.mu.Lock()
	gen := m.gen
	m.aborted = false
	m.mu.Unlock()

	sig, med, err := m.openHandles(ctx, gen)
	if err != nil {
		_ = m.apply(context.Background(), evConnectFailed, gen)
		m.logger.Warn("connect failed", "error", err)
		return err
	}

	m.mu.Lock()
	m.signaling, m.media = sig, med
	m.mu.Unlock()

	chatID, err := m.ensureChat(ctx)
	if err == nil {
		m.mu.Lock()
		if m.aborted {
			err = core.NewConnectionError("media session failed while connecting", nil)
		}
		m.mu.Unlock()
	}
	if err != nil {
		_ = m.apply(context.Background(), evConnectFailed, gen)
		m.logger.Warn("connect failed", "error", err)
		return err
	}

	if err := m.apply(ctx, evConnectSucceeded, gen); err != nil {
		return err
	}
	m.logger.Info("session connected", "chat_id", chatID, "stream_id", med.StreamID())
	return nil
}

// openHandles opens the signaling channel and the media session
// concurrently. If either fails the other is torn down.
func (m *Manager) openHandles(ctx context.Context, gen uint64) (SignalingChannel, MediaSession, error) {
	authorization, err := m.auth.Header()
	if err != nil {
		return nil, nil, err
	}
	streams, err := m.client.Streams(m.agent.Presenter.Type)
	if err != nil {
		return nil, nil, err
	}

	var (
		sig SignalingChannel
		med MediaSession
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ch, err := m.openSignaling(gctx, signaling.Config{
			URL:           m.wsURL,
			Authorization: authorization,
			Logger:        m.logger,
		}, m.signalingHandler(gen))
		if err != nil {
			return err
		}
		sig = ch
		return nil
	})
	g.Go(func() error {
		s, err := m.openMedia(gctx, streams, m.mediaConfig(gen))
		if err != nil {
			return err
		}
		med = s
		return nil
	})
	if err := g.Wait(); err != nil {
		if closeErr := closeHandles(context.Background(), sig, med); closeErr != nil {
			m.logger.Warn("releasing partial session failed", "error", closeErr)
		}
		return nil, nil, err
	}
	return sig, med, nil
}

func (m *Manager) signalingHandler(gen uint64) signaling.Handler {
	return func(ev types.ChatEvent) {
		if !m.current(gen) {
			return
		}
		m.observer.ObserveChatEvent(progressLabel(ev.Progress))
		m.bus.publish(ChatProgressEvent{Progress: ev.Progress, Content: ev.Content, Raw: ev.Raw})
		if msgs, changed := m.transcript.ApplyProgress(ev.Progress, ev.Content); changed {
			m.publishMessages(msgs)
		}
	}
}

func (m *Manager) mediaConfig(gen uint64) media.Config {
	return media.Config{
		Presenter:      m.agent.Presenter,
		Stream:         m.streamArgs,
		ICEServers:     m.iceServers,
		ConnectTimeout: m.connectTimeout,
		NewPeer:        m.newPeer,
		Logger:         m.logger,
		Callbacks: media.Callbacks{
			OnConnectionStateChange: func(state types.ConnectionState) {
				if !m.current(gen) {
					return
				}
				m.observer.ObserveConnectionState(string(state))
				m.bus.publish(ConnectionStateEvent{State: state})
			},
			OnVideoStateChange: func(state types.VideoState, stats *types.VideoStats) {
				if !m.current(gen) {
					return
				}
				m.bus.publish(VideoStateEvent{State: state, Stats: stats})
			},
			OnFailure: func(err error) {
				m.mediaFailed(gen, err)
			},
		},
	}
}

func (m *Manager) mediaFailed(gen uint64, err error) {
	if !m.current(gen) {
		return
	}
	m.logger.Warn("media session failed", "error", err)
	go func() {
		if err := m.apply(context.Background(), evMediaFailed, gen); err != nil {
			m.logger.Warn("closing failed session", "error", err)
		}
	}()
}

// Disconnect closes the signaling channel and media session, if any, and
// reseeds the transcript. It is idempotent and does not cancel an in-flight
// Chat.
func (m *Manager) Disconnect(ctx context.Context) error {
	start := time.Now()
	m.lifecycle.Lock()
	err := m.apply(ctx, evDisconnectRequested, 0)
	m.lifecycle.Unlock()
	m.observe("disconnect", start, err)
	return err
}

// ChangeMode switches the chat mode. Equal modes are a no-op. Leaving for
// TextOnly or Maintenance disconnects the live session first. Switching to
// Functional does not connect; call Connect.
func (m *Manager) ChangeMode(ctx context.Context, mode types.ChatMode) error {
	start := time.Now()
	err := m.changeMode(ctx, mode)
	m.observe("change_mode", start, err)
	return err
}

func (m *Manager) changeMode(ctx context.Context, mode types.ChatMode) error {
	if !mode.Valid() {
		return core.NewValidationError(fmt.Sprintf("unknown chat mode %q", mode), "mode")
	}
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}

	m.mu.Lock()
	current := m.mode
	m.mu.Unlock()
	if mode == current {
		return nil
	}

	if mode != types.ChatModeFunctional {
		if err := m.apply(ctx, evDisconnectRequested, 0); err != nil {
			m.logger.Warn("disconnect before mode change failed", "error", err)
		}
	}

	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
	m.logger.Info("chat mode changed", "from", current, "to", mode)
	m.bus.publish(ModeChangeEvent{Mode: mode})
	return nil
}

// Chat sends text to the agent and appends the exchange to the transcript.
//
// The user message is appended before the request is sent and stays in the
// transcript if the request fails. In TextOnly mode a chat is created on
// first use; in Functional mode a connected session is required;
// Maintenance rejects every message.
func (m *Manager) Chat(ctx context.Context, text string, appendToChat bool) (*types.ChatResponse, error) {
	start := time.Now()
	resp, err := m.chat(ctx, text, appendToChat)
	m.observe("chat", start, err)
	return resp, err
}

func (m *Manager) chat(ctx context.Context, text string, appendToChat bool) (*types.ChatResponse, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if err := transcript.ValidateContent(text); err != nil {
		return nil, err
	}

	ctx, cancel := m.callContext(ctx)
	defer cancel()

	m.mu.Lock()
	mode, chatID, med := m.mode, m.chatID, m.media
	m.mu.Unlock()

	switch mode {
	case types.ChatModeMaintenance:
		return nil, core.NewModeError("chat is disabled while the agent is in maintenance")
	case types.ChatModeTextOnly:
		if chatID == "" {
			id, err := m.ensureChat(ctx)
			if err != nil {
				return nil, err
			}
			chatID = id
		}
	default:
		if chatID == "" || med == nil {
			return nil, core.NewNotInitializedError("chat requires a connected session; call Connect first")
		}
	}

	_, msgs, err := m.transcript.AppendUser(text)
	if err != nil {
		return nil, err
	}
	m.publishMessages(msgs)

	payload := types.ChatPayload{
		Messages:     msgs,
		ChatMode:     mode,
		AppendToChat: appendToChat,
	}
	if med != nil {
		payload.SessionID = med.SessionID()
		payload.StreamID = med.StreamID()
	}

	resp, err := m.client.PostChat(ctx, m.agentID, chatID, payload)
	if err != nil {
		m.logger.Warn("chat request failed", "chat_id", chatID, "error", err)
		return nil, err
	}

	_, msgs = m.transcript.AppendAssistant(resp.Result, resp.Matches)
	m.publishMessages(msgs)

	if resp.ChatMode.Valid() && resp.ChatMode != mode {
		if err := m.ChangeMode(ctx, resp.ChatMode); err != nil {
			m.logger.Warn("applying server chat mode failed", "mode", resp.ChatMode, "error", err)
		}
	}
	return resp, nil
}

// ensureChat returns the current chat id, creating the chat if needed.
func (m *Manager) ensureChat(ctx context.Context) (string, error) {
	m.chatMu.Lock()
	defer m.chatMu.Unlock()

	m.mu.Lock()
	id := m.chatID
	m.mu.Unlock()
	if id != "" {
		return id, nil
	}

	chat, err := m.client.NewChat(ctx, m.agentID)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.chatID = chat.ID
	m.mu.Unlock()

	m.logger.Info("chat created", "chat_id", chat.ID)
	m.bus.publish(NewChatEvent{ChatID: chat.ID})
	return chat.ID, nil
}

// Rate rates an assistant message with score 1 or -1. A non-empty ratingID
// updates that rating; otherwise a new one is created.
func (m *Manager) Rate(ctx context.Context, messageID string, score int, ratingID string) (*types.Rating, error) {
	start := time.Now()
	rating, err := m.rate(ctx, messageID, score, ratingID)
	m.observe("rate", start, err)
	return rating, err
}

func (m *Manager) rate(ctx context.Context, messageID string, score int, ratingID string) (*types.Rating, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	chatID := m.chatID
	m.mu.Unlock()
	if chatID == "" {
		return nil, core.NewNotInitializedError("rating requires an existing chat")
	}
	msg, ok := m.transcript.Find(messageID)
	if !ok {
		return nil, core.NewNotFoundError(fmt.Sprintf("message %q not found", messageID))
	}
	if score != 1 && score != -1 {
		return nil, core.NewValidationError("score must be 1 or -1", "score")
	}

	payload := types.RatingPayload{
		MessageID: msg.ID,
		Matches:   make([][2]string, 0, len(msg.Matches)),
		Score:     score,
	}
	for _, match := range msg.Matches {
		payload.Matches = append(payload.Matches, [2]string{match.DocumentID, match.ID})
	}
	if m.agent.Knowledge != nil {
		payload.KnowledgeID = m.agent.Knowledge.ID
	}

	ctx, cancel := m.callContext(ctx)
	defer cancel()
	if ratingID != "" {
		return m.client.UpdateRating(ctx, m.agentID, chatID, ratingID, payload)
	}
	return m.client.CreateRating(ctx, m.agentID, chatID, payload)
}

// DeleteRate deletes a rating of the current chat.
func (m *Manager) DeleteRate(ctx context.Context, ratingID string) error {
	start := time.Now()
	err := m.deleteRate(ctx, ratingID)
	m.observe("delete_rate", start, err)
	return err
}

func (m *Manager) deleteRate(ctx context.Context, ratingID string) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	m.mu.Lock()
	chatID := m.chatID
	m.mu.Unlock()
	if chatID == "" {
		return core.NewNotInitializedError("deleting a rating requires an existing chat")
	}
	if strings.TrimSpace(ratingID) == "" {
		return core.NewValidationError("rating id must not be empty", "rating_id")
	}
	ctx, cancel := m.callContext(ctx)
	defer cancel()
	return m.client.DeleteRating(ctx, m.agentID, chatID, ratingID)
}

// Speak makes the presenter say a text or audio script.
func (m *Manager) Speak(ctx context.Context, script types.Script) (*types.SendStreamResponse, error) {
	start := time.Now()
	resp, err := m.speak(ctx, script)
	m.observe("speak", start, err)
	return resp, err
}

func (m *Manager) speak(ctx context.Context, script types.Script) (*types.SendStreamResponse, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	med := m.media
	m.mu.Unlock()
	if med == nil {
		return nil, core.NewNotInitializedError("speak requires a connected media session")
	}
	ctx, cancel := m.callContext(ctx)
	defer cancel()
	return med.Speak(ctx, script)
}

// Close disconnects and stops event delivery. Queued events are delivered
// before Close returns. It must not be called from a callback.
func (m *Manager) Close() error {
	m.lifecycle.Lock()
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.lifecycle.Unlock()
		return nil
	}
	m.mu.Unlock()
	err := m.apply(context.Background(), evDisconnectRequested, 0)
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.lifecycle.Unlock()

	m.bus.close()
	return err
}

// Subscribe registers fn for every event. The returned func unsubscribes.
func (m *Manager) Subscribe(fn func(Event)) func() {
	return m.bus.subscribe(fn)
}

// Agent returns the agent definition.
func (m *Manager) Agent() *types.Agent {
	return m.agent.Clone()
}

// StarterMessages returns the knowledge base's suggested first questions.
func (m *Manager) StarterMessages() []string {
	return append([]string(nil), m.starters...)
}

// Messages returns a snapshot of the transcript.
func (m *Manager) Messages() []types.Message {
	return m.transcript.Snapshot()
}

// Mode returns the current chat mode.
func (m *Manager) Mode() types.ChatMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// ChatID returns the current chat id, or "" before a chat exists.
func (m *Manager) ChatID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chatID
}

// State returns the connection lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// apply runs a lifecycle transition and its effects. A non-zero gen makes
// the transition conditional on the handles still being current.
func (m *Manager) apply(ctx context.Context, ev lifecycleEvent, gen uint64) error {
	m.mu.Lock()
	if gen != 0 && gen != m.gen {
		m.mu.Unlock()
		return nil
	}
	from := m.state
	next, effects := transition(m.state, ev)
	m.state = next

	var (
		sig                   SignalingChannel
		med                   MediaSession
		reset, modeChanged    bool
		sessionStarted, ended bool
	)
	for _, eff := range effects {
		switch eff {
		case effCloseHandles:
			sig, med = m.signaling, m.media
			m.signaling, m.media = nil, nil
			m.gen++
		case effResetTranscript:
			reset = true
		case effSetFunctional:
			if m.mode != types.ChatModeFunctional {
				m.mode = types.ChatModeFunctional
				modeChanged = true
			}
		case effSessionStarted:
			sessionStarted = true
		case effSessionEnded:
			ended = true
		case effAbortConnect:
			m.aborted = true
		}
	}
	m.mu.Unlock()

	if from != next {
		m.logger.Debug("session state", "event", ev.String(), "from", from, "to", next)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := closeHandles(ctx, sig, med)
	if reset {
		m.publishMessages(m.transcript.Reset(m.agent))
	}
	if modeChanged {
		m.bus.publish(ModeChangeEvent{Mode: types.ChatModeFunctional})
	}
	if sessionStarted {
		m.observer.ObserveSessionStart()
	}
	if ended {
		m.observer.ObserveSessionEnd()
	}
	return err
}

func closeHandles(ctx context.Context, sig SignalingChannel, med MediaSession) error {
	var errs []error
	if sig != nil {
		if err := sig.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("disconnect signaling: %w", err))
		}
	}
	if med != nil {
		if err := med.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("disconnect media: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen && !m.closed
}

func (m *Manager) checkOpen() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return core.NewNotInitializedError("manager is closed")
	}
	return nil
}

func (m *Manager) publishMessages(msgs []types.Message) {
	m.bus.publish(NewMessageEvent{Messages: msgs})
}

// callContext derives a call context that is also cancelled with the
// session context.
func (m *Manager) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m.sessionCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (m *Manager) observe(op string, start time.Time, err error) {
	m.observer.ObserveOperation(op, time.Since(start), err)
	if err != nil {
		m.logger.Debug("operation failed", "op", op, "error", err)
	}
}

func progressLabel(p types.ChatProgress) string {
	switch p {
	case types.ChatProgressPartial, types.ChatProgressAnswer, types.ChatProgressComplete:
		return string(p)
	}
	return "other"
}
