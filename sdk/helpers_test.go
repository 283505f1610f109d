package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vango-go/agents-lite/pkg/api"
	"github.com/vango-go/agents-lite/pkg/core/types"
	"github.com/vango-go/agents-lite/pkg/media"
	"github.com/vango-go/agents-lite/pkg/signaling"
	"github.com/vango-go/agents-lite/pkg/transcript"
)

const testAgentID = "agt_1"

func testAgent() types.Agent {
	return types.Agent{
		ID:          testAgentID,
		PreviewName: "Ava",
		Greetings:   []string{"Hi"},
		Presenter: &types.Presenter{
			Type:        types.PresenterTypeClip,
			DriverID:    "drv",
			PresenterID: "pres",
			Voice:       &types.Voice{Type: "microsoft", VoiceID: "en-US-JennyNeural"},
		},
	}
}

type ratingCall struct {
	Method  string
	Path    string
	Payload types.RatingPayload
}

// fakeAPI is a scripted REST backend.
type fakeAPI struct {
	t      *testing.T
	server *httptest.Server

	mu            sync.Mutex
	agent         types.Agent
	knowledge     *types.Knowledge
	newChatStatus int
	chatsCreated  int
	chatStatus    int
	chatResponse  types.ChatResponse
	chatPosts     []types.ChatPayload
	chatPaths     []string
	onChat        func(r *http.Request)
	ratings       []ratingCall
}

func newFakeAPI(t *testing.T, agent types.Agent) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		t:            t,
		agent:        agent,
		chatResponse: types.ChatResponse{Result: "world"},
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) handle(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	writeJSON := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	fail := func(status int) {
		writeJSON(status, map[string]string{"kind": "InternalServerError", "description": "scripted failure"})
	}

	switch {
	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "agents":
		f.mu.Lock()
		agent := f.agent
		f.mu.Unlock()
		if parts[1] != agent.ID {
			writeJSON(http.StatusNotFound, map[string]string{"kind": "NotFoundError", "description": "agent not found"})
			return
		}
		writeJSON(http.StatusOK, agent)

	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "knowledge":
		f.mu.Lock()
		knowledge := f.knowledge
		f.mu.Unlock()
		if knowledge == nil {
			fail(http.StatusNotFound)
			return
		}
		writeJSON(http.StatusOK, knowledge)

	case r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "chat":
		f.mu.Lock()
		status := f.newChatStatus
		if status == 0 {
			f.chatsCreated++
		}
		id := fmt.Sprintf("cht_%d", f.chatsCreated)
		f.mu.Unlock()
		if status != 0 {
			fail(status)
			return
		}
		writeJSON(http.StatusCreated, types.Chat{ID: id})

	case r.Method == http.MethodPost && len(parts) == 4 && parts[2] == "chat":
		var payload types.ChatPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			f.t.Errorf("decode chat payload: %v", err)
		}
		f.mu.Lock()
		f.chatPosts = append(f.chatPosts, payload)
		f.chatPaths = append(f.chatPaths, r.URL.Path)
		status, resp, onChat := f.chatStatus, f.chatResponse, f.onChat
		f.mu.Unlock()
		if onChat != nil {
			onChat(r)
		}
		if status != 0 {
			fail(status)
			return
		}
		writeJSON(http.StatusOK, resp)

	case len(parts) >= 5 && parts[4] == "ratings":
		var payload types.RatingPayload
		if r.Method != http.MethodDelete {
			_ = json.NewDecoder(r.Body).Decode(&payload)
		}
		f.mu.Lock()
		f.ratings = append(f.ratings, ratingCall{Method: r.Method, Path: r.URL.Path, Payload: payload})
		f.mu.Unlock()
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		id := "rat_1"
		if len(parts) == 6 {
			id = parts[5]
		}
		writeJSON(http.StatusOK, types.Rating{ID: id, MessageID: payload.MessageID, Score: payload.Score, Matches: payload.Matches})

	default:
		f.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		http.NotFound(w, r)
	}
}

func (f *fakeAPI) posts() []types.ChatPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.ChatPayload(nil), f.chatPosts...)
}

func (f *fakeAPI) created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chatsCreated
}

func (f *fakeAPI) set(fn func(f *fakeAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// fakeSignaling is a scripted signaling channel.
type fakeSignaling struct {
	cfg     signaling.Config
	handler signaling.Handler

	mu           sync.Mutex
	disconnects  int
	onDisconnect func()
}

func (s *fakeSignaling) Disconnect() error {
	s.mu.Lock()
	s.disconnects++
	hook := s.onDisconnect
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (s *fakeSignaling) disconnectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnects
}

func (s *fakeSignaling) emit(progress types.ChatProgress, content string) {
	s.handler(types.ChatEvent{Progress: progress, Content: content})
}

type signalingFactory struct {
	mu     sync.Mutex
	opened []*fakeSignaling
	err    error
	delay  time.Duration
	hook   func(*fakeSignaling)
}

func (f *signalingFactory) open(ctx context.Context, cfg signaling.Config, handler signaling.Handler) (SignalingChannel, error) {
	f.mu.Lock()
	err, delay, hook := f.err, f.delay, f.hook
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	s := &fakeSignaling{cfg: cfg, handler: handler}
	if hook != nil {
		hook(s)
	}
	f.mu.Lock()
	f.opened = append(f.opened, s)
	f.mu.Unlock()
	return s, nil
}

func (f *signalingFactory) last() *fakeSignaling {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.opened) == 0 {
		return nil
	}
	return f.opened[len(f.opened)-1]
}

func (f *signalingFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opened)
}

// fakeMedia is a scripted media session.
type fakeMedia struct {
	n   int
	cfg media.Config

	mu          sync.Mutex
	disconnects int
	speaks      []types.Script
}

func (m *fakeMedia) SessionID() string { return fmt.Sprintf("sess_%d", m.n) }
func (m *fakeMedia) StreamID() string  { return fmt.Sprintf("strm_%d", m.n) }

func (m *fakeMedia) Speak(ctx context.Context, script types.Script) (*types.SendStreamResponse, error) {
	var voice *types.Voice
	if m.cfg.Presenter != nil {
		voice = m.cfg.Presenter.Voice
	}
	normalized, err := media.NormalizeScript(script, voice)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.speaks = append(m.speaks, normalized)
	m.mu.Unlock()
	return &types.SendStreamResponse{Status: "started"}, nil
}

func (m *fakeMedia) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnects++
	return nil
}

func (m *fakeMedia) disconnectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnects
}

type mediaFactory struct {
	mu      sync.Mutex
	opened  []*fakeMedia
	err     error
	streams []media.StreamAPI
}

func (f *mediaFactory) open(ctx context.Context, streams media.StreamAPI, cfg media.Config) (MediaSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams = append(f.streams, streams)
	if f.err != nil {
		return nil, f.err
	}
	s := &fakeMedia{n: len(f.opened) + 1, cfg: cfg}
	f.opened = append(f.opened, s)
	return s, nil
}

func (f *mediaFactory) last() *fakeMedia {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.opened) == 0 {
		return nil
	}
	return f.opened[len(f.opened)-1]
}

func (f *mediaFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opened)
}

// eventLog records every published event.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) record(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func (l *eventLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

type harness struct {
	api       *fakeAPI
	signaling *signalingFactory
	media     *mediaFactory
	events    *eventLog
	m         *Manager
}

func newHarness(t *testing.T, agent types.Agent, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		api:       newFakeAPI(t, agent),
		signaling: &signalingFactory{},
		media:     &mediaFactory{},
		events:    &eventLog{},
	}
	var ids int
	base := []Option{
		WithAuth(api.BearerAuth("test-token")),
		WithBaseURL(h.api.server.URL),
		WithSignalingOpener(h.signaling.open),
		WithMediaOpener(h.media.open),
		WithTranscriptOptions(
			transcript.WithIDGenerator(func() string {
				ids++
				return fmt.Sprintf("msg_%d", ids)
			}),
			transcript.WithGreetingPicker(func(int) int { return 0 }),
		),
	}
	m, err := NewManager(context.Background(), agent.ID, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	m.Subscribe(h.events.record)
	h.m = m
	return h
}

// flush waits until every published event has been delivered.
func (h *harness) flush() {
	h.m.bus.flush()
}

func eventsOf[T Event](events []Event) []T {
	var out []T
	for _, ev := range events {
		if e, ok := ev.(T); ok {
			out = append(out, e)
		}
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
