package agents

import (
	"sync"

	"github.com/vango-go/agents-lite/pkg/core/types"
)

// Event is a notification published by a Manager. Concrete types:
// AgentReadyEvent, NewMessageEvent, NewChatEvent, ModeChangeEvent,
// ConnectionStateEvent, VideoStateEvent and ChatProgressEvent.
type Event interface {
	eventType() string
}

// AgentReadyEvent is published once the agent definition is loaded.
type AgentReadyEvent struct {
	Agent *types.Agent
}

// NewMessageEvent carries a transcript snapshot after every mutation.
type NewMessageEvent struct {
	Messages []types.Message
}

// NewChatEvent is published when a new chat resource is created.
type NewChatEvent struct {
	ChatID string
}

// ModeChangeEvent is published when the chat mode changes.
type ModeChangeEvent struct {
	Mode types.ChatMode
}

// ConnectionStateEvent mirrors media connection state changes.
type ConnectionStateEvent struct {
	State types.ConnectionState
}

// VideoStateEvent reports presenter video starting or stopping.
type VideoStateEvent struct {
	State types.VideoState
	Stats *types.VideoStats
}

// ChatProgressEvent is a raw signaling event. Unknown progress values are
// delivered too.
type ChatProgressEvent struct {
	Progress types.ChatProgress
	Content  string
	Raw      []byte
}

func (AgentReadyEvent) eventType() string      { return "agent_ready" }
func (NewMessageEvent) eventType() string      { return "new_message" }
func (NewChatEvent) eventType() string         { return "new_chat" }
func (ModeChangeEvent) eventType() string      { return "mode_change" }
func (ConnectionStateEvent) eventType() string { return "connection_state" }
func (VideoStateEvent) eventType() string      { return "video_state" }
func (ChatProgressEvent) eventType() string    { return "chat_progress" }

// Callbacks are optional host hooks. They run on the Manager's dispatch
// goroutine in publication order and may call back into the Manager.
type Callbacks struct {
	OnAgentReady            func(agent *types.Agent)
	OnNewMessage            func(messages []types.Message)
	OnNewChat               func(chatID string)
	OnModeChange            func(mode types.ChatMode)
	OnConnectionStateChange func(state types.ConnectionState)
	OnVideoStateChange      func(state types.VideoState, stats *types.VideoStats)
	OnChatEvents            func(progress types.ChatProgress, content string)
}

func (cb Callbacks) dispatch(ev Event) {
	switch e := ev.(type) {
	case AgentReadyEvent:
		if cb.OnAgentReady != nil {
			cb.OnAgentReady(e.Agent)
		}
	case NewMessageEvent:
		if cb.OnNewMessage != nil {
			cb.OnNewMessage(e.Messages)
		}
	case NewChatEvent:
		if cb.OnNewChat != nil {
			cb.OnNewChat(e.ChatID)
		}
	case ModeChangeEvent:
		if cb.OnModeChange != nil {
			cb.OnModeChange(e.Mode)
		}
	case ConnectionStateEvent:
		if cb.OnConnectionStateChange != nil {
			cb.OnConnectionStateChange(e.State)
		}
	case VideoStateEvent:
		if cb.OnVideoStateChange != nil {
			cb.OnVideoStateChange(e.State, e.Stats)
		}
	case ChatProgressEvent:
		if cb.OnChatEvents != nil {
			cb.OnChatEvents(e.Progress, e.Content)
		}
	}
}

// flushEvent marks a point in the queue; its channel is closed when the
// dispatcher reaches it.
type flushEvent struct {
	done chan struct{}
}

func (flushEvent) eventType() string { return "flush" }

type subscriber struct {
	id int
	fn func(Event)
}

// bus delivers events to subscribers on a single goroutine in publication
// order. Publish never blocks, so subscribers may publish in turn.
type bus struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	subs   []subscriber
	nextID int
	closed bool
	done   chan struct{}
}

func newBus() *bus {
	b := &bus{done: make(chan struct{})}
	b.cond = sync.NewCond(&b.mu)
	go b.run()
	return b
}

func (b *bus) subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

func (b *bus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.queue = append(b.queue, ev)
	b.cond.Signal()
}

// flush blocks until every event published before the call is delivered.
// It must not be called from a subscriber.
func (b *bus) flush() {
	done := make(chan struct{})
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.queue = append(b.queue, flushEvent{done: done})
	b.cond.Signal()
	b.mu.Unlock()
	<-done
}

// close delivers the remaining queue and stops the dispatcher.
func (b *bus) close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Signal()
	b.mu.Unlock()
	<-b.done
}

func (b *bus) run() {
	defer close(b.done)
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		ev := b.queue[0]
		b.queue[0] = nil
		b.queue = b.queue[1:]
		subs := append([]subscriber(nil), b.subs...)
		b.mu.Unlock()

		if f, ok := ev.(flushEvent); ok {
			close(f.done)
			continue
		}
		for _, s := range subs {
			s.fn(ev)
		}
	}
}
