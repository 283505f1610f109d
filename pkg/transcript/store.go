// Package transcript owns the ordered message list of a session and the
// cursor of the assistant answer currently being streamed.
package transcript

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/vango-go/agents-lite/pkg/core"
	"github.com/vango-go/agents-lite/pkg/core/types"
)

// MaxMessageLength is the exclusive upper bound on user message length, in
// characters.
const MaxMessageLength = 800

// Store is the session transcript. It is safe for concurrent use.
//
// openIdx is the index of the assistant message currently receiving
// streamed tokens, or -1. turnIdx is the index of the assistant message
// opened by streaming for the current user turn, or -1; the REST answer of
// that turn lands in it instead of being appended twice.
type Store struct {
	mu       sync.Mutex
	messages []types.Message
	openIdx  int
	turnIdx  int

	now   func() time.Time
	newID func() string
	pick  func(n int) int
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator overrides the random message id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		s.newID = newID
	}
}

// WithGreetingPicker overrides the random greeting selection.
func WithGreetingPicker(pick func(n int) int) Option {
	return func(s *Store) {
		s.pick = pick
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		openIdx: -1,
		turnIdx: -1,
		now:     time.Now,
		newID:   uuid.NewString,
		pick:    rand.Intn,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateContent checks a user message before anything is sent.
func ValidateContent(content string) error {
	n := utf8.RuneCountInString(content)
	if n == 0 {
		return core.NewValidationError("message must not be empty", "text")
	}
	if n >= MaxMessageLength {
		return core.NewValidationError(fmt.Sprintf("message must be shorter than %d characters", MaxMessageLength), "text")
	}
	return nil
}

// Greeting returns the seeded greeting for agent.
func Greeting(agent *types.Agent, pick func(n int) int) string {
	if agent != nil {
		greetings := make([]string, 0, len(agent.Greetings))
		for _, g := range agent.Greetings {
			if strings.TrimSpace(g) != "" {
				greetings = append(greetings, g)
			}
		}
		if len(greetings) > 0 {
			if pick == nil {
				pick = rand.Intn
			}
			return greetings[pick(len(greetings))]
		}
	}
	return fmt.Sprintf("Hi! I'm %s. How can I help you?", agent.DisplayName())
}

// Reset replaces the transcript with a single greeting and clears the
// open-answer cursor.
func (s *Store) Reset(agent *types.Agent) []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = []types.Message{{
		ID:        s.newID(),
		Role:      types.RoleAssistant,
		Content:   Greeting(agent, s.pick),
		CreatedAt: s.now(),
	}}
	s.openIdx, s.turnIdx = -1, -1
	return s.snapshotLocked()
}

// AppendUser validates content and appends a user message.
func (s *Store) AppendUser(content string) (types.Message, []types.Message, error) {
	if err := ValidateContent(content); err != nil {
		return types.Message{}, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := types.Message{
		ID:        s.newID(),
		Role:      types.RoleUser,
		Content:   content,
		CreatedAt: s.now(),
	}
	s.messages = append(s.messages, msg)
	s.openIdx, s.turnIdx = -1, -1
	return msg.Clone(), s.snapshotLocked(), nil
}

// AppendAssistant records the closed assistant answer of a chat
// round-trip. If streaming already opened a slot for this turn, the slot is
// overwritten and closed; otherwise a new message is appended.
func (s *Store) AppendAssistant(content string, matches []types.ChatMatch) (types.Message, []types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches = append([]types.ChatMatch(nil), matches...)
	if s.turnIdx >= 0 && s.turnIdx == len(s.messages)-1 {
		msg := &s.messages[s.turnIdx]
		msg.Content = content
		msg.Matches = matches
		s.openIdx, s.turnIdx = -1, -1
		return msg.Clone(), s.snapshotLocked()
	}

	msg := types.Message{
		ID:        s.newID(),
		Role:      types.RoleAssistant,
		Content:   content,
		CreatedAt: s.now(),
		Matches:   matches,
	}
	s.messages = append(s.messages, msg)
	s.openIdx, s.turnIdx = -1, -1
	return msg.Clone(), s.snapshotLocked()
}

// ApplyProgress merges a streamed chat event into the trailing assistant
// slot. Partial content is concatenated; answer content replaces and
// closes the slot, so later partials cannot reopen it. Complete closes the
// slot and only replaces the text when it carries content.
//
// A partial or answer arriving right after a user message opens a fresh
// slot. Any other event that finds no open trailing slot is ignored. The
// returned bool reports whether the transcript changed.
func (s *Store) ApplyProgress(progress types.ChatProgress, content string) ([]types.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch progress {
	case types.ChatProgressPartial, types.ChatProgressAnswer, types.ChatProgressComplete:
	default:
		return nil, false
	}

	if s.openIdx < 0 || s.openIdx != len(s.messages)-1 {
		s.openIdx = -1
		if progress == types.ChatProgressComplete || len(s.messages) == 0 ||
			s.messages[len(s.messages)-1].Role != types.RoleUser {
			return nil, false
		}
		s.messages = append(s.messages, types.Message{
			ID:        s.newID(),
			Role:      types.RoleAssistant,
			CreatedAt: s.now(),
		})
		s.openIdx = len(s.messages) - 1
		s.turnIdx = s.openIdx
	}

	last := &s.messages[s.openIdx]
	switch {
	case progress == types.ChatProgressPartial:
		last.Content += content
	case progress == types.ChatProgressComplete && content == "":
		// Bare completion marker: keep the streamed text.
		s.openIdx = -1
		return nil, false
	default:
		last.Content = content
		s.openIdx = -1
	}
	return s.snapshotLocked(), true
}

// Find returns the message with the given id.
func (s *Store) Find(id string) (types.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages {
		if msg.ID == id {
			return msg.Clone(), true
		}
	}
	return types.Message{}, false
}

// Snapshot returns a copy of the transcript.
func (s *Store) Snapshot() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *Store) snapshotLocked() []types.Message {
	out := make([]types.Message, len(s.messages))
	for i, msg := range s.messages {
		out[i] = msg.Clone()
	}
	return out
}
