package transcript

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/vango-go/agents-lite/pkg/core"
	"github.com/vango-go/agents-lite/pkg/core/types"
)

func newTestStore() *Store {
	var n int
	return New(
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("msg_%d", n)
		}),
		WithGreetingPicker(func(int) int { return 0 }),
	)
}

func TestReset_SeedsGreeting(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	got := s.Reset(&types.Agent{Greetings: []string{"Hi"}})
	if len(got) != 1 {
		t.Fatalf("len=%d, want 1", len(got))
	}
	if got[0].Role != types.RoleAssistant || got[0].Content != "Hi" {
		t.Fatalf("greeting=%+v", got[0])
	}
}

func TestReset_DefaultGreetingUsesPreviewName(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	got := s.Reset(&types.Agent{PreviewName: "Ava"})
	if got[0].Content != "Hi! I'm Ava. How can I help you?" {
		t.Fatalf("content=%q", got[0].Content)
	}

	got = s.Reset(&types.Agent{Greetings: []string{"  "}})
	if got[0].Content != "Hi! I'm My Agent. How can I help you?" {
		t.Fatalf("content=%q", got[0].Content)
	}
}

func TestReset_ReplacesTranscript(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	agent := &types.Agent{Greetings: []string{"Hi"}}
	s.Reset(agent)
	if _, _, err := s.AppendUser("hello"); err != nil {
		t.Fatalf("AppendUser error: %v", err)
	}
	s.AppendAssistant("world", nil)

	if got := s.Reset(agent); len(got) != 1 {
		t.Fatalf("len after reset=%d, want 1", len(got))
	}
}

func TestAppendUser_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"empty", "", true},
		{"one char", "a", false},
		{"max minus one", strings.Repeat("a", MaxMessageLength-1), false},
		{"at limit", strings.Repeat("a", MaxMessageLength), true},
		{"multibyte under limit", strings.Repeat("é", MaxMessageLength-1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore()
			s.Reset(nil)
			_, _, err := s.AppendUser(tt.content)
			if tt.wantErr {
				if !core.IsType(err, core.ErrValidation) {
					t.Fatalf("err=%v, want validation_error", err)
				}
				if s.Len() != 1 {
					t.Fatalf("len=%d, rejected message must not be appended", s.Len())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Len() != 2 {
				t.Fatalf("len=%d, want 2", s.Len())
			}
		})
	}
}

func TestApplyProgress_PartialsThenAnswerCloseSlot(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	s.Reset(&types.Agent{Greetings: []string{"Hi"}})
	if _, _, err := s.AppendUser("question"); err != nil {
		t.Fatalf("AppendUser error: %v", err)
	}

	s.ApplyProgress(types.ChatProgressPartial, "A")
	s.ApplyProgress(types.ChatProgressPartial, "B")
	got, changed := s.ApplyProgress(types.ChatProgressAnswer, "AB")
	if !changed {
		t.Fatalf("answer did not change transcript")
	}
	if len(got) != 3 || got[2].Content != "AB" || got[2].Role != types.RoleAssistant {
		t.Fatalf("transcript=%+v", got)
	}

	if _, changed := s.ApplyProgress(types.ChatProgressPartial, "C"); changed {
		t.Fatalf("partial after answer mutated the closed message")
	}
	if got := s.Snapshot(); got[2].Content != "AB" || len(got) != 3 {
		t.Fatalf("transcript after late partial=%+v", got)
	}
}

func TestApplyProgress_CompleteKeepsStreamedText(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	s.Reset(&types.Agent{Greetings: []string{"Hi"}})
	if _, _, err := s.AppendUser("hello"); err != nil {
		t.Fatalf("AppendUser error: %v", err)
	}

	s.ApplyProgress(types.ChatProgressPartial, "A")
	s.ApplyProgress(types.ChatProgressPartial, "B")
	if _, changed := s.ApplyProgress(types.ChatProgressComplete, ""); changed {
		t.Fatalf("bare complete reported a transcript change")
	}
	got := s.Snapshot()
	if len(got) != 3 || got[2].Content != "AB" {
		t.Fatalf("transcript after complete=%+v", got)
	}

	if _, changed := s.ApplyProgress(types.ChatProgressPartial, "C"); changed {
		t.Fatalf("partial after complete mutated the closed message")
	}
	if got := s.Snapshot(); got[2].Content != "AB" {
		t.Fatalf("content after late partial=%q", got[2].Content)
	}
}

func TestApplyProgress_CompleteWithContentReplaces(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	s.Reset(nil)
	_, _, _ = s.AppendUser("q")

	s.ApplyProgress(types.ChatProgressPartial, "draft")
	got, changed := s.ApplyProgress(types.ChatProgressComplete, "final")
	if !changed || got[len(got)-1].Content != "final" {
		t.Fatalf("changed=%v transcript=%+v", changed, got)
	}
}

func TestApplyProgress_IgnoredWithoutUserTurn(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	s.Reset(&types.Agent{Greetings: []string{"Hi"}})

	if _, changed := s.ApplyProgress(types.ChatProgressPartial, "X"); changed {
		t.Fatalf("partial mutated the seeded greeting")
	}
	if got := s.Snapshot(); got[0].Content != "Hi" {
		t.Fatalf("greeting=%q", got[0].Content)
	}
}

func TestApplyProgress_UnknownProgressIgnored(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	s.Reset(nil)
	_, _, _ = s.AppendUser("q")
	if _, changed := s.ApplyProgress(types.ChatProgress("typing"), "x"); changed {
		t.Fatalf("unknown progress changed the transcript")
	}
}

func TestAppendAssistant_MergesIntoStreamedSlot(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	s.Reset(&types.Agent{Greetings: []string{"Hi"}})
	_, _, _ = s.AppendUser("hello")
	s.ApplyProgress(types.ChatProgressPartial, "wor")

	msg, got := s.AppendAssistant("world", []types.ChatMatch{{DocumentID: "doc", ID: "m1"}})
	if len(got) != 3 {
		t.Fatalf("len=%d, want 3 (no duplicate assistant message)", len(got))
	}
	if msg.Content != "world" || len(msg.Matches) != 1 {
		t.Fatalf("msg=%+v", msg)
	}

	if _, changed := s.ApplyProgress(types.ChatProgressPartial, "!"); changed {
		t.Fatalf("partial after REST answer mutated the closed message")
	}
}

func TestAppendAssistant_AppendsWithoutStreaming(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	s.Reset(&types.Agent{Greetings: []string{"Hi"}})
	_, _, _ = s.AppendUser("hello")
	_, got := s.AppendAssistant("world", nil)

	want := []struct {
		role    types.Role
		content string
	}{
		{types.RoleAssistant, "Hi"},
		{types.RoleUser, "hello"},
		{types.RoleAssistant, "world"},
	}
	if len(got) != len(want) {
		t.Fatalf("len=%d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Role != w.role || got[i].Content != w.content {
			t.Fatalf("message[%d]=%+v, want role=%s content=%q", i, got[i], w.role, w.content)
		}
	}
}

func TestFind_ReturnsCopy(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	s.Reset(nil)
	user, _, _ := s.AppendUser("hello")

	found, ok := s.Find(user.ID)
	if !ok || found.Content != "hello" {
		t.Fatalf("Find=%+v ok=%v", found, ok)
	}
	if _, ok := s.Find("nope"); ok {
		t.Fatalf("Find(nope) ok=true")
	}

	snap := s.Snapshot()
	snap[1].Content = "mutated"
	if again, _ := s.Find(user.ID); again.Content != "hello" {
		t.Fatalf("snapshot aliased store memory")
	}
}
