package types

import (
	"encoding/json"
	"testing"
)

func TestParseChatProgress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want ChatProgress
		ok   bool
	}{
		{"chat/partial", ChatProgressPartial, true},
		{"chat/answer", ChatProgressAnswer, true},
		{"chat/complete", ChatProgressComplete, true},
		{"partial", ChatProgressPartial, true},
		{"chat/done", ChatProgressComplete, true},
		{"chat/error", ChatProgress("error"), false},
	}
	for _, tc := range tests {
		got, ok := ParseChatProgress(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseChatProgress(%q)=%q,%v, want %q,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestChatModeValid(t *testing.T) {
	t.Parallel()

	for _, m := range []ChatMode{ChatModeFunctional, ChatModeTextOnly, ChatModeMaintenance} {
		if !m.Valid() {
			t.Fatalf("%q should be valid", m)
		}
	}
	if ChatMode("functional").Valid() || ChatMode("").Valid() {
		t.Fatalf("unexpected valid mode")
	}
}

func TestAgentDisplayName(t *testing.T) {
	t.Parallel()

	var nilAgent *Agent
	if got := nilAgent.DisplayName(); got != "My Agent" {
		t.Fatalf("nil DisplayName=%q", got)
	}
	if got := (&Agent{PreviewName: "  "}).DisplayName(); got != "My Agent" {
		t.Fatalf("blank DisplayName=%q", got)
	}
	if got := (&Agent{PreviewName: "Ava"}).DisplayName(); got != "Ava" {
		t.Fatalf("DisplayName=%q", got)
	}
}

func TestAgentDefaultVoiceIsCopy(t *testing.T) {
	t.Parallel()

	a := &Agent{Presenter: &Presenter{Type: PresenterTypeTalk, Voice: &Voice{Type: "microsoft", VoiceID: "v1"}}}
	v := a.DefaultVoice()
	v.VoiceID = "changed"
	if a.Presenter.Voice.VoiceID != "v1" {
		t.Fatalf("DefaultVoice returned shared pointer")
	}
	if (&Agent{}).DefaultVoice() != nil {
		t.Fatalf("DefaultVoice without presenter should be nil")
	}
}

func TestAgentCloneIsDeep(t *testing.T) {
	t.Parallel()

	a := &Agent{
		ID:        "agt",
		Greetings: []string{"Hi"},
		Presenter: &Presenter{Type: PresenterTypeClip, Voice: &Voice{Type: "microsoft", VoiceID: "v1"}},
		Knowledge: &KnowledgeRef{ID: "knl"},
	}
	c := a.Clone()
	c.Greetings[0] = "changed"
	c.Presenter.Type = PresenterTypeTalk
	c.Presenter.Voice.VoiceID = "changed"
	c.Knowledge.ID = "changed"

	if a.Greetings[0] != "Hi" || a.Presenter.Type != PresenterTypeClip ||
		a.Presenter.Voice.VoiceID != "v1" || a.Knowledge.ID != "knl" {
		t.Fatalf("Clone shares state with the original: %+v", a)
	}
	if (*Agent)(nil).Clone() != nil {
		t.Fatalf("nil Clone should be nil")
	}
}

func TestStringOrSlice(t *testing.T) {
	t.Parallel()

	var servers []IceServer
	data := `[{"urls":"stun:a"},{"urls":["turn:b","turn:c"],"username":"u","credential":"p"}]`
	if err := json.Unmarshal([]byte(data), &servers); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(servers) != 2 || len(servers[0].URLs) != 1 || servers[0].URLs[0] != "stun:a" {
		t.Fatalf("servers[0]=%+v", servers[0])
	}
	if len(servers[1].URLs) != 2 || servers[1].Username != "u" {
		t.Fatalf("servers[1]=%+v", servers[1])
	}

	var bad StringOrSlice
	if err := json.Unmarshal([]byte(`42`), &bad); err == nil {
		t.Fatalf("expected error for number")
	}
}

func TestMessageCloneCopiesMatches(t *testing.T) {
	t.Parallel()

	m := Message{ID: "msg_1", Matches: []ChatMatch{{DocumentID: "doc", ID: "m"}}}
	c := m.Clone()
	c.Matches[0].ID = "changed"
	if m.Matches[0].ID != "m" {
		t.Fatalf("Clone shares matches")
	}
}

func TestScriptJSON(t *testing.T) {
	t.Parallel()

	req := SpeakRequest{SessionID: "sess", Script: TextScript{Type: ScriptTypeText, Input: "hi", Provider: &TTSProvider{Type: "microsoft"}}}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"session_id":"sess","script":{"type":"text","provider":{"type":"microsoft"},"input":"hi"}}`
	if string(data) != want {
		t.Fatalf("json=%s, want %s", data, want)
	}
}
