package types

import "strings"

// PresenterType selects which streams endpoint renders the agent.
type PresenterType string

const (
	PresenterTypeClip PresenterType = "clip"
	PresenterTypeTalk PresenterType = "talk"
)

// Voice is the default text-to-speech voice of a presenter.
type Voice struct {
	Type    string `json:"type"`
	VoiceID string `json:"voice_id,omitempty"`
}

// Presenter describes the video persona of an agent.
//
// Clip presenters carry DriverID and PresenterID; talk presenters carry
// SourceURL.
type Presenter struct {
	Type        PresenterType `json:"type"`
	DriverID    string        `json:"driver_id,omitempty"`
	PresenterID string        `json:"presenter_id,omitempty"`
	SourceURL   string        `json:"source_url,omitempty"`
	Voice       *Voice        `json:"voice,omitempty"`
}

// KnowledgeRef points an agent at a knowledge base.
type KnowledgeRef struct {
	ID       string `json:"id"`
	Provider string `json:"provider,omitempty"`
}

// Knowledge is a knowledge base definition.
type Knowledge struct {
	ID             string   `json:"id"`
	Name           string   `json:"name,omitempty"`
	Description    string   `json:"description,omitempty"`
	StarterMessage []string `json:"starter_message,omitempty"`
}

// Agent is the server-defined conversational persona.
type Agent struct {
	ID          string        `json:"id"`
	PreviewName string        `json:"preview_name,omitempty"`
	Presenter   *Presenter    `json:"presenter"`
	Greetings   []string      `json:"greetings,omitempty"`
	Knowledge   *KnowledgeRef `json:"knowledge,omitempty"`
	ChatMode    ChatMode      `json:"chat_mode,omitempty"`
}

// Clone returns a deep copy of the agent.
func (a *Agent) Clone() *Agent {
	if a == nil {
		return nil
	}
	c := *a
	if a.Presenter != nil {
		p := *a.Presenter
		if p.Voice != nil {
			v := *p.Voice
			p.Voice = &v
		}
		c.Presenter = &p
	}
	if a.Greetings != nil {
		c.Greetings = append([]string(nil), a.Greetings...)
	}
	if a.Knowledge != nil {
		k := *a.Knowledge
		c.Knowledge = &k
	}
	return &c
}

// DisplayName returns the preview name, or a generic name when unset.
func (a *Agent) DisplayName() string {
	if a == nil {
		return "My Agent"
	}
	if name := strings.TrimSpace(a.PreviewName); name != "" {
		return name
	}
	return "My Agent"
}

// DefaultVoice returns the presenter voice provider, if one is configured.
func (a *Agent) DefaultVoice() *Voice {
	if a == nil || a.Presenter == nil || a.Presenter.Voice == nil {
		return nil
	}
	voice := *a.Presenter.Voice
	return &voice
}
