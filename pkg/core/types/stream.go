package types

import "encoding/json"

// ConnectionState mirrors the peer connection state reported to hosts.
type ConnectionState string

const (
	ConnectionStateNew          ConnectionState = "new"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
	ConnectionStateCompleted    ConnectionState = "completed"
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateClosed       ConnectionState = "closed"
	ConnectionStateFailed       ConnectionState = "failed"
)

// VideoState reports whether the presenter video is currently flowing.
type VideoState string

const (
	VideoStateStart VideoState = "start"
	VideoStateStop  VideoState = "stop"
)

// VideoStats is a snapshot of inbound video statistics.
type VideoStats struct {
	BytesReceived   uint64 `json:"bytes_received"`
	PacketsReceived uint32 `json:"packets_received"`
	PacketsLost     int32  `json:"packets_lost"`
	FramesDecoded   uint32 `json:"frames_decoded"`
	Timestamp       int64  `json:"timestamp"`
}

// IceServer is an ICE server definition as returned by the streams API.
type IceServer struct {
	URLs       StringOrSlice `json:"urls"`
	Username   string        `json:"username,omitempty"`
	Credential string        `json:"credential,omitempty"`
}

// StringOrSlice decodes either a JSON string or a JSON array of strings.
type StringOrSlice []string

// UnmarshalJSON accepts "a" and ["a", "b"].
func (s *StringOrSlice) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StringOrSlice{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = StringOrSlice(many)
	return nil
}

// SessionDescription is a JSON SDP offer or answer.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// CreateStreamRequest opens a stream for a presenter.
type CreateStreamRequest struct {
	DriverID         string `json:"driver_id,omitempty"`
	PresenterID      string `json:"presenter_id,omitempty"`
	SourceURL        string `json:"source_url,omitempty"`
	Compatibility    string `json:"compatibility_mode,omitempty"`
	StreamWarmup     bool   `json:"stream_warmup,omitempty"`
	SessionTimeout   int    `json:"session_timeout,omitempty"`
	OutputResolution int    `json:"output_resolution,omitempty"`
}

// CreateStreamResponse carries the negotiation parameters of a new stream.
type CreateStreamResponse struct {
	ID         string             `json:"id"`
	SessionID  string             `json:"session_id"`
	Offer      SessionDescription `json:"offer"`
	IceServers []IceServer        `json:"ice_servers"`
}

// IceCandidate is a trickled local candidate. An empty Candidate marks the
// end of gathering.
type IceCandidate struct {
	Candidate     string  `json:"candidate,omitempty"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// ScriptType discriminates speak payloads.
type ScriptType string

const (
	ScriptTypeText  ScriptType = "text"
	ScriptTypeAudio ScriptType = "audio"
)

// Script is a speak payload: either TextScript or AudioScript.
type Script interface {
	ScriptType() ScriptType
}

// TTSProvider selects a text-to-speech voice.
type TTSProvider struct {
	Type    string `json:"type"`
	VoiceID string `json:"voice_id,omitempty"`
}

// TextScript speaks input through a text-to-speech provider.
type TextScript struct {
	Type     ScriptType   `json:"type"`
	Provider *TTSProvider `json:"provider,omitempty"`
	Input    string       `json:"input"`
	SSML     bool         `json:"ssml,omitempty"`
}

func (TextScript) ScriptType() ScriptType { return ScriptTypeText }

// AudioScript plays a pre-recorded audio file.
type AudioScript struct {
	Type     ScriptType `json:"type"`
	AudioURL string     `json:"audio_url"`
}

func (AudioScript) ScriptType() ScriptType { return ScriptTypeAudio }

// SpeakRequest is the body sent to an open stream.
type SpeakRequest struct {
	SessionID string `json:"session_id"`
	Script    Script `json:"script"`
}

// SendStreamResponse is the acknowledgement of a stream request.
type SendStreamResponse struct {
	Status   string  `json:"status"`
	Duration float64 `json:"duration,omitempty"`
	VideoID  string  `json:"video_id,omitempty"`
}
