package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/vango-go/agents-lite/pkg/core"
	"github.com/vango-go/agents-lite/pkg/core/types"
)

// Streams wraps the presenter streams endpoints ("/clips/streams" or
// "/talks/streams") used to negotiate a media session.
type Streams struct {
	client *Client
	prefix string
}

// Streams returns the streams API for the given presenter type.
func (c *Client) Streams(presenter types.PresenterType) (*Streams, error) {
	switch presenter {
	case types.PresenterTypeClip:
		return &Streams{client: c, prefix: "/clips/streams"}, nil
	case types.PresenterTypeTalk:
		return &Streams{client: c, prefix: "/talks/streams"}, nil
	default:
		return nil, core.NewInvalidRequestError("unsupported presenter type " + string(presenter))
	}
}

// CreateStream allocates a stream and returns its SDP offer.
func (s *Streams) CreateStream(ctx context.Context, req types.CreateStreamRequest) (*types.CreateStreamResponse, error) {
	var resp types.CreateStreamResponse
	if err := s.client.do(ctx, http.MethodPost, s.prefix, req, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" || resp.SessionID == "" {
		return nil, core.NewAPIError("create stream response is missing stream or session id")
	}
	return &resp, nil
}

// StartConnection posts the local SDP answer.
func (s *Streams) StartConnection(ctx context.Context, streamID string, answer types.SessionDescription, sessionID string) error {
	body := struct {
		SessionID string                   `json:"session_id"`
		Answer    types.SessionDescription `json:"answer"`
	}{SessionID: sessionID, Answer: answer}
	return s.client.do(ctx, http.MethodPost, s.prefix+"/"+url.PathEscape(streamID)+"/sdp", body, nil)
}

// AddIceCandidate trickles a local ICE candidate.
func (s *Streams) AddIceCandidate(ctx context.Context, streamID string, candidate types.IceCandidate, sessionID string) error {
	body := struct {
		SessionID string `json:"session_id"`
		types.IceCandidate
	}{SessionID: sessionID, IceCandidate: candidate}
	return s.client.do(ctx, http.MethodPost, s.prefix+"/"+url.PathEscape(streamID)+"/ice", body, nil)
}

// SendStreamRequest asks the presenter to speak a script.
func (s *Streams) SendStreamRequest(ctx context.Context, streamID string, req types.SpeakRequest) (*types.SendStreamResponse, error) {
	var resp types.SendStreamResponse
	if err := s.client.do(ctx, http.MethodPost, s.prefix+"/"+url.PathEscape(streamID), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CloseStream releases the stream.
func (s *Streams) CloseStream(ctx context.Context, streamID, sessionID string) error {
	body := struct {
		SessionID string `json:"session_id"`
	}{SessionID: sessionID}
	return s.client.do(ctx, http.MethodDelete, s.prefix+"/"+url.PathEscape(streamID), body, nil)
}
