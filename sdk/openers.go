package agents

import (
	"context"

	"github.com/vango-go/agents-lite/pkg/core/types"
	"github.com/vango-go/agents-lite/pkg/media"
	"github.com/vango-go/agents-lite/pkg/signaling"
)

// SignalingChannel is an open notifications socket.
type SignalingChannel interface {
	Disconnect() error
}

// MediaSession is an open presenter stream.
type MediaSession interface {
	SessionID() string
	StreamID() string
	Speak(ctx context.Context, script types.Script) (*types.SendStreamResponse, error)
	Disconnect(ctx context.Context) error
}

// SignalingOpener opens the signaling channel for a session.
type SignalingOpener func(ctx context.Context, cfg signaling.Config, handler signaling.Handler) (SignalingChannel, error)

// MediaOpener opens the media session for a session. streams is the REST
// streams API matching the agent's presenter type.
type MediaOpener func(ctx context.Context, streams media.StreamAPI, cfg media.Config) (MediaSession, error)

func openSignaling(ctx context.Context, cfg signaling.Config, handler signaling.Handler) (SignalingChannel, error) {
	ch, err := signaling.Open(ctx, cfg, handler)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func openMedia(ctx context.Context, streams media.StreamAPI, cfg media.Config) (MediaSession, error) {
	s, err := media.Open(ctx, streams, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}
