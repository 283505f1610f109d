package media

import (
	"github.com/pion/webrtc/v4"

	"github.com/vango-go/agents-lite/pkg/core/types"
)

// ICEConfig builds the pion configuration for a stream. Servers returned by
// the streams API come first; extra servers configured by the host follow.
// When both are empty only host candidates are gathered.
func ICEConfig(fromAPI []types.IceServer, extra []webrtc.ICEServer) webrtc.Configuration {
	servers := make([]webrtc.ICEServer, 0, len(fromAPI)+len(extra))
	for _, s := range fromAPI {
		if len(s.URLs) == 0 {
			continue
		}
		server := webrtc.ICEServer{URLs: append([]string(nil), s.URLs...)}
		if s.Username != "" || s.Credential != "" {
			server.Username = s.Username
			server.Credential = s.Credential
		}
		servers = append(servers, server)
	}
	servers = append(servers, extra...)
	return webrtc.Configuration{ICEServers: servers}
}

func connectionState(state webrtc.PeerConnectionState) types.ConnectionState {
	switch state {
	case webrtc.PeerConnectionStateNew:
		return types.ConnectionStateNew
	case webrtc.PeerConnectionStateConnecting:
		return types.ConnectionStateConnecting
	case webrtc.PeerConnectionStateConnected:
		return types.ConnectionStateConnected
	case webrtc.PeerConnectionStateDisconnected:
		return types.ConnectionStateDisconnected
	case webrtc.PeerConnectionStateFailed:
		return types.ConnectionStateFailed
	case webrtc.PeerConnectionStateClosed:
		return types.ConnectionStateClosed
	default:
		return types.ConnectionState(state.String())
	}
}
