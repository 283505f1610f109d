package agents

// State is the connection lifecycle state of a Manager.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
)

type lifecycleEvent int

const (
	evConnectRequested lifecycleEvent = iota
	evReconnectRequested
	evConnectSucceeded
	evConnectFailed
	evDisconnectRequested
	evMediaFailed
)

func (e lifecycleEvent) String() string {
	switch e {
	case evConnectRequested:
		return "connect_requested"
	case evReconnectRequested:
		return "reconnect_requested"
	case evConnectSucceeded:
		return "connect_succeeded"
	case evConnectFailed:
		return "connect_failed"
	case evDisconnectRequested:
		return "disconnect_requested"
	case evMediaFailed:
		return "media_failed"
	default:
		return "unknown"
	}
}

type effect int

const (
	// effCloseHandles detaches and closes the signaling channel and media
	// session, and bumps the handle generation.
	effCloseHandles effect = iota
	// effResetTranscript reseeds the transcript with a greeting.
	effResetTranscript
	// effSetFunctional forces the chat mode to Functional.
	effSetFunctional
	// effSessionStarted and effSessionEnded bracket a connected session.
	effSessionStarted
	effSessionEnded
	// effAbortConnect marks the in-flight connect as failed.
	effAbortConnect
)

// transition is the lifecycle table. Events that do not apply to the
// current state leave it unchanged with no effects.
func transition(s State, ev lifecycleEvent) (State, []effect) {
	switch ev {
	case evConnectRequested:
		effects := []effect{effCloseHandles, effResetTranscript}
		if s == StateConnected {
			effects = append(effects, effSessionEnded)
		}
		return StateConnecting, effects

	case evReconnectRequested:
		effects := []effect{effCloseHandles}
		if s == StateConnected {
			effects = append(effects, effSessionEnded)
		}
		return StateConnecting, effects

	case evConnectSucceeded:
		if s != StateConnecting {
			return s, nil
		}
		return StateConnected, []effect{effSetFunctional, effSessionStarted}

	case evConnectFailed:
		if s != StateConnecting {
			return s, nil
		}
		return StateDisconnected, []effect{effCloseHandles}

	case evDisconnectRequested:
		switch s {
		case StateIdle:
			return StateIdle, []effect{effResetTranscript}
		case StateConnected:
			return StateDisconnected, []effect{effCloseHandles, effResetTranscript, effSessionEnded}
		default:
			return StateDisconnected, []effect{effCloseHandles, effResetTranscript}
		}

	case evMediaFailed:
		switch s {
		case StateConnecting:
			return StateConnecting, []effect{effAbortConnect}
		case StateConnected:
			return StateDisconnected, []effect{effCloseHandles, effSessionEnded}
		}
	}
	return s, nil
}
