package agents

import "github.com/vango-go/agents-lite/pkg/core/types"

// Type aliases re-exporting the core types for SDK users.
type (
	Agent           = types.Agent
	Presenter       = types.Presenter
	Message         = types.Message
	ChatMatch       = types.ChatMatch
	ChatMode        = types.ChatMode
	ChatProgress    = types.ChatProgress
	ChatResponse    = types.ChatResponse
	Rating          = types.Rating
	ConnectionState = types.ConnectionState
	VideoState      = types.VideoState
	VideoStats      = types.VideoStats

	// Speak payloads.
	Script      = types.Script
	TextScript  = types.TextScript
	AudioScript = types.AudioScript
	TTSProvider = types.TTSProvider
)

// Chat modes
const (
	ChatModeFunctional  = types.ChatModeFunctional
	ChatModeTextOnly    = types.ChatModeTextOnly
	ChatModeMaintenance = types.ChatModeMaintenance
)

// Chat progress values
const (
	ChatProgressPartial  = types.ChatProgressPartial
	ChatProgressAnswer   = types.ChatProgressAnswer
	ChatProgressComplete = types.ChatProgressComplete
)
