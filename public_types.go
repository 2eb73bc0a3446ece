package heartlink

import "github.com/heartlink/heartlink-client/internal/types"

// Public type aliases so SDK consumers can import only the heartlink package.
type (
	// Domain entities
	Profile        = types.Profile
	Conversation   = types.Conversation
	Message        = types.Message
	PresenceRecord = types.PresenceRecord
	Like           = types.Like
	Dislike        = types.Dislike

	// Requests
	CreateProfileRequest = types.CreateProfileRequest
	UpdateProfileRequest = types.UpdateProfileRequest

	// Responses
	EnqueueAck  = types.EnqueueAck
	ChatSummary = types.ChatSummary
)

// CanonicalPair re-exports the deterministic pair ordering used for
// conversation rows.
func CanonicalPair(a, b string) (string, string) { return types.CanonicalPair(a, b) }
