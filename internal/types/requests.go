package types

import "time"

// ------------------------------
// Request Types
// ------------------------------

// CreateProfileRequest holds parameters for a new profile row.
// New family member profiles start inactive.
type CreateProfileRequest struct {
	AccountID   string   `json:"user_id"`
	FullName    string   `json:"full_name"`
	Gender      string   `json:"gender"`
	Age         int      `json:"age"`
	Bio         string   `json:"bio"`
	Avatar      string   `json:"avatar,omitempty"`
	Interests   []string `json:"interests"`
	AccountType string   `json:"account_type"`
	IsActive    bool     `json:"is_active"`
}

// UpdateProfileRequest carries a partial profile patch. Nil fields are
// omitted from the request body and left untouched by the backend.
type UpdateProfileRequest struct {
	FullName  *string   `json:"full_name,omitempty"`
	Gender    *string   `json:"gender,omitempty"`
	Age       *int      `json:"age,omitempty"`
	Bio       *string   `json:"bio,omitempty"`
	Avatar    *string   `json:"avatar,omitempty"`
	Interests *[]string `json:"interests,omitempty"`
}

// InsertMessageRequest holds parameters for a new message row.
// Read is always sent explicitly so the row never relies on a column default.
type InsertMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Content        string `json:"content"`
	Read           bool   `json:"read"`
}

// PresenceWrite is the payload shared by the upsert/update/insert presence
// strategies.
type PresenceWrite struct {
	ProfileID string    `json:"user_id"`
	Online    bool      `json:"online"`
	LastSeen  time.Time `json:"last_seen"`
}
