package types

import "time"

// ------------------------------
// Core Domain Entities
// ------------------------------

// Profile is the identity a user acts as. Family accounts hold several
// profiles under one auth account; at most one of them is active at a time.
type Profile struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"user_id"` // always the auth account ID
	FullName    string    `json:"full_name"`
	Gender      string    `json:"gender"`
	Age         int       `json:"age"`
	Bio         string    `json:"bio"`
	Avatar      string    `json:"avatar,omitempty"`
	Interests   []string  `json:"interests"`
	AccountType string    `json:"account_type"` // "individual" or "family"
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Conversation is the single row for an unordered pair of profiles.
// User1ID always holds the lexicographically smaller profile ID.
type Conversation struct {
	ID        string    `json:"id"`
	User1ID   string    `json:"user1_id"`
	User2ID   string    `json:"user2_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message belongs to exactly one conversation. The read flag only ever
// transitions false→true, set by the non-sender.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}

// PresenceRecord is the online/last-seen indicator, one row per profile
// (upsert keyed on profile ID).
type PresenceRecord struct {
	ProfileID string    `json:"user_id"`
	Online    bool      `json:"online"`
	LastSeen  time.Time `json:"last_seen"`
}

// Like records one profile liking another.
type Like struct {
	LikerID   string    `json:"liker_id"`
	LikedID   string    `json:"liked_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Dislike records a discovery pass so the profile is not shown again.
type Dislike struct {
	UserID         string    `json:"user_id"`
	DislikedUserID string    `json:"disliked_user_id"`
	CreatedAt      time.Time `json:"created_at"`
}
