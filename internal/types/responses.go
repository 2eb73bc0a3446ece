package types

import "time"

// ------------------------------
// Response Types
// ------------------------------

// EnqueueAck acknowledges that an async operation was accepted by the
// send queue, not that the backend has persisted it.
type EnqueueAck struct {
	ConversationID string `json:"conversationId"`
	Status         string `json:"status"`
}

// AuthTokens is the password-grant response from the auth endpoint.
type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ChatSummary is one row of the chat list: the peer, the most recent
// message, and how many of the peer's messages are still unread.
type ChatSummary struct {
	ConversationID string    `json:"conversationId"`
	Peer           Profile   `json:"peer"`
	LastMessage    Message   `json:"lastMessage"`
	UnreadCount    int       `json:"unreadCount"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
