package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/heartlink/heartlink-client/internal/types"
)

// FindConversation looks up the conversation row for a canonical pair.
// Returns types.ErrNotFound when the pair has never talked.
func FindConversation(ctx context.Context, hc HTTPClient, baseURL, user1, user2 string) (*types.Conversation, error) {
	if err := types.ValidateIDPresent(user1, "user1Id"); err != nil {
		return nil, err
	}
	if err := types.ValidateIDPresent(user2, "user2Id"); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("user1_id", "eq."+user1)
	q.Set("user2_id", "eq."+user2)
	var rows []types.Conversation
	err := doJSON(ctx, hc, http.MethodGet, restURL(baseURL, "conversations", q), nil, "", &rows, "find conversation")
	return one(rows, err)
}

// CreateConversation inserts the row for a canonical pair. A 409 from the
// uniqueness constraint means another client created it first; callers
// resolve that by re-fetching, not by failing.
func CreateConversation(ctx context.Context, hc HTTPClient, baseURL, user1, user2 string) (*types.Conversation, error) {
	if err := types.ValidateIDPresent(user1, "user1Id"); err != nil {
		return nil, err
	}
	if err := types.ValidateIDPresent(user2, "user2Id"); err != nil {
		return nil, err
	}
	body := map[string]string{"user1_id": user1, "user2_id": user2}
	var rows []types.Conversation
	err := doJSON(ctx, hc, http.MethodPost, restURL(baseURL, "conversations", nil), body, preferReturn, &rows, "create conversation")
	return one(rows, err)
}

// ListConversations returns every conversation the profile participates in,
// most recently updated first.
func ListConversations(ctx context.Context, hc HTTPClient, baseURL, profileID string) ([]types.Conversation, error) {
	if err := types.ValidateIDPresent(profileID, "profileId"); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("or", fmt.Sprintf("(user1_id.eq.%s,user2_id.eq.%s)", profileID, profileID))
	q.Set("order", "updated_at.desc")
	var rows []types.Conversation
	if err := doJSON(ctx, hc, http.MethodGet, restURL(baseURL, "conversations", q), nil, "", &rows, "list conversations"); err != nil {
		return nil, err
	}
	return rows, nil
}
