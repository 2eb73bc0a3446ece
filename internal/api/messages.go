package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	apierrors "github.com/heartlink/heartlink-client/internal/errors"
	"github.com/heartlink/heartlink-client/internal/types"
)

// ListMessages returns the conversation history in ascending creation order.
// Every call is a fresh snapshot fetch.
func ListMessages(ctx context.Context, hc HTTPClient, baseURL, conversationID string) ([]types.Message, error) {
	if err := types.ValidateIDPresent(conversationID, "conversationId"); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("conversation_id", "eq."+conversationID)
	q.Set("order", "created_at.asc")
	var rows []types.Message
	if err := doJSON(ctx, hc, http.MethodGet, restURL(baseURL, "messages", q), nil, "", &rows, "list messages"); err != nil {
		return nil, err
	}
	return rows, nil
}

// InsertMessage persists a message and returns the stored row (server-side
// id and creation timestamp included).
func InsertMessage(ctx context.Context, hc HTTPClient, baseURL string, req types.InsertMessageRequest) (*types.Message, error) {
	if err := types.ValidateIDPresent(req.ConversationID, "conversationId"); err != nil {
		return nil, err
	}
	if err := types.ValidateIDPresent(req.SenderID, "senderId"); err != nil {
		return nil, err
	}
	if err := types.ValidateContent(req.Content); err != nil {
		return nil, err
	}
	var rows []types.Message
	err := doJSON(ctx, hc, http.MethodPost, restURL(baseURL, "messages", nil), req, preferReturn, &rows, "insert message")
	return one(rows, err)
}

// MarkRead flips read=true on every unread message in the conversation that
// was not sent by readerID, in one batch statement. Returns the number of
// rows touched.
func MarkRead(ctx context.Context, hc HTTPClient, baseURL, conversationID, readerID string) (int, error) {
	if err := types.ValidateIDPresent(conversationID, "conversationId"); err != nil {
		return 0, err
	}
	if err := types.ValidateIDPresent(readerID, "readerId"); err != nil {
		return 0, err
	}
	q := url.Values{}
	q.Set("conversation_id", "eq."+conversationID)
	q.Set("read", "eq.false")
	q.Set("sender_id", "neq."+readerID)
	body := map[string]bool{"read": true}
	var rows []types.Message
	if err := doJSON(ctx, hc, http.MethodPatch, restURL(baseURL, "messages", q), body, preferReturn, &rows, "mark messages read"); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// LastMessage returns the most recent message of a conversation, or
// types.ErrNotFound for an empty conversation.
func LastMessage(ctx context.Context, hc HTTPClient, baseURL, conversationID string) (*types.Message, error) {
	if err := types.ValidateIDPresent(conversationID, "conversationId"); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("conversation_id", "eq."+conversationID)
	q.Set("order", "created_at.desc")
	q.Set("limit", "1")
	var rows []types.Message
	err := doJSON(ctx, hc, http.MethodGet, restURL(baseURL, "messages", q), nil, "", &rows, "last message")
	return one(rows, err)
}

// UnreadCount counts the peer's unread messages in a conversation without
// fetching rows: Prefer count=exact and the Content-Range total.
func UnreadCount(ctx context.Context, hc HTTPClient, baseURL, conversationID, profileID string) (int, error) {
	if err := types.ValidateIDPresent(conversationID, "conversationId"); err != nil {
		return 0, err
	}
	if err := types.ValidateIDPresent(profileID, "profileId"); err != nil {
		return 0, err
	}
	q := url.Values{}
	q.Set("conversation_id", "eq."+conversationID)
	q.Set("read", "eq.false")
	q.Set("sender_id", "neq."+profileID)
	q.Set("select", "id")

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, restURL(baseURL, "messages", q), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", preferCount)

	resp, err := hc.Do(req)
	if err != nil {
		return 0, apierrors.NewNetworkError("unread count", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, apierrors.NewHTTPError(resp.StatusCode, "", "unread count")
	}
	return parseRangeTotal(resp.Header.Get("Content-Range"))
}

// parseRangeTotal extracts the total from a "items start-end/total" header.
func parseRangeTotal(contentRange string) (int, error) {
	idx := strings.LastIndex(contentRange, "/")
	if idx < 0 || idx == len(contentRange)-1 {
		return 0, apierrors.NewHTTPError(0, contentRange, "parse content-range")
	}
	total := contentRange[idx+1:]
	if total == "*" {
		return 0, nil
	}
	return strconv.Atoi(total)
}
