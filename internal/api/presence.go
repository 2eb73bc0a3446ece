package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/heartlink/heartlink-client/internal/types"
)

// Presence writes come in three strategies. The tracker tries them in order
// (upsert, conditional update, plain insert) so one failing path cannot
// leave a profile stuck online.

// UpsertPresence writes the presence row keyed on profile ID, inserting or
// merging as needed.
func UpsertPresence(ctx context.Context, hc HTTPClient, baseURL string, w types.PresenceWrite) error {
	if err := types.ValidateIDPresent(w.ProfileID, "profileId"); err != nil {
		return err
	}
	q := url.Values{}
	q.Set("on_conflict", "user_id")
	return doJSON(ctx, hc, http.MethodPost, restURL(baseURL, "user_presence", q), w, preferMerge, nil, "upsert presence")
}

// UpdatePresence patches an existing presence row.
func UpdatePresence(ctx context.Context, hc HTTPClient, baseURL string, w types.PresenceWrite) error {
	if err := types.ValidateIDPresent(w.ProfileID, "profileId"); err != nil {
		return err
	}
	q := url.Values{}
	q.Set("user_id", "eq."+w.ProfileID)
	body := map[string]any{"online": w.Online, "last_seen": w.LastSeen}
	return doJSON(ctx, hc, http.MethodPatch, restURL(baseURL, "user_presence", q), body, "", nil, "update presence")
}

// InsertPresence creates a presence row for a profile that has never had one.
func InsertPresence(ctx context.Context, hc HTTPClient, baseURL string, w types.PresenceWrite) error {
	if err := types.ValidateIDPresent(w.ProfileID, "profileId"); err != nil {
		return err
	}
	return doJSON(ctx, hc, http.MethodPost, restURL(baseURL, "user_presence", nil), w, "", nil, "insert presence")
}

// GetPresence reads one profile's presence row. A missing row means the
// profile has never been online.
func GetPresence(ctx context.Context, hc HTTPClient, baseURL, profileID string) (*types.PresenceRecord, error) {
	if err := types.ValidateIDPresent(profileID, "profileId"); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("user_id", "eq."+profileID)
	var rows []types.PresenceRecord
	err := doJSON(ctx, hc, http.MethodGet, restURL(baseURL, "user_presence", q), nil, "", &rows, "get presence")
	return one(rows, err)
}
