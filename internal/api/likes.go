package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/heartlink/heartlink-client/internal/types"
)

// InsertLike records likerID liking likedID.
func InsertLike(ctx context.Context, hc HTTPClient, baseURL, likerID, likedID string) error {
	if err := types.ValidateIDPresent(likerID, "likerId"); err != nil {
		return err
	}
	if err := types.ValidateIDPresent(likedID, "likedId"); err != nil {
		return err
	}
	body := map[string]string{"liker_id": likerID, "liked_id": likedID}
	return doJSON(ctx, hc, http.MethodPost, restURL(baseURL, "likes", nil), body, "", nil, "insert like")
}

// DeleteLike removes a previously recorded like.
func DeleteLike(ctx context.Context, hc HTTPClient, baseURL, likerID, likedID string) error {
	if err := types.ValidateIDPresent(likerID, "likerId"); err != nil {
		return err
	}
	if err := types.ValidateIDPresent(likedID, "likedId"); err != nil {
		return err
	}
	q := url.Values{}
	q.Set("liker_id", "eq."+likerID)
	q.Set("liked_id", "eq."+likedID)
	return doJSON(ctx, hc, http.MethodDelete, restURL(baseURL, "likes", q), nil, "", nil, "delete like")
}

// ListLikedIDs returns the IDs this profile has already liked, for the
// discovery exclusion set.
func ListLikedIDs(ctx context.Context, hc HTTPClient, baseURL, likerID string) ([]string, error) {
	if err := types.ValidateIDPresent(likerID, "likerId"); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("liker_id", "eq."+likerID)
	q.Set("select", "liked_id")
	var rows []struct {
		LikedID string `json:"liked_id"`
	}
	if err := doJSON(ctx, hc, http.MethodGet, restURL(baseURL, "likes", q), nil, "", &rows, "list liked ids"); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.LikedID)
	}
	return ids, nil
}

// ListLikers returns likes pointing at the given profile, newest first.
func ListLikers(ctx context.Context, hc HTTPClient, baseURL, likedID string) ([]types.Like, error) {
	if err := types.ValidateIDPresent(likedID, "likedId"); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("liked_id", "eq."+likedID)
	q.Set("order", "created_at.desc")
	var rows []types.Like
	if err := doJSON(ctx, hc, http.MethodGet, restURL(baseURL, "likes", q), nil, "", &rows, "list likers"); err != nil {
		return nil, err
	}
	return rows, nil
}

// InsertDislike records a discovery pass.
func InsertDislike(ctx context.Context, hc HTTPClient, baseURL, profileID, dislikedID string) error {
	if err := types.ValidateIDPresent(profileID, "profileId"); err != nil {
		return err
	}
	if err := types.ValidateIDPresent(dislikedID, "dislikedId"); err != nil {
		return err
	}
	body := map[string]string{"user_id": profileID, "disliked_user_id": dislikedID}
	return doJSON(ctx, hc, http.MethodPost, restURL(baseURL, "dislikes", nil), body, "", nil, "insert dislike")
}

// ListDislikedIDs returns the IDs this profile has passed on.
func ListDislikedIDs(ctx context.Context, hc HTTPClient, baseURL, profileID string) ([]string, error) {
	if err := types.ValidateIDPresent(profileID, "profileId"); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("user_id", "eq."+profileID)
	q.Set("select", "disliked_user_id")
	var rows []struct {
		DislikedUserID string `json:"disliked_user_id"`
	}
	if err := doJSON(ctx, hc, http.MethodGet, restURL(baseURL, "dislikes", q), nil, "", &rows, "list disliked ids"); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.DislikedUserID)
	}
	return ids, nil
}
