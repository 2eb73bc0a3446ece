package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/heartlink/heartlink-client/internal/types"
)

func errNotFound() error { return types.ErrNotFound }

// GetActiveProfile returns the account's profile with is_active=true, or
// types.ErrNotFound when no profile is active (a valid state while
// onboarding is pending or a switch was interrupted).
func GetActiveProfile(ctx context.Context, hc HTTPClient, baseURL, accountID string) (*types.Profile, error) {
	if err := types.ValidateIDPresent(accountID, "accountId"); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("user_id", "eq."+accountID)
	q.Set("is_active", "eq.true")
	var rows []types.Profile
	err := doJSON(ctx, hc, http.MethodGet, restURL(baseURL, "profiles", q), nil, "", &rows, "get active profile")
	return one(rows, err)
}

// ListProfiles returns every profile under the account, oldest first.
func ListProfiles(ctx context.Context, hc HTTPClient, baseURL, accountID string) ([]types.Profile, error) {
	if err := types.ValidateIDPresent(accountID, "accountId"); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("user_id", "eq."+accountID)
	q.Set("order", "created_at.asc")
	var rows []types.Profile
	if err := doJSON(ctx, hc, http.MethodGet, restURL(baseURL, "profiles", q), nil, "", &rows, "list profiles"); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetProfile fetches a single profile by ID.
func GetProfile(ctx context.Context, hc HTTPClient, baseURL, profileID string) (*types.Profile, error) {
	if err := types.ValidateIDPresent(profileID, "profileId"); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("id", "eq."+profileID)
	var rows []types.Profile
	err := doJSON(ctx, hc, http.MethodGet, restURL(baseURL, "profiles", q), nil, "", &rows, "get profile")
	return one(rows, err)
}

// InsertProfile creates a new profile row and returns the stored
// representation.
func InsertProfile(ctx context.Context, hc HTTPClient, baseURL string, req types.CreateProfileRequest) (*types.Profile, error) {
	if err := types.ValidateIDPresent(req.AccountID, "accountId"); err != nil {
		return nil, err
	}
	var rows []types.Profile
	err := doJSON(ctx, hc, http.MethodPost, restURL(baseURL, "profiles", nil), req, preferReturn, &rows, "insert profile")
	return one(rows, err)
}

// UpdateProfile patches profile fields; nil fields in req are untouched.
func UpdateProfile(ctx context.Context, hc HTTPClient, baseURL, profileID string, req types.UpdateProfileRequest) (*types.Profile, error) {
	if err := types.ValidateIDPresent(profileID, "profileId"); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("id", "eq."+profileID)
	var rows []types.Profile
	err := doJSON(ctx, hc, http.MethodPatch, restURL(baseURL, "profiles", q), req, preferReturn, &rows, "update profile")
	return one(rows, err)
}

// DeactivateAll clears is_active on every profile of the account. Paired
// with ActivateOne this forms the two-statement switch; a crash between the
// two leaves zero active profiles, which RepairActive tolerates on read.
func DeactivateAll(ctx context.Context, hc HTTPClient, baseURL, accountID string) error {
	if err := types.ValidateIDPresent(accountID, "accountId"); err != nil {
		return err
	}
	q := url.Values{}
	q.Set("user_id", "eq."+accountID)
	body := map[string]bool{"is_active": false}
	return doJSON(ctx, hc, http.MethodPatch, restURL(baseURL, "profiles", q), body, "", nil, "deactivate profiles")
}

// ActivateOne sets is_active on exactly one profile of the account and
// returns the activated row.
func ActivateOne(ctx context.Context, hc HTTPClient, baseURL, accountID, profileID string) (*types.Profile, error) {
	if err := types.ValidateIDPresent(accountID, "accountId"); err != nil {
		return nil, err
	}
	if err := types.ValidateIDPresent(profileID, "profileId"); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("id", "eq."+profileID)
	q.Set("user_id", "eq."+accountID)
	body := map[string]bool{"is_active": true}
	var rows []types.Profile
	err := doJSON(ctx, hc, http.MethodPatch, restURL(baseURL, "profiles", q), body, preferReturn, &rows, "activate profile")
	return one(rows, err)
}
