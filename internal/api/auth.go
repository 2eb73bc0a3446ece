package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/heartlink/heartlink-client/internal/types"
)

// PasswordGrant exchanges email/password credentials for tokens.
func PasswordGrant(ctx context.Context, hc HTTPClient, baseURL, email, password string) (*types.AuthTokens, error) {
	if err := types.ValidateIDPresent(email, "email"); err != nil {
		return nil, err
	}
	if err := types.ValidateIDPresent(password, "password"); err != nil {
		return nil, err
	}
	u := strings.TrimRight(baseURL, "/") + "/auth/v1/token?grant_type=password"
	body := map[string]string{"email": email, "password": password}
	var tokens types.AuthTokens
	if err := doJSON(ctx, hc, http.MethodPost, u, body, "", &tokens, "password grant"); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// SignUp registers a new account. The profile row is created later, after
// first sign-in, during onboarding.
func SignUp(ctx context.Context, hc HTTPClient, baseURL, email, password string) (*types.AuthTokens, error) {
	if err := types.ValidateIDPresent(email, "email"); err != nil {
		return nil, err
	}
	if err := types.ValidateIDPresent(password, "password"); err != nil {
		return nil, err
	}
	u := strings.TrimRight(baseURL, "/") + "/auth/v1/signup"
	body := map[string]string{"email": email, "password": password}
	var tokens types.AuthTokens
	if err := doJSON(ctx, hc, http.MethodPost, u, body, "", &tokens, "sign up"); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Logout revokes the current session server-side.
func Logout(ctx context.Context, hc HTTPClient, baseURL string) error {
	u := strings.TrimRight(baseURL, "/") + "/auth/v1/logout"
	return doJSON(ctx, hc, http.MethodPost, u, nil, "", nil, "logout")
}
