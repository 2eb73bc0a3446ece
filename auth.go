package heartlink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/heartlink/heartlink-client/internal/api"
)

// Session is the authenticated identity derived from the access token.
type Session struct {
	AccountID string
	Email     string
	ExpiresAt time.Time
}

// SignIn exchanges credentials for a session token and installs it on the
// client, so subsequent requests run as the user.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	tokens, err := api.PasswordGrant(ctx, c.http, c.baseURL, email, password)
	if err != nil {
		return nil, err
	}
	sess, err := decodeSession(tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	c.setToken(tokens.AccessToken)
	c.log.Debug().Str("account", sess.AccountID).Msg("signed in")
	return sess, nil
}

// SignUp registers a new account. It does not sign the account in; callers
// follow with SignIn once the account is confirmed.
func (c *Client) SignUp(ctx context.Context, email, password string) error {
	_, err := api.SignUp(ctx, c.http, c.baseURL, email, password)
	return err
}

// Session returns the current authenticated identity, or ErrNotSignedIn.
// The token is decoded client-side without signature verification: the
// signing secret lives on the backend, and the claims here only scope
// requests the backend re-authorizes anyway.
func (c *Client) Session() (*Session, error) {
	tok := c.token()
	if tok == "" {
		return nil, ErrNotSignedIn
	}
	return decodeSession(tok)
}

// logout revokes the session server-side and clears the local token. The
// presence-offline sequencing around sign-out is handled by
// ProfileSession.SignOut.
func (c *Client) logout(ctx context.Context) error {
	err := api.Logout(ctx, c.http, c.baseURL)
	c.setToken("")
	return err
}

func (c *Client) setToken(tok string) {
	c.tokenMu.Lock()
	c.accessToken = tok
	c.tokenMu.Unlock()
}

func (c *Client) token() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.accessToken
}

// accountID is the auth account identity used to scope profile queries.
func (c *Client) accountID() (string, error) {
	sess, err := c.Session()
	if err != nil {
		return "", err
	}
	return sess.AccountID, nil
}

// decodeSession extracts identity claims from a JWT access token.
func decodeSession(accessToken string) (*Session, error) {
	var claims jwt.MapClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return nil, fmt.Errorf("decode access token: %w", err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("access token missing subject")
	}

	sess := &Session{AccountID: sub}
	if email, ok := claims["email"].(string); ok {
		sess.Email = email
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		sess.ExpiresAt = exp.Time
	}
	return sess, nil
}

// unmarshalEvent decodes a change-feed row payload.
func unmarshalEvent(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty event payload")
	}
	return json.Unmarshal(raw, out)
}
