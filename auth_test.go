package heartlink

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func TestDecodeSession(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := signedToken(t, jwt.MapClaims{
		"sub":   "acct-1",
		"email": "a@b.c",
		"exp":   exp.Unix(),
	})

	sess, err := decodeSession(tok)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sess.AccountID != "acct-1" || sess.Email != "a@b.c" {
		t.Fatalf("session = %+v", sess)
	}
	if !sess.ExpiresAt.Equal(exp) {
		t.Fatalf("expires = %v, want %v", sess.ExpiresAt, exp)
	}
}

func TestDecodeSession_MissingSubject(t *testing.T) {
	tok := signedToken(t, jwt.MapClaims{"email": "a@b.c"})
	if _, err := decodeSession(tok); err == nil {
		t.Fatal("token without subject accepted")
	}
}

func TestDecodeSession_Garbage(t *testing.T) {
	if _, err := decodeSession("not-a-jwt"); err == nil {
		t.Fatal("garbage token accepted")
	}
}

func TestSession_NotSignedIn(t *testing.T) {
	c := New("http://example.com", "key", WithExecutor(&stubExec{}))
	defer func() { _ = c.Close() }()

	if _, err := c.Session(); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("session before sign-in: %v", err)
	}
}

func TestSignIn_InstallsToken(t *testing.T) {
	access := ""
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": access})
	}))
	defer srv.Close()

	access = signedToken(t, jwt.MapClaims{"sub": "acct-1", "email": "a@b.c"})

	c := New(srv.URL, "anon-key", WithExecutor(&stubExec{}))
	defer func() { _ = c.Close() }()

	sess, err := c.SignIn(context.Background(), "a@b.c", "secret")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if sess.AccountID != "acct-1" {
		t.Fatalf("session = %+v", sess)
	}
	if c.token() != access {
		t.Fatal("token not installed on client")
	}

	got, err := c.Session()
	if err != nil || got.AccountID != "acct-1" {
		t.Fatalf("session after sign-in = %v, %v", got, err)
	}
}

func TestLogout_ClearsTokenEvenOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "anon-key", WithExecutor(&stubExec{}))
	defer func() { _ = c.Close() }()
	c.setToken("user-token")

	if err := c.logout(context.Background()); err == nil {
		t.Fatal("expected logout error")
	}
	if c.token() != "" {
		t.Fatal("token survived logout")
	}
}
