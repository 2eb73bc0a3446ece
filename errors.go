package heartlink

import (
	"errors"
	"fmt"

	"github.com/heartlink/heartlink-client/internal/types"
)

// ErrBackPressure is returned when the client's internal send queue is full.
var ErrBackPressure = errors.New("back-pressure (queue full)")

// IsBackPressure reports whether err is a back-pressure error.
func IsBackPressure(err error) bool { return errors.Is(err, ErrBackPressure) }

// ErrNotSignedIn is returned by operations that need an authenticated
// session before SignIn has succeeded.
var ErrNotSignedIn = errors.New("not signed in")

// ErrNoActiveProfile is returned when the account has no profile flagged
// active. This is a valid, recoverable state: onboarding is pending or a
// profile switch was interrupted, and the caller should prompt the user to
// pick a profile.
var ErrNoActiveProfile = errors.New("no active profile")

// ErrConversationClosed is returned by ConversationSync operations after
// Close.
var ErrConversationClosed = errors.New("conversation closed")

// Re-export shared SDK error so callers compare against a single symbol.
var ErrNotFound = types.ErrNotFound

// SendError reports a failed message send. Content carries the original
// input so the caller can restore it for retry.
type SendError struct {
	Content string
	Err     error
}

func (e *SendError) Error() string { return fmt.Sprintf("send failed: %v", e.Err) }

// Unwrap returns the underlying error for error chain compatibility.
func (e *SendError) Unwrap() error { return e.Err }
