package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("row not found")

// ValidateIDPresent rejects empty identifiers before they reach the wire.
func ValidateIDPresent(id, field string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("validation: %s must not be empty", field)
	}
	return nil
}

// ValidateContent rejects empty or whitespace-only message content.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("validation: message content must not be empty")
	}
	return nil
}

// CanonicalPair orders two profile IDs deterministically (lexicographically
// smaller first) so an unordered pair maps to exactly one conversation row.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
