// Package session derives conversation keys and tracks per-conversation
// agent state.
package session

import (
	"fmt"
	"strings"
)

const (
	keyPrefix    = "chat"
	keySeparator = ":"
)

// DeriveKey builds the canonical conversation key for two participants.
// The key is a pure function of the two identifiers and is order
// independent: DeriveKey(a, b) == DeriveKey(b, a).
func DeriveKey(a, b string) string {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return keyPrefix + keySeparator + lo + keySeparator + hi
}

// ParseKey inverts DeriveKey. It returns an error if the key does not carry
// exactly two participant segments, which happens when a participant id
// itself contains the separator — reject such ids at the boundary with
// ValidateParticipantID to keep ParseKey a true inverse.
func ParseKey(key string) (string, string, error) {
	parts := strings.Split(key, keySeparator)
	if len(parts) != 3 || parts[0] != keyPrefix || parts[1] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("malformed conversation key: %q", key)
	}
	return parts[1], parts[2], nil
}

// ValidateParticipantID rejects identifiers that would break ParseKey.
func ValidateParticipantID(id string) error {
	if id == "" {
		return fmt.Errorf("empty participant id")
	}
	if strings.Contains(id, keySeparator) {
		return fmt.Errorf("participant id %q contains reserved separator %q", id, keySeparator)
	}
	return nil
}
