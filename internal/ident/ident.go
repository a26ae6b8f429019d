// Package ident validates and normalizes message identifiers against the
// durable store's canonical grammar (UUID).
package ident

import "github.com/google/uuid"

// IsCanonical reports whether id matches the durable store's identifier
// grammar.
func IsCanonical(id string) bool {
	return uuid.Validate(id) == nil
}

// EnsureDurableID returns a storage-compatible identifier for candidate.
// A canonical candidate is returned unchanged with original == "". Otherwise
// a fresh canonical id is minted and the candidate is returned as original
// so callers can preserve the back-reference in message metadata.
//
// Minting is not idempotent across calls: repeated calls with the same
// non-canonical candidate produce distinct ids. Callers must mint once per
// creation event and thread the result through event correlation, the
// persistence call, and UI state.
func EnsureDurableID(candidate string) (durable string, original string) {
	if candidate != "" && IsCanonical(candidate) {
		return candidate, ""
	}
	return uuid.NewString(), candidate
}
