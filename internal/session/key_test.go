package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Commutative(t *testing.T) {
	pairs := [][2]string{
		{"alice", "bob"},
		{"bob", "alice"},
		{"user-1", "agent-9"},
		{"zed", "zed"},
		{"0", "a"},
	}
	for _, p := range pairs {
		assert.Equal(t, DeriveKey(p[0], p[1]), DeriveKey(p[1], p[0]),
			"DeriveKey(%q, %q)", p[0], p[1])
	}
}

func TestDeriveKey_Stable(t *testing.T) {
	assert.Equal(t, "chat:agent-9:user-1", DeriveKey("user-1", "agent-9"))
	assert.Equal(t, "chat:agent-9:user-1", DeriveKey("agent-9", "user-1"))
}

func TestParseKey_InvertsDerive(t *testing.T) {
	key := DeriveKey("bob", "alice")
	a, b, err := ParseKey(key)
	require.NoError(t, err)
	assert.Equal(t, "alice", a)
	assert.Equal(t, "bob", b)
}

func TestParseKey_Malformed(t *testing.T) {
	tests := []string{
		"",
		"chat:only-one",
		"nope:alice:bob",
		"chat::bob",
		"chat:alice:",
	}
	for _, in := range tests {
		_, _, err := ParseKey(in)
		assert.Error(t, err, "key %q", in)
	}
}

func TestValidateParticipantID(t *testing.T) {
	assert.NoError(t, ValidateParticipantID("alice"))
	assert.NoError(t, ValidateParticipantID("agent_9"))
	assert.Error(t, ValidateParticipantID(""))
	// Ids containing the key separator would make ParseKey ambiguous.
	assert.Error(t, ValidateParticipantID("mailto:alice"))
}
