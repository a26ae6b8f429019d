package ident

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDurableID_CanonicalPassthrough(t *testing.T) {
	id := uuid.NewString()
	durable, original := EnsureDurableID(id)
	assert.Equal(t, id, durable)
	assert.Empty(t, original)
}

func TestEnsureDurableID_MintsForNonCanonical(t *testing.T) {
	durable, original := EnsureDurableID("tmp-42")
	require.NoError(t, uuid.Validate(durable))
	assert.Equal(t, "tmp-42", original)
}

func TestEnsureDurableID_EmptyCandidate(t *testing.T) {
	durable, original := EnsureDurableID("")
	require.NoError(t, uuid.Validate(durable))
	assert.Empty(t, original)
}

func TestEnsureDurableID_MintingNotIdempotent(t *testing.T) {
	// Independent calls with the same non-canonical candidate mint distinct
	// ids; callers mint once and thread the result everywhere.
	a, _ := EnsureDurableID("tmp-42")
	b, _ := EnsureDurableID("tmp-42")
	assert.NotEqual(t, a, b)
}

func TestIsCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"uuid", uuid.NewString(), true},
		{"temp prefix", "tmp-42", false},
		{"empty", "", false},
		{"uuid with junk", uuid.NewString() + "x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCanonical(tt.in))
		})
	}
}
