package domain

// ParticipantKind distinguishes agent-like from user-like entities. Agents
// change identity rarely; users change presence and display names often, so
// the two kinds get different cache policies downstream.
type ParticipantKind string

const (
	KindAgent ParticipantKind = "agent"
	KindUser  ParticipantKind = "user"
)

// Participant is a tagged participant reference carried through the whole
// pipeline instead of re-parsing prefixed id strings at each boundary.
type Participant struct {
	Kind ParticipantKind `json:"kind"`
	ID   string          `json:"id"`
}

// Agent builds an agent participant.
func Agent(id string) Participant {
	return Participant{Kind: KindAgent, ID: id}
}

// User builds a user participant.
func User(id string) Participant {
	return Participant{Kind: KindUser, ID: id}
}

// IsZero reports whether the participant is unset.
func (p Participant) IsZero() bool {
	return p.ID == ""
}
