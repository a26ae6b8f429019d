package session

import (
	"sync"

	"github.com/parley-im/parley/internal/logging"
)

// Status is the lifecycle state of a conversation.
type Status string

const (
	StatusActive    Status = "active"
	StatusSwitching Status = "switching"
)

type conversation struct {
	agentID string
	userID  string
	key     string
	status  Status
}

// Manager tracks the active agent per conversation and gates whether an
// interrupted stream may be resumed after a reload or an agent switch.
type Manager struct {
	mu    sync.Mutex
	convs map[string]*conversation
	log   *logging.Logger
}

// NewManager creates an empty conversation manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		convs: make(map[string]*conversation),
		log:   log.Sub("session"),
	}
}

// DetectAgentSwitch records the agent now serving the conversation and
// reports whether that is a genuine change from the previously recorded one.
// The very first call for a conversation has no prior and never counts as a
// switch. On a genuine change the conversation is marked switching and its
// key is recomputed for the new agent.
func (m *Manager) DetectAgentSwitch(conversationID, newAgentID, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.convs[conversationID]
	if !ok {
		m.convs[conversationID] = &conversation{
			agentID: newAgentID,
			userID:  userID,
			key:     DeriveKey(userID, newAgentID),
			status:  StatusActive,
		}
		return false
	}

	if c.agentID == newAgentID {
		return false
	}

	m.log.Info().
		Str("conversation", conversationID).
		Str("from", c.agentID).
		Str("to", newAgentID).
		Msg("agent switch detected")

	c.agentID = newAgentID
	c.userID = userID
	c.key = DeriveKey(userID, newAgentID)
	c.status = StatusSwitching
	return true
}

// CompleteSwitch marks a switching conversation active again.
func (m *Manager) CompleteSwitch(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.convs[conversationID]; ok {
		c.status = StatusActive
	}
}

// CurrentAgent returns the agent recorded for the conversation.
func (m *Manager) CurrentAgent(conversationID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[conversationID]
	if !ok {
		return "", false
	}
	return c.agentID, true
}

// Key returns the session key recorded for the conversation.
func (m *Manager) Key(conversationID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[conversationID]
	if !ok {
		return "", false
	}
	return c.key, true
}

// CanResumeStream gates resumption of an interrupted stream. Resumption is
// refused while the conversation is mid-switch, or when the session key does
// not match the one the currently selected agent would derive — a resumed
// byte stream must never be attributed to the wrong agent after a fast
// switch.
func (m *Manager) CanResumeStream(conversationID, sessionID, currentAgentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.convs[conversationID]
	if !ok {
		return false
	}
	if c.status == StatusSwitching {
		return false
	}
	if c.agentID != currentAgentID {
		return false
	}
	return sessionID == DeriveKey(c.userID, currentAgentID)
}
