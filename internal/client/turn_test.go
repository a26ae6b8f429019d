package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-im/parley/internal/directory"
	"github.com/parley-im/parley/internal/domain"
	"github.com/parley-im/parley/internal/logging"
	"github.com/parley-im/parley/internal/persist"
	"github.com/parley-im/parley/internal/session"
)

func testLogger() *logging.Logger {
	return logging.New(io.Discard, "silent")
}

type recordingSaver struct {
	mu      sync.Mutex
	batches [][]domain.Message
}

func (s *recordingSaver) Save(_ context.Context, _ string, msgs []domain.Message) (*persist.SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, msgs)
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return &persist.SaveResult{Success: true, Saved: len(ids), MessageIDs: ids}, nil
}

func (s *recordingSaver) all() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

const turnStream = `turn-start:{"id":"9e8d7c6b-5a4f-4e3d-8c2b-1a0f9e8d7c6b"}
text-delta:{"id":"9e8d7c6b-5a4f-4e3d-8c2b-1a0f9e8d7c6b","delta":"The answer "}
text-delta:{"id":"9e8d7c6b-5a4f-4e3d-8c2b-1a0f9e8d7c6b","delta":"is 42."}
finish:{"id":"9e8d7c6b-5a4f-4e3d-8c2b-1a0f9e8d7c6b","finishReason":"stop","usage":{"promptTokens":12,"completionTokens":6}}
`

func newTestOrchestrator(t *testing.T, streamBody string) (*Orchestrator, *recordingSaver, *session.Manager) {
	t.Helper()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/turn", r.URL.Path)
		var req TurnRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.ConversationKey)
		assert.NotEmpty(t, req.TargetID)
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = io.WriteString(w, streamBody)
	}))
	t.Cleanup(backend.Close)

	names := directory.New(directory.Config{}, directory.ResolverFunc(
		func(_ context.Context, p domain.Participant) (string, error) {
			return "Name of " + p.ID, nil
		}), testLogger())

	sessions := session.NewManager(testLogger())
	saver := &recordingSaver{}
	o := NewOrchestrator(sessions, names, NewBackendClient(backend.URL), saver,
		persist.WorkerConfig{BaseDelay: time.Millisecond}, testLogger())
	return o, saver, sessions
}

func TestOrchestrator_RunTurnPersistsFinishedMessage(t *testing.T) {
	o, saver, _ := newTestOrchestrator(t, turnStream)

	var lines []string
	err := o.RunTurn(context.Background(), TurnInput{
		ConversationID: "conv-1",
		Agent:          domain.Agent("a1"),
		User:           domain.User("u1"),
		Prompt:         "what is the answer",
	}, func(line string) { lines = append(lines, line) })
	require.NoError(t, err)

	require.True(t, o.WaitIdle(time.Second))
	msgs := saver.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "9e8d7c6b-5a4f-4e3d-8c2b-1a0f9e8d7c6b", msgs[0].ID)
	assert.Equal(t, "The answer is 42.", msgs[0].Text())
	assert.Equal(t, "a1", msgs[0].Metadata.SenderID)
	assert.Equal(t, "Name of a1", msgs[0].Metadata.SenderName)
	assert.Len(t, lines, 4, "every stream line reaches the consumer")
}

func TestOrchestrator_TruncatedStreamStillPersists(t *testing.T) {
	truncated := `turn-start:{"id":"9e8d7c6b-5a4f-4e3d-8c2b-1a0f9e8d7c6b"}
text-delta:{"id":"9e8d7c6b-5a4f-4e3d-8c2b-1a0f9e8d7c6b","delta":"partial"}
`
	o, saver, _ := newTestOrchestrator(t, truncated)

	err := o.RunTurn(context.Background(), TurnInput{
		ConversationID: "conv-1",
		Agent:          domain.Agent("a1"),
		User:           domain.User("u1"),
	}, nil)
	require.NoError(t, err)

	require.True(t, o.WaitIdle(time.Second))
	msgs := saver.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "partial", msgs[0].Text())
}

func TestOrchestrator_RejectsInvalidParticipant(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, turnStream)

	err := o.RunTurn(context.Background(), TurnInput{
		ConversationID: "conv-1",
		Agent:          domain.Agent("mailto:agent"),
		User:           domain.User("u1"),
	}, nil)
	assert.Error(t, err)
}

func TestOrchestrator_ResumeGating(t *testing.T) {
	o, _, sessions := newTestOrchestrator(t, turnStream)

	require.NoError(t, o.RunTurn(context.Background(), TurnInput{
		ConversationID: "conv-1",
		Agent:          domain.Agent("a1"),
		User:           domain.User("u1"),
	}, nil))

	key, ok := sessions.Key("conv-1")
	require.True(t, ok)

	assert.NoError(t, o.Resume("conv-1", key, "a1"))
	assert.ErrorIs(t, o.Resume("conv-1", key, "a2"), ErrResumeRefused)
	assert.ErrorIs(t, o.Resume("conv-1", "chat:a9:u1", "a1"), ErrResumeRefused)
	assert.ErrorIs(t, o.Resume("conv-unknown", key, "a1"), ErrResumeRefused)
}

func TestOrchestrator_AgentSwitchCompletesOnNewStream(t *testing.T) {
	o, _, sessions := newTestOrchestrator(t, turnStream)

	require.NoError(t, o.RunTurn(context.Background(), TurnInput{
		ConversationID: "conv-1",
		Agent:          domain.Agent("a1"),
		User:           domain.User("u1"),
	}, nil))

	// Switch agents; the turn itself should leave the conversation active
	// with the new agent's key.
	require.NoError(t, o.RunTurn(context.Background(), TurnInput{
		ConversationID: "conv-1",
		Agent:          domain.Agent("a2"),
		User:           domain.User("u1"),
	}, nil))

	agent, ok := sessions.CurrentAgent("conv-1")
	require.True(t, ok)
	assert.Equal(t, "a2", agent)

	key, _ := sessions.Key("conv-1")
	assert.Equal(t, session.DeriveKey("u1", "a2"), key)
	assert.NoError(t, o.Resume("conv-1", key, "a2"))
}
