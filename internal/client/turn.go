package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/parley-im/parley/internal/directory"
	"github.com/parley-im/parley/internal/domain"
	"github.com/parley-im/parley/internal/logging"
	"github.com/parley-im/parley/internal/persist"
	"github.com/parley-im/parley/internal/session"
	"github.com/parley-im/parley/internal/stream"
)

// ErrResumeRefused is returned when an interrupted stream may not be picked
// back up for the requested conversation.
var ErrResumeRefused = errors.New("stream resumption refused")

// TurnInput describes one user prompt directed at an agent.
type TurnInput struct {
	ConversationID string
	Agent          domain.Participant
	User           domain.Participant
	Prompt         string
}

// Orchestrator runs conversation turns. It keeps one persistence worker and
// saved-set per conversation so every completion path in the process shares
// the same dedup state.
type Orchestrator struct {
	sessions *session.Manager
	names    *directory.Cache
	backend  *BackendClient
	saver    persist.Saver
	persist  persist.WorkerConfig
	log      *logging.Logger

	mu      sync.Mutex
	workers map[string]*persist.Worker
}

// NewOrchestrator wires the turn pipeline together.
func NewOrchestrator(
	sessions *session.Manager,
	names *directory.Cache,
	backend *BackendClient,
	saver persist.Saver,
	persistCfg persist.WorkerConfig,
	log *logging.Logger,
) *Orchestrator {
	return &Orchestrator{
		sessions: sessions,
		names:    names,
		backend:  backend,
		saver:    saver,
		persist:  persistCfg,
		log:      log.Sub("turn"),
		workers:  make(map[string]*persist.Worker),
	}
}

func (o *Orchestrator) workerFor(conversationID string) *persist.Worker {
	o.mu.Lock()
	defer o.mu.Unlock()
	w, ok := o.workers[conversationID]
	if !ok {
		cfg := o.persist
		cfg.ConversationID = conversationID
		w = persist.NewWorker(cfg, o.saver, persist.NewSavedSet(), o.log)
		o.workers[conversationID] = w
	}
	return w
}

// RunTurn validates the participants, opens the backend stream, and pumps it
// through the transformer until it ends. Raw stream lines go to forward;
// the finished assistant message goes to the conversation's persistence
// worker. A switch to a different agent is detected here, and the
// conversation is unblocked once the new turn's stream opens.
func (o *Orchestrator) RunTurn(ctx context.Context, in TurnInput, forward stream.Forwarder) error {
	if err := session.ValidateParticipantID(in.Agent.ID); err != nil {
		return fmt.Errorf("agent id: %w", err)
	}
	if err := session.ValidateParticipantID(in.User.ID); err != nil {
		return fmt.Errorf("user id: %w", err)
	}

	switched := o.sessions.DetectAgentSwitch(in.ConversationID, in.Agent.ID, in.User.ID)
	key, _ := o.sessions.Key(in.ConversationID)

	agentName, err := o.names.Lookup(ctx, in.Agent)
	if err != nil {
		// The display name is presentation data; the turn proceeds without it.
		agentName = ""
	}
	userName, err := o.names.Lookup(ctx, in.User)
	if err != nil {
		userName = ""
	}

	body, err := o.backend.StartTurn(ctx, TurnRequest{
		Message:         in.Prompt,
		ConversationKey: key,
		TargetID:        in.Agent.ID,
		TargetType:      string(in.Agent.Kind),
	})
	if err != nil {
		return err
	}
	defer body.Close()

	if switched {
		// The new agent's stream is established; the conversation leaves the
		// switching state.
		o.sessions.CompleteSwitch(in.ConversationID)
	}

	tr := stream.NewTransformer(stream.TransformerConfig{
		Sender:       in.Agent,
		Receiver:     in.User,
		SenderName:   agentName,
		ReceiverName: userName,
	}, o.workerFor(in.ConversationID), forward, o.log)
	defer tr.Close()

	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			tr.Feed(string(buf[:n]))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading turn stream: %w", err)
		}
	}
}

// Resume gates picking an interrupted stream back up. It succeeds only when
// the conversation still belongs to the same agent and session the stream
// was started under.
func (o *Orchestrator) Resume(conversationID, sessionID, currentAgentID string) error {
	if !o.sessions.CanResumeStream(conversationID, sessionID, currentAgentID) {
		return ErrResumeRefused
	}
	return nil
}

// Sweep re-scans a conversation's messages for assistant turns that never
// made it to durable storage and schedules them. This is the reload-time
// backstop against a turn whose every completion path failed; already-saved
// ids are filtered by the worker's saved-set and the store's primary key.
func (o *Orchestrator) Sweep(conversationID string, msgs []domain.Message) int {
	return o.workerFor(conversationID).Submit(msgs)
}

// WaitIdle blocks until every conversation's persistence worker drains or
// the per-worker timeout elapses. Used on shutdown.
func (o *Orchestrator) WaitIdle(timeout time.Duration) bool {
	o.mu.Lock()
	workers := make([]*persist.Worker, 0, len(o.workers))
	for _, w := range o.workers {
		workers = append(workers, w)
	}
	o.mu.Unlock()

	ok := true
	for _, w := range workers {
		if !w.WaitIdle(timeout) {
			ok = false
		}
	}
	return ok
}
