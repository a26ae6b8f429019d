package persist

import (
	"context"
	"sync"
	"time"

	"github.com/parley-im/parley/internal/domain"
	"github.com/parley-im/parley/internal/logging"
)

// WorkerConfig tunes the persistence worker.
type WorkerConfig struct {
	ConversationID string

	// BaseDelay scales the linear retry backoff: attempt n sleeps
	// BaseDelay * n. Default 1 second.
	BaseDelay time.Duration

	// MaxAttempts bounds save attempts per batch. Default 3.
	MaxAttempts int
}

func (c *WorkerConfig) applyDefaults() {
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
}

// Worker is the agent of record for saving finished assistant turns. It
// deduplicates against the saved-set, keeps at most one save in flight per
// conversation, queues messages discovered mid-flight, and retries
// transient failures with linear backoff.
type Worker struct {
	cfg   WorkerConfig
	saver Saver
	saved *SavedSet
	log   *logging.Logger

	sleep func(time.Duration)

	// OnSaved, if set, is invoked with the acknowledged ids after each
	// successful save.
	OnSaved func(ids []string)

	mu    sync.Mutex
	busy  bool
	queue []domain.Message
}

// NewWorker creates a persistence worker for one conversation.
func NewWorker(cfg WorkerConfig, saver Saver, saved *SavedSet, log *logging.Logger) *Worker {
	cfg.applyDefaults()
	return &Worker{
		cfg:   cfg,
		saver: saver,
		saved: saved,
		log:   log.Sub("persist"),
		sleep: time.Sleep,
	}
}

// Submit filters the input down to unsaved assistant messages with real
// content, marks them in flight, and schedules the save. The mark happens
// synchronously before any I/O so a second completion path racing for the
// same turn cannot issue a duplicate write. Returns the number of messages
// accepted.
func (w *Worker) Submit(msgs []domain.Message) int {
	var eligible []domain.Message
	for _, m := range msgs {
		if m.Role != domain.RoleAssistant {
			continue
		}
		if !m.HasContent() {
			continue
		}
		if !w.saved.Mark(m.ID) {
			continue
		}
		eligible = append(eligible, m)
	}
	if len(eligible) == 0 {
		return 0
	}

	w.mu.Lock()
	if w.busy {
		// One outstanding write at a time per conversation; flush later.
		w.queue = append(w.queue, eligible...)
		w.mu.Unlock()
		return len(eligible)
	}
	w.busy = true
	w.mu.Unlock()

	go w.run(eligible)
	return len(eligible)
}

// Idle reports whether no save is in flight and nothing is queued.
func (w *Worker) Idle() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.busy && len(w.queue) == 0
}

// WaitIdle blocks until the worker drains or the timeout elapses.
func (w *Worker) WaitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if w.Idle() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return w.Idle()
}

func (w *Worker) run(batch []domain.Message) {
	w.saveWithRetry(batch)

	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			w.busy = false
			w.mu.Unlock()
			return
		}
		next := w.queue
		w.queue = nil
		w.mu.Unlock()

		w.saveWithRetry(next)
	}
}

func (w *Worker) saveWithRetry(batch []domain.Message) {
	for attempt := 1; ; attempt++ {
		res, err := w.saver.Save(context.Background(), w.cfg.ConversationID, batch)
		if err == nil {
			w.settle(batch, res)
			return
		}

		if !Retryable(err) {
			w.log.Error().Err(err).
				Int("messages", len(batch)).
				Msg("save rejected, not retrying")
			w.rollback(batch)
			return
		}
		if attempt >= w.cfg.MaxAttempts {
			w.log.Error().Err(err).
				Int("attempts", attempt).
				Int("messages", len(batch)).
				Msg("save failed after retries")
			w.rollback(batch)
			return
		}

		delay := w.cfg.BaseDelay * time.Duration(attempt)
		w.log.Warn().Err(err).
			Int("attempt", attempt).
			Dur("retryIn", delay).
			Msg("save failed, retrying")
		w.sleep(delay)
	}
}

// settle keeps acknowledged ids marked and rolls back the rest so a later
// retry path can pick them up.
func (w *Worker) settle(batch []domain.Message, res *SaveResult) {
	acked := make(map[string]struct{}, len(res.MessageIDs))
	for _, id := range res.MessageIDs {
		acked[id] = struct{}{}
	}

	var lost int
	for _, m := range batch {
		if _, ok := acked[m.ID]; !ok {
			w.saved.Unmark(m.ID)
			lost++
		}
	}

	w.log.Debug().
		Int("saved", res.Saved).
		Int("acked", len(res.MessageIDs)).
		Int("unacked", lost).
		Msg("save batch settled")

	if w.OnSaved != nil && len(res.MessageIDs) > 0 {
		w.OnSaved(res.MessageIDs)
	}
}

func (w *Worker) rollback(batch []domain.Message) {
	for _, m := range batch {
		w.saved.Unmark(m.ID)
	}
}
