package peer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parley-im/parley/internal/domain"
	"github.com/parley-im/parley/internal/logging"
)

// Fetcher retrieves messages that were queued for a user while their peer
// channel was down.
type Fetcher interface {
	FetchOffline(ctx context.Context, userID string) ([]domain.OfflineItem, error)
}

// ReconcilerConfig tunes the offline catch-up.
type ReconcilerConfig struct {
	UserID string

	// SettleDelay is how long after connect to wait before fetching, so the
	// relay has registered the connection. Default 1 second.
	SettleDelay time.Duration

	// MaxPolls bounds fetch attempts per connection. Default 3.
	MaxPolls int

	// PollInterval spaces retry fetches. Default 2 seconds.
	PollInterval time.Duration
}

func (c *ReconcilerConfig) applyDefaults() {
	if c.SettleDelay <= 0 {
		c.SettleDelay = time.Second
	}
	if c.MaxPolls <= 0 {
		c.MaxPolls = 3
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
}

// Reconciler drains the offline queue once per peer-channel connection.
// Wire OnConnect/OnDisconnect to the channel's callbacks of the same name.
type Reconciler struct {
	cfg     ReconcilerConfig
	fetcher Fetcher
	log     *logging.Logger

	// Deliver receives each recovered message in queue order.
	Deliver func(domain.Message)

	// OnComplete fires after a successful fetch, whether or not anything was
	// recovered, so dependent bootstrap work can proceed.
	OnComplete func()

	sleep func(time.Duration)

	mu        sync.Mutex
	attempted bool
}

// NewReconciler creates an offline reconciler for one user.
func NewReconciler(cfg ReconcilerConfig, fetcher Fetcher, log *logging.Logger) *Reconciler {
	cfg.applyDefaults()
	return &Reconciler{
		cfg:     cfg,
		fetcher: fetcher,
		log:     log.Sub("reconcile"),
		sleep:   time.Sleep,
	}
}

// OnConnect triggers one reconciliation run for this connection. Repeated
// calls without an intervening disconnect are ignored.
func (r *Reconciler) OnConnect() {
	r.mu.Lock()
	if r.attempted {
		r.mu.Unlock()
		return
	}
	r.attempted = true
	r.mu.Unlock()

	go r.run()
}

// StartFallback covers environments where the duplex channel is blocked but
// plain request/response still works: if the channel has not connected
// within wait, reconciliation runs anyway.
func (r *Reconciler) StartFallback(wait time.Duration, connected func() bool) {
	go func() {
		r.sleep(wait)
		if connected() {
			return
		}
		r.mu.Lock()
		if r.attempted {
			r.mu.Unlock()
			return
		}
		r.attempted = true
		r.mu.Unlock()
		r.run()
	}()
}

// OnDisconnect re-arms the reconciler for the next connection.
func (r *Reconciler) OnDisconnect() {
	r.mu.Lock()
	r.attempted = false
	r.mu.Unlock()
}

func (r *Reconciler) run() {
	r.sleep(r.cfg.SettleDelay)

	var items []domain.OfflineItem
	var err error
	for attempt := 1; ; attempt++ {
		items, err = r.fetcher.FetchOffline(context.Background(), r.cfg.UserID)
		if err == nil {
			break
		}
		if attempt >= r.cfg.MaxPolls {
			r.log.Error().Err(err).
				Int("attempts", attempt).
				Msg("offline fetch failed, giving up until next connect")
			return
		}
		r.log.Warn().Err(err).Int("attempt", attempt).Msg("offline fetch failed, retrying")
		r.sleep(r.cfg.PollInterval)
	}

	if len(items) > 0 {
		r.log.Info().Int("messages", len(items)).Msg("recovered offline messages")
	}
	for _, item := range items {
		if r.Deliver != nil {
			r.Deliver(ConvertOfflineItem(item, r.cfg.UserID))
		}
	}

	// An empty queue is still a completed reconciliation.
	if r.OnComplete != nil {
		r.OnComplete()
	}
}

// ConvertOfflineItem turns a queued relay item into a message. A file
// attachment becomes the leading part; the body follows unless it is the
// file-only sentinel.
func ConvertOfflineItem(item domain.OfflineItem, receiverID string) domain.Message {
	var parts []domain.Part
	if item.FileAttachment != nil {
		parts = append(parts, domain.FilePart(*item.FileAttachment))
	}
	if item.Body != "" && item.Body != domain.FileOnlyBody {
		parts = append(parts, domain.TextPart(item.Body))
	}

	createdAt := time.Now().UTC()
	if item.CreatedAt != nil {
		createdAt = *item.CreatedAt
	}

	return domain.Message{
		ID:    uuid.NewString(),
		Role:  domain.RoleUser,
		Parts: parts,
		Metadata: domain.Metadata{
			SenderID:          item.SenderID,
			SenderName:        item.SenderNickname,
			ReceiverID:        receiverID,
			CommunicationType: domain.CommUserUser,
			CreatedAt:         createdAt,
		},
	}
}
