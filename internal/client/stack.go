package client

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/parley-im/parley/internal/config"
	"github.com/parley-im/parley/internal/directory"
	"github.com/parley-im/parley/internal/domain"
	"github.com/parley-im/parley/internal/logging"
	"github.com/parley-im/parley/internal/peer"
	"github.com/parley-im/parley/internal/persist"
	"github.com/parley-im/parley/internal/session"
)

// PeerChannelConfig translates the peer config section into channel
// settings, attaching the local identity to the websocket URL the relay
// expects.
func PeerChannelConfig(cfg config.Config) peer.Config {
	endpoint := cfg.Peer.URL
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		q := parsed.Query()
		q.Set("userId", cfg.Identity.UserID)
		q.Set("name", cfg.Identity.Name)
		parsed.RawQuery = q.Encode()
		endpoint = parsed.String()
	}
	return peer.Config{
		URL:              endpoint,
		HandshakeTimeout: time.Duration(cfg.Peer.HandshakeSeconds) * time.Second,
		PingInterval:     time.Duration(cfg.Peer.PingSeconds) * time.Second,
		ReconnectBase:    time.Duration(cfg.Peer.ReconnectBaseMs) * time.Millisecond,
		MaxReconnects:    cfg.Peer.MaxReconnects,
	}
}

// PersistWorkerConfig translates the persist config section.
func PersistWorkerConfig(cfg config.Config) persist.WorkerConfig {
	return persist.WorkerConfig{
		BaseDelay:   time.Duration(cfg.Persist.RetryBaseMs) * time.Millisecond,
		MaxAttempts: cfg.Persist.MaxAttempts,
	}
}

// ReconcilerConfig translates the reconcile config section.
func ReconcilerConfig(cfg config.Config) peer.ReconcilerConfig {
	return peer.ReconcilerConfig{
		UserID:       cfg.Identity.UserID,
		SettleDelay:  time.Duration(cfg.Reconcile.SettleMs) * time.Millisecond,
		MaxPolls:     cfg.Reconcile.MaxPolls,
		PollInterval: time.Duration(cfg.Reconcile.PollIntervalSeconds) * time.Second,
	}
}

// DirectoryConfig translates the directory config section.
func DirectoryConfig(cfg config.Config) directory.Config {
	return directory.Config{
		AgentTTL:      time.Duration(cfg.Directory.AgentTTLMinutes) * time.Minute,
		UserTTL:       time.Duration(cfg.Directory.UserTTLMinutes) * time.Minute,
		AgentCapacity: cfg.Directory.AgentCapacity,
		UserCapacity:  cfg.Directory.UserCapacity,
	}
}

// probeAddr derives a host:port to dial for connectivity checks from the
// peer websocket URL. Empty when the URL does not parse.
func probeAddr(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	port := u.Port()
	if port == "" {
		if u.Scheme == "wss" || u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	return u.Hostname() + ":" + port
}

// Stack is the full client side composed from configuration: the peer
// channel with its connectivity monitor and offline reconciler, the
// display-name cache, and the turn orchestrator.
type Stack struct {
	Channel    *peer.Channel
	Monitor    *peer.Monitor
	Reconciler *peer.Reconciler
	Names      *directory.Cache
	Turns      *Orchestrator

	// Deliver receives every inbound peer message, live or recovered. Set
	// before Start.
	Deliver func(domain.Message)

	userID string
}

// NewStack wires the client components from config. The resolver backs the
// display-name cache; a nil resolver falls back to raw ids.
func NewStack(cfg config.Config, resolver directory.Resolver, log *logging.Logger) *Stack {
	if resolver == nil {
		resolver = directory.ResolverFunc(func(_ context.Context, p domain.Participant) (string, error) {
			return p.ID, nil
		})
	}

	names := directory.New(DirectoryConfig(cfg), resolver, log)
	saver := persist.NewClient(cfg.Persist.URL, time.Duration(cfg.Persist.TimeoutSeconds)*time.Second)
	turns := NewOrchestrator(
		session.NewManager(log),
		names,
		NewBackendClient(cfg.Backend.URL),
		saver,
		PersistWorkerConfig(cfg),
		log,
	)

	var mon *peer.Monitor
	peerCfg := PeerChannelConfig(cfg)
	if addr := probeAddr(cfg.Peer.URL); addr != "" {
		mon = peer.NewMonitor(peer.DialProbe(addr, 3*time.Second), 0, log)
		peerCfg.Reachable = mon.Online
	}
	ch := peer.NewChannel(peerCfg, log)
	rec := peer.NewReconciler(ReconcilerConfig(cfg), NewOfflineClient(cfg.Persist.URL, 0), log)

	s := &Stack{
		Channel:    ch,
		Monitor:    mon,
		Reconciler: rec,
		Names:      names,
		Turns:      turns,
		userID:     cfg.Identity.UserID,
	}

	ch.OnConnect = rec.OnConnect
	ch.OnDisconnect = rec.OnDisconnect
	ch.OnMessage = func(f domain.InboundPeerFrame) {
		if f.SenderName != "" {
			names.Put(domain.User(f.SenderID), f.SenderName)
		}
		if s.Deliver != nil {
			s.Deliver(ConvertInboundFrame(f))
		}
	}
	rec.Deliver = func(m domain.Message) {
		if s.Deliver != nil {
			s.Deliver(m)
		}
	}
	if mon != nil {
		mon.Subscribe(func(online bool) {
			if online {
				ch.NetworkOnline()
			}
		})
	}
	return s
}

// Start connects the peer channel and begins connectivity monitoring. The
// reconciler's request/response fallback covers environments where the
// websocket upgrade is blocked but plain HTTP still works.
func (s *Stack) Start(ctx context.Context) error {
	if s.Monitor != nil {
		go s.Monitor.Run(ctx)
	}
	s.Reconciler.StartFallback(10*time.Second, s.Channel.Connected)
	return s.Channel.Connect(ctx)
}

// Close shuts the peer channel down.
func (s *Stack) Close() error {
	return s.Channel.Close()
}

// ConvertInboundFrame turns a live relay frame into a message. A file
// attachment becomes the leading part; the body follows unless it is the
// file-only sentinel.
func ConvertInboundFrame(f domain.InboundPeerFrame) domain.Message {
	var parts []domain.Part
	if f.FileAttachment != nil {
		parts = append(parts, domain.FilePart(*f.FileAttachment))
	}
	if f.Content != "" && f.Content != domain.FileOnlyBody {
		parts = append(parts, domain.TextPart(f.Content))
	}

	id := f.MessageID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := f.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return domain.Message{
		ID:    id,
		Role:  domain.RoleUser,
		Parts: parts,
		Metadata: domain.Metadata{
			SenderID:          f.SenderID,
			SenderName:        f.SenderName,
			ReceiverID:        f.ReceiverID,
			ReceiverName:      f.ReceiverName,
			CommunicationType: domain.CommUserUser,
			CreatedAt:         createdAt,
		},
	}
}
