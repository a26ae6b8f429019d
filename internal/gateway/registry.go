package gateway

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/parley-im/parley/internal/domain"
	"github.com/parley-im/parley/internal/logging"
)

// Peer is one connected user's websocket.
type Peer struct {
	UserID string

	mu     sync.Mutex
	socket *websocket.Conn
	closed bool
}

// Send writes a frame to the peer. Thread-safe.
func (p *Peer) Send(frame domain.InboundPeerFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPeerClosed
	}
	return p.socket.WriteJSON(frame)
}

// Close closes the underlying socket.
func (p *Peer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.socket.Close()
}

// Registry tracks connected peers by user id. A user has at most one live
// connection; a newer one replaces the older.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]*Peer
	log   *logging.Logger
}

// NewRegistry creates an empty peer registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		peers: make(map[string]*Peer),
		log:   log,
	}
}

// Add registers a connected peer, displacing any previous connection for
// the same user.
func (r *Registry) Add(p *Peer) {
	r.mu.Lock()
	old := r.peers[p.UserID]
	r.peers[p.UserID] = p
	r.mu.Unlock()

	if old != nil {
		old.Close()
	}
	r.log.Info().Str("user", p.UserID).Msg("peer connected")
}

// Remove unregisters a peer if it is still the live connection for its user.
func (r *Registry) Remove(p *Peer) {
	r.mu.Lock()
	if r.peers[p.UserID] == p {
		delete(r.peers, p.UserID)
	}
	r.mu.Unlock()
	r.log.Info().Str("user", p.UserID).Msg("peer disconnected")
}

// Get returns the live connection for a user.
func (r *Registry) Get(userID string) (*Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[userID]
	return p, ok
}

// Count returns the number of connected peers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// CloseAll disconnects every peer.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	peers := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	r.peers = make(map[string]*Peer)
	r.mu.Unlock()

	for _, p := range peers {
		p.Close()
	}
}
