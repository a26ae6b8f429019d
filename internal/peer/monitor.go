package peer

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/parley-im/parley/internal/logging"
)

// Probe reports whether the network currently looks reachable.
type Probe func(ctx context.Context) bool

// DialProbe probes by opening a TCP connection to addr (host:port).
func DialProbe(addr string, timeout time.Duration) Probe {
	return func(ctx context.Context) bool {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}
}

// Monitor polls a connectivity probe and notifies subscribers on
// transitions. The offline→online edge is what the peer channel uses to cut
// its backoff short.
type Monitor struct {
	probe    Probe
	interval time.Duration
	log      *logging.Logger

	mu     sync.Mutex
	online bool
	subs   []func(online bool)
}

// NewMonitor creates a connectivity monitor. It starts out assuming the
// network is up.
func NewMonitor(probe Probe, interval time.Duration, log *logging.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{
		probe:    probe,
		interval: interval,
		log:      log.Sub("netmon"),
		online:   true,
	}
}

// Online reports the last observed connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a transition callback. Callbacks run on the monitor's
// goroutine and must not block.
func (m *Monitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Run polls until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	now := m.probe(ctx)

	m.mu.Lock()
	was := m.online
	m.online = now
	subs := m.subs
	m.mu.Unlock()

	if now == was {
		return
	}
	if now {
		m.log.Info().Msg("network regained")
	} else {
		m.log.Warn().Msg("network lost")
	}
	for _, fn := range subs {
		fn(now)
	}
}
