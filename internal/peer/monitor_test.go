package peer

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonitor_NotifiesOnTransition(t *testing.T) {
	up := atomic.Bool{}
	up.Store(true)
	m := NewMonitor(func(context.Context) bool { return up.Load() }, 0, testLogger())

	var events []bool
	m.Subscribe(func(online bool) { events = append(events, online) })

	m.check(context.Background())
	assert.Empty(t, events, "no transition, no notification")

	up.Store(false)
	m.check(context.Background())
	up.Store(true)
	m.check(context.Background())

	assert.Equal(t, []bool{false, true}, events)
	assert.True(t, m.Online())
}
