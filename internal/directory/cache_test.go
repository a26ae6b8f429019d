package directory

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-im/parley/internal/domain"
	"github.com/parley-im/parley/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(io.Discard, "silent")
}

type countingResolver struct {
	calls atomic.Int64
	delay time.Duration
}

func (r *countingResolver) Resolve(_ context.Context, p domain.Participant) (string, error) {
	r.calls.Add(1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	return "name:" + p.ID, nil
}

func TestCache_HitSkipsResolver(t *testing.T) {
	r := &countingResolver{}
	c := New(Config{}, r, testLogger())

	name, err := c.Lookup(context.Background(), domain.Agent("a1"))
	require.NoError(t, err)
	assert.Equal(t, "name:a1", name)

	name, err = c.Lookup(context.Background(), domain.Agent("a1"))
	require.NoError(t, err)
	assert.Equal(t, "name:a1", name)

	assert.EqualValues(t, 1, r.calls.Load())
}

func TestCache_TieredTTL(t *testing.T) {
	r := &countingResolver{}
	c := New(Config{AgentTTL: time.Hour, UserTTL: time.Minute}, r, testLogger())

	now := time.Now()
	c.now = func() time.Time { return now }

	_, err := c.Lookup(context.Background(), domain.Agent("a1"))
	require.NoError(t, err)
	_, err = c.Lookup(context.Background(), domain.User("u1"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, r.calls.Load())

	// Five minutes later the user entry is stale but the agent entry is not.
	now = now.Add(5 * time.Minute)

	_, err = c.Lookup(context.Background(), domain.Agent("a1"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, r.calls.Load(), "agent entry should still be fresh")

	_, err = c.Lookup(context.Background(), domain.User("u1"))
	require.NoError(t, err)
	assert.EqualValues(t, 3, r.calls.Load(), "user entry should have expired")
}

func TestCache_LRUEviction(t *testing.T) {
	r := &countingResolver{}
	c := New(Config{AgentCapacity: 2}, r, testLogger())

	ctx := context.Background()
	_, _ = c.Lookup(ctx, domain.Agent("a1"))
	_, _ = c.Lookup(ctx, domain.Agent("a2"))

	// Touch a1 so a2 becomes least recently used.
	_, _ = c.Lookup(ctx, domain.Agent("a1"))

	_, _ = c.Lookup(ctx, domain.Agent("a3"))
	assert.Equal(t, 2, c.Len(domain.KindAgent))

	// a2 was evicted; looking it up again resolves anew.
	before := r.calls.Load()
	_, _ = c.Lookup(ctx, domain.Agent("a2"))
	assert.Equal(t, before+1, r.calls.Load())
}

func TestCache_ConcurrentMissesCoalesce(t *testing.T) {
	r := &countingResolver{delay: 20 * time.Millisecond}
	c := New(Config{}, r, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name, err := c.Lookup(context.Background(), domain.User("u1"))
			assert.NoError(t, err)
			assert.Equal(t, "name:u1", name)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, r.calls.Load(), "concurrent misses should share one resolver call")
}

func TestCache_ResolverErrorPropagates(t *testing.T) {
	c := New(Config{}, ResolverFunc(func(context.Context, domain.Participant) (string, error) {
		return "", fmt.Errorf("directory unavailable")
	}), testLogger())

	_, err := c.Lookup(context.Background(), domain.User("u1"))
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len(domain.KindUser))
}

func TestCache_PutSeedsEntry(t *testing.T) {
	r := &countingResolver{}
	c := New(Config{}, r, testLogger())

	c.Put(domain.User("u1"), "Seeded")
	name, err := c.Lookup(context.Background(), domain.User("u1"))
	require.NoError(t, err)
	assert.Equal(t, "Seeded", name)
	assert.EqualValues(t, 0, r.calls.Load())
}
