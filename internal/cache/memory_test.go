package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestMemory() (*Memory, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory()
	m.now = clock.Now
	return m, clock
}

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory()

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, m.Set(ctx, "k", []byte("v1"), time.Minute))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, m.Set(ctx, "k", []byte("v2"), time.Minute))
	got, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory()

	require.NoError(t, m.Set(ctx, "short", []byte("x"), 5*time.Minute))
	require.NoError(t, m.Set(ctx, "forever", []byte("y"), 0))

	clock.Advance(5*time.Minute - time.Second)
	_, err := m.Get(ctx, "short")
	assert.NoError(t, err)

	clock.Advance(time.Second)
	_, err = m.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, 1, m.Len())

	clock.Advance(24 * time.Hour)
	_, err = m.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestMemory_ExpiredGetKeepsConcurrentSet(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory()
	require.NoError(t, m.Set(ctx, "k", []byte("stale"), time.Minute))

	later := clock.Now().Add(2 * time.Minute)
	var once sync.Once
	// the clock is read after the read lock is released; a Set lands there
	m.now = func() time.Time {
		once.Do(func() {
			m.mu.Lock()
			m.entries["k"] = entry{value: []byte("fresh"), expires: later.Add(time.Hour)}
			m.mu.Unlock()
		})
		return later
	}

	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), got)
}

func TestMemory_CopiesValues(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory()
	buf := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", buf, time.Minute))
	buf[0] = 'z'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
	got[1] = 'z'

	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestMemory_SweepsExpired(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory()
	m.sweepAt = 4
	for i := 0; i < 4; i++ {
		require.NoError(t, m.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Second))
	}
	clock.Advance(time.Minute)
	require.NoError(t, m.Set(ctx, "fresh", []byte("v"), time.Second))
	assert.Equal(t, 1, m.Len())
}

func TestMemory_Concurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%4)
			for j := 0; j < 100; j++ {
				_ = m.Set(ctx, key, []byte{byte(j)}, time.Minute)
				_, _ = m.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 4, m.Len())
}
