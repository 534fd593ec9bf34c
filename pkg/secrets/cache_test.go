package secrets

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestCache(ttl time.Duration) (*Cache[string], *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	c := NewCache[string](ttl)
	c.now = clock.now
	return c, clock
}

func TestCache_PutAndGet(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	_, ok := c.Get("AVAX")
	assert.False(t, ok, "expected miss on empty cache")

	c.Put("AVAX", "1234")
	v, ok := c.Get("AVAX")
	assert.True(t, ok)
	assert.Equal(t, "1234", v)
}

func TestCache_Expiration(t *testing.T) {
	c, clock := newTestCache(time.Second)
	c.Put("AVAX", "1234")

	clock.advance(2 * time.Second)
	_, ok := c.Get("AVAX")
	assert.False(t, ok)
	assert.Zero(t, c.Len(), "expired entry removed on read")
}

func TestCache_Bust(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Put("AVAX", "1234")
	c.Bust("AVAX")
	_, ok := c.Get("AVAX")
	assert.False(t, ok)
}

func TestCache_ZeroTTLDisablesCaching(t *testing.T) {
	c, _ := newTestCache(0)
	c.Put("AVAX", "1234")
	_, ok := c.Get("AVAX")
	assert.False(t, ok)
}

func TestCache_Sweep(t *testing.T) {
	c, clock := newTestCache(time.Second)
	c.Put("a", "1")
	clock.advance(500 * time.Millisecond)
	c.Put("b", "2")
	clock.advance(700 * time.Millisecond)

	c.sweep()
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("b")
	assert.True(t, ok)
}

func TestCache_GetOrLoad(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	calls := 0
	load := func() (string, error) {
		calls++
		return "loaded", nil
	}

	v, hit, err := c.GetOrLoad("AVAX", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "loaded", v)

	v, hit, err = c.GetOrLoad("AVAX", load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "loaded", v)
	assert.Equal(t, 1, calls)

	clock.advance(2 * time.Minute)
	_, hit, err = c.GetOrLoad("AVAX", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, calls)
}

func TestCache_GetOrLoadErrorNotCached(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	_, _, err := c.GetOrLoad("AVAX", func() (string, error) { return "", errors.New("rpc down") })
	require.Error(t, err)
	assert.Zero(t, c.Len())
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%26))
			c.Put(key, "v")
			_, _ = c.Get(key)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 26)
}
