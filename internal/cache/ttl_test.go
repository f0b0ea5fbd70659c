package cache

import (
	"bytes"
	"errors"
	"io/fs"
	"path/filepath"
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

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestTTL_FreshWithinWindow(t *testing.T) {
	clock := newClock()
	c := New[string]("test", TTLMarketData)
	c.SetClock(clock.Now)

	c.Set("AAPL", "payload")

	clock.Advance(59 * time.Second)
	v, ok := c.Get("AAPL")
	assert.True(t, ok)
	assert.Equal(t, "payload", v)

	clock.Advance(2 * time.Second)
	_, ok = c.Get("AAPL")
	assert.False(t, ok, "entry must be stale after 61s")
}

func TestTTL_ExactlyAtTTLIsStale(t *testing.T) {
	clock := newClock()
	c := New[int]("test", time.Minute)
	c.SetClock(clock.Now)

	c.Set("k", 1)
	clock.Advance(time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestTTL_StaleEntryKeptUntilOverwritten(t *testing.T) {
	clock := newClock()
	c := New[int]("test", time.Second)
	c.SetClock(clock.Now)

	c.Set("k", 1)
	clock.Advance(time.Hour)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len(), "stale entries are not purged")

	c.Set("k", 2)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestTTL_MissingKey(t *testing.T) {
	c := New[[]byte]("test", time.Minute)
	v, ok := c.Get("absent")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestTTL_ConcurrentAccess(t *testing.T) {
	c := New[int]("test", time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set("shared", i)
			c.Get("shared")
		}(i)
	}
	wg.Wait()

	_, ok := c.Get("shared")
	assert.True(t, ok)
}

func TestSnapshot_RoundTripSkipsStale(t *testing.T) {
	clock := newClock()
	src := New[string]("titles", TTLPageTitle)
	src.SetClock(clock.Now)

	src.Set("https://old.example", "Old")
	clock.Advance(23 * time.Hour)
	src.Set("https://new.example", "New")
	clock.Advance(2 * time.Hour) // old entry now 25h old

	var buf bytes.Buffer
	require.NoError(t, src.Save(&buf))

	dst := New[string]("titles", TTLPageTitle)
	dst.SetClock(clock.Now)
	loaded, err := dst.Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)

	v, ok := dst.Get("https://new.example")
	assert.True(t, ok)
	assert.Equal(t, "New", v)

	_, ok = dst.Get("https://old.example")
	assert.False(t, ok)
}

func TestSnapshot_InMemoryEntryWins(t *testing.T) {
	src := New[string]("titles", time.Hour)
	src.Set("k", "from-snapshot")

	var buf bytes.Buffer
	require.NoError(t, src.Save(&buf))

	dst := New[string]("titles", time.Hour)
	dst.Set("k", "live")
	loaded, err := dst.Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded)

	v, _ := dst.Get("k")
	assert.Equal(t, "live", v)
}

func TestSnapshot_Files(t *testing.T) {
	path := filepath.Join(t.TempDir(), "titles.msgpack")

	dst := New[string]("titles", time.Hour)
	_, err := dst.LoadFile(path)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	src := New[string]("titles", time.Hour)
	src.Set("a", "A")
	require.NoError(t, src.SaveFile(path))

	loaded, err := dst.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)
}

func TestSnapshot_CorruptInput(t *testing.T) {
	c := New[string]("titles", time.Hour)
	_, err := c.Load(bytes.NewReader([]byte{0xc1, 0x00}))
	assert.Error(t, err)
}
