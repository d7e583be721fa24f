package session

import (
	"sync"
	"testing"
	"time"

	"github.com/TruongSon421/storefront-checkout/internal/cartstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHub(t *testing.T) *Hub {
	t.Helper()
	hub, err := NewHub(func(state *cartstate.State) (*Bundle, error) {
		return &Bundle{State: state}, nil
	})
	require.NoError(t, err)
	return hub
}

func TestGetCreatesOncePerSession(t *testing.T) {
	t.Parallel()

	hub := newHub(t)
	first, err := hub.Get("sess-1")
	require.NoError(t, err)
	second, err := hub.Get("sess-1")
	require.NoError(t, err)
	assert.Same(t, first, second)

	other, err := hub.Get("sess-2")
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, hub.Len())
}

func TestGetRejectsEmptySession(t *testing.T) {
	t.Parallel()

	hub := newHub(t)
	_, err := hub.Get("")
	assert.Error(t, err)
}

func TestDropForgetsSession(t *testing.T) {
	t.Parallel()

	hub := newHub(t)
	first, err := hub.Get("sess-1")
	require.NoError(t, err)

	hub.Drop("sess-1")
	assert.Equal(t, 0, hub.Len())

	fresh, err := hub.Get("sess-1")
	require.NoError(t, err)
	assert.NotSame(t, first, fresh)
}

func TestPruneIdleEvictsStaleSessions(t *testing.T) {
	t.Parallel()

	hub := newHub(t)
	current := time.Unix(1700000000, 0)
	hub.now = func() time.Time { return current }

	_, err := hub.Get("sess-old")
	require.NoError(t, err)

	current = current.Add(30 * time.Minute)
	_, err = hub.Get("sess-fresh")
	require.NoError(t, err)

	current = current.Add(45 * time.Minute)
	pruned := hub.PruneIdle(time.Hour)
	assert.Equal(t, 1, pruned)
	assert.Equal(t, 1, hub.Len())

	// The evicted session is rebuilt on its next request.
	rebuilt, err := hub.Get("sess-old")
	require.NoError(t, err)
	require.NotNil(t, rebuilt)
	assert.Equal(t, 2, hub.Len())
}

func TestConcurrentGetYieldsOneBundle(t *testing.T) {
	t.Parallel()

	hub := newHub(t)
	var wg sync.WaitGroup
	results := make([]*Bundle, 16)
	for i := range results {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			bundle, err := hub.Get("sess-1")
			assert.NoError(t, err)
			results[slot] = bundle
		}(i)
	}
	wg.Wait()

	for _, bundle := range results[1:] {
		assert.Same(t, results[0], bundle)
	}
	assert.Equal(t, 1, hub.Len())
}
