package identity

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/TruongSon421/storefront-checkout/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGuestCreator struct {
	calls int
	next  int
	err   error
}

func (s *stubGuestCreator) CreateGuestCart(context.Context) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	s.next++
	return fmt.Sprintf("guest-%d", s.next), nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestEnsureGuestIsIdempotent(t *testing.T) {
	t.Parallel()

	creator := &stubGuestCreator{}
	store, err := NewStore(NewMemoryTokenStore(), creator, testLogger())
	require.NoError(t, err)

	first, err := store.EnsureGuest(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "guest-1", first)

	second, err := store.EnsureGuest(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, creator.calls, "existing token must not trigger a network request")
}

func TestEnsureGuestAfterRetireIssuesNewToken(t *testing.T) {
	t.Parallel()

	creator := &stubGuestCreator{}
	store, err := NewStore(NewMemoryTokenStore(), creator, testLogger())
	require.NoError(t, err)

	first, err := store.EnsureGuest(context.Background(), "sess-1")
	require.NoError(t, err)

	require.NoError(t, store.Retire(context.Background(), "sess-1"))

	_, err = store.Peek(context.Background(), "sess-1")
	assert.ErrorIs(t, err, ErrNoGuestIdentity)

	second, err := store.EnsureGuest(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "retired tokens are never reused")
	assert.Equal(t, 2, creator.calls)
}

func TestEnsureGuestPropagatesCreateFailure(t *testing.T) {
	t.Parallel()

	creator := &stubGuestCreator{err: fmt.Errorf("cart service down")}
	store, err := NewStore(NewMemoryTokenStore(), creator, testLogger())
	require.NoError(t, err)

	_, err = store.EnsureGuest(context.Background(), "sess-1")
	require.Error(t, err)

	_, err = store.Peek(context.Background(), "sess-1")
	assert.ErrorIs(t, err, ErrNoGuestIdentity, "failed creation must not persist a token")
}

func TestSessionsAreIsolated(t *testing.T) {
	t.Parallel()

	creator := &stubGuestCreator{}
	store, err := NewStore(NewMemoryTokenStore(), creator, testLogger())
	require.NoError(t, err)

	a, err := store.EnsureGuest(context.Background(), "sess-a")
	require.NoError(t, err)
	b, err := store.EnsureGuest(context.Background(), "sess-b")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
