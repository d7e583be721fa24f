package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pkgerrors "github.com/TruongSon421/storefront-checkout/pkg/errors"
	"github.com/TruongSon421/storefront-checkout/pkg/logger"
	"github.com/TruongSon421/storefront-checkout/pkg/redis"
)

// guestCreator provisions a guest cart on the remote cart service.
type guestCreator interface {
	CreateGuestCart(ctx context.Context) (string, error)
}

// TokenStore persists guest tokens per browser session.
type TokenStore interface {
	Load(ctx context.Context, sessionID string) (string, error)
	Save(ctx context.Context, sessionID, guestID string) error
	Delete(ctx context.Context, sessionID string) error
}

// ErrNoGuestIdentity is returned when a session has no persisted guest token.
var ErrNoGuestIdentity = errors.New("no guest identity for session")

// Store owns the shopping identity of a session: either a guest token or an
// authenticated user id. Guest tokens live until a successful merge retires
// them; a retired token is never reused.
type Store struct {
	tokens TokenStore
	carts  guestCreator
	logg   *logger.Logger
}

// NewStore builds an identity store.
func NewStore(tokens TokenStore, carts guestCreator, logg *logger.Logger) (*Store, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token store required")
	}
	if carts == nil {
		return nil, fmt.Errorf("guest cart creator required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Store{tokens: tokens, carts: carts, logg: logg}, nil
}

// EnsureGuest returns the persisted guest token for the session, creating
// and persisting one through the cart service only when none exists.
func (s *Store) EnsureGuest(ctx context.Context, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	guestID, err := s.tokens.Load(ctx, sessionID)
	if err == nil && guestID != "" {
		return guestID, nil
	}
	if err != nil && !errors.Is(err, ErrNoGuestIdentity) {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest identity")
	}

	guestID, err = s.carts.CreateGuestCart(ctx)
	if err != nil {
		return "", err
	}
	if err := s.tokens.Save(ctx, sessionID, guestID); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist guest identity")
	}

	s.logg.Info(s.logg.WithGuestID(ctx, guestID), "guest identity created")
	return guestID, nil
}

// Peek returns the persisted guest token without creating one.
// ErrNoGuestIdentity signals the session has none.
func (s *Store) Peek(ctx context.Context, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	guestID, err := s.tokens.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNoGuestIdentity) {
			return "", err
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest identity")
	}
	if guestID == "" {
		return "", ErrNoGuestIdentity
	}
	return guestID, nil
}

// Retire irreversibly deletes the session's guest token. Call exactly once,
// only after a successful merge.
func (s *Store) Retire(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if err := s.tokens.Delete(ctx, sessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire guest identity")
	}
	s.logg.Info(s.logg.WithSessionID(ctx, sessionID), "guest identity retired")
	return nil
}

// RedisTokenStore persists guest tokens in redis under session-scoped keys.
type RedisTokenStore struct {
	client redis.GuestStore
}

// NewRedisTokenStore wraps the redis client as a TokenStore.
func NewRedisTokenStore(client redis.GuestStore) (*RedisTokenStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisTokenStore{client: client}, nil
}

func (r *RedisTokenStore) Load(ctx context.Context, sessionID string) (string, error) {
	val, err := r.client.Get(ctx, r.client.GuestKey(sessionID))
	if errors.Is(err, redis.Nil) {
		return "", ErrNoGuestIdentity
	}
	return val, err
}

func (r *RedisTokenStore) Save(ctx context.Context, sessionID, guestID string) error {
	// No TTL: the token lives until a successful merge retires it.
	return r.client.Set(ctx, r.client.GuestKey(sessionID), guestID, 0)
}

func (r *RedisTokenStore) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, r.client.GuestKey(sessionID))
}

// MemoryTokenStore is an in-process TokenStore used in tests and single-node
// development runs.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

// NewMemoryTokenStore returns an empty in-memory store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: map[string]string{}}
}

func (m *MemoryTokenStore) Load(_ context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	guestID, ok := m.tokens[sessionID]
	if !ok {
		return "", ErrNoGuestIdentity
	}
	return guestID, nil
}

func (m *MemoryTokenStore) Save(_ context.Context, sessionID, guestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[sessionID] = guestID
	return nil
}

func (m *MemoryTokenStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, sessionID)
	return nil
}
