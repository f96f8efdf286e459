package token

import (
	"context"
	"net/http"
	"sync"
)

// Cookie names shared by the cookie and redis backends.
const (
	AccessCookieName  = "accessToken"
	RefreshCookieName = "refreshToken"
	SessionCookieName = "tf_session_id"
)

// Pair is an access/refresh token pair. Writing a pair always replaces both
// values; there is no partial update.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Empty reports whether no access token is held.
func (p Pair) Empty() bool {
	return p.AccessToken == ""
}

// Authenticated reports whether an access token exists and is not expired.
func (p Pair) Authenticated() bool {
	return p.AccessToken != "" && !Expired(p.AccessToken)
}

// Store holds the token pair for one browser session. Implementations are
// safe for use by concurrent in-flight upstream requests.
type Store interface {
	// Tokens returns the currently held pair; zero value when none.
	Tokens(ctx context.Context) Pair
	// Set replaces the held pair. Persistence failures are reported but
	// callers treat them as non-fatal.
	Set(ctx context.Context, pair Pair) error
	// Clear removes the held pair. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// Provider binds a token backend to a single request/response exchange.
type Provider interface {
	ForRequest(w http.ResponseWriter, r *http.Request) Store
}

type storeKey struct{}

// NewContext returns a context carrying the request-scoped Store.
func NewContext(ctx context.Context, s Store) context.Context {
	return context.WithValue(ctx, storeKey{}, s)
}

// FromContext extracts the request-scoped Store, if any.
func FromContext(ctx context.Context) (Store, bool) {
	s, ok := ctx.Value(storeKey{}).(Store)
	return s, ok
}

// MemoryStore keeps a single token pair in process memory. It backs the
// "memory" session backend for single-user development runs and is the
// fixture store in tests.
type MemoryStore struct {
	mu   sync.Mutex
	pair Pair
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Tokens(_ context.Context) Pair {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pair
}

func (m *MemoryStore) Set(_ context.Context, pair Pair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = pair
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = Pair{}
	return nil
}

// ForRequest lets a MemoryStore act as its own provider: every request shares
// the same process-wide pair.
func (m *MemoryStore) ForRequest(_ http.ResponseWriter, _ *http.Request) Store {
	return m
}
