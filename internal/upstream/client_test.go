package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/testflow-app/testflow-web/internal/domain"
	"github.com/testflow-app/testflow-web/internal/token"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, zap.NewNop()), srv
}

func storeContext(pair token.Pair) (context.Context, *token.MemoryStore) {
	store := token.NewMemoryStore()
	_ = store.Set(context.Background(), pair)
	return token.NewContext(context.Background(), store), store
}

func TestEnvelopeUnwrapping(t *testing.T) {
	categories := []domain.Category{
		{ID: "c1", Name: "Algebra", IsActive: true},
		{ID: "c2", Name: "Geometry", IsActive: true},
	}

	t.Run("wrapped payload", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"data": categories})
		}))

		got, err := NewCategoriesService(client).List(context.Background())
		require.NoError(t, err)
		assert.Equal(t, categories, got)
	})

	t.Run("bare payload", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(categories)
		}))

		got, err := NewCategoriesService(client).List(context.Background())
		require.NoError(t, err)
		assert.Equal(t, categories, got)
	})

	t.Run("object without data field decodes as-is", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(domain.Category{ID: "c9", Name: "Logic"})
		}))

		got, err := NewCategoriesService(client).Get(context.Background(), "c9")
		require.NoError(t, err)
		assert.Equal(t, "Logic", got.Name)
	})
}

func TestBearerAttachment(t *testing.T) {
	var seenAuth atomic.Value
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenAuth.Store(r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]domain.User{})
	}))

	t.Run("token present", func(t *testing.T) {
		ctx, _ := storeContext(token.Pair{AccessToken: "acc-token"})
		_, err := NewUsersService(client).List(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Bearer acc-token", seenAuth.Load())
	})

	t.Run("no token passes through unauthenticated", func(t *testing.T) {
		_, err := NewUsersService(client).List(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "", seenAuth.Load())
	})
}

func TestErrorNormalization(t *testing.T) {
	t.Run("server message preserved", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"message": "category name already taken"})
		}))

		_, err := NewCategoriesService(client).Create(context.Background(), CategoryInput{Name: "dup"})
		apiErr, ok := AsAPIError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
		assert.Equal(t, "category name already taken", apiErr.Message)
	})

	t.Run("generic message for opaque body", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("<html>bad gateway</html>"))
		}))

		_, err := NewCategoriesService(client).List(context.Background())
		apiErr, ok := AsAPIError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
		assert.Equal(t, http.StatusText(http.StatusBadGateway), apiErr.Message)
	})
}

// refreshBackend simulates an upstream that 401s stale access tokens and
// mints fresh pairs at the refresh endpoint.
type refreshBackend struct {
	mu           sync.Mutex
	refreshCalls int32
	validAccess  string
	refuse       bool
	payload      any
}

func (b *refreshBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.refreshCalls, 1)
		if b.refuse {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "refresh token revoked"})
			return
		}
		b.mu.Lock()
		b.validAccess = "fresh-access"
		b.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{
			"accessToken":  "fresh-access",
			"refreshToken": "fresh-refresh",
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		valid := "Bearer " + b.validAccess
		b.mu.Unlock()
		if r.Header.Get("Authorization") != valid {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "token expired"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": b.payload})
	})
	return mux
}

func TestRefreshAndReplay(t *testing.T) {
	backend := &refreshBackend{validAccess: "good", payload: []domain.StudyGoal{{ID: "g1", Name: "Pass finals"}}}
	client, _ := newTestClient(t, backend.handler())

	ctx, store := storeContext(token.Pair{AccessToken: "stale", RefreshToken: "refresh-1"})

	goals, err := NewStudyGoalsService(client).ListOwn(ctx)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, "Pass finals", goals[0].Name)

	assert.EqualValues(t, 1, atomic.LoadInt32(&backend.refreshCalls), "exactly one refresh call")

	pair := store.Tokens(context.Background())
	assert.Equal(t, "fresh-access", pair.AccessToken)
	assert.Equal(t, "fresh-refresh", pair.RefreshToken)
}

func TestNoRefreshWithoutRefreshToken(t *testing.T) {
	backend := &refreshBackend{validAccess: "good", payload: []domain.StudyGoal{}}
	client, _ := newTestClient(t, backend.handler())

	ctx, _ := storeContext(token.Pair{AccessToken: "stale"})

	_, err := NewStudyGoalsService(client).ListOwn(ctx)
	require.True(t, IsUnauthorized(err), "original 401 must propagate unchanged")
	assert.EqualValues(t, 0, atomic.LoadInt32(&backend.refreshCalls), "no refresh call issued")
}

func TestRetriedRequestFailsThrough(t *testing.T) {
	// The refresh succeeds but the backend keeps rejecting the replay; the
	// second 401 must not trigger another refresh.
	calls := int32(0)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]string{
			"accessToken":  "fresh-access",
			"refreshToken": "fresh-refresh",
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "still unauthorized"})
	})
	client, _ := newTestClient(t, mux)

	ctx, _ := storeContext(token.Pair{AccessToken: "stale", RefreshToken: "refresh-1"})

	_, err := NewUsersService(client).List(ctx)
	require.True(t, IsUnauthorized(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "replayed request must not refresh again")
}

func TestRefreshFailureClearsTokens(t *testing.T) {
	backend := &refreshBackend{validAccess: "good", refuse: true, payload: []domain.StudyGoal{}}
	client, _ := newTestClient(t, backend.handler())

	ctx, store := storeContext(token.Pair{AccessToken: "stale", RefreshToken: "revoked"})

	_, err := NewStudyGoalsService(client).ListOwn(ctx)
	require.Error(t, err)
	assert.ErrorContains(t, err, "token refresh failed")

	assert.Equal(t, token.Pair{}, store.Tokens(context.Background()), "pair cleared after refresh failure")
}

func TestConcurrent401sShareOneRefresh(t *testing.T) {
	const parallel = 8

	// All stale requests are held at a barrier until every one of them has
	// arrived, so their 401 handlers are guaranteed to overlap.
	var (
		refreshCalls int32
		arrived      int32
	)
	ready := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		// Hold the flight open so every released caller joins it instead of
		// finding an already-completed one.
		time.Sleep(100 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]string{
			"accessToken":  "fresh-access",
			"refreshToken": "fresh-refresh",
		})
	})
	mux.HandleFunc("/categories", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh-access" {
			if atomic.AddInt32(&arrived, 1) == parallel {
				close(ready)
			}
			<-ready
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "token expired"})
			return
		}
		json.NewEncoder(w).Encode([]domain.Category{{ID: "c1", Name: "Algebra"}})
	})
	client, _ := newTestClient(t, mux)

	ctx, _ := storeContext(token.Pair{AccessToken: "stale", RefreshToken: "shared-refresh"})
	service := NewCategoriesService(client)

	var wg sync.WaitGroup
	errs := make([]error, parallel)
	for i := 0; i < parallel; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.List(ctx)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "request %d", i)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&refreshCalls),
		"concurrent 401s must share a single in-flight refresh")
}

func TestPeopleDirectory(t *testing.T) {
	people := []domain.Person{
		{ID: "p1", UserID: "u1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@testflow.app"},
		{ID: "p2", UserID: "u2", FirstName: "Alan", LastName: "Turing", Email: "alan@testflow.app"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /people", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": people})
	})
	mux.HandleFunc("GET /people/{id}", func(w http.ResponseWriter, r *http.Request) {
		for _, p := range people {
			if p.ID == r.PathValue("id") {
				json.NewEncoder(w).Encode(map[string]any{"data": p})
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "person not found"})
	})
	client, _ := newTestClient(t, mux)
	service := NewPeopleService(client)

	t.Run("list", func(t *testing.T) {
		got, err := service.List(context.Background())
		require.NoError(t, err)
		assert.Equal(t, people, got)
	})

	t.Run("get", func(t *testing.T) {
		got, err := service.Get(context.Background(), "p2")
		require.NoError(t, err)
		assert.Equal(t, "Alan Turing", got.FullName())
	})

	t.Run("get unknown", func(t *testing.T) {
		_, err := service.Get(context.Background(), "p9")
		assert.True(t, IsStatus(err, http.StatusNotFound))
	})
}

func TestTransportErrorWrapped(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 200*time.Millisecond, zap.NewNop())

	_, err := NewUsersService(client).List(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "upstream request failed")
	_, ok := AsAPIError(err)
	assert.False(t, ok, "transport failures are not APIErrors")
}
