package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/testflow-app/testflow-web/internal/telemetry"
	"github.com/testflow-app/testflow-web/internal/token"
	"github.com/testflow-app/testflow-web/internal/upstream"
)

func newManager(t *testing.T, handler http.Handler) *Manager {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := upstream.NewClient(srv.URL, 5*time.Second, zap.NewNop())
	return NewManager(upstream.NewAuthService(client), upstream.NewPeopleService(client), zap.NewNop(), telemetry.Noop{})
}

func storeContext(t *testing.T) (context.Context, *token.MemoryStore) {
	t.Helper()
	store := token.NewMemoryStore()
	return token.NewContext(context.Background(), store), store
}

func accessToken(t *testing.T, userID, email string, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     expiresAt.Unix(),
		"iat":     time.Now().Unix(),
	}
	if email != "" {
		claims["email"] = email
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestLoginSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "student@testflow.app", req["email"])

		json.NewEncoder(w).Encode(map[string]any{
			"accessToken":  "acc",
			"refreshToken": "ref",
			"user":         map[string]string{"id": "u1", "email": "student@testflow.app"},
		})
	})
	m := newManager(t, mux)
	ctx, store := storeContext(t)

	sess := m.Login(ctx, "student@testflow.app", "Password123")

	assert.True(t, sess.Authenticated)
	assert.Equal(t, "u1", sess.User.ID)
	assert.Equal(t, "student@testflow.app", sess.User.Email)
	assert.Empty(t, sess.Err)

	pair := store.Tokens(context.Background())
	assert.Equal(t, "acc", pair.AccessToken)
	assert.Equal(t, "ref", pair.RefreshToken)
}

func TestLoginInvalidCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "invalid email or password"})
	})
	m := newManager(t, mux)
	ctx, store := storeContext(t)

	sess := m.Login(ctx, "student@testflow.app", "wrong")

	assert.False(t, sess.Authenticated)
	assert.Equal(t, "invalid email or password", sess.Err)
	assert.Equal(t, token.Pair{}, store.Tokens(context.Background()), "no tokens persisted on failed login")
}

func TestLoginUpstreamDown(t *testing.T) {
	client := upstream.NewClient("http://127.0.0.1:1", 200*time.Millisecond, zap.NewNop())
	m := NewManager(upstream.NewAuthService(client), nil, zap.NewNop(), telemetry.Noop{})
	ctx, _ := storeContext(t)

	sess := m.Login(ctx, "a@b.c", "pw")

	assert.False(t, sess.Authenticated)
	assert.NotEmpty(t, sess.Err)
}

func TestLogoutAlwaysSucceedsLocally(t *testing.T) {
	m := newManager(t, http.NewServeMux())
	ctx, store := storeContext(t)
	require.NoError(t, store.Set(ctx, token.Pair{AccessToken: "a", RefreshToken: "r"}))

	sess := m.Logout(ctx)

	assert.False(t, sess.Authenticated)
	assert.Equal(t, token.Pair{}, store.Tokens(context.Background()))
}

func TestBootstrapFromStoredToken(t *testing.T) {
	m := newManager(t, http.NewServeMux())
	ctx, store := storeContext(t)

	raw := accessToken(t, "u9", "bootstrap@testflow.app", time.Now().Add(time.Hour))
	require.NoError(t, store.Set(ctx, token.Pair{AccessToken: raw}))

	sess := m.Bootstrap(ctx)

	assert.True(t, sess.Authenticated)
	assert.Equal(t, "u9", sess.User.ID)
	assert.Equal(t, "bootstrap@testflow.app", sess.User.Email)
}

func TestBootstrapExpiredTokenWithoutRefresh(t *testing.T) {
	m := newManager(t, http.NewServeMux())
	ctx, store := storeContext(t)

	raw := accessToken(t, "u9", "x@y.z", time.Now().Add(-time.Minute))
	require.NoError(t, store.Set(ctx, token.Pair{AccessToken: raw}))

	sess := m.Bootstrap(ctx)
	assert.False(t, sess.Authenticated)
}

func TestBootstrapRefreshesExpiredAccessToken(t *testing.T) {
	fresh := accessToken(t, "u9", "refreshed@testflow.app", time.Now().Add(time.Hour))

	var refreshCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ref", req["refreshToken"])

		json.NewEncoder(w).Encode(map[string]string{
			"accessToken":  fresh,
			"refreshToken": "ref2",
		})
	})
	m := newManager(t, mux)
	ctx, store := storeContext(t)

	stale := accessToken(t, "u9", "refreshed@testflow.app", time.Now().Add(-time.Minute))
	require.NoError(t, store.Set(ctx, token.Pair{AccessToken: stale, RefreshToken: "ref"}))

	sess := m.Bootstrap(ctx)

	assert.True(t, sess.Authenticated, "a held refresh token must recover the session")
	assert.Equal(t, "u9", sess.User.ID)
	assert.Equal(t, "refreshed@testflow.app", sess.User.Email)
	assert.Equal(t, 1, refreshCalls)

	pair := store.Tokens(context.Background())
	assert.Equal(t, fresh, pair.AccessToken)
	assert.Equal(t, "ref2", pair.RefreshToken)
}

func TestBootstrapRefreshFailureYieldsAnonymous(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "refresh token revoked"})
	})
	m := newManager(t, mux)
	ctx, store := storeContext(t)

	stale := accessToken(t, "u9", "x@y.z", time.Now().Add(-time.Minute))
	require.NoError(t, store.Set(ctx, token.Pair{AccessToken: stale, RefreshToken: "ref"}))

	sess := m.Bootstrap(ctx)

	assert.False(t, sess.Authenticated)
	assert.Equal(t, token.Pair{}, store.Tokens(context.Background()), "a dead pair must not linger in the store")
}

func TestBootstrapCompletesEmailFromProfile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /people/user/u3", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{"id": "p3", "userId": "u3", "email": "profile@testflow.app"},
		})
	})
	m := newManager(t, mux)
	ctx, store := storeContext(t)

	raw := accessToken(t, "u3", "", time.Now().Add(time.Hour))
	require.NoError(t, store.Set(ctx, token.Pair{AccessToken: raw}))

	sess := m.Bootstrap(ctx)

	assert.True(t, sess.Authenticated)
	assert.Equal(t, "profile@testflow.app", sess.User.Email)
}

func TestBootstrapProfileFetchFailureIsNonFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /people/user/u3", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	m := newManager(t, mux)
	ctx, store := storeContext(t)

	raw := accessToken(t, "u3", "", time.Now().Add(time.Hour))
	require.NoError(t, store.Set(ctx, token.Pair{AccessToken: raw}))

	sess := m.Bootstrap(ctx)

	assert.True(t, sess.Authenticated, "profile failure must not kill the session")
	assert.Empty(t, sess.User.Email)
}

func TestRequestPasswordReset(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/forgot-password", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"message": "sent"})
	})
	m := newManager(t, mux)
	ctx, _ := storeContext(t)

	ok, msg := m.RequestPasswordReset(ctx, "student@testflow.app")
	assert.True(t, ok)
	assert.Empty(t, msg)
}

func TestResetPasswordFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/reset-password", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "reset token expired"})
	})
	m := newManager(t, mux)
	ctx, _ := storeContext(t)

	ok, msg := m.ResetPassword(ctx, "stale-token", "NewPassword1")
	assert.False(t, ok)
	assert.Equal(t, "reset token expired", msg)
}
