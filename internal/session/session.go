// Package session holds the frontend's view of the authenticated user.
//
// Session values are immutable snapshots: every Manager operation returns a
// fresh Session instead of mutating shared state, and failures land in the
// snapshot's Err field rather than escaping into handlers.
package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/testflow-app/testflow-web/internal/telemetry"
	"github.com/testflow-app/testflow-web/internal/token"
	"github.com/testflow-app/testflow-web/internal/upstream"
)

// User is the identity carried by a session.
type User struct {
	ID    string
	Email string
}

// Session is one snapshot of authentication state. The zero value is an
// anonymous session.
type Session struct {
	User          User
	Authenticated bool
	// Err is a human-readable failure message for the UI; empty when the
	// last operation succeeded.
	Err string
}

// Manager drives the session lifecycle on top of the upstream auth service
// and the request-scoped token store.
type Manager struct {
	auth    *upstream.AuthService
	people  *upstream.PeopleService
	logger  *zap.Logger
	tracker telemetry.Tracker
}

// NewManager creates a session manager.
func NewManager(auth *upstream.AuthService, people *upstream.PeopleService, logger *zap.Logger, tracker telemetry.Tracker) *Manager {
	return &Manager{
		auth:    auth,
		people:  people,
		logger:  logger,
		tracker: tracker,
	}
}

// Login exchanges credentials for a token pair and persists it. On failure
// nothing is persisted and the returned session carries the error message.
func (m *Manager) Login(ctx context.Context, email, password string) Session {
	store, ok := token.FromContext(ctx)
	if !ok {
		return Session{Err: "no session available"}
	}

	result, err := m.auth.Login(ctx, email, password)
	if err != nil {
		m.tracker.AuthEvent("login_failed")
		return Session{Err: userMessage(err)}
	}

	if err := store.Set(ctx, result.Tokens); err != nil {
		// Best-effort persistence: the user is logged in for this exchange
		// even when the backing store misbehaves.
		m.logger.Warn("failed to persist token pair", zap.Error(err))
	}

	m.tracker.AuthEvent("login")
	return Session{
		User:          User{ID: result.User.ID, Email: result.User.Email},
		Authenticated: true,
	}
}

// Register creates an account and starts a session for it.
func (m *Manager) Register(ctx context.Context, name, email, password string) Session {
	store, ok := token.FromContext(ctx)
	if !ok {
		return Session{Err: "no session available"}
	}

	result, err := m.auth.Register(ctx, name, email, password)
	if err != nil {
		m.tracker.AuthEvent("register_failed")
		return Session{Err: userMessage(err)}
	}

	if err := store.Set(ctx, result.Tokens); err != nil {
		m.logger.Warn("failed to persist token pair", zap.Error(err))
	}

	m.tracker.AuthEvent("register")
	return Session{
		User:          User{ID: result.User.ID, Email: result.User.Email},
		Authenticated: true,
	}
}

// Logout drops the stored token pair. It always yields an anonymous session,
// even when clearing the backing store fails.
func (m *Manager) Logout(ctx context.Context) Session {
	if store, ok := token.FromContext(ctx); ok {
		if err := store.Clear(ctx); err != nil {
			m.logger.Warn("failed to clear token pair on logout", zap.Error(err))
		}
	}
	m.tracker.AuthEvent("logout")
	return Session{}
}

// Bootstrap derives a session from an already stored token pair. An expired
// access token alongside a refresh token drives one upstream refresh before
// the visitor is treated as anonymous. When the token payload lacks an email,
// the profile is fetched to complete it; that fetch failing is not an error,
// the session stays authenticated with an empty email.
func (m *Manager) Bootstrap(ctx context.Context) Session {
	store, ok := token.FromContext(ctx)
	if !ok {
		return Session{}
	}

	pair := store.Tokens(ctx)
	if pair.Empty() {
		return Session{}
	}

	if !pair.Authenticated() {
		if pair.RefreshToken == "" {
			return Session{}
		}
		refreshed, err := m.auth.Refresh(ctx)
		if err != nil {
			m.logger.Debug("token refresh during bootstrap failed", zap.Error(err))
			return Session{}
		}
		m.tracker.AuthEvent("bootstrap_refresh")
		pair = refreshed
	}

	claims, err := token.Parse(pair.AccessToken)
	if err != nil {
		return Session{}
	}

	sess := Session{
		User:          User{ID: claims.UserID, Email: claims.Email},
		Authenticated: true,
	}

	if sess.User.Email == "" && m.people != nil {
		if person, err := m.people.GetByUser(ctx, claims.UserID); err == nil {
			sess.User.Email = person.Email
		} else {
			m.logger.Debug("profile fetch during bootstrap failed", zap.Error(err))
		}
	}

	m.tracker.AuthEvent("bootstrap")
	return sess
}

// RequestPasswordReset asks the upstream to mail a reset link. It reports
// success and, on failure, an inline message for the form.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) (bool, string) {
	if err := m.auth.RequestPasswordReset(ctx, email); err != nil {
		return false, userMessage(err)
	}
	return true, ""
}

// ResetPassword redeems a reset token for a new password.
func (m *Manager) ResetPassword(ctx context.Context, resetToken, newPassword string) (bool, string) {
	if err := m.auth.ResetPassword(ctx, resetToken, newPassword); err != nil {
		return false, userMessage(err)
	}
	return true, ""
}

// ChangePassword updates the password of the authenticated user.
func (m *Manager) ChangePassword(ctx context.Context, currentPassword, newPassword string) (bool, string) {
	if err := m.auth.ChangePassword(ctx, currentPassword, newPassword); err != nil {
		return false, userMessage(err)
	}
	return true, ""
}

// userMessage converts any service error into a message safe to render
// inline. Upstream messages pass through; transport failures collapse into a
// generic text.
func userMessage(err error) string {
	if apiErr, ok := upstream.AsAPIError(err); ok {
		return apiErr.Message
	}
	return "TestFlow is unreachable right now, please try again"
}
