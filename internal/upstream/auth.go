package upstream

import (
	"context"
	"errors"

	"github.com/testflow-app/testflow-web/internal/domain"
	"github.com/testflow-app/testflow-web/internal/token"
)

// AuthService wraps the upstream authentication endpoints.
type AuthService struct {
	client *Client
}

// NewAuthService creates an auth service on top of client.
func NewAuthService(client *Client) *AuthService {
	return &AuthService{client: client}
}

// AuthResult is a successful login/registration outcome.
type AuthResult struct {
	Tokens token.Pair
	User   domain.User
}

type authResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         domain.User `json:"user"`
}

func (r authResponse) result() *AuthResult {
	return &AuthResult{
		Tokens: token.Pair{
			AccessToken:  r.AccessToken,
			RefreshToken: r.RefreshToken,
		},
		User: r.User,
	}
}

// Login exchanges credentials for a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var resp authResponse
	err := s.client.post(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.result(), nil
}

// Register creates an account and returns its first token pair.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	var resp authResponse
	err := s.client.post(ctx, "/auth/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.result(), nil
}

// Refresh exchanges the stored refresh token for a fresh pair and persists it
// into the request's token store. Concurrent refreshes holding the same
// refresh token collapse into one upstream call.
func (s *AuthService) Refresh(ctx context.Context) (token.Pair, error) {
	store, ok := token.FromContext(ctx)
	if !ok {
		return token.Pair{}, errors.New("no token store in context")
	}
	refreshToken := store.Tokens(ctx).RefreshToken
	if refreshToken == "" {
		return token.Pair{}, errors.New("no refresh token held")
	}
	return s.client.refreshTokens(ctx, store, refreshToken)
}

// ChangePassword updates the authenticated user's password.
func (s *AuthService) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	return s.client.post(ctx, "/auth/change-password", map[string]string{
		"currentPassword": currentPassword,
		"newPassword":     newPassword,
	}, nil)
}

// RequestPasswordReset asks the upstream to mail a reset token.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	return s.client.post(ctx, "/auth/forgot-password", map[string]string{
		"email": email,
	}, nil)
}

// ResetPassword redeems a reset token for a new password.
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	return s.client.post(ctx, "/auth/reset-password", map[string]string{
		"token":    resetToken,
		"password": newPassword,
	}, nil)
}
