package upstream

import (
	"context"
	"fmt"

	"github.com/testflow-app/testflow-web/internal/domain"
)

// UsersService wraps the /users resource.
type UsersService struct {
	client *Client
}

// NewUsersService creates a users service on top of client.
func NewUsersService(client *Client) *UsersService {
	return &UsersService{client: client}
}

// UserInput is the create/update payload for a user.
type UserInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
	IsActive bool   `json:"isActive"`
}

func (s *UsersService) List(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := s.client.get(ctx, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *UsersService) Get(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := s.client.get(ctx, fmt.Sprintf("/users/%s", id), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UsersService) Create(ctx context.Context, input UserInput) (*domain.User, error) {
	var user domain.User
	if err := s.client.post(ctx, "/users", input, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UsersService) Update(ctx context.Context, id string, input UserInput) (*domain.User, error) {
	var user domain.User
	if err := s.client.put(ctx, fmt.Sprintf("/users/%s", id), input, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UsersService) Delete(ctx context.Context, id string) error {
	return s.client.delete(ctx, fmt.Sprintf("/users/%s", id))
}
