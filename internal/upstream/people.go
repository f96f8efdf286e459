package upstream

import (
	"context"
	"fmt"

	"github.com/testflow-app/testflow-web/internal/domain"
)

// PeopleService wraps the /people resource and profile uploads.
type PeopleService struct {
	client *Client
}

// NewPeopleService creates a people service on top of client.
func NewPeopleService(client *Client) *PeopleService {
	return &PeopleService{client: client}
}

// PersonInput is the create/update payload for a profile.
type PersonInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

func (s *PeopleService) List(ctx context.Context) ([]domain.Person, error) {
	var people []domain.Person
	if err := s.client.get(ctx, "/people", nil, &people); err != nil {
		return nil, err
	}
	return people, nil
}

func (s *PeopleService) Get(ctx context.Context, id string) (*domain.Person, error) {
	var person domain.Person
	if err := s.client.get(ctx, fmt.Sprintf("/people/%s", id), nil, &person); err != nil {
		return nil, err
	}
	return &person, nil
}

// GetByUser returns the profile owned by a user account.
func (s *PeopleService) GetByUser(ctx context.Context, userID string) (*domain.Person, error) {
	var person domain.Person
	if err := s.client.get(ctx, fmt.Sprintf("/people/user/%s", userID), nil, &person); err != nil {
		return nil, err
	}
	return &person, nil
}

func (s *PeopleService) Update(ctx context.Context, id string, input PersonInput) (*domain.Person, error) {
	var person domain.Person
	if err := s.client.put(ctx, fmt.Sprintf("/people/%s", id), input, &person); err != nil {
		return nil, err
	}
	return &person, nil
}

// UploadProfileImage replaces the profile picture for a person record.
func (s *PeopleService) UploadProfileImage(ctx context.Context, id, filename string, content []byte) (*domain.Person, error) {
	var person domain.Person
	err := s.client.upload(ctx, fmt.Sprintf("/uploads/profile/%s", id), "file", filename, content, &person)
	if err != nil {
		return nil, err
	}
	return &person, nil
}
