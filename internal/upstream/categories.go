package upstream

import (
	"context"
	"fmt"

	"github.com/testflow-app/testflow-web/internal/domain"
)

// CategoriesService wraps the /categories resource.
type CategoriesService struct {
	client *Client
}

// NewCategoriesService creates a categories service on top of client.
func NewCategoriesService(client *Client) *CategoriesService {
	return &CategoriesService{client: client}
}

// CategoryInput is the create/update payload for a category.
type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    bool   `json:"isActive"`
}

func (s *CategoriesService) List(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	if err := s.client.get(ctx, "/categories", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *CategoriesService) Get(ctx context.Context, id string) (*domain.Category, error) {
	var category domain.Category
	if err := s.client.get(ctx, fmt.Sprintf("/categories/%s", id), nil, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *CategoriesService) Create(ctx context.Context, input CategoryInput) (*domain.Category, error) {
	var category domain.Category
	if err := s.client.post(ctx, "/categories", input, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *CategoriesService) Update(ctx context.Context, id string, input CategoryInput) (*domain.Category, error) {
	var category domain.Category
	if err := s.client.put(ctx, fmt.Sprintf("/categories/%s", id), input, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *CategoriesService) Delete(ctx context.Context, id string) error {
	return s.client.delete(ctx, fmt.Sprintf("/categories/%s", id))
}
