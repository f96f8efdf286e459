package upstream

import (
	"context"
	"fmt"

	"github.com/testflow-app/testflow-web/internal/domain"
)

// StudyGoalsService wraps the /study-goals resource.
type StudyGoalsService struct {
	client *Client
}

// NewStudyGoalsService creates a study goals service on top of client.
func NewStudyGoalsService(client *Client) *StudyGoalsService {
	return &StudyGoalsService{client: client}
}

// StudyGoalInput is the create/update payload for a study goal.
type StudyGoalInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CategoryID  string `json:"categoryId,omitempty"`
	IsActive    bool   `json:"isActive"`
}

func (s *StudyGoalsService) List(ctx context.Context) ([]domain.StudyGoal, error) {
	var goals []domain.StudyGoal
	if err := s.client.get(ctx, "/study-goals", nil, &goals); err != nil {
		return nil, err
	}
	return goals, nil
}

// ListOwn returns the study goals belonging to the calling user.
func (s *StudyGoalsService) ListOwn(ctx context.Context) ([]domain.StudyGoal, error) {
	var goals []domain.StudyGoal
	if err := s.client.get(ctx, "/study-goals/user/goals", nil, &goals); err != nil {
		return nil, err
	}
	return goals, nil
}

func (s *StudyGoalsService) Get(ctx context.Context, id string) (*domain.StudyGoal, error) {
	var goal domain.StudyGoal
	if err := s.client.get(ctx, fmt.Sprintf("/study-goals/%s", id), nil, &goal); err != nil {
		return nil, err
	}
	return &goal, nil
}

func (s *StudyGoalsService) Create(ctx context.Context, input StudyGoalInput) (*domain.StudyGoal, error) {
	var goal domain.StudyGoal
	if err := s.client.post(ctx, "/study-goals", input, &goal); err != nil {
		return nil, err
	}
	return &goal, nil
}

func (s *StudyGoalsService) Update(ctx context.Context, id string, input StudyGoalInput) (*domain.StudyGoal, error) {
	var goal domain.StudyGoal
	if err := s.client.put(ctx, fmt.Sprintf("/study-goals/%s", id), input, &goal); err != nil {
		return nil, err
	}
	return &goal, nil
}

func (s *StudyGoalsService) Delete(ctx context.Context, id string) error {
	return s.client.delete(ctx, fmt.Sprintf("/study-goals/%s", id))
}
