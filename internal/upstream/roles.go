package upstream

import (
	"context"
	"fmt"

	"github.com/testflow-app/testflow-web/internal/domain"
)

// RolesService wraps the /roles and /user-roles resources.
type RolesService struct {
	client *Client
}

// NewRolesService creates a roles service on top of client.
func NewRolesService(client *Client) *RolesService {
	return &RolesService{client: client}
}

// RoleInput is the create/update payload for a role.
type RoleInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    bool   `json:"isActive"`
}

func (s *RolesService) List(ctx context.Context) ([]domain.Role, error) {
	var roles []domain.Role
	if err := s.client.get(ctx, "/roles", nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *RolesService) Get(ctx context.Context, id string) (*domain.Role, error) {
	var role domain.Role
	if err := s.client.get(ctx, fmt.Sprintf("/roles/%s", id), nil, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *RolesService) Create(ctx context.Context, input RoleInput) (*domain.Role, error) {
	var role domain.Role
	if err := s.client.post(ctx, "/roles", input, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *RolesService) Update(ctx context.Context, id string, input RoleInput) (*domain.Role, error) {
	var role domain.Role
	if err := s.client.put(ctx, fmt.Sprintf("/roles/%s", id), input, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *RolesService) Delete(ctx context.Context, id string) error {
	return s.client.delete(ctx, fmt.Sprintf("/roles/%s", id))
}

// UserRoles lists the role assignments of one user.
func (s *RolesService) UserRoles(ctx context.Context, userID string) ([]domain.UserRole, error) {
	var assignments []domain.UserRole
	if err := s.client.get(ctx, fmt.Sprintf("/user-roles/%s", userID), nil, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

// AssignRole grants a role to a user.
func (s *RolesService) AssignRole(ctx context.Context, userID, roleID string) (*domain.UserRole, error) {
	var assignment domain.UserRole
	err := s.client.post(ctx, "/user-roles", map[string]string{
		"userId": userID,
		"roleId": roleID,
	}, &assignment)
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// RemoveRole revokes a role assignment.
func (s *RolesService) RemoveRole(ctx context.Context, assignmentID string) error {
	return s.client.delete(ctx, fmt.Sprintf("/user-roles/%s", assignmentID))
}
