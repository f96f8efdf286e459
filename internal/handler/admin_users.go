package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/testflow-app/testflow-web/internal/domain"
	"github.com/testflow-app/testflow-web/internal/telemetry"
	"github.com/testflow-app/testflow-web/internal/upstream"
	"github.com/testflow-app/testflow-web/internal/utils"
)

// AdminUsersHandler serves the user, role and profile administration pages.
type AdminUsersHandler struct {
	users   *upstream.UsersService
	roles   *upstream.RolesService
	people  *upstream.PeopleService
	tracker telemetry.Tracker
	logger  *zap.Logger
}

// NewAdminUsersHandler creates a new admin users handler
func NewAdminUsersHandler(users *upstream.UsersService, roles *upstream.RolesService, people *upstream.PeopleService, tracker telemetry.Tracker, logger *zap.Logger) *AdminUsersHandler {
	return &AdminUsersHandler{
		users:   users,
		roles:   roles,
		people:  people,
		tracker: tracker,
		logger:  logger,
	}
}

type adminUsersView struct {
	Users     []domain.User
	LoadError string
}

// List renders the user table.
func (h *AdminUsersHandler) List(c *gin.Context) {
	h.tracker.PageView("/admin/users")

	data := adminUsersView{}
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		h.logger.Warn("admin users fetch failed", zap.Error(err))
		data.LoadError = "Users could not be loaded."
	} else {
		data.Users = users
	}

	c.HTML(http.StatusOK, "admin_users.tmpl", view(c, "Users", data))
}

// Create handles the new-user form post.
func (h *AdminUsersHandler) Create(c *gin.Context) {
	email := utils.SanitizeEmail(c.PostForm("email"))
	if !utils.ValidateEmail(email) {
		redirectWithError(c, "/admin/users", "Enter a valid email address.")
		return
	}

	input := upstream.UserInput{
		Email:    email,
		Name:     c.PostForm("name"),
		Password: c.PostForm("password"),
		IsActive: c.PostForm("isActive") == "on",
	}

	_, err := h.users.Create(c.Request.Context(), input)
	h.tracker.FormSubmit("admin_user_create", err == nil)
	if err != nil {
		redirectWithError(c, "/admin/users", formMessage(err, "The user could not be created."))
		return
	}
	redirectWithNotice(c, "/admin/users", "User created.")
}

// Update handles the edit-user form post.
func (h *AdminUsersHandler) Update(c *gin.Context) {
	id := c.Param("id")
	input := upstream.UserInput{
		Email:    utils.SanitizeEmail(c.PostForm("email")),
		Name:     c.PostForm("name"),
		IsActive: c.PostForm("isActive") == "on",
	}

	_, err := h.users.Update(c.Request.Context(), id, input)
	h.tracker.FormSubmit("admin_user_update", err == nil)
	if err != nil {
		redirectWithError(c, "/admin/users/"+id, formMessage(err, "The user could not be updated."))
		return
	}
	redirectWithNotice(c, "/admin/users/"+id, "User updated.")
}

// Delete handles the delete-user form post.
func (h *AdminUsersHandler) Delete(c *gin.Context) {
	err := h.users.Delete(c.Request.Context(), c.Param("id"))
	h.tracker.FormSubmit("admin_user_delete", err == nil)
	if err != nil {
		redirectWithError(c, "/admin/users", formMessage(err, "The user could not be deleted."))
		return
	}
	redirectWithNotice(c, "/admin/users", "User deleted.")
}

type adminUserDetailView struct {
	User        *domain.User
	Assignments []domain.UserRole
	Roles       []domain.Role
	RoleNames   map[string]string
	LoadError   string
}

// Detail renders one user with their role assignments.
func (h *AdminUsersHandler) Detail(c *gin.Context) {
	h.tracker.PageView("/admin/users/:id")
	ctx := c.Request.Context()
	id := c.Param("id")

	data := adminUserDetailView{}
	user, err := h.users.Get(ctx, id)
	if err != nil {
		h.logger.Warn("admin user fetch failed", zap.Error(err), zap.String("user_id", id))
		data.LoadError = "The user could not be loaded."
		c.HTML(http.StatusOK, "admin_user_detail.tmpl", view(c, "User", data))
		return
	}
	data.User = user

	// Role data is decoration on this page; the user renders without it.
	if assignments, err := h.roles.UserRoles(ctx, id); err == nil {
		data.Assignments = assignments
	}
	if roles, err := h.roles.List(ctx); err == nil {
		data.Roles = roles
		data.RoleNames = make(map[string]string, len(roles))
		for _, role := range roles {
			data.RoleNames[role.ID] = role.Name
		}
	}

	c.HTML(http.StatusOK, "admin_user_detail.tmpl", view(c, "User", data))
}

// AssignRole handles the grant-role form post on the user detail page.
func (h *AdminUsersHandler) AssignRole(c *gin.Context) {
	userID := c.Param("id")
	roleID := c.PostForm("roleId")

	_, err := h.roles.AssignRole(c.Request.Context(), userID, roleID)
	h.tracker.FormSubmit("admin_assign_role", err == nil)
	if err != nil {
		redirectWithError(c, "/admin/users/"+userID, formMessage(err, "The role could not be assigned."))
		return
	}
	redirectWithNotice(c, "/admin/users/"+userID, "Role assigned.")
}

// RemoveRole handles the revoke-role form post on the user detail page.
func (h *AdminUsersHandler) RemoveRole(c *gin.Context) {
	userID := c.PostForm("userId")

	err := h.roles.RemoveRole(c.Request.Context(), c.Param("id"))
	h.tracker.FormSubmit("admin_remove_role", err == nil)
	if err != nil {
		redirectWithError(c, "/admin/users/"+userID, formMessage(err, "The role could not be removed."))
		return
	}
	redirectWithNotice(c, "/admin/users/"+userID, "Role removed.")
}

type adminPeopleView struct {
	People    []domain.Person
	LoadError string
}

// People renders the profile table.
func (h *AdminUsersHandler) People(c *gin.Context) {
	h.tracker.PageView("/admin/people")

	data := adminPeopleView{}
	people, err := h.people.List(c.Request.Context())
	if err != nil {
		h.logger.Warn("admin people fetch failed", zap.Error(err))
		data.LoadError = "Profiles could not be loaded."
	} else {
		data.People = people
	}

	c.HTML(http.StatusOK, "admin_people.tmpl", view(c, "People", data))
}

type adminPersonDetailView struct {
	Person    *domain.Person
	LoadError string
}

// Person renders one profile record.
func (h *AdminUsersHandler) Person(c *gin.Context) {
	h.tracker.PageView("/admin/people/:id")
	id := c.Param("id")

	data := adminPersonDetailView{}
	person, err := h.people.Get(c.Request.Context(), id)
	if err != nil {
		h.logger.Warn("admin person fetch failed", zap.Error(err), zap.String("person_id", id))
		data.LoadError = "The profile could not be loaded."
	} else {
		data.Person = person
	}

	c.HTML(http.StatusOK, "admin_person_detail.tmpl", view(c, "Profile", data))
}

type adminRolesView struct {
	Roles     []domain.Role
	LoadError string
}

// Roles renders the role table.
func (h *AdminUsersHandler) Roles(c *gin.Context) {
	h.tracker.PageView("/admin/roles")

	data := adminRolesView{}
	roles, err := h.roles.List(c.Request.Context())
	if err != nil {
		h.logger.Warn("admin roles fetch failed", zap.Error(err))
		data.LoadError = "Roles could not be loaded."
	} else {
		data.Roles = roles
	}

	c.HTML(http.StatusOK, "admin_roles.tmpl", view(c, "Roles", data))
}

// CreateRole handles the new-role form post.
func (h *AdminUsersHandler) CreateRole(c *gin.Context) {
	input := upstream.RoleInput{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		IsActive:    c.PostForm("isActive") == "on",
	}
	if input.Name == "" {
		redirectWithError(c, "/admin/roles", "Role name is required.")
		return
	}

	_, err := h.roles.Create(c.Request.Context(), input)
	h.tracker.FormSubmit("admin_role_create", err == nil)
	if err != nil {
		redirectWithError(c, "/admin/roles", formMessage(err, "The role could not be created."))
		return
	}
	redirectWithNotice(c, "/admin/roles", "Role created.")
}

// UpdateRole handles the edit-role form post.
func (h *AdminUsersHandler) UpdateRole(c *gin.Context) {
	input := upstream.RoleInput{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		IsActive:    c.PostForm("isActive") == "on",
	}

	_, err := h.roles.Update(c.Request.Context(), c.Param("id"), input)
	h.tracker.FormSubmit("admin_role_update", err == nil)
	if err != nil {
		redirectWithError(c, "/admin/roles", formMessage(err, "The role could not be updated."))
		return
	}
	redirectWithNotice(c, "/admin/roles", "Role updated.")
}

// DeleteRole handles the delete-role form post.
func (h *AdminUsersHandler) DeleteRole(c *gin.Context) {
	err := h.roles.Delete(c.Request.Context(), c.Param("id"))
	h.tracker.FormSubmit("admin_role_delete", err == nil)
	if err != nil {
		redirectWithError(c, "/admin/roles", formMessage(err, "The role could not be deleted."))
		return
	}
	redirectWithNotice(c, "/admin/roles", "Role deleted.")
}
