package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/testflow-app/testflow-web/internal/domain"
	"github.com/testflow-app/testflow-web/internal/session"
	"github.com/testflow-app/testflow-web/internal/telemetry"
	"github.com/testflow-app/testflow-web/internal/upstream"
	"github.com/testflow-app/testflow-web/internal/utils"
)

// Profile pictures above this size are rejected before they hit the upstream.
const maxAvatarBytes = 5 << 20

// ProfileHandler serves the profile page: personal details, avatar upload
// and password change.
type ProfileHandler struct {
	people   *upstream.PeopleService
	sessions *session.Manager
	tracker  telemetry.Tracker
	logger   *zap.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(people *upstream.PeopleService, sessions *session.Manager, tracker telemetry.Tracker, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		people:   people,
		sessions: sessions,
		tracker:  tracker,
		logger:   logger,
	}
}

type profileView struct {
	Person    *domain.Person
	LoadError string
}

// Show renders the profile page.
func (h *ProfileHandler) Show(c *gin.Context) {
	h.tracker.PageView("/profile")

	data := profileView{}
	person, err := h.people.GetByUser(c.Request.Context(), CurrentSession(c).User.ID)
	if err != nil {
		h.logger.Warn("profile fetch failed", zap.Error(err))
		data.LoadError = "Your profile could not be loaded."
	} else {
		data.Person = person
	}

	c.HTML(http.StatusOK, "profile.tmpl", view(c, "Profile", data))
}

// Update handles the profile details form post.
func (h *ProfileHandler) Update(c *gin.Context) {
	personID := c.PostForm("personId")
	if personID == "" {
		redirectWithError(c, "/profile", "Your profile could not be updated.")
		return
	}

	input := upstream.PersonInput{
		FirstName: c.PostForm("firstName"),
		LastName:  c.PostForm("lastName"),
		Email:     utils.SanitizeEmail(c.PostForm("email")),
	}

	_, err := h.people.Update(c.Request.Context(), personID, input)
	h.tracker.FormSubmit("profile_update", err == nil)
	if err != nil {
		redirectWithError(c, "/profile", formMessage(err, "Your profile could not be updated."))
		return
	}
	redirectWithNotice(c, "/profile", "Profile updated.")
}

// UploadAvatar handles the profile picture form post.
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	personID := c.PostForm("personId")
	file, err := c.FormFile("avatar")
	if personID == "" || err != nil {
		redirectWithError(c, "/profile", "Choose an image to upload.")
		return
	}
	if file.Size > maxAvatarBytes {
		redirectWithError(c, "/profile", "Profile pictures are limited to 5 MB.")
		return
	}

	src, err := file.Open()
	if err != nil {
		redirectWithError(c, "/profile", "The image could not be read.")
		return
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		redirectWithError(c, "/profile", "The image could not be read.")
		return
	}

	_, err = h.people.UploadProfileImage(c.Request.Context(), personID, file.Filename, content)
	h.tracker.FormSubmit("profile_avatar", err == nil)
	if err != nil {
		redirectWithError(c, "/profile", formMessage(err, "The image could not be uploaded."))
		return
	}
	redirectWithNotice(c, "/profile", "Profile picture updated.")
}

// ChangePassword handles the password change form post.
func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	current := c.PostForm("currentPassword")
	next := c.PostForm("newPassword")

	if !utils.ValidatePassword(next) {
		redirectWithError(c, "/profile", "New password must be at least 8 characters with an uppercase letter, a lowercase letter and a number.")
		return
	}

	ok, message := h.sessions.ChangePassword(c.Request.Context(), current, next)
	h.tracker.FormSubmit("change_password", ok)
	if !ok {
		redirectWithError(c, "/profile", message)
		return
	}
	redirectWithNotice(c, "/profile", "Password changed.")
}

// formMessage prefers the upstream's message over the fallback for errors a
// user can act on; everything else gets the fallback.
func formMessage(err error, fallback string) string {
	if apiErr, ok := upstream.AsAPIError(err); ok && apiErr.StatusCode < http.StatusInternalServerError {
		return apiErr.Message
	}
	return fallback
}
