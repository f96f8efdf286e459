package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/testflow-app/testflow-web/internal/session"
	"github.com/testflow-app/testflow-web/internal/telemetry"
	"github.com/testflow-app/testflow-web/internal/utils"
)

// AuthHandler serves the login, registration and password recovery pages.
type AuthHandler struct {
	sessions *session.Manager
	tracker  telemetry.Tracker
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(sessions *session.Manager, tracker telemetry.Tracker) *AuthHandler {
	return &AuthHandler{sessions: sessions, tracker: tracker}
}

type loginForm struct {
	Email string
	Next  string
}

// LoginPage renders the login form.
func (h *AuthHandler) LoginPage(c *gin.Context) {
	if CurrentSession(c).Authenticated {
		c.Redirect(http.StatusSeeOther, "/dashboard")
		return
	}
	h.tracker.PageView("/login")
	c.HTML(http.StatusOK, "login.tmpl", view(c, "Sign in", loginForm{Next: c.Query("next")}))
}

// Login handles the login form post.
func (h *AuthHandler) Login(c *gin.Context) {
	email := utils.SanitizeEmail(c.PostForm("email"))
	password := c.PostForm("password")
	next := c.PostForm("next")

	renderError := func(message string) {
		h.tracker.FormSubmit("login", false)
		data := view(c, "Sign in", loginForm{Email: email, Next: next})
		data["Error"] = message
		c.HTML(http.StatusOK, "login.tmpl", data)
	}

	if !utils.ValidateEmail(email) || password == "" {
		renderError("Enter your email address and password.")
		return
	}

	sess := h.sessions.Login(c.Request.Context(), email, password)
	setSession(c, sess)
	if !sess.Authenticated {
		renderError(sess.Err)
		return
	}

	h.tracker.FormSubmit("login", true)
	c.Redirect(http.StatusSeeOther, safeNext(next))
}

type registerForm struct {
	Name  string
	Email string
}

// RegisterPage renders the registration form.
func (h *AuthHandler) RegisterPage(c *gin.Context) {
	if CurrentSession(c).Authenticated {
		c.Redirect(http.StatusSeeOther, "/dashboard")
		return
	}
	h.tracker.PageView("/register")
	c.HTML(http.StatusOK, "register.tmpl", view(c, "Create account", registerForm{}))
}

// Register handles the registration form post.
func (h *AuthHandler) Register(c *gin.Context) {
	name := strings.TrimSpace(c.PostForm("name"))
	email := utils.SanitizeEmail(c.PostForm("email"))
	password := c.PostForm("password")

	renderError := func(message string) {
		h.tracker.FormSubmit("register", false)
		data := view(c, "Create account", registerForm{Name: name, Email: email})
		data["Error"] = message
		c.HTML(http.StatusOK, "register.tmpl", data)
	}

	if !utils.ValidateEmail(email) {
		renderError("Enter a valid email address.")
		return
	}
	if !utils.ValidatePassword(password) {
		renderError("Password must be at least 8 characters with an uppercase letter, a lowercase letter and a number.")
		return
	}

	sess := h.sessions.Register(c.Request.Context(), name, email, password)
	setSession(c, sess)
	if !sess.Authenticated {
		renderError(sess.Err)
		return
	}

	h.tracker.FormSubmit("register", true)
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

// Logout drops the session and returns to the home page.
func (h *AuthHandler) Logout(c *gin.Context) {
	setSession(c, h.sessions.Logout(c.Request.Context()))
	c.Redirect(http.StatusSeeOther, "/")
}

// ForgotPasswordPage renders the reset-request form.
func (h *AuthHandler) ForgotPasswordPage(c *gin.Context) {
	h.tracker.PageView("/forgot-password")
	c.HTML(http.StatusOK, "forgot_password.tmpl", view(c, "Forgot password", nil))
}

// ForgotPassword handles the reset-request form post.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	email := utils.SanitizeEmail(c.PostForm("email"))
	if !utils.ValidateEmail(email) {
		h.tracker.FormSubmit("forgot_password", false)
		data := view(c, "Forgot password", nil)
		data["Error"] = "Enter a valid email address."
		c.HTML(http.StatusOK, "forgot_password.tmpl", data)
		return
	}

	ok, message := h.sessions.RequestPasswordReset(c.Request.Context(), email)
	h.tracker.FormSubmit("forgot_password", ok)

	data := view(c, "Forgot password", nil)
	if ok {
		data["Notice"] = "If that address has an account, a reset link is on its way."
	} else {
		data["Error"] = message
	}
	c.HTML(http.StatusOK, "forgot_password.tmpl", data)
}

// ResetPasswordPage renders the new-password form for a mailed reset token.
func (h *AuthHandler) ResetPasswordPage(c *gin.Context) {
	h.tracker.PageView("/reset-password")
	c.HTML(http.StatusOK, "reset_password.tmpl", view(c, "Reset password", c.Query("token")))
}

// ResetPassword handles the new-password form post.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	resetToken := c.PostForm("token")
	password := c.PostForm("password")

	renderError := func(message string) {
		h.tracker.FormSubmit("reset_password", false)
		data := view(c, "Reset password", resetToken)
		data["Error"] = message
		c.HTML(http.StatusOK, "reset_password.tmpl", data)
	}

	if resetToken == "" {
		renderError("This reset link is invalid. Request a new one.")
		return
	}
	if !utils.ValidatePassword(password) {
		renderError("Password must be at least 8 characters with an uppercase letter, a lowercase letter and a number.")
		return
	}

	ok, message := h.sessions.ResetPassword(c.Request.Context(), resetToken, password)
	if !ok {
		renderError(message)
		return
	}

	h.tracker.FormSubmit("reset_password", true)
	redirectWithNotice(c, "/login", "Password updated. Sign in with your new password.")
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/dashboard"
	}
	return next
}
