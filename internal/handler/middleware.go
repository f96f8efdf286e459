package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/testflow-app/testflow-web/internal/session"
	"github.com/testflow-app/testflow-web/internal/token"
)

const sessionKey = "session"

// SessionMiddleware binds the configured token backend to the request and
// bootstraps the session snapshot from any stored access token. Handlers and
// the upstream client both reach the token store through the request context.
func SessionMiddleware(provider token.Provider, manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := provider.ForRequest(c.Writer, c.Request)
		ctx := token.NewContext(c.Request.Context(), store)
		c.Request = c.Request.WithContext(ctx)

		c.Set(sessionKey, manager.Bootstrap(ctx))
		c.Next()
	}
}

// RequireAuth redirects anonymous visitors to the login page, remembering
// where they were headed.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentSession(c).Authenticated {
			c.Redirect(http.StatusSeeOther, "/login?next="+c.Request.URL.Path)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentSession returns the session snapshot resolved by SessionMiddleware.
func CurrentSession(c *gin.Context) session.Session {
	if v, ok := c.Get(sessionKey); ok {
		if sess, ok := v.(session.Session); ok {
			return sess
		}
	}
	return session.Session{}
}

// setSession replaces the snapshot after a login/logout within this request.
func setSession(c *gin.Context, sess session.Session) {
	c.Set(sessionKey, sess)
}
