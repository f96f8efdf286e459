package handler

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

// view assembles the data every template expects: the session snapshot plus
// banner messages carried across redirects as query parameters.
func view(c *gin.Context, title string, data any) gin.H {
	return gin.H{
		"Title":   title,
		"Session": CurrentSession(c),
		"Error":   c.Query("error"),
		"Notice":  c.Query("notice"),
		"Data":    data,
	}
}

func redirectWithError(c *gin.Context, path, message string) {
	c.Redirect(http.StatusSeeOther, path+"?error="+url.QueryEscape(message))
}

func redirectWithNotice(c *gin.Context, path, message string) {
	c.Redirect(http.StatusSeeOther, path+"?notice="+url.QueryEscape(message))
}
