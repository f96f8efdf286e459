package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is the single normalized error shape for non-2xx upstream
// responses. It carries the server-provided message when one was present.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Message)
}

// AsAPIError unwraps err into an *APIError when possible.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.StatusCode == status
}

// IsUnauthorized reports whether err is a 401 from the upstream, after any
// refresh attempt has already been spent.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}
