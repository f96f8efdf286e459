package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded payload of a TestFlow access token.
//
// The frontend never holds the signing secret, so the payload is decoded
// without signature verification; the upstream API remains the authority on
// token validity. Claims are used only to pre-populate the session and to
// decide whether a refresh is worth attempting.
type Claims struct {
	UserID    string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// wireClaims matches the access token payload on the wire. The subject claim
// doubles as the user id when the dedicated field is absent.
type wireClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Parse decodes the middle segment of a three-part JWT into Claims. It
// returns an error for empty input, a wrong segment count, invalid base64 or
// invalid JSON; it never panics.
func Parse(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}

	var wire wireClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	claims := &Claims{
		UserID: wire.UserID,
		Email:  wire.Email,
	}
	if claims.UserID == "" {
		claims.UserID = wire.Subject
	}
	if wire.IssuedAt != nil {
		claims.IssuedAt = wire.IssuedAt.Time
	}
	if wire.ExpiresAt != nil {
		claims.ExpiresAt = wire.ExpiresAt.Time
	}

	return claims, nil
}

// IsExpired checks if the token is expired. A token without an expiry claim
// counts as expired.
func (c Claims) IsExpired() bool {
	if c.ExpiresAt.IsZero() {
		return true
	}
	return !time.Now().Before(c.ExpiresAt)
}

// Expired reports whether token is absent, unparsable or past its expiry.
func Expired(token string) bool {
	claims, err := Parse(token)
	if err != nil {
		return true
	}
	return claims.IsExpired()
}
