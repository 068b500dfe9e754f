package remote

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrCredentialsExpired is returned before any request is made when the
// bearer token is a JWT whose exp claim has passed.
var ErrCredentialsExpired = errors.New("credentials expired")

// Credentials authenticate calls to the attempt service. Token issuance is
// handled elsewhere; the client only attaches and sanity-checks it.
type Credentials struct {
	Token string
}

// Check rejects an expired JWT. Opaque (non-JWT) tokens and an empty token
// pass; the server is the authority on both.
func (c Credentials) Check(now time.Time) error {
	if c.Token == "" {
		return nil
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.Token, &claims); err != nil {
		return nil
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return ErrCredentialsExpired
	}
	return nil
}

// Subject returns the JWT subject claim, empty for opaque tokens.
func (c Credentials) Subject() string {
	if c.Token == "" {
		return ""
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.Token, &claims); err != nil {
		return ""
	}
	return claims.Subject
}
