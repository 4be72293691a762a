// Package token inspects admin session tokens on the client side.
//
// Nothing here verifies signatures: the client only needs the claims to decide
// whether a stored token is still worth sending.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiryBuffer is how long before exp a token is already treated as expired.
const ExpiryBuffer = 5 * time.Minute

// ErrMalformed is returned for tokens that cannot be decoded.
var ErrMalformed = errors.New("malformed token")

// Claims is the subset of the admin token payload the client reads.
type Claims struct {
	ID       string
	Email    string
	Partner  string
	IssuedAt *time.Time
	// ExpiresAt is nil when the token has no exp claim.
	ExpiresAt *time.Time
}

// Decode parses the payload of token without verifying it. A leading
// "Bearer " is ignored.
func Decode(raw string) (*Claims, error) {
	raw = strings.TrimPrefix(raw, "Bearer ")
	if strings.Count(raw, ".") != 2 {
		return nil, fmt.Errorf("%w: expected 3 segments", ErrMalformed)
	}

	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, mc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	exp, err := mc.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: exp: %v", ErrMalformed, err)
	}
	iat, err := mc.GetIssuedAt()
	if err != nil {
		return nil, fmt.Errorf("%w: iat: %v", ErrMalformed, err)
	}

	c := &Claims{
		ID:      stringClaim(mc, "id"),
		Email:   stringClaim(mc, "email"),
		Partner: stringClaim(mc, "partner"),
	}
	if c.ID == "" {
		c.ID = stringClaim(mc, "sub")
	}
	// exp: 0 is treated like a missing claim.
	if exp != nil && !exp.Time.Equal(time.Unix(0, 0)) {
		t := exp.Time
		c.ExpiresAt = &t
	}
	if iat != nil {
		t := iat.Time
		c.IssuedAt = &t
	}
	return c, nil
}

// IsExpired reports whether token should no longer be used at now.
// Tokens without exp never expire; undecodable tokens are always expired.
func IsExpired(raw string, now time.Time) bool {
	c, err := Decode(raw)
	if err != nil {
		return true
	}
	if c.ExpiresAt == nil {
		return false
	}
	return now.Add(ExpiryBuffer).After(*c.ExpiresAt)
}

// ExpiresIn returns the time left before exp. ok is false for tokens without
// exp, undecodable tokens and tokens already past exp.
func ExpiresIn(raw string, now time.Time) (time.Duration, bool) {
	c, err := Decode(raw)
	if err != nil || c.ExpiresAt == nil {
		return 0, false
	}
	left := c.ExpiresAt.Sub(now)
	if left <= 0 {
		return 0, false
	}
	return left, true
}

func stringClaim(mc jwt.MapClaims, key string) string {
	switch v := mc[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}
