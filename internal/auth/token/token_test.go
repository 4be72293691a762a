package token

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestIsExpired(t *testing.T) {
	t.Run("exp well in the future is valid", func(t *testing.T) {
		tok := sign(t, jwt.MapClaims{"email": "a@x.com", "exp": now.Add(time.Hour).Unix()})
		assert.False(t, IsExpired(tok, now))
	})

	t.Run("exp inside the five minute buffer is expired", func(t *testing.T) {
		tok := sign(t, jwt.MapClaims{"exp": now.Add(4 * time.Minute).Unix()})
		assert.True(t, IsExpired(tok, now))
	})

	t.Run("exp just past the buffer is valid", func(t *testing.T) {
		tok := sign(t, jwt.MapClaims{"exp": now.Add(5*time.Minute + time.Second).Unix()})
		assert.False(t, IsExpired(tok, now))
	})

	t.Run("exp in the past is expired", func(t *testing.T) {
		tok := sign(t, jwt.MapClaims{"exp": now.Add(-time.Hour).Unix()})
		assert.True(t, IsExpired(tok, now))
	})

	t.Run("no exp never expires", func(t *testing.T) {
		tok := sign(t, jwt.MapClaims{"email": "a@x.com"})
		assert.False(t, IsExpired(tok, now))
		assert.False(t, IsExpired(tok, now.AddDate(50, 0, 0)))
	})

	t.Run("bearer prefix is tolerated", func(t *testing.T) {
		tok := sign(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()})
		assert.False(t, IsExpired("Bearer "+tok, now))
	})

	t.Run("wrong segment count is expired", func(t *testing.T) {
		assert.True(t, IsExpired("abc123", now))
		assert.True(t, IsExpired("a.b", now))
		assert.True(t, IsExpired("a.b.c.d", now))
	})

	t.Run("non-JSON payload is expired", func(t *testing.T) {
		header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
		payload := base64.RawURLEncoding.EncodeToString([]byte("not json"))
		assert.True(t, IsExpired(header+"."+payload+".sig", now))
	})
}

func TestDecode(t *testing.T) {
	iat := now.Add(-time.Minute)
	tok := sign(t, jwt.MapClaims{
		"id":      "42",
		"email":   "a@x.com",
		"partner": "p1",
		"iat":     iat.Unix(),
		"exp":     now.Add(time.Hour).Unix(),
	})

	c, err := Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, "42", c.ID)
	assert.Equal(t, "a@x.com", c.Email)
	assert.Equal(t, "p1", c.Partner)
	require.NotNil(t, c.IssuedAt)
	assert.Equal(t, iat.Unix(), c.IssuedAt.Unix())
	require.NotNil(t, c.ExpiresAt)

	_, err = Decode("garbage")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestExpiresIn(t *testing.T) {
	tok := sign(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()})
	left, ok := ExpiresIn(tok, now)
	assert.True(t, ok)
	assert.Equal(t, time.Hour, left)

	_, ok = ExpiresIn(sign(t, jwt.MapClaims{}), now)
	assert.False(t, ok)

	_, ok = ExpiresIn(sign(t, jwt.MapClaims{"exp": now.Add(-time.Second).Unix()}), now)
	assert.False(t, ok)
}
