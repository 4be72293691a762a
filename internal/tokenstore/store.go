// Package tokenstore persists the admin session token and the minimal user
// identity (email, partner).
//
// Every operation is best-effort: storage failures are logged and swallowed.
// Reads then report nothing stored and writes become no-ops, so a broken
// backend degrades to an unauthenticated session instead of an error.
package tokenstore

import (
	"encoding/json"
	"log/slog"
	"strings"

	"margem/internal/platform/config"
)

const bearerPrefix = "Bearer "

// User is the identity persisted next to the token.
type User struct {
	Email   string `json:"email"`
	Partner string `json:"partner"`
}

// Store reads and writes the persisted token record.
type Store struct {
	kv       KeyValueStore
	tokenKey string
	userKey  string
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for swallowed storage failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTokenKey overrides the storage key for the token.
func WithTokenKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.tokenKey = key
		}
	}
}

// New creates a Store on top of kv.
func New(kv KeyValueStore, opts ...Option) *Store {
	s := &Store{
		kv:       kv,
		tokenKey: config.DefaultTokenStorageKey,
		userKey:  config.UserStorageKey,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Store) SetToken(token string) {
	if err := s.kv.Set(s.tokenKey, token); err != nil {
		s.logger.Error("failed to store token", "error", err)
	}
}

// GetToken returns the stored token, if any.
func (s *Store) GetToken() (string, bool) {
	token, ok, err := s.kv.Get(s.tokenKey)
	if err != nil {
		s.logger.Error("failed to retrieve token", "error", err)
		return "", false
	}
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func (s *Store) ClearToken() {
	if err := s.kv.Remove(s.tokenKey); err != nil {
		s.logger.Error("failed to clear token", "error", err)
	}
}

func (s *Store) SetUser(user User) {
	raw, err := json.Marshal(user)
	if err != nil {
		s.logger.Error("failed to encode user", "error", err)
		return
	}
	if err := s.kv.Set(s.userKey, string(raw)); err != nil {
		s.logger.Error("failed to store user", "error", err)
	}
}

// GetUser returns the stored identity or nil. A corrupt record reads as nil.
func (s *Store) GetUser() *User {
	raw, ok, err := s.kv.Get(s.userKey)
	if err != nil {
		s.logger.Error("failed to retrieve user", "error", err)
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.logger.Error("failed to decode stored user", "error", err)
		return nil
	}
	return &user
}

func (s *Store) GetUserEmail() string {
	if u := s.GetUser(); u != nil {
		return u.Email
	}
	return ""
}

func (s *Store) GetUserPartner() string {
	if u := s.GetUser(); u != nil {
		return u.Partner
	}
	return ""
}

func (s *Store) ClearUser() {
	if err := s.kv.Remove(s.userKey); err != nil {
		s.logger.Error("failed to clear user", "error", err)
	}
}

// IsAuthenticated reports whether a token is stored. It does not check expiry.
func (s *Store) IsAuthenticated() bool {
	_, ok := s.GetToken()
	return ok
}

// SetAuthSession writes token and user together.
func (s *Store) SetAuthSession(token string, user User) {
	s.SetToken(token)
	s.SetUser(user)
}

// ClearAuthData removes token and user.
func (s *Store) ClearAuthData() {
	s.ClearToken()
	s.ClearUser()
}

// AuthHeader returns the Authorization header value for the stored token,
// or "" when none is stored.
func (s *Store) AuthHeader() string {
	token, ok := s.GetToken()
	if !ok {
		return ""
	}
	return BearerValue(token)
}

// BearerValue prefixes token with "Bearer " unless it already carries it.
func BearerValue(token string) string {
	if strings.HasPrefix(token, bearerPrefix) {
		return token
	}
	return bearerPrefix + token
}
