// Package auth talks to the admin API authentication endpoints.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"margem/internal/apierror"
)

// Endpoint paths relative to the API base.
const (
	LoginPath    = "/login"
	LogoutPath   = "/logout"
	validatePath = "/partners"
)

// API is the slice of the HTTP client the service needs.
type API interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
}

// Credentials are the login form fields.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserInfo is the optional user object of a login response.
type UserInfo struct {
	ID      int    `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Partner string `json:"partner,omitempty"`
}

type loginResponse struct {
	Token   string    `json:"token"`
	User    *UserInfo `json:"user,omitempty"`
	Email   string    `json:"email,omitempty"`
	Partner string    `json:"partner,omitempty"`
}

// LoginResult is a successful login with the identity resolved.
type LoginResult struct {
	Token   string
	Email   string
	Partner string
	// User is the server's user object, nil when the response had none.
	User *UserInfo
}

// Service wraps the authentication endpoints.
type Service struct {
	api    API
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(api API, opts ...Option) *Service {
	s := &Service{api: api, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Login exchanges credentials for a token.
//
// The email comes from the nested user object, then the top-level field,
// then the submitted credentials. The partner follows the same order and
// defaults to empty.
func (s *Service) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	var resp loginResponse
	if err := s.api.Post(ctx, LoginPath, creds, &resp); err != nil {
		return nil, apierror.Parse(err)
	}
	if resp.Token == "" {
		return nil, &apierror.Error{Code: apierror.CodeUnknownError, Message: apierror.MsgUnknownRequest, StatusCode: http.StatusOK}
	}

	result := &LoginResult{Token: resp.Token, User: resp.User}
	result.Email = firstNonEmpty(userField(resp.User, func(u *UserInfo) string { return u.Email }), resp.Email, creds.Email)
	result.Partner = firstNonEmpty(userField(resp.User, func(u *UserInfo) string { return u.Partner }), resp.Partner)

	s.logger.InfoContext(ctx, "admin login succeeded", "email", result.Email, "partner", result.Partner)
	return result, nil
}

// Logout tells the server the session is over.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.api.Post(ctx, LogoutPath, nil, nil); err != nil {
		return apierror.Parse(err)
	}
	return nil
}

// ValidateToken probes an authenticated endpoint. A rejected session
// reports false without error; other failures are returned.
func (s *Service) ValidateToken(ctx context.Context) (bool, error) {
	err := s.api.Get(ctx, validatePath, nil, nil)
	if err == nil {
		return true, nil
	}
	apiErr := apierror.Parse(err)
	if apierror.IsAuthError(apiErr) || apiErr.Code == apierror.CodeForbidden {
		return false, nil
	}
	return false, apiErr
}

func userField(u *UserInfo, get func(*UserInfo) string) string {
	if u == nil {
		return ""
	}
	return get(u)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
