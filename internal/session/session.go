// Package session holds the admin session state and keeps it mirrored in the
// token store.
package session

//go:generate mockgen -source=session.go -destination=mocks/mocks.go -package=mocks AuthService,Persistence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"margem/internal/apierror"
	"margem/internal/auth"
	"margem/internal/auth/token"
	"margem/internal/tokenstore"
)

// Status is the session lifecycle position.
type Status string

const (
	StatusAnonymous      Status = "anonymous"
	StatusAuthenticating Status = "authenticating"
	StatusAuthenticated  Status = "authenticated"
)

// AuthService performs the remote side of the session lifecycle.
type AuthService interface {
	Login(ctx context.Context, creds auth.Credentials) (*auth.LoginResult, error)
	Logout(ctx context.Context) error
	ValidateToken(ctx context.Context) (bool, error)
}

// Persistence is where the session survives restarts. *tokenstore.Store
// implements it.
type Persistence interface {
	GetToken() (string, bool)
	GetUser() *tokenstore.User
	SetAuthSession(token string, user tokenstore.User)
	ClearAuthData()
}

// User is the signed-in administrator.
type User struct {
	ID      int
	Name    string
	Email   string
	Partner string
}

// State is a snapshot of the session. IsAuthenticated holds exactly when
// Token is set and User is non-nil.
type State struct {
	Status          Status
	IsAuthenticated bool
	User            *User
	Token           string
	IsLoading       bool
	// Error is the user-facing message of the last failure, "" when none.
	Error string
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Store is the session state container. It is safe for concurrent use.
// Concurrent Login calls are not de-duplicated; the last one to finish wins.
type Store struct {
	auth    AuthService
	persist Persistence
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	state   State
	subs    map[int]func(State)
	nextSub int
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an anonymous session. Call Hydrate to restore a persisted one.
func New(authService AuthService, persist Persistence, opts ...Option) *Store {
	s := &Store{
		auth:    authService,
		persist: persist,
		logger:  slog.Default(),
		now:     time.Now,
		state:   State{Status: StatusAnonymous},
		subs:    make(map[int]func(State)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn to receive every new state. The returned function
// removes the subscription.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Login authenticates and persists the session. On failure the session is
// anonymous with Error set, and the error is returned.
func (s *Store) Login(ctx context.Context, creds auth.Credentials) error {
	s.update(func(st *State) {
		st.Status = StatusAuthenticating
		st.IsLoading = true
		st.Error = ""
	})

	result, err := s.auth.Login(ctx, creds)
	if err != nil {
		msg := apierror.Message(err)
		s.logger.WarnContext(ctx, "admin login failed", "email", creds.Email, "error", err)
		s.update(func(st *State) {
			*st = State{Status: StatusAnonymous, Error: msg}
		})
		return err
	}

	user := &User{Email: result.Email, Partner: result.Partner}
	if result.User != nil {
		user.ID = result.User.ID
		user.Name = result.User.Name
	}
	s.persist.SetAuthSession(result.Token, tokenstore.User{Email: user.Email, Partner: user.Partner})
	s.update(func(st *State) {
		*st = authenticated(result.Token, user)
	})
	return nil
}

// Logout ends the session. The remote call is best effort; local state and
// storage are always cleared.
func (s *Store) Logout(ctx context.Context) {
	s.update(func(st *State) { st.IsLoading = true })

	if err := s.auth.Logout(ctx); err != nil {
		s.logger.WarnContext(ctx, "logout request failed, clearing session locally", "error", err)
	}
	s.persist.ClearAuthData()
	s.update(func(st *State) {
		*st = State{Status: StatusAnonymous}
	})
}

// Hydrate rebuilds the session from storage. A token that is missing its
// user, undecodable or about to expire is discarded. Hydrate is idempotent
// and reports whether the session is authenticated afterwards.
func (s *Store) Hydrate(ctx context.Context) bool {
	raw, hasToken := s.persist.GetToken()
	stored := s.persist.GetUser()

	if !hasToken || stored == nil {
		if hasToken || stored != nil {
			s.logger.InfoContext(ctx, "discarding incomplete persisted session")
			s.persist.ClearAuthData()
		}
		s.update(func(st *State) { *st = State{Status: StatusAnonymous, Error: st.Error} })
		return false
	}

	if token.IsExpired(raw, s.now()) {
		s.logger.InfoContext(ctx, "persisted session token expired")
		s.persist.ClearAuthData()
		s.update(func(st *State) { *st = State{Status: StatusAnonymous} })
		return false
	}

	s.update(func(st *State) {
		user := &User{Email: stored.Email, Partner: stored.Partner}
		// keep the details only a fresh login knows about
		if st.IsAuthenticated && st.Token == raw && st.User != nil {
			user.ID = st.User.ID
			user.Name = st.User.Name
		}
		*st = authenticated(raw, user)
	})
	return true
}

// ValidateToken asks the server whether the current token is still accepted.
// Failures count as not valid.
func (s *Store) ValidateToken(ctx context.Context) bool {
	ok, err := s.auth.ValidateToken(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "token validation failed", "error", err)
		return false
	}
	return ok
}

func (s *Store) ClearError() {
	s.update(func(st *State) { st.Error = "" })
}

// Expire is the forced logout used when the API rejects the session. It has
// the signature of httpclient.AuthErrorHandler.
func (s *Store) Expire(ctx context.Context, err *apierror.Error) {
	msg := apierror.MsgUnauthorized
	if err != nil && err.Message != "" {
		msg = err.Message
	}
	s.logger.InfoContext(ctx, "session expired", "reason", msg)
	s.persist.ClearAuthData()
	s.update(func(st *State) {
		*st = State{Status: StatusAnonymous, Error: msg}
	})
}

func authenticated(tok string, user *User) State {
	return State{
		Status:          StatusAuthenticated,
		IsAuthenticated: true,
		User:            user,
		Token:           tok,
	}
}

// update mutates the state under the lock and notifies subscribers after
// releasing it.
func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state.clone()
	subs := make([]func(State), 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(snapshot.clone())
	}
}
