package mockapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"margem/internal/apierror"
)

const (
	msgInvalidCredentials = "Email ou senha invalidos"
	msgInvalidToken       = "Token invalido ou expirado"
	msgMissingToken       = "Token nao fornecido"
	msgLockedOut          = "Muitas tentativas de login. Tente novamente mais tarde."
)

type claims struct {
	UserID  int    `json:"id"`
	Email   string `json:"email"`
	Partner string `json:"partner"`
	jwt.RegisteredClaims
}

// session is one issued token that has not been logged out.
type session struct {
	ID       string
	Email    string
	Partner  string
	Device   string
	IssuedAt time.Time
}

func sessionFrom(ctx context.Context) (session, bool) {
	s, ok := ctx.Value(sessionKey).(session)
	return s, ok
}

// sessions tracks issued tokens by jti.
type sessions struct {
	mu     sync.RWMutex
	active map[string]session
}

func newSessions() *sessions {
	return &sessions{active: make(map[string]session)}
}

func (s *sessions) add(sess session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[sess.ID] = sess
}

func (s *sessions) get(id string) (session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.active[id]
	return sess, ok
}

func (s *sessions) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[id]
	delete(s.active, id)
	return ok
}

// clear drops every session and returns how many there were.
func (s *sessions) clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.active)
	s.active = make(map[string]session)
	return n
}

func (s *sessions) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}

// issueToken signs an HS256 token for admin. A zero TokenTTL leaves out exp.
func (s *Server) issueToken(admin Admin, device string) (string, error) {
	now := s.now()
	c := claims{
		UserID:  admin.ID,
		Email:   admin.Email,
		Partner: admin.Partner,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Subject:  admin.Email,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.cfg.TokenTTL > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(s.cfg.TokenTTL))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	s.sessions.add(session{ID: c.ID, Email: admin.Email, Partner: admin.Partner, Device: device, IssuedAt: now})
	s.metrics.IncrementActiveSessions()
	return signed, nil
}

func (s *Server) parseToken(raw string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// requireSession rejects requests without a valid, not logged out bearer
// token and puts the session in the request context.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := requestIDFrom(ctx)

		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			s.logger.WarnContext(ctx, "unauthorized access - missing token",
				"path", r.URL.Path,
				"request_id", requestID,
			)
			writeError(w, http.StatusUnauthorized, apierror.CodeUnauthorized, msgMissingToken)
			return
		}

		c, err := s.parseToken(raw)
		if err != nil {
			reason := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				reason = "expired token"
			}
			s.logger.WarnContext(ctx, "unauthorized access - "+reason,
				"error", err,
				"path", r.URL.Path,
				"request_id", requestID,
			)
			writeError(w, http.StatusUnauthorized, apierror.CodeUnauthorized, msgInvalidToken)
			return
		}

		sess, ok := s.sessions.get(c.ID)
		if !ok {
			s.logger.WarnContext(ctx, "unauthorized access - revoked token",
				"path", r.URL.Path,
				"email", c.Email,
				"request_id", requestID,
			)
			writeError(w, http.StatusUnauthorized, apierror.CodeUnauthorized, msgInvalidToken)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, sessionKey, sess)))
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginUser struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Partner string `json:"partner"`
}

type loginResponse struct {
	Token string    `json:"token"`
	User  loginUser `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		s.metrics.IncrementLogins("invalid")
		writeError(w, http.StatusUnprocessableEntity, apierror.CodeValidation, "Email e senha sao obrigatorios")
		return
	}

	key := lockoutKey(req.Email, clientIP(r))
	if allowed, wait := s.lockout.check(key); !allowed {
		s.metrics.IncrementLogins("locked")
		s.logger.WarnContext(r.Context(), "login blocked by lockout",
			"email", req.Email,
			"retry_after", wait,
			"request_id", requestIDFrom(r.Context()),
		)
		w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
		writeError(w, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", msgLockedOut)
		return
	}

	admin, ok := s.data.admin(req.Email)
	if !ok || bcrypt.CompareHashAndPassword(admin.PasswordHash, []byte(req.Password)) != nil {
		s.metrics.IncrementLogins("rejected")
		locked := s.lockout.recordFailure(key)
		s.logger.WarnContext(r.Context(), "login rejected",
			"email", req.Email,
			"locked", locked,
			"request_id", requestIDFrom(r.Context()),
		)
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", msgInvalidCredentials)
		return
	}
	s.lockout.clear(key)

	device := deviceName(r.UserAgent())
	token, err := s.issueToken(admin, device)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to issue token", "error", err)
		writeError(w, http.StatusInternalServerError, apierror.CodeInternalServer, "Erro interno")
		return
	}
	s.metrics.IncrementLogins("success")
	s.logger.InfoContext(r.Context(), "login succeeded",
		"email", admin.Email,
		"device", device,
		"request_id", requestIDFrom(r.Context()),
	)
	writeJSON(w, http.StatusOK, loginResponse{
		Token: token,
		User:  loginUser{ID: admin.ID, Name: admin.Name, Email: admin.Email, Partner: admin.Partner},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	if s.sessions.remove(sess.ID) {
		s.metrics.DecrementActiveSessions()
	}
	s.logger.InfoContext(r.Context(), "logout",
		"email", sess.Email,
		"device", sess.Device,
		"request_id", requestIDFrom(r.Context()),
	)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout realizado com sucesso"})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
