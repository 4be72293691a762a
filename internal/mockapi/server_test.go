package mockapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"margem/internal/adminapi"
	"margem/internal/apierror"
	"margem/internal/platform/config"
)

const testSecret = "test-secret"

type ServerSuite struct {
	suite.Suite
	clock  *fakeClock
	server *Server
	http   *httptest.Server
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	s.start(config.MockServer{JWTSecret: testSecret, TokenTTL: time.Hour})
}

func (s *ServerSuite) TearDownTest() {
	s.http.Close()
}

func (s *ServerSuite) start(cfg config.MockServer) {
	if s.http != nil {
		s.http.Close()
	}
	s.clock = &fakeClock{now: time.Now()}
	srv, err := New(cfg,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(s.clock.Now),
	)
	s.Require().NoError(err)
	s.server = srv
	s.http = httptest.NewServer(srv.Handler())
}

func (s *ServerSuite) do(method, path, token string, body any) *http.Response {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.http.URL+path, reader)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	s.T().Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *ServerSuite) decode(resp *http.Response, out any) {
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
}

func (s *ServerSuite) login() string {
	resp := s.do(http.MethodPost, "/admin/login", "", map[string]string{
		"email": DefaultAdminEmail, "password": DefaultAdminPassword,
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var out loginResponse
	s.decode(resp, &out)
	s.Require().NotEmpty(out.Token)
	return out.Token
}

func (s *ServerSuite) errorBody(resp *http.Response) apierror.Body {
	var body apierror.Body
	s.decode(resp, &body)
	return body
}

func (s *ServerSuite) TestHealth() {
	resp := s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	var body map[string]any
	s.decode(resp, &body)
	s.Equal("ok", body["status"])
}

func (s *ServerSuite) TestLogin() {
	s.Run("issues a signed token with the user", func() {
		resp := s.do(http.MethodPost, "/admin/login", "", map[string]string{
			"email": DefaultPartnerEmail, "password": DefaultPartnerPassword,
		})
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		var out loginResponse
		s.decode(resp, &out)
		s.Equal(DefaultPartnerEmail, out.User.Email)
		s.Equal(DefaultPartnerName, out.User.Partner)

		parsed, err := s.server.parseToken(out.Token)
		s.Require().NoError(err)
		s.Equal(DefaultPartnerEmail, parsed.Email)
		s.Require().NotNil(parsed.ExpiresAt)
		s.WithinDuration(s.clock.Now().Add(time.Hour), parsed.ExpiresAt.Time, time.Second)
	})

	s.Run("wrong password is rejected", func() {
		resp := s.do(http.MethodPost, "/admin/login", "", map[string]string{
			"email": DefaultAdminEmail, "password": "nope",
		})
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
		s.Equal("INVALID_CREDENTIALS", s.errorBody(resp).Code)
	})

	s.Run("missing fields fail validation", func() {
		resp := s.do(http.MethodPost, "/admin/login", "", map[string]string{"email": DefaultAdminEmail})
		s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	})

	s.Run("malformed body", func() {
		req, err := http.NewRequest(http.MethodPost, s.http.URL+"/admin/login", strings.NewReader("{"))
		s.Require().NoError(err)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		s.Require().NoError(err)
		defer resp.Body.Close()
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	s.Run("non-JSON content type", func() {
		resp, err := http.Post(s.http.URL+"/admin/login", "text/plain", strings.NewReader("x"))
		s.Require().NoError(err)
		defer resp.Body.Close()
		s.Equal(http.StatusUnsupportedMediaType, resp.StatusCode)
	})

	s.Equal(float64(1), testutil.ToFloat64(s.server.metrics.Logins.WithLabelValues("success")))
	s.Equal(float64(1), testutil.ToFloat64(s.server.metrics.Logins.WithLabelValues("rejected")))
}

func (s *ServerSuite) TestLoginLockout() {
	wrong := map[string]string{"email": DefaultAdminEmail, "password": "nope"}
	for range DefaultLockoutAttempts {
		s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/admin/login", "", wrong).StatusCode)
	}

	resp := s.do(http.MethodPost, "/admin/login", "", map[string]string{
		"email": DefaultAdminEmail, "password": DefaultAdminPassword,
	})
	s.Equal(http.StatusTooManyRequests, resp.StatusCode)
	s.NotEmpty(resp.Header.Get("Retry-After"))
	s.Equal("TOO_MANY_REQUESTS", s.errorBody(resp).Code)
	s.Equal(float64(1), testutil.ToFloat64(s.server.metrics.Logins.WithLabelValues("locked")))

	// other accounts are unaffected
	resp = s.do(http.MethodPost, "/admin/login", "", map[string]string{
		"email": DefaultPartnerEmail, "password": DefaultPartnerPassword,
	})
	s.Equal(http.StatusOK, resp.StatusCode)

	s.clock.Advance(DefaultLockoutDuration + time.Second)
	s.login()
}

func TestLockoutWindowResets(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newLockout(LockoutPolicy{Attempts: 2, Window: time.Minute, Duration: time.Hour}, func() time.Time { return now })
	key := lockoutKey(" Op@Loja.com ", "10.0.0.1")

	if l.recordFailure(key) {
		t.Fatal("first failure must not lock")
	}
	now = now.Add(2 * time.Minute)
	if l.recordFailure(key) {
		t.Fatal("failure after the window must start a new count")
	}
	if !l.recordFailure(key) {
		t.Fatal("second failure within the window must lock")
	}
	if ok, wait := l.check(lockoutKey("op@loja.com", "10.0.0.1")); ok || wait != time.Hour {
		t.Fatalf("check = %v, %v; want locked for an hour", ok, wait)
	}

	disabled := newLockout(LockoutPolicy{}, time.Now)
	for range 10 {
		disabled.recordFailure(key)
	}
	if ok, _ := disabled.check(key); !ok {
		t.Fatal("zero policy must never lock")
	}
}

func (s *ServerSuite) TestTokenWithoutTTLHasNoExpiry() {
	s.start(config.MockServer{JWTSecret: testSecret})
	token := s.login()

	parsed, err := s.server.parseToken(token)
	s.Require().NoError(err)
	s.Nil(parsed.ExpiresAt)

	s.clock.Advance(365 * 24 * time.Hour)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/admin/states", token, nil).StatusCode)
}

func (s *ServerSuite) TestSessionEnforcement() {
	s.Run("missing token", func() {
		resp := s.do(http.MethodGet, "/admin/partners", "", nil)
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
		s.Equal(string(apierror.CodeUnauthorized), s.errorBody(resp).Code)
	})

	s.Run("token signed with another secret", func() {
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": "x"}).SignedString([]byte("other"))
		s.Require().NoError(err)
		s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/admin/partners", forged, nil).StatusCode)
	})

	s.Run("expired token", func() {
		token := s.login()
		s.clock.Advance(2 * time.Hour)
		s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/admin/partners", token, nil).StatusCode)
	})

	s.Run("logout revokes the token", func() {
		token := s.login()
		s.Equal(http.StatusOK, s.do(http.MethodGet, "/admin/partners", token, nil).StatusCode)
		s.Equal(http.StatusOK, s.do(http.MethodPost, "/admin/logout", token, nil).StatusCode)
		s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/admin/partners", token, nil).StatusCode)
	})

	s.Run("revoking every session", func() {
		a, b := s.login(), s.login()
		s.server.RevokeSessions()
		s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/admin/states", a, nil).StatusCode)
		s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/admin/states", b, nil).StatusCode)
		s.Equal(float64(0), testutil.ToFloat64(s.server.metrics.ActiveSessions))
	})
}

func (s *ServerSuite) TestSessionRecordsDevice() {
	token := s.login()
	parsed, err := s.server.parseToken(token)
	s.Require().NoError(err)
	sess, ok := s.server.sessions.get(parsed.ID)
	s.Require().True(ok)
	s.Equal("Chrome on macOS", sess.Device)
}

func (s *ServerSuite) TestRequestID() {
	req, err := http.NewRequest(http.MethodGet, s.http.URL+"/health", nil)
	s.Require().NoError(err)
	req.Header.Set("X-Request-ID", "1700000000000-abc123def")
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal("1700000000000-abc123def", resp.Header.Get("X-Request-ID"))

	req.Header.Set("X-Request-ID", "bad id with spaces")
	resp, err = http.DefaultClient.Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.NotEqual("bad id with spaces", resp.Header.Get("X-Request-ID"))
	s.NotEmpty(resp.Header.Get("X-Request-ID"))
}

func (s *ServerSuite) TestStoreLifecycle() {
	token := s.login()

	resp := s.do(http.MethodPost, "/admin/store", token, adminapi.Store{CNPJ: "12345678000190", TradeName: "Nova Loja", Partner: "Linx", Active: true})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var created adminapi.Store
	s.decode(resp, &created)
	s.NotEmpty(created.ID)
	s.NotEmpty(created.Serial)

	resp = s.do(http.MethodPost, "/admin/store", token, adminapi.Store{CNPJ: "12345678000190"})
	s.Equal(http.StatusConflict, resp.StatusCode)

	created.TradeName = "Loja Renomeada"
	resp = s.do(http.MethodPut, "/admin/store?id="+created.ID, token, created)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	resp = s.do(http.MethodGet, "/admin/store?cnpj=12345678000190", token, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var got adminapi.Store
	s.decode(resp, &got)
	s.Equal("Loja Renomeada", got.TradeName)
	s.Equal(created.Serial, got.Serial)

	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, "/admin/store?cnpj=12345678000190", token, nil).StatusCode)
	resp = s.do(http.MethodGet, "/admin/store?cnpj=12345678000190", token, nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
	s.Equal(string(apierror.CodeNotFound), s.errorBody(resp).Code)

	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/admin/store", token, nil).StatusCode)
}

func (s *ServerSuite) TestMobileLookupMissReturnsEmptyObject() {
	token := s.login()
	resp := s.do(http.MethodGet, "/admin/mobile?email=ninguem@x.com", token, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.JSONEq(`{}`, string(raw))
}

func (s *ServerSuite) TestReportsPagination() {
	token := s.login()

	resp := s.do(http.MethodGet, "/admin/reports/stores?page=2&limit=2", token, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var report adminapi.StoresReport
	s.decode(resp, &report)
	s.Equal(3, report.Total)
	s.Equal(2, report.TotalPages)
	s.Len(report.Data, 1)

	resp = s.do(http.MethodGet, "/admin/reports/stores?partner=Linx&active=true", token, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.decode(resp, &report)
	s.Equal(1, report.Total)
	s.Equal("Bom Preco", report.Data[0].Name)

	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/admin/reports/stores?active=maybe", token, nil).StatusCode)
}

func (s *ServerSuite) TestFailNext() {
	token := s.login()
	s.server.FailNext("/states", http.StatusServiceUnavailable, 2)

	for range 2 {
		resp := s.do(http.MethodGet, "/admin/states", token, nil)
		s.Equal(http.StatusServiceUnavailable, resp.StatusCode)
		s.Equal(string(apierror.CodeServiceUnavailable), s.errorBody(resp).Code)
	}
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/admin/states", token, nil).StatusCode)
	s.Equal(3, s.server.Hits("/states"))
}

func (s *ServerSuite) TestMetricsEndpoint() {
	s.login()
	resp := s.do(http.MethodGet, "/metrics", "", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Contains(string(raw), "margem_mock_logins_total")
	s.Contains(string(raw), `endpoint="/admin/login"`)
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New(config.MockServer{})
	if err == nil {
		t.Fatal("expected an error without a JWT secret")
	}
}
