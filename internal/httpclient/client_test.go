package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"time"

	"margem/internal/apierror"
	"margem/internal/platform/circuit"
)

var requestIDPattern = regexp.MustCompile(`^\d{13}-[0-9a-f]{9}$`)

func (s *ClientSuite) TestRequestPhase() {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		writeJSON(w, http.StatusOK, map[string]string{"token": "t"})
	}))
	defer srv.Close()
	c, _ := s.newClient(srv, nil)

	s.Run("login request never carries a token", func() {
		s.tokens.SetToken("stale-but-valid")
		err := c.Post(context.Background(), "/login", map[string]string{"email": "a@x.com", "password": "secret"}, nil)
		s.Require().NoError(err)

		reqs := rec.all()
		last := reqs[len(reqs)-1]
		s.Equal("/admin/login", last.URL.Path)
		s.Empty(last.Header.Get(HeaderAuthorization))
		s.Regexp(requestIDPattern, last.Header.Get(HeaderRequestID))
	})

	s.Run("other requests carry the bearer token", func() {
		s.tokens.SetToken("abc123")
		s.Require().NoError(c.Get(context.Background(), "/partners", nil, nil))

		reqs := rec.all()
		last := reqs[len(reqs)-1]
		s.Equal("Bearer abc123", last.Header.Get(HeaderAuthorization))
		s.Equal("application/json", last.Header.Get("Content-Type"))
		s.Empty(last.Header.Get(HeaderRetry))
	})

	s.Run("prefixed tokens are not prefixed twice", func() {
		s.tokens.SetToken("Bearer abc123")
		s.Require().NoError(c.Get(context.Background(), "/partners", nil, nil))

		reqs := rec.all()
		s.Equal("Bearer abc123", reqs[len(reqs)-1].Header.Get(HeaderAuthorization))
	})

	s.Run("no token means no header", func() {
		s.tokens.ClearToken()
		s.Require().NoError(c.Get(context.Background(), "/states", nil, nil))

		reqs := rec.all()
		s.Empty(reqs[len(reqs)-1].Header.Get(HeaderAuthorization))
	})

	s.Run("request ids differ between calls", func() {
		s.Require().NoError(c.Get(context.Background(), "/states", nil, nil))
		s.Require().NoError(c.Get(context.Background(), "/states", nil, nil))

		reqs := rec.all()
		s.NotEqual(reqs[len(reqs)-1].Header.Get(HeaderRequestID), reqs[len(reqs)-2].Header.Get(HeaderRequestID))
	})
}

func (s *ClientSuite) TestQueryAndDecode() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"estado": r.URL.Query().Get("estado")})
	}))
	defer srv.Close()
	c, _ := s.newClient(srv, nil)

	var out struct {
		Estado string `json:"estado"`
	}
	err := c.Get(context.Background(), "/cities", url.Values{"estado": {"SP"}}, &out)

	s.Require().NoError(err)
	s.Equal("SP", out.Estado)
}

func (s *ClientSuite) TestBaseURLConfiguration() {
	s.Run("relative base resolves against origin", func() {
		c := New(Config{BaseURL: "/admin", Origin: "http://api.margem.local/"})
		s.Equal("http://api.margem.local/admin", c.GetBaseURL())
	})

	s.Run("defaults", func() {
		c := New(Config{})
		s.Equal("http://localhost:8080/admin", c.GetBaseURL())
	})

	s.Run("set and reset", func() {
		c := New(Config{BaseURL: "https://prod.margem.com/admin"})
		c.SetBaseURL("https://staging.margem.com/admin/")
		s.Equal("https://staging.margem.com/admin", c.GetBaseURL())

		c.Reset()
		s.Equal("https://prod.margem.com/admin", c.GetBaseURL())
	})
}

func (s *ClientSuite) TestCustomHeaders() {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	c, _ := s.newClient(srv, nil)

	c.SetHeader("X-Tenant", "margem")
	s.Require().NoError(c.Delete(context.Background(), "/store", url.Values{"cnpj": {"1"}}, nil))
	s.Equal("margem", rec.all()[0].Header.Get("X-Tenant"))

	c.RemoveHeader("X-Tenant")
	s.Require().NoError(c.Delete(context.Background(), "/store", url.Values{"cnpj": {"1"}}, nil))
	s.Empty(rec.all()[1].Header.Get("X-Tenant"))

	c.SetHeader("X-Tenant", "margem")
	c.Reset()
	s.Require().NoError(c.Delete(context.Background(), "/store", url.Values{"cnpj": {"1"}}, nil))
	s.Empty(rec.all()[2].Header.Get("X-Tenant"))
}

func (s *ClientSuite) TestErrorNormalization() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin/conflict":
			writeJSON(w, http.StatusConflict, map[string]string{"message": "CNPJ ja cadastrado"})
		case "/admin/teapot":
			writeJSON(w, http.StatusTeapot, map[string]string{"message": "sem cafe", "code": "TEAPOT"})
		case "/admin/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			writeJSON(w, http.StatusOK, "not an object")
		}
	}))
	defer srv.Close()
	c, _ := s.newClient(srv, nil)

	s.Run("conflict keeps the server message", func() {
		err := c.Post(context.Background(), "/conflict", map[string]string{}, nil)
		s.True(apierror.HasCode(err, apierror.CodeConflict))
		s.Equal("CNPJ ja cadastrado", apierror.Message(err))
	})

	s.Run("unmapped status uses the body code", func() {
		err := c.Get(context.Background(), "/teapot", nil, nil)
		s.True(apierror.HasCode(err, "TEAPOT"))
		s.Equal("sem cafe", apierror.Message(err))
	})

	s.Run("not found", func() {
		err := c.Get(context.Background(), "/missing", nil, nil)
		s.True(apierror.HasCode(err, apierror.CodeNotFound))
		var apiErr *apierror.Error
		s.Require().ErrorAs(err, &apiErr)
		s.Equal(http.StatusNotFound, apiErr.StatusCode)
	})

	s.Run("undecodable payload", func() {
		var out struct{ Token string }
		err := c.Get(context.Background(), "/ok", nil, &out)
		s.True(apierror.HasCode(err, apierror.CodeError))
	})
}

func (s *ClientSuite) TestTransientRetry() {
	s.Run("idempotent request is retried until it succeeds", func() {
		rec := &recorder{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec.add(r)
			if rec.count() < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			writeJSON(w, http.StatusOK, []string{"SP"})
		}))
		defer srv.Close()
		c, _ := s.newClient(srv, nil)

		var out []string
		s.Require().NoError(c.Get(context.Background(), "/states", nil, &out))
		s.Equal([]string{"SP"}, out)
		s.Equal(3, rec.count())
	})

	s.Run("post is never retried", func() {
		rec := &recorder{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec.add(r)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()
		c, _ := s.newClient(srv, nil)

		err := c.Post(context.Background(), "/store", map[string]string{"cnpj": "1"}, nil)
		s.True(apierror.HasCode(err, apierror.CodeServiceUnavailable))
		s.Equal(1, rec.count())
	})

	s.Run("attempts are bounded", func() {
		rec := &recorder{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec.add(r)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()
		c, _ := s.newClient(srv, nil, WithBreaker(circuit.New("test", circuit.WithFailureThreshold(100))))

		err := c.Get(context.Background(), "/states", nil, nil)
		s.True(apierror.HasCode(err, apierror.CodeUnknownError))
		s.Equal(4, rec.count())
	})

	s.Run("timed out request is not retried", func() {
		rec := &recorder{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec.add(r)
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		defer srv.Close()
		c := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond, RetryAttempts: 3}, WithLogger(s.logger))

		err := c.Get(context.Background(), "/slow", nil, nil)
		s.True(apierror.HasCode(err, apierror.CodeTimeout), "got %v", err)
		s.Equal(1, rec.count())
	})

	s.Run("open circuit suspends retries", func() {
		rec := &recorder{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec.add(r)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()
		breaker := circuit.New("test", circuit.WithFailureThreshold(1))
		c, _ := s.newClient(srv, nil, WithBreaker(breaker))

		err := c.Get(context.Background(), "/states", nil, nil)
		s.True(apierror.HasCode(err, apierror.CodeServiceUnavailable))
		s.Equal(1, rec.count())
		s.Equal(circuit.StateOpen, breaker.State())

		c.Reset()
		s.Equal(circuit.StateClosed, breaker.State())
	})
}

func (s *ClientSuite) TestTransportFailures() {
	s.Run("timeout", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		defer srv.Close()
		c := New(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, WithLogger(s.logger))

		err := c.Get(context.Background(), "/slow", nil, nil)
		s.True(apierror.HasCode(err, apierror.CodeTimeout), "got %v", err)
		s.Equal(apierror.MsgTimeout, apierror.Message(err))
	})

	s.Run("connection refused", func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		target := srv.URL
		srv.Close()
		c := New(Config{BaseURL: target}, WithLogger(s.logger))

		err := c.Get(context.Background(), "/states", nil, nil)
		s.True(apierror.HasCode(err, apierror.CodeConnection), "got %v", err)
		s.True(apierror.IsNetworkError(err))
	})

	s.Run("caller cancellation", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()
		c := New(Config{BaseURL: srv.URL}, WithLogger(s.logger))

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		err := c.Get(ctx, "/hang", nil, nil)
		s.Require().Error(err)
		s.ErrorIs(err, context.Canceled)
	})
}

func (s *ClientSuite) TestBackoffDelay() {
	b := backoff{initial: 100 * time.Millisecond, max: time.Second}
	s.Equal(100*time.Millisecond, b.delay(0))
	s.Equal(200*time.Millisecond, b.delay(1))
	s.Equal(800*time.Millisecond, b.delay(3))
	s.Equal(time.Second, b.delay(4))
	s.Equal(time.Second, b.delay(30))
}
