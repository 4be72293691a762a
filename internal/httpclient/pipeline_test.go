package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"margem/internal/apierror"
	"margem/internal/platform/tracer"
)

// unauthorizedUnless answers 401 unless the request carries the wanted token.
func unauthorizedUnless(rec *recorder, want string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		if want != "" && r.Header.Get(HeaderAuthorization) == "Bearer "+want {
			writeJSON(w, http.StatusOK, map[string]string{"ok": "yes"})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token expirado", "code": "TOKEN_EXPIRED"})
	}
}

func (s *ClientSuite) TestConcurrentUnauthorized_ForcedLogout() {
	rec := &recorder{}
	srv := httptest.NewServer(unauthorizedUnless(rec, ""))
	defer srv.Close()

	var calls atomic.Int32
	var p *Pipeline
	handler := func(ctx context.Context, err *apierror.Error) {
		calls.Add(1)
		// hold the sequence open until the second request has queued
		s.True(waitFor(func() bool { return p.Pending() == 1 }))
		s.tokens.ClearAuthData()
	}
	spans := &recordingTracer{}
	var c *Client
	c, p = s.newClient(srv, []PipelineOption{WithAuthErrorHandler(handler)}, WithTracer(spans))
	s.tokens.SetToken("expired")

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Get(context.Background(), "/partners", nil, nil)
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), calls.Load())
	s.Equal(1, p.Sequences())
	s.Equal(0, p.Pending())
	s.False(p.Reauthenticating())
	for _, err := range errs {
		s.True(apierror.HasCode(err, apierror.CodeUnauthorized), "got %v", err)
		s.Equal(apierror.MsgUnauthorized, apierror.Message(err))
	}
	s.Same(errs[0], errs[1])
	s.Equal(2, rec.count())
	_, ok := s.tokens.GetToken()
	s.False(ok)

	apiSpans := spans.named(tracer.SpanAPICall)
	s.Require().Len(apiSpans, 2)
	queued := 0
	for _, sp := range apiSpans {
		s.True(sp.ended)
		s.Equal(http.StatusUnauthorized, sp.attr(tracer.AttrStatusCode))
		s.Equal(string(apierror.CodeUnauthorized), sp.attr(tracer.AttrErrorCode))
		for _, ev := range sp.eventsNamed(tracer.EventQueued) {
			queued++
			s.Equal(1, ev.Value)
		}
	}
	s.Equal(1, queued)
}

func (s *ClientSuite) TestConcurrentUnauthorized_RefreshReplaysQueue() {
	rec := &recorder{}
	srv := httptest.NewServer(unauthorizedUnless(rec, "fresh"))
	defer srv.Close()

	var refreshes atomic.Int32
	var p *Pipeline
	refresh := func(ctx context.Context) (string, error) {
		refreshes.Add(1)
		s.True(waitFor(func() bool { return p.Pending() == 1 }))
		s.tokens.SetToken("fresh")
		return "fresh", nil
	}
	authErrors := 0
	var c *Client
	c, p = s.newClient(srv, []PipelineOption{
		WithRefresh(refresh),
		WithAuthErrorHandler(func(context.Context, *apierror.Error) { authErrors++ }),
	})
	s.tokens.SetToken("old")

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var out map[string]string
			errs[i] = c.Get(context.Background(), "/partners", nil, &out)
		}(i)
	}
	wg.Wait()

	s.NoError(errs[0])
	s.NoError(errs[1])
	s.Equal(int32(1), refreshes.Load())
	s.Equal(1, p.Sequences())
	s.Zero(authErrors)

	retried := 0
	for _, r := range rec.all() {
		if r.Header.Get(HeaderRetry) != "" {
			retried++
			s.Equal("Bearer fresh", r.Header.Get(HeaderAuthorization))
		}
	}
	s.Equal(2, retried)
}

func (s *ClientSuite) TestUnauthorizedAfterRetryIsFinal() {
	rec := &recorder{}
	srv := httptest.NewServer(unauthorizedUnless(rec, ""))
	defer srv.Close()

	c, p := s.newClient(srv, []PipelineOption{
		WithRefresh(func(context.Context) (string, error) { return "still-rejected", nil }),
	})
	s.tokens.SetToken("old")

	err := c.Get(context.Background(), "/partners", nil, nil)

	s.True(apierror.HasCode(err, apierror.CodeUnauthorized))
	s.Equal(2, rec.count())
	s.Equal(1, p.Sequences())
}

func (s *ClientSuite) TestFailedRefreshForcesLogout() {
	rec := &recorder{}
	srv := httptest.NewServer(unauthorizedUnless(rec, ""))
	defer srv.Close()

	var expired *apierror.Error
	c, _ := s.newClient(srv, []PipelineOption{
		WithRefresh(func(context.Context) (string, error) { return "", errors.New("no refresh token") }),
		WithAuthErrorHandler(func(_ context.Context, err *apierror.Error) { expired = err }),
	})
	s.tokens.SetToken("old")

	err := c.Get(context.Background(), "/partners", nil, nil)

	s.Require().NotNil(expired)
	s.Equal(apierror.CodeUnauthorized, expired.Code)
	s.Same(expired, err)
	s.Equal(1, rec.count())
}

func (s *ClientSuite) TestRefreshRequestsAreNotReauthenticated() {
	rec := &recorder{}
	srv := httptest.NewServer(unauthorizedUnless(rec, ""))
	defer srv.Close()

	var c *Client
	var p *Pipeline
	c, p = s.newClient(srv, []PipelineOption{
		WithRefresh(func(ctx context.Context) (string, error) {
			var out map[string]string
			if err := c.Post(ctx, "/refresh", nil, &out); err != nil {
				return "", err
			}
			return out["token"], nil
		}),
	})
	s.tokens.SetToken("old")

	done := make(chan error, 1)
	go func() { done <- c.Get(context.Background(), "/partners", nil, nil) }()

	select {
	case err := <-done:
		s.True(apierror.HasCode(err, apierror.CodeUnauthorized))
	case <-time.After(2 * time.Second):
		s.Fail("refresh deadlocked the pipeline")
	}
	s.Equal(1, p.Sequences())
}

func (s *ClientSuite) TestLoginUnauthorizedSkipsReauthentication() {
	rec := &recorder{}
	srv := httptest.NewServer(unauthorizedUnless(rec, ""))
	defer srv.Close()

	called := false
	c, p := s.newClient(srv, []PipelineOption{
		WithAuthErrorHandler(func(context.Context, *apierror.Error) { called = true }),
	})

	err := c.Post(context.Background(), "/login", map[string]string{"email": "a@x.com", "password": "bad"}, nil)

	s.True(apierror.IsAuthError(err))
	s.False(called)
	s.Zero(p.Sequences())
}

func (s *ClientSuite) TestStaleTokenIsReplayedWithoutReauthentication() {
	rec := &recorder{}
	srv := httptest.NewServer(unauthorizedUnless(rec, "rotated"))
	defer srv.Close()

	c, p := s.newClient(srv, nil)
	s.tokens.SetToken("old")
	// rotate the stored token once the first attempt has been sent
	c.http.Transport = rotateAfterSend{next: http.DefaultTransport, rotate: func() { s.tokens.SetToken("rotated") }}

	s.Require().NoError(c.Get(context.Background(), "/partners", nil, nil))
	s.Zero(p.Sequences())
	s.Equal(2, rec.count())
}

type rotateAfterSend struct {
	next   http.RoundTripper
	rotate func()
}

func (t rotateAfterSend) RoundTrip(r *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(r)
	t.rotate()
	return resp, err
}

func (s *ClientSuite) TestQueuedRequestHonoursCancellation() {
	rec := &recorder{}
	srv := httptest.NewServer(unauthorizedUnless(rec, ""))
	defer srv.Close()

	release := make(chan struct{})
	var p *Pipeline
	var c *Client
	c, p = s.newClient(srv, []PipelineOption{
		WithAuthErrorHandler(func(context.Context, *apierror.Error) { <-release }),
	})
	s.tokens.SetToken("old")

	first := make(chan error, 1)
	go func() { first <- c.Get(context.Background(), "/partners", nil, nil) }()
	s.Require().True(waitFor(p.Reauthenticating))

	ctx, cancel := context.WithCancel(context.Background())
	second := make(chan error, 1)
	go func() { second <- c.Get(ctx, "/stores", nil, nil) }()
	s.Require().True(waitFor(func() bool { return p.Pending() == 1 }))

	cancel()
	s.ErrorIs(<-second, context.Canceled)

	close(release)
	s.True(apierror.HasCode(<-first, apierror.CodeUnauthorized))
	s.Equal(0, p.Pending())
}
