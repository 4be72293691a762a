package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"margem/internal/platform/tracer"
	"margem/internal/tokenstore"
)

type ClientSuite struct {
	suite.Suite
	logger *slog.Logger
	tokens *tokenstore.Store
}

func (s *ClientSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.tokens = tokenstore.New(tokenstore.NewMemoryStore(), tokenstore.WithLogger(s.logger))
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

// newClient points a client with a pipeline at srv.
func (s *ClientSuite) newClient(srv *httptest.Server, popts []PipelineOption, opts ...Option) (*Client, *Pipeline) {
	p := NewPipeline(s.tokens, append([]PipelineOption{WithPipelineLogger(s.logger)}, popts...)...)
	base := []Option{
		WithLogger(s.logger),
		WithPipeline(p),
		WithBackoff(time.Millisecond, 5*time.Millisecond),
	}
	c := New(Config{BaseURL: srv.URL + "/admin", Timeout: 2 * time.Second, RetryAttempts: 3}, append(base, opts...)...)
	return c, p
}

// recorder captures requests seen by a test server.
type recorder struct {
	mu       sync.Mutex
	requests []*http.Request
}

func (r *recorder) add(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req.Clone(context.Background()))
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func (r *recorder) all() []*http.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*http.Request(nil), r.requests...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// waitFor polls cond until it holds or a second elapses.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

// recordingTracer keeps every span it starts.
type recordingTracer struct {
	mu    sync.Mutex
	spans []*recordedSpan
}

type recordedSpan struct {
	mu     sync.Mutex
	name   string
	attrs  map[string]any
	events []tracer.Attribute
	ended  bool
}

func (t *recordingTracer) Start(ctx context.Context, name string, attrs ...tracer.Attribute) (context.Context, tracer.Span) {
	sp := &recordedSpan{name: name, attrs: make(map[string]any)}
	sp.SetAttributes(attrs...)
	t.mu.Lock()
	t.spans = append(t.spans, sp)
	t.mu.Unlock()
	return ctx, sp
}

func (t *recordingTracer) named(name string) []*recordedSpan {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*recordedSpan
	for _, sp := range t.spans {
		if sp.name == name {
			out = append(out, sp)
		}
	}
	return out
}

func (s *recordedSpan) End(error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}

func (s *recordedSpan) SetAttributes(attrs ...tracer.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range attrs {
		s.attrs[a.Key] = a.Value
	}
}

// AddEvent records the event name with its first attribute.
func (s *recordedSpan) AddEvent(name string, attrs ...tracer.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := tracer.Attribute{Key: name}
	if len(attrs) > 0 {
		ev.Value = attrs[0].Value
	}
	s.events = append(s.events, ev)
}

func (s *recordedSpan) attr(key string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attrs[key]
}

func (s *recordedSpan) eventsNamed(name string) []tracer.Attribute {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []tracer.Attribute
	for _, ev := range s.events {
		if ev.Key == name {
			out = append(out, ev)
		}
	}
	return out
}
