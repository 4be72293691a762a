package httpclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"margem/internal/apierror"
	"margem/internal/platform/metrics"
	"margem/internal/platform/tracer"
	"margem/internal/tokenstore"
)

// Headers set by the pipeline.
const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
	// HeaderRetry marks a request replayed after re-authentication. A 401 on
	// a marked request is final.
	HeaderRetry = "X-Retry"
)

const defaultLoginPath = "/login"

// TokenSource yields the current session token.
type TokenSource interface {
	GetToken() (string, bool)
}

// AuthErrorHandler is told that re-authentication failed and the session is
// over. It typically clears local session state.
type AuthErrorHandler func(ctx context.Context, err *apierror.Error)

// RefreshFunc obtains a fresh token after a 401. Persisting the token is the
// hook's job. Requests it issues through the same pipeline are not
// re-authenticated again.
type RefreshFunc func(ctx context.Context) (string, error)

type pipelineState int

const (
	stateIdle pipelineState = iota
	stateReauthenticating
)

func (s pipelineState) String() string {
	if s == stateReauthenticating {
		return "reauthenticating"
	}
	return "idle"
}

// pendingRequest is a request parked behind an in-flight re-authentication.
type pendingRequest struct {
	onSuccess func(token string)
	onFailure func(err error)
}

type reauthKey struct{}

// Pipeline decorates requests with credentials and correlation ids and
// coordinates 401 handling: at most one re-authentication runs at a time and
// every request that fails with 401 meanwhile waits for its outcome.
type Pipeline struct {
	tokens    TokenSource
	loginPath string
	logger    *slog.Logger
	tracer    tracer.Tracer
	metrics   *metrics.Client
	now       func() time.Time

	mu          sync.Mutex
	state       pipelineState
	queue       []pendingRequest
	sequences   int
	onAuthError AuthErrorHandler
	refresh     RefreshFunc
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithPipelineTracer(t tracer.Tracer) PipelineOption {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

func WithPipelineMetrics(m *metrics.Client) PipelineOption {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithLoginPath sets the request path that is always sent anonymously.
func WithLoginPath(path string) PipelineOption {
	return func(p *Pipeline) {
		if path != "" {
			p.loginPath = path
		}
	}
}

// WithAuthErrorHandler registers the forced-logout callback.
func WithAuthErrorHandler(fn AuthErrorHandler) PipelineOption {
	return func(p *Pipeline) {
		p.onAuthError = fn
	}
}

// WithRefresh registers a token refresh hook.
func WithRefresh(fn RefreshFunc) PipelineOption {
	return func(p *Pipeline) {
		p.refresh = fn
	}
}

func NewPipeline(tokens TokenSource, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		tokens:    tokens,
		loginPath: defaultLoginPath,
		logger:    slog.Default(),
		tracer:    tracer.NewNoop(),
		metrics:   metrics.NewClient(nil),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// SetAuthErrorHandler replaces the forced-logout callback.
func (p *Pipeline) SetAuthErrorHandler(fn AuthErrorHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onAuthError = fn
}

// SetRefresh replaces the refresh hook. A nil hook makes every
// re-authentication end in forced logout.
func (p *Pipeline) SetRefresh(fn RefreshFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refresh = fn
}

// Pending returns the number of requests waiting on re-authentication.
func (p *Pipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Reauthenticating reports whether a re-authentication is in flight.
func (p *Pipeline) Reauthenticating() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == stateReauthenticating
}

// Sequences returns how many re-authentication sequences have started.
func (p *Pipeline) Sequences() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sequences
}

// prepare runs the request phase on a freshly built call.
func (p *Pipeline) prepare(c *call) {
	c.header.Set(HeaderRequestID, newRequestID(p.now()))
	c.header.Del(HeaderAuthorization)
	c.token = ""
	if p.isLogin(c.path) || p.tokens == nil {
		return
	}
	if token, ok := p.tokens.GetToken(); ok {
		c.header.Set(HeaderAuthorization, tokenstore.BearerValue(token))
		c.token = token
	}
}

func (p *Pipeline) isLogin(path string) bool {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return strings.HasSuffix(strings.TrimRight(path, "/"), p.loginPath)
}

func (p *Pipeline) shouldReauthenticate(c *call, err *apierror.HTTPError) bool {
	return err.StatusCode == http.StatusUnauthorized &&
		c.header.Get(HeaderRetry) == "" &&
		!p.isLogin(c.path)
}

type replayFunc func(ctx context.Context, token string) (*Response, error)

type reauthResult struct {
	token string
	err   error
}

// handleUnauthorized runs the response phase for a first 401 on c.
func (p *Pipeline) handleUnauthorized(ctx context.Context, c *call, httpErr *apierror.HTTPError, span tracer.Span, replay replayFunc) (*Response, error) {
	authErr := apierror.Parse(httpErr)
	if ctx.Value(reauthKey{}) != nil {
		return nil, authErr
	}

	// The session moved on while this request was in flight.
	if current, ok := p.currentToken(); ok && current != c.token {
		return replay(ctx, current)
	}

	p.mu.Lock()
	if p.state == stateReauthenticating {
		wait := make(chan reauthResult, 1)
		p.queue = append(p.queue, pendingRequest{
			onSuccess: func(token string) { wait <- reauthResult{token: token} },
			onFailure: func(err error) { wait <- reauthResult{err: err} },
		})
		queued := len(p.queue)
		p.metrics.SetPending(queued)
		p.mu.Unlock()

		span.AddEvent(tracer.EventQueued, tracer.Int(tracer.AttrQueued, queued))
		p.logger.DebugContext(ctx, "request queued behind re-authentication",
			"method", c.method,
			"url", c.url,
			"request_id", c.header.Get(HeaderRequestID),
		)
		select {
		case res := <-wait:
			if res.err != nil {
				return nil, res.err
			}
			return replay(ctx, res.token)
		case <-ctx.Done():
			return nil, apierror.NewNetworkError(ctx.Err())
		}
	}
	p.state = stateReauthenticating
	p.sequences++
	onAuthError, refresh := p.onAuthError, p.refresh
	p.mu.Unlock()

	token, err := p.reauthenticate(ctx, authErr, onAuthError, refresh)
	queue := p.drain()

	if err != nil {
		for _, pending := range queue {
			pending.onFailure(err)
		}
		return nil, err
	}
	for _, pending := range queue {
		pending.onSuccess(token)
	}
	return replay(ctx, token)
}

func (p *Pipeline) reauthenticate(ctx context.Context, authErr *apierror.Error, onAuthError AuthErrorHandler, refresh RefreshFunc) (string, error) {
	ctx, span := p.tracer.Start(ctx, tracer.SpanReauth)
	ctx = context.WithValue(ctx, reauthKey{}, true)

	if refresh != nil {
		token, err := refresh(ctx)
		switch {
		case err != nil:
			p.logger.WarnContext(ctx, "token refresh failed", "error", err)
		case token == "":
			p.logger.WarnContext(ctx, "token refresh returned no token")
		default:
			p.metrics.IncrementReauth("refreshed")
			span.End(nil)
			return token, nil
		}
	}

	p.logger.InfoContext(ctx, "session rejected by admin api, forcing logout")
	if onAuthError != nil {
		onAuthError(ctx, authErr)
	}
	p.metrics.IncrementReauth("logged_out")
	span.End(authErr)
	return "", authErr
}

// drain returns the pipeline to idle and hands back the parked requests.
func (p *Pipeline) drain() []pendingRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	queue := p.queue
	p.queue = nil
	p.state = stateIdle
	p.metrics.SetPending(0)
	return queue
}

func (p *Pipeline) currentToken() (string, bool) {
	if p.tokens == nil {
		return "", false
	}
	return p.tokens.GetToken()
}

// newRequestID builds "<unix-millis>-<9 random chars>".
func newRequestID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%d-%s", now.UnixMilli(), random[:9])
}
