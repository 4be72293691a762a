// Package httpclient is the shared JSON client for the MARGEM admin API.
//
// A Client owns the transport configuration (base URL, timeout, default
// headers, retry budget). Authentication, correlation ids and 401 handling
// live in a Pipeline attached with WithPipeline.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"margem/internal/apierror"
	"margem/internal/platform/circuit"
	"margem/internal/platform/config"
	"margem/internal/platform/metrics"
	"margem/internal/platform/tracer"
	"margem/internal/tokenstore"
)

const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"

	maxResponseBytes = 10 << 20
)

// Config is the transport configuration of a Client.
type Config struct {
	// BaseURL is the API prefix. A relative value such as "/admin" is
	// resolved against Origin.
	BaseURL string
	Origin  string
	Timeout time.Duration
	// RetryAttempts bounds the extra attempts made for transient failures
	// on idempotent requests. Zero disables retries.
	RetryAttempts int
	Headers       map[string]string
	// Debug logs every request and response at debug level.
	Debug bool
}

// ConfigFromEnv maps the client settings loaded from the environment.
func ConfigFromEnv(cfg config.Client) Config {
	return Config{
		BaseURL:       cfg.APIURL,
		Origin:        cfg.APIOrigin,
		Timeout:       cfg.Timeout,
		RetryAttempts: cfg.RetryAttempts,
		Debug:         cfg.Debug,
	}
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = config.DefaultAPIURL
	}
	if c.Origin == "" {
		c.Origin = config.DefaultAPIOrigin
	}
	if c.Timeout <= 0 {
		c.Timeout = config.DefaultTimeout
	}
	if c.RetryAttempts < 0 {
		c.RetryAttempts = 0
	}
	c.Headers = maps.Clone(c.Headers)
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	return c
}

// Request describes one API call. Path is relative to the base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is marshaled to JSON once and replayed verbatim on retries.
	Body   any
	Header http.Header
}

// Response is a successful (2xx) API answer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Empty reports whether the server answered without a payload.
func (r *Response) Empty() bool {
	return len(bytes.TrimSpace(r.Body)) == 0
}

// Decode unmarshals the JSON body into out. An empty body leaves out untouched.
func (r *Response) Decode(out any) error {
	if out == nil || r.Empty() {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Client sends JSON requests to the admin API. It is safe for concurrent use;
// reconfiguration through SetBaseURL, SetHeader and Reset affects requests
// started afterwards.
type Client struct {
	mu      sync.RWMutex
	cfg     Config
	initial Config

	http     *http.Client
	pipeline *Pipeline
	breaker  *circuit.Breaker
	backoff  backoff
	logger   *slog.Logger
	tracer   tracer.Tracer
	metrics  *metrics.Client
}

// Option configures a Client.
type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

func WithMetrics(m *metrics.Client) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithPipeline attaches the auth pipeline. Without one, requests carry no
// credentials and a 401 is normalized directly.
func WithPipeline(p *Pipeline) Option {
	return func(c *Client) {
		c.pipeline = p
	}
}

// WithBreaker replaces the circuit breaker that gates retries.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		if b != nil {
			c.breaker = b
		}
	}
}

// WithBackoff sets the first retry delay and the cap for later ones.
func WithBackoff(initial, maxDelay time.Duration) Option {
	return func(c *Client) {
		if initial > 0 {
			c.backoff.initial = initial
		}
		if maxDelay > 0 {
			c.backoff.max = maxDelay
		}
	}
}

// New creates a Client. Zero config fields take the package defaults.
func New(cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	initial := cfg
	initial.Headers = maps.Clone(cfg.Headers)
	c := &Client{
		cfg:     cfg,
		initial: initial,
		http:    &http.Client{},
		breaker: circuit.New("admin-api"),
		backoff: defaultBackoff(),
		logger:  slog.Default(),
		tracer:  tracer.NewNoop(),
		metrics: metrics.NewClient(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// SetBaseURL points subsequent requests at a new API prefix.
func (c *Client) SetBaseURL(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.BaseURL = baseURL
}

// GetBaseURL returns the resolved API prefix.
func (c *Client) GetBaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return resolveBase(c.cfg)
}

// SetHeader adds a default header sent on every request.
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Headers[key] = value
}

func (c *Client) RemoveHeader(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cfg.Headers, key)
}

// Reset restores the configuration the client was created with and closes
// the circuit breaker.
func (c *Client) Reset() {
	c.mu.Lock()
	c.cfg = c.initial
	c.cfg.Headers = maps.Clone(c.initial.Headers)
	c.mu.Unlock()
	c.breaker.Reset()
	c.metrics.SetCircuitOpen(false)
}

// Pipeline returns the attached auth pipeline, or nil.
func (c *Client) Pipeline() *Pipeline {
	return c.pipeline
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.doJSON(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (c *Client) Put(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.doJSON(ctx, Request{Method: http.MethodPut, Path: path, Query: query, Body: body}, out)
}

func (c *Client) Delete(ctx context.Context, path string, query url.Values, out any) error {
	return c.doJSON(ctx, Request{Method: http.MethodDelete, Path: path, Query: query}, out)
}

func (c *Client) doJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := resp.Decode(out); err != nil {
		return apierror.Parse(err)
	}
	return nil
}

// Do sends req through the pipeline. Every failure is returned as an
// *apierror.Error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, tracer.SpanAPICall,
		tracer.String(tracer.AttrMethod, req.Method),
		tracer.String(tracer.AttrPath, req.Path),
	)

	resp, err := c.do(ctx, req, span)

	code := "OK"
	if err != nil {
		apiErr := apierror.Parse(err)
		code = string(apiErr.Code)
		span.SetAttributes(tracer.String(tracer.AttrErrorCode, code))
		if apiErr.StatusCode != 0 {
			span.SetAttributes(tracer.Int(tracer.AttrStatusCode, apiErr.StatusCode))
		}
		err = apiErr
	} else {
		span.SetAttributes(tracer.Int(tracer.AttrStatusCode, resp.StatusCode))
	}
	c.metrics.ObserveRequest(req.Method, code, time.Since(start).Seconds())
	span.End(err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, req Request, span tracer.Span) (*Response, error) {
	c.mu.RLock()
	cfg := c.cfg
	cfg.Headers = maps.Clone(c.cfg.Headers)
	c.mu.RUnlock()

	call, err := newCall(cfg, req)
	if err != nil {
		return nil, &apierror.GenericError{Err: err}
	}
	if c.pipeline != nil {
		c.pipeline.prepare(call)
	}
	span.SetAttributes(tracer.String(tracer.AttrRequestID, call.header.Get(HeaderRequestID)))
	c.logRequest(ctx, cfg, call)

	resp, err := c.exchange(ctx, cfg, call, span)
	if err == nil {
		c.logResponse(ctx, cfg, call, resp.StatusCode)
		return resp, nil
	}

	var httpErr *apierror.HTTPError
	if c.pipeline != nil && errors.As(err, &httpErr) && c.pipeline.shouldReauthenticate(call, httpErr) {
		return c.pipeline.handleUnauthorized(ctx, call, httpErr, span, func(ctx context.Context, token string) (*Response, error) {
			retry := call.retryWith(token)
			span.SetAttributes(tracer.Bool(tracer.AttrRetried, true))
			c.logRequest(ctx, cfg, retry)
			return c.exchange(ctx, cfg, retry, span)
		})
	}
	return nil, err
}

// exchange performs one logical request, retrying transient failures.
func (c *Client) exchange(ctx context.Context, cfg Config, call *call, span tracer.Span) (*Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.roundTrip(ctx, cfg, call)
		reason, transient := transientReason(ctx, err)
		if !transient {
			if _, change := c.breaker.RecordSuccess(); change.Closed {
				c.metrics.SetCircuitOpen(false)
				c.logger.InfoContext(ctx, "admin api circuit closed", "breaker", c.breaker.Name())
			}
			return resp, err
		}

		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.metrics.SetCircuitOpen(true)
			c.logger.WarnContext(ctx, "admin api circuit opened, retries suspended", "breaker", c.breaker.Name())
		}
		if !idempotent(call.method) || attempt >= cfg.RetryAttempts || !c.breaker.AllowRetry() {
			return nil, err
		}

		delay := c.backoff.delay(attempt)
		c.metrics.IncrementRetries(reason)
		span.AddEvent(tracer.EventRetryScheduled,
			tracer.Int(tracer.AttrAttempt, attempt+1),
			tracer.Duration("delay", delay),
		)
		c.logger.DebugContext(ctx, "retrying admin api request",
			"method", call.method,
			"url", call.url,
			"attempt", attempt+1,
			"reason", reason,
			"delay", delay,
		)
		if err := sleep(ctx, delay); err != nil {
			return nil, apierror.NewNetworkError(err)
		}
	}
}

func (c *Client) roundTrip(ctx context.Context, cfg Config, call *call) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var body io.Reader
	if call.body != nil {
		body = bytes.NewReader(call.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, call.method, call.url, body)
	if err != nil {
		return nil, &apierror.GenericError{Err: err}
	}
	httpReq.Header = call.header.Clone()

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apierror.NewNetworkError(err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, apierror.NewNetworkError(err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &apierror.HTTPError{
			StatusCode: httpResp.StatusCode,
			Method:     call.method,
			URL:        call.url,
			Body:       decodeErrorBody(raw),
		}
	}
	return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: raw}, nil
}

func (c *Client) logRequest(ctx context.Context, cfg Config, call *call) {
	if !cfg.Debug {
		return
	}
	c.logger.DebugContext(ctx, "api request",
		"method", call.method,
		"url", call.url,
		"request_id", call.header.Get(HeaderRequestID),
		"retry", call.header.Get(HeaderRetry) != "",
	)
}

func (c *Client) logResponse(ctx context.Context, cfg Config, call *call, status int) {
	if !cfg.Debug {
		return
	}
	c.logger.DebugContext(ctx, "api response",
		"method", call.method,
		"url", call.url,
		"status", status,
		"request_id", call.header.Get(HeaderRequestID),
	)
}

func decodeErrorBody(raw []byte) *apierror.Body {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var body apierror.Body
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	if body.Message == "" && body.Code == "" {
		return nil
	}
	return &body
}

// call is a prepared request that can be sent more than once.
type call struct {
	method string
	path   string
	url    string
	body   []byte
	header http.Header
	// token is the credential the request was sent with, "" when none.
	token string
}

func newCall(cfg Config, req Request) (*call, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := joinURL(resolveBase(cfg), req.Path)
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	header := make(http.Header)
	header.Set(headerAccept, contentTypeJSON)
	header.Set(headerContentType, contentTypeJSON)
	for k, v := range cfg.Headers {
		header.Set(k, v)
	}
	for k, vs := range req.Header {
		header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}

	var body []byte
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = raw
	}
	return &call{method: method, path: req.Path, url: target, body: body, header: header}, nil
}

// retryWith returns a copy of c authenticated with token and marked as a retry.
func (c *call) retryWith(token string) *call {
	retry := *c
	retry.header = c.header.Clone()
	if token != "" {
		retry.header.Set(HeaderAuthorization, tokenstore.BearerValue(token))
		retry.token = token
	}
	retry.header.Set(HeaderRetry, "true")
	return &retry
}

func resolveBase(cfg Config) string {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if u, err := url.Parse(base); err == nil && u.IsAbs() {
		return base
	}
	origin := strings.TrimRight(cfg.Origin, "/")
	if base != "" && !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return origin + base
}

func joinURL(base, path string) string {
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
