// Package tracer is a thin tracing abstraction for outgoing admin API calls.
//
// Callers depend on Tracer and Span only; OTelTracer adapts OpenTelemetry and
// NoopTracer is used when tracing is off and in tests.
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks it as failed.
	// End must be called exactly once, typically via defer.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanAPICall = "admin_api.call"
	SpanReauth  = "admin_api.reauth"
)

// Attribute keys.
const (
	AttrMethod     = "http.method"
	AttrPath       = "http.path"
	AttrStatusCode = "http.status_code"
	AttrRequestID  = "request_id"
	AttrAttempt    = "attempt"
	AttrErrorCode  = "error.code"
	AttrRetried    = "retried"
	AttrQueued     = "queued_requests"
)

// Event names.
const (
	EventRetryScheduled = "retry.scheduled"
	EventQueued         = "reauth.queued"
)
