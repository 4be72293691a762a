package httpclient

import (
	"context"
	"errors"
	"net/http"
	"time"

	"margem/internal/apierror"
)

type backoff struct {
	initial time.Duration
	max     time.Duration
}

func defaultBackoff() backoff {
	return backoff{initial: 200 * time.Millisecond, max: 2 * time.Second}
}

// delay doubles per attempt and never exceeds max.
func (b backoff) delay(attempt int) time.Duration {
	d := b.initial
	for i := 0; i < attempt && d < b.max; i++ {
		d *= 2
	}
	return min(d, b.max)
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// transientReason reports whether err is worth another attempt and names why.
// Caller cancellation and timeouts are never transient.
func transientReason(ctx context.Context, err error) (string, bool) {
	if err == nil || ctx.Err() != nil {
		return "", false
	}
	var httpErr *apierror.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusBadGateway:
			return "bad_gateway", true
		case http.StatusServiceUnavailable:
			return "service_unavailable", true
		case http.StatusGatewayTimeout:
			return "gateway_timeout", true
		}
		return "", false
	}
	var netErr *apierror.NetworkError
	if errors.As(err, &netErr) {
		switch netErr.Code {
		case apierror.TransportRefused, apierror.TransportUnreachable:
			return "connection", true
		}
	}
	return "", false
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
