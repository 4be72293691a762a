package apierror

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Failure is the closed set of raw failure shapes Parse understands:
// *NetworkError, *HTTPError, *GenericError and Unknown.
type Failure interface {
	failure()
}

// TransportCode tags a request that never received an HTTP response.
type TransportCode string

const (
	TransportTimeout     TransportCode = "ECONNABORTED"
	TransportRefused     TransportCode = "ECONNREFUSED"
	TransportHostUnknown TransportCode = "ENOTFOUND"
	TransportUnreachable TransportCode = "EHOSTUNREACH"
	TransportOther       TransportCode = "ERR_NETWORK"
)

// NetworkError is a transport-level failure.
type NetworkError struct {
	Code TransportCode
	Err  error
}

// NewNetworkError wraps err and classifies its transport code.
func NewNetworkError(err error) *NetworkError {
	return &NetworkError{Code: transportCode(err), Err: err}
}

func (e *NetworkError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return string(e.Code)
	}
	return e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Body is the error payload the admin API returns alongside non-2xx statuses.
type Body struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	Details   any    `json:"details,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// HTTPError is a response with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Method     string
	URL        string
	// Body is nil when the response carried no parseable error payload.
	Body *Body
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed with status code %d", e.StatusCode)
}

// GenericError is any other Go error.
type GenericError struct {
	Err error
}

func (e *GenericError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *GenericError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Unknown holds a value that is not an error at all.
type Unknown struct {
	Value any
}

func (*NetworkError) failure() {}
func (*HTTPError) failure()    {}
func (*GenericError) failure() {}
func (Unknown) failure()       {}

// Classify maps an arbitrary value onto the closed Failure set.
func Classify(v any) Failure {
	switch t := v.(type) {
	case nil:
		return Unknown{}
	case Failure:
		return t
	case error:
		var httpErr *HTTPError
		if errors.As(t, &httpErr) {
			return httpErr
		}
		var netErr *NetworkError
		if errors.As(t, &netErr) {
			return netErr
		}
		return &GenericError{Err: t}
	default:
		return Unknown{Value: v}
	}
}

func transportCode(err error) TransportCode {
	if err == nil {
		return TransportOther
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TransportTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return TransportTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return TransportHostUnknown
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return TransportRefused
	}
	if errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return TransportUnreachable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return TransportRefused
	}
	return TransportOther
}
