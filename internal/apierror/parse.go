package apierror

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

// Parse normalizes any failure value. Values that already are (or wrap) an
// *Error are returned unchanged.
//
// Classification order, first match wins: HTTP status 401, 403, 404, 409,
// 422, 500, 503; transport timeout; connection failures; a server-provided
// message; the raw transport message. Plain Go errors map to ERROR and
// anything else to UNKNOWN.
func Parse(v any) *Error {
	if err, ok := v.(error); ok && err != nil {
		var existing *Error
		if errors.As(err, &existing) {
			if existing == nil {
				return &Error{Code: CodeUnknown, Message: MsgUnknown}
			}
			return existing
		}
	}

	switch f := Classify(v).(type) {
	case *HTTPError:
		return parseHTTP(f)
	case *NetworkError:
		return parseNetwork(f)
	case *GenericError:
		return &Error{Code: CodeError, Message: f.Error(), Original: f.Err}
	case Unknown:
		return &Error{Code: CodeUnknown, Message: MsgUnknown, Original: f.Value}
	default:
		return &Error{Code: CodeUnknown, Message: MsgUnknown, Original: v}
	}
}

func parseHTTP(f *HTTPError) *Error {
	if f == nil {
		return &Error{Code: CodeUnknown, Message: MsgUnknown}
	}
	serverMsg := ""
	if f.Body != nil {
		serverMsg = f.Body.Message
	}

	status := f.StatusCode
	switch status {
	case http.StatusUnauthorized:
		return &Error{Code: CodeUnauthorized, Message: MsgUnauthorized, StatusCode: status, Original: f}
	case http.StatusForbidden:
		return &Error{Code: CodeForbidden, Message: MsgForbidden, StatusCode: status, Original: f}
	case http.StatusNotFound:
		return &Error{Code: CodeNotFound, Message: MsgNotFound, StatusCode: status, Original: f}
	case http.StatusConflict:
		return &Error{Code: CodeConflict, Message: orDefault(serverMsg, MsgConflict), StatusCode: status, Original: f}
	case http.StatusUnprocessableEntity:
		return &Error{Code: CodeValidation, Message: orDefault(serverMsg, MsgValidation), StatusCode: status, Original: f}
	case http.StatusInternalServerError:
		return &Error{Code: CodeInternalServer, Message: MsgInternalServer, StatusCode: status, Original: f}
	case http.StatusServiceUnavailable:
		return &Error{Code: CodeServiceUnavailable, Message: MsgServiceUnavailable, StatusCode: status, Original: f}
	}

	if serverMsg != "" {
		code := CodeUnknownError
		if f.Body.Code != "" {
			code = Code(f.Body.Code)
		}
		return &Error{Code: code, Message: serverMsg, StatusCode: status, Original: f}
	}
	return &Error{Code: CodeUnknownError, Message: orDefault(f.Error(), MsgUnknownRequest), StatusCode: status, Original: f}
}

func parseNetwork(f *NetworkError) *Error {
	if f == nil {
		return &Error{Code: CodeUnknown, Message: MsgUnknown}
	}
	switch f.Code {
	case TransportTimeout:
		return &Error{Code: CodeTimeout, Message: MsgTimeout, Original: f}
	case TransportRefused, TransportHostUnknown, TransportUnreachable:
		return &Error{Code: CodeConnection, Message: MsgConnection, Original: f}
	default:
		return &Error{Code: CodeUnknownError, Message: orDefault(f.Error(), MsgUnknownRequest), Original: f}
	}
}

// Log records a failure with its normalized code.
func Log(ctx context.Context, logger *slog.Logger, err error, where string) {
	if logger == nil || err == nil {
		return
	}
	if where == "" {
		where = "api"
	}
	apiErr := Parse(err)
	logger.ErrorContext(ctx, "request failed",
		"context", where,
		"code", string(apiErr.Code),
		"status", apiErr.StatusCode,
		"message", apiErr.Message,
		"error", apiErr.Unwrap(),
	)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
