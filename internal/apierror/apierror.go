// Package apierror normalizes admin API failures into a small closed taxonomy
// with user-facing Portuguese messages.
//
// Failures are first represented as one of the variants NetworkError,
// HTTPError, GenericError or Unknown, then classified by Parse. Parse is total:
// every input yields exactly one *Error and it never panics.
package apierror

import "errors"

// Code is a stable tag identifying the failure category.
// Server-provided codes pass through Parse unchanged, so the set is open on
// that branch only.
type Code string

const (
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeInternalServer     Code = "INTERNAL_SERVER_ERROR"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeTimeout            Code = "TIMEOUT"
	CodeConnection         Code = "CONNECTION_ERROR"
	CodeUnknownError       Code = "UNKNOWN_ERROR"
	CodeError              Code = "ERROR"
	CodeUnknown            Code = "UNKNOWN"
)

// User-facing messages. They are part of the panel's presentation and are not
// re-localized elsewhere.
const (
	MsgUnauthorized       = "Sessao expirada. Por favor, faca login novamente."
	MsgForbidden          = "Voce nao tem permissao para acessar este recurso."
	MsgNotFound           = "Recurso nao encontrado."
	MsgConflict           = "Este recurso ja existe (duplicado)."
	MsgValidation         = "Dados invalidos. Verifique os campos preenchidos."
	MsgInternalServer     = "Erro interno do servidor. Tente novamente mais tarde."
	MsgServiceUnavailable = "Servidor indisponivel. Tente novamente mais tarde."
	MsgTimeout            = "Timeout na conexao. Verifique sua internet."
	MsgConnection         = "Nao foi possivel conectar ao servidor."
	MsgUnknownRequest     = "Erro desconhecido na requisicao."
	MsgUnknown            = "Erro desconhecido ocorreu."
	MsgUnexpected         = "Ocorreu um erro inesperado. Tente novamente."
)

// Error is a normalized API failure.
type Error struct {
	Code    Code
	Message string
	// StatusCode is the HTTP status, zero for transport failures and non-HTTP errors.
	StatusCode int
	// Original is the raw failure that was classified. It is an error for every
	// variant except Unknown, which keeps the thrown value itself.
	Original any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return string(CodeUnknown)
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap exposes the original failure when it is an error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	if err, ok := e.Original.(error); ok {
		return err
	}
	return nil
}

// Is enables errors.Is() to match normalized errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a normalized error without an underlying cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// HasCode reports whether err is a normalized error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsAuthError reports whether the failure ended the session.
func IsAuthError(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.StatusCode == 401 || e.Code == CodeUnauthorized
}

// IsValidationError reports whether the server rejected the payload.
func IsValidationError(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.StatusCode == 422 || e.Code == CodeValidation
}

// IsNetworkError reports whether the request never got an HTTP answer.
func IsNetworkError(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == CodeTimeout || e.Code == CodeConnection
}

// Message returns the text to show the user for any error value.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return MsgUnexpected
}
