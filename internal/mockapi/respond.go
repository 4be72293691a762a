package mockapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"margem/internal/apierror"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client gone
}

func writeError(w http.ResponseWriter, status int, code apierror.Code, message string) {
	writeJSON(w, status, apierror.Body{
		Message:   message,
		Code:      string(code),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// dataError is a dataset failure that maps onto an HTTP status.
type dataError struct {
	status  int
	code    apierror.Code
	message string
}

func (e *dataError) Error() string { return e.message }

func errNotFound(msg string) error {
	return &dataError{status: http.StatusNotFound, code: apierror.CodeNotFound, message: msg}
}

func errConflict(msg string) error {
	return &dataError{status: http.StatusConflict, code: apierror.CodeConflict, message: msg}
}

func errInvalid(msg string) error {
	return &dataError{status: http.StatusUnprocessableEntity, code: apierror.CodeValidation, message: msg}
}

func writeDataError(w http.ResponseWriter, err error) {
	var de *dataError
	if errors.As(err, &de) {
		writeError(w, de.status, de.code, de.message)
		return
	}
	writeError(w, http.StatusInternalServerError, apierror.CodeInternalServer, "Erro interno")
}

// decodeBody reads a JSON request body into v, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Corpo da requisicao muito grande")
			return false
		}
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "JSON invalido")
		return false
	}
	return true
}

// requireParam answers 400 when the query parameter is missing.
func requireParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Parametro obrigatorio: "+name)
		return "", false
	}
	return v, true
}
