package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"margem/internal/apierror"
)

// Exit codes for CLI commands.
const (
	ExitSuccess         = 0
	ExitFailure         = 1 // the API rejected or failed the operation
	ExitCommandError    = 2 // bad flags, missing arguments, local setup failures
	ExitUnauthenticated = 3 // no session, or the API ended it
)

// ExitError carries the process exit code and the error tag shown to the
// operator.
type ExitError struct {
	Code    int
	Reason  string
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, reason, message string) *ExitError {
	return &ExitError{Code: code, Reason: reason, Message: message}
}

// GetExitCode extracts the exit code from err, ExitFailure when err is not an
// *ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// apiFailure turns an API error into an ExitError keeping the normalized
// Portuguese message.
func apiFailure(err error) *ExitError {
	code := ExitFailure
	if apierror.IsAuthError(err) {
		code = ExitUnauthenticated
	}
	reason := string(apierror.CodeUnknownError)
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		reason = string(apiErr.Code)
	}
	return &ExitError{Code: code, Reason: reason, Message: apierror.Message(err), Err: err}
}

// Response is the JSON envelope of every command.
type Response struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *ErrorOut `json:"error,omitempty"`
}

type ErrorOut struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Table is the text rendering of a result.
type Table struct {
	Header []string
	Rows   [][]string
}

func (t *Table) add(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// OutputFormatter writes results as JSON envelopes or aligned tables.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
}

func (f *OutputFormatter) Success(data any, table Table) error {
	if f.Format == OutputJSON {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 0, 2, ' ', 0)
	if len(table.Header) > 0 {
		fmt.Fprintln(tw, strings.Join(table.Header, "\t"))
	}
	for _, row := range table.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// Error reports a failure. JSON goes to Writer so scripts always get an
// envelope; text goes to ErrWriter.
func (f *OutputFormatter) Error(code, message string) error {
	if f.Format == OutputJSON {
		return json.NewEncoder(f.Writer).Encode(Response{
			Status: "error",
			Error:  &ErrorOut{Code: code, Message: message},
		})
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	_, err := fmt.Fprintf(w, "Erro [%s]: %s\n", code, message)
	return err
}

func yesNo(b bool) string {
	if b {
		return "sim"
	}
	return "nao"
}
