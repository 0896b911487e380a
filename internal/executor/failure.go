package executor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// maxErrorBody caps the backend error body carried on a Failure.
const maxErrorBody = 4 << 10

// FailureKind classifies a per-call failure.
type FailureKind string

const (
	KindInvalidArguments FailureKind = "invalid_arguments"
	KindBackend          FailureKind = "backend_error"
	KindUnknownTool      FailureKind = "unknown_tool"
)

// Failure is the only error type returned from an invocation.
type Failure struct {
	Kind    FailureKind
	Tool    string
	Status  int      // HTTP status, 0 when no response arrived
	Body    string   // backend error body, truncated
	Missing []string // required arguments not supplied
	Invalid []string // arguments whose value does not match the declared kind
	Err     error
}

func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString(string(f.Kind))
	if f.Tool != "" {
		b.WriteString(" (" + f.Tool + ")")
	}
	switch {
	case len(f.Missing) > 0 || len(f.Invalid) > 0:
		if len(f.Missing) > 0 {
			b.WriteString(": missing required arguments: " + strings.Join(f.Missing, ", "))
		}
		if len(f.Invalid) > 0 {
			b.WriteString(": invalid arguments: " + strings.Join(f.Invalid, ", "))
		}
	case f.Err != nil:
		b.WriteString(": " + f.Err.Error())
	}
	return b.String()
}

func (f *Failure) Unwrap() error { return f.Err }

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// backendFailure builds the failure for a non-2xx response.
func backendFailure(tool string, status int, body []byte) *Failure {
	return &Failure{
		Kind:   KindBackend,
		Tool:   tool,
		Status: status,
		Body:   truncate(body, maxErrorBody),
		Err:    parseErrorResponse(status, body),
	}
}

// parseErrorResponse extracts a meaningful message from an HTTP error response.
func parseErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		switch e := errResp.Error.(type) {
		case string:
			if e != "" {
				return fmt.Errorf("backend returned %d: %s", statusCode, e)
			}
		case map[string]any:
			if msg, ok := e["message"].(string); ok && msg != "" {
				return fmt.Errorf("backend returned %d: %s", statusCode, msg)
			}
		}
		if errResp.Message != "" {
			return fmt.Errorf("backend returned %d: %s", statusCode, errResp.Message)
		}
		if errResp.Detail != "" {
			return fmt.Errorf("backend returned %d: %s", statusCode, errResp.Detail)
		}
	}
	return fmt.Errorf("backend returned %d", statusCode)
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "...(truncated)"
}
