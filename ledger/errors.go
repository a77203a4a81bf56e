package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error is the error type returned by every Ledger operation. Code identifies
// the kind of failure, so callers can branch with errors.Is against the
// values in errors_definition.go regardless of the attached detail.
type Error struct {
	Err       error
	Code      int
	Retryable bool
	// userMsg is safe to show to a voter, it never carries internals.
	userMsg string
}

// MarshalJSON returns a JSON object with the error message and code.
//
// Example output: {"error":"voter not found","code":40001}
func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(
		struct {
			Err  string `json:"error"`
			Code int    `json:"code"`
		}{
			Err:  e.UserMessage(),
			Code: e.Code,
		})
}

// Error returns the full message, including any attached detail.
func (e Error) Error() string {
	return e.Err.Error()
}

func (e Error) Unwrap() error {
	return e.Err
}

// Is matches any Error with the same code.
func (e Error) Is(target error) bool {
	t, ok := target.(Error)
	return ok && t.Code == e.Code
}

// UserMessage returns a message suitable for voters.
func (e Error) UserMessage() string {
	if e.userMsg != "" {
		return e.userMsg
	}
	return "internal error"
}

// Withf returns a copy of e with the formatted string appended at the end of e.Err
func (e Error) Withf(format string, args ...any) Error {
	return e.With(fmt.Sprintf(format, args...))
}

// With returns a copy of e with the string appended at the end of e.Err
func (e Error) With(s string) Error {
	e.Err = fmt.Errorf("%w: %v", e.Err, s)
	return e
}

// WithErr returns a copy of e wrapping err too, so errors.Is also matches it.
func (e Error) WithErr(err error) Error {
	e.Err = fmt.Errorf("%w: %w", e.Err, err)
	return e
}

// IsRetryable reports whether err is a ledger error that may succeed if the
// operation is tried again.
func IsRetryable(err error) bool {
	var le Error
	return errors.As(err, &le) && le.Retryable
}
