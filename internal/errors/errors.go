// Package errors is the structured error the http layer answers with.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error carries the status to answer with and the fields that were wrong.
type Error struct {
	Status  int
	Err     error // The error this wraps
	Details []Detail
}

// Detail points at one bad input field.
type Detail struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s, details: %v", e.Status, e.message(), e.Details)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) message() string {
	if e.Err == nil {
		return http.StatusText(e.Status)
	}

	return e.Err.Error()
}

type transport struct {
	Message string   `json:"message"`
	Details []Detail `json:"details,omitempty"`
	Status  int      `json:"status"`
}

func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(transport{
		Message: e.message(),
		Details: e.Details,
		Status:  e.Status,
	})
}

func (e *Error) UnmarshalJSON(byts []byte) error {
	t := transport{}
	if err := json.Unmarshal(byts, &t); err != nil {
		return err
	}

	e.Err = errors.New(t.Message)
	e.Details = t.Details
	e.Status = t.Status
	return nil
}

// E builds an Error from any mix of a message or error, a status code, and details.
// The status defaults to 500.
func E(args ...any) *Error {
	ret := &Error{Status: http.StatusInternalServerError}

	for _, arg := range args {
		switch arg := arg.(type) {
		case string:
			ret.Err = errors.New(arg)
		case error:
			ret.Err = arg
		case int:
			ret.Status = arg
		case Detail:
			ret.Details = append(ret.Details, arg)
		case []Detail:
			ret.Details = append(ret.Details, arg...)
		}
	}

	return ret
}
