// Package apierr maps mission API failures to an HTTP status and a stable
// machine-readable code.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInvalidRequest   = "invalid_request"
	CodeInvalidArgument  = "invalid_argument"
	CodeInvalidMissionID = "invalid_mission_id"
	CodeInvalidAction    = "invalid_action"
	CodeUnknownChannel   = "unknown_channel"
	CodeUnauthorized     = "unauthorized"
	CodeMissionNotFound  = "mission_not_found"
	CodeInternal         = "internal_error"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Err != nil && e.Code != "":
		return e.Code + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	case e.Code != "":
		return e.Code
	default:
		return fmt.Sprintf("api error (%d)", e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the client-facing text. Server errors never expose the cause.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	if e.Status >= http.StatusInternalServerError || e.Err == nil {
		return http.StatusText(e.Status)
	}
	return e.Err.Error()
}

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func BadRequest(code string, err error) *Error { return New(http.StatusBadRequest, code, err) }

func InvalidArgument(err error) *Error { return BadRequest(CodeInvalidArgument, err) }

func Unauthorized(err error) *Error { return New(http.StatusUnauthorized, CodeUnauthorized, err) }

func MissionNotFound(err error) *Error { return New(http.StatusNotFound, CodeMissionNotFound, err) }

// From returns the *Error wrapped in err, or a 500 carrying code.
func From(err error, code string) *Error {
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		return ae
	}
	if code == "" {
		code = CodeInternal
	}
	return New(http.StatusInternalServerError, code, err)
}
