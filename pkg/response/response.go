package response

import (
	"errors"
	"fmt"
	"strings"
)

type Response struct {
	ResponseError `json:"error,omitzero"`
}

type ResponseError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// Error Codes
type ErrCode string

var (
	FAILED_REQUEST    ErrCode = "REQUEST_FAILED"
	BAD_REQUEST       ErrCode = "FAILED_TO_DECODE"
	NOT_FOUND         ErrCode = "NOT_FOUND"
	LOCKED            ErrCode = "LOCKED"
	CONFLICT          ErrCode = "CONFLICT"
	VALIDATION_FAILED ErrCode = "VALIDATION_FAILED"
)

var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("resource not found")
	ErrLocked     = errors.New("resource is locked")
)

// ValidationError marks input the caller can fix: missing fields, inverted
// time windows, negative rates, unknown statuses.
type ValidationError struct {
	Msg string
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// ConflictError reports a booking window colliding with existing bookings.
// BookingRefs holds the public identifiers of every blocking booking.
type ConflictError struct {
	BookingRefs []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("time window conflicts with bookings: %s", strings.Join(e.BookingRefs, ", "))
}

func Error(code, msg string) Response {
	return Response{
		ResponseError: ResponseError{
			Code:    code,
			Message: msg,
		},
	}
}

func ErrorDetails(code, msg string, details []string) Response {
	return Response{
		ResponseError: ResponseError{
			Code:    code,
			Message: msg,
			Details: details,
		},
	}
}
