package weberr

import (
	"net/http"

	"github.com/irsalhamdi/e-learning/errs"
)

// ErrorResponse is the body of every failed request. Status is "fail" for
// client errors and "error" for server errors.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewError attaches a response with msg and status to err.
func NewError(err error, msg string, status int, opts ...Opt) error {
	opts = append(opts, WithResponse(Body(msg, status), status))
	return Wrap(err, opts...)
}

func Body(msg string, status int) *ErrorResponse {
	s := "fail"
	if status >= http.StatusInternalServerError {
		s = "error"
	}
	return &ErrorResponse{Status: s, Message: msg}
}

// FromKind converts an error tagged by the core packages into a response
// error. Internal errors never leak their message.
func FromKind(err error) (body *ErrorResponse, status int) {
	kind := errs.KindOf(err)
	status = StatusOf(kind)

	msg := errs.Message(err)
	if kind == errs.Internal || msg == "" {
		msg = http.StatusText(status)
		if kind == errs.Internal {
			msg = "the server encountered a problem and could not process your request"
		}
	}
	return Body(msg, status), status
}

func StatusOf(kind errs.Kind) int {
	switch kind {
	case errs.NotFound:
		return http.StatusNotFound
	case errs.Unauthorized:
		return http.StatusUnauthorized
	case errs.Forbidden:
		return http.StatusForbidden
	case errs.Conflict:
		return http.StatusConflict
	case errs.Validation:
		return http.StatusBadRequest
	case errs.Upstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func BadRequest(err error, opts ...Opt) error {
	return NewError(
		err,
		"bad request",
		http.StatusBadRequest,
		opts...,
	)
}

func TooManyRequests(err error, opts ...Opt) error {
	return NewError(
		err,
		"rate limit exceeded",
		http.StatusTooManyRequests,
		opts...,
	)
}
