// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorStatus describes errors that correspond to specific HTTP status
// codes.
type ErrorStatus interface {
	// HTTPStatus returns the HTTP status code for this error.
	HTTPStatus() int
}

// ErrorCoder describes errors that have a stable short name to put in
// the Error field of an ErrorResponse.
type ErrorCoder interface {
	ErrorCode() string
}

// ErrUnsupportedMediaType is returned from Decode() if the provided
// Content-Type: is unrecognized.  This translates directly into the
// equivalent HTTP 415 error.
type ErrUnsupportedMediaType struct {
	Type string
}

func (e ErrUnsupportedMediaType) Error() string {
	return fmt.Sprintf("Unsupported media type %q", e.Type)
}

// HTTPStatus returns a fixed 415 Unsupported Media Type error code.
func (e ErrUnsupportedMediaType) HTTPStatus() int {
	return http.StatusUnsupportedMediaType
}

// ErrorCode returns "ErrUnsupportedMediaType".
func (e ErrUnsupportedMediaType) ErrorCode() string {
	return "ErrUnsupportedMediaType"
}

// ErrNotFound is a wrapper error that indicates that, due to the
// embedded error, a REST service should return a 404 Not Found error.
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 404 Not Found error code.
func (e ErrNotFound) HTTPStatus() int {
	return http.StatusNotFound
}

// ErrorCode returns "ErrNotFound".
func (e ErrNotFound) ErrorCode() string {
	return "ErrNotFound"
}

func (e ErrNotFound) Unwrap() error {
	return e.Err
}

// ErrBadRequest is returned as an error when there is an error decoding
// HTTP headers or the request body.
type ErrBadRequest struct {
	Err error
}

func (e ErrBadRequest) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 400 Bad Request HTTP status code.
func (e ErrBadRequest) HTTPStatus() int {
	return http.StatusBadRequest
}

// ErrorCode returns "ErrBadRequest".
func (e ErrBadRequest) ErrorCode() string {
	return "ErrBadRequest"
}

func (e ErrBadRequest) Unwrap() error {
	return e.Err
}

// ErrNotAcceptable is returned by content negotiation if the Accept:
// header does not admit any media type the server can produce.
type ErrNotAcceptable struct {
	// Accept is the header value that could not be satisfied.
	Accept string
}

func (e ErrNotAcceptable) Error() string {
	return "No acceptable representation for response"
}

// HTTPStatus returns a fixed 406 Not Acceptable error code.
func (e ErrNotAcceptable) HTTPStatus() int {
	return http.StatusNotAcceptable
}

// ErrorCode returns "ErrNotAcceptable".
func (e ErrNotAcceptable) ErrorCode() string {
	return "ErrNotAcceptable"
}

// ErrMethodNotAllowed flags an HTTP method that a resource does not
// implement.  This corresponds exactly to the 405 Method Not Allowed
// HTTP status code.
type ErrMethodNotAllowed struct {
	Method string

	// Allowed optionally lists the methods the resource does
	// support.  It travels in the Allow: response header, not in
	// the error body.
	Allowed []string
}

func (e ErrMethodNotAllowed) Error() string {
	return fmt.Sprintf("Method %v not allowed", e.Method)
}

// HTTPStatus returns a fixed 405 Method Not Allowed error code.
func (e ErrMethodNotAllowed) HTTPStatus() int {
	return http.StatusMethodNotAllowed
}

// ErrorCode returns "ErrMethodNotAllowed".
func (e ErrMethodNotAllowed) ErrorCode() string {
	return "ErrMethodNotAllowed"
}

// ErrPreconditionFailed is returned when an If-Match: or
// If-None-Match: condition on a request does not hold.
type ErrPreconditionFailed struct {
	// ETag is the current entity tag of the resource, if it
	// exists.
	ETag string
}

func (e ErrPreconditionFailed) Error() string {
	return "Precondition failed"
}

// HTTPStatus returns a fixed 412 Precondition Failed error code.
func (e ErrPreconditionFailed) HTTPStatus() int {
	return http.StatusPreconditionFailed
}

// ErrorCode returns "ErrPreconditionFailed".
func (e ErrPreconditionFailed) ErrorCode() string {
	return "ErrPreconditionFailed"
}

// ErrNotModified is returned when an If-None-Match: condition on a GET
// or HEAD request matches the current representation.  It is not
// really a failure, but it short-circuits the request like one.
type ErrNotModified struct {
	ETag string
}

func (e ErrNotModified) Error() string {
	return "Not modified"
}

// HTTPStatus returns a fixed 304 Not Modified status code.
func (e ErrNotModified) HTTPStatus() int {
	return http.StatusNotModified
}

// ErrorCode returns "ErrNotModified".
func (e ErrNotModified) ErrorCode() string {
	return "ErrNotModified"
}

// StatusOf returns the HTTP status code for err, or def if nothing in
// err's chain carries one.
func StatusOf(err error, def int) int {
	var status ErrorStatus
	if errors.As(err, &status) {
		return status.HTTPStatus()
	}
	return def
}

// FromError populates an ErrorResponse to fill in its fields based
// on an error value.  The Error field is taken from the first error
// in the chain with an ErrorCode() method.
func (e *ErrorResponse) FromError(err error) {
	if e.Error == "" {
		e.Error = "error"
	}
	if e.Message == "" {
		e.Message = err.Error()
	}
	var coder ErrorCoder
	if errors.As(err, &coder) {
		e.Error = coder.ErrorCode()
	}
	var (
		notAllowed  ErrMethodNotAllowed
		unsupported ErrUnsupportedMediaType
		notAccept   ErrNotAcceptable
		failed      ErrPreconditionFailed
		notModified ErrNotModified
		tokened     interface{ Token() string }
	)
	switch {
	case errors.As(err, &notAllowed):
		e.Value = notAllowed.Method
	case errors.As(err, &unsupported):
		e.Value = unsupported.Type
	case errors.As(err, &notAccept):
		e.Value = notAccept.Accept
	case errors.As(err, &failed):
		e.Value = failed.ETag
	case errors.As(err, &notModified):
		e.Value = notModified.ETag
	case errors.As(err, &tokened):
		e.Value = tokened.Token()
	}
}

// ToError converts e back to an error of one of the types in this
// package, if that is possible.  If not, returns a plain error with
// e.Message text.
func (e *ErrorResponse) ToError() error {
	switch e.Error {
	case "ErrUnsupportedMediaType":
		return ErrUnsupportedMediaType{Type: e.Value}
	case "ErrNotFound":
		return ErrNotFound{Err: errors.New(e.Message)}
	case "ErrBadRequest", "ErrParse":
		return ErrBadRequest{Err: errors.New(e.Message)}
	case "ErrNotAcceptable":
		return ErrNotAcceptable{Accept: e.Value}
	case "ErrMethodNotAllowed":
		return ErrMethodNotAllowed{Method: e.Value}
	case "ErrPreconditionFailed":
		return ErrPreconditionFailed{ETag: e.Value}
	case "ErrNotModified":
		return ErrNotModified{ETag: e.Value}
	default:
		return errors.New(e.Message)
	}
}

// FromPanic populates an error response based on a panic.  Typical use
// is:
//
//     defer func() {
//         if obj := recover(); obj != nil {
//             resp := restdata.ErrorResponse{}
//             resp.FromPanic(obj)
//             // write resp out as makes sense
//         }
//     }()
func (e *ErrorResponse) FromPanic(obj interface{}) {
	e.Error = "panic"
	if recoveredError, isError := obj.(error); isError {
		e.Message = recoveredError.Error()
	} else {
		e.Message = fmt.Sprintf("%+v", obj)
	}
	var stack [4096]byte
	len := runtime.Stack(stack[:], false)
	e.Stack = strings.TrimSpace(string(stack[:len]))
}
