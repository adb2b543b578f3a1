// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package middleware

import (
	"context"
	"net/http"

	"github.com/satori/go.uuid"
)

// RequestIDHeader is the request and response header carrying the
// request ID.
const RequestIDHeader = "X-Request-Id"

// maxRequestIDLength bounds client-supplied request IDs so they are
// not used to stuff the logs.
const maxRequestIDLength = 128

type requestIDKey struct{}

// RequestID tags every request with an ID: the client's
// X-Request-Id header if it sent a reasonable one, or else a new
// random UUID.  The ID is echoed in the response header and available
// to inner handlers through RequestIDFrom.
func RequestID() Middleware {
	return Func(func(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewV4().String()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next(w, r.WithContext(ctx))
	})
}

// RequestIDFrom returns the request ID stored by RequestID, or the
// empty string.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
