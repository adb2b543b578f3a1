// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package middleware

import (
	"net/http"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
)

// Logger writes one log entry per request once the inner handlers
// finish, including requests that end in a panic.
func Logger(logger logrus.FieldLogger, clk clock.Clock) Middleware {
	return Func(func(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		rw := responseWriter(w)
		start := clk.Now()
		defer func() {
			status := rw.Status()
			if status == 0 {
				// the server will send 200 for a handler
				// that wrote nothing
				status = http.StatusOK
			}
			fields := logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   status,
				"size":     rw.Size(),
				"duration": clk.Now().Sub(start),
			}
			if id := RequestIDFrom(r.Context()); id != "" {
				fields["request_id"] = id
			}
			logger.WithFields(fields).Info("Request")
		}()
		next(rw, r)
	})
}
