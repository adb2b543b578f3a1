// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package middleware

import (
	"net/http"

	"github.com/diffeo/go-restview/restdata"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

// Recover turns a panic in an inner handler into a 500 Internal
// Server Error with a restdata.ErrorResponse body.
//
// If the inner handler had already started its response, or panicked
// with http.ErrAbortHandler to cut off a failed stream, there is no
// clean response left to send; Recover panics with
// http.ErrAbortHandler so the server drops the connection.
func Recover(logger logrus.FieldLogger) Middleware {
	return Func(func(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		rw := responseWriter(w)
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}
			response := restdata.ErrorResponse{}
			response.FromPanic(recovered)
			logger.WithFields(logrus.Fields{
				"panic":  response.Message,
				"stack":  response.Stack,
				"method": r.Method,
				"path":   r.URL.Path,
			}).Error("Panic serving request")
			if rw.Written() {
				panic(http.ErrAbortHandler)
			}
			rw.Header().Set("Content-Type", restdata.JSONMediaType)
			rw.WriteHeader(http.StatusInternalServerError)
			encoder := codec.NewEncoder(rw, restdata.NewJSONHandle())
			if err := encoder.Encode(response); err != nil {
				logger.WithField("err", err).Error("Could not write panic response")
			}
		}()
		next(rw, r)
	})
}
