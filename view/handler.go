// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package view

import (
	"errors"
	"net/http"
	"strings"

	"github.com/diffeo/go-restview/etag"
	"github.com/diffeo/go-restview/jsonstream"
	"github.com/diffeo/go-restview/negotiate"
	"github.com/diffeo/go-restview/restdata"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

// Handler serves one resource through the Views its Factory builds.
type Handler struct {
	// Factory builds the View for each request.
	Factory Factory

	// Router is passed on to views for building URLs.
	Router *mux.Router

	// Logger receives server-side failures.  If nil, the logrus
	// standard logger is used.
	Logger logrus.FieldLogger

	// MediaTypes lists the response types to negotiate among.  If
	// empty, restdata.MediaTypes is used.
	MediaTypes []string
}

// Register adds a named route to router that serves factory's views.
func Register(router *mux.Router, name, path string, factory Factory, logger logrus.FieldLogger) *mux.Route {
	return router.Path(path).Name(name).Handler(&Handler{
		Factory: factory,
		Router:  router,
		Logger:  logger,
	})
}

// exchange tracks one request through the handler.
type exchange struct {
	w         http.ResponseWriter
	req       *http.Request
	logger    logrus.FieldLogger
	mediaType string
	started   bool
	current   *etag.ETag
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	x := &exchange{
		w:         w,
		req:       req,
		logger:    logger.WithFields(logrus.Fields{"method": req.Method, "path": req.URL.Path}),
		mediaType: restdata.JSONMediaType,
	}
	defer x.recover()
	w.Header().Add("Vary", "Accept")

	// Negotiate first: this determines what format an error
	// message could be sent back as.
	available := h.MediaTypes
	if len(available) == 0 {
		available = restdata.MediaTypes
	}
	mediaType, err := negotiate.Select(req.Header.Get("Accept"), available)
	if err != nil {
		x.fail(err)
		return
	}
	x.mediaType = mediaType

	ctx, err := newContext(req, w, h.Router, x.logger)
	if err != nil {
		x.fail(err)
		return
	}
	ctx.MediaType = mediaType

	v, err := h.Factory(ctx)
	if err != nil {
		x.fail(err)
		return
	}

	if tagger, ok := v.(ETagger); ok {
		x.current, err = tagger.ETag(ctx)
		if err != nil {
			x.fail(err)
			return
		}
	}
	if err = etag.EvaluateRequest(req, x.current); err != nil {
		x.fail(err)
		return
	}

	out, err := x.dispatch(v, ctx)
	if err != nil {
		var notAllowed restdata.ErrMethodNotAllowed
		if errors.As(err, &notAllowed) && notAllowed.Allowed == nil {
			notAllowed.Allowed = allowed(v, ctx)
			err = notAllowed
		}
		x.fail(err)
		return
	}
	x.succeed(out)
}

// dispatch calls the View method for the request's verb.
func (x *exchange) dispatch(v View, ctx *Context) (interface{}, error) {
	switch x.req.Method {
	case http.MethodGet, http.MethodHead:
		return v.Get(ctx)
	case http.MethodPut:
		return v.Put(ctx)
	case http.MethodPost:
		return v.Post(ctx)
	case http.MethodDelete:
		return v.Delete(ctx)
	case http.MethodOptions:
		x.w.Header().Set("Allow", strings.Join(allowed(v, ctx), ", "))
		return nil, nil
	}
	return nil, restdata.ErrMethodNotAllowed{Method: x.req.Method}
}

// succeed writes a successful result.
func (x *exchange) succeed(out interface{}) {
	header := x.w.Header()
	if x.current != nil && header.Get("ETag") == "" && isSafe(x.req.Method) {
		header.Set("ETag", x.current.String())
	}
	switch result := out.(type) {
	case nil:
		x.writeHeader(http.StatusNoContent)
	case Created:
		if result.Location != "" {
			header.Set("Location", result.Location)
		}
		x.writeBody(http.StatusCreated, result.Body)
	default:
		x.writeBody(http.StatusOK, out)
	}
}

// writeBody sends a response value.  Plain values are encoded in
// full before the status line goes out, so an encoding failure can
// still become a 500 response.  Streams are written as they are
// produced.
func (x *exchange) writeBody(status int, body interface{}) {
	var stream *jsonstream.Encoder
	switch b := body.(type) {
	case nil:
		x.writeHeader(status)
		return
	case jsonstream.Nested:
		stream = jsonstream.NewEncoder(b.Source, b.Mode)
	case jsonstream.Source:
		stream = jsonstream.NewEncoder(b, jsonstream.Array)
	}

	if stream == nil {
		encoded, err := restdata.Marshal(restdata.NewJSONHandle(), body)
		if err != nil {
			x.fail(err)
			return
		}
		x.w.Header().Set("Content-Type", x.mediaType)
		x.writeHeader(status)
		if x.req.Method == http.MethodHead {
			return
		}
		if _, err := x.w.Write(encoded); err != nil {
			// Too late to say anything about it
			x.logger.WithField("err", err).Debug("Could not write response")
		}
		return
	}

	x.w.Header().Set("Content-Type", x.mediaType)
	x.writeHeader(status)
	if x.req.Method == http.MethodHead {
		_ = stream.Close()
		return
	}
	if _, err := stream.WriteTo(x.req.Context(), x.w); err != nil {
		x.logger.WithField("err", err).Error("Streamed response failed")
		panic(http.ErrAbortHandler)
	}
}

// fail sends an error response.  If the response has already begun,
// the best that can be done is to drop the connection.
func (x *exchange) fail(err error) {
	if x.started {
		x.logger.WithField("err", err).Error("Error after response started")
		panic(http.ErrAbortHandler)
	}
	status := restdata.StatusOf(err, http.StatusInternalServerError)
	header := x.w.Header()

	switch status {
	case http.StatusNotModified:
		if x.current != nil {
			header.Set("ETag", x.current.String())
		}
		x.writeHeader(status)
		return
	case http.StatusMethodNotAllowed:
		var notAllowed restdata.ErrMethodNotAllowed
		if errors.As(err, &notAllowed) && len(notAllowed.Allowed) > 0 {
			header.Set("Allow", strings.Join(notAllowed.Allowed, ", "))
		}
	case http.StatusNotAcceptable:
		// we could not agree on anything else
		x.mediaType = restdata.JSONMediaType
	}

	entry := x.logger.WithFields(logrus.Fields{"err": err, "status": status})
	if status >= 500 {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request failed")
	}

	response := restdata.ErrorResponse{}
	response.FromError(err)
	x.writeError(status, response)
}

// recover catches a panic from a View.  Before the response starts it
// becomes a 500 error; after that the connection is aborted.
func (x *exchange) recover() {
	recovered := recover()
	if recovered == nil {
		return
	}
	if recovered == http.ErrAbortHandler || x.started {
		panic(http.ErrAbortHandler)
	}
	response := restdata.ErrorResponse{}
	response.FromPanic(recovered)
	x.logger.WithFields(logrus.Fields{
		"panic": response.Message,
		"stack": response.Stack,
	}).Error("Panic in view")
	x.writeError(http.StatusInternalServerError, response)
}

func (x *exchange) writeError(status int, response restdata.ErrorResponse) {
	x.w.Header().Del("ETag")
	x.w.Header().Set("Content-Type", x.mediaType)
	x.writeHeader(status)
	if x.req.Method == http.MethodHead {
		return
	}
	err := codec.NewEncoder(x.w, restdata.NewJSONHandle()).Encode(response)
	if err != nil {
		x.logger.WithField("err", err).Debug("Could not write error response")
	}
}

func (x *exchange) writeHeader(status int) {
	x.started = true
	x.w.WriteHeader(status)
}

func isSafe(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}
