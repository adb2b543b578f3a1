// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package view

import (
	"errors"
	"io"
	"net/http"

	"github.com/diffeo/go-restview/etag"
	"github.com/diffeo/go-restview/jsonstream"
	"github.com/diffeo/go-restview/restdata"
)

// View is the request-scoped handler for one resource.  Each method
// returns the response value or an error.  A nil value with no error
// produces 204 No Content.
type View interface {
	Get(ctx *Context) (interface{}, error)
	Put(ctx *Context) (interface{}, error)
	Post(ctx *Context) (interface{}, error)
	Delete(ctx *Context) (interface{}, error)
}

// Base implements every View method by refusing it.  Concrete views
// embed Base and override the verbs they support.
type Base struct{}

func notAllowed(ctx *Context) error {
	return restdata.ErrMethodNotAllowed{Method: ctx.Request.Method}
}

// Get returns restdata.ErrMethodNotAllowed.
func (Base) Get(ctx *Context) (interface{}, error) { return nil, notAllowed(ctx) }

// Put returns restdata.ErrMethodNotAllowed.
func (Base) Put(ctx *Context) (interface{}, error) { return nil, notAllowed(ctx) }

// Post returns restdata.ErrMethodNotAllowed.
func (Base) Post(ctx *Context) (interface{}, error) { return nil, notAllowed(ctx) }

// Delete returns restdata.ErrMethodNotAllowed.
func (Base) Delete(ctx *Context) (interface{}, error) { return nil, notAllowed(ctx) }

// ETagger is implemented by views whose resource has a validator.  ETag
// returns the current entity tag, or nil if the resource does not
// currently exist.
type ETagger interface {
	ETag(ctx *Context) (*etag.ETag, error)
}

// Allower is implemented by views that can list the methods they
// support, for the Allow: header.  A view without it is taken to
// support GET, HEAD, and OPTIONS if its Get answers, and only OPTIONS
// if its Get refuses.  Views that accept PUT, POST, or DELETE should
// implement Allower so those verbs are advertised.
type Allower interface {
	Allow() []string
}

var (
	defaultAllow = []string{http.MethodGet, http.MethodHead, http.MethodOptions}
	optionsOnly  = []string{http.MethodOptions}
)

// allowed lists the methods v supports.  Without an Allower this asks
// v's Get, which as a safe method has no effects, and throws away
// whatever it produced.
func allowed(v View, ctx *Context) []string {
	if allower, ok := v.(Allower); ok {
		return allower.Allow()
	}
	out, err := v.Get(ctx)
	var src jsonstream.Source
	switch o := out.(type) {
	case jsonstream.Nested:
		src = o.Source
	case jsonstream.Source:
		src = o
	}
	if closer, ok := src.(io.Closer); ok {
		_ = closer.Close()
	}
	var notAllowed restdata.ErrMethodNotAllowed
	if errors.As(err, &notAllowed) {
		return optionsOnly
	}
	return defaultAllow
}

// Factory builds the View for a request.  It typically looks up the
// resource named by ctx.Vars and returns restdata.ErrNotFound if it
// does not exist.
type Factory func(ctx *Context) (View, error)

// Created is returned from a view method to indicate that a new
// resource was created.
type Created struct {
	// Location holds the canonical URL to the newly created resource.
	Location string

	// Body contains the object sent in the body of the response.
	Body interface{}
}
