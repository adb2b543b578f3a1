// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package middleware composes cross-cutting HTTP behavior (logging,
// request IDs, metrics, panic recovery) around a handler.
//
// A Middleware has the same shape as a negroni.Handler: it gets the
// response writer, the request, and the next handler in the chain,
// and it may act before calling next, after it, or instead of it.
// Any negroni.Handler can be used directly.
//
// A Chain is built once at startup:
//
//     chain := middleware.New(
//         middleware.RequestID(),
//         middleware.Logger(logrus.StandardLogger(), clock.New()),
//         middleware.Recover(logrus.StandardLogger()),
//     )
//     http.ListenAndServe(":8080", chain.Then(router))
//
// The first middleware listed is the outermost: it sees the request
// first and the response last.
package middleware

import (
	"net/http"

	"github.com/urfave/negroni"
)

// Middleware wraps the rest of a handler chain.
type Middleware interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request, next http.HandlerFunc)
}

// Func adapts an ordinary function to a Middleware.
type Func func(w http.ResponseWriter, r *http.Request, next http.HandlerFunc)

// ServeHTTP calls f(w, r, next).
func (f Func) ServeHTTP(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	f(w, r, next)
}

// Wrap adapts a conventional func(http.Handler) http.Handler
// middleware constructor.
func Wrap(constructor func(http.Handler) http.Handler) Middleware {
	return Func(func(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		constructor(next).ServeHTTP(w, r)
	})
}

// Chain is an ordered, immutable list of middlewares.  The zero Chain
// is empty and usable.
type Chain struct {
	middlewares []Middleware
}

// New creates a chain from a list of middlewares, outermost first.
func New(middlewares ...Middleware) Chain {
	return Chain{}.Append(middlewares...)
}

// Append returns a new chain with more middlewares added inside the
// existing ones.  c itself is unchanged.
func (c Chain) Append(middlewares ...Middleware) Chain {
	all := make([]Middleware, 0, len(c.middlewares)+len(middlewares))
	all = append(all, c.middlewares...)
	for _, m := range middlewares {
		if m == nil {
			panic("middleware: nil Middleware")
		}
		all = append(all, m)
	}
	return Chain{middlewares: all}
}

// Len returns the number of middlewares in the chain.
func (c Chain) Len() int {
	return len(c.middlewares)
}

// Then wraps h in the chain.  The result can be shared by any number
// of concurrent requests.
func (c Chain) Then(h http.Handler) http.Handler {
	if h == nil {
		h = http.NotFoundHandler()
	}
	handlers := make([]negroni.Handler, 0, len(c.middlewares)+1)
	for _, m := range c.middlewares {
		handlers = append(handlers, m)
	}
	handlers = append(handlers, negroni.Wrap(h))
	return negroni.New(handlers...)
}

// responseWriter returns w as a negroni.ResponseWriter, wrapping it
// in a new one if needed.  Layers such as Metrics substitute their
// own writers, so a middleware that needs the status cannot count on
// the one Then installed.
func responseWriter(w http.ResponseWriter) negroni.ResponseWriter {
	if rw, ok := w.(negroni.ResponseWriter); ok {
		return rw
	}
	return negroni.NewResponseWriter(w)
}

// Header sets a fixed response header on every response.
func Header(name, value string) Middleware {
	return Func(func(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		w.Header().Set(name, value)
		next(w, r)
	})
}
