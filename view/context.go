// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package view

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/diffeo/go-restview/embed"
	"github.com/diffeo/go-restview/restdata"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// EmbedParam is the query parameter holding the embed tree.
const EmbedParam = "embed"

// Context holds all of the information a View needs about its
// request.
type Context struct {
	// Request is the HTTP request being served.
	Request *http.Request

	// Vars holds the route variables, already decoded with
	// restdata.MaybeDecodeName.
	Vars map[string]string

	// Query holds the parsed URL query parameters.
	Query url.Values

	// Embed is the parsed "embed" query parameter.  It is never
	// nil.
	Embed embed.Tree

	// MediaType is the negotiated response media type.
	MediaType string

	// Router is the router the request arrived through, for
	// building URLs to other resources.
	Router *mux.Router

	// Header is the response header map.  Views may add headers
	// to it, for instance an updated ETag after a PUT.
	Header http.Header

	// Logger is the request's logger.
	Logger logrus.FieldLogger
}

// newContext extracts everything but the media type from a request.
func newContext(req *http.Request, w http.ResponseWriter, router *mux.Router, logger logrus.FieldLogger) (*Context, error) {
	ctx := &Context{
		Request: req,
		Vars:    make(map[string]string),
		Query:   req.URL.Query(),
		Router:  router,
		Header:  w.Header(),
		Logger:  logger,
	}
	for name, value := range mux.Vars(req) {
		decoded, err := restdata.MaybeDecodeName(value)
		if err != nil {
			return ctx, err
		}
		ctx.Vars[name] = decoded
	}
	var err error
	ctx.Embed, err = embed.FromQuery(ctx.Query, EmbedParam)
	if ctx.Embed == nil {
		ctx.Embed = embed.Tree{}
	}
	return ctx, err
}

// Context returns the request's context.Context, which is canceled if
// the client goes away.
func (ctx *Context) Context() context.Context {
	return ctx.Request.Context()
}

// Decode decodes the request body into out, which must be a pointer.
func (ctx *Context) Decode(out interface{}) error {
	return restdata.Decode(ctx.Request.Header.Get("Content-Type"), ctx.Request.Body, out)
}

// BoolParam looks at ctx.Query for a parameter named name.  If it has
// a normally-truthy value (1, on, false, no, ...) then return that
// value.  Otherwise (empty string, foo, ...) return def.
func (ctx *Context) BoolParam(name string, def bool) bool {
	switch strings.ToLower(ctx.Query.Get(name)) {
	case "0", "f", "n", "false", "off", "no":
		return false
	case "1", "t", "y", "true", "on", "yes":
		return true
	default:
		return def
	}
}

// URLs starts building URLs to named routes of ctx.Router, with
// route variables given as name/value pairs.
func (ctx *Context) URLs(params ...string) *URLBuilder {
	return BuildURLs(ctx.Router, params...)
}

// URL returns the URL of a named route.
func (ctx *Context) URL(route string, params ...string) (string, error) {
	var out string
	err := ctx.URLs(params...).URL(&out, route).Error
	return out, err
}

// Template returns a URI template for a named route, leaving the
// route variable param as a template expression.
func (ctx *Context) Template(route, param string, params ...string) (string, error) {
	var out string
	err := ctx.URLs(params...).Template(&out, route, param).Error
	return out, err
}
