// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package view

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/diffeo/go-restview/restdata"
	"github.com/gorilla/mux"
)

// URLBuilder builds the URLs of several named routes that share route
// variables, keeping the first error.
//
//     var self, item string
//     err := view.BuildURLs(router, "account", id).
//         URL(&self, "account").
//         Template(&item, "account", "account").
//         Error
type URLBuilder struct {
	Router *mux.Router
	Params []string
	Error  error
}

// BuildURLs creates a URLBuilder.  params are route variable
// name/value pairs; the values are encoded with
// restdata.MaybeEncodeName.
func BuildURLs(router *mux.Router, params ...string) *URLBuilder {
	encoded := make([]string, len(params))
	for i, value := range params {
		if i%2 == 1 {
			value = restdata.MaybeEncodeName(value)
		}
		encoded[i] = value
	}
	u := &URLBuilder{Router: router, Params: encoded}
	if router == nil {
		u.Error = fmt.Errorf("no router to build URLs")
	}
	return u
}

// Route returns a named route, or sets u.Error if there is no such
// route.
func (u *URLBuilder) Route(route string) *mux.Route {
	if u.Error != nil {
		return nil
	}
	r := u.Router.Get(route)
	if r == nil {
		u.Error = fmt.Errorf("no such route %q", route)
	}
	return r
}

// URL stores the URL of route in *out.
func (u *URLBuilder) URL(out *string, route string) *URLBuilder {
	var r *mux.Route
	var url *url.URL
	if u.Error == nil {
		r = u.Route(route)
	}
	if u.Error == nil {
		url, u.Error = r.URL(u.Params...)
	}
	if u.Error == nil {
		*out = url.String()
	}
	return u
}

// Template stores in *out a URI template for route, where the route
// variable param is left as the expression {param}.
func (u *URLBuilder) Template(out *string, route, param string) *URLBuilder {
	var r *mux.Route
	var url *url.URL
	if u.Error == nil {
		r = u.Route(route)
	}
	if u.Error == nil {
		params := append([]string{param, "---"}, u.Params...)
		url, u.Error = r.URL(params...)
	}
	if u.Error == nil {
		*out = strings.Replace(url.String(), "---", "{"+param+"}", 1)
	}
	return u
}
