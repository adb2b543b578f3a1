// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package view

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"

	"github.com/diffeo/go-restview/etag"
	"github.com/diffeo/go-restview/jsonstream"
	"github.com/diffeo/go-restview/restdata"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/ugorji/go/codec"
)

// fixture is a tiny API of named, colored things:
//
//     /                  root
//     /things            collection
//     /things/{thing}    one thing
type fixture struct {
	things map[string]string
	router *mux.Router
	logger *logrus.Logger
	hook   *logtest.Hook
}

func newFixture() *fixture {
	logger, hook := logtest.NewNullLogger()
	f := &fixture{
		things: map[string]string{"a": "red", "b": "blue"},
		router: mux.NewRouter(),
		logger: logger,
		hook:   hook,
	}
	Register(f.router, "root", "/", func(ctx *Context) (View, error) {
		return &rootView{f: f}, nil
	}, logger)
	Register(f.router, "things", "/things", func(ctx *Context) (View, error) {
		return &thingsView{f: f}, nil
	}, logger)
	Register(f.router, "thing", "/things/{thing}", func(ctx *Context) (View, error) {
		return f.thing(ctx.Vars["thing"]), nil
	}, logger)
	return f
}

func (f *fixture) thing(name string) *thingView {
	color, exists := f.things[name]
	return &thingView{f: f, name: name, color: color, exists: exists}
}

// do sends a request through the router.  header holds alternating
// header names and values.
func (f *fixture) do(method, target, body string, header ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) (restdata.ErrorResponse, error) {
	var resp restdata.ErrorResponse
	err := codec.NewDecoder(w.Body, restdata.NewJSONHandle()).Decode(&resp)
	return resp, err
}

type rootView struct {
	Base
	f *fixture
}

func (v *rootView) Link(ctx *Context) (restdata.Link, error) {
	href, err := ctx.URL("root")
	return restdata.Link{Href: href, Title: "Root"}, err
}

func (v *rootView) Document(ctx *Context) (Document, error) {
	var doc Document
	doc.Link("things", &thingsView{f: v.f})
	tmpl, err := ctx.Template("thing", "thing")
	doc.Link("thing", restdata.Link{Href: tmpl, Templated: true})
	return doc, err
}

func (v *rootView) Get(ctx *Context) (interface{}, error) {
	return Render(ctx, v, ctx.Embed)
}

type thingsView struct {
	Base
	f *fixture
}

func (v *thingsView) Link(ctx *Context) (restdata.Link, error) {
	href, err := ctx.URL("things")
	return restdata.Link{Href: href, Title: "Things"}, err
}

func (v *thingsView) items() []Resource {
	names := make([]string, 0, len(v.f.things))
	for name := range v.f.things {
		names = append(names, name)
	}
	sort.Strings(names)
	items := make([]Resource, len(names))
	for i, name := range names {
		items[i] = v.f.thing(name)
	}
	return items
}

func (v *thingsView) Document(ctx *Context) (Document, error) {
	var doc Document
	doc.Link("up", &rootView{f: v.f})
	doc.Link("item", Deferred(func(ctx *Context) (interface{}, error) {
		return v.items(), nil
	}))
	return doc, nil
}

func (v *thingsView) Get(ctx *Context) (interface{}, error) {
	var items []interface{}
	for _, item := range v.items() {
		items = append(items, item)
	}
	return StreamCollection(ctx, v, "item", jsonstream.SliceSource(items...), ctx.Embed)
}

func (v *thingsView) Post(ctx *Context) (interface{}, error) {
	var in struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := ctx.Decode(&in); err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, restdata.ErrBadRequest{Err: errors.New("missing name")}
	}
	v.f.things[in.Name] = in.Color
	thing := v.f.thing(in.Name)
	link, err := thing.Link(ctx)
	if err != nil {
		return nil, err
	}
	body, err := Render(ctx, thing, nil)
	return Created{Location: link.Href, Body: body}, err
}

func (v *thingsView) Allow() []string {
	return []string{"GET", "HEAD", "POST", "OPTIONS"}
}

type thingView struct {
	Base
	f      *fixture
	name   string
	color  string
	exists bool
}

func (v *thingView) Link(ctx *Context) (restdata.Link, error) {
	href, err := ctx.URL("thing", "thing", v.name)
	return restdata.Link{Href: href, Title: v.name}, err
}

func (v *thingView) Document(ctx *Context) (Document, error) {
	var doc Document
	doc.Set("name", v.name)
	doc.Set("color", v.color)
	doc.Link("up", &thingsView{f: v.f})
	return doc, nil
}

func (v *thingView) ETag(ctx *Context) (*etag.ETag, error) {
	if !v.exists {
		return nil, nil
	}
	tag := etag.Strong(v.color)
	return &tag, nil
}

func (v *thingView) Allow() []string {
	return []string{"GET", "HEAD", "PUT", "DELETE", "OPTIONS"}
}

func (v *thingView) missing() error {
	return restdata.ErrNotFound{Err: fmt.Errorf("no thing %q", v.name)}
}

func (v *thingView) Get(ctx *Context) (interface{}, error) {
	if !v.exists {
		return nil, v.missing()
	}
	return Render(ctx, v, ctx.Embed)
}

func (v *thingView) Put(ctx *Context) (interface{}, error) {
	var in struct {
		Color string `json:"color"`
	}
	if err := ctx.Decode(&in); err != nil {
		return nil, err
	}
	v.f.things[v.name] = in.Color
	ctx.Header.Set("ETag", etag.Strong(in.Color).String())
	if !v.exists {
		link, err := v.Link(ctx)
		return Created{Location: link.Href}, err
	}
	return nil, nil
}

func (v *thingView) Delete(ctx *Context) (interface{}, error) {
	if !v.exists {
		return nil, v.missing()
	}
	delete(v.f.things, v.name)
	return nil, nil
}

// register adds a one-off route with a fixed Get behavior.
func (f *fixture) register(path string, get func(ctx *Context) (interface{}, error)) {
	f.router.Path(path).Handler(&Handler{
		Factory: func(ctx *Context) (View, error) {
			return getter(get), nil
		},
		Router: f.router,
		Logger: f.logger,
	})
}

type getter func(ctx *Context) (interface{}, error)

func (g getter) Get(ctx *Context) (interface{}, error)    { return g(ctx) }
func (g getter) Put(ctx *Context) (interface{}, error)    { return nil, notAllowed(ctx) }
func (g getter) Post(ctx *Context) (interface{}, error)   { return nil, notAllowed(ctx) }
func (g getter) Delete(ctx *Context) (interface{}, error) { return nil, notAllowed(ctx) }

// failResponseWriter accepts headers but fails every write.
type failResponseWriter struct {
	Headers    http.Header
	StatusCode int
}

func (rw *failResponseWriter) Header() http.Header {
	if rw.Headers == nil {
		rw.Headers = make(http.Header)
	}
	return rw.Headers
}

func (rw *failResponseWriter) Write([]byte) (int, error) {
	return 0, errors.New("foo")
}

func (rw *failResponseWriter) WriteHeader(code int) {
	rw.StatusCode = code
}
