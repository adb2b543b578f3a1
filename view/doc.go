// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package view provides a base for REST resources served over HTTP.
//
// A resource is described by a Factory that builds a View for each
// request.  The View answers the HTTP verbs it supports; the Handler
// takes care of everything around that: content negotiation against
// the Accept: header, parsing the "embed" query parameter,
// conditional requests against the View's entity tag, choosing a
// status code, and writing the result, either whole or streamed
// through package jsonstream.
//
//     type thing struct {
//         view.Base
//         name string
//     }
//
//     func (t *thing) Get(ctx *view.Context) (interface{}, error) {
//         return map[string]string{"name": t.name}, nil
//     }
//
//     router := mux.NewRouter()
//     view.Register(router, "thing", "/things/{thing}", func(ctx *view.Context) (view.View, error) {
//         return &thing{name: ctx.Vars["thing"]}, nil
//     }, logger)
//
// Views return plain values, Created, or a jsonstream.Source or
// jsonstream.Nested to stream a large collection.  Errors are turned
// into restdata.ErrorResponse bodies, with the status code taken from
// the error's HTTPStatus() method if it has one.
//
// The HAL helpers in this package (Resource, Render, StreamCollection)
// produce application/hal+json documents with "_links" and
// "_embedded" sections, honoring the embed tree.
package view
