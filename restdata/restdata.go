// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restdata defines common data structures shared between the
// view, admin, and restclient packages.  Resources are passed across
// the wire as HAL documents (application/hal+json), with plain
// application/json accepted as an equivalent.
//
// HAL Documents
//
// Every resource representation is a JSON object.  Its "_links"
// member maps link relation names to a Link object or an array of
// Link objects; "self" is always present.  If the client asked for
// related resources to be inlined with the "embed" query parameter,
// an "_embedded" member maps the same relation names to the full
// representations of the linked resources.  For instance, the root
// document of the admin API with ?embed=datasets looks like
//
//     {
//         "_links": {
//             "self": {"href": "/", "title": "Administration API"},
//             "accounts": {"href": "/accounts", "title": "Accounts"},
//             "datasets": {"href": "/datasets", "title": "Datasets"}
//         },
//         "_embedded": {
//             "datasets": {
//                 "_links": {...}
//             }
//         }
//     }
//
// The embed parameter is a comma-separated list of dotted relation
// paths; "accounts.item" embeds the account list and, inside it, each
// account.
//
// Link href values may be RFC 6570 URI templates, in which case the
// link has "templated": true.
//
// HTTP Considerations
//
// Every resource that supports GET also supports HEAD.  Responses
// carry an ETag header when the resource has a validator, and clients
// should send If-None-Match on repeated GET requests and If-Match on
// PUT and DELETE requests.  Collections may be streamed; a client
// reading one must be prepared for the connection to be cut short if
// the server fails partway through.
//
// Errors
//
// Most errors are returned as encodings of the ErrorResponse type,
// together with a failing HTTP status code.  If Go server code
// panics, this should be captured and returned as an ErrorResponse
// with error code "panic".
package restdata

// HALJSONMediaType is the preferred MIME type for resource
// representations.
const HALJSONMediaType = "application/hal+json"

// JSONMediaType is plain JSON.  It is produced and accepted as an
// alternative to HALJSONMediaType; the document structure is the same.
const JSONMediaType = "application/json"

// MediaTypes lists the representations this module can produce, in
// order of preference.
var MediaTypes = []string{HALJSONMediaType, JSONMediaType}

// Link is a HAL link object.
type Link struct {
	// Href is the target URL, or a URI template if Templated is
	// set.
	Href string `json:"href"`

	// Templated is true if Href is an RFC 6570 URI template.
	Templated bool `json:"templated,omitempty"`

	// Title is a human-readable label for the link.
	Title string `json:"title,omitempty"`

	// Name is a secondary key for selecting among links that share
	// a relation.
	Name string `json:"name,omitempty"`
}

// ErrorResponse can be a response to any method, generally accompanied
// by a failing HTTP status code.
type ErrorResponse struct {
	// Error is a short description of the failure.  This may be
	// the name of one of the error types in this package, the
	// string "panic", or the string "error" for some other kind of
	// error.
	Error string `json:"error"`

	// Message is a human-readable description of the failure.
	Message string `json:"message"`

	// Value holds an additional piece of data, such as the
	// offending method or embed token.
	Value string `json:"value,omitempty"`

	// Stack holds a stack trace if the server panicked.
	Stack string `json:"stack,omitempty"`
}
