// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

// This file provides generic REST client code.

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/diffeo/go-restview/restdata"
	"github.com/jtacoma/uritemplates"
	"github.com/ugorji/go/codec"
)

// acceptHeader prefers HAL but takes plain JSON.
const acceptHeader = restdata.HALJSONMediaType + ", " + restdata.JSONMediaType + ";q=0.9"

// Response is the outcome of one request that did not fail.
type Response struct {
	// StatusCode is the HTTP status the server sent.  For a GET
	// it is http.StatusNotModified if Body came from the cache.
	StatusCode int

	// ETag is the verbatim ETag: header, if any.
	ETag string

	// Location is the Location: header, if any.
	Location string

	// ContentType is the Content-Type: header of Body.
	ContentType string

	// Body is the complete response body.
	Body []byte
}

// NotModified returns true if the server confirmed that the cached
// representation is current.
func (r *Response) NotModified() bool {
	return r.StatusCode == http.StatusNotModified
}

// Decode deserializes the response body into out, which must be of
// pointer type.  Nested JSON objects decode as
// map[string]interface{}.
func (r *Response) Decode(out interface{}) error {
	if !restdata.IsJSON(r.ContentType) {
		return restdata.ErrUnsupportedMediaType{Type: r.ContentType}
	}
	decoder := codec.NewDecoderBytes(r.Body, newHandle())
	return decoder.Decode(out)
}

func newHandle() *codec.JsonHandle {
	handle := restdata.NewJSONHandle()
	handle.MapType = reflect.TypeOf(map[string]interface{}(nil))
	return handle
}

// Template expands an RFC 6570 URI template and resolves the result
// against the client's base URL.  String values in vars, and the
// elements of string slices, are encoded as single path segments
// first.
func (c *Client) Template(template string, vars map[string]interface{}) (*url.URL, error) {
	// Build the template object
	tmpl, err := uritemplates.Parse(template)
	if err != nil {
		return nil, err
	}

	// Encode all of the values if required
	encoded := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		switch vv := v.(type) {
		case string:
			encoded[k] = restdata.MaybeEncodeName(vv)
		case []string:
			tt := make([]string, len(vv))
			for i, s := range vv {
				tt[i] = restdata.MaybeEncodeName(s)
			}
			encoded[k] = tt
		default:
			encoded[k] = v
		}
	}

	// Expand the template to produce a string
	expanded, err := tmpl.Expand(encoded)
	if err != nil {
		return nil, err
	}

	return c.BaseURL.Parse(expanded)
}

// Do performs some HTTP action.  If in is non-nil, the request data is
// serialized and sent as the body of, for instance, a PUT request.
// A 2xx or 304 response is returned with its body read in full; any
// other status becomes an error, one of the restdata error types if
// the server sent an ErrorResponse.
func (c *Client) Do(ctx context.Context, method string, u *url.URL, header http.Header, in interface{}) (resp *Response, err error) {
	// Set up the body as serialized JSON, if there is one
	var (
		body   io.Reader
		reader *io.PipeReader
		writer *io.PipeWriter
	)
	if in != nil {
		reader, writer = io.Pipe()
		encoder := codec.NewEncoder(writer, restdata.NewJSONHandle())
		finished := make(chan error, 1)
		go func() {
			err := encoder.Encode(in)
			err = firstError(err, writer.Close())
			finished <- err
		}()
		defer func() {
			err = firstError(err, <-finished)
		}()
		body = reader
	}

	// Create the request and set headers
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		if reader != nil {
			reader.CloseWithError(err)
		}
		return nil, err
	}
	for name, values := range header {
		req.Header[name] = values
	}
	if in != nil {
		req.Header.Set("Content-Type", restdata.JSONMediaType)
	}
	req.Header.Set("Accept", acceptHeader)

	// Actually do the request
	httpResp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = firstError(err, httpResp.Body.Close())
	}()

	// Check the response code
	if err = checkHTTPStatus(httpResp); err != nil {
		return nil, err
	}

	resp = &Response{
		StatusCode:  httpResp.StatusCode,
		ETag:        httpResp.Header.Get("ETag"),
		Location:    httpResp.Header.Get("Location"),
		ContentType: httpResp.Header.Get("Content-Type"),
	}
	resp.Body, err = ioutil.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// ErrorHTTP is a catch-all error for non-successes returned from the
// REST endpoint.
type ErrorHTTP struct {
	// Response holds a pointer to the failing HTTP response.
	Response *http.Response

	// Body holds the contents of the message body, presumed to
	// be text.
	Body string
}

func (e ErrorHTTP) Error() string {
	return e.Response.Status
}

// HTTPStatus returns the status code of the failing response.
func (e ErrorHTTP) HTTPStatus() int {
	return e.Response.StatusCode
}

// checkHTTPStatus examines an HTTP response and returns an error if
// it is not successful.
func checkHTTPStatus(resp *http.Response) error {
	if resp.StatusCode/100 == 2 || resp.StatusCode == http.StatusNotModified {
		return nil
	}

	// Always collect the entire body; we will need it as a fallback
	// and can only parse it once.
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// Take a shot at decoding it as a better error
	var errResp restdata.ErrorResponse
	contentType := resp.Header.Get("Content-Type")
	err2 := restdata.Decode(contentType, bytes.NewReader(body), &errResp)
	if err2 == nil && errResp.Error != "" {
		// Given that we decoded that successfully, return the
		// server-provided error
		err = errResp.ToError()
		if notAllowed, ok := err.(restdata.ErrMethodNotAllowed); ok {
			notAllowed.Allowed = splitAllow(resp.Header.Get("Allow"))
			err = notAllowed
		}
		return err
	}

	return ErrorHTTP{Response: resp, Body: string(body)}
}

// splitAllow parses an Allow: header value.
func splitAllow(allow string) []string {
	var methods []string
	for _, method := range strings.Split(allow, ",") {
		if method = strings.TrimSpace(method); method != "" {
			methods = append(methods, method)
		}
	}
	return methods
}

func firstError(e1, e2 error) error {
	if e1 != nil {
		return e1
	}
	return e2
}
