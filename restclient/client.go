// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restclient provides an HTTP client for HAL resources served
// by package view, such as the administration API in package admin.
//
// The server in github.com/diffeo/go-restview/cmd/restviewd can run
// a compatible REST server.  Call New() with the base URL of that
// service; for instance,
//
//     c, err := restclient.New("http://localhost:8080/")
//
// GET requests are conditional: representations that came with an
// ETag are kept in an LRU cache, and a later GET of the same URL
// sends If-None-Match and reuses the cached body on 304 Not Modified.
package restclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/diffeo/go-restview/cache"
	"github.com/diffeo/go-restview/restdata"
	"github.com/sirupsen/logrus"
)

// DefaultCacheSize is the number of representations New's cache
// holds.
const DefaultCacheSize = 256

// Client talks to a REST server.
type Client struct {
	// BaseURL is the root of the server.  Relative references are
	// resolved against it.
	BaseURL *url.URL

	// HTTPClient performs requests; http.DefaultClient if nil.
	HTTPClient *http.Client

	// Cache holds representations for conditional GET requests.
	// If nil, nothing is cached.
	Cache *cache.LRU

	Logger logrus.FieldLogger
}

// New creates a new client for the server at baseURL, which must be
// an absolute URL.
func New(baseURL string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("base URL %q is not absolute", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
		u.RawPath = ""
	}
	return &Client{
		BaseURL:    u,
		HTTPClient: http.DefaultClient,
		Cache:      cache.New(DefaultCacheSize),
		Logger:     logrus.StandardLogger(),
	}, nil
}

// Resolve resolves a URL reference, such as a link href, against the
// base URL.
func (c *Client) Resolve(ref string) (*url.URL, error) {
	return c.BaseURL.Parse(ref)
}

// Get retrieves the resource at ref.  If out is non-nil, the body is
// decoded into it.  If the cache holds a representation of the
// resource, the request is conditional, and on 304 Not Modified the
// cached body is returned with the 304 status.
func (c *Client) Get(ctx context.Context, ref string, out interface{}) (*Response, error) {
	u, err := c.Resolve(ref)
	if err != nil {
		return nil, err
	}
	key := u.String()

	header := http.Header{}
	var cached cache.Entry
	var haveCached bool
	if c.Cache != nil {
		cached, haveCached = c.Cache.Get(key)
	}
	if haveCached {
		header.Set("If-None-Match", cached.ETag)
	}

	resp, err := c.Do(ctx, http.MethodGet, u, header, nil)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.NotModified() && haveCached:
		c.logger().WithField("url", key).Debug("Using cached representation")
		resp.Body = cached.Body
		resp.ContentType = cached.ContentType
		if resp.ETag == "" {
			resp.ETag = cached.ETag
		}
	case resp.NotModified():
		return nil, restdata.ErrNotModified{ETag: resp.ETag}
	case c.Cache == nil:
	case resp.ETag != "":
		c.Cache.Put(key, cache.Entry{
			ETag:        resp.ETag,
			ContentType: resp.ContentType,
			Body:        resp.Body,
		})
	default:
		c.Cache.Remove(key)
	}

	if out != nil {
		if err := resp.Decode(out); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// Put replaces the resource at ref with in.  If ifMatch is non-empty
// it is sent as an If-Match: precondition, typically the ETag from an
// earlier Get.
func (c *Client) Put(ctx context.Context, ref string, in interface{}, ifMatch string) (*Response, error) {
	return c.change(ctx, http.MethodPut, ref, in, ifMatch)
}

// Post submits in to the resource at ref.
func (c *Client) Post(ctx context.Context, ref string, in interface{}) (*Response, error) {
	return c.change(ctx, http.MethodPost, ref, in, "")
}

// Delete deletes the resource at ref, with an optional If-Match:
// precondition.
func (c *Client) Delete(ctx context.Context, ref string, ifMatch string) (*Response, error) {
	return c.change(ctx, http.MethodDelete, ref, nil, ifMatch)
}

// change performs an unsafe request and drops any cached
// representation of its target.
func (c *Client) change(ctx context.Context, method, ref string, in interface{}, ifMatch string) (*Response, error) {
	u, err := c.Resolve(ref)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if ifMatch != "" {
		header.Set("If-Match", ifMatch)
	}
	if c.Cache != nil {
		defer c.Cache.Remove(u.String())
	}
	return c.Do(ctx, method, u, header, in)
}

func (c *Client) logger() logrus.FieldLogger {
	if c.Logger != nil {
		return c.Logger
	}
	return logrus.StandardLogger()
}
