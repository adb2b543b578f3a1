// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package etag

import (
	"net/http"

	"github.com/diffeo/go-restview/restdata"
)

// Outcome is the result of evaluating request preconditions.
type Outcome int

const (
	// Proceed means the request should be handled normally.
	Proceed Outcome = iota

	// NotModified means a GET or HEAD request should get a 304
	// response with no body.
	NotModified

	// PreconditionFailed means the request should be rejected
	// with 412.
	PreconditionFailed
)

func (o Outcome) String() string {
	switch o {
	case Proceed:
		return "Proceed"
	case NotModified:
		return "NotModified"
	case PreconditionFailed:
		return "PreconditionFailed"
	default:
		return "Outcome(?)"
	}
}

// Evaluate decides what to do with a request given its If-Match: and
// If-None-Match: sets (nil if absent) and the current entity tag of
// the target resource (nil if the resource does not exist).  This
// follows the precedence in RFC 9110 section 13.2.2, leaving out the
// date-based conditions.
func Evaluate(method string, ifMatch, ifNoneMatch *Set, current *ETag) Outcome {
	if ifMatch != nil {
		// "*" matches any current representation; otherwise
		// If-Match uses the strong comparison
		if current == nil {
			return PreconditionFailed
		}
		if !ifMatch.Any && !ifMatch.matchStrong(*current) {
			return PreconditionFailed
		}
	}
	if ifNoneMatch != nil {
		matched := false
		if current != nil {
			matched = ifNoneMatch.Any || ifNoneMatch.matchWeak(*current)
		}
		if matched {
			if method == http.MethodGet || method == http.MethodHead {
				return NotModified
			}
			return PreconditionFailed
		}
	}
	return Proceed
}

// EvaluateRequest reads the conditional headers from req and
// evaluates them against current.  A NotModified or
// PreconditionFailed outcome is returned as the matching restdata
// error; malformed headers give restdata.ErrBadRequest.
func EvaluateRequest(req *http.Request, current *ETag) error {
	ifMatch, err := FromHeader(req.Header, "If-Match")
	if err != nil {
		return err
	}
	ifNoneMatch, err := FromHeader(req.Header, "If-None-Match")
	if err != nil {
		return err
	}
	var tag string
	if current != nil {
		tag = current.String()
	}
	switch Evaluate(req.Method, ifMatch, ifNoneMatch, current) {
	case NotModified:
		return restdata.ErrNotModified{ETag: tag}
	case PreconditionFailed:
		return restdata.ErrPreconditionFailed{ETag: tag}
	}
	return nil
}
