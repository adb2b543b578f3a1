// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package etag models HTTP entity tags and evaluates the If-Match: and
// If-None-Match: request preconditions against them, as described in
// RFC 9110 sections 8.8.3 and 13.
package etag

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/diffeo/go-restview/restdata"
	"github.com/ugorji/go/codec"
)

// ErrMalformed is returned from Parse and ParseSet if a header value
// is not a valid entity tag or list of entity tags.
var ErrMalformed = errors.New("malformed entity tag")

// ETag is an entity tag: an opaque validator for one version of a
// resource representation.
type ETag struct {
	// Tag is the opaque part, without quotes.
	Tag string

	// Weak marks a weak validator, written W/"..." on the wire.
	Weak bool
}

// Strong creates a strong entity tag.
func Strong(tag string) ETag {
	return ETag{Tag: tag}
}

// Weak creates a weak entity tag.
func Weak(tag string) ETag {
	return ETag{Tag: tag, Weak: true}
}

// String renders the entity tag as it appears in an ETag: header.
func (e ETag) String() string {
	if e.Weak {
		return `W/"` + e.Tag + `"`
	}
	return `"` + e.Tag + `"`
}

// StrongMatch is the strong comparison function: both tags must be
// strong and have identical opaque parts.
func (e ETag) StrongMatch(other ETag) bool {
	return !e.Weak && !other.Weak && e.Tag == other.Tag
}

// WeakMatch is the weak comparison function: the opaque parts must be
// identical, regardless of either tag's weakness.
func (e ETag) WeakMatch(other ETag) bool {
	return e.Tag == other.Tag
}

// Parse parses a single entity tag, such as the value of an ETag:
// response header.
func Parse(s string) (ETag, error) {
	e, rest, err := scan(strings.TrimSpace(s))
	if err == nil && strings.TrimSpace(rest) != "" {
		err = ErrMalformed
	}
	return e, err
}

// scan reads one entity tag from the front of s, returning it and the
// remainder of the string.
func scan(s string) (ETag, string, error) {
	var e ETag
	if strings.HasPrefix(s, "W/") {
		e.Weak = true
		s = s[2:]
	}
	if len(s) < 2 || s[0] != '"' {
		return ETag{}, s, ErrMalformed
	}
	end := strings.IndexByte(s[1:], '"')
	if end < 0 {
		return ETag{}, s, ErrMalformed
	}
	e.Tag = s[1 : end+1]
	for _, c := range []byte(e.Tag) {
		// etagc = %x21 / %x23-7E / obs-text
		if c < 0x21 || c == 0x7f {
			return ETag{}, s, ErrMalformed
		}
	}
	return e, s[end+2:], nil
}

// Set is the parsed value of an If-Match: or If-None-Match: header.
// A nil *Set means the header was absent.
type Set struct {
	// Any is true if the header value was "*".
	Any bool

	// Tags lists the entity tags in the header.
	Tags []ETag
}

// ParseSet parses a header value that is either "*" or a
// comma-separated list of entity tags.
func ParseSet(s string) (*Set, error) {
	s = strings.TrimSpace(s)
	if s == "*" {
		return &Set{Any: true}, nil
	}
	set := &Set{}
	for s != "" {
		e, rest, err := scan(s)
		if err != nil {
			return nil, err
		}
		set.Tags = append(set.Tags, e)
		rest = strings.TrimSpace(rest)
		if rest == "" {
			break
		}
		if rest[0] != ',' {
			return nil, ErrMalformed
		}
		s = strings.TrimLeft(rest, ", \t")
	}
	if len(set.Tags) == 0 {
		return nil, ErrMalformed
	}
	return set, nil
}

// FromHeader parses every instance of a conditional header in h.
// Returns nil with no error if the header is absent.  A malformed
// value is returned as restdata.ErrBadRequest.
func FromHeader(h http.Header, name string) (*Set, error) {
	values := h.Values(name)
	if len(values) == 0 {
		return nil, nil
	}
	result := &Set{}
	for _, value := range values {
		set, err := ParseSet(value)
		if err != nil {
			return nil, restdata.ErrBadRequest{
				Err: fmt.Errorf("invalid %s header %q: %w", name, value, err),
			}
		}
		result.Any = result.Any || set.Any
		result.Tags = append(result.Tags, set.Tags...)
	}
	return result, nil
}

// matchStrong reports whether any tag in the set strongly matches
// current.
func (s *Set) matchStrong(current ETag) bool {
	for _, e := range s.Tags {
		if e.StrongMatch(current) {
			return true
		}
	}
	return false
}

// matchWeak reports whether any tag in the set weakly matches
// current.
func (s *Set) matchWeak(current ETag) bool {
	for _, e := range s.Tags {
		if e.WeakMatch(current) {
			return true
		}
	}
	return false
}

// Compute derives a strong entity tag from the JSON encoding of a
// value.  Map keys are sorted, so two equal values get the same tag.
func Compute(v interface{}) (ETag, error) {
	handle := restdata.NewJSONHandle()
	handle.Canonical = true
	digest := xxhash.New()
	encoder := codec.NewEncoder(digest, handle)
	if err := encoder.Encode(v); err != nil {
		return ETag{}, err
	}
	return Strong(strconv.FormatUint(digest.Sum64(), 36)), nil
}
