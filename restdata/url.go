// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"encoding/base64"
)

// MaybeEncodeName prepares a resource identifier (an account ID, a
// dataset name) for use as a single URL path segment.  Identifiers
// made only of RFC 3986 unreserved characters are used as-is.
// Anything else, including the empty string and a name beginning
// with -, becomes - followed by the URL-safe unpadded base64 encoding
// of its bytes.
func MaybeEncodeName(name string) string {
	if len(name) == 0 || name[0] == '-' {
		return "-" + base64.RawURLEncoding.EncodeToString([]byte(name))
	}
	for _, c := range name {
		switch {
		case c == '-', c == '.', c == '_', c == '~',
			c >= 'a' && c <= 'z',
			c >= 'A' && c <= 'Z',
			c >= '0' && c <= '9':
			continue
		}
		return "-" + base64.RawURLEncoding.EncodeToString([]byte(name))
	}
	return name
}

// MaybeDecodeName reverses MaybeEncodeName on a path segment taken
// from a request URL.  A segment not beginning with - is returned
// unchanged; otherwise the remainder must be valid base64, and the
// error is an ErrBadRequest if it is not.
func MaybeDecodeName(segment string) (string, error) {
	if len(segment) == 0 || segment[0] != '-' {
		return segment, nil
	}
	bytes, err := base64.RawURLEncoding.DecodeString(segment[1:])
	if err != nil {
		return "", ErrBadRequest{Err: err}
	}
	return string(bytes), nil
}
