// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"strings"

	"github.com/ugorji/go/codec"
)

// NewJSONHandle returns the codec handle used for every JSON
// representation in this module.  The codec library names struct
// fields by their "codec" or "json" tags.
func NewJSONHandle() *codec.JsonHandle {
	return &codec.JsonHandle{}
}

// ErrNotJSON is returned from Marshal when a value encodes to
// something that is not JSON, such as a NaN or infinite float.
var ErrNotJSON = errors.New("value has no JSON representation")

// Marshal encodes v with h, trimming trailing whitespace.  The codec
// library writes non-finite floats as bare NaN and Inf tokens; Marshal
// checks its output and returns ErrNotJSON rather than pass those on.
func Marshal(h *codec.JsonHandle, v interface{}) ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, h).Encode(v); err != nil {
		return nil, err
	}
	out = bytes.TrimRight(out, " \t\r\n")
	if !json.Valid(out) {
		return nil, ErrNotJSON
	}
	return out, nil
}

// IsJSON reports whether a media type, possibly with parameters, is
// one of the JSON representations this module understands.
func IsJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch strings.ToLower(mediaType) {
	case "text/json", JSONMediaType, HALJSONMediaType:
		return true
	}
	return false
}

// Decode tries to decode a restdata object from a reader, such as an
// HTTP request or response.  out must be a pointer type.
func Decode(contentType string, r io.Reader, out interface{}) error {
	if contentType == "" {
		// RFC 7231 section 3.1.1.5
		// We could also consider http.DetectContentType()
		contentType = "application/octet-stream"
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ErrBadRequest{Err: err}
	}
	if !IsJSON(mediaType) {
		return ErrUnsupportedMediaType{Type: mediaType}
	}

	decoder := codec.NewDecoder(r, NewJSONHandle())
	if err = decoder.Decode(out); err != nil {
		return ErrBadRequest{Err: err}
	}
	return nil
}
