// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package jsonstream serializes a lazily produced collection as a
// single JSON document, one chunk at a time, without holding the
// whole collection in memory.
//
// The Encoder is pull-driven: every call to Next pulls at most one
// item from its Source and returns the bytes for it.  WriteTo drives
// the encoder into an io.Writer, such as an http.ResponseWriter.
//
// By the time an item fails to encode, earlier chunks have usually
// been sent to the client already, so there is no way to turn the
// failure into a clean error response.  Callers must treat an
// *EncodingError as fatal to the stream.
package jsonstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/diffeo/go-restview/restdata"
	"github.com/ugorji/go/codec"
)

// ErrClosed is returned from Next after the stream was abandoned with
// Close.
var ErrClosed = errors.New("jsonstream: encoder closed")

// EncodingError is returned when an item cannot be serialized.
type EncodingError struct {
	// Index is the zero-based position of the item within its
	// (innermost) collection.
	Index int

	// Err is the underlying error.
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding stream item %d: %v", e.Index, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// frame is one open array or object.
type frame struct {
	mode   Mode
	source Source
	count  int
}

// Encoder produces the chunks of a streamed JSON document.  An
// Encoder is not safe for concurrent use.
type Encoder struct {
	stack  []*frame
	handle *codec.JsonHandle
	err    error
	buf    bytes.Buffer
}

// NewEncoder creates an encoder that renders src in the given mode.
func NewEncoder(src Source, mode Mode) *Encoder {
	e := &Encoder{handle: restdata.NewJSONHandle()}
	e.push(Nested{Mode: mode, Source: src}, nil)
	return e
}

// push opens a new collection, writing its opening bracket after
// prefix into the next chunk.
func (e *Encoder) push(n Nested, prefix []byte) {
	e.buf.Write(prefix)
	if n.Mode == Object {
		e.buf.WriteByte('{')
	} else {
		e.buf.WriteByte('[')
	}
	e.stack = append(e.stack, &frame{mode: n.Mode, source: n.Source})
}

// Next returns the next chunk of output.  It returns io.EOF after the
// final closing bracket has been returned.  Any other error ends the
// stream; later calls return the same error.
func (e *Encoder) Next(ctx context.Context) ([]byte, error) {
	if e.buf.Len() > 0 {
		// the opening bracket from NewEncoder
		return e.take(), nil
	}
	if e.err != nil {
		return nil, e.err
	}
	if len(e.stack) == 0 {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, e.fail(err)
	}

	top := e.stack[len(e.stack)-1]
	item, err := top.source.Next(ctx)
	if err == io.EOF {
		e.pop()
		if top.mode == Object {
			e.buf.WriteByte('}')
		} else {
			e.buf.WriteByte(']')
		}
		return e.take(), nil
	}
	if err != nil {
		return nil, e.fail(err)
	}

	var prefix []byte
	if top.count > 0 {
		prefix = append(prefix, ',')
	}
	index := top.count
	top.count++

	value := item
	if top.mode == Object {
		member, isMember := item.(Member)
		if !isMember {
			return nil, e.fail(&EncodingError{
				Index: index,
				Err:   fmt.Errorf("object stream item is %T, not Member", item),
			})
		}
		key, err := e.encode(member.Key)
		if err != nil {
			return nil, e.fail(&EncodingError{Index: index, Err: err})
		}
		prefix = append(prefix, key...)
		prefix = append(prefix, ':')
		value = member.Value
	}

	switch v := value.(type) {
	case Nested:
		e.push(v, prefix)
		return e.take(), nil
	case Source:
		e.push(Nested{Mode: Array, Source: v}, prefix)
		return e.take(), nil
	}

	encoded, err := e.encode(value)
	if err != nil {
		return nil, e.fail(&EncodingError{Index: index, Err: err})
	}
	e.buf.Write(prefix)
	e.buf.Write(encoded)
	return e.take(), nil
}

func (e *Encoder) encode(v interface{}) ([]byte, error) {
	return restdata.Marshal(e.handle, v)
}

func (e *Encoder) take() []byte {
	chunk := make([]byte, e.buf.Len())
	copy(chunk, e.buf.Bytes())
	e.buf.Reset()
	return chunk
}

func (e *Encoder) pop() {
	top := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	closeSource(top.source)
}

func (e *Encoder) fail(err error) error {
	e.err = err
	e.Close()
	return err
}

// Close abandons the stream, closing every open Source.  It is safe
// to call Close more than once, and after the stream is complete.
func (e *Encoder) Close() error {
	if len(e.stack) > 0 && e.err == nil {
		e.err = ErrClosed
	}
	var first error
	for len(e.stack) > 0 {
		top := e.stack[len(e.stack)-1]
		e.stack = e.stack[:len(e.stack)-1]
		if err := closeSource(top.source); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func closeSource(src Source) error {
	if closer, ok := src.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// WriteTo writes the remainder of the stream to w, flushing after
// each chunk if w is an http.Flusher.  It stops without pulling more
// items as soon as ctx is done.  On any failure the encoder is closed
// and the error returned; some output may already have been written.
func (e *Encoder) WriteTo(ctx context.Context, w io.Writer) (int64, error) {
	flusher, _ := w.(http.Flusher)
	var total int64
	for {
		chunk, err := e.Next(ctx)
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		n, err := w.Write(chunk)
		total += int64(n)
		if err != nil {
			return total, e.fail(err)
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// Encode renders the whole stream into memory.  This defeats the
// point of streaming and is meant for tests and small collections.
func Encode(ctx context.Context, src Source, mode Mode) ([]byte, error) {
	var buf bytes.Buffer
	_, err := NewEncoder(src, mode).WriteTo(ctx, &buf)
	return buf.Bytes(), err
}
