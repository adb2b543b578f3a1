// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package jsonstream

import (
	"context"
	"io"
)

// Source produces the items of a streamed collection, one at a time.
// Next returns io.EOF once there are no more items.  Next receives the
// request context and may block, for instance on a database cursor;
// it should return promptly with the context's error if the context
// is canceled.
//
// If a Source also implements io.Closer, the Encoder closes it once
// it is exhausted or the stream is abandoned.
type Source interface {
	Next(ctx context.Context) (interface{}, error)
}

// SourceFunc adapts an ordinary function to a Source.
type SourceFunc func(ctx context.Context) (interface{}, error)

// Next calls f(ctx).
func (f SourceFunc) Next(ctx context.Context) (interface{}, error) {
	return f(ctx)
}

// SliceSource returns a Source over the elements of a slice.
func SliceSource(items ...interface{}) Source {
	i := 0
	return SourceFunc(func(ctx context.Context) (interface{}, error) {
		if i >= len(items) {
			return nil, io.EOF
		}
		item := items[i]
		i++
		return item, nil
	})
}

// Map returns a Source that passes each item of src through f.
// Closing the result closes src.
func Map(src Source, f func(interface{}) (interface{}, error)) Source {
	return &mapSource{src: src, f: f}
}

type mapSource struct {
	src Source
	f   func(interface{}) (interface{}, error)
}

func (m *mapSource) Next(ctx context.Context) (interface{}, error) {
	item, err := m.src.Next(ctx)
	if err != nil {
		return nil, err
	}
	return m.f(item)
}

func (m *mapSource) Close() error {
	if closer, ok := m.src.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Member is one item of an object-mode stream: a key and its value.
type Member struct {
	Key   string
	Value interface{}
}

// Mode selects whether a stream is rendered as a JSON array or a JSON
// object.
type Mode int

const (
	// Array streams arbitrary items as a JSON array.
	Array Mode = iota

	// Object streams Member items as a JSON object.
	Object
)

// Nested is a value that is itself streamed, in the given mode, when
// it appears as an item or member value.  A bare Source value is
// streamed as an array.
type Nested struct {
	Mode   Mode
	Source Source
}

// Members returns an object-mode Nested over a fixed list of members.
// Member values may themselves be Sources or Nested values.
func Members(members ...Member) Nested {
	items := make([]interface{}, len(members))
	for i, m := range members {
		items[i] = m
	}
	return Nested{Mode: Object, Source: SliceSource(items...)}
}
