// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package embed parses the "embed" query parameter, which names the
// related resources a client wants inlined into a response.
//
// The parameter is a comma-separated list of dotted link relation
// paths:
//
//     ?embed=accounts,accounts.item,datasets
//
// Paths that share a prefix are merged into a tree, so a view can ask
// "should I embed accounts?" and then pass the "accounts" subtree to
// the accounts view, which asks "should I embed item?".
package embed

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Tree is a parsed embed parameter.  A key that is present, even with
// an empty subtree, means "embed this relation"; an absent key means
// "link to it only".  The zero (nil) Tree embeds nothing.
type Tree map[string]Tree

// ParseError is returned from Parse for a malformed token.
type ParseError struct {
	// Raw is the complete parameter value.
	Raw string

	// Path is the offending comma-separated token.
	Path string

	// Reason describes what was wrong with it.
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid embed path %q: %s", e.Path, e.Reason)
}

// Token returns the offending path.
func (e *ParseError) Token() string {
	return e.Path
}

// HTTPStatus returns a fixed 400 Bad Request HTTP status code.
func (e *ParseError) HTTPStatus() int {
	return http.StatusBadRequest
}

// ErrorCode returns "ErrParse".
func (e *ParseError) ErrorCode() string {
	return "ErrParse"
}

// Parse parses an embed parameter value.  An empty (or all-blank)
// value gives an empty tree.
func Parse(raw string) (Tree, error) {
	tree := Tree{}
	if strings.TrimSpace(raw) == "" {
		return tree, nil
	}
	for _, token := range strings.Split(raw, ",") {
		path := strings.TrimSpace(token)
		segments, reason := splitPath(path)
		if reason != "" {
			return nil, &ParseError{Raw: raw, Path: path, Reason: reason}
		}
		tree.add(segments)
	}
	return tree, nil
}

// FromQuery parses and merges every instance of the named query
// parameter.
func FromQuery(values url.Values, name string) (Tree, error) {
	tree := Tree{}
	for _, raw := range values[name] {
		sub, err := Parse(raw)
		if err != nil {
			return nil, err
		}
		tree.merge(sub)
	}
	return tree, nil
}

// splitPath splits one dotted path into its segments, returning a
// non-empty reason if it is malformed.
func splitPath(path string) ([]string, string) {
	if path == "" {
		return nil, "empty path"
	}
	segments := strings.Split(path, ".")
	for _, segment := range segments {
		if segment == "" {
			return nil, "empty segment"
		}
		for i, c := range segment {
			if !identChar(c, i == 0) {
				return nil, fmt.Sprintf("invalid character %q", c)
			}
		}
	}
	return segments, ""
}

func identChar(c rune, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case first:
		return false
	case c == '-', c >= '0' && c <= '9':
		return true
	}
	return false
}

func (t Tree) add(segments []string) {
	node := t
	for _, segment := range segments {
		child, present := node[segment]
		if !present {
			child = Tree{}
			node[segment] = child
		}
		node = child
	}
}

func (t Tree) merge(other Tree) {
	for name, sub := range other {
		child, present := t[name]
		if !present {
			child = Tree{}
			t[name] = child
		}
		child.merge(sub)
	}
}

// Has reports whether the relation name should be embedded.
func (t Tree) Has(name string) bool {
	_, present := t[name]
	return present
}

// Get returns the subtree for a relation, or nil if the relation
// should not be embedded.  The subtree of an embedded relation with
// nothing further below it is empty but not nil.
func (t Tree) Get(name string) Tree {
	return t[name]
}

// Paths returns every path in the tree, including the prefixes of
// longer paths, in sorted order.
func (t Tree) Paths() []string {
	var paths []string
	t.walk("", func(path string) {
		paths = append(paths, path)
	})
	sort.Strings(paths)
	return paths
}

func (t Tree) walk(prefix string, f func(string)) {
	for name, sub := range t {
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		f(path)
		sub.walk(path, f)
	}
}

// String returns the canonical parameter value for the tree: its
// leaf paths, sorted and comma-separated.  Parsing the result gives
// back an equal tree.
func (t Tree) String() string {
	var leaves []string
	t.walk("", func(path string) {
		if len(t.at(path)) == 0 {
			leaves = append(leaves, path)
		}
	})
	sort.Strings(leaves)
	return strings.Join(leaves, ",")
}

// at finds the subtree at a dotted path known to exist.
func (t Tree) at(path string) Tree {
	node := t
	for _, segment := range strings.Split(path, ".") {
		node = node[segment]
	}
	return node
}
