// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// reference matches one $ construct.  The groups are: escaped $$;
// bare name; braced name, its :- or - operator, and its default;
// and anything else following a $, which is an error.
var reference = regexp.MustCompile(
	`\$(?:(\$)|([_a-zA-Z][_a-zA-Z0-9]*)|\{([_a-zA-Z][_a-zA-Z0-9]*)(?:(:?-)([^}]*))?\}|(.?))`)

// UndefinedError is returned for a reference to an unset variable
// that has no default.
type UndefinedError struct {
	Name  string
	Value string
}

func (e UndefinedError) Error() string {
	return fmt.Sprintf("could not substitute %q: %s is not set", e.Value, e.Name)
}

// SyntaxError is returned for a malformed $ construct.
type SyntaxError struct {
	Value  string
	Offset int
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("invalid substitution in %q at offset %d", e.Value, e.Offset)
}

// Expand substitutes environment references in one string.
func Expand(value string, lookup func(string) (string, bool)) (string, error) {
	var out strings.Builder
	last := 0
	for _, m := range reference.FindAllStringSubmatchIndex(value, -1) {
		out.WriteString(value[last:m[0]])
		last = m[1]
		group := func(i int) (string, bool) {
			if m[2*i] < 0 {
				return "", false
			}
			return value[m[2*i]:m[2*i+1]], true
		}
		if _, ok := group(1); ok {
			out.WriteByte('$')
			continue
		}
		name, ok := group(2)
		if !ok {
			name, ok = group(3)
		}
		if !ok {
			return "", SyntaxError{Value: value, Offset: m[0]}
		}
		op, _ := group(4)
		def, _ := group(5)
		v, set := lookup(name)
		switch {
		case op == ":-" && (!set || v == ""):
			v = def
		case op == "-" && !set:
			v = def
		case op == "" && !set:
			return "", UndefinedError{Name: name, Value: value}
		}
		out.WriteString(v)
	}
	out.WriteString(value[last:])
	return out.String(), nil
}

// Interpolate expands every string in a decoded YAML value,
// recursively.  Strings that expand to only decimal digits become
// ints.  Maps come back as map[string]interface{}.
func Interpolate(value interface{}, lookup func(string) (string, bool)) (interface{}, error) {
	switch v := value.(type) {
	case string:
		expanded, err := Expand(v, lookup)
		if err != nil {
			return nil, err
		}
		if isDigits(expanded) {
			if n, err := strconv.Atoi(expanded); err == nil {
				return n, nil
			}
		}
		return expanded, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			name, ok := key.(string)
			if !ok {
				name = fmt.Sprint(key)
			}
			expanded, err := Interpolate(item, lookup)
			if err != nil {
				return nil, err
			}
			out[name] = expanded
		}
		return out, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			expanded, err := Interpolate(item, lookup)
			if err != nil {
				return nil, err
			}
			out[key] = expanded
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			expanded, err := Interpolate(item, lookup)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	}
	return value, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
