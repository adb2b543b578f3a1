// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package backend provides a standard way to construct an account
// store based on command-line flags or configuration.
package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/diffeo/go-restview/admin"
	"github.com/diffeo/go-restview/memory"
	"github.com/diffeo/go-restview/postgres"
)

// Backend describes user-visible parameters to store account data.
// This implements the flag.Value interface, and so a typical use is
//
//     func main() {
//         backend := backend.Backend{Implementation: "memory"}
//         flag.Var(&backend, "backend", "impl:address of account storage")
//         flag.Parse()
//         store, err := backend.Store()
//     }
type Backend struct {
	// Implementation holds the name of the implementation; for
	// instance, "memory".
	Implementation string

	// Address holds some backend-specific address, such as a
	// database connect string.
	Address string
}

// Implementations lists the known backend implementations.
var Implementations = []string{"memory", "postgres"}

// Store creates a new account store.  This generally should be only
// called once.  If the backend has in-process state, such as a
// database connection pool or an in-memory store, calling this
// multiple times will create multiple copies of that state.  In
// particular, if b.Implementation is "memory", multiple calls to
// this will create multiple independent sets of accounts.
func (b *Backend) Store() (admin.Store, error) {
	switch b.Implementation {
	case "memory":
		return memory.New(), nil
	case "postgres", "postgresql":
		return postgres.New(b.Address)
	default:
		return nil, fmt.Errorf("unknown account backend %q", b.Implementation)
	}
}

// String renders a backend description as a string.
func (b *Backend) String() string {
	if b.Address == "" {
		return b.Implementation
	}
	return b.Implementation + ":" + b.Address
}

// Set parses a string into an existing backend description.  The
// string should be of the form "implementation:address", where
// address can be any string.  Set checks to see if the provided
// implementation is any of the known implementations, and returns an
// appropriate error if not.
//
// This is part of the flag.Value interface.  Set does not validate
// the b.Address part of the string or attempt to actually make a
// connection.
func (b *Backend) Set(param string) error {
	if param == "" {
		return errors.New("must specify a backend type")
	}
	parts := strings.SplitN(param, ":", 2)
	impl, address := parts[0], ""
	if len(parts) == 2 {
		address = parts[1]
	}
	switch impl {
	case "memory", "postgres", "postgresql":
	default:
		return fmt.Errorf("unknown account backend %q (known: %s)",
			impl, strings.Join(Implementations, ", "))
	}
	b.Implementation = impl
	b.Address = address
	return nil
}
