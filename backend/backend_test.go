// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package backend

import (
	"context"
	"flag"
	"testing"

	"github.com/diffeo/go-restview/admin"
	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	var b Backend
	if assert.NoError(t, b.Set("memory")) {
		assert.Equal(t, "memory", b.Implementation)
		assert.Equal(t, "", b.Address)
		assert.Equal(t, "memory", b.String())
	}

	dsn := "postgres://user@localhost/db?sslmode=disable"
	if assert.NoError(t, b.Set("postgres:"+dsn)) {
		assert.Equal(t, "postgres", b.Implementation)
		assert.Equal(t, dsn, b.Address)
		assert.Equal(t, "postgres:"+dsn, b.String())
	}
}

func TestSetBad(t *testing.T) {
	b := Backend{Implementation: "memory"}
	assert.Error(t, b.Set(""))
	assert.Error(t, b.Set("redis:localhost"))
	assert.Equal(t, "memory", b.Implementation, "failed Set leaves the value alone")
}

func TestFlag(t *testing.T) {
	b := Backend{Implementation: "memory"}
	flags := flag.NewFlagSet("test", flag.ContinueOnError)
	flags.Var(&b, "backend", "impl:address of account storage")
	assert.NoError(t, flags.Parse([]string{"-backend", "postgres://localhost/x"}))
	assert.Equal(t, "postgres", b.Implementation)
	assert.Equal(t, "//localhost/x", b.Address)
}

func TestMemoryStore(t *testing.T) {
	b := Backend{Implementation: "memory"}
	store, err := b.Store()
	if !assert.NoError(t, err) {
		return
	}
	created, err := store.PutAccount(context.Background(), admin.Account{ID: "alice"}, nil)
	assert.NoError(t, err)
	assert.True(t, created)

	// A second store is a separate world
	other, err := b.Store()
	if assert.NoError(t, err) {
		_, err = other.Account(context.Background(), "alice")
		assert.Equal(t, admin.ErrNoSuchAccount{ID: "alice"}, err)
	}
}

func TestUnknownStore(t *testing.T) {
	b := Backend{Implementation: "nope"}
	_, err := b.Store()
	assert.Error(t, err)
}
