// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package storetest provides generic functional tests for the
// admin.Store interface.  A typical backend test module needs to wrap
// Suite to create its store:
//
//     package mybackend
//
//     import (
//             "testing"
//             "github.com/diffeo/go-restview/admin/storetest"
//             "github.com/stretchr/testify/suite"
//     )
//
//     // Suite is the per-backend generic test suite.
//     type Suite struct{
//             storetest.Suite
//     }
//
//     // SetupTest creates an empty store for each test.
//     func (s *Suite) SetupTest() {
//             s.Store = New()
//     }
//
//     // TestStore runs the Store generic tests.
//     func TestStore(t *testing.T) {
//             suite.Run(t, &Suite{})
//     }
//
// Every test expects Store to start out empty.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/diffeo/go-restview/admin"
	"github.com/diffeo/go-restview/jsonstream"
	"github.com/stretchr/testify/suite"
)

// Suite is the generic Store test suite.
type Suite struct {
	suite.Suite

	// Store contains the store under test.  It is set by
	// importing packages.
	Store admin.Store
}

// all reads every account from the store.
func (s *Suite) all() []admin.Account {
	src, err := s.Store.Accounts(context.Background())
	if !s.NoError(err) {
		return nil
	}
	var accounts []admin.Account
	for {
		item, err := src.Next(context.Background())
		if err == io.EOF {
			break
		}
		if !s.NoError(err) {
			break
		}
		account, ok := item.(admin.Account)
		if s.True(ok, "item is %T", item) {
			accounts = append(accounts, account)
		}
	}
	if closer, ok := src.(io.Closer); ok {
		s.NoError(closer.Close())
	}
	return accounts
}

// TestEmpty checks a new store has no accounts.
func (s *Suite) TestEmpty() {
	s.Empty(s.all())

	_, err := s.Store.Account(context.Background(), "nobody")
	s.Equal(admin.ErrNoSuchAccount{ID: "nobody"}, err)

	err = s.Store.DeleteAccount(context.Background(), "nobody", nil)
	s.Equal(admin.ErrNoSuchAccount{ID: "nobody"}, err)
}

// TestPutGet checks an account can be created, read back, and
// replaced.
func (s *Suite) TestPutGet() {
	ctx := context.Background()
	created, err := s.Store.PutAccount(ctx, admin.Account{ID: "alice", Roles: []string{"admin", "user"}}, nil)
	if s.NoError(err) {
		s.True(created)
	}

	account, err := s.Store.Account(ctx, "alice")
	if s.NoError(err) {
		s.Equal("alice", account.ID)
		s.Equal([]string{"admin", "user"}, account.Roles)
	}

	created, err = s.Store.PutAccount(ctx, admin.Account{ID: "alice", Roles: []string{"user"}}, nil)
	if s.NoError(err) {
		s.False(created)
	}
	account, err = s.Store.Account(ctx, "alice")
	if s.NoError(err) {
		s.Equal([]string{"user"}, account.Roles)
	}
}

// TestNoRoles checks that an account without roles comes back with
// an empty, non-nil role list.
func (s *Suite) TestNoRoles() {
	ctx := context.Background()
	_, err := s.Store.PutAccount(ctx, admin.Account{ID: "bob"}, nil)
	s.NoError(err)
	account, err := s.Store.Account(ctx, "bob")
	if s.NoError(err) {
		s.NotNil(account.Roles)
		s.Empty(account.Roles)
	}
}

// TestReturnedCopies checks that changing a returned account does not
// change the store.
func (s *Suite) TestReturnedCopies() {
	ctx := context.Background()
	roles := []string{"admin"}
	_, err := s.Store.PutAccount(ctx, admin.Account{ID: "carol", Roles: roles}, nil)
	s.NoError(err)
	roles[0] = "changed"

	account, err := s.Store.Account(ctx, "carol")
	if s.NoError(err) {
		s.Equal([]string{"admin"}, account.Roles)
		account.Roles[0] = "changed again"
	}
	account, err = s.Store.Account(ctx, "carol")
	if s.NoError(err) {
		s.Equal([]string{"admin"}, account.Roles)
	}
}

// TestDelete checks that deleted accounts are gone.
func (s *Suite) TestDelete() {
	ctx := context.Background()
	_, err := s.Store.PutAccount(ctx, admin.Account{ID: "dave"}, nil)
	s.NoError(err)
	_, err = s.Store.PutAccount(ctx, admin.Account{ID: "erin"}, nil)
	s.NoError(err)

	s.NoError(s.Store.DeleteAccount(ctx, "dave", nil))
	_, err = s.Store.Account(ctx, "dave")
	s.Equal(admin.ErrNoSuchAccount{ID: "dave"}, err)

	accounts := s.all()
	if s.Len(accounts, 1) {
		s.Equal("erin", accounts[0].ID)
	}

	created, err := s.Store.PutAccount(ctx, admin.Account{ID: "dave"}, nil)
	if s.NoError(err) {
		s.True(created)
	}
}

// TestOrder checks that accounts are listed by ID.
func (s *Suite) TestOrder() {
	ctx := context.Background()
	for _, id := range []string{"m", "b", "z", "a", "q"} {
		_, err := s.Store.PutAccount(ctx, admin.Account{ID: id, Roles: []string{"role-" + id}}, nil)
		s.NoError(err)
	}
	var ids []string
	for _, account := range s.all() {
		ids = append(ids, account.ID)
		s.Equal([]string{"role-" + account.ID}, account.Roles)
	}
	s.Equal([]string{"a", "b", "m", "q", "z"}, ids)
}

// TestLazySource checks that creating a source and closing it without
// reading works.
func (s *Suite) TestLazySource() {
	_, err := s.Store.PutAccount(context.Background(), admin.Account{ID: "frank"}, nil)
	s.NoError(err)
	src, err := s.Store.Accounts(context.Background())
	if s.NoError(err) {
		if closer, ok := src.(io.Closer); ok {
			s.NoError(closer.Close())
		}
	}
}

// TestCanceledContext checks that a source stops when its context is
// canceled.
func (s *Suite) TestCanceledContext() {
	_, err := s.Store.PutAccount(context.Background(), admin.Account{ID: "gina"}, nil)
	s.NoError(err)
	ctx, cancel := context.WithCancel(context.Background())
	src, err := s.Store.Accounts(ctx)
	if !s.NoError(err) {
		cancel()
		return
	}
	cancel()
	_, err = src.Next(ctx)
	s.Error(err)
	s.NotEqual(io.EOF, err)
	if closer, ok := src.(io.Closer); ok {
		_ = closer.Close()
	}
}

// TestStreamedThroughEncoder checks that a store's source renders as
// a JSON array.
func (s *Suite) TestStreamedThroughEncoder() {
	ctx := context.Background()
	_, err := s.Store.PutAccount(ctx, admin.Account{ID: "hank", Roles: []string{"x"}}, nil)
	s.NoError(err)
	src, err := s.Store.Accounts(ctx)
	if !s.NoError(err) {
		return
	}
	out, err := jsonstream.Encode(ctx, src, jsonstream.Array)
	if s.NoError(err) {
		s.JSONEq(`[{"id":"hank","roles":["x"]}]`, string(out))
	}
}

// TestConcurrentPuts checks that concurrent writers do not lose
// accounts.
func (s *Suite) TestConcurrentPuts() {
	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Store.PutAccount(ctx, admin.Account{ID: fmt.Sprintf("user%02d", i)}, nil)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}
	s.Len(s.all(), 20)
}

var errRefused = errors.New("refused")

// TestConditionalPut checks that PutAccount shows its precondition the
// current account and gives up when it fails.
func (s *Suite) TestConditionalPut() {
	ctx := context.Background()
	var seen []*admin.Account
	record := func(current *admin.Account) error {
		seen = append(seen, current)
		return nil
	}
	created, err := s.Store.PutAccount(ctx, admin.Account{ID: "ivan", Roles: []string{"a"}}, record)
	if s.NoError(err) {
		s.True(created)
	}
	created, err = s.Store.PutAccount(ctx, admin.Account{ID: "ivan", Roles: []string{"b"}}, record)
	if s.NoError(err) {
		s.False(created)
	}
	if s.Len(seen, 2) {
		s.Nil(seen[0])
		if s.NotNil(seen[1]) {
			s.Equal("ivan", seen[1].ID)
			s.Equal([]string{"a"}, seen[1].Roles)
		}
	}

	_, err = s.Store.PutAccount(ctx, admin.Account{ID: "ivan", Roles: []string{"c"}},
		func(*admin.Account) error { return errRefused })
	s.Equal(errRefused, err)
	account, err := s.Store.Account(ctx, "ivan")
	if s.NoError(err) {
		s.Equal([]string{"b"}, account.Roles)
	}

	_, err = s.Store.PutAccount(ctx, admin.Account{ID: "judy"},
		func(*admin.Account) error { return errRefused })
	s.Equal(errRefused, err)
	_, err = s.Store.Account(ctx, "judy")
	s.Equal(admin.ErrNoSuchAccount{ID: "judy"}, err)
}

// TestConditionalDelete checks that DeleteAccount honors its
// precondition.
func (s *Suite) TestConditionalDelete() {
	ctx := context.Background()
	_, err := s.Store.PutAccount(ctx, admin.Account{ID: "kate", Roles: []string{"x"}}, nil)
	s.NoError(err)

	err = s.Store.DeleteAccount(ctx, "kate", func(*admin.Account) error { return errRefused })
	s.Equal(errRefused, err)
	_, err = s.Store.Account(ctx, "kate")
	s.NoError(err)

	var seen *admin.Account
	err = s.Store.DeleteAccount(ctx, "kate", func(current *admin.Account) error {
		seen = current
		return nil
	})
	s.NoError(err)
	if s.NotNil(seen) {
		s.Equal([]string{"x"}, seen.Roles)
	}
	_, err = s.Store.Account(ctx, "kate")
	s.Equal(admin.ErrNoSuchAccount{ID: "kate"}, err)
}

// TestConcurrentConditionalPuts checks that, of several writers that
// all expect the same current account, only one wins.
func (s *Suite) TestConcurrentConditionalPuts() {
	ctx := context.Background()
	_, err := s.Store.PutAccount(ctx, admin.Account{ID: "leo", Roles: []string{"v0"}}, nil)
	s.NoError(err)

	expectV0 := func(current *admin.Account) error {
		if current == nil || len(current.Roles) != 1 || current.Roles[0] != "v0" {
			return errRefused
		}
		return nil
	}
	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Store.PutAccount(ctx, admin.Account{ID: "leo", Roles: []string{fmt.Sprintf("v%d", i+1)}}, expectV0)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	wins := 0
	for err := range errs {
		if err == nil {
			wins++
		} else {
			s.Equal(errRefused, err)
		}
	}
	s.Equal(1, wins)
}
