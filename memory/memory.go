// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package memory provides an in-process, in-memory implementation of
// admin.Store.  There is no persistence, nor is there any automatic
// sharing.  The entire store is behind a single lock to protect
// against concurrent updates.
//
// This is mostly intended as a simple reference implementation that
// can be used for testing, including in-process testing of
// higher-level components.  It is generally tuned for correctness,
// not performance or scalability.
package memory

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/diffeo/go-restview/admin"
	"github.com/diffeo/go-restview/jsonstream"
)

// This is the only external entry point to this package:

// New creates a new, empty admin.Store that operates purely in
// memory.
func New() admin.Store {
	return &memStore{accounts: make(map[string][]string)}
}

type memStore struct {
	sem      sync.RWMutex
	accounts map[string][]string
}

func copyRoles(roles []string) []string {
	return append(make([]string, 0, len(roles)), roles...)
}

func (s *memStore) Accounts(ctx context.Context) (jsonstream.Source, error) {
	return &snapshot{store: s}, nil
}

func (s *memStore) Account(ctx context.Context, id string) (admin.Account, error) {
	s.sem.RLock()
	defer s.sem.RUnlock()
	roles, present := s.accounts[id]
	if !present {
		return admin.Account{}, admin.ErrNoSuchAccount{ID: id}
	}
	return admin.Account{ID: id, Roles: copyRoles(roles)}, nil
}

func (s *memStore) PutAccount(ctx context.Context, account admin.Account, check admin.Precondition) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.sem.Lock()
	defer s.sem.Unlock()
	if err := s.check(account.ID, check); err != nil {
		return false, err
	}
	_, present := s.accounts[account.ID]
	s.accounts[account.ID] = copyRoles(account.Roles)
	return !present, nil
}

func (s *memStore) DeleteAccount(ctx context.Context, id string, check admin.Precondition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.sem.Lock()
	defer s.sem.Unlock()
	if err := s.check(id, check); err != nil {
		return err
	}
	if _, present := s.accounts[id]; !present {
		return admin.ErrNoSuchAccount{ID: id}
	}
	delete(s.accounts, id)
	return nil
}

// check runs a precondition against the current account.  The caller
// must hold the write lock.
func (s *memStore) check(id string, check admin.Precondition) error {
	if check == nil {
		return nil
	}
	roles, present := s.accounts[id]
	if !present {
		return check(nil)
	}
	return check(&admin.Account{ID: id, Roles: copyRoles(roles)})
}

// snapshot is the source returned from Accounts.  It copies the store
// on its first Next call, so a slow reader never holds the lock.
type snapshot struct {
	store    *memStore
	accounts []admin.Account
	taken    bool
	next     int
}

func (s *snapshot) take() {
	s.store.sem.RLock()
	defer s.store.sem.RUnlock()
	s.accounts = make([]admin.Account, 0, len(s.store.accounts))
	for id, roles := range s.store.accounts {
		s.accounts = append(s.accounts, admin.Account{ID: id, Roles: copyRoles(roles)})
	}
	sort.Slice(s.accounts, func(i, j int) bool {
		return s.accounts[i].ID < s.accounts[j].ID
	})
	s.taken = true
}

func (s *snapshot) Next(ctx context.Context) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.taken {
		s.take()
	}
	if s.next >= len(s.accounts) {
		return nil, io.EOF
	}
	account := s.accounts[s.next]
	s.next++
	return account, nil
}

func (s *snapshot) Close() error {
	s.accounts = nil
	s.taken = true
	return nil
}
