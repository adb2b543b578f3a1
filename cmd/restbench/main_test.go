// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-restview/admin"
	"github.com/diffeo/go-restview/memory"
	"github.com/diffeo/go-restview/restclient"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBench(t *testing.T) (*benchWork, *logtest.Hook) {
	api, err := admin.New(memory.New(), nil)
	require.NoError(t, err)
	logger, hook := logtest.NewNullLogger()
	server := httptest.NewServer(admin.NewRouter(api, logger))
	t.Cleanup(server.Close)
	client, err := restclient.New(server.URL)
	require.NoError(t, err)
	client.Logger = logger
	return &benchWork{
		Client:      client,
		Concurrency: 4,
		Clock:       clock.NewMock(),
		Logger:      logger,
	}, hook
}

func TestBench(t *testing.T) {
	bench, hook := newBench(t)
	ctx := context.Background()

	bench.putAccounts(ctx, 10, []string{"bench"})
	if entry := hook.LastEntry(); assert.NotNil(t, entry) {
		assert.Equal(t, "Finished", entry.Message)
		assert.Equal(t, "put", entry.Data["op"])
		assert.Equal(t, int64(10), entry.Data["count"])
	}
	accounts, err := bench.Client.Accounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 10)
	for _, account := range accounts {
		assert.Equal(t, []string{"bench"}, account.Roles)
	}

	require.NoError(t, bench.getAccounts(ctx, 2))
	if entry := hook.LastEntry(); assert.NotNil(t, entry) {
		assert.Equal(t, "get", entry.Data["op"])
		assert.Equal(t, int64(20), entry.Data["count"])
	}
	assert.Equal(t, 10, bench.Client.Cache.Len())

	require.NoError(t, bench.clearAccounts(ctx))
	if entry := hook.LastEntry(); assert.NotNil(t, entry) {
		assert.Equal(t, "delete", entry.Data["op"])
		assert.Equal(t, int64(10), entry.Data["count"])
	}
	accounts, err = bench.Client.Accounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}
