// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/diffeo/go-restview/admin"
	"github.com/diffeo/go-restview/memory"
	"github.com/diffeo/go-restview/restclient"
	"github.com/diffeo/go-restview/restdata"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder remembers the conditional headers the server saw.
type recorder struct {
	lock        sync.Mutex
	handler     http.Handler
	ifNoneMatch []string
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.lock.Lock()
	r.ifNoneMatch = append(r.ifNoneMatch, req.Header.Get("If-None-Match"))
	r.lock.Unlock()
	r.handler.ServeHTTP(w, req)
}

func (r *recorder) last() string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.ifNoneMatch[len(r.ifNoneMatch)-1]
}

// newClient sets up an object stack where the REST client code talks
// to the admin API, which points at an in-memory store.
func newClient(t *testing.T) (*restclient.Client, *recorder) {
	api, err := admin.New(memory.New(), []admin.Dataset{
		{Name: "alpha", Title: "Alpha"},
		{Name: "beta", Title: "Beta"},
	})
	require.NoError(t, err)
	logger, _ := logtest.NewNullLogger()
	rec := &recorder{handler: admin.NewRouter(api, logger)}
	server := httptest.NewServer(rec)
	t.Cleanup(server.Close)

	c, err := restclient.New(server.URL)
	require.NoError(t, err)
	c.Logger = logger
	return c, rec
}

func TestEmptyURL(t *testing.T) {
	_, err := restclient.New("")
	assert.Error(t, err)
	_, err = restclient.New("/relative")
	assert.Error(t, err)
}

func TestBaseURLSlash(t *testing.T) {
	c, err := restclient.New("http://example.com/admin")
	require.NoError(t, err)
	u, err := c.Resolve("accounts")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/admin/accounts", u.String())
}

func TestTemplate(t *testing.T) {
	c, err := restclient.New("http://example.com/")
	require.NoError(t, err)
	u, err := c.Template(restclient.AccountTemplate, map[string]interface{}{"account": "alice"})
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/accounts/alice", u.String())

	u, err = c.Template(restclient.AccountTemplate, map[string]interface{}{"account": "a b"})
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/accounts/-YSBi", u.String())
}

func TestRootEmbedDatasets(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()
	doc, resp, err := c.GetDocument(ctx, "?embed=datasets")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, restdata.HALJSONMediaType, resp.ContentType)
	assert.Equal(t, "/", doc.Self())

	_, linked := doc.Link("datasets")
	assert.False(t, linked)
	embedded := doc.Embedded("datasets")
	if assert.Len(t, embedded, 1) {
		assert.Equal(t, "/datasets", embedded[0].Self())
		items := embedded[0].Links("item")
		if assert.Len(t, items, 2) {
			assert.Equal(t, restdata.Link{Href: "/datasets/alpha", Title: "Alpha"}, items[0])
			assert.Equal(t, restdata.Link{Href: "/datasets/beta", Title: "Beta"}, items[1])
		}
	}
}

func TestConditionalGet(t *testing.T) {
	c, rec := newClient(t)
	ctx := context.Background()

	first, err := c.Get(ctx, "datasets", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, first.StatusCode)
	assert.NotEmpty(t, first.ETag)
	assert.Empty(t, rec.last())
	assert.Equal(t, 1, c.Cache.Len())

	second, err := c.Get(ctx, "datasets", nil)
	require.NoError(t, err)
	assert.Equal(t, first.ETag, rec.last())
	assert.True(t, second.NotModified())
	assert.Equal(t, first.ETag, second.ETag)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, first.ContentType, second.ContentType)

	var doc restclient.Document
	require.NoError(t, second.Decode(&doc))
	assert.Equal(t, "/datasets", doc.Self())
}

func TestNoCache(t *testing.T) {
	c, rec := newClient(t)
	c.Cache = nil
	ctx := context.Background()
	_, err := c.Get(ctx, "datasets", nil)
	require.NoError(t, err)
	resp, err := c.Get(ctx, "datasets", nil)
	require.NoError(t, err)
	assert.Empty(t, rec.last())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStreamedNotCached(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()
	resp, err := c.Get(ctx, "accounts", nil)
	require.NoError(t, err)
	assert.Empty(t, resp.ETag)
	assert.Equal(t, 0, c.Cache.Len())
}

func TestFollow(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()
	_, _, err := c.PutAccount(ctx, admin.Account{ID: "alice", Roles: []string{"admin"}}, "")
	require.NoError(t, err)

	root, _, err := c.GetDocument(ctx, "")
	require.NoError(t, err)
	link, ok := root.Link("accounts")
	require.True(t, ok)
	u, err := c.Follow(link, nil)
	require.NoError(t, err)

	accounts, _, err := c.GetDocument(ctx, u.String())
	require.NoError(t, err)
	assert.Equal(t, []restdata.Link{{Href: "/accounts/alice", Title: "alice"}}, accounts.Links("item"))

	link, ok = accounts.Link("account")
	require.True(t, ok)
	assert.True(t, link.Templated)
	u, err = c.Follow(link, map[string]interface{}{"account": "alice"})
	require.NoError(t, err)

	var account admin.Account
	_, err = c.Get(ctx, u.String(), &account)
	require.NoError(t, err)
	assert.Equal(t, admin.Account{ID: "alice", Roles: []string{"admin"}}, account)

	_, err = c.Follow(restdata.Link{}, nil)
	assert.Error(t, err)
}

func TestStalePut(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	tag, created, err := c.PutAccount(ctx, admin.Account{ID: "alice", Roles: []string{"reader"}}, "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, tag)

	newTag, created, err := c.PutAccount(ctx, admin.Account{ID: "alice", Roles: []string{"writer"}}, tag)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NotEqual(t, tag, newTag)

	_, _, err = c.PutAccount(ctx, admin.Account{ID: "alice"}, tag)
	var failed restdata.ErrPreconditionFailed
	assert.True(t, errors.As(err, &failed), "%+v", err)
	assert.Equal(t, http.StatusPreconditionFailed, restdata.StatusOf(err, 0))

	account, current, err := c.Account(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, newTag, current)
	assert.Equal(t, []string{"writer"}, account.Roles)
}

func TestPutInvalidatesCache(t *testing.T) {
	c, rec := newClient(t)
	ctx := context.Background()

	_, _, err := c.PutAccount(ctx, admin.Account{ID: "alice", Roles: []string{"reader"}}, "")
	require.NoError(t, err)
	_, tag, err := c.Account(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Cache.Len())

	_, _, err = c.PutAccount(ctx, admin.Account{ID: "alice", Roles: []string{"writer"}}, tag)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Cache.Len())

	account, _, err := c.Account(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, rec.last())
	assert.Equal(t, []string{"writer"}, account.Roles)
}

func TestEncodedAccountID(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()
	_, _, err := c.PutAccount(ctx, admin.Account{ID: "carol/ops"}, "")
	require.NoError(t, err)
	account, _, err := c.Account(ctx, "carol/ops")
	require.NoError(t, err)
	assert.Equal(t, "carol/ops", account.ID)
	assert.Empty(t, account.Roles)
}

func TestAccountsAndDelete(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	accounts, err := c.Accounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	for _, id := range []string{"bob", "alice"} {
		_, _, err = c.PutAccount(ctx, admin.Account{ID: id, Roles: []string{"reader"}}, "")
		require.NoError(t, err)
	}
	accounts, err = c.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []admin.Account{
		{ID: "alice", Roles: []string{"reader"}},
		{ID: "bob", Roles: []string{"reader"}},
	}, accounts)

	require.NoError(t, c.DeleteAccount(ctx, "bob", ""))
	_, _, err = c.Account(ctx, "bob")
	var notFound restdata.ErrNotFound
	assert.True(t, errors.As(err, &notFound), "%+v", err)

	err = c.DeleteAccount(ctx, "bob", "")
	assert.True(t, errors.As(err, &notFound), "%+v", err)
}

func TestMethodNotAllowed(t *testing.T) {
	c, _ := newClient(t)
	_, err := c.Post(context.Background(), "datasets", map[string]string{"name": "gamma"})
	var notAllowed restdata.ErrMethodNotAllowed
	if assert.True(t, errors.As(err, &notAllowed), "%+v", err) {
		assert.Equal(t, "POST", notAllowed.Method)
		assert.Equal(t, []string{"GET", "HEAD", "OPTIONS"}, notAllowed.Allowed)
	}
}

func TestErrorHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()
	c, err := restclient.New(server.URL)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "", nil)
	var httpErr restclient.ErrorHTTP
	if assert.True(t, errors.As(err, &httpErr), "%+v", err) {
		assert.Equal(t, "boom\n", httpErr.Body)
		assert.Equal(t, http.StatusBadGateway, restdata.StatusOf(err, 0))
	}
}

func TestCanceled(t *testing.T) {
	c, _ := newClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Get(ctx, "", nil)
	assert.True(t, errors.Is(err, context.Canceled), "%+v", err)
	_, err = c.Put(ctx, "accounts/alice", admin.Account{}, "")
	assert.Error(t, err)
}
