// Copyright 2016-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package admin implements a small administration REST API on top of
// package view: a root document, the configured datasets, and user
// accounts kept in a Store.
//
// The API has the routes
//
//     /                      root           GET
//     /datasets              datasets       GET
//     /datasets/{dataset}    dataset        GET
//     /accounts              accounts       GET (streamed)
//     /accounts/{account}    account        GET, PUT, DELETE
//
// All documents are HAL; every relation can be inlined with the
// embed query parameter, e.g. /?embed=datasets.item.
package admin

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/diffeo/go-restview/etag"
	"github.com/diffeo/go-restview/jsonstream"
	"github.com/diffeo/go-restview/restdata"
	"github.com/diffeo/go-restview/view"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Account is a user account and the roles granted to it.
type Account struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}

// Normalize sorts the account's roles and removes duplicates and
// empty strings.  Roles is never nil afterwards.
func (a *Account) Normalize() {
	seen := make(map[string]bool, len(a.Roles))
	roles := make([]string, 0, len(a.Roles))
	for _, role := range a.Roles {
		if role != "" && !seen[role] {
			seen[role] = true
			roles = append(roles, role)
		}
	}
	sort.Strings(roles)
	a.Roles = roles
}

// Dataset is a configured dataset.  Datasets are read-only through
// the API.
type Dataset struct {
	// Name is the dataset's identifier in URLs.
	Name string `json:"name" mapstructure:"-"`

	// Title is a human-readable name.
	Title string `json:"title" mapstructure:"title"`

	// DescribedBy optionally points at external documentation.
	DescribedBy string `json:"describedby,omitempty" mapstructure:"describedby"`
}

// ErrNoSuchAccount is returned by a Store for an account that does
// not exist.
type ErrNoSuchAccount struct {
	ID string
}

func (e ErrNoSuchAccount) Error() string {
	return fmt.Sprintf("no such account %q", e.ID)
}

// HTTPStatus returns a fixed 404 Not Found error code.
func (e ErrNoSuchAccount) HTTPStatus() int {
	return http.StatusNotFound
}

// ErrorCode returns "ErrNotFound".
func (e ErrNoSuchAccount) ErrorCode() string {
	return "ErrNotFound"
}

// Store holds accounts.  Implementations must be safe for concurrent
// use.
type Store interface {
	// Accounts returns a source of every Account, ordered by ID.
	// The source must not acquire resources such as a database
	// cursor before its first Next call, and must release them
	// when it is exhausted or closed.
	Accounts(ctx context.Context) (jsonstream.Source, error)

	// Account retrieves one account, or returns ErrNoSuchAccount.
	Account(ctx context.Context, id string) (Account, error)

	// PutAccount creates or replaces an account, returning true
	// if it did not exist before.  If check is not nil, it is
	// called with the account's current state first, and its
	// error abandons the change.
	PutAccount(ctx context.Context, account Account, check Precondition) (bool, error)

	// DeleteAccount removes an account, or returns
	// ErrNoSuchAccount.  check is handled as for PutAccount.
	DeleteAccount(ctx context.Context, id string, check Precondition) error
}

// Precondition inspects an account, or nil if it does not exist, just
// before a store changes it.  The store holds whatever lock or
// transaction makes the check and the change atomic, so two writers
// that both passed an earlier check cannot both succeed.
type Precondition func(current *Account) error

// API holds the persistent state of the administration API.
type API struct {
	Store    Store
	Datasets []Dataset

	byName    map[string]Dataset
	configTag etag.ETag
}

// New creates the API over a store and a list of datasets.
func New(store Store, datasets []Dataset) (*API, error) {
	api := &API{
		Store:    store,
		Datasets: append([]Dataset(nil), datasets...),
		byName:   make(map[string]Dataset, len(datasets)),
	}
	sort.Slice(api.Datasets, func(i, j int) bool {
		return api.Datasets[i].Name < api.Datasets[j].Name
	})
	for _, dataset := range api.Datasets {
		if _, dup := api.byName[dataset.Name]; dup {
			return nil, fmt.Errorf("duplicate dataset %q", dataset.Name)
		}
		api.byName[dataset.Name] = dataset
	}
	var err error
	api.configTag, err = etag.Compute(api.Datasets)
	if err != nil {
		return nil, err
	}
	return api, nil
}

// NewRouter creates a new HTTP handler that serves the API at the
// root of the URL space.  For more control, create a mux.Router and
// call Populate instead.
func NewRouter(api *API, logger logrus.FieldLogger) *mux.Router {
	r := mux.NewRouter()
	api.Populate(r, logger)
	return r
}

// Populate adds the API's routes to an existing router.  This can be
// used, for instance, to place the API under a subpath:
//
//     r := mux.NewRouter()
//     s := r.PathPrefix("/admin").Subrouter()
//     api.Populate(s, logger)
func (api *API) Populate(r *mux.Router, logger logrus.FieldLogger) {
	view.Register(r, "root", "/", api.rootView, logger)
	view.Register(r, "datasets", "/datasets", api.datasetsView, logger)
	view.Register(r, "dataset", "/datasets/{dataset}", api.datasetView, logger)
	view.Register(r, "accounts", "/accounts", api.accountsView, logger)
	view.Register(r, "account", "/accounts/{account}", api.accountView, logger)
}

// configETag returns the validator for a document that depends only
// on configuration, or nil if the embed tree reaches into accounts.
func (api *API) configETag(ctx *view.Context) (*etag.ETag, error) {
	for _, path := range ctx.Embed.Paths() {
		if reachesAccounts(path) {
			return nil, nil
		}
	}
	tag, err := etag.Compute(struct {
		Config    string
		Embed     string
		MediaType string
	}{api.configTag.Tag, ctx.Embed.String(), ctx.MediaType})
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

func notFound(err error) error {
	return restdata.ErrNotFound{Err: err}
}
