// Copyright 2016-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package admin

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/diffeo/go-restview/etag"
	"github.com/diffeo/go-restview/jsonstream"
	"github.com/diffeo/go-restview/restdata"
	"github.com/diffeo/go-restview/view"
)

func reachesAccounts(path string) bool {
	for _, segment := range strings.Split(path, ".") {
		if segment == "accounts" {
			return true
		}
	}
	return false
}

// root

type rootView struct {
	view.Base
	api *API
}

func (api *API) rootView(ctx *view.Context) (view.View, error) {
	return &rootView{api: api}, nil
}

func (v *rootView) Link(ctx *view.Context) (restdata.Link, error) {
	href, err := ctx.URL("root")
	return restdata.Link{Href: href, Title: "Administration API"}, err
}

func (v *rootView) Document(ctx *view.Context) (view.Document, error) {
	var doc view.Document
	doc.Link("accounts", &accountsView{api: v.api})
	doc.Link("datasets", &datasetsView{api: v.api})
	return doc, nil
}

func (v *rootView) ETag(ctx *view.Context) (*etag.ETag, error) {
	return v.api.configETag(ctx)
}

func (v *rootView) Get(ctx *view.Context) (interface{}, error) {
	return view.Render(ctx, v, ctx.Embed)
}

// datasets

type datasetsView struct {
	view.Base
	api *API
}

func (api *API) datasetsView(ctx *view.Context) (view.View, error) {
	return &datasetsView{api: api}, nil
}

func (v *datasetsView) Link(ctx *view.Context) (restdata.Link, error) {
	href, err := ctx.URL("datasets")
	return restdata.Link{Href: href, Title: "Datasets"}, err
}

func (v *datasetsView) Document(ctx *view.Context) (view.Document, error) {
	var doc view.Document
	items := make([]view.Resource, len(v.api.Datasets))
	for i, dataset := range v.api.Datasets {
		items[i] = &datasetView{api: v.api, dataset: dataset}
	}
	doc.Link("item", items)
	doc.Link("up", &rootView{api: v.api})
	return doc, nil
}

func (v *datasetsView) ETag(ctx *view.Context) (*etag.ETag, error) {
	return v.api.configETag(ctx)
}

func (v *datasetsView) Get(ctx *view.Context) (interface{}, error) {
	return view.Render(ctx, v, ctx.Embed)
}

type datasetView struct {
	view.Base
	api     *API
	dataset Dataset
}

func (api *API) datasetView(ctx *view.Context) (view.View, error) {
	name := ctx.Vars["dataset"]
	dataset, ok := api.byName[name]
	if !ok {
		return nil, notFound(fmt.Errorf("no such dataset %q", name))
	}
	return &datasetView{api: api, dataset: dataset}, nil
}

func (v *datasetView) Link(ctx *view.Context) (restdata.Link, error) {
	href, err := ctx.URL("dataset", "dataset", v.dataset.Name)
	title := v.dataset.Title
	if title == "" {
		title = v.dataset.Name
	}
	return restdata.Link{Href: href, Title: title}, err
}

func (v *datasetView) Document(ctx *view.Context) (view.Document, error) {
	var doc view.Document
	doc.Set("name", v.dataset.Name)
	doc.Set("title", v.dataset.Title)
	doc.Link("up", &datasetsView{api: v.api})
	if v.dataset.DescribedBy != "" {
		doc.Link("describedby", restdata.Link{Href: v.dataset.DescribedBy})
	}
	return doc, nil
}

func (v *datasetView) ETag(ctx *view.Context) (*etag.ETag, error) {
	return v.api.configETag(ctx)
}

func (v *datasetView) Get(ctx *view.Context) (interface{}, error) {
	return view.Render(ctx, v, ctx.Embed)
}

// accounts

type accountsView struct {
	view.Base
	api *API
}

func (api *API) accountsView(ctx *view.Context) (view.View, error) {
	return &accountsView{api: api}, nil
}

func (v *accountsView) Link(ctx *view.Context) (restdata.Link, error) {
	href, err := ctx.URL("accounts")
	return restdata.Link{Href: href, Title: "Accounts"}, err
}

// item turns an Account from the store into its resource.
func (v *accountsView) item(value interface{}) (interface{}, error) {
	account, ok := value.(Account)
	if !ok {
		return nil, fmt.Errorf("store produced %T, not an Account", value)
	}
	return &accountView{api: v.api, id: account.ID, account: &account}, nil
}

func (v *accountsView) Document(ctx *view.Context) (view.Document, error) {
	var doc view.Document
	doc.Link("up", &rootView{api: v.api})
	tmpl, err := ctx.Template("account", "account")
	if err != nil {
		return doc, err
	}
	doc.Link("account", restdata.Link{Href: tmpl, Templated: true, Title: "Account by ID"})
	// Only computed when this collection is embedded somewhere
	// else; served directly, the items are streamed.
	doc.Link("item", view.Deferred(func(ctx *view.Context) (interface{}, error) {
		src, err := v.api.Store.Accounts(ctx.Context())
		if err != nil {
			return nil, err
		}
		var items []view.Resource
		err = drain(ctx, jsonstream.Map(src, v.item), func(item interface{}) {
			items = append(items, item.(view.Resource))
		})
		return items, err
	}))
	return doc, nil
}

func (v *accountsView) Get(ctx *view.Context) (interface{}, error) {
	src, err := v.api.Store.Accounts(ctx.Context())
	if err != nil {
		return nil, err
	}
	return view.StreamCollection(ctx, v, "item", jsonstream.Map(src, v.item), ctx.Embed)
}

// drain reads every item from src, closing it afterwards.
func drain(ctx *view.Context, src jsonstream.Source, f func(interface{})) (err error) {
	if closer, ok := src.(io.Closer); ok {
		defer func() {
			if err2 := closer.Close(); err == nil {
				err = err2
			}
		}()
	}
	for {
		item, err := src.Next(ctx.Context())
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		f(item)
	}
}

type accountView struct {
	view.Base
	api *API
	id  string

	// account is nil if the account does not exist yet.
	account *Account
}

func (api *API) accountView(ctx *view.Context) (view.View, error) {
	id := ctx.Vars["account"]
	v := &accountView{api: api, id: id}
	account, err := api.Store.Account(ctx.Context(), id)
	var missing ErrNoSuchAccount
	switch {
	case errors.As(err, &missing):
		// A PUT can still create it
	case err != nil:
		return nil, err
	default:
		v.account = &account
	}
	return v, nil
}

func (v *accountView) Allow() []string {
	return []string{"GET", "HEAD", "PUT", "DELETE", "OPTIONS"}
}

func (v *accountView) Link(ctx *view.Context) (restdata.Link, error) {
	href, err := ctx.URL("account", "account", v.id)
	return restdata.Link{Href: href, Title: v.id}, err
}

func (v *accountView) Document(ctx *view.Context) (view.Document, error) {
	var doc view.Document
	if v.account == nil {
		return doc, ErrNoSuchAccount{ID: v.id}
	}
	doc.Set("id", v.account.ID)
	doc.Set("roles", v.account.Roles)
	doc.Link("up", &accountsView{api: v.api})
	return doc, nil
}

// AccountETag returns the entity tag of an account's representation.
func AccountETag(account Account) (etag.ETag, error) {
	account.Normalize()
	return etag.Compute(account)
}

func (v *accountView) ETag(ctx *view.Context) (*etag.ETag, error) {
	if v.account == nil {
		return nil, nil
	}
	tag, err := AccountETag(*v.account)
	return &tag, err
}

// conditions re-checks the request's If-Match: and If-None-Match:
// headers against the account as the store sees it when writing.  It
// is nil for an unconditional request.
func conditions(ctx *view.Context) Precondition {
	header := ctx.Request.Header
	if header.Get("If-Match") == "" && header.Get("If-None-Match") == "" {
		return nil
	}
	return func(current *Account) error {
		var tag *etag.ETag
		if current != nil {
			t, err := AccountETag(*current)
			if err != nil {
				return err
			}
			tag = &t
		}
		return etag.EvaluateRequest(ctx.Request, tag)
	}
}

func (v *accountView) Get(ctx *view.Context) (interface{}, error) {
	if v.account == nil {
		return nil, ErrNoSuchAccount{ID: v.id}
	}
	return view.Render(ctx, v, ctx.Embed)
}

func (v *accountView) Put(ctx *view.Context) (interface{}, error) {
	var in Account
	if err := ctx.Decode(&in); err != nil {
		return nil, err
	}
	if in.ID != "" && in.ID != v.id {
		return nil, restdata.ErrBadRequest{
			Err: fmt.Errorf("account ID %q does not match URL %q", in.ID, v.id),
		}
	}
	in.ID = v.id
	in.Normalize()
	created, err := v.api.Store.PutAccount(ctx.Context(), in, conditions(ctx))
	if err != nil {
		return nil, err
	}
	tag, err := AccountETag(in)
	if err != nil {
		return nil, err
	}
	ctx.Header.Set("ETag", tag.String())
	ctx.Logger.WithField("account", v.id).Info("Account updated")

	v.account = &in
	if !created {
		return nil, nil
	}
	link, err := v.Link(ctx)
	if err != nil {
		return nil, err
	}
	body, err := view.Render(ctx, v, ctx.Embed)
	return view.Created{Location: link.Href, Body: body}, err
}

func (v *accountView) Delete(ctx *view.Context) (interface{}, error) {
	if v.account == nil {
		return nil, ErrNoSuchAccount{ID: v.id}
	}
	if err := v.api.Store.DeleteAccount(ctx.Context(), v.id, conditions(ctx)); err != nil {
		return nil, err
	}
	ctx.Logger.WithField("account", v.id).Info("Account deleted")
	return nil, nil
}
