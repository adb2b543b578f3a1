// Copyright 2016-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

import (
	"context"
	"net/http"

	"github.com/diffeo/go-restview/admin"
)

// AccountTemplate locates an account relative to the base URL of an
// administration API.
const AccountTemplate = "accounts/{account}"

func (c *Client) accountURL(id string) (string, error) {
	u, err := c.Template(AccountTemplate, map[string]interface{}{"account": id})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// Account retrieves one account and its current ETag.
func (c *Client) Account(ctx context.Context, id string) (admin.Account, string, error) {
	var account admin.Account
	ref, err := c.accountURL(id)
	if err != nil {
		return account, "", err
	}
	resp, err := c.Get(ctx, ref, &account)
	if err != nil {
		return account, "", err
	}
	return account, resp.ETag, nil
}

// PutAccount creates or replaces an account.  ifMatch is an optional
// precondition.  Returns the new ETag and whether the account was
// created.
func (c *Client) PutAccount(ctx context.Context, account admin.Account, ifMatch string) (string, bool, error) {
	ref, err := c.accountURL(account.ID)
	if err != nil {
		return "", false, err
	}
	resp, err := c.Put(ctx, ref, account, ifMatch)
	if err != nil {
		return "", false, err
	}
	return resp.ETag, resp.StatusCode == http.StatusCreated, nil
}

// DeleteAccount deletes an account.  ifMatch is an optional
// precondition.
func (c *Client) DeleteAccount(ctx context.Context, id, ifMatch string) error {
	ref, err := c.accountURL(id)
	if err != nil {
		return err
	}
	_, err = c.Delete(ctx, ref, ifMatch)
	return err
}

// Accounts retrieves every account, embedded in the streamed
// collection.
func (c *Client) Accounts(ctx context.Context) ([]admin.Account, error) {
	var collection struct {
		Embedded struct {
			Item []admin.Account `json:"item"`
		} `json:"_embedded"`
	}
	if _, err := c.Get(ctx, "accounts?embed=item", &collection); err != nil {
		return nil, err
	}
	return collection.Embedded.Item, nil
}
