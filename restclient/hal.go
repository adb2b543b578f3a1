// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

import (
	"context"
	"fmt"
	"net/url"

	"github.com/diffeo/go-restview/restdata"
)

// Document is a decoded HAL document.
type Document map[string]interface{}

// GetDocument retrieves and decodes the HAL document at ref.
func (c *Client) GetDocument(ctx context.Context, ref string) (Document, *Response, error) {
	var doc Document
	resp, err := c.Get(ctx, ref, &doc)
	if err != nil {
		return nil, nil, err
	}
	return doc, resp, nil
}

// Links returns every link for a relation, whether the document has
// a single link object or an array of them.
func (d Document) Links(rel string) []restdata.Link {
	section, _ := d["_links"].(map[string]interface{})
	switch target := section[rel].(type) {
	case map[string]interface{}:
		return []restdata.Link{toLink(target)}
	case []interface{}:
		links := make([]restdata.Link, 0, len(target))
		for _, item := range target {
			if m, ok := item.(map[string]interface{}); ok {
				links = append(links, toLink(m))
			}
		}
		return links
	}
	return nil
}

// Link returns the first link for a relation.
func (d Document) Link(rel string) (restdata.Link, bool) {
	links := d.Links(rel)
	if len(links) == 0 {
		return restdata.Link{}, false
	}
	return links[0], true
}

// Self returns the href of the document's "self" link.
func (d Document) Self() string {
	link, _ := d.Link("self")
	return link.Href
}

// Embedded returns the embedded documents for a relation, again
// whether the document has a single one or an array.
func (d Document) Embedded(rel string) []Document {
	section, _ := d["_embedded"].(map[string]interface{})
	switch target := section[rel].(type) {
	case map[string]interface{}:
		return []Document{Document(target)}
	case []interface{}:
		docs := make([]Document, 0, len(target))
		for _, item := range target {
			if m, ok := item.(map[string]interface{}); ok {
				docs = append(docs, Document(m))
			}
		}
		return docs
	}
	return nil
}

func toLink(m map[string]interface{}) restdata.Link {
	var link restdata.Link
	link.Href, _ = m["href"].(string)
	link.Templated, _ = m["templated"].(bool)
	link.Title, _ = m["title"].(string)
	link.Name, _ = m["name"].(string)
	return link
}

// Follow returns the absolute URL of a link, expanding it with vars
// if it is templated.
func (c *Client) Follow(link restdata.Link, vars map[string]interface{}) (*url.URL, error) {
	if link.Href == "" {
		return nil, fmt.Errorf("link has no href")
	}
	if link.Templated {
		return c.Template(link.Href, vars)
	}
	return c.Resolve(link.Href)
}
