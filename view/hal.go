// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package view

import (
	"fmt"
	"sort"

	"github.com/diffeo/go-restview/embed"
	"github.com/diffeo/go-restview/jsonstream"
	"github.com/diffeo/go-restview/restdata"
)

// Linkable is anything another document can link to.
type Linkable interface {
	// Link returns the link to this resource, including its
	// title.
	Link(ctx *Context) (restdata.Link, error)
}

// Resource is a Linkable with a HAL representation of its own, which
// makes it possible to embed.
type Resource interface {
	Linkable

	// Document returns the resource's properties and relations.
	// It should not include the "self" link, which comes from
	// Link.
	Document(ctx *Context) (Document, error)
}

// Document is the unrendered content of a HAL document.
type Document struct {
	// Properties are top-level members of the document.
	Properties map[string]interface{}

	// Links maps relation names to their targets.  A target is a
	// Linkable, a restdata.Link, a slice of either, or a Deferred
	// producing one of those.  Relations
	// named in the embed tree whose targets are Resources are
	// rendered into "_embedded" instead of "_links".
	Links map[string]interface{}
}

// Deferred is a relation target that is only computed if the
// relation is actually rendered, for instance the items of a
// collection that is usually streamed.
type Deferred func(ctx *Context) (interface{}, error)

// Link adds a relation to d.
func (d *Document) Link(rel string, target interface{}) {
	if d.Links == nil {
		d.Links = make(map[string]interface{})
	}
	d.Links[rel] = target
}

// Set adds a property to d.
func (d *Document) Set(name string, value interface{}) {
	if d.Properties == nil {
		d.Properties = make(map[string]interface{})
	}
	d.Properties[name] = value
}

// Render produces the HAL document for r, embedding the relations
// named in tree recursively.
func Render(ctx *Context, r Resource, tree embed.Tree) (map[string]interface{}, error) {
	self, err := r.Link(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := r.Document(ctx)
	if err != nil {
		return nil, err
	}
	return render(ctx, self, doc, tree)
}

func render(ctx *Context, self restdata.Link, doc Document, tree embed.Tree) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(doc.Properties)+2)
	for name, value := range doc.Properties {
		out[name] = value
	}
	links := map[string]interface{}{"self": self}
	embedded := make(map[string]interface{})
	for rel, target := range doc.Links {
		if deferred, ok := target.(Deferred); ok {
			var err error
			if target, err = deferred(ctx); err != nil {
				return nil, err
			}
		}
		if tree.Has(rel) {
			rendered, ok, err := renderEmbedded(ctx, target, tree.Get(rel))
			if err != nil {
				return nil, err
			}
			if ok {
				embedded[rel] = rendered
				continue
			}
		}
		link, err := renderLink(ctx, target)
		if err != nil {
			return nil, err
		}
		links[rel] = link
	}
	out["_links"] = links
	if len(embedded) > 0 {
		out["_embedded"] = embedded
	}
	return out, nil
}

// renderLink turns a relation target into a link or list of links.
func renderLink(ctx *Context, target interface{}) (interface{}, error) {
	switch t := target.(type) {
	case restdata.Link:
		return t, nil
	case []restdata.Link:
		return t, nil
	case Linkable:
		return t.Link(ctx)
	case []Linkable:
		links := make([]restdata.Link, len(t))
		for i, item := range t {
			var err error
			links[i], err = item.Link(ctx)
			if err != nil {
				return nil, err
			}
		}
		return links, nil
	case []Resource:
		links := make([]restdata.Link, len(t))
		for i, item := range t {
			var err error
			links[i], err = item.Link(ctx)
			if err != nil {
				return nil, err
			}
		}
		return links, nil
	}
	return nil, fmt.Errorf("cannot link to %T", target)
}

// renderEmbedded renders a relation target for "_embedded".  It
// returns false if the target is not made of Resources.
func renderEmbedded(ctx *Context, target interface{}, tree embed.Tree) (interface{}, bool, error) {
	switch t := target.(type) {
	case Resource:
		doc, err := Render(ctx, t, tree)
		return doc, err == nil, err
	case []Resource:
		docs := make([]interface{}, len(t))
		for i, item := range t {
			var err error
			docs[i], err = Render(ctx, item, tree)
			if err != nil {
				return nil, false, err
			}
		}
		return docs, true, nil
	}
	return nil, false, nil
}

// StreamCollection renders r with its rel relation streamed from
// items, which must produce Linkable values.  If tree embeds rel, the
// items are rendered in full under "_embedded"; otherwise their links
// are streamed under "_links".  Whatever r's Document lists for rel is
// ignored, so a collection can list its items eagerly there for when
// it is embedded in another document.  Other relations of r are
// rendered as by Render.
func StreamCollection(ctx *Context, r Resource, rel string, items jsonstream.Source, tree embed.Tree) (jsonstream.Nested, error) {
	doc, err := streamedDocument(ctx, r, rel, tree)
	if err != nil {
		closeSource(items)
		return jsonstream.Nested{}, err
	}
	links, _ := doc["_links"].(map[string]interface{})
	embedded, _ := doc["_embedded"].(map[string]interface{})
	delete(doc, "_links")
	delete(doc, "_embedded")

	var streamed jsonstream.Source
	if tree.Has(rel) {
		subtree := tree.Get(rel)
		streamed = jsonstream.Map(items, func(item interface{}) (interface{}, error) {
			if resource, ok := item.(Resource); ok {
				return Render(ctx, resource, subtree)
			}
			return renderLink(ctx, item)
		})
	} else {
		streamed = jsonstream.Map(items, func(item interface{}) (interface{}, error) {
			return renderLink(ctx, item)
		})
	}

	members := sortedMembers(doc)
	linkMembers := sortedMembers(links)
	if tree.Has(rel) {
		embeddedMembers := append(sortedMembers(embedded), jsonstream.Member{Key: rel, Value: streamed})
		members = append(members,
			jsonstream.Member{Key: "_links", Value: jsonstream.Members(linkMembers...)},
			jsonstream.Member{Key: "_embedded", Value: jsonstream.Members(embeddedMembers...)},
		)
	} else {
		linkMembers = append(linkMembers, jsonstream.Member{Key: rel, Value: streamed})
		members = append(members, jsonstream.Member{Key: "_links", Value: jsonstream.Members(linkMembers...)})
		if len(embedded) > 0 {
			members = append(members, jsonstream.Member{Key: "_embedded", Value: embedded})
		}
	}
	return jsonstream.Members(members...), nil
}

// streamedDocument renders r without its rel relation.
func streamedDocument(ctx *Context, r Resource, rel string, tree embed.Tree) (map[string]interface{}, error) {
	self, err := r.Link(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := r.Document(ctx)
	if err != nil {
		return nil, err
	}
	links := make(map[string]interface{}, len(doc.Links))
	for name, target := range doc.Links {
		if name != rel {
			links[name] = target
		}
	}
	doc.Links = links
	return render(ctx, self, doc, tree)
}

func sortedMembers(m map[string]interface{}) []jsonstream.Member {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	members := make([]jsonstream.Member, len(keys))
	for i, key := range keys {
		members[i] = jsonstream.Member{Key: key, Value: m[key]}
	}
	return members
}

func closeSource(src jsonstream.Source) {
	if closer, ok := src.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}
