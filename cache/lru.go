// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package cache provides a small LRU cache of HTTP representations,
// keyed by URL, for clients that issue conditional GET requests.
package cache

import (
	"container/list"
	"sync"
)

// Entry is one cached representation.
type Entry struct {
	// ETag is the verbatim ETag: header value the server sent.
	ETag string

	// ContentType is the Content-Type: header value.
	ContentType string

	// Body is the complete response body.
	Body []byte
}

type item struct {
	key   string
	entry Entry
}

// LRU is a least-recently-used cache with a fixed capacity.  The cache
// can be safely accessed from multiple goroutines.
type LRU struct {
	size      int
	lock      sync.RWMutex
	evictList *list.List
	index     map[string]*list.Element
}

// New creates a cache holding at most size entries.  A size less than
// one is treated as one.
func New(size int) *LRU {
	if size < 1 {
		size = 1
	}
	return &LRU{
		size:      size,
		evictList: list.New(),
		index:     make(map[string]*list.Element),
	}
}

// Get retrieves an entry from the cache, marking it most recently
// used.  This sadly happens under a writer lock, since we need to
// move the entry to the back of the list.
func (lru *LRU) Get(key string) (Entry, bool) {
	lru.lock.Lock()
	defer lru.lock.Unlock()

	if element, present := lru.index[key]; present {
		lru.evictList.MoveToBack(element)
		return element.Value.(*item).entry, true
	}
	return Entry{}, false
}

// Peek looks for an entry without affecting its recency.  This runs
// under a reader lock.
func (lru *LRU) Peek(key string) (Entry, bool) {
	lru.lock.RLock()
	defer lru.lock.RUnlock()

	if element, present := lru.index[key]; present {
		return element.Value.(*item).entry, true
	}
	return Entry{}, false
}

// Put adds an entry to the cache, possibly evicting something.
func (lru *LRU) Put(key string, entry Entry) {
	lru.lock.Lock()
	defer lru.lock.Unlock()

	// Are we just updating an existing entry?
	if element, present := lru.index[key]; present {
		element.Value.(*item).entry = entry
		lru.evictList.MoveToBack(element)
		return
	}

	element := lru.evictList.PushBack(&item{key: key, entry: entry})
	lru.index[key] = element

	// If this caused the cache to go over size, start evicting
	for len(lru.index) > lru.size {
		head := lru.evictList.Front()
		delete(lru.index, head.Value.(*item).key)
		lru.evictList.Remove(head)
	}
}

// Remove takes an entry out of the cache.  It does nothing if the key
// does not exist.
func (lru *LRU) Remove(key string) {
	lru.lock.Lock()
	defer lru.lock.Unlock()

	if element, present := lru.index[key]; present {
		delete(lru.index, key)
		lru.evictList.Remove(element)
	}
}

// Len returns the number of entries in the cache.
func (lru *LRU) Len() int {
	lru.lock.RLock()
	defer lru.lock.RUnlock()
	return len(lru.index)
}
