package backend

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Collection names the backend accepts. Records are append-only; nothing in
// this service mutates or deletes a stored document.
const (
	CollectionLocations = "user_locations"
	CollectionPictures  = "user_picture"
	CollectionLogins    = "login_information"
)

var ErrUnavailable = errors.New("record store unavailable")

type Document map[string]any

// Store is the record-store collaborator: append with a server-assigned
// capture timestamp, unordered snapshot reads, and change watching.
type Store interface {
	Append(ctx context.Context, collection string, fields Document) (Document, error)
	Snapshot(ctx context.Context, collection string) ([]Document, error)
	Watch(collection string) (<-chan struct{}, func())
}

type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*collection
	closed      bool
	now         func() time.Time
}

type collection struct {
	docs     []Document
	watchers map[chan struct{}]struct{}
}

func New() *MemoryStore {
	return NewWithClock(time.Now)
}

func NewWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*collection),
		now:         now,
	}
}

func (s *MemoryStore) coll(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{watchers: make(map[chan struct{}]struct{})}
		s.collections[name] = c
	}
	return c
}

// Append stores a copy of fields with capturedAt stamped by the store clock
// and notifies every watcher of the collection.
func (s *MemoryStore) Append(ctx context.Context, name string, fields Document) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := make(Document, len(fields)+1)
	for k, v := range fields {
		doc[k] = v
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrUnavailable
	}
	doc["capturedAt"] = s.now().UTC()
	c := s.coll(name)
	c.docs = append(c.docs, doc)
	watchers := make([]chan struct{}, 0, len(c.watchers))
	for ch := range c.watchers {
		watchers = append(watchers, ch)
	}
	s.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- struct{}{}:
		default:
			// watcher already has a pending signal; changes coalesce
		}
	}
	return copyDocument(doc), nil
}

// Snapshot returns copies of every document in the collection, unordered.
func (s *MemoryStore) Snapshot(ctx context.Context, name string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrUnavailable
	}

	c, ok := s.collections[name]
	if !ok {
		return []Document{}, nil
	}
	result := make([]Document, 0, len(c.docs))
	for _, doc := range c.docs {
		result = append(result, copyDocument(doc))
	}
	return result, nil
}

// Watch returns a buffered change-notification channel for the collection and
// a cancel func that must be called to release the watcher. The channel is
// never closed: an Append may have snapshotted the watcher list before cancel
// runs, and its pending send must stay safe.
func (s *MemoryStore) Watch(name string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	c := s.coll(name)
	c.watchers[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(c.watchers, ch)
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

// Close marks the store unavailable. Appends and snapshots fail afterwards;
// watchers stay registered but receive no further signals.
func (s *MemoryStore) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func copyDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
