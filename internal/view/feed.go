package view

import (
	"context"
	"sort"
	"sync"
	"time"

	"fieldreport/internal/backend"
	"fieldreport/internal/model"
)

// Feed is the live projection of one backend collection: every change
// re-emits the full list, decoded defensively and sorted newest-first.
type Feed[T any] struct {
	store      backend.Store
	collection string
	decode     func(backend.Document, time.Time) T
	capturedAt func(T) time.Time
	now        func() time.Time
}

func NewFeed[T any](store backend.Store, collection string, decode func(backend.Document, time.Time) T, capturedAt func(T) time.Time) *Feed[T] {
	return &Feed[T]{
		store:      store,
		collection: collection,
		decode:     decode,
		capturedAt: capturedAt,
		now:        time.Now,
	}
}

func Locations(store backend.Store) *Feed[model.LocationRecord] {
	return NewFeed(store, backend.CollectionLocations,
		func(doc backend.Document, now time.Time) model.LocationRecord { return model.DecodeLocation(doc, now) },
		func(r model.LocationRecord) time.Time { return r.CapturedAt })
}

func Pictures(store backend.Store) *Feed[model.MediaRecord] {
	return NewFeed(store, backend.CollectionPictures,
		func(doc backend.Document, now time.Time) model.MediaRecord { return model.DecodeMedia(doc, now) },
		func(r model.MediaRecord) time.Time { return r.CapturedAt })
}

// Snapshot reads the collection once and returns the decoded list,
// newest-first.
func (f *Feed[T]) Snapshot(ctx context.Context) ([]T, error) {
	docs, err := f.store.Snapshot(ctx, f.collection)
	if err != nil {
		return nil, err
	}
	return f.project(docs), nil
}

func (f *Feed[T]) project(docs []backend.Document) []T {
	now := f.now()
	records := make([]T, 0, len(docs))
	for _, doc := range docs {
		records = append(records, f.decode(doc, now))
	}
	sort.SliceStable(records, func(i, j int) bool {
		return f.capturedAt(records[i]).After(f.capturedAt(records[j]))
	})
	return records
}

// Subscription delivers the current full list immediately, then the re-sorted
// full list after every backend change. Emissions coalesce when the consumer
// lags. Close releases the backend watcher; a feed supports any number of
// attach/detach cycles.
type Subscription[T any] struct {
	C <-chan []T

	cancelWatch func()
	done        chan struct{}
	once        sync.Once
}

func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.cancelWatch()
		close(s.done)
	})
}

func (f *Feed[T]) Subscribe(ctx context.Context) *Subscription[T] {
	out := make(chan []T, 1)
	watch, cancelWatch := f.store.Watch(f.collection)
	sub := &Subscription[T]{C: out, cancelWatch: cancelWatch, done: make(chan struct{})}

	go func() {
		defer close(out)

		emit := func() {
			docs, err := f.store.Snapshot(ctx, f.collection)
			if err != nil {
				// A failed read skips one emission; the subscription survives.
				return
			}
			records := f.project(docs)
			for {
				select {
				case out <- records:
					return
				default:
					// drop the stale pending list and retry
					select {
					case <-out:
					default:
					}
				}
			}
		}

		emit()
		for {
			select {
			case <-sub.done:
				return
			case <-ctx.Done():
				return
			case <-watch:
				emit()
			}
		}
	}()

	return sub
}
