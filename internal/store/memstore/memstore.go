// Package memstore is an in-process store.Store for single-machine use and
// tests. All state lives behind one mutex; change notifications are fanned
// out per watcher by a dispatch goroutine that preserves per-path order.
package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mehtakaran9/gridcall/internal/store"
)

type Memstore struct {
	mu          sync.Mutex
	docs        map[string]store.Document
	collections map[string][]store.Document
	docWatchers map[string]map[string]*watcher
	colWatchers map[string]map[string]*watcher
	closed      bool
}

// watcher owns an unbounded ordered queue drained by its own goroutine, so a
// slow consumer never blocks writers and never drops a notification.
type watcher struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []any
	closed bool
}

func newWatcher() *watcher {
	w := &watcher{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *watcher) push(v any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.queue = append(w.queue, v)
	w.cond.Signal()
}

func (w *watcher) next() (any, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for len(w.queue) == 0 && !w.closed {
		w.cond.Wait()
	}
	if len(w.queue) == 0 {
		return nil, false
	}
	v := w.queue[0]
	w.queue = w.queue[1:]
	return v, true
}

func (w *watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.cond.Signal()
}

func New() *Memstore {
	return &Memstore{
		docs:        make(map[string]store.Document),
		collections: make(map[string][]store.Document),
		docWatchers: make(map[string]map[string]*watcher),
		colWatchers: make(map[string]map[string]*watcher),
	}
}

func (m *Memstore) Get(ctx context.Context, path string) (store.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, store.ErrClosed
	}
	doc, ok := m.docs[path]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(doc), nil
}

func (m *Memstore) Create(ctx context.Context, path string, doc store.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return store.ErrClosed
	}
	if _, ok := m.docs[path]; ok {
		return store.ErrExists
	}
	m.docs[path] = clone(doc)
	m.notifyDocLocked(path)
	return nil
}

func (m *Memstore) Update(ctx context.Context, path string, fields store.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return store.ErrClosed
	}
	doc, ok := m.docs[path]
	if !ok {
		return store.ErrNotFound
	}
	for k, v := range fields {
		doc[k] = v
	}
	m.notifyDocLocked(path)
	return nil
}

func (m *Memstore) Set(ctx context.Context, path string, doc store.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return store.ErrClosed
	}
	m.docs[path] = clone(doc)
	m.notifyDocLocked(path)
	return nil
}

func (m *Memstore) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return store.ErrClosed
	}
	delete(m.docs, path)
	return nil
}

func (m *Memstore) Append(ctx context.Context, path string, doc store.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return store.ErrClosed
	}
	c := clone(doc)
	m.collections[path] = append(m.collections[path], c)
	for _, w := range m.colWatchers[path] {
		w.push(store.Change{Type: store.Added, Doc: clone(c)})
	}
	return nil
}

func (m *Memstore) DeleteCollection(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return store.ErrClosed
	}
	delete(m.collections, path)
	return nil
}

func (m *Memstore) Watch(ctx context.Context, path string, fn func(store.Document)) (store.CancelFunc, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, store.ErrClosed
	}
	w := newWatcher()
	id := uuid.NewString()
	if m.docWatchers[path] == nil {
		m.docWatchers[path] = make(map[string]*watcher)
	}
	m.docWatchers[path][id] = w

	// Replay the current document, if any, before later changes.
	if doc, ok := m.docs[path]; ok {
		w.push(clone(doc))
	}
	m.mu.Unlock()

	go func() {
		for {
			v, ok := w.next()
			if !ok {
				return
			}
			fn(v.(store.Document))
		}
	}()

	return m.cancelFunc(m.docWatchers, path, id, w), nil
}

func (m *Memstore) WatchCollection(ctx context.Context, path string, fn func(store.Change)) (store.CancelFunc, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, store.ErrClosed
	}
	w := newWatcher()
	id := uuid.NewString()
	if m.colWatchers[path] == nil {
		m.colWatchers[path] = make(map[string]*watcher)
	}
	m.colWatchers[path][id] = w

	for _, doc := range m.collections[path] {
		w.push(store.Change{Type: store.Added, Doc: clone(doc)})
	}
	m.mu.Unlock()

	go func() {
		for {
			v, ok := w.next()
			if !ok {
				return
			}
			fn(v.(store.Change))
		}
	}()

	return m.cancelFunc(m.colWatchers, path, id, w), nil
}

func (m *Memstore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for _, ws := range m.docWatchers {
		for _, w := range ws {
			w.stop()
		}
	}
	for _, ws := range m.colWatchers {
		for _, w := range ws {
			w.stop()
		}
	}
	return nil
}

func (m *Memstore) notifyDocLocked(path string) {
	doc := m.docs[path]
	for _, w := range m.docWatchers[path] {
		w.push(clone(doc))
	}
}

func (m *Memstore) cancelFunc(reg map[string]map[string]*watcher, path, id string, w *watcher) store.CancelFunc {
	return func() {
		m.mu.Lock()
		if ws, ok := reg[path]; ok {
			delete(ws, id)
			if len(ws) == 0 {
				delete(reg, path)
			}
		}
		m.mu.Unlock()
		w.stop()
	}
}

func clone(doc store.Document) store.Document {
	out := make(store.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
