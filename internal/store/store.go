// Package store defines the shared document store the room and signaling
// layers coordinate through. Implementations provide durable keyed documents,
// partial-field updates, append-only sub-collections and realtime change
// subscriptions with at-least-once, per-key ordered delivery.
package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrExists   = errors.New("document already exists")
	ErrClosed   = errors.New("store closed")
)

// Document is the schemaless unit of storage. Typed records cross this
// boundary through Encode/Decode.
type Document map[string]any

// ChangeType classifies collection change notifications.
type ChangeType int

const (
	Added ChangeType = iota
	Modified
	Removed
)

// Change is one collection change notification.
type Change struct {
	Type ChangeType
	Doc  Document
}

// CancelFunc unregisters a watcher. Safe to call more than once.
type CancelFunc func()

// Store is the shared document store.
//
// Paths are slash-separated, Firestore style: a document path like
// "rooms/ROOM0" or a collection path like "rooms/ROOM0/fromUSER0/toUSER1/USER0candidates".
//
// Delivery guarantees: watchers observe changes to a single path in the order
// they were applied, at least once. No ordering holds across distinct paths;
// consumers must be idempotent.
type Store interface {
	// Get returns the document at path, or ErrNotFound.
	Get(ctx context.Context, path string) (Document, error)

	// Create writes a new document. Fails with ErrExists if one is present.
	Create(ctx context.Context, path string, doc Document) error

	// Update merges fields into an existing document. Fails with ErrNotFound.
	Update(ctx context.Context, path string, fields Document) error

	// Set writes the document unconditionally, replacing any previous value.
	Set(ctx context.Context, path string, doc Document) error

	// Delete removes the document at path. Missing documents are a no-op.
	Delete(ctx context.Context, path string) error

	// Append adds a document to the append-only collection at path.
	Append(ctx context.Context, path string, doc Document) error

	// DeleteCollection removes an appended collection and its contents.
	DeleteCollection(ctx context.Context, path string) error

	// Watch subscribes to document changes at path. The callback receives the
	// current document immediately if one exists, then every subsequent write.
	Watch(ctx context.Context, path string, fn func(Document)) (CancelFunc, error)

	// WatchCollection subscribes to the collection at path. Existing entries
	// are replayed as Added changes, then each append fires once in arrival
	// order.
	WatchCollection(ctx context.Context, path string, fn func(Change)) (CancelFunc, error)

	Close() error
}
