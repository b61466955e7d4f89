// internal/docstore/docstore.go
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Package docstore is a thin uniform layer over a remote document
// database: JSON documents at hierarchical slash-separated paths
// ("rooms/{roomId}/votes/{userId}"), collection queries, live snapshot
// subscriptions, and atomic multi-document transactions. It owns the
// only dependency on the backing store's client library; every other
// package talks to the Store interface.

var (
	// ErrNotFound is returned when an operation requires a document
	// that does not exist.
	ErrNotFound = errors.New("docstore: document not found")

	// ErrTxRetriesExceeded is returned when a transaction keeps losing
	// optimistic-concurrency conflicts. Callers should treat it as
	// transient and surface it without retrying further.
	ErrTxRetriesExceeded = errors.New("docstore: transaction retries exceeded")

	// ErrReadAfterWrite is returned when a transaction body issues a
	// read after staging a write. The backing engine's optimistic
	// contract requires all reads to complete before the first write.
	ErrReadAfterWrite = errors.New("docstore: read issued after write in transaction")
)

// Document is one stored document: its id (the last path segment), its
// full path, and its raw JSON payload.
type Document struct {
	ID   string
	Path string
	Data []byte
}

// Decode unmarshals the document payload into dest.
func (d *Document) Decode(dest any) error {
	if err := json.Unmarshal(d.Data, dest); err != nil {
		return fmt.Errorf("docstore: decode %s: %w", d.Path, err)
	}
	return nil
}

// Txn is the handle a transaction body receives. Reads snapshot the
// documents they touch; writes are staged and committed atomically
// with the reads validated, or not at all. All reads must precede the
// first write.
type Txn interface {
	// Get reads a document into dest, returning false if it is absent.
	Get(path string, dest any) (bool, error)
	// Set stages a create-or-overwrite of the document at path.
	Set(path string, doc any) error
	// Delete stages removal of the document at path.
	Delete(path string)
}

// Store is the uniform surface consumed by the room, option, vote and
// comment packages.
type Store interface {
	Get(ctx context.Context, path string, dest any) (bool, error)
	Set(ctx context.Context, path string, doc any) error
	Update(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	Query(ctx context.Context, collection string, opts ...QueryOption) ([]Document, error)

	// Subscribe delivers the document at path once immediately, then
	// again after every change. A nil delivery means the document is
	// absent or was deleted.
	Subscribe(ctx context.Context, path string) *DocWatch
	// SubscribeCollection delivers the full collection once
	// immediately, then again after every change to any member.
	SubscribeCollection(ctx context.Context, collection string, opts ...QueryOption) *CollectionWatch

	// RunTransaction runs fn with a transactional handle. The body may
	// be retried on write conflicts, so it must be free of side
	// effects outside the store.
	RunTransaction(ctx context.Context, fn func(tx Txn) error) error

	// NewID returns a fresh document id.
	NewID() string
	// ServerTimestamp returns the store's notion of now.
	ServerTimestamp(ctx context.Context) time.Time

	Close() error
}

// QueryOption adjusts how Query and SubscribeCollection order results.
type QueryOption func(*queryOptions)

type queryOptions struct {
	orderField string
	orderDesc  bool
}

// OrderBy sorts results ascending by the named JSON field.
func OrderBy(field string) QueryOption {
	return func(o *queryOptions) { o.orderField = field }
}

// OrderByDesc sorts results descending by the named JSON field.
func OrderByDesc(field string) QueryOption {
	return func(o *queryOptions) { o.orderField = field; o.orderDesc = true }
}

// DocWatch is a live subscription to a single document. Consumers
// receive on C and must call Unsubscribe when done; an unreleased
// watch leaks a standing server-side listener.
type DocWatch struct {
	C    <-chan *Document
	stop func()
}

// Unsubscribe releases the underlying listener. C is closed afterwards.
func (w *DocWatch) Unsubscribe() { w.stop() }

// CollectionWatch is a live subscription to a whole collection.
type CollectionWatch struct {
	C    <-chan []Document
	stop func()
}

// Unsubscribe releases the underlying listener. C is closed afterwards.
func (w *CollectionWatch) Unsubscribe() { w.stop() }

// parentCollection returns the collection path containing the document
// at path, e.g. "rooms/r1/votes/u1" -> "rooms/r1/votes".
func parentCollection(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

// docID returns the last segment of path.
func docID(path string) string {
	idx := strings.LastIndex(path, "/")
	return path[idx+1:]
}
