// Package store provides the persistent document layer: a small key-value
// document store (sqlite by default, postgres for shared deployments) plus a
// typed channel-record store on top of it. The document layer offers
// create-if-absent, shallow field merge, append-only collections, and
// all-or-nothing batches; it never retries, since only the caller knows
// whether an item is safe to re-enqueue.
package store

import (
	"context"
)

// Document is one stored document with its key.
type Document struct {
	Key    string
	Fields map[string]any
}

// DocumentStore is the abstract store the channel layer runs on.
type DocumentStore interface {
	// Get returns the document fields, or ok=false when the key is absent.
	Get(ctx context.Context, collection, key string) (fields map[string]any, ok bool, err error)

	// CreateIfAbsent writes the document only when the key does not exist.
	// Returns false without writing when the key is already present. Must be
	// race-safe: two concurrent calls for the same key result in exactly one
	// write.
	CreateIfAbsent(ctx context.Context, collection, key string, fields map[string]any) (created bool, err error)

	// Merge overlays fields onto the existing document, creating it when
	// absent. Top-level fields only; repeated observations accumulate rather
	// than overwrite the whole document.
	Merge(ctx context.Context, collection, key string, fields map[string]any) error

	// Delete removes a document. Deleting an absent key is not an error.
	Delete(ctx context.Context, collection, key string) error

	// List returns every document in a collection.
	List(ctx context.Context, collection string) ([]Document, error)

	// Append adds a keyless document to an append-only collection.
	Append(ctx context.Context, collection string, fields map[string]any) error

	// Batch starts a write batch committed atomically.
	Batch() Batch

	Close() error
}

// Batch accumulates writes committed together with all-or-nothing semantics.
type Batch interface {
	CreateIfAbsent(collection, key string, fields map[string]any)
	Merge(collection, key string, fields map[string]any)
	Append(collection string, fields map[string]any)

	// Commit applies all queued writes in one transaction. Returns how many
	// CreateIfAbsent writes actually created a document.
	Commit(ctx context.Context) (created int, err error)
}

// batchOp is one queued batch write, shared by both store implementations.
type batchOp struct {
	kind       opKind
	collection string
	key        string
	fields     map[string]any
}

type opKind int

const (
	opCreateIfAbsent opKind = iota
	opMerge
	opAppend
)

// mergeFields overlays src onto dst, returning dst. Top-level shallow merge;
// nil dst allocates.
func mergeFields(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
