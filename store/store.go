// Package store provides interfaces and types for mailbox message storage.
// Implementations are in store/memory, store/postgres, store/mongo and
// store/redis. Blob-only backends live under store/blob.
//
// # Architectural Principle: Write Ordering, Not Locks
//
// The substrate this package targets is a distributed row store with no
// multi-row atomicity. Nothing here takes a lock across rows, partitions
// or components. Consistency between a message record, its blobs and its
// attachment index entry comes entirely from two properties:
//
//  1. Idempotent, content-addressed writes: a blob's identifier is the
//     digest of its bytes, so writing the same payload twice is a no-op
//     and concurrent writers of identical content cannot conflict.
//
//  2. Dependencies before dependents: blobs and index entries are made
//     durable before the record that references them. A crash between
//     steps leaves orphans (a blob or index row with no record), which
//     are never read through a path that assumes the record exists.
//
// Example - persisting a message:
//
//	// WRONG: cross-component lock (DO NOT USE)
//	lock.Acquire("msg:" + id)
//	defer lock.Release()
//	records.PutRecord(ctx, rec)
//	blobs.Store(ctx, body)
//
//	// CORRECT: dependencies first, record last
//	headerID, _ := blobs.Store(ctx, header)
//	bodyID, _ := blobs.Store(ctx, body)
//	index.PutAttachmentIDs(ctx, msgID, attachmentIDs)
//	records.PutRecord(ctx, rec) // readers can see it only now
//
// A reader that finds a record whose blob is missing has observed a
// storage-consistency fault (ErrConsistency), not an ordinary miss.
package store

import (
	"context"
)

// Substrate is a complete storage backend for the engine: message rows,
// the attachment index and raw blob payloads.
//
// All operations must be safe for concurrent use. Implementations must not
// add locking across rows; see the package documentation.
type Substrate interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	RecordStore
	AttachmentIndex
	BlobBackend
}

// RecordStore stores per-message metadata rows.
//
// Records are never updated in place: PutRecord replaces the whole row
// keyed by (MailboxID, MessageID, UID).
type RecordStore interface {
	// PutRecord writes rec, replacing any prior row with the same key.
	// Retrying with identical content is safe.
	PutRecord(ctx context.Context, rec *MessageRecord) error

	// GetRecord reads the row for loc.
	// Returns ErrNotFound if no row exists.
	GetRecord(ctx context.Context, loc MessageLocator) (*MessageRecord, error)

	// DeleteRecord removes the row for loc. Deleting an absent row is not
	// an error.
	DeleteRecord(ctx context.Context, loc MessageLocator) error
}

// AttachmentIndex maps a message id to the set of attachment ids it
// references.
//
// Only non-empty sets are persisted: writing an empty set removes any
// existing row, and such messages never appear in a scan.
type AttachmentIndex interface {
	// PutAttachmentIDs replaces the entry for messageID.
	PutAttachmentIDs(ctx context.Context, messageID string, ids []BlobID) error

	// GetAttachmentIDs returns the ids recorded for messageID, or an empty
	// slice when none are recorded.
	GetAttachmentIDs(ctx context.Context, messageID string) ([]BlobID, error)

	// DeleteAttachmentIDs removes the entry for messageID. Deleting an
	// absent entry is not an error.
	DeleteAttachmentIDs(ctx context.Context, messageID string) error

	// ScanAttachmentIDs returns one page of index entries starting after
	// cursor (empty cursor starts from the beginning). The returned next
	// cursor is empty when the scan is complete. Page order is backend
	// defined and carries no meaning.
	ScanAttachmentIDs(ctx context.Context, cursor string, limit int) (page []MessageIDAttachmentIDs, next string, err error)
}

// BlobBackend is the raw, substrate-level payload store. It knows nothing
// about hashing or compression; see store/blob for the content-addressed
// BlobStore built on top of it.
type BlobBackend interface {
	// PutBlob writes data under id. Writing an id that already exists must
	// succeed without changing the stored bytes.
	PutBlob(ctx context.Context, id BlobID, data []byte) error

	// GetBlob reads the payload stored under id.
	// Returns ErrNotFound if nothing was stored under id.
	GetBlob(ctx context.Context, id BlobID) ([]byte, error)

	// HasBlob reports whether a payload exists under id.
	HasBlob(ctx context.Context, id BlobID) (bool, error)
}

// BlobStore is a content-addressed payload store. The identifier returned
// by Store is a deterministic function of data.
type BlobStore interface {
	// Store persists data and returns its identifier. Storing the same bytes
	// again returns the same identifier.
	Store(ctx context.Context, data []byte) (BlobID, error)

	// Retrieve returns the bytes stored under id.
	// Returns ErrNotFound if id was never stored.
	Retrieve(ctx context.Context, id BlobID) ([]byte, error)
}
