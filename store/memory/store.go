// Package memory provides an in-memory Substrate implementation for testing.
// This store is not suitable for production use - data is not persisted.
package memory

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rbaliyan/mailstore/store"
)

// Store implements store.Substrate with in-memory storage.
// Thread-safe for concurrent use. Not suitable for production.
type Store struct {
	records   sync.Map // map[string]*store.MessageRecord (locator key -> record)
	index     sync.Map // map[string][]store.BlobID (message id -> attachment ids)
	blobs     sync.Map // map[store.BlobID][]byte
	connected int32

	blobWrites atomic.Int64
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{}
}

// Connect marks the store as connected.
func (s *Store) Connect(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}
	return nil
}

// Close marks the store as disconnected.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

// =============================================================================
// Record Operations
// =============================================================================

// PutRecord stores a copy of rec, replacing any prior row with the same key.
func (s *Store) PutRecord(ctx context.Context, rec *store.MessageRecord) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if rec == nil {
		return store.ErrInvalidArgument
	}
	if err := rec.MessageLocator.Validate(); err != nil {
		return err
	}
	s.records.Store(rec.MessageLocator.Key(), rec.Clone())
	return nil
}

// GetRecord returns a copy of the row for loc.
func (s *Store) GetRecord(ctx context.Context, loc store.MessageLocator) (*store.MessageRecord, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	v, ok := s.records.Load(loc.Key())
	if !ok {
		return nil, store.ErrNotFound
	}
	return v.(*store.MessageRecord).Clone(), nil
}

// DeleteRecord removes the row for loc.
func (s *Store) DeleteRecord(ctx context.Context, loc store.MessageLocator) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if err := loc.Validate(); err != nil {
		return err
	}
	s.records.Delete(loc.Key())
	return nil
}

// =============================================================================
// Attachment Index Operations
// =============================================================================

// PutAttachmentIDs replaces the entry for messageID. An empty set removes it.
func (s *Store) PutAttachmentIDs(ctx context.Context, messageID string, ids []store.BlobID) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if messageID == "" {
		return store.ErrInvalidID
	}
	if len(ids) == 0 {
		s.index.Delete(messageID)
		return nil
	}
	s.index.Store(messageID, store.NormalizeBlobIDs(ids))
	return nil
}

// GetAttachmentIDs returns the ids recorded for messageID.
func (s *Store) GetAttachmentIDs(ctx context.Context, messageID string) ([]store.BlobID, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if messageID == "" {
		return nil, store.ErrInvalidID
	}
	v, ok := s.index.Load(messageID)
	if !ok {
		return []store.BlobID{}, nil
	}
	return slices.Clone(v.([]store.BlobID)), nil
}

// DeleteAttachmentIDs removes the entry for messageID.
func (s *Store) DeleteAttachmentIDs(ctx context.Context, messageID string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if messageID == "" {
		return store.ErrInvalidID
	}
	s.index.Delete(messageID)
	return nil
}

// ScanAttachmentIDs pages over the index in message id order. The cursor is
// the last message id of the previous page.
func (s *Store) ScanAttachmentIDs(ctx context.Context, cursor string, limit int) ([]store.MessageIDAttachmentIDs, string, error) {
	if err := s.checkConnected(); err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		return nil, "", store.ErrInvalidArgument
	}

	var keys []string
	s.index.Range(func(k, _ any) bool {
		if id := k.(string); id > cursor {
			keys = append(keys, id)
		}
		return true
	})
	slices.Sort(keys)

	page := make([]store.MessageIDAttachmentIDs, 0, min(limit, len(keys)))
	for _, id := range keys {
		if len(page) == limit {
			break
		}
		v, ok := s.index.Load(id)
		if !ok {
			continue // removed since Range
		}
		entry, err := store.NewMessageIDAttachmentIDs(id, v.([]store.BlobID))
		if err != nil {
			return nil, "", err
		}
		page = append(page, entry)
	}

	var next string
	if len(page) == limit && len(keys) > limit {
		next = page[len(page)-1].MessageID()
	}
	return page, next, nil
}

// =============================================================================
// Blob Operations
// =============================================================================

// PutBlob stores a copy of data under id. Existing ids are left untouched.
func (s *Store) PutBlob(ctx context.Context, id store.BlobID, data []byte) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return store.ErrInvalidID
	}
	if _, loaded := s.blobs.LoadOrStore(id, slices.Clone(data)); !loaded {
		s.blobWrites.Add(1)
	}
	return nil
}

// GetBlob returns a copy of the payload stored under id.
func (s *Store) GetBlob(ctx context.Context, id store.BlobID) ([]byte, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	v, ok := s.blobs.Load(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return slices.Clone(v.([]byte)), nil
}

// HasBlob reports whether id is stored.
func (s *Store) HasBlob(ctx context.Context, id store.BlobID) (bool, error) {
	if err := s.checkConnected(); err != nil {
		return false, err
	}
	_, ok := s.blobs.Load(id)
	return ok, nil
}

// =============================================================================
// Test Helpers
// =============================================================================

// BlobWrites returns the number of physical blob writes performed.
func (s *Store) BlobWrites() int64 {
	return s.blobWrites.Load()
}

// DropBlob removes a stored payload, simulating substrate data loss.
func (s *Store) DropBlob(id store.BlobID) {
	s.blobs.Delete(id)
}

// CorruptBlob replaces a stored payload without changing its id.
func (s *Store) CorruptBlob(id store.BlobID, data []byte) {
	s.blobs.Store(id, slices.Clone(data))
}

// Compile-time check that Store implements store.Substrate.
var _ store.Substrate = (*Store)(nil)
