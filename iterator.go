package mailstore

import (
	"context"
	"errors"
	"iter"

	"github.com/rbaliyan/mailstore/store"
)

// ErrIteratorOutOfBounds is returned when Current() is called without a successful Next().
var ErrIteratorOutOfBounds = errors.New("mailstore: iterator out of bounds - call Next() first")

// AttachmentIterator walks the attachment index one page at a time. Only
// messages with at least one attachment are visited, in backend order.
//
// Any page failure ends the iteration with that error; a scan either
// completes or fails as a whole. Create a new iterator to scan again.
//
// Not safe for concurrent use.
//
//	it := eng.ScanAttachments()
//	for {
//	    ok, err := it.Next(ctx)
//	    if err != nil || !ok {
//	        break
//	    }
//	    entry, _ := it.Current()
//	}
type AttachmentIterator struct {
	engine   *Engine
	pageSize int

	cursor string
	page   []store.MessageIDAttachmentIDs
	idx    int
	done   bool
	err    error
}

// ScanAttachments returns an iterator over the whole attachment index.
func (e *Engine) ScanAttachments() *AttachmentIterator {
	return e.ScanAttachmentsFrom("")
}

// ScanAttachmentsFrom resumes a scan at a cursor previously returned by
// AttachmentIterator.Cursor.
func (e *Engine) ScanAttachmentsFrom(cursor string) *AttachmentIterator {
	return &AttachmentIterator{
		engine:   e,
		pageSize: e.opts.scanPageSize,
		cursor:   cursor,
		idx:      -1,
	}
}

// Next advances to the next entry.
// Returns (true, nil) if an entry is available, (false, nil) when the scan
// is complete and (false, err) when a page could not be read.
func (it *AttachmentIterator) Next(ctx context.Context) (bool, error) {
	if it.err != nil {
		return false, it.err
	}

	for {
		if it.idx+1 < len(it.page) {
			it.idx++
			return true, nil
		}
		if it.done {
			it.page, it.idx = nil, -1
			return false, nil
		}
		if err := it.fetch(ctx); err != nil {
			it.err = err
			it.page, it.idx = nil, -1
			return false, err
		}
	}
}

func (it *AttachmentIterator) fetch(ctx context.Context) error {
	if err := it.engine.checkConnected(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	page, next, err := it.engine.index.ScanAttachmentIDs(ctx, it.cursor, it.pageSize)
	if err != nil {
		return err
	}
	it.engine.otel.recordScanPage(ctx)

	it.page, it.idx = page, -1
	it.cursor = next
	if next == "" {
		it.done = true
	}
	return nil
}

// Current returns the entry at the iterator position.
func (it *AttachmentIterator) Current() (store.MessageIDAttachmentIDs, error) {
	if it.idx < 0 || it.idx >= len(it.page) {
		return store.MessageIDAttachmentIDs{}, ErrIteratorOutOfBounds
	}
	return it.page[it.idx], nil
}

// Cursor returns the position after the last fetched page, for
// ScanAttachmentsFrom. Entries of the current page are not replayed.
func (it *AttachmentIterator) Cursor() string {
	return it.cursor
}

// All returns the remaining entries as a sequence. Iteration stops after
// the first error, which is yielded with a zero entry.
func (it *AttachmentIterator) All(ctx context.Context) iter.Seq2[store.MessageIDAttachmentIDs, error] {
	return func(yield func(store.MessageIDAttachmentIDs, error) bool) {
		for {
			ok, err := it.Next(ctx)
			if err != nil {
				yield(store.MessageIDAttachmentIDs{}, err)
				return
			}
			if !ok {
				return
			}
			cur, _ := it.Current()
			if !yield(cur, nil) {
				return
			}
		}
	}
}

// CollectAttachments scans the whole index into memory. Prefer
// ScanAttachments for large indexes.
func (e *Engine) CollectAttachments(ctx context.Context) ([]store.MessageIDAttachmentIDs, error) {
	var out []store.MessageIDAttachmentIDs
	for entry, err := range e.ScanAttachments().All(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}
