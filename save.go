package mailstore

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/rbaliyan/mailstore/content"
	"github.com/rbaliyan/mailstore/store"
)

// MessageInput is one message handed to Save by a protocol layer.
type MessageInput struct {
	Locator store.MessageLocator

	// InternalDate defaults to the time of Save when zero.
	InternalDate time.Time

	// Content is the raw message. BodyStart is the offset of the first
	// body byte; the header is Content[:BodyStart].
	Content   []byte
	BodyStart int64

	Flags       store.Flags
	Properties  store.Properties
	Attachments []store.Attachment
}

// DetectBodyStart sets BodyStart to the offset after the first blank line
// of Content.
func (in *MessageInput) DetectBodyStart() {
	in.BodyStart = content.FindBodyStart(in.Content)
}

// Save persists a message and returns the record that became visible.
//
// Writes happen in dependency order: header and body blobs and attachment
// blobs first, then the attachment index entry, then the record. A failure
// at any step returns an error and leaves only unreferenced blobs or index
// rows behind; the record is never written before what it references.
// Saving identical input again is idempotent.
func (e *Engine) Save(ctx context.Context, in MessageInput) (rec *store.MessageRecord, err error) {
	if err := e.checkConnected(); err != nil {
		return nil, err
	}
	if err := ValidateInputWithLimits(&in, e.opts.limits()); err != nil {
		return nil, err
	}

	if err := e.saveSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.saveSem.Release(1)

	ctx, endSpan := e.otel.startSpan(ctx, "mailstore.save",
		attribute.String("mailbox_id", in.Locator.MailboxID),
		attribute.String("message_id", in.Locator.MessageID),
		attribute.Int64("size", int64(len(in.Content))),
	)
	start := time.Now()
	defer func() {
		e.otel.recordSave(ctx, time.Since(start), int64(len(in.Content)), len(in.Attachments), err)
		endSpan(err)
	}()

	if err := e.plugins.beforeSave(ctx, &in); err != nil {
		return nil, err
	}
	// Hooks may have rewritten the input.
	if err := ValidateInputWithLimits(&in, e.opts.limits()); err != nil {
		return nil, err
	}

	header, body, err := content.Split(in.Content, in.BodyStart)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	headerID, bodyID, refs, err := e.storeBlobs(ctx, header, body, in.Attachments)
	if err != nil {
		return nil, err
	}

	rec = &store.MessageRecord{
		MessageLocator: in.Locator,
		InternalDate:   in.InternalDate,
		Size:           int64(len(in.Content)),
		BodyStartOctet: in.BodyStart,
		Flags:          store.NewFlags(in.Flags...),
		Properties:     in.Properties,
		HeaderBlobID:   headerID,
		BodyBlobID:     bodyID,
		Attachments:    refs,
	}
	if rec.InternalDate.IsZero() {
		rec.InternalDate = time.Now().UTC()
	}
	if e.opts.deriveLineCount && rec.Properties.TextualLineCount == 0 {
		rec.Properties.TextualLineCount = content.CountLines(body)
	}

	if err := e.index.PutAttachmentIDs(ctx, in.Locator.MessageID, rec.AttachmentIDs()); err != nil {
		return nil, fmt.Errorf("put attachment index: %w", err)
	}

	if err := e.records.PutRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("put record: %w", err)
	}

	e.logger.Debug("message stored",
		"locator", in.Locator.String(),
		"size", rec.Size,
		"body_start", rec.BodyStartOctet,
		"attachments", len(refs),
	)

	if hookErr := e.plugins.afterSave(ctx, rec); hookErr != nil {
		e.logger.Warn("after-save hook failed", "locator", in.Locator.String(), "error", hookErr)
	}

	if pubErr := publish(ctx, e, "MessageStored", e.events.MessageStored, in.Locator.MessageID, MessageStoredEvent{
		Locator:         in.Locator,
		Size:            rec.Size,
		AttachmentCount: len(refs),
		StoredAt:        time.Now().UTC(),
	}); pubErr != nil {
		return rec, pubErr
	}

	return rec, nil
}

// storeBlobs writes the header, body and attachment payloads concurrently
// and returns their ids. All writes have completed when it returns.
func (e *Engine) storeBlobs(ctx context.Context, header, body []byte, attachments []store.Attachment) (headerID, bodyID store.BlobID, refs []store.AttachmentRef, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		id, err := e.blobs.Store(gctx, header)
		if err != nil {
			return fmt.Errorf("store header blob: %w", err)
		}
		headerID = id
		return nil
	})
	g.Go(func() error {
		id, err := e.blobs.Store(gctx, body)
		if err != nil {
			return fmt.Errorf("store body blob: %w", err)
		}
		bodyID = id
		return nil
	})

	if len(attachments) > 0 {
		refs = make([]store.AttachmentRef, len(attachments))
	}
	for i, a := range attachments {
		g.Go(func() error {
			id, err := e.blobs.Store(gctx, a.Data)
			if err != nil {
				return fmt.Errorf("store attachment %d: %w", i, err)
			}
			refs[i] = store.AttachmentRef{
				ID:        id,
				MediaType: a.MediaType,
				Name:      a.Name,
				Size:      int64(len(a.Data)),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", "", nil, err
	}
	return headerID, bodyID, refs, nil
}
