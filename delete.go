package mailstore

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rbaliyan/mailstore/store"
)

type deleteOptions struct {
	dropIndex bool
}

// DeleteOption configures Delete.
type DeleteOption func(*deleteOptions)

// KeepAttachmentIndex leaves the attachment index entry in place. This is
// the default; the option exists to make the choice explicit.
func KeepAttachmentIndex() DeleteOption {
	return func(o *deleteOptions) {
		o.dropIndex = false
	}
}

// DropAttachmentIndex also removes the attachment index entry. The entry is
// keyed by message id and shared by every mailbox copy, so pass it only when
// the caller knows this is the last copy of the message.
func DropAttachmentIndex() DeleteOption {
	return func(o *deleteOptions) {
		o.dropIndex = true
	}
}

// Delete removes the record for loc. Blobs are shared and never removed.
// The attachment index entry is shared by every mailbox copy of the message
// id and stays unless DropAttachmentIndex is given; an entry left without
// records is an orphan. When the entry is dropped, the record goes first so
// that no visible record lacks its entry. Deleting an absent message is not
// an error.
func (e *Engine) Delete(ctx context.Context, loc store.MessageLocator, opts ...DeleteOption) (err error) {
	if err := e.checkConnected(); err != nil {
		return err
	}
	if err := loc.Validate(); err != nil {
		return &ValidationError{Field: "locator", Message: err.Error()}
	}

	var o deleteOptions
	for _, opt := range opts {
		opt(&o)
	}

	ctx, endSpan := e.otel.startSpan(ctx, "mailstore.delete",
		attribute.String("mailbox_id", loc.MailboxID),
		attribute.String("message_id", loc.MessageID),
	)
	start := time.Now()
	defer func() {
		e.otel.recordDelete(ctx, time.Since(start), err)
		endSpan(err)
	}()

	if err := e.records.DeleteRecord(ctx, loc); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if o.dropIndex {
		if err := e.index.DeleteAttachmentIDs(ctx, loc.MessageID); err != nil {
			return fmt.Errorf("delete attachment index: %w", err)
		}
	}

	e.logger.Debug("message deleted", "locator", loc.String(), "index_dropped", o.dropIndex)

	if hookErr := e.plugins.afterDelete(ctx, loc); hookErr != nil {
		e.logger.Warn("after-delete hook failed", "locator", loc.String(), "error", hookErr)
	}

	return publish(ctx, e, "MessageDeleted", e.events.MessageDeleted, loc.MessageID, MessageDeletedEvent{
		Locator:   loc,
		DeletedAt: time.Now().UTC(),
	})
}
