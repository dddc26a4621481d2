package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/rbaliyan/mailstore/store"
)

type indexRow struct {
	MessageID     string         `db:"message_id"`
	AttachmentIDs pq.StringArray `db:"attachment_ids"`
}

func toBlobIDs(ids pq.StringArray) []store.BlobID {
	out := make([]store.BlobID, len(ids))
	for i, id := range ids {
		out[i] = store.BlobID(id)
	}
	return store.NormalizeBlobIDs(out)
}

// PutAttachmentIDs replaces the entry for messageID. An empty set deletes
// the row.
func (s *Store) PutAttachmentIDs(ctx context.Context, messageID string, ids []store.BlobID) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if messageID == "" {
		return store.ErrInvalidID
	}
	if len(ids) == 0 {
		return s.DeleteAttachmentIDs(ctx, messageID)
	}

	normalized := store.NormalizeBlobIDs(ids)
	values := make([]string, len(normalized))
	for i, id := range normalized {
		values[i] = string(id)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (message_id, attachment_ids) VALUES ($1, $2)
		ON CONFLICT (message_id) DO UPDATE SET attachment_ids = EXCLUDED.attachment_ids
	`, s.opts.indexTable)
	if _, err := s.db.ExecContext(ctx, query, messageID, pq.Array(values)); err != nil {
		return fmt.Errorf("put attachment ids: %w", err)
	}
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

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT message_id, attachment_ids FROM %s WHERE message_id = $1`, s.opts.indexTable)
	var rows []indexRow
	if err := s.db.SelectContext(ctx, &rows, query, messageID); err != nil {
		return nil, fmt.Errorf("get attachment ids: %w", err)
	}
	if len(rows) == 0 {
		return []store.BlobID{}, nil
	}
	return toBlobIDs(rows[0].AttachmentIDs), nil
}

// DeleteAttachmentIDs removes the entry for messageID.
func (s *Store) DeleteAttachmentIDs(ctx context.Context, messageID string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if messageID == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE message_id = $1`, s.opts.indexTable)
	if _, err := s.db.ExecContext(ctx, query, messageID); err != nil {
		return fmt.Errorf("delete attachment ids: %w", err)
	}
	return nil
}

// ScanAttachmentIDs pages over the index with keyset pagination on
// message_id. The cursor is the last message id of the previous page.
func (s *Store) ScanAttachmentIDs(ctx context.Context, cursor string, limit int) ([]store.MessageIDAttachmentIDs, string, error) {
	if err := s.checkConnected(); err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		return nil, "", store.ErrInvalidArgument
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	// Fetch one extra row to learn whether another page exists.
	query := fmt.Sprintf(`
		SELECT message_id, attachment_ids FROM %s
		WHERE message_id > $1 AND cardinality(attachment_ids) > 0
		ORDER BY message_id
		LIMIT $2
	`, s.opts.indexTable)

	var rows []indexRow
	if err := s.db.SelectContext(ctx, &rows, query, cursor, limit+1); err != nil {
		return nil, "", fmt.Errorf("scan attachment ids: %w", err)
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	page := make([]store.MessageIDAttachmentIDs, 0, len(rows))
	for _, r := range rows {
		entry, err := store.NewMessageIDAttachmentIDs(r.MessageID, toBlobIDs(r.AttachmentIDs))
		if err != nil {
			return nil, "", fmt.Errorf("scan attachment ids: %w", err)
		}
		page = append(page, entry)
	}

	var next string
	if hasMore {
		next = rows[len(rows)-1].MessageID
	}
	return page, next, nil
}
