package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rbaliyan/mailstore/store"
)

// recordRow is the column mapping of the record table.
type recordRow struct {
	MailboxID      string         `db:"mailbox_id"`
	MessageID      string         `db:"message_id"`
	UID            int64          `db:"uid"`
	ModSeq         int64          `db:"mod_seq"`
	InternalDate   time.Time      `db:"internal_date"`
	Size           int64          `db:"size"`
	BodyStartOctet int64          `db:"body_start_octet"`
	Flags          pq.StringArray `db:"flags"`
	Properties     []byte         `db:"properties"`
	HeaderBlobID   string         `db:"header_blob_id"`
	BodyBlobID     string         `db:"body_blob_id"`
	Attachments    []byte         `db:"attachments"`
}

func toRow(rec *store.MessageRecord) (*recordRow, error) {
	props, err := store.EncodeProperties(rec.Properties)
	if err != nil {
		return nil, err
	}
	atts, err := store.EncodeAttachmentRefs(rec.Attachments)
	if err != nil {
		return nil, err
	}
	flags := pq.StringArray(rec.Flags)
	if flags == nil {
		flags = pq.StringArray{}
	}
	return &recordRow{
		MailboxID:      rec.MailboxID,
		MessageID:      rec.MessageID,
		UID:            int64(rec.UID),
		ModSeq:         int64(rec.ModSeq),
		InternalDate:   rec.InternalDate.UTC(),
		Size:           rec.Size,
		BodyStartOctet: rec.BodyStartOctet,
		Flags:          flags,
		Properties:     props,
		HeaderBlobID:   string(rec.HeaderBlobID),
		BodyBlobID:     string(rec.BodyBlobID),
		Attachments:    atts,
	}, nil
}

func (r *recordRow) toRecord() (*store.MessageRecord, error) {
	props, err := store.DecodeProperties(r.Properties)
	if err != nil {
		return nil, err
	}
	atts, err := store.DecodeAttachmentRefs(r.Attachments)
	if err != nil {
		return nil, err
	}
	var flags store.Flags
	if len(r.Flags) > 0 {
		flags = store.Flags(r.Flags)
	}
	return &store.MessageRecord{
		MessageLocator: store.MessageLocator{
			MailboxID: r.MailboxID,
			MessageID: r.MessageID,
			UID:       uint32(r.UID),
			ModSeq:    uint64(r.ModSeq),
		},
		InternalDate:   r.InternalDate.UTC(),
		Size:           r.Size,
		BodyStartOctet: r.BodyStartOctet,
		Flags:          flags,
		Properties:     props,
		HeaderBlobID:   store.BlobID(r.HeaderBlobID),
		BodyBlobID:     store.BlobID(r.BodyBlobID),
		Attachments:    atts,
	}, nil
}

// PutRecord upserts the full row for rec.
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

	row, err := toRow(rec)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (mailbox_id, message_id, uid, mod_seq, internal_date, size,
		                body_start_octet, flags, properties, header_blob_id, body_blob_id, attachments)
		VALUES (:mailbox_id, :message_id, :uid, :mod_seq, :internal_date, :size,
		        :body_start_octet, :flags, :properties, :header_blob_id, :body_blob_id, :attachments)
		ON CONFLICT (mailbox_id, message_id, uid) DO UPDATE SET
			mod_seq = EXCLUDED.mod_seq,
			internal_date = EXCLUDED.internal_date,
			size = EXCLUDED.size,
			body_start_octet = EXCLUDED.body_start_octet,
			flags = EXCLUDED.flags,
			properties = EXCLUDED.properties,
			header_blob_id = EXCLUDED.header_blob_id,
			body_blob_id = EXCLUDED.body_blob_id,
			attachments = EXCLUDED.attachments
	`, s.opts.recordTable)

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

// GetRecord reads the row for loc.
func (s *Store) GetRecord(ctx context.Context, loc store.MessageLocator) (*store.MessageRecord, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT mailbox_id, message_id, uid, mod_seq, internal_date, size, body_start_octet,
		       flags, properties, header_blob_id, body_blob_id, attachments
		FROM %s
		WHERE mailbox_id = $1 AND message_id = $2 AND uid = $3
	`, s.opts.recordTable)

	var row recordRow
	if err := s.db.GetContext(ctx, &row, query, loc.MailboxID, loc.MessageID, int64(loc.UID)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}

	rec, err := row.toRecord()
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// DeleteRecord removes the row for loc.
func (s *Store) DeleteRecord(ctx context.Context, loc store.MessageLocator) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if err := loc.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE mailbox_id = $1 AND message_id = $2 AND uid = $3`, s.opts.recordTable)
	if _, err := s.db.ExecContext(ctx, query, loc.MailboxID, loc.MessageID, int64(loc.UID)); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}
