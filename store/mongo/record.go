package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rbaliyan/mailstore/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
)

// recordDoc is the BSON document for a message record. _id is the locator
// key, so replacement by _id is a full-row upsert.
type recordDoc struct {
	ID             string                `bson:"_id"`
	MailboxID      string                `bson:"mailbox_id"`
	MessageID      string                `bson:"message_id"`
	UID            int64                 `bson:"uid"`
	ModSeq         int64                 `bson:"mod_seq"`
	InternalDate   time.Time             `bson:"internal_date"`
	Size           int64                 `bson:"size"`
	BodyStartOctet int64                 `bson:"body_start_octet"`
	Flags          []string              `bson:"flags,omitempty"`
	Properties     store.Properties      `bson:"properties"`
	HeaderBlobID   string                `bson:"header_blob_id"`
	BodyBlobID     string                `bson:"body_blob_id"`
	Attachments    []store.AttachmentRef `bson:"attachments,omitempty"`
}

func toRecordDoc(rec *store.MessageRecord) *recordDoc {
	return &recordDoc{
		ID:             rec.MessageLocator.Key(),
		MailboxID:      rec.MailboxID,
		MessageID:      rec.MessageID,
		UID:            int64(rec.UID),
		ModSeq:         int64(rec.ModSeq),
		InternalDate:   rec.InternalDate.UTC(),
		Size:           rec.Size,
		BodyStartOctet: rec.BodyStartOctet,
		Flags:          rec.Flags,
		Properties:     rec.Properties,
		HeaderBlobID:   string(rec.HeaderBlobID),
		BodyBlobID:     string(rec.BodyBlobID),
		Attachments:    rec.Attachments,
	}
}

func (d *recordDoc) toRecord() *store.MessageRecord {
	var flags store.Flags
	if len(d.Flags) > 0 {
		flags = store.Flags(d.Flags)
	}
	var atts []store.AttachmentRef
	if len(d.Attachments) > 0 {
		atts = d.Attachments
	}
	props := d.Properties
	if len(props.ContentParams) == 0 {
		props.ContentParams = nil
	}
	return &store.MessageRecord{
		MessageLocator: store.MessageLocator{
			MailboxID: d.MailboxID,
			MessageID: d.MessageID,
			UID:       uint32(d.UID),
			ModSeq:    uint64(d.ModSeq),
		},
		InternalDate:   d.InternalDate.UTC(),
		Size:           d.Size,
		BodyStartOctet: d.BodyStartOctet,
		Flags:          flags,
		Properties:     props,
		HeaderBlobID:   store.BlobID(d.HeaderBlobID),
		BodyBlobID:     store.BlobID(d.BodyBlobID),
		Attachments:    atts,
	}
}

// PutRecord replaces the document for rec, inserting it if absent.
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

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	doc := toRecordDoc(rec)
	_, err := s.records.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, mongoopts.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

// GetRecord reads the document for loc.
func (s *Store) GetRecord(ctx context.Context, loc store.MessageLocator) (*store.MessageRecord, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var doc recordDoc
	if err := s.records.FindOne(ctx, bson.M{"_id": loc.Key()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return doc.toRecord(), nil
}

// DeleteRecord removes the document for loc.
func (s *Store) DeleteRecord(ctx context.Context, loc store.MessageLocator) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if err := loc.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if _, err := s.records.DeleteOne(ctx, bson.M{"_id": loc.Key()}); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}
