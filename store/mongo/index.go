package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/rbaliyan/mailstore/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
)

// indexDoc is one attachment index entry keyed by message id.
type indexDoc struct {
	MessageID     string   `bson:"_id"`
	AttachmentIDs []string `bson:"attachment_ids"`
}

func (d *indexDoc) blobIDs() []store.BlobID {
	out := make([]store.BlobID, len(d.AttachmentIDs))
	for i, id := range d.AttachmentIDs {
		out[i] = store.BlobID(id)
	}
	return store.NormalizeBlobIDs(out)
}

// PutAttachmentIDs replaces the entry for messageID. An empty set deletes
// the document.
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
	doc := indexDoc{MessageID: messageID, AttachmentIDs: make([]string, len(normalized))}
	for i, id := range normalized {
		doc.AttachmentIDs[i] = string(id)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if _, err := s.index.ReplaceOne(ctx, bson.M{"_id": messageID}, doc, mongoopts.Replace().SetUpsert(true)); err != nil {
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

	var doc indexDoc
	if err := s.index.FindOne(ctx, bson.M{"_id": messageID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return []store.BlobID{}, nil
		}
		return nil, fmt.Errorf("get attachment ids: %w", err)
	}
	return doc.blobIDs(), nil
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

	if _, err := s.index.DeleteOne(ctx, bson.M{"_id": messageID}); err != nil {
		return fmt.Errorf("delete attachment ids: %w", err)
	}
	return nil
}

// ScanAttachmentIDs pages over the index in _id order. The cursor is the
// last message id of the previous page.
func (s *Store) ScanAttachmentIDs(ctx context.Context, cursor string, limit int) ([]store.MessageIDAttachmentIDs, string, error) {
	if err := s.checkConnected(); err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		return nil, "", store.ErrInvalidArgument
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	filter := bson.M{
		"_id":            bson.M{"$gt": cursor},
		"attachment_ids": bson.M{"$ne": bson.A{}},
	}
	findOpts := mongoopts.Find().
		SetSort(bson.D{bson.E{Key: "_id", Value: 1}}).
		SetLimit(int64(limit + 1))

	cur, err := s.index.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, "", fmt.Errorf("scan attachment ids: %w", err)
	}
	defer cur.Close(ctx)

	var docs []indexDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, "", fmt.Errorf("scan attachment ids: %w", err)
	}

	hasMore := len(docs) > limit
	if hasMore {
		docs = docs[:limit]
	}

	page := make([]store.MessageIDAttachmentIDs, 0, len(docs))
	for i := range docs {
		entry, err := store.NewMessageIDAttachmentIDs(docs[i].MessageID, docs[i].blobIDs())
		if err != nil {
			return nil, "", fmt.Errorf("scan attachment ids: %w", err)
		}
		page = append(page, entry)
	}

	var next string
	if hasMore {
		next = docs[len(docs)-1].MessageID
	}
	return page, next, nil
}
