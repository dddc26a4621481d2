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

type blobDoc struct {
	ID   string `bson:"_id"`
	Data []byte `bson:"data"`
}

// PutBlob inserts data under id. A duplicate key means the payload is
// already stored and is not an error.
func (s *Store) PutBlob(ctx context.Context, id store.BlobID, data []byte) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return store.ErrInvalidID
	}
	if data == nil {
		data = []byte{}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if _, err := s.blobs.InsertOne(ctx, blobDoc{ID: string(id), Data: data}); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("put blob: %w", err)
	}
	return nil
}

// GetBlob reads the payload stored under id.
func (s *Store) GetBlob(ctx context.Context, id store.BlobID) ([]byte, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var doc blobDoc
	if err := s.blobs.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get blob: %w", err)
	}
	if doc.Data == nil {
		doc.Data = []byte{}
	}
	return doc.Data, nil
}

// HasBlob reports whether id is stored.
func (s *Store) HasBlob(ctx context.Context, id store.BlobID) (bool, error) {
	if err := s.checkConnected(); err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	n, err := s.blobs.CountDocuments(ctx, bson.M{"_id": string(id)}, mongoopts.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("has blob: %w", err)
	}
	return n > 0, nil
}
