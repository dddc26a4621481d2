// Package mongo provides a MongoDB implementation of store.Substrate.
//
// Records, attachment index entries and blobs live in three collections.
// Every write targets a single document by _id, so no operation depends on
// multi-document transactions.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/rbaliyan/mailstore/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Compile-time check
var _ store.Substrate = (*Store)(nil)

// Store implements store.Substrate using MongoDB.
type Store struct {
	client    *mongo.Client
	db        *mongo.Database
	records   *mongo.Collection
	index     *mongo.Collection
	blobs     *mongo.Collection
	opts      *options
	connected int32
	logger    *slog.Logger
}

// New creates a new MongoDB store with the provided client.
// Call Connect() to initialize the collections and indexes.
func New(client *mongo.Client, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		client: client,
		opts:   o,
		logger: o.logger,
	}
}

// Connect initializes the database, collections, and indexes.
func (s *Store) Connect(ctx context.Context) error {
	if atomic.LoadInt32(&s.connected) == 1 {
		return store.ErrAlreadyConnected
	}

	if s.client == nil {
		return fmt.Errorf("mongo: client is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}

	s.db = s.client.Database(s.opts.database)
	s.records = s.db.Collection(s.opts.recordCollection)
	s.index = s.db.Collection(s.opts.indexCollection)
	s.blobs = s.db.Collection(s.opts.blobCollection)

	if err := s.ensureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	atomic.StoreInt32(&s.connected, 1)
	s.logger.Info("connected to MongoDB", "database", s.opts.database,
		"records", s.opts.recordCollection,
		"index", s.opts.indexCollection,
		"blobs", s.opts.blobCollection)
	return nil
}

// Close marks the store as disconnected.
// The caller is responsible for closing the MongoDB client.
func (s *Store) Close(ctx context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

// ensureIndexes creates secondary indexes. Primary keys are _id.
func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "message_id", Value: 1}}},
		{Keys: bson.D{
			bson.E{Key: "mailbox_id", Value: 1},
			bson.E{Key: "uid", Value: 1},
		}},
	}
	_, err := s.records.Indexes().CreateMany(ctx, indexes)
	return err
}

// checkConnected returns error if not connected.
func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}
