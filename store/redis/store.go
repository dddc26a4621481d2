// Package redis provides a Redis implementation of store.Substrate.
//
// Key layout, relative to the configured prefix:
//
//	rec:<mailbox>/<message>/<uid>  CBOR-encoded message record
//	idx:<message>                  CBOR-encoded attachment id set
//	idx                            sorted set of indexed message ids (lex order)
//	blob:<id>                      blob payload
//
// The idx sorted set gives the attachment index exact keyset pagination
// with ZRANGEBYLEX; SCAN would be allowed to return an entry twice.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rbaliyan/mailstore/store"
)

// Compile-time check
var _ store.Substrate = (*Store)(nil)

// Store implements store.Substrate using Redis.
type Store struct {
	client    goredis.UniversalClient
	opts      *options
	connected int32
	logger    *slog.Logger
}

// New creates a new Redis store. Compatible with *redis.Client,
// *redis.ClusterClient, and redis.UniversalClient.
func New(client goredis.UniversalClient, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		client: client,
		opts:   o,
		logger: o.logger,
	}
}

// Connect verifies the server is reachable.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}
	if s.client == nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("redis: client is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("redis ping: %w", err)
	}

	s.logger.Info("connected to Redis", "prefix", s.opts.prefix)
	return nil
}

// Close marks the store as disconnected.
// The caller is responsible for closing the Redis client.
func (s *Store) Close(ctx context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

func (s *Store) recordKey(loc store.MessageLocator) string {
	return s.opts.prefix + "rec:" + loc.Key()
}

func (s *Store) indexKey(messageID string) string {
	return s.opts.prefix + "idx:" + messageID
}

func (s *Store) indexSetKey() string {
	return s.opts.prefix + "idx"
}

func (s *Store) blobKey(id store.BlobID) string {
	return s.opts.prefix + "blob:" + string(id)
}

// =============================================================================
// Record Operations
// =============================================================================

// PutRecord stores the encoded record, replacing any prior value.
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

	data, err := store.EncodeRecord(rec)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.client.Set(ctx, s.recordKey(rec.MessageLocator), data, 0).Err(); err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

// GetRecord reads the record for loc.
func (s *Store) GetRecord(ctx context.Context, loc store.MessageLocator) (*store.MessageRecord, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.recordKey(loc)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	rec, err := store.DecodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// DeleteRecord removes the record for loc.
func (s *Store) DeleteRecord(ctx context.Context, loc store.MessageLocator) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if err := loc.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.client.Del(ctx, s.recordKey(loc)).Err(); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}
