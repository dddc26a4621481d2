// Package postgres provides a PostgreSQL implementation of store.Substrate.
//
// Three tables back the substrate: message records keyed by
// (mailbox_id, message_id, uid), the attachment index keyed by message_id,
// and blob payloads keyed by id. No statement touches more than one row
// of one table, so the store behaves like the partitioned row store the
// engine is designed for.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	"github.com/rbaliyan/mailstore/store"
)

// Compile-time check
var _ store.Substrate = (*Store)(nil)

// Store implements store.Substrate using PostgreSQL.
type Store struct {
	db        *sqlx.DB
	opts      *options
	connected int32
	logger    *slog.Logger
}

// New creates a new PostgreSQL store with the provided database connection.
// Call Connect() to initialize the schema and indexes.
func New(db *sqlx.DB, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		db:     db,
		opts:   o,
		logger: o.logger,
	}
}

// NewFromDB creates a new PostgreSQL store from a standard sql.DB connection.
// This wraps the sql.DB with sqlx for enhanced functionality.
func NewFromDB(db *sql.DB, opts ...Option) *Store {
	return New(sqlx.NewDb(db, "postgres"), opts...)
}

// Connect initializes the schema and indexes.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}

	if s.db == nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres: db is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres ping: %w", err)
	}

	if err := s.ensureSchema(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("ensure schema: %w", err)
	}

	s.logger.Info("connected to PostgreSQL",
		"records", s.opts.recordTable,
		"index", s.opts.indexTable,
		"blobs", s.opts.blobTable)
	return nil
}

// Close marks the store as disconnected.
// The caller is responsible for closing the database connection.
func (s *Store) Close(ctx context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

// ensureSchema creates the required tables and indexes.
func (s *Store) ensureSchema(ctx context.Context) error {
	tables := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				mailbox_id VARCHAR(255) NOT NULL,
				message_id VARCHAR(255) NOT NULL,
				uid BIGINT NOT NULL,
				mod_seq BIGINT NOT NULL DEFAULT 0,
				internal_date TIMESTAMPTZ NOT NULL,
				size BIGINT NOT NULL,
				body_start_octet BIGINT NOT NULL,
				flags TEXT[] NOT NULL DEFAULT '{}',
				properties BYTEA,
				header_blob_id VARCHAR(64) NOT NULL,
				body_blob_id VARCHAR(64) NOT NULL,
				attachments BYTEA,
				PRIMARY KEY (mailbox_id, message_id, uid)
			)
		`, s.opts.recordTable),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				message_id VARCHAR(255) PRIMARY KEY,
				attachment_ids TEXT[] NOT NULL
			)
		`, s.opts.indexTable),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id VARCHAR(64) PRIMARY KEY,
				data BYTEA NOT NULL
			)
		`, s.opts.blobTable),
	}
	for _, ddl := range tables {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_message ON %s(message_id)`, s.opts.recordTable, s.opts.recordTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_mailbox_uid ON %s(mailbox_id, uid)`, s.opts.recordTable, s.opts.recordTable),
	}
	for _, idx := range indexes {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			s.logger.Warn("failed to create index", "error", err, "sql", idx)
		}
	}

	return nil
}

// checkConnected returns error if not connected.
func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}
