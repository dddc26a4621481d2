package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/rbaliyan/mailstore"
	"github.com/rbaliyan/mailstore/store"
	"github.com/rbaliyan/mailstore/store/blob"
	"github.com/rbaliyan/mailstore/store/blob/cached"
	"github.com/rbaliyan/mailstore/store/blob/gcs"
	"github.com/rbaliyan/mailstore/store/blob/s3"
	"github.com/rbaliyan/mailstore/store/memory"
	mongostore "github.com/rbaliyan/mailstore/store/mongo"
	"github.com/rbaliyan/mailstore/store/postgres"
	"github.com/rbaliyan/mailstore/store/redis"
)

// session is an open engine plus the clients it was built on.
type session struct {
	engine  *mailstore.Engine
	logger  *slog.Logger
	closers []func(context.Context) error
}

// Close closes the engine, then the underlying clients.
func (s *session) Close(ctx context.Context) error {
	var errs []error
	if err := s.engine.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// open builds and connects an engine for cfg.
func open(ctx context.Context, cfg *config) (_ *session, err error) {
	logger := cfg.logger()
	s := &session{logger: logger}
	defer func() {
		if err != nil {
			for i := len(s.closers) - 1; i >= 0; i-- {
				_ = s.closers[i](ctx)
			}
		}
	}()

	compression, err := blob.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	opts := []mailstore.Option{
		mailstore.WithLogger(logger),
		mailstore.WithBlobOptions(blob.WithCompression(compression), blob.WithLogger(logger)),
	}

	sub, err := s.openSubstrate(cfg, logger, &opts)
	if err != nil {
		return nil, err
	}
	opts = append(opts, mailstore.WithSubstrate(sub))

	backend, err := s.openBlobBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if backend != nil {
		opts = append(opts, mailstore.WithBlobBackend(backend))
	}

	eng, err := mailstore.New(opts...)
	if err == nil {
		err = eng.Connect(ctx)
	}
	if err != nil {
		if c, ok := backend.(interface{ Close() error }); ok {
			_ = c.Close()
		}
		return nil, err
	}
	s.engine = eng
	return s, nil
}

func (s *session) openSubstrate(cfg *config, logger *slog.Logger, opts *[]mailstore.Option) (store.Substrate, error) {
	switch cfg.Backend {
	case "memory":
		return memory.New(), nil

	case "postgres":
		db, err := sqlx.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		s.closers = append(s.closers, func(context.Context) error { return db.Close() })
		return postgres.New(db, postgres.WithLogger(logger)), nil

	case "mongo":
		client, err := mongo.Connect(mongoopts.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		s.closers = append(s.closers, client.Disconnect)
		return mongostore.New(client, mongostore.WithDatabase(cfg.MongoDatabase), mongostore.WithLogger(logger)), nil

	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		s.closers = append(s.closers, func(context.Context) error { return client.Close() })
		if cfg.RedisEvents {
			*opts = append(*opts, mailstore.WithRedisClient(client))
		}
		return redis.New(client, redis.WithPrefix(cfg.RedisPrefix), redis.WithLogger(logger)), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// openBlobBackend returns nil when blobs live in the substrate.
func (s *session) openBlobBackend(ctx context.Context, cfg *config, logger *slog.Logger) (store.BlobBackend, error) {
	var backend store.BlobBackend
	switch cfg.BlobBackend {
	case "substrate":
		return nil, nil

	case "s3":
		sopts := []s3.Option{
			s3.WithBucket(cfg.Bucket),
			s3.WithPrefix(cfg.BlobPrefix),
			s3.WithPathStyle(cfg.PathStyle),
			s3.WithLogger(logger),
		}
		if cfg.Region != "" {
			sopts = append(sopts, s3.WithRegion(cfg.Region))
		}
		if cfg.Endpoint != "" {
			sopts = append(sopts, s3.WithEndpoint(cfg.Endpoint))
		}
		st, err := s3.New(ctx, sopts...)
		if err != nil {
			return nil, err
		}
		backend = st

	case "gcs":
		gopts := []gcs.Option{
			gcs.WithBucket(cfg.Bucket),
			gcs.WithPrefix(cfg.BlobPrefix),
			gcs.WithLogger(logger),
		}
		if cfg.Endpoint != "" {
			gopts = append(gopts, gcs.WithEndpoint(cfg.Endpoint))
		}
		if cfg.CredentialsFile != "" {
			gopts = append(gopts, gcs.WithCredentialsFile(cfg.CredentialsFile))
		}
		st, err := gcs.New(ctx, gopts...)
		if err != nil {
			return nil, err
		}
		backend = st

	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}

	if cfg.CacheDir == "" {
		return backend, nil
	}
	// The engine closes only the outermost backend.
	if c, ok := backend.(interface{ Close() error }); ok {
		s.closers = append(s.closers, func(context.Context) error { return c.Close() })
	}
	c, err := cached.New(backend,
		cached.WithCacheDir(cfg.CacheDir),
		cached.WithMaxSize(cfg.CacheMaxSize),
		cached.WithTTL(cfg.CacheTTL),
		cached.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}
