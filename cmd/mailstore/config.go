package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// config is the CLI configuration. Values come from flags, MAILSTORE_*
// environment variables and an optional config file, in that order of
// precedence.
type config struct {
	Backend string

	PostgresDSN   string
	MongoURI      string
	MongoDatabase string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	RedisEvents   bool

	BlobBackend     string
	Compression     string
	Bucket          string
	BlobPrefix      string
	Region          string
	Endpoint        string
	PathStyle       bool
	CredentialsFile string
	CacheDir        string
	CacheMaxSize    int64
	CacheTTL        time.Duration

	RetryAttempts int
	RetryBackoff  time.Duration
	Timeout       time.Duration

	LogLevel  string
	LogFormat string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", "memory")
	v.SetDefault("postgres.dsn", "postgres://localhost:5432/mailstore?sslmode=disable")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "mailstore")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "mailstore:")
	v.SetDefault("redis.events", false)
	v.SetDefault("blobs.backend", "substrate")
	v.SetDefault("blobs.compression", "zstd")
	v.SetDefault("blobs.prefix", "blobs")
	v.SetDefault("blobs.cache.max_size", int64(1<<30))
	v.SetDefault("blobs.cache.ttl", "24h")
	v.SetDefault("retry.attempts", 4)
	v.SetDefault("retry.backoff", "100ms")
	v.SetDefault("timeout", "30s")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
}

func initViper(v *viper.Viper, configFile string) error {
	setDefaults(v)
	v.SetEnvPrefix("mailstore")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		return nil
	}
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", configFile, err)
	}
	return nil
}

func loadConfig(v *viper.Viper) (*config, error) {
	cfg := &config{
		Backend:         strings.ToLower(v.GetString("backend")),
		PostgresDSN:     v.GetString("postgres.dsn"),
		MongoURI:        v.GetString("mongo.uri"),
		MongoDatabase:   v.GetString("mongo.database"),
		RedisAddr:       v.GetString("redis.addr"),
		RedisPassword:   v.GetString("redis.password"),
		RedisDB:         v.GetInt("redis.db"),
		RedisPrefix:     v.GetString("redis.prefix"),
		RedisEvents:     v.GetBool("redis.events"),
		BlobBackend:     strings.ToLower(v.GetString("blobs.backend")),
		Compression:     strings.ToLower(v.GetString("blobs.compression")),
		Bucket:          v.GetString("blobs.bucket"),
		BlobPrefix:      v.GetString("blobs.prefix"),
		Region:          v.GetString("blobs.region"),
		Endpoint:        v.GetString("blobs.endpoint"),
		PathStyle:       v.GetBool("blobs.path_style"),
		CredentialsFile: v.GetString("blobs.credentials_file"),
		CacheDir:        v.GetString("blobs.cache.dir"),
		CacheMaxSize:    v.GetInt64("blobs.cache.max_size"),
		CacheTTL:        v.GetDuration("blobs.cache.ttl"),
		RetryAttempts:   v.GetInt("retry.attempts"),
		RetryBackoff:    v.GetDuration("retry.backoff"),
		Timeout:         v.GetDuration("timeout"),
		LogLevel:        v.GetString("log.level"),
		LogFormat:       strings.ToLower(v.GetString("log.format")),
	}
	return cfg, cfg.validate()
}

func (c *config) validate() error {
	switch c.Backend {
	case "memory", "postgres", "mongo", "redis":
	default:
		return fmt.Errorf("unknown backend %q (memory, postgres, mongo, redis)", c.Backend)
	}
	switch c.BlobBackend {
	case "substrate":
	case "s3", "gcs":
		if c.Bucket == "" {
			return fmt.Errorf("blobs.bucket is required for %s", c.BlobBackend)
		}
	default:
		return fmt.Errorf("unknown blob backend %q (substrate, s3, gcs)", c.BlobBackend)
	}
	if c.RedisEvents && c.Backend != "redis" {
		return fmt.Errorf("redis.events requires the redis backend")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

func (c *config) logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
