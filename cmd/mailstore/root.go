package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rbaliyan/mailstore/store"
)

// cli carries the per-invocation configuration shared by subcommands.
type cli struct {
	v          *viper.Viper
	configFile string
	cfg        *config
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   "mailstore",
		Short: "Mailbox message storage",
		Long: `Stores messages as header and body blobs plus a metadata record, and
keeps an index of the attachments each message references.

The memory backend does not outlive the process; use postgres, mongo or
redis to keep messages between invocations.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initViper(c.v, c.configFile); err != nil {
				return err
			}
			cfg, err := loadConfig(c.v)
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configFile, "config", "", "Config file (yaml, json or toml)")
	pf.String("backend", "memory", "Substrate: memory, postgres, mongo or redis")
	pf.String("postgres.dsn", "", "PostgreSQL connection string")
	pf.String("mongo.uri", "", "MongoDB connection URI")
	pf.String("mongo.database", "", "MongoDB database")
	pf.String("redis.addr", "", "Redis address (host:port)")
	pf.Int("redis.db", 0, "Redis database number")
	pf.Bool("redis.events", false, "Publish events to Redis Streams")
	pf.String("blobs.backend", "substrate", "Blob backend: substrate, s3 or gcs")
	pf.String("blobs.compression", "zstd", "Blob compression: none, lz4 or zstd")
	pf.String("blobs.bucket", "", "Bucket for s3 and gcs")
	pf.String("blobs.endpoint", "", "Custom s3 or gcs endpoint")
	pf.String("blobs.cache.dir", "", "Local blob cache directory (disabled when empty)")
	pf.String("log.level", "warn", "Log level: debug, info, warn or error")
	pf.String("log.format", "text", "Log format: text or json")
	for _, name := range []string{
		"backend", "postgres.dsn", "mongo.uri", "mongo.database", "redis.addr", "redis.db", "redis.events",
		"blobs.backend", "blobs.compression", "blobs.bucket", "blobs.endpoint", "blobs.cache.dir",
		"log.level", "log.format",
	} {
		_ = c.v.BindPFlag(name, pf.Lookup(name))
	}

	root.AddCommand(
		newIngestCmd(c),
		newFetchCmd(c),
		newScanCmd(c),
		newDeleteCmd(c),
	)
	return root
}

// run opens a session for the duration of fn.
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) (err error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), c.cfg.Timeout)
	defer cancel()

	s, err := open(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer func() {
		// Close with a fresh context so a timed-out command still shuts down.
		if cerr := s.Close(context.WithoutCancel(ctx)); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return fn(ctx, s)
}

// locatorFlags are the flags naming one message row.
type locatorFlags struct {
	mailbox   string
	messageID string
	uid       uint32
	modSeq    uint64
}

func (l *locatorFlags) register(cmd *cobra.Command, requireID bool) {
	f := cmd.Flags()
	f.StringVar(&l.mailbox, "mailbox", "", "Mailbox id")
	f.StringVar(&l.messageID, "message-id", "", "Message id")
	f.Uint32Var(&l.uid, "uid", 1, "Message uid within the mailbox")
	f.Uint64Var(&l.modSeq, "modseq", 0, "Modification sequence (defaults to the uid)")
	_ = cmd.MarkFlagRequired("mailbox")
	if requireID {
		_ = cmd.MarkFlagRequired("message-id")
	}
}

func (l *locatorFlags) locator() store.MessageLocator {
	modSeq := l.modSeq
	if modSeq == 0 {
		modSeq = uint64(l.uid)
	}
	return store.MessageLocator{
		MailboxID: l.mailbox,
		MessageID: l.messageID,
		UID:       l.uid,
		ModSeq:    modSeq,
	}
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
