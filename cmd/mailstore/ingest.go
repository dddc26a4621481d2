package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rbaliyan/mailstore"
	"github.com/rbaliyan/mailstore/content"
	"github.com/rbaliyan/mailstore/retry"
	"github.com/rbaliyan/mailstore/store"
)

const defaultMediaType = "application/octet-stream"

func newIngestCmd(c *cli) *cobra.Command {
	var (
		loc         locatorFlags
		flags       []string
		attachments []string
		date        string
		lineCount   bool
	)

	cmd := &cobra.Command{
		Use:   "ingest [flags] FILE...",
		Short: "Store raw messages",
		Long: `Stores each FILE ("-" for stdin) as one message. Consecutive files get
consecutive uids starting at --uid. The body starts after the first
empty line.

Attachments are given as PATH or PATH:MEDIA/TYPE and belong to every
message of the invocation.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if loc.messageID != "" && len(args) > 1 {
				return fmt.Errorf("--message-id names a single message, got %d files", len(args))
			}
			var internalDate time.Time
			if date != "" {
				t, err := time.Parse(time.RFC3339, date)
				if err != nil {
					return fmt.Errorf("--internal-date: %w", err)
				}
				internalDate = t
			}
			atts, err := readAttachments(attachments)
			if err != nil {
				return err
			}

			return c.run(cmd, func(ctx context.Context, s *session) error {
				for i, path := range args {
					raw, err := readInput(cmd, path)
					if err != nil {
						return err
					}
					l := loc.locator()
					l.UID += uint32(i)
					if loc.modSeq == 0 {
						l.ModSeq = uint64(l.UID)
					}
					if l.MessageID == "" {
						l.MessageID = store.NewMessageID()
					}

					in := mailstore.MessageInput{
						Locator:      l,
						InternalDate: internalDate,
						Content:      raw,
						Flags:        flags,
						Attachments:  atts,
					}
					in.DetectBodyStart()
					if lineCount {
						in.Properties.TextualLineCount = content.CountLines(raw[in.BodyStart:])
					}

					rec, err := retry.DoValue(ctx, func(ctx context.Context) (*store.MessageRecord, error) {
						return s.engine.Save(ctx, in)
					},
						retry.WithMaxAttempts(c.cfg.RetryAttempts),
						retry.WithBackoff(c.cfg.RetryBackoff, 0),
						retry.WithClassifier(mailstore.IsRetryableError),
						retry.WithLogger(s.logger),
					)
					if err != nil {
						return fmt.Errorf("ingest %s: %w", path, err)
					}
					printf(cmd, "%s\t%s\t%d attachment(s)\n", rec.MessageLocator, mailstore.HumanSize(rec), len(rec.Attachments))
				}
				return nil
			})
		},
	}

	loc.register(cmd, false)
	cmd.Flags().StringSliceVar(&flags, "flag", nil, `Message flag, repeatable (e.g. \Seen)`)
	cmd.Flags().StringArrayVar(&attachments, "attach", nil, "Attachment PATH[:MEDIA/TYPE], repeatable")
	cmd.Flags().StringVar(&date, "internal-date", "", "Internal date (RFC 3339); defaults to now")
	cmd.Flags().BoolVar(&lineCount, "line-count", false, "Record the body line count")
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	return data, nil
}

func readAttachments(specs []string) ([]store.Attachment, error) {
	out := make([]store.Attachment, 0, len(specs))
	for _, spec := range specs {
		path, mediaType := parseAttachmentSpec(spec)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read attachment: %w", err)
		}
		out = append(out, store.Attachment{
			MediaType: mediaType,
			Name:      filepath.Base(path),
			Data:      data,
		})
	}
	return out, nil
}

// parseAttachmentSpec splits PATH[:MEDIA/TYPE]. Without an explicit type
// the file extension decides.
func parseAttachmentSpec(spec string) (path, mediaType string) {
	if i := strings.LastIndex(spec, ":"); i > 0 && strings.Contains(spec[i+1:], "/") {
		return spec[:i], spec[i+1:]
	}
	mediaType = mime.TypeByExtension(filepath.Ext(spec))
	if mediaType == "" {
		mediaType = defaultMediaType
	}
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = mt
	}
	return spec, mediaType
}
