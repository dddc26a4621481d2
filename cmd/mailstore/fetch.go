package main

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rbaliyan/mailstore"
)

func newFetchCmd(c *cli) *cobra.Command {
	var (
		loc   locatorFlags
		depth string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Read one message at a fetch depth",
		Long: `Reads one message. The metadata depth prints the record; headers, body
and full write the message bytes to stdout unchanged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fetch, err := mailstore.ParseFetchType(depth)
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, s *session) error {
				msg, err := s.engine.Get(ctx, loc.locator(), fetch)
				if err != nil {
					return err
				}
				if fetch == mailstore.FetchMetadata {
					printMetadata(cmd, msg)
					return nil
				}
				_, err = cmd.OutOrStdout().Write(msg.Content())
				return err
			})
		},
	}

	loc.register(cmd, true)
	cmd.Flags().StringVar(&depth, "depth", mailstore.FetchFull.String(), "Fetch depth: metadata, headers, body or full")
	return cmd
}

func printMetadata(cmd *cobra.Command, msg *mailstore.Message) {
	rec := msg.Record
	printf(cmd, "locator:       %s\n", rec.MessageLocator)
	printf(cmd, "modseq:        %d\n", rec.ModSeq)
	printf(cmd, "internal_date: %s\n", rec.InternalDate.Format(time.RFC3339))
	printf(cmd, "size:          %d (%s)\n", rec.Size, mailstore.HumanSize(rec))
	printf(cmd, "body_start:    %d\n", rec.BodyStartOctet)
	printf(cmd, "line_count:    %d\n", rec.Properties.TextualLineCount)
	printf(cmd, "flags:         %s\n", strings.Join(rec.Flags, " "))
	printf(cmd, "header_blob:   %s\n", rec.HeaderBlobID)
	printf(cmd, "body_blob:     %s\n", rec.BodyBlobID)
	for _, a := range rec.Attachments {
		printf(cmd, "attachment:    %s %s %q %d\n", a.ID, a.MediaType, a.Name, a.Size)
	}
}
