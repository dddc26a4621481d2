package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rbaliyan/mailstore/store"
)

func newScanCmd(c *cli) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List messages with attachments",
		Long: `Prints one line per message that references attachments: the message
id followed by its attachment ids.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *session) error {
				n := 0
				for entry, err := range s.engine.ScanAttachmentsFrom(from).All(ctx) {
					if err != nil {
						return err
					}
					printf(cmd, "%s\t%s\n", entry.MessageID(), joinIDs(entry.AttachmentIDs()))
					n++
				}
				s.logger.Info("scan complete", "entries", n)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Resume after this cursor")
	return cmd
}

func joinIDs(ids []store.BlobID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}
