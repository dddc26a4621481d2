package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rbaliyan/mailstore"
)

func newDeleteCmd(c *cli) *cobra.Command {
	var (
		loc       locatorFlags
		dropIndex bool
	)

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove a message record",
		Long: `Removes the record of one message. Blobs are shared between messages and
are kept. The attachment index entry is kept too unless --drop-index is
given; pass it only when no other mailbox holds the same message id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *session) error {
				var opts []mailstore.DeleteOption
				if dropIndex {
					opts = append(opts, mailstore.DropAttachmentIndex())
				}
				if err := s.engine.Delete(ctx, loc.locator(), opts...); err != nil {
					return err
				}
				printf(cmd, "deleted %s\n", loc.locator())
				return nil
			})
		},
	}

	loc.register(cmd, true)
	cmd.Flags().BoolVar(&dropIndex, "drop-index", false, "Also remove the attachment index entry")
	return cmd
}
