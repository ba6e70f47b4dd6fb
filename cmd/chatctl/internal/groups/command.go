package groups

import (
	"fmt"

	"tour_chat_service/cmd/chatctl/internal"

	"github.com/spf13/cobra"
)

func NewGroupsCommand(opts *internal.Options) *cobra.Command {
	return &cobra.Command{
		Use:     "groups",
		Short:   "List the tour rooms you hold a paid booking for",
		Args:    cobra.NoArgs,
		Example: `  chatctl groups --email alice@example.com`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.Dial(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			groups, err := c.Groups()
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no paid bookings")
				return nil
			}
			for _, g := range groups {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", g.ID, g.TourName)
			}
			return nil
		},
	}
}
