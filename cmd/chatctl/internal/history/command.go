package history

import (
	"fmt"

	"tour_chat_service/cmd/chatctl/internal"

	"github.com/spf13/cobra"
)

func NewHistoryCommand(opts *internal.Options) *cobra.Command {
	return &cobra.Command{
		Use:     "history <room>",
		Short:   "Print the stored messages of a tour room",
		Args:    cobra.ExactArgs(1),
		Example: `  chatctl history "Sajek Valley"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.Dial(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			msgs, err := c.History(args[0])
			if err != nil {
				return err
			}
			for _, m := range msgs {
				fmt.Fprintln(cmd.OutOrStdout(), internal.FormatMessage(m))
			}
			return nil
		},
	}
}
