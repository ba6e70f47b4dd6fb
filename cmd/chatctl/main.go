package main

import (
	"os"

	"tour_chat_service/cmd/chatctl/internal"
	"tour_chat_service/cmd/chatctl/internal/chat"
	"tour_chat_service/cmd/chatctl/internal/groups"
	"tour_chat_service/cmd/chatctl/internal/history"

	"github.com/spf13/cobra"
)

func NewChatctlCommand() *cobra.Command {
	opts := &internal.Options{}

	cmd := &cobra.Command{
		Use:          "chatctl",
		Short:        "Terminal client of the tour group chat service",
		Example:      "chatctl chat \"Sajek Valley\" --name Alice",
		SilenceUsage: true,
	}
	opts.Bind(cmd)

	cmd.AddCommand(
		chat.NewChatCommand(opts),
		history.NewHistoryCommand(opts),
		groups.NewGroupsCommand(opts),
	)
	return cmd
}

func main() {
	if err := NewChatctlCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
