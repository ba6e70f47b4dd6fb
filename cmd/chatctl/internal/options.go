package internal

import (
	"context"
	"time"

	"tour_chat_service/internal/chat/client"

	"github.com/spf13/cobra"
)

// Options connection flags shared by every subcommand
type Options struct {
	Server string
	Token  string
	Name   string
	Email  string
}

// Bind register the flags as persistent flags of cmd
func (o *Options) Bind(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.Server, "server", "http://localhost:3000", "chat service base url")
	cmd.PersistentFlags().StringVar(&o.Token, "token", "", "auth token, its claims replace --name and --email")
	cmd.PersistentFlags().StringVar(&o.Name, "name", "", "display name")
	cmd.PersistentFlags().StringVar(&o.Email, "email", "", "email used for booking lookups")
}

// Dial connect a client with the flags
func (o *Options) Dial(ctx context.Context) (*client.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return client.Dial(ctx, client.Config{
		Server:     o.Server,
		Token:      o.Token,
		Name:       o.Name,
		Email:      o.Email,
		TypingIdle: time.Second,
	})
}
