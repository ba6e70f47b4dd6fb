package chat

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"tour_chat_service/cmd/chatctl/internal"
	"tour_chat_service/internal/chat/client"
	"tour_chat_service/internal/chat/domain"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

func NewChatCommand(opts *internal.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <room>",
		Short: "Join a tour room and chat interactively",
		Args:  cobra.ExactArgs(1),
		Example: `  chatctl chat "Sajek Valley" --name Alice --email alice@example.com
  chatctl chat "Sajek Valley" --token $TOKEN`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Token == "" && opts.Name == "" {
				return errors.New("--name is required without --token")
			}

			c, err := opts.Dial(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			return interactiveMode(c, args[0])
		},
	}
}

func interactiveMode(c *client.Client, room string) error {
	var typing func()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("%s> ", room),
		HistoryFile:     filepath.Join(os.TempDir(), ".chatctl_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Listener: readline.FuncListener(func(line []rune, pos int, key rune) ([]rune, int, bool) {
			if len(line) > 0 && key != readline.CharEnter && typing != nil {
				typing()
			}
			return nil, 0, false
		}),
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	if err := c.JoinRoom(room); err != nil {
		return err
	}
	for _, m := range c.View().Messages() {
		fmt.Fprintln(rl.Stdout(), internal.FormatMessage(m))
	}
	typing = func() { _ = c.Typing() }

	go printEvents(rl.Stdout(), c)

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Println("bye")
				return nil
			}
			return err
		}

		input := strings.TrimSpace(line)
		switch input {
		case "":
			continue
		case "/quit", "/exit":
			fmt.Println("bye")
			return nil
		case "/leave":
			return c.Leave()
		case "/typing":
			fmt.Fprintf(rl.Stdout(), "typing: %s\n", strings.Join(c.View().Typing(), ", "))
			continue
		}

		if _, err := c.Send(input); err != nil {
			fmt.Fprintf(rl.Stdout(), "send failed: %v\n", err)
		}
	}
}

func printEvents(out io.Writer, c *client.Client) {
	for ev := range c.Events() {
		switch ev.Action {
		case domain.ChatMessage:
			if ev.Fresh {
				fmt.Fprintln(out, internal.FormatMessage(ev.Message))
			}
		case domain.RoomNotice:
			fmt.Fprintf(out, "* %s\n", ev.Text)
		case domain.Typing:
			fmt.Fprintf(out, "* %s is typing...\n", ev.Text)
		case domain.ErrorAction:
			fmt.Fprintf(out, "! %s\n", ev.Text)
		}
	}
	fmt.Fprintln(out, "connection closed")
}
