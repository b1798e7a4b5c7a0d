package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/MegaGrindStone/simpl-chat/internal/chat"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const chatLongDesc string = `Start an interactive chat session.

Every line you enter is sent together with the conversation so far. Empty lines
are ignored. Type /history to print the transcript and /exit to leave.`

type chatCommander struct {
	root *rootCommander
}

func newChatCmd(root *rootCommander) *cobra.Command {
	cmder := &chatCommander{root: root}

	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func (c *chatCommander) run(ctx context.Context, in io.Reader, out io.Writer) error {
	replier, err := c.root.cfg.Replier(c.root.logger)
	if err != nil {
		return fmt.Errorf("could not create chat function: %w", err)
	}

	s := chat.NewSession(uuid.New().String(), replier, c.root.cfg.Options(), c.root.logger)
	return converse(ctx, s, in, out)
}

// converse runs the read-reply loop of s until in is exhausted or the user exits.
func converse(ctx context.Context, s *chat.Session, in io.Reader, out io.Writer) error {
	greeting := s.Start(ctx)
	fmt.Fprintf(out, "AI: %s\n", greeting.Text)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		line := scanner.Text()
		switch strings.TrimSpace(line) {
		case "/exit", "/quit":
			return nil
		case "/history":
			fmt.Fprintln(out, s.Transcript())
			continue
		}

		msg, ok := s.Send(ctx, line)
		if !ok {
			continue
		}
		fmt.Fprintf(out, "AI: %s\n", msg.Text)
	}
	fmt.Fprintln(out)

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("could not read input: %w", err)
	}
	return nil
}
