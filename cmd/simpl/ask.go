package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

const askLongDesc string = `Ask a single question without conversation history.

The question is taken from the arguments, or from standard input when none are
given.

Examples:
  simpl ask what is the capital of France
  echo "summarize this" | simpl ask`

type asker interface {
	Ask(ctx context.Context, input string) (string, error)
}

type askCommander struct {
	root *rootCommander
}

func newAskCmd(root *rootCommander) *cobra.Command {
	cmder := &askCommander{root: root}

	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question",
		Long:  askLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), args)
		},
	}
}

func (c *askCommander) run(ctx context.Context, in io.Reader, out io.Writer, args []string) error {
	aiChat, err := c.root.cfg.AIChat(c.root.logger)
	if err != nil {
		return fmt.Errorf("could not create chat function: %w", err)
	}
	return ask(ctx, aiChat, in, out, args)
}

func ask(ctx context.Context, a asker, in io.Reader, out io.Writer, args []string) error {
	question := strings.Join(args, " ")
	if len(args) == 0 {
		b, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("could not read question: %w", err)
		}
		question = string(b)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return fmt.Errorf("a question is required")
	}

	answer, err := a.Ask(ctx, question)
	if err != nil {
		return fmt.Errorf("could not get an answer: %w", err)
	}
	fmt.Fprintln(out, answer)
	return nil
}
