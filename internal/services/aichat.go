package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/MegaGrindStone/simpl-chat/internal/prompt"
)

// FunctionResponse is the JSON body returned by the chat function endpoint. Exactly one field is set.
type FunctionResponse struct {
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// AIChat is the stateless chat function: it formats the user input and the history sent by the caller
// into a prompt, issues one completion request and returns the reply. It keeps nothing between calls.
type AIChat struct {
	completer    Completer
	formatter    prompt.Formatter
	systemPrompt string

	logger *slog.Logger
}

// NewAIChat creates an AIChat that sends its prompts through completer. systemPrompt, when set, leads
// every prompt.
func NewAIChat(completer Completer, formatter prompt.Formatter, systemPrompt string, logger *slog.Logger) AIChat {
	return AIChat{
		completer:    completer,
		formatter:    formatter,
		systemPrompt: systemPrompt,
		logger:       logger.With(slog.String("module", "aichat")),
	}
}

// Reply answers input given the transcript of the conversation so far. The transcript is windowed to
// the formatter's budget before it is sent.
func (a AIChat) Reply(ctx context.Context, input, history string) (string, error) {
	text := a.formatter.Flat(history, input)
	if a.systemPrompt != "" {
		text = a.systemPrompt + "\n" + text
	}

	return a.complete(ctx, Prompt{
		Text:     text,
		Messages: a.formatter.Messages(a.systemPrompt, history, input),
	})
}

// Ask answers input on its own, with no conversation history.
func (a AIChat) Ask(ctx context.Context, input string) (string, error) {
	text := prompt.OneShot(input)
	return a.complete(ctx, Prompt{
		Text:     text,
		Messages: []prompt.Message{{Role: prompt.RoleUser, Content: text}},
	})
}

func (a AIChat) complete(ctx context.Context, p Prompt) (string, error) {
	start := time.Now()
	reply, err := a.completer.Complete(ctx, p)
	if err != nil {
		a.logger.Debug("Completion failed",
			slog.Duration("duration", time.Since(start)),
			slog.String("err", err.Error()))
		return "", err
	}

	a.logger.Debug("Completion received",
		slog.Duration("duration", time.Since(start)),
		slog.Int("replyLength", len(reply)))
	return reply, nil
}
