// Package chat drives conversations: it owns the conversation state of each session and runs the
// round trip between a user submission and the chat function.
package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/MegaGrindStone/simpl-chat/internal/models"
	"github.com/MegaGrindStone/simpl-chat/internal/services"
)

// Replier answers user input given the transcript of the conversation so far. It is implemented by
// services.AIChat, which talks to a completion endpoint in-process, and by services.RemoteAIChat, which
// calls a deployed chat function.
type Replier interface {
	Reply(ctx context.Context, input, history string) (string, error)
}

// FallbackText is what the user sees whenever a reply could not be produced.
const FallbackText = "Oops... Something happened, try again"

// DefaultIntroPrompt asks the model to introduce itself when a session starts.
const DefaultIntroPrompt = `your name is "simpl" (s,i,m,p,l) and you are an ai assistant designed to ` +
	`answer the user's questions. Introduce yourself in 128 characters max`

const errLoggerKey = "error"

// Options configure how a session opens.
type Options struct {
	// Greeting, when set, is used verbatim as the seed greeting.
	Greeting string
	// IntroPrompt is sent to the replier to produce the seed greeting when Greeting is empty.
	IntroPrompt string
}

// Session is one conversation between a user and the chat function.
type Session struct {
	ID string

	conv    *models.Conversation
	replier Replier
	opts    Options

	logger *slog.Logger
}

// Pending is a submitted turn waiting for its reply.
type Pending struct {
	Turn    int
	Input   string
	History string
	User    models.Message
}

// NewSession creates a session with an empty conversation. Call Start to seed the greeting.
func NewSession(id string, replier Replier, opts Options, logger *slog.Logger) *Session {
	return &Session{
		ID:      id,
		conv:    models.NewConversation(),
		replier: replier,
		opts:    opts,
		logger:  logger.With(slog.String("module", "session"), slog.String("session", id)),
	}
}

// Start seeds the conversation with the greeting. Without a static greeting the intro prompt is sent
// to the replier; if that fails the fallback text becomes the greeting.
func (s *Session) Start(ctx context.Context) models.Message {
	if s.opts.Greeting != "" {
		return s.conv.Greet(s.opts.Greeting)
	}

	intro := s.opts.IntroPrompt
	if intro == "" {
		intro = DefaultIntroPrompt
	}
	text, err := s.replier.Reply(ctx, intro, "")
	return s.conv.Greet(s.replyText(text, err))
}

// Submit records input as the next turn and reserves the slot of its reply. Empty or whitespace-only
// input is ignored: nothing is appended and ok is false.
func (s *Session) Submit(input string) (Pending, bool) {
	if strings.TrimSpace(input) == "" {
		return Pending{}, false
	}

	turn, history := s.conv.BeginTurn(input)
	return Pending{
		Turn:    turn.Index,
		Input:   input,
		History: history,
		User:    turn.User,
	}, true
}

// Complete issues the one request of a submitted turn and records its outcome. It never fails: every
// error, and the empty-completion placeholder, is recorded as FallbackText.
func (s *Session) Complete(ctx context.Context, p Pending) models.Message {
	text, err := s.replier.Reply(ctx, p.Input, p.History)

	msg, rerr := s.conv.Resolve(p.Turn, s.replyText(text, err))
	if rerr != nil {
		s.logger.Error("Failed to record reply",
			slog.Int("turn", p.Turn),
			slog.String(errLoggerKey, rerr.Error()))
	}
	return msg
}

// Send submits input and waits for its reply. ok is false when the input was ignored.
func (s *Session) Send(ctx context.Context, input string) (models.Message, bool) {
	p, ok := s.Submit(input)
	if !ok {
		return models.Message{}, false
	}
	return s.Complete(ctx, p), true
}

// Messages returns a copy of the conversation.
func (s *Session) Messages() []models.Message {
	return s.conv.Messages()
}

// Transcript returns the serialized conversation.
func (s *Session) Transcript() string {
	return s.conv.Serialize()
}

func (s *Session) replyText(text string, err error) string {
	if err != nil {
		s.logger.Error("Failed to get reply", slog.String(errLoggerKey, err.Error()))
		return FallbackText
	}
	if text == services.EmptyCompletionText {
		s.logger.Warn("Completion endpoint returned no choices")
		return FallbackText
	}
	return text
}
