package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/MegaGrindStone/simpl-chat/internal/prompt"
)

// Completer issues exactly one request to a completion endpoint and returns the text of the first
// choice, trimmed. A well-formed response without any usable choice yields EmptyCompletionText and a
// nil error. Every other failure is returned as an error wrapping ErrRequest, ErrTransport,
// ErrMalformedResponse or a *StatusError.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Prompt carries both renderings of a request. Each backend sends the one matching its configured
// shape.
type Prompt struct {
	// Text is the flat "…\nUser: <input>\nAI:" prompt.
	Text string
	// Messages is the structured, role-tagged rendering of the same prompt.
	Messages []prompt.Message
}

// Shape selects which rendering of a Prompt a backend sends.
type Shape string

const (
	// ShapeCompletion sends Prompt.Text to a text-completion API.
	ShapeCompletion Shape = "completion"
	// ShapeChat sends Prompt.Messages to a chat-completion API.
	ShapeChat Shape = "chat"
)

// LLMParameters holds the sampling options shared by every backend. Nil pointers leave the provider
// default in place.
type LLMParameters struct {
	Temperature *float32 `yaml:"temperature"`
	TopP        *float32 `yaml:"topP"`
	MaxTokens   int      `yaml:"maxTokens"`
	Stop        []string `yaml:"stop"`
}

// EmptyCompletionText is returned in place of a reply when the endpoint answered with no choices.
const EmptyCompletionText = "Oh oh... Something happened, try again"

var (
	// ErrRequest reports a request rejected by the client before it was sent, such as a model the
	// configured shape cannot serve.
	ErrRequest = errors.New("invalid request")
	// ErrTransport reports that the request never produced an HTTP response.
	ErrTransport = errors.New("transport failure")
	// ErrMalformedResponse reports a response body that could not be decoded.
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError reports a non-success HTTP status from the remote endpoint.
type StatusError struct {
	Code    int
	Message string
}

// DefaultLLMParameters mirrors the sampling used by the hosted chat function: temperature 0.7,
// top_p 0.9 and at most 1000 generated tokens.
func DefaultLLMParameters() LLMParameters {
	temperature := float32(0.7)
	topP := float32(0.9)
	return LLMParameters{
		Temperature: &temperature,
		TopP:        &topP,
		MaxTokens:   1000,
	}
}

// ParseShape validates a configured shape. An empty value selects ShapeCompletion.
func ParseShape(s string) (Shape, error) {
	switch Shape(s) {
	case "", ShapeCompletion:
		return ShapeCompletion, nil
	case ShapeChat:
		return ShapeChat, nil
	default:
		return "", fmt.Errorf("unknown prompt shape: %s", s)
	}
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}
