package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// Ollama provides an implementation of the Completer interface for an Ollama server. ShapeCompletion
// sends the flat prompt to the generate endpoint in raw mode, so the server applies no chat template;
// ShapeChat uses the chat endpoint. Responses are requested unstreamed.
type Ollama struct {
	host  string
	model string
	shape Shape

	params LLMParameters

	client *api.Client

	logger *slog.Logger
}

// NewOllama creates a new Ollama instance with the specified host URL and model name. The host
// parameter should be a valid URL pointing to an Ollama server.
func NewOllama(host, model string, shape Shape, params LLMParameters, logger *slog.Logger) (Ollama, error) {
	u, err := url.Parse(host)
	if err != nil {
		return Ollama{}, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	return Ollama{
		host:   host,
		model:  model,
		shape:  shape,
		params: params,
		client: api.NewClient(u, &http.Client{}),
		logger: logger.With(slog.String("module", "ollama")),
	}, nil
}

// Complete sends p to the Ollama server and returns the trimmed response text.
func (o Ollama) Complete(ctx context.Context, p Prompt) (string, error) {
	stream := false

	var sb strings.Builder
	var err error
	if o.shape == ShapeChat {
		msgs := make([]api.Message, len(p.Messages))
		for i, msg := range p.Messages {
			msgs[i] = api.Message{
				Role:    msg.Role,
				Content: msg.Content,
			}
		}
		req := api.ChatRequest{
			Model:    o.model,
			Messages: msgs,
			Stream:   &stream,
			Options:  o.options(),
		}
		o.logger.Debug("Chat request", slog.Int("messages", len(msgs)))
		err = o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
			sb.WriteString(res.Message.Content)
			return nil
		})
	} else {
		req := api.GenerateRequest{
			Model:   o.model,
			Prompt:  p.Text,
			Raw:     true,
			Stream:  &stream,
			Options: o.options(),
		}
		o.logger.Debug("Generate request", slog.Int("promptLength", len(p.Text)))
		err = o.client.Generate(ctx, &req, func(res api.GenerateResponse) error {
			sb.WriteString(res.Response)
			return nil
		})
	}
	if err != nil {
		return "", ollamaError(err)
	}

	return trimmedOrEmpty(sb.String()), nil
}

func (o Ollama) options() map[string]any {
	opts := map[string]any{}
	if o.params.Temperature != nil {
		opts["temperature"] = *o.params.Temperature
	}
	if o.params.TopP != nil {
		opts["top_p"] = *o.params.TopP
	}
	if o.params.MaxTokens > 0 {
		opts["num_predict"] = o.params.MaxTokens
	}
	if len(o.params.Stop) > 0 {
		opts["stop"] = o.params.Stop
	}
	return opts
}

func ollamaError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return &StatusError{Code: statusErr.StatusCode, Message: statusErr.ErrorMessage}
	}
	return classifyError(err)
}
