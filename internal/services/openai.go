package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/MegaGrindStone/simpl-chat/internal/prompt"
	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI provides an implementation of the Completer interface for OpenAI and OpenAI-compatible
// endpoints. ShapeCompletion targets the text-completion API, ShapeChat the chat-completion API.
type OpenAI struct {
	model string
	shape Shape

	params LLMParameters

	client *goopenai.Client

	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI instance. An empty baseURL targets api.openai.com; any other value
// points the client at a compatible gateway. The API key is not validated here, a missing key surfaces
// as an authentication error from the endpoint.
func NewOpenAI(apiKey, baseURL, model string, shape Shape, params LLMParameters, logger *slog.Logger) OpenAI {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}

	return OpenAI{
		model:  model,
		shape:  shape,
		params: params,
		client: goopenai.NewClientWithConfig(cfg),
		logger: logger.With(slog.String("module", "openai")),
	}
}

// Complete sends p to the endpoint and returns the trimmed text of the first choice.
func (o OpenAI) Complete(ctx context.Context, p Prompt) (string, error) {
	if o.shape == ShapeChat {
		return o.completeChat(ctx, p.Messages)
	}

	req := goopenai.CompletionRequest{
		Model:     o.model,
		Prompt:    p.Text,
		MaxTokens: o.params.MaxTokens,
		Stop:      o.params.Stop,
	}
	if o.params.Temperature != nil {
		req.Temperature = *o.params.Temperature
	}
	if o.params.TopP != nil {
		req.TopP = *o.params.TopP
	}

	o.logRequest(req)

	resp, err := o.client.CreateCompletion(ctx, req)
	if err != nil {
		return "", openAIError(err)
	}
	if len(resp.Choices) == 0 {
		return EmptyCompletionText, nil
	}

	return trimmedOrEmpty(resp.Choices[0].Text), nil
}

func (o OpenAI) completeChat(ctx context.Context, messages []prompt.Message) (string, error) {
	msgs := make([]goopenai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		msgs[i] = goopenai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	req := goopenai.ChatCompletionRequest{
		Model:     o.model,
		Messages:  msgs,
		MaxTokens: o.params.MaxTokens,
		Stop:      o.params.Stop,
	}
	if o.params.Temperature != nil {
		req.Temperature = *o.params.Temperature
	}
	if o.params.TopP != nil {
		req.TopP = *o.params.TopP
	}

	o.logRequest(req)

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", openAIError(err)
	}
	if len(resp.Choices) == 0 {
		return EmptyCompletionText, nil
	}

	return trimmedOrEmpty(resp.Choices[0].Message.Content), nil
}

func (o OpenAI) logRequest(req any) {
	reqJSON, err := json.Marshal(req)
	if err == nil {
		o.logger.Debug("Request", slog.String("req", string(reqJSON)))
	}
}

// openAIError sorts an error returned by go-openai into the failure kinds of the Completer contract.
func openAIError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Code: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		se := &StatusError{Code: reqErr.HTTPStatusCode}
		if reqErr.Err != nil {
			se.Message = reqErr.Err.Error()
		}
		return se
	}

	return classifyError(err)
}

// classifyError wraps errors that carry no HTTP status. Whatever is neither a transport nor a decoding
// failure was raised by the client before sending.
func classifyError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	return fmt.Errorf("%w: %w", ErrRequest, err)
}

// trimmedOrEmpty trims the reply and maps a blank one to EmptyCompletionText.
func trimmedOrEmpty(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return EmptyCompletionText
	}
	return text
}
