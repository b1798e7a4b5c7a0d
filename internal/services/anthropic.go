package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/simpl-chat/internal/prompt"
)

// Anthropic provides an implementation of the Completer interface for the Anthropic Messages API.
// ShapeCompletion sends the flat prompt as a single user message; ShapeChat sends the structured
// history.
type Anthropic struct {
	apiKey   string
	endpoint string
	model    string
	shape    Shape

	params LLMParameters

	client *http.Client

	logger *slog.Logger
}

type anthropicChatRequest struct {
	Model         string             `json:"model"`
	Messages      []anthropicMessage `json:"messages"`
	System        string             `json:"system,omitempty"`
	MaxTokens     int                `json:"max_tokens"`
	Temperature   *float32           `json:"temperature,omitempty"`
	TopP          *float32           `json:"top_p,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

const (
	anthropicAPIEndpoint = "https://api.anthropic.com/v1"
	anthropicVersion     = "2023-06-01"

	// anthropicDefaultMaxTokens is used when no max token count is configured, the API requires one.
	anthropicDefaultMaxTokens = 1000
)

// NewAnthropic creates a new Anthropic instance with the specified API key and model name. An empty
// endpoint targets api.anthropic.com.
func NewAnthropic(apiKey, endpoint, model string, shape Shape, params LLMParameters, logger *slog.Logger) Anthropic {
	if endpoint == "" {
		endpoint = anthropicAPIEndpoint
	}
	return Anthropic{
		apiKey:   apiKey,
		endpoint: strings.TrimSuffix(endpoint, "/"),
		model:    model,
		shape:    shape,
		params:   params,
		client:   &http.Client{},
		logger:   logger.With(slog.String("module", "anthropic")),
	}
}

// anthropicMessages converts a structured prompt into the form the Messages API accepts: the system
// message moves out of the list, the list starts with a user turn, and consecutive turns of the same
// role are merged.
func anthropicMessages(messages []prompt.Message) (string, []anthropicMessage) {
	var system string
	var msgs []anthropicMessage
	for _, msg := range messages {
		switch {
		case msg.Role == prompt.RoleSystem:
			system = msg.Content
		case len(msgs) == 0 && msg.Role != prompt.RoleUser:
			// The greeting opens the conversation, but the API wants a user turn first.
			continue
		case len(msgs) > 0 && msgs[len(msgs)-1].Role == msg.Role:
			msgs[len(msgs)-1].Content += "\n\n" + msg.Content
		default:
			msgs = append(msgs, anthropicMessage{Role: msg.Role, Content: msg.Content})
		}
	}
	return system, msgs
}

// Complete sends p to the Messages API and returns the trimmed text of the first text block.
func (a Anthropic) Complete(ctx context.Context, p Prompt) (string, error) {
	reqBody := anthropicChatRequest{
		Model:         a.model,
		MaxTokens:     a.params.MaxTokens,
		Temperature:   a.params.Temperature,
		TopP:          a.params.TopP,
		StopSequences: a.params.Stop,
	}
	if reqBody.MaxTokens <= 0 {
		reqBody.MaxTokens = anthropicDefaultMaxTokens
	}
	if a.shape == ShapeChat {
		reqBody.System, reqBody.Messages = anthropicMessages(p.Messages)
	} else {
		reqBody.Messages = []anthropicMessage{{Role: prompt.RoleUser, Content: p.Text}}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	a.logger.Debug("Request", slog.String("req", string(jsonBody)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/messages", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: error reading response: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Code: resp.StatusCode}
		var e anthropicError
		if err := json.Unmarshal(body, &e); err == nil {
			se.Message = e.Error.Message
		}
		return "", se
	}

	var res anthropicResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	for _, block := range res.Content {
		if block.Type == "text" {
			return trimmedOrEmpty(block.Text), nil
		}
	}
	return EmptyCompletionText, nil
}
