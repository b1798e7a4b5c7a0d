package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// RemoteAIChat calls a chat function deployed behind an HTTP endpoint, such as the /api/aichat route of
// another simpl-chat server. Input and history travel as URL query parameters.
type RemoteAIChat struct {
	endpoint string

	client *http.Client

	logger *slog.Logger
}

// NewRemoteAIChat creates a RemoteAIChat targeting endpoint.
func NewRemoteAIChat(endpoint string, logger *slog.Logger) RemoteAIChat {
	return RemoteAIChat{
		endpoint: endpoint,
		client:   &http.Client{},
		logger:   logger.With(slog.String("module", "remote_aichat")),
	}
}

// FunctionURL returns endpoint with the input and, when not empty, the history query-escaped into it.
func FunctionURL(endpoint, input, history string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid function endpoint %q: %w", endpoint, err)
	}

	q := u.Query()
	q.Set("input", input)
	if history != "" {
		q.Set("history", history)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Reply issues one GET request to the chat function and returns its output.
func (r RemoteAIChat) Reply(ctx context.Context, input, history string) (string, error) {
	target, err := FunctionURL(r.endpoint, input, history)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: error reading response: %w", ErrTransport, err)
	}

	var res FunctionResponse
	decodeErr := json.Unmarshal(body, &res)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r.logger.Debug("Function returned error",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)))
		return "", &StatusError{Code: resp.StatusCode, Message: res.Error}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, decodeErr)
	}
	if res.Error != "" {
		return "", &StatusError{Code: resp.StatusCode, Message: res.Error}
	}

	output := strings.TrimSpace(res.Output)
	if output == "" {
		return "", fmt.Errorf("%w: no output", ErrMalformedResponse)
	}
	return output, nil
}
