package services_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MegaGrindStone/simpl-chat/internal/services"
)

func TestFunctionURLEscapesQuery(t *testing.T) {
	got, err := services.FunctionURL("https://example.com/api/aichat", "a&b=c? d", "User: hi\nAI: hello")
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "a&b=c? d", u.Query().Get("input"))
	assert.Equal(t, "User: hi\nAI: hello", u.Query().Get("history"))
	assert.NotContains(t, u.RawQuery, "\n")

	got, err = services.FunctionURL("https://example.com/api/aichat", "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/api/aichat?input=hi", got)
}

func TestRemoteAIChatReply(t *testing.T) {
	var query url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"output":" Hi there!"}`))
	}))
	defer srv.Close()

	r := services.NewRemoteAIChat(srv.URL+"/api/aichat", testLogger())
	reply, err := r.Reply(context.Background(), "Hello & bye", "AI: hey")
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", reply)
	assert.Equal(t, "Hello & bye", query.Get("input"))
	assert.Equal(t, "AI: hey", query.Get("history"))
}

func TestRemoteAIChatFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantErr    error
	}{
		{
			name:       "function error",
			status:     http.StatusInternalServerError,
			body:       `{"error":"An error occurred"}`,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "error with success status",
			status:     http.StatusOK,
			body:       `{"error":"quota exceeded"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:    "no output",
			status:  http.StatusOK,
			body:    `{}`,
			wantErr: services.ErrMalformedResponse,
		},
		{
			name:    "not json",
			status:  http.StatusOK,
			body:    `Hi there!`,
			wantErr: services.ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(jsonHandler(t, tt.status, tt.body, nil))
			defer srv.Close()

			r := services.NewRemoteAIChat(srv.URL, testLogger())
			_, err := r.Reply(context.Background(), "Hello", "")
			if tt.wantStatus != 0 {
				var se *services.StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.wantStatus, se.Code)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("transport", func(t *testing.T) {
		srv := httptest.NewServer(jsonHandler(t, http.StatusOK, `{}`, nil))
		target := srv.URL
		srv.Close()

		r := services.NewRemoteAIChat(target, testLogger())
		_, err := r.Reply(context.Background(), "Hello", "")
		assert.ErrorIs(t, err, services.ErrTransport)
	})
}

func TestRemoteAIChatErrorBody(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, http.StatusOK, `{"error":"quota exceeded"}`, nil))
	defer srv.Close()

	r := services.NewRemoteAIChat(srv.URL, testLogger())
	_, err := r.Reply(context.Background(), "Hello", "")

	var se *services.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusOK, se.Code)
	assert.Equal(t, "quota exceeded", se.Message)
	assert.NotErrorIs(t, err, services.ErrMalformedResponse)
}
