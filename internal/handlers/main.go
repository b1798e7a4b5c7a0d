package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	simplchat "github.com/MegaGrindStone/simpl-chat"
	"github.com/MegaGrindStone/simpl-chat/internal/chat"
	"github.com/tmaxmax/go-sse"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
)

// Function is the chat function served at the function endpoint. It answers user input given the
// transcript of the conversation so far.
type Function interface {
	Reply(ctx context.Context, input, history string) (string, error)
}

// Main handles the web interface of the chat, managing server-sent events, HTML templates, the
// sessions of connected browsers and the chat function endpoint.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template
	markdown  goldmark.Markdown

	sessions *chat.Registry
	function Function

	logger *slog.Logger
}

const (
	errLoggerKey = "error"

	sessionCookieName = "simpl_session"
	sessionHeader     = "X-Simpl-Session"
)

// NewMain creates a new Main instance serving the given sessions and chat function. It initializes
// the SSE server and parses the required HTML templates from the embedded filesystem.
func NewMain(sessions *chat.Registry, function Function, logger *slog.Logger) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		simplchat.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	return Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				topics := []string{sse.DefaultTopic}

				// We subscribe to a message-specific topic if the client waits for a particular reply
				messageID := s.Req.URL.Query().Get("message_id")
				if messageID != "" {
					topics = append(topics, messageIDTopic(messageID))
				}

				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      topics,
				}, true
			},
		},
		templates: tmpl,
		markdown: goldmark.New(
			goldmark.WithExtensions(
				highlighting.NewHighlighting(highlighting.WithStyle("dracula")),
			),
		),
		sessions: sessions,
		function: function,
		logger:   logger.With(slog.String("module", "handlers")),
	}, nil
}

func messageIDTopic(messageID string) string {
	return fmt.Sprintf("message-%s", messageID)
}

// HandleSSE serves the server-sent events stream the browser listens on for replies.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// HandleHealth reports that the server is up.
func (m Main) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Shutdown gracefully terminates the Main instance's SSE server. It broadcasts a close message to all
// connected clients and waits up to 5 seconds for connections to terminate. After the timeout, any
// remaining connections are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeChat")}
	// We create a close event that complies with SSE spec requiring data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
