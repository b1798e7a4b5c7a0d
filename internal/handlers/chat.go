package handlers

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MegaGrindStone/simpl-chat/internal/chat"
	"github.com/MegaGrindStone/simpl-chat/internal/models"
	"github.com/tmaxmax/go-sse"
)

type message struct {
	ID        string
	Role      string
	Content   template.HTML
	Timestamp time.Time

	StreamingState string
}

type homePageData struct {
	SessionID string
	Messages  []message
}

const (
	streamingStateLoading = "loading"
	streamingStateEnded   = "ended"
)

// SSE event types for real-time updates.
var (
	messagesSSEType     = sse.Type("messages")
	closeMessageSSEType = sse.Type("closeMessage")
)

// HandleHome renders a chat page with a new session, greeted before the page is rendered. A conversation
// lives as long as the page showing it, so the session of a page being reloaded is discarded.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if c, err := r.Cookie(sessionCookieName); err == nil {
		m.sessions.Remove(c.Value)
	}
	s := m.newSession(w, r)

	msgs := s.Messages()
	data := homePageData{
		SessionID: s.ID,
		Messages:  make([]message, 0, len(msgs)),
	}
	for _, msg := range msgs {
		vm, err := m.viewMessage(s.ID, msg)
		if err != nil {
			m.logger.Error("Failed to render message",
				slog.String("message", fmt.Sprintf("%+v", msg)),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		data.Messages = append(data.Messages, vm)
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleChats processes a message submitted through the chat form. It accepts the user message through
// the "message" form field, records it as the next turn of the caller's session, and renders the user
// message followed by a loading placeholder for the reply. The reply is requested asynchronously and
// delivered over SSE on the topic of the placeholder's message ID.
//
// Empty or whitespace-only messages are rejected without contacting the chat function.
func (m Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	input := r.FormValue("message")
	if strings.TrimSpace(input) == "" {
		m.logger.Error("Message is required")
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	s := m.session(w, r)
	w.Header().Set(sessionHeader, s.ID)

	p, ok := s.Submit(input)
	if !ok {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	go m.reply(s, p)

	um, err := m.viewMessage(s.ID, p.User)
	if err != nil {
		m.logger.Error("Failed to render user message",
			slog.String("message", fmt.Sprintf("%+v", p.User)),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := m.templates.ExecuteTemplate(w, "user_message", um); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	err = m.templates.ExecuteTemplate(w, "ai_message", message{
		ID:             turnMessageID(s.ID, p.Turn),
		Role:           string(models.SpeakerAI),
		Timestamp:      p.User.Timestamp,
		StreamingState: streamingStateLoading,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleMessage renders the reply of one turn if it has arrived, or answers 204 while it is pending.
// Browsers call it after subscribing to SSE so a reply published before the subscription is not lost.
// The session is the one named by the message ID.
func (m Main) HandleMessage(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("message_id")
	sessionID, turn, ok := cutMessageID(id)
	if !ok {
		http.Error(w, "Message not found", http.StatusNotFound)
		return
	}
	s, ok := m.sessions.Get(sessionID)
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	for _, msg := range s.Messages() {
		if msg.Speaker != models.SpeakerAI || msg.Turn != turn {
			continue
		}
		if msg.Pending {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		vm, err := m.viewMessage(s.ID, msg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if _, err := w.Write([]byte(vm.Content)); err != nil {
			m.logger.Error("Failed to write message", slog.String(errLoggerKey, err.Error()))
		}
		return
	}

	http.Error(w, "Message not found", http.StatusNotFound)
}

// reply waits for the reply of p and publishes it to the browser. It runs detached from the request
// that submitted the turn; once issued, a request is never cancelled.
func (m Main) reply(s *chat.Session, p chat.Pending) {
	id := turnMessageID(s.ID, p.Turn)

	// Ensure the browser stops listening for this message on function exit
	defer func() {
		e := &sse.Message{Type: closeMessageSSEType}
		e.AppendData("bye")
		_ = m.sseSrv.Publish(e, messageIDTopic(id))
	}()

	msg := s.Complete(context.Background(), p)

	content, err := m.renderMarkdown(msg.Text)
	if err != nil {
		m.logger.Error("Failed to render reply",
			slog.String("message", fmt.Sprintf("%+v", msg)),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	e := sse.Message{Type: messagesSSEType}
	e.AppendData(string(content))
	if err := m.sseSrv.Publish(&e, messageIDTopic(id)); err != nil {
		m.logger.Error("Failed to publish message",
			slog.String("messageID", id),
			slog.String(errLoggerKey, err.Error()))
	}
}

// session returns the session of the page that sent the request, creating a new one, and setting its
// cookie, when the request carries no known session.
func (m Main) session(w http.ResponseWriter, r *http.Request) *chat.Session {
	if s, ok := m.existingSession(r); ok {
		return s
	}
	return m.newSession(w, r)
}

func (m Main) newSession(w http.ResponseWriter, r *http.Request) *chat.Session {
	s := m.sessions.Create(r.Context())
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	m.logger.Info("Session started", slog.String("session", s.ID))
	return s
}

// existingSession looks the session up by the page's session_id field, or by the cookie when the request
// carries no such field.
func (m Main) existingSession(r *http.Request) (*chat.Session, bool) {
	id := r.FormValue("session_id")
	if id == "" {
		if c, err := r.Cookie(sessionCookieName); err == nil {
			id = c.Value
		}
	}
	if id == "" {
		return nil, false
	}
	return m.sessions.Get(id)
}

func (m Main) viewMessage(sessionID string, msg models.Message) (message, error) {
	vm := message{
		ID:             turnMessageID(sessionID, msg.Turn),
		Role:           string(msg.Speaker),
		Timestamp:      msg.Timestamp,
		StreamingState: streamingStateEnded,
	}
	if msg.Speaker == models.SpeakerUser {
		vm.ID += "-user"
		vm.Content = template.HTML(template.HTMLEscapeString(msg.Text))
		return vm, nil
	}
	if msg.Pending {
		vm.StreamingState = streamingStateLoading
		return vm, nil
	}

	content, err := m.renderMarkdown(msg.Text)
	if err != nil {
		return message{}, err
	}
	vm.Content = content
	return vm, nil
}

// renderMarkdown renders AI text as HTML. Raw HTML in the text is not passed through.
func (m Main) renderMarkdown(text string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := m.markdown.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

func turnMessageID(sessionID string, turn int) string {
	return fmt.Sprintf("%s-%d", sessionID, turn)
}

func cutMessageID(messageID string) (string, int, bool) {
	i := strings.LastIndexByte(messageID, '-')
	if i <= 0 {
		return "", 0, false
	}
	turn, err := strconv.Atoi(messageID[i+1:])
	if err != nil {
		return "", 0, false
	}
	return messageID[:i], turn, true
}
