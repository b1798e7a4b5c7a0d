// Package prompt turns a conversation transcript and the next user input into the payload sent to a
// completion endpoint.
package prompt

import (
	"strings"
	"unicode/utf8"

	"github.com/MegaGrindStone/simpl-chat/internal/models"
)

// DefaultMaxHistoryChars bounds the transcript carried into a prompt. With the default max_tokens of
// 1000 it keeps the whole request inside a 4k token context window.
const DefaultMaxHistoryChars = 6000

// Roles of a structured message list.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged turn of a structured prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Formatter builds prompts from a transcript and the next input. The zero value has no history budget;
// use NewFormatter for the default.
type Formatter struct {
	// MaxHistoryChars is the largest transcript, in characters, a prompt carries. Zero or less keeps
	// the whole history.
	MaxHistoryChars int
}

// NewFormatter returns a Formatter with the given budget, or DefaultMaxHistoryChars when maxHistoryChars
// is zero.
func NewFormatter(maxHistoryChars int) Formatter {
	if maxHistoryChars == 0 {
		maxHistoryChars = DefaultMaxHistoryChars
	}
	return Formatter{MaxHistoryChars: maxHistoryChars}
}

// Window trims history to the budget by dropping the oldest entries. Entries are never split, except
// when the newest entry alone is over budget, in which case only its tail is kept.
func (f Formatter) Window(history string) string {
	if f.MaxHistoryChars <= 0 || utf8.RuneCountInString(history) <= f.MaxHistoryChars {
		return history
	}

	entries := models.ParseTranscript(history)
	if len(entries) == 0 {
		return tail(history, f.MaxHistoryChars)
	}

	kept := 0
	size := 0
	for i := len(entries) - 1; i >= 0; i-- {
		n := utf8.RuneCountInString(models.FormatEntry(entries[i].Speaker, entries[i].Text))
		if kept > 0 {
			n++ // separator
		}
		if size+n > f.MaxHistoryChars {
			break
		}
		size += n
		kept++
	}

	if kept == 0 {
		last := entries[len(entries)-1]
		// Formatting may add escape marks to the tail.
		for room := f.MaxHistoryChars - utf8.RuneCountInString(models.FormatEntry(last.Speaker, "")); room > 0; room-- {
			entry := models.FormatEntry(last.Speaker, tail(last.Text, room))
			if utf8.RuneCountInString(entry) <= f.MaxHistoryChars {
				return entry
			}
		}
		return ""
	}
	return models.Serialize(entries[len(entries)-kept:])
}

// Flat renders the text-completion prompt "<history>\nUser: <input>\nAI:". An empty history leaves the
// first line out.
func (f Formatter) Flat(history, input string) string {
	var sb strings.Builder
	if h := f.Window(history); h != "" {
		sb.WriteString(h)
		sb.WriteByte('\n')
	}
	sb.WriteString(models.FormatEntry(models.SpeakerUser, input))
	sb.WriteByte('\n')
	sb.WriteString(models.SpeakerAI.Label())
	sb.WriteByte(':')
	return sb.String()
}

// Messages renders the chat-completion prompt: an optional system message, the windowed history as
// alternating user and assistant turns, and the input as the last user turn.
func (f Formatter) Messages(system, history, input string) []Message {
	entries := models.ParseTranscript(f.Window(history))

	msgs := make([]Message, 0, len(entries)+2)
	if system != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	}
	for _, e := range entries {
		role := RoleUser
		if e.Speaker == models.SpeakerAI {
			role = RoleAssistant
		}
		msgs = append(msgs, Message{Role: role, Content: e.Text})
	}
	return append(msgs, Message{Role: RoleUser, Content: input})
}

// OneShot renders a prompt that carries no history at all.
func OneShot(input string) string {
	return "respond to the user input. Return only the response text. The input is " + input
}

func tail(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[len(r)-n:])
}
