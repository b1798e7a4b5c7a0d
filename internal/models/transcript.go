package models

import "strings"

const (
	labelSeparator = ": "

	// escapeMark prefixes continuation lines that would otherwise read as the start of a new entry.
	escapeMark = `\`
)

// ParseTranscript reads a transcript produced by Conversation.Serialize back into messages. A line that
// starts with a speaker label opens a new message; any other line continues the message before it.
// Lines before the first label are dropped. Escaped continuation lines are restored. Turn indexes are not
// part of the transcript, so the parsed messages carry none.
func ParseTranscript(transcript string) []Message {
	if transcript == "" {
		return nil
	}

	var msgs []Message
	for _, line := range strings.Split(transcript, "\n") {
		if speaker, text, ok := cutLabel(line); ok {
			msgs = append(msgs, Message{Speaker: speaker, Text: text})
			continue
		}
		if len(msgs) == 0 {
			continue
		}
		msgs[len(msgs)-1].Text += "\n" + strings.TrimPrefix(line, escapeMark)
	}
	return msgs
}

// FormatEntry renders one transcript entry. A continuation line of text that starts with a speaker
// label, or with the escape mark itself, is prefixed with the escape mark so it stays part of this
// entry when the transcript is parsed.
func FormatEntry(speaker Speaker, text string) string {
	lines := strings.Split(text, "\n")
	for i := 1; i < len(lines); i++ {
		if _, _, ok := cutLabel(lines[i]); ok || strings.HasPrefix(lines[i], escapeMark) {
			lines[i] = escapeMark + lines[i]
		}
	}
	return speaker.Label() + labelSeparator + strings.Join(lines, "\n")
}

// Serialize renders messages as a transcript, one labelled entry per message, skipping pending slots.
func Serialize(messages []Message) string {
	var sb strings.Builder
	for _, msg := range messages {
		if msg.Pending {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(FormatEntry(msg.Speaker, msg.Text))
	}
	return sb.String()
}

func cutLabel(line string) (Speaker, string, bool) {
	for _, speaker := range []Speaker{SpeakerUser, SpeakerAI} {
		label := speaker.Label() + ":"
		if line == label {
			return speaker, "", true
		}
		if text, ok := strings.CutPrefix(line, label+" "); ok {
			return speaker, text, true
		}
	}
	return "", "", false
}
