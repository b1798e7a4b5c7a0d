// Package models holds the conversation state of a chat session.
package models

import "time"

// Speaker identifies who authored a message. Once a message is appended to a Conversation its speaker
// never changes.
type Speaker string

const (
	// SpeakerUser marks text typed by the person using the chat.
	SpeakerUser Speaker = "user"
	// SpeakerAI marks text produced by the completion endpoint, including the seed greeting and
	// fallback messages.
	SpeakerAI Speaker = "ai"
)

// Message is a single entry of a Conversation.
type Message struct {
	Speaker Speaker
	Text    string

	// Turn is the turn index the message belongs to. The seed greeting is turn 0, and every user
	// submission opens the next turn.
	Turn int

	// Pending is true for an AI slot that is waiting for the reply of its turn.
	Pending bool

	Timestamp time.Time
}

// Label returns the transcript label of the speaker.
func (s Speaker) Label() string {
	if s == SpeakerAI {
		return "AI"
	}
	return "User"
}
