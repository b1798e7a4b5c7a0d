package models

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Conversation is the ordered, append-only sequence of messages exchanged in one session. Insertion
// order is chronological order. It is safe for concurrent use: replies resolve their slot from the
// goroutine that waited for them.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
	lastTurn int
}

// Turn describes a submission that has been appended to a Conversation and is waiting for its reply.
type Turn struct {
	Index int
	User  Message
}

var (
	// ErrUnknownTurn is returned when resolving a turn that has no pending AI slot.
	ErrUnknownTurn = errors.New("unknown turn")
	// ErrTurnResolved is returned when resolving a turn whose reply was already recorded.
	ErrTurnResolved = errors.New("turn already resolved")
)

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Append adds msg to the end of the conversation and returns its position.
func (c *Conversation) Append(msg Message) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.appendLocked(msg)
}

// Greet appends the seed greeting as an AI message of turn 0.
func (c *Conversation) Greet(text string) Message {
	msg := Message{
		Speaker:   SpeakerAI,
		Text:      text,
		Timestamp: time.Now(),
	}
	c.Append(msg)
	return msg
}

// BeginTurn opens the next turn for input. In one step it snapshots the transcript of everything
// recorded so far, assigns the next turn index, appends the user message and reserves the AI slot
// the reply of this turn will fill. The returned history does not contain input.
func (c *Conversation) BeginTurn(input string) (Turn, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	history := Serialize(c.messages)

	c.lastTurn++
	now := time.Now()
	user := Message{
		Speaker:   SpeakerUser,
		Text:      input,
		Turn:      c.lastTurn,
		Timestamp: now,
	}
	c.appendLocked(user)
	c.appendLocked(Message{
		Speaker:   SpeakerAI,
		Turn:      c.lastTurn,
		Pending:   true,
		Timestamp: now,
	})

	return Turn{Index: c.lastTurn, User: user}, history
}

// Resolve records text as the reply of the given turn, in the slot reserved by BeginTurn. Replies that
// arrive out of order still end up next to the user message of their own turn.
func (c *Conversation) Resolve(turn int, text string) (Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.messages) - 1; i >= 0; i-- {
		msg := c.messages[i]
		if msg.Turn != turn || msg.Speaker != SpeakerAI {
			continue
		}
		if !msg.Pending {
			return Message{}, fmt.Errorf("turn %d: %w", turn, ErrTurnResolved)
		}
		msg.Text = text
		msg.Pending = false
		msg.Timestamp = time.Now()
		c.messages[i] = msg
		return msg, nil
	}

	return Message{}, fmt.Errorf("turn %d: %w", turn, ErrUnknownTurn)
}

// Messages returns a copy of the conversation.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := make([]Message, len(c.messages))
	copy(msgs, c.messages)
	return msgs
}

// Len returns the number of messages, pending slots included.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.messages)
}

// Serialize renders the conversation as a transcript ("User: …\nAI: …"). Pending slots are left out.
func (c *Conversation) Serialize() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Serialize(c.messages)
}

func (c *Conversation) appendLocked(msg Message) int {
	if msg.Turn > c.lastTurn {
		c.lastTurn = msg.Turn
	}
	c.messages = append(c.messages, msg)
	return len(c.messages) - 1
}
