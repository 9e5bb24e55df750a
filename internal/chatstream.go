package internal

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// ChatLog maintains the ordered, deduplicated message stream of one
// room. Insertion is a set union keyed by message id; the visible list
// is always sorted ascending by timestamp. System notifications share
// the stream with regular chat.
type ChatLog struct {
	api    *APIClient
	roomID string
	logger zerolog.Logger

	mu       sync.Mutex
	messages []ChatMessage
	seen     map[string]struct{}
	typing   TypingSignal

	sendTyping func(TypingSignal) error
}

func NewChatLog(api *APIClient, roomID string, logger zerolog.Logger) *ChatLog {
	return &ChatLog{
		api:      api,
		roomID:   roomID,
		logger:   logger.With().Str("component", "chat").Str("room", roomID).Logger(),
		messages: make([]ChatMessage, 0, 64),
		seen:     make(map[string]struct{}),
	}
}

// BindTyping points typing broadcasts at the session's typing
// destination.
func (c *ChatLog) BindTyping(send func(TypingSignal) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendTyping = send
}

// Insert adds a message unless its id is already present. Duplicate
// arrivals, typically reconnect replay, are dropped rather than
// re-inserted.
func (c *ChatLog) Insert(msg ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertLocked(msg)
}

// InsertMany merges a batch, e.g. the REST history snapshot after a
// (re)connect.
func (c *ChatLog) InsertMany(msgs []ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, msg := range msgs {
		c.insertLocked(msg)
	}
}

func (c *ChatLog) insertLocked(msg ChatMessage) {
	if msg.ID == "" {
		c.logger.Warn().Msg("message without id, ignoring")
		return
	}
	if _, dup := c.seen[msg.ID]; dup {
		return
	}
	c.seen[msg.ID] = struct{}{}
	c.messages = append(c.messages, msg)
	sort.SliceStable(c.messages, func(i, j int) bool {
		return c.messages[i].Timestamp.Before(c.messages[j].Timestamp)
	})
}

// AddNotification wraps a plain-text broker notification (join/leave
// and friends) into the stream with an empty author and a synthetic
// time-ordered id.
func (c *ChatLog) AddNotification(body string) {
	now := time.Now()
	c.Insert(ChatMessage{
		ID:        fmt.Sprintf("notification-%s", ulid.Make()),
		Content:   body,
		Timestamp: now,
	})
}

// Messages returns a copy of the ordered stream.
func (c *ChatLog) Messages() []ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// FindByID resolves a message for reply selection. Returns nil when the
// id is unknown.
func (c *ChatLog) FindByID(id string) *ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages {
		if c.messages[i].ID == id {
			msg := c.messages[i]
			return &msg
		}
	}
	return nil
}

// Send posts a message over REST. The message enters the log when the
// broker broadcast comes back, so there is nothing to roll back on
// failure. The reply reference is resolved here, at selection time.
func (c *ChatLog) Send(content string, replyTo *ChatMessage) error {
	var parent *ParentRef
	if replyTo != nil {
		parent = &ParentRef{ID: replyTo.ID}
	}
	return c.api.PostMessage(c.roomID, content, parent)
}

// CanDelete reports whether the user authored the message. Deletion is
// only ever offered for the caller's own messages.
func (c *ChatLog) CanDelete(id, username string) bool {
	msg := c.FindByID(id)
	return msg != nil && !msg.IsNotification() && msg.Username == username
}

// Delete removes a message remote-first: the local entry goes away only
// after the backend confirms. On failure local state is untouched.
func (c *ChatLog) Delete(id string) error {
	if err := c.api.DeleteMessage(id); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages {
		if c.messages[i].ID == id {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			break
		}
	}
	delete(c.seen, id)
	return nil
}

// ApplyTyping keeps only the most recently received signal. There is no
// decay: a peer that disconnects uncleanly can leave a stuck indicator.
func (c *ChatLog) ApplyTyping(sig TypingSignal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.typing = sig
}

// Typing returns the last received signal.
func (c *ChatLog) Typing() TypingSignal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing
}

// SetTyping broadcasts the local typing state. Called on every
// keystroke and on cessation.
func (c *ChatLog) SetTyping(username string, isTyping bool) error {
	c.mu.Lock()
	send := c.sendTyping
	c.mu.Unlock()
	if send == nil {
		return ErrNotConnected
	}
	return send(TypingSignal{Username: username, IsTyping: isTyping})
}
