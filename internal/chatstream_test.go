package internal

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testChatLog(t *testing.T, handler http.Handler) (*ChatLog, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	api := NewAPIClient(server.URL)
	api.SetContext(SessionContext{Username: "alice", Token: "tok"})
	return NewChatLog(api, "room-1", zerolog.Nop()), server
}

func msgAt(id, user, content string, offset time.Duration) ChatMessage {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return ChatMessage{ID: id, Username: user, Content: content, Timestamp: base.Add(offset)}
}

func TestChatLogDeduplicatesByID(t *testing.T) {
	log, _ := testChatLog(t, http.NotFoundHandler())

	log.Insert(msgAt("m1", "alice", "hello", 0))
	log.Insert(msgAt("m1", "alice", "hello again", time.Minute))

	messages := log.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].Content != "hello" {
		t.Fatalf("duplicate must not replace the original, got %q", messages[0].Content)
	}
}

func TestChatLogOrdersByTimestamp(t *testing.T) {
	log, _ := testChatLog(t, http.NotFoundHandler())

	log.Insert(msgAt("m3", "bob", "third", 2*time.Minute))
	log.Insert(msgAt("m1", "alice", "first", 0))
	log.InsertMany([]ChatMessage{
		msgAt("m2", "bob", "second", time.Minute),
		msgAt("m1", "alice", "first", 0), // replayed history entry
	})

	messages := log.Messages()
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	for i, want := range []string{"m1", "m2", "m3"} {
		if messages[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, messages[i].ID)
		}
	}
}

func TestChatLogDropsMessageWithoutID(t *testing.T) {
	log, _ := testChatLog(t, http.NotFoundHandler())
	log.Insert(ChatMessage{Username: "alice", Content: "no id"})
	if len(log.Messages()) != 0 {
		t.Fatal("message without id must be dropped")
	}
}

func TestChatLogNotifications(t *testing.T) {
	log, _ := testChatLog(t, http.NotFoundHandler())
	log.AddNotification("bob joined the room")

	messages := log.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(messages))
	}
	if !messages[0].IsNotification() {
		t.Fatal("notification must have no author")
	}
	if !strings.HasPrefix(messages[0].ID, "notification-") {
		t.Fatalf("unexpected synthetic id %q", messages[0].ID)
	}
}

func TestChatLogCanDeleteOwnMessagesOnly(t *testing.T) {
	log, _ := testChatLog(t, http.NotFoundHandler())
	log.Insert(msgAt("mine", "alice", "hi", 0))
	log.Insert(msgAt("theirs", "bob", "yo", time.Second))
	log.AddNotification("bob joined")

	if !log.CanDelete("mine", "alice") {
		t.Fatal("own message must be deletable")
	}
	if log.CanDelete("theirs", "alice") {
		t.Fatal("foreign message must not be deletable")
	}
	for _, msg := range log.Messages() {
		if msg.IsNotification() && log.CanDelete(msg.ID, "alice") {
			t.Fatal("notifications must not be deletable")
		}
	}
}

func TestChatLogDeleteIsRemoteFirst(t *testing.T) {
	var serverOK bool
	log, _ := testChatLog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !serverOK {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	log.Insert(msgAt("m1", "alice", "hello", 0))

	if err := log.Delete("m1"); err == nil {
		t.Fatal("expected delete to fail while server errors")
	}
	if len(log.Messages()) != 1 {
		t.Fatal("failed remote delete must not touch local state")
	}

	serverOK = true
	if err := log.Delete("m1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(log.Messages()) != 0 {
		t.Fatal("confirmed delete must remove the local entry")
	}
}

func TestChatLogTypingLastWriteWins(t *testing.T) {
	log, _ := testChatLog(t, http.NotFoundHandler())

	log.ApplyTyping(TypingSignal{Username: "bob", IsTyping: true})
	log.ApplyTyping(TypingSignal{Username: "carol", IsTyping: true})
	if got := log.Typing(); got.Username != "carol" || !got.IsTyping {
		t.Fatalf("latest signal must win, got %+v", got)
	}

	log.ApplyTyping(TypingSignal{Username: "carol", IsTyping: false})
	if got := log.Typing(); got.IsTyping {
		t.Fatal("cessation must clear the indicator")
	}
}

func TestChatLogSetTypingRequiresBinding(t *testing.T) {
	log, _ := testChatLog(t, http.NotFoundHandler())

	if err := log.SetTyping("alice", true); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}

	var sent []TypingSignal
	log.BindTyping(func(sig TypingSignal) error {
		sent = append(sent, sig)
		return nil
	})
	if err := log.SetTyping("alice", true); err != nil {
		t.Fatalf("set typing: %v", err)
	}
	if len(sent) != 1 || sent[0].Username != "alice" || !sent[0].IsTyping {
		t.Fatalf("unexpected broadcast %+v", sent)
	}
}
