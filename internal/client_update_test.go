package internal

import (
	"encoding/json"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

// typingSignalsSent decodes every typing broadcast the broker saw so far.
func typingSignalsSent(broker *testBroker, roomID string) []TypingSignal {
	broker.mu.Lock()
	defer broker.mu.Unlock()
	var signals []TypingSignal
	for _, frame := range broker.received {
		if frame.Command != frameSend || frame.Destination != destTyping(roomID) {
			continue
		}
		var sig TypingSignal
		if json.Unmarshal(frame.Body, &sig) == nil {
			signals = append(signals, sig)
		}
	}
	return signals
}

func TestTypingBroadcastOnEveryKeystroke(t *testing.T) {
	room := Room{ID: "r1", Name: "movie night", Owner: "bob"}
	backend := testBackend(t, room, VideoState{}, nil, []string{"alice", "bob"})
	broker := newTestBroker(t)
	controller := newTestController(t, backend, broker)

	if err := controller.Enter("r1"); err != nil {
		t.Fatalf("enter: %v", err)
	}
	defer controller.Leave()

	model := NewTUIModel(controller.api, controller, "alice")
	model.mode = modeRoom
	_ = model.promptFor("> ", "", false)

	for _, r := range "hey" {
		_, _ = model.updateRoom(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}

	waitFor(t, "one typing broadcast per keystroke", func() bool {
		active := 0
		for _, sig := range typingSignalsSent(broker, "r1") {
			if sig.IsTyping && sig.Username == "alice" {
				active++
			}
		}
		return active >= 3
	})

	// sending the message announces cessation
	_, _ = model.updateRoom(tea.KeyMsg{Type: tea.KeyEnter})
	waitFor(t, "typing cessation on send", func() bool {
		signals := typingSignalsSent(broker, "r1")
		return len(signals) > 0 && !signals[len(signals)-1].IsTyping
	})
}
