package internal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// testBroker is a minimal in-process stand-in for the realtime backend:
// it records every frame the client writes and lets the test push
// broker frames back.
type testBroker struct {
	server *httptest.Server

	mu           sync.Mutex
	conn         *websocket.Conn
	conns        int
	received     []Frame
	receivedConn []int
}

func newTestBroker(t *testing.T) *testBroker {
	t.Helper()
	broker := &testBroker{}
	upgrader := websocket.Upgrader{}
	broker.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		broker.mu.Lock()
		broker.conn = conn
		broker.conns++
		connID := broker.conns
		broker.mu.Unlock()
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame Frame
			if err := json.Unmarshal(payload, &frame); err != nil {
				continue
			}
			broker.mu.Lock()
			broker.received = append(broker.received, frame)
			broker.receivedConn = append(broker.receivedConn, connID)
			broker.mu.Unlock()
		}
	}))
	t.Cleanup(broker.server.Close)
	return broker
}

func (b *testBroker) wsURL() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http")
}

// dropClient closes the server side of the current connection,
// simulating a peer-initiated drop.
func (b *testBroker) dropClient() {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (b *testBroker) push(t *testing.T, frame Frame) {
	t.Helper()
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		t.Fatal("no client connected")
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatal(err)
	}
}

// waitFrames polls until the predicate matches a recorded frame.
func (b *testBroker) waitFrame(t *testing.T, match func(Frame) bool) Frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		b.mu.Lock()
		for _, frame := range b.received {
			if match(frame) {
				b.mu.Unlock()
				return frame
			}
		}
		b.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected frame not received")
	return Frame{}
}

func newTestConnector(t *testing.T, broker *testBroker) *Connector {
	t.Helper()
	api := NewAPIClient("http://unused.invalid")
	api.SetContext(SessionContext{Username: "alice", Token: "tok"})
	return NewConnector(broker.wsURL(), api, zerolog.Nop())
}

func TestConnectSameRoomIsNoOp(t *testing.T) {
	broker := newTestBroker(t)
	connector := newTestConnector(t, broker)

	first, err := connector.Connect("r1")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	second, err := connector.Connect("r1")
	if err != nil {
		t.Fatalf("second connect: %v", err)
	}
	if first != second {
		t.Fatal("connect to the same open room must return the existing session")
	}
	connector.Disconnect()
}

func TestConnectOtherRoomWhileOpenFails(t *testing.T) {
	broker := newTestBroker(t)
	connector := newTestConnector(t, broker)

	if _, err := connector.Connect("r1"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := connector.Connect("r2"); err == nil {
		t.Fatal("a second room must require an explicit disconnect first")
	}
	connector.Disconnect()

	if _, err := connector.Connect("r2"); err != nil {
		t.Fatalf("connect after disconnect: %v", err)
	}
	connector.Disconnect()
}

func TestSubscribeDispatchesByTopic(t *testing.T) {
	broker := newTestBroker(t)
	connector := newTestConnector(t, broker)

	session, err := connector.Connect("r1")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer connector.Disconnect()

	got := make(chan VideoControl, 1)
	err = session.Subscribe(topicVideo("r1"), func(body json.RawMessage) {
		var ctrl VideoControl
		_ = json.Unmarshal(body, &ctrl)
		got <- ctrl
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	broker.waitFrame(t, func(f Frame) bool {
		return f.Command == frameSubscribe && f.Destination == topicVideo("r1")
	})

	body, _ := json.Marshal(VideoControl{Type: ControlPlay, RoomID: "r1"})
	broker.push(t, Frame{Command: frameMessage, Destination: topicVideo("r1"), Body: body})
	// a frame for a topic nobody subscribed is dropped silently
	broker.push(t, Frame{Command: frameMessage, Destination: topicChat("r1"), Body: []byte(`{}`)})

	select {
	case ctrl := <-got:
		if ctrl.Type != ControlPlay {
			t.Fatalf("expected PLAY, got %s", ctrl.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscribed handler never fired")
	}
}

func TestJoinAndLeaveAnnouncePresence(t *testing.T) {
	broker := newTestBroker(t)
	connector := newTestConnector(t, broker)

	session, err := connector.Connect("r1")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := connector.Join(session); err != nil {
		t.Fatalf("join: %v", err)
	}

	joinFrame := broker.waitFrame(t, func(f Frame) bool {
		return f.Command == frameSend && f.Destination == destJoin()
	})
	var join presenceEvent
	if err := json.Unmarshal(joinFrame.Body, &join); err != nil {
		t.Fatalf("join payload: %v", err)
	}
	if join.Username != "alice" || join.RoomID != "r1" || join.Type != presenceJoin {
		t.Fatalf("unexpected join payload %+v", join)
	}

	connector.Disconnect()
	broker.waitFrame(t, func(f Frame) bool {
		return f.Command == frameSend && f.Destination == destLeave()
	})
	if connector.Session() != nil {
		t.Fatal("session must be gone after disconnect")
	}
}

func TestSendAfterDisconnectIsDropped(t *testing.T) {
	broker := newTestBroker(t)
	connector := newTestConnector(t, broker)

	session, err := connector.Connect("r1")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	connector.Disconnect()

	err = session.Send(destVideo("r1"), VideoControl{Type: ControlPlay})
	if err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if connector.Stats().Snapshot()["dropped_sends"] == 0 {
		t.Fatal("dropped command must be counted")
	}
}

func TestDisconnectRacesPeerDropSafely(t *testing.T) {
	broker := newTestBroker(t)
	connector := newTestConnector(t, broker)
	connector.OnSessionClosed = func(string, error) {}

	// exercise the teardown path against a concurrent peer-side close;
	// the invariant is that neither side trips the other, whichever wins
	for i := 0; i < 50; i++ {
		session, err := connector.Connect("r1")
		if err != nil {
			t.Fatalf("connect %d: %v", i, err)
		}
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			broker.dropClient()
		}()
		go func() {
			defer wg.Done()
			connector.Disconnect()
		}()
		wg.Wait()
		<-session.done
		if connector.Session() != nil {
			t.Fatal("session must be cleared after disconnect")
		}
	}
}

func TestBuildSocketURLRejectsHTTP(t *testing.T) {
	if _, err := buildSocketURL("http://localhost:8080/ws"); err == nil {
		t.Fatal("http scheme must be rejected")
	}
	if _, err := buildSocketURL("wss://example.com/ws"); err != nil {
		t.Fatalf("wss must be accepted, got %v", err)
	}
}
