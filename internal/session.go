package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// SessionState tracks the lifecycle of one room session.
type SessionState int32

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateConnected
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ErrNotConnected is returned when a command is sent without an open
// session. The command is dropped, never queued.
var ErrNotConnected = errors.New("session not connected")

// Session is the realtime connection for one room. It is owned by the
// Connector; consumers only hold it to subscribe and send commands.
type Session struct {
	RoomID   string
	ClientID string

	conn    *websocket.Conn
	writeMu sync.Mutex
	state   atomic.Int32
	done    chan struct{}

	// onClosed is cleared during a local Disconnect while readPump may
	// still be running, so access goes through the mutex.
	onClosedMu sync.Mutex
	onClosed   func(err error)

	handlersMu sync.RWMutex
	handlers   map[string]func(json.RawMessage)

	logger zerolog.Logger
	stats  *Stats
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Subscribe registers a handler for a topic and tells the broker to
// start delivering it. The transport replays nothing: events published
// before this call are gone, which is why the controller follows every
// connect with REST snapshot fetches.
func (s *Session) Subscribe(topic string, handler func(json.RawMessage)) error {
	s.handlersMu.Lock()
	s.handlers[topic] = handler
	s.handlersMu.Unlock()
	return s.writeFrame(Frame{Command: frameSubscribe, Destination: topic})
}

// UnsubscribeAll drops every topic handler and notifies the broker
// best-effort. Called on teardown so no stale event reaches a consumer
// after the room is left.
func (s *Session) UnsubscribeAll() {
	s.handlersMu.Lock()
	topics := make([]string, 0, len(s.handlers))
	for topic := range s.handlers {
		topics = append(topics, topic)
	}
	s.handlers = make(map[string]func(json.RawMessage))
	s.handlersMu.Unlock()
	for _, topic := range topics {
		_ = s.writeFrame(Frame{Command: frameUnsubscribe, Destination: topic})
	}
}

// Send publishes a command to an outbound destination. While the session
// is not connected the command is logged and dropped.
func (s *Session) Send(destination string, payload interface{}) error {
	if s.State() != StateConnected {
		s.stats.droppedSends.Add(1)
		s.logger.Warn().Str("destination", destination).Msg("dropping command, session not connected")
		return ErrNotConnected
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := s.writeFrame(Frame{Command: frameSend, Destination: destination, Body: body}); err != nil {
		return err
	}
	s.stats.commandsSent.Add(1)
	return nil
}

func (s *Session) writeFrame(frame Frame) error {
	if s.conn == nil {
		return ErrNotConnected
	}
	encoded, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, encoded)
}

func (s *Session) setClosedHook(hook func(error)) {
	s.onClosedMu.Lock()
	s.onClosed = hook
	s.onClosedMu.Unlock()
}

func (s *Session) closedHook() func(error) {
	s.onClosedMu.Lock()
	defer s.onClosedMu.Unlock()
	return s.onClosed
}

// readPump delivers broker frames to topic handlers one at a time, so
// per-topic ordering is exactly arrival order. It exits on the first
// read error, which also covers a clean close.
func (s *Session) readPump() {
	defer close(s.done)
	for {
		messageType, payload, err := s.conn.ReadMessage()
		if err != nil {
			wasConnected := s.state.Swap(int32(StateDisconnected)) == int32(StateConnected)
			if wasConnected {
				if hook := s.closedHook(); hook != nil {
					hook(err)
				}
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var frame Frame
		if err := json.Unmarshal(payload, &frame); err != nil {
			s.logger.Warn().Err(err).Msg("malformed frame, ignoring")
			continue
		}
		if frame.Command != frameMessage {
			continue
		}
		s.handlersMu.RLock()
		handler := s.handlers[frame.Destination]
		s.handlersMu.RUnlock()
		if handler == nil {
			s.logger.Debug().Str("destination", frame.Destination).Msg("no handler for topic")
			continue
		}
		s.stats.eventsReceived.Add(1)
		handler(frame.Body)
	}
}

// Connector owns session lifecycles. At most one session is active per
// client; switching rooms is always disconnect-then-connect.
type Connector struct {
	wsURL  string
	api    *APIClient
	dialer *websocket.Dialer
	logger zerolog.Logger
	stats  *Stats

	// OnSessionClosed fires when an established session drops without a
	// local Disconnect call. Reconnecting is the caller's decision.
	OnSessionClosed func(roomID string, err error)

	mu      sync.Mutex
	session *Session
}

// NewConnector builds a connector for the broker websocket endpoint,
// e.g. "ws://localhost:8080/ws".
func NewConnector(wsURL string, api *APIClient, logger zerolog.Logger) *Connector {
	return &Connector{
		wsURL:  wsURL,
		api:    api,
		dialer: websocket.DefaultDialer,
		logger: logger.With().Str("component", "connector").Logger(),
		stats:  NewStats(),
	}
}

// Stats exposes the connector's counters.
func (c *Connector) Stats() *Stats { return c.stats }

// Session returns the current session, nil when disconnected.
func (c *Connector) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Connect opens a session for the room. A second call while a session
// for the same room is connecting or connected is a no-op returning the
// existing session. A failure is reported once; the connector never
// retries on its own.
func (c *Connector) Connect(roomID string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && c.session.RoomID == roomID && c.session.State() != StateDisconnected {
		return c.session, nil
	}
	if c.session != nil && c.session.State() != StateDisconnected {
		return nil, fmt.Errorf("session for room %s still open, disconnect first", c.session.RoomID)
	}

	session := &Session{
		RoomID:   roomID,
		ClientID: uuid.NewString(),
		done:     make(chan struct{}),
		handlers: make(map[string]func(json.RawMessage)),
		logger:   c.logger.With().Str("room", roomID).Logger(),
		stats:    c.stats,
	}
	session.state.Store(int32(StateConnecting))
	session.setClosedHook(func(err error) {
		c.logger.Warn().Err(err).Str("room", roomID).Msg("session closed")
		if c.OnSessionClosed != nil {
			c.OnSessionClosed(roomID, err)
		}
	})
	c.session = session

	dialURL, err := buildSocketURL(c.wsURL)
	if err != nil {
		c.session = nil
		return nil, err
	}
	header := http.Header{}
	if token := c.api.Context().Token; token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := c.dialer.Dial(dialURL, header)
	if err != nil {
		c.session = nil
		c.logger.Error().Err(err).Str("room", roomID).Msg("connect failed")
		return nil, fmt.Errorf("connect room %s: %w", roomID, err)
	}
	session.conn = conn
	session.state.Store(int32(StateConnected))
	go session.readPump()
	c.logger.Info().Str("room", roomID).Msg("connected")
	return session, nil
}

// Disconnect tears down the current session. It first attempts a leave
// broadcast so the roster updates, but the transport is closed even if
// that notify fails or the connection is already degraded.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.mu.Unlock()
	if session == nil {
		return
	}
	session.setClosedHook(nil)

	leave := presenceEvent{Username: c.api.Context().Username, RoomID: session.RoomID, Type: presenceLeave}
	if err := session.Send(destLeave(), leave); err != nil {
		c.logger.Warn().Err(err).Str("room", session.RoomID).Msg("leave notify failed")
	}
	session.UnsubscribeAll()
	session.state.Store(int32(StateDisconnected))
	if session.conn != nil {
		session.writeMu.Lock()
		_ = session.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		session.writeMu.Unlock()
		_ = session.conn.Close()
	}
	c.logger.Info().Str("room", session.RoomID).Msg("disconnected")
}

// Join announces this client on the room's presence destination.
func (c *Connector) Join(session *Session) error {
	join := presenceEvent{Username: c.api.Context().Username, RoomID: session.RoomID, Type: presenceJoin}
	return session.Send(destJoin(), join)
}

func buildSocketURL(base string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return "", fmt.Errorf("invalid scheme for websocket: %s", parsed.Scheme)
	}
	return parsed.String(), nil
}
