package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"watchroom/internal/storage"
)

// ErrUnsupportedVideoURL rejects urls no supported player can render.
var ErrUnsupportedVideoURL = errors.New("unsupported video url")

// RoomController drives one room at a time: it runs the access gate,
// owns the session through the connector, feeds the roster, playback
// and chat components from inbound events, and persists the local cache
// snapshot on every state change. Switching rooms is strictly
// disconnect-then-connect.
type RoomController struct {
	api       *APIClient
	connector *Connector
	cache     *storage.Cache
	gate      *AccessGate
	logger    zerolog.Logger

	mu       sync.Mutex
	roomID   string
	room     *Room
	playback *PlaybackSync
	chat     *ChatLog
	roster   *RosterTracker

	changed chan struct{}
}

func NewRoomController(api *APIClient, connector *Connector, cache *storage.Cache, logger zerolog.Logger) *RoomController {
	c := &RoomController{
		api:       api,
		connector: connector,
		cache:     cache,
		gate:      NewAccessGate(api, logger),
		logger:    logger.With().Str("component", "room").Logger(),
		changed:   make(chan struct{}, 1),
	}
	connector.OnSessionClosed = func(roomID string, err error) {
		c.logger.Warn().Err(err).Str("room", roomID).Msg("session dropped")
		c.notify()
	}
	return c
}

// Changed delivers a coalesced tick whenever any room state mutates.
// The consumer re-reads the accessors; ticks carry no payload.
func (c *RoomController) Changed() <-chan struct{} { return c.changed }

func (c *RoomController) notify() {
	select {
	case c.changed <- struct{}{}:
	default:
	}
}

// Enter points the controller at a room. Any previous room session is
// fully torn down first, including the best-effort leave notify. When
// the room is password protected the returned error is
// ErrPasswordRequired and the caller must feed SubmitPassword before
// any session activity happens.
func (c *RoomController) Enter(roomID string) error {
	c.mu.Lock()
	switching := c.roomID != "" && c.roomID != roomID
	c.mu.Unlock()
	if switching {
		c.Leave()
	}

	c.mu.Lock()
	c.roomID = roomID
	c.room = nil
	c.playback = NewPlaybackSync(c.logger)
	c.chat = NewChatLog(c.api, roomID, c.logger)
	c.roster = NewRosterTracker()
	c.mu.Unlock()
	c.gate.Reset(roomID)

	c.restoreFromCache(roomID)
	c.notify()

	room, err := c.api.GetRoom(roomID)
	if err != nil {
		return fmt.Errorf("load room %s: %w", roomID, err)
	}
	c.mu.Lock()
	c.room = room
	c.mu.Unlock()
	c.persistRoom(room)
	c.notify()

	if err := c.gate.Check(room); err != nil {
		return err
	}
	return c.connectAndSync()
}

// restoreFromCache primes the view from the per-room snapshot, read
// exactly once per entry. Anything it installs is later overridden by
// the REST reconciliation.
func (c *RoomController) restoreFromCache(roomID string) {
	snap, err := c.cache.Get(context.Background(), roomID)
	if err != nil {
		c.logger.Warn().Err(err).Msg("cache read failed")
		return
	}
	if snap == nil {
		return
	}
	if snap.AccessGranted {
		c.gate.Restore(roomID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(snap.RoomJSON) > 0 {
		var room Room
		if err := json.Unmarshal(snap.RoomJSON, &room); err == nil {
			c.room = &room
		}
	}
	c.playback.RestoreURL(snap.VideoURL)
	if len(snap.RosterJSON) > 0 {
		var roster []string
		if err := json.Unmarshal(snap.RosterJSON, &roster); err == nil {
			c.roster.Apply(roster)
		}
	}
}

// SubmitPassword runs the remote check and, when it passes, opens the
// session. A wrong password is a non-fatal ErrWrongPassword; the gate
// stays closed and the user may try again indefinitely.
func (c *RoomController) SubmitPassword(password string) error {
	if err := c.gate.SubmitPassword(password); err != nil {
		return err
	}
	c.mu.Lock()
	roomID := c.roomID
	c.mu.Unlock()
	if err := c.cache.PutAccess(context.Background(), roomID, true); err != nil {
		c.logger.Warn().Err(err).Msg("cache write failed")
	}
	return c.connectAndSync()
}

// Reconnect re-opens the session after a drop. Only valid once the gate
// has granted access; it re-subscribes every topic and re-runs the REST
// snapshot reconciliation, so no state silently survives a network
// blip.
func (c *RoomController) Reconnect() error {
	c.mu.Lock()
	roomID := c.roomID
	c.mu.Unlock()
	if roomID == "" || !c.gate.Granted(roomID) {
		return ErrPasswordRequired
	}
	c.connector.Stats().IncReconnect()
	return c.connectAndSync()
}

func (c *RoomController) connectAndSync() error {
	c.mu.Lock()
	roomID := c.roomID
	playback := c.playback
	chat := c.chat
	roster := c.roster
	c.mu.Unlock()

	session, err := c.connector.Connect(roomID)
	if err != nil {
		c.notify()
		return err
	}

	subs := map[string]func(json.RawMessage){
		topicParticipants(roomID): func(body json.RawMessage) {
			var full []string
			if err := json.Unmarshal(body, &full); err != nil {
				c.logger.Warn().Err(err).Msg("malformed roster payload")
				return
			}
			roster.Apply(full)
			c.persistRoster(roomID, full)
			c.notify()
		},
		topicVideo(roomID): func(body json.RawMessage) {
			var ctrl VideoControl
			if err := json.Unmarshal(body, &ctrl); err != nil {
				c.logger.Warn().Err(err).Msg("malformed control payload")
				return
			}
			playback.Apply(ctrl)
			if ctrl.Type == ControlUpdateURL {
				c.persistVideoURL(roomID, ctrl.VideoURL)
			}
			c.notify()
		},
		topicChat(roomID): func(body json.RawMessage) {
			var msg ChatMessage
			if err := json.Unmarshal(body, &msg); err != nil {
				c.logger.Warn().Err(err).Msg("malformed chat payload")
				return
			}
			chat.Insert(msg)
			c.notify()
		},
		topicTyping(roomID): func(body json.RawMessage) {
			var sig TypingSignal
			if err := json.Unmarshal(body, &sig); err != nil {
				c.logger.Warn().Err(err).Msg("malformed typing payload")
				return
			}
			chat.ApplyTyping(sig)
			c.notify()
		},
		topicNotifications(roomID): func(body json.RawMessage) {
			var text string
			if err := json.Unmarshal(body, &text); err != nil {
				text = string(body)
			}
			chat.AddNotification(text)
			c.notify()
		},
	}
	for topic, handler := range subs {
		if err := session.Subscribe(topic, handler); err != nil {
			c.logger.Warn().Err(err).Str("topic", topic).Msg("subscribe failed")
		}
	}

	playback.Bind(func(ctrl VideoControl) error {
		return session.Send(destVideo(roomID), ctrl)
	})
	chat.BindTyping(func(sig TypingSignal) error {
		return session.Send(destTyping(roomID), sig)
	})

	if err := c.connector.Join(session); err != nil {
		c.logger.Warn().Err(err).Msg("join broadcast failed")
	}
	roster.SeedSelf(c.api.Context().Username)

	c.reconcile(roomID, playback, chat, roster)
	c.notify()
	return nil
}

// reconcile replaces event-derived state with REST snapshots. Runs
// after every (re)connect since the broker replays nothing. Individual
// fetch failures are logged and tolerated; the room stays usable with
// whatever state it has.
func (c *RoomController) reconcile(roomID string, playback *PlaybackSync, chat *ChatLog, roster *RosterTracker) {
	if state, err := c.api.FetchVideoState(roomID); err != nil {
		c.logger.Warn().Err(err).Msg("video snapshot fetch failed")
	} else {
		playback.ApplySnapshot(*state)
		c.persistVideoURL(roomID, state.URL)
	}
	if history, err := c.api.FetchMessages(roomID); err != nil {
		c.logger.Warn().Err(err).Msg("chat snapshot fetch failed")
	} else {
		chat.InsertMany(history)
	}
	if participants, err := c.api.FetchParticipants(roomID); err != nil {
		c.logger.Warn().Err(err).Msg("roster snapshot fetch failed")
	} else {
		roster.Apply(participants)
		c.persistRoster(roomID, participants)
	}
}

// Leave tears the current session down: leave notify, unsubscribe,
// transport close. State accessors keep the last view for rendering.
func (c *RoomController) Leave() {
	c.connector.Disconnect()
	c.mu.Lock()
	if c.playback != nil {
		c.playback.Bind(nil)
	}
	if c.chat != nil {
		c.chat.BindTyping(nil)
	}
	c.mu.Unlock()
	c.notify()
}

// DeleteRoom removes the room remotely (owner only, enforced by the
// backend), terminates the session and drops the cache entry.
func (c *RoomController) DeleteRoom() error {
	c.mu.Lock()
	roomID := c.roomID
	c.mu.Unlock()
	if err := c.api.DeleteRoom(roomID); err != nil {
		return err
	}
	c.Leave()
	if err := c.cache.Delete(context.Background(), roomID); err != nil {
		c.logger.Warn().Err(err).Msg("cache delete failed")
	}
	return nil
}

// RenameRoom updates the room name remotely; local metadata follows the
// confirmed response, never the request.
func (c *RoomController) RenameRoom(name string) error {
	c.mu.Lock()
	roomID := c.roomID
	c.mu.Unlock()
	room, err := c.api.UpdateRoomName(roomID, name)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.room = room
	c.mu.Unlock()
	c.persistRoom(room)
	c.notify()
	return nil
}

// UpdateRoomPassword replaces the room password remotely.
func (c *RoomController) UpdateRoomPassword(newPassword string) error {
	c.mu.Lock()
	roomID := c.roomID
	c.mu.Unlock()
	return c.api.UpdateRoomPassword(roomID, newPassword)
}

// SetVideoURL validates and broadcasts a new shared video.
func (c *RoomController) SetVideoURL(url string) error {
	if ClassifyVideoURL(url) == VideoUnsupported {
		return ErrUnsupportedVideoURL
	}
	c.mu.Lock()
	roomID := c.roomID
	playback := c.playback
	c.mu.Unlock()
	c.persistVideoURL(roomID, url)
	err := playback.SetURL(roomID, url)
	c.notify()
	return err
}

// Play, Pause and Seek apply locally and broadcast. Any participant may
// drive playback; the backend does not police it.
func (c *RoomController) Play() error {
	c.mu.Lock()
	roomID, playback := c.roomID, c.playback
	c.mu.Unlock()
	err := playback.Play(roomID)
	c.notify()
	return err
}

func (c *RoomController) Pause() error {
	c.mu.Lock()
	roomID, playback := c.roomID, c.playback
	c.mu.Unlock()
	err := playback.Pause(roomID)
	c.notify()
	return err
}

func (c *RoomController) Seek(seconds float64) error {
	c.mu.Lock()
	roomID, playback := c.roomID, c.playback
	c.mu.Unlock()
	err := playback.Seek(roomID, seconds)
	c.notify()
	return err
}

// SendChat posts a message; replyToID may be empty. The reply target is
// resolved against the local log at selection time; a vanished target
// simply drops the reference.
func (c *RoomController) SendChat(content, replyToID string) error {
	c.mu.Lock()
	chat := c.chat
	c.mu.Unlock()
	var replyTo *ChatMessage
	if replyToID != "" {
		replyTo = chat.FindByID(replyToID)
	}
	return chat.Send(content, replyTo)
}

// DeleteMessage removes one of the user's own messages, confirmed
// remote-first.
func (c *RoomController) DeleteMessage(messageID string) error {
	c.mu.Lock()
	chat := c.chat
	c.mu.Unlock()
	if !chat.CanDelete(messageID, c.api.Context().Username) {
		return fmt.Errorf("can only delete your own messages")
	}
	if err := chat.Delete(messageID); err != nil {
		return err
	}
	c.notify()
	return nil
}

// SetTyping broadcasts the local typing state.
func (c *RoomController) SetTyping(isTyping bool) error {
	c.mu.Lock()
	chat := c.chat
	c.mu.Unlock()
	return chat.SetTyping(c.api.Context().Username, isTyping)
}

// RemoveParticipant sends the owner's removal command. The roster only
// shrinks when the confirming roster event arrives.
func (c *RoomController) RemoveParticipant(username string) error {
	session := c.connector.Session()
	if session == nil {
		return ErrNotConnected
	}
	c.mu.Lock()
	roster := c.roster
	c.mu.Unlock()
	return roster.Remove(session, username)
}

// Room returns the current room metadata, nil before the first load.
func (c *RoomController) Room() *Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// RoomLink returns the shareable web URL for the current room.
func (c *RoomController) RoomLink() string {
	return c.api.RoomLink(c.RoomID())
}

// RoomID returns the room the controller points at.
func (c *RoomController) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

// IsOwner reports whether the local user owns the current room.
func (c *RoomController) IsOwner() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room != nil && c.room.Owner == c.api.Context().Username
}

// Playback returns the playback view.
func (c *RoomController) Playback() PlaybackView {
	c.mu.Lock()
	playback := c.playback
	c.mu.Unlock()
	if playback == nil {
		return PlaybackView{}
	}
	return playback.View()
}

// Messages returns the ordered chat stream.
func (c *RoomController) Messages() []ChatMessage {
	c.mu.Lock()
	chat := c.chat
	c.mu.Unlock()
	if chat == nil {
		return nil
	}
	return chat.Messages()
}

// FindMessage resolves a message by id for reply selection.
func (c *RoomController) FindMessage(id string) *ChatMessage {
	c.mu.Lock()
	chat := c.chat
	c.mu.Unlock()
	if chat == nil {
		return nil
	}
	return chat.FindByID(id)
}

// Typing returns the last received typing signal.
func (c *RoomController) Typing() TypingSignal {
	c.mu.Lock()
	chat := c.chat
	c.mu.Unlock()
	if chat == nil {
		return TypingSignal{}
	}
	return chat.Typing()
}

// Participants returns the roster copy.
func (c *RoomController) Participants() []string {
	c.mu.Lock()
	roster := c.roster
	c.mu.Unlock()
	if roster == nil {
		return nil
	}
	return roster.Participants()
}

// SessionState reports the connector's view of the current session.
func (c *RoomController) SessionState() SessionState {
	session := c.connector.Session()
	if session == nil {
		return StateDisconnected
	}
	return session.State()
}

func (c *RoomController) persistRoom(room *Room) {
	encoded, err := json.Marshal(room)
	if err != nil {
		return
	}
	if err := c.cache.PutRoom(context.Background(), room.ID, encoded); err != nil {
		c.logger.Warn().Err(err).Msg("cache write failed")
	}
}

func (c *RoomController) persistVideoURL(roomID, url string) {
	if err := c.cache.PutVideoURL(context.Background(), roomID, url); err != nil {
		c.logger.Warn().Err(err).Msg("cache write failed")
	}
}

func (c *RoomController) persistRoster(roomID string, roster []string) {
	encoded, err := json.Marshal(roster)
	if err != nil {
		return
	}
	if err := c.cache.PutRoster(context.Background(), roomID, encoded); err != nil {
		c.logger.Warn().Err(err).Msg("cache write failed")
	}
}
