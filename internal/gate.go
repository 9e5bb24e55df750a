package internal

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrPasswordRequired signals that the room is protected and the caller
// must prompt for a password before any session activity.
var ErrPasswordRequired = errors.New("room password required")

// AccessGate decides whether the client may open a session for a room.
// Granted access is scoped to exactly one room id; pointing the gate at
// another room discards the previous grant.
type AccessGate struct {
	api    *APIClient
	logger zerolog.Logger

	mu      sync.Mutex
	roomID  string
	granted bool
}

func NewAccessGate(api *APIClient, logger zerolog.Logger) *AccessGate {
	return &AccessGate{api: api, logger: logger.With().Str("component", "gate").Logger()}
}

// Reset closes the gate and re-scopes it to a room. Must be called on
// every room switch before anything else touches the session.
func (g *AccessGate) Reset(roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roomID = roomID
	g.granted = false
}

// Restore re-applies a previously persisted grant, used when the cached
// room snapshot says the password check already passed. The grant only
// sticks while the gate still points at that room.
func (g *AccessGate) Restore(roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.roomID == roomID {
		g.granted = true
	}
}

// Check grants access immediately when the room has no password.
// Otherwise it returns ErrPasswordRequired and the gate stays closed
// until SubmitPassword succeeds.
func (g *AccessGate) Check(room *Room) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if room.ID != g.roomID {
		g.roomID = room.ID
		g.granted = false
	}
	if !room.HasPassword {
		g.granted = true
		return nil
	}
	if g.granted {
		return nil
	}
	return ErrPasswordRequired
}

// SubmitPassword runs the remote boolean check. A wrong password keeps
// the gate closed and returns ErrWrongPassword; there is no retry limit.
func (g *AccessGate) SubmitPassword(password string) error {
	g.mu.Lock()
	roomID := g.roomID
	g.mu.Unlock()

	ok, err := g.api.CheckRoomPassword(roomID, password)
	if err != nil {
		g.logger.Warn().Err(err).Str("room", roomID).Msg("password check failed")
		return err
	}
	if !ok {
		return ErrWrongPassword
	}
	g.mu.Lock()
	// the grant only sticks if the gate still points at the same room
	if g.roomID == roomID {
		g.granted = true
	}
	g.mu.Unlock()
	return nil
}

// Granted reports whether access is currently granted for the room.
func (g *AccessGate) Granted(roomID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.granted && g.roomID == roomID
}
