package internal

import "sync"

// RosterTracker holds the current participant set of one room. Every
// roster event carries the full roster, so Apply replaces wholesale; the
// only local insertion is the optimistic self-join seed.
type RosterTracker struct {
	mu           sync.Mutex
	participants []string
}

func NewRosterTracker() *RosterTracker {
	return &RosterTracker{participants: make([]string, 0, 8)}
}

// Apply replaces the participant set with the event payload. An empty
// roster is a valid state, not an error.
func (r *RosterTracker) Apply(full []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants = append(r.participants[:0], full...)
}

// SeedSelf optimistically lists the local user until the first roster
// event arrives.
func (r *RosterTracker) SeedSelf(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.participants) == 0 && username != "" {
		r.participants = append(r.participants, username)
	}
}

// Participants returns a copy of the current roster.
func (r *RosterTracker) Participants() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.participants))
	copy(out, r.participants)
	return out
}

// Count returns the roster size.
func (r *RosterTracker) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

// Remove asks the broker to drop a participant. The local set is left
// untouched: removal shows up through the next roster event, never
// optimistically.
func (r *RosterTracker) Remove(session *Session, username string) error {
	return session.Send(destRemoveParticipant(session.RoomID), removeCommand{Username: username})
}
