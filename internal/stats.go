package internal

import "sync/atomic"

// Stats counts session activity. Cheap atomics, readable at any time.
type Stats struct {
	eventsReceived atomic.Uint64
	commandsSent   atomic.Uint64
	droppedSends   atomic.Uint64
	reconnects     atomic.Uint64
}

func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) IncReconnect() {
	s.reconnects.Add(1)
}

func (s *Stats) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"events_received": s.eventsReceived.Load(),
		"commands_sent":   s.commandsSent.Load(),
		"dropped_sends":   s.droppedSends.Load(),
		"reconnects":      s.reconnects.Load(),
	}
}
