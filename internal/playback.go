package internal

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// errNoVideo rejects local play/pause/seek before any video is shared.
// Remote controls in the same state are ignored silently instead.
var errNoVideo = errors.New("no video loaded")

// PlayMode is the playback half of the synchronizer state; the other
// half is the url/position pair.
type PlayMode int

const (
	ModeNoVideo PlayMode = iota
	ModePaused
	ModePlaying
)

func (m PlayMode) String() string {
	switch m {
	case ModePaused:
		return "paused"
	case ModePlaying:
		return "playing"
	default:
		return "no video"
	}
}

// PlaybackView is an immutable snapshot of the synchronizer state.
type PlaybackView struct {
	Mode     PlayMode
	URL      string
	Position float64
}

// PlaybackSync reconciles the rendered playback state with the room's
// control event stream. The rendered state is always the fold of every
// control event applied since the session started, on top of whatever
// base snapshot was installed last. Local actions go through the same
// fold and are broadcast simultaneously (optimistic on both ends).
type PlaybackSync struct {
	mu       sync.Mutex
	mode     PlayMode
	url      string
	position float64

	broadcast func(VideoControl) error
	logger    zerolog.Logger
}

func NewPlaybackSync(logger zerolog.Logger) *PlaybackSync {
	return &PlaybackSync{logger: logger.With().Str("component", "playback").Logger()}
}

// Bind points local actions at the session's video destination. A nil
// broadcast leaves actions local-only (commands are dropped while
// disconnected anyway).
func (p *PlaybackSync) Bind(broadcast func(VideoControl) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcast = broadcast
}

// Apply folds one control event into the state. Unknown tags are logged
// and ignored; the fold never fails.
func (p *PlaybackSync) Apply(ctrl VideoControl) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fold(ctrl)
}

func (p *PlaybackSync) fold(ctrl VideoControl) {
	switch ctrl.Type {
	case ControlUpdateURL:
		// a url change always lands paused at zero and clears any
		// in-flight seek
		p.mode = ModePaused
		p.url = ctrl.VideoURL
		p.position = 0
	case ControlPlay:
		if p.mode == ModePaused {
			p.mode = ModePlaying
		}
	case ControlPause:
		if p.mode == ModePlaying {
			p.mode = ModePaused
		}
	case ControlSeek:
		if p.mode != ModeNoVideo {
			p.position = ctrl.Timestamp
		}
	default:
		p.logger.Warn().Str("type", string(ctrl.Type)).Msg("unknown control event, ignoring")
	}
}

// ApplySnapshot installs the authoritative REST state as the new base,
// overriding anything restored from the local cache.
func (p *PlaybackSync) ApplySnapshot(state VideoState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if state.URL == "" {
		p.mode = ModeNoVideo
		p.url = ""
		p.position = 0
		return
	}
	p.url = state.URL
	p.position = state.Position
	if state.Playing {
		p.mode = ModePlaying
	} else {
		p.mode = ModePaused
	}
}

// RestoreURL primes the state from the local cache before the network
// snapshot arrives. Restored video starts paused.
func (p *PlaybackSync) RestoreURL(url string) {
	if url == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode == ModeNoVideo {
		p.mode = ModePaused
		p.url = url
		p.position = 0
	}
}

// SetURL changes the shared video, Play/Pause/Seek drive playback. Each
// applies locally first and broadcasts the same control event.
func (p *PlaybackSync) SetURL(roomID, url string) error {
	return p.localAction(VideoControl{Type: ControlUpdateURL, RoomID: roomID, VideoURL: url})
}

func (p *PlaybackSync) Play(roomID string) error {
	return p.localAction(VideoControl{Type: ControlPlay, RoomID: roomID})
}

func (p *PlaybackSync) Pause(roomID string) error {
	return p.localAction(VideoControl{Type: ControlPause, RoomID: roomID})
}

func (p *PlaybackSync) Seek(roomID string, seconds float64) error {
	return p.localAction(VideoControl{Type: ControlSeek, RoomID: roomID, Timestamp: seconds})
}

func (p *PlaybackSync) localAction(ctrl VideoControl) error {
	p.mu.Lock()
	if ctrl.Type != ControlUpdateURL && p.mode == ModeNoVideo {
		p.mu.Unlock()
		return errNoVideo
	}
	p.fold(ctrl)
	broadcast := p.broadcast
	p.mu.Unlock()
	if broadcast == nil {
		return ErrNotConnected
	}
	return broadcast(ctrl)
}

// View returns the current state snapshot.
func (p *PlaybackSync) View() PlaybackView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PlaybackView{Mode: p.mode, URL: p.url, Position: p.position}
}
