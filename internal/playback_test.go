package internal

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestPlaybackFoldSequence(t *testing.T) {
	sync := NewPlaybackSync(zerolog.Nop())

	sync.Apply(VideoControl{Type: ControlUpdateURL, VideoURL: "https://example.com/a.mp4"})
	sync.Apply(VideoControl{Type: ControlPlay})
	sync.Apply(VideoControl{Type: ControlSeek, Timestamp: 42})
	sync.Apply(VideoControl{Type: ControlPause})

	view := sync.View()
	if view.Mode != ModePaused {
		t.Fatalf("expected paused, got %s", view.Mode)
	}
	if view.URL != "https://example.com/a.mp4" {
		t.Fatalf("unexpected url %q", view.URL)
	}
	if view.Position != 42 {
		t.Fatalf("expected position 42, got %v", view.Position)
	}
}

func TestPlaybackIgnoresControlsWithoutVideo(t *testing.T) {
	sync := NewPlaybackSync(zerolog.Nop())

	sync.Apply(VideoControl{Type: ControlPlay})
	sync.Apply(VideoControl{Type: ControlSeek, Timestamp: 10})
	sync.Apply(VideoControl{Type: ControlPause})

	view := sync.View()
	if view.Mode != ModeNoVideo {
		t.Fatalf("expected no video, got %s", view.Mode)
	}
	if view.Position != 0 {
		t.Fatalf("expected position 0, got %v", view.Position)
	}
}

func TestPlaybackLocalControlsRejectedWithoutVideo(t *testing.T) {
	sync := NewPlaybackSync(zerolog.Nop())
	sync.Bind(func(VideoControl) error {
		t.Fatal("nothing may be broadcast without a video")
		return nil
	})

	if err := sync.Play("r1"); err != errNoVideo {
		t.Fatalf("expected errNoVideo, got %v", err)
	}
	if err := sync.Seek("r1", 5); err != errNoVideo {
		t.Fatalf("expected errNoVideo, got %v", err)
	}
}

func TestPlaybackUnknownControlIgnored(t *testing.T) {
	sync := NewPlaybackSync(zerolog.Nop())
	sync.Apply(VideoControl{Type: ControlUpdateURL, VideoURL: "x.mp4"})
	sync.Apply(VideoControl{Type: ControlType("FAST_FORWARD"), Timestamp: 99})

	view := sync.View()
	if view.Mode != ModePaused || view.Position != 0 {
		t.Fatalf("unknown control must not change state, got %+v", view)
	}
}

func TestPlaybackURLChangeResetsPosition(t *testing.T) {
	sync := NewPlaybackSync(zerolog.Nop())
	sync.Apply(VideoControl{Type: ControlUpdateURL, VideoURL: "a.mp4"})
	sync.Apply(VideoControl{Type: ControlPlay})
	sync.Apply(VideoControl{Type: ControlSeek, Timestamp: 120})
	sync.Apply(VideoControl{Type: ControlUpdateURL, VideoURL: "b.mp4"})

	view := sync.View()
	if view.Mode != ModePaused {
		t.Fatalf("new url must land paused, got %s", view.Mode)
	}
	if view.URL != "b.mp4" || view.Position != 0 {
		t.Fatalf("expected b.mp4 at 0, got %+v", view)
	}
}

func TestPlaybackSnapshotOverridesRestoredURL(t *testing.T) {
	sync := NewPlaybackSync(zerolog.Nop())
	sync.RestoreURL("cached.mp4")

	if view := sync.View(); view.Mode != ModePaused || view.URL != "cached.mp4" {
		t.Fatalf("restore should prime paused cached url, got %+v", view)
	}

	sync.ApplySnapshot(VideoState{URL: "live.mp4", Position: 33, Playing: true})
	view := sync.View()
	if view.URL != "live.mp4" || view.Position != 33 || view.Mode != ModePlaying {
		t.Fatalf("snapshot must win over cache, got %+v", view)
	}
}

func TestPlaybackSnapshotWithoutVideoClears(t *testing.T) {
	sync := NewPlaybackSync(zerolog.Nop())
	sync.RestoreURL("cached.mp4")
	sync.ApplySnapshot(VideoState{})

	if view := sync.View(); view.Mode != ModeNoVideo || view.URL != "" {
		t.Fatalf("empty snapshot must clear state, got %+v", view)
	}
}

func TestPlaybackLocalActionAppliesBeforeBroadcastError(t *testing.T) {
	sync := NewPlaybackSync(zerolog.Nop())

	// unbound: state still folds, broadcast reports not connected
	if err := sync.SetURL("r1", "a.mp4"); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if view := sync.View(); view.URL != "a.mp4" || view.Mode != ModePaused {
		t.Fatalf("local fold must apply regardless, got %+v", view)
	}

	var sent []VideoControl
	sync.Bind(func(ctrl VideoControl) error {
		sent = append(sent, ctrl)
		return nil
	})
	if err := sync.Play("r1"); err != nil {
		t.Fatalf("play: %v", err)
	}
	if len(sent) != 1 || sent[0].Type != ControlPlay || sent[0].RoomID != "r1" {
		t.Fatalf("expected one PLAY broadcast, got %+v", sent)
	}
	if view := sync.View(); view.Mode != ModePlaying {
		t.Fatalf("expected playing, got %s", view.Mode)
	}
}
