package media

import (
	"testing"

	"github.com/vineetpathak08/remote-classroom/pkg/logger"
)

func TestModeTransitions(t *testing.T) {
	tests := []struct {
		name string
		from Mode
		to   Mode
		ok   bool
	}{
		{"off to camera", ModeOff, ModeCamera, true},
		{"off to screen", ModeOff, ModeScreen, true},
		{"camera to screen", ModeCamera, ModeScreen, true},
		{"screen to camera", ModeScreen, ModeCamera, true},
		{"camera to off", ModeCamera, ModeOff, true},
		{"same mode", ModeCamera, ModeCamera, true},
		{"bogus target", ModeOff, Mode("hologram"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts, err := NewTrackSet(logger.Default())
			if err != nil {
				t.Fatal(err)
			}
			if _, err = ts.Transition(tc.from); err != nil {
				t.Fatalf("setup transition fail: %v", err)
			}
			prev, err := ts.Transition(tc.to)
			if tc.ok && err != nil {
				t.Errorf("expected pass, got %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Error("expected a transition error")
				}
				if ts.Mode() != tc.from {
					t.Errorf("failed transition must not change the mode, got %v", ts.Mode())
				}
			}
			if tc.ok && prev != tc.from {
				t.Errorf("expected prev %v, got %v", tc.from, prev)
			}
		})
	}
}

func TestMutedWritersDropSamples(t *testing.T) {
	ts, err := NewTrackSet(logger.Default())
	if err != nil {
		t.Fatal(err)
	}
	// tracks are unbound, a non-dropped write would fail
	if err = ts.WriteAudio([]byte{1}, 0); err != nil {
		t.Errorf("muted audio write should be dropped: %v", err)
	}
	if err = ts.WriteVideo([]byte{1}, 0); err != nil {
		t.Errorf("video write with the source off should be dropped: %v", err)
	}
}
