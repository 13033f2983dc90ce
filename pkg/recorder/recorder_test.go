package recorder

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/vineetpathak08/remote-classroom/pkg/config"
	"github.com/vineetpathak08/remote-classroom/pkg/logger"
)

type captureSink struct {
	mu    sync.Mutex
	saved []string
}

func (s *captureSink) Save(name, localPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, name)
	return nil
}

func (s *captureSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.saved...)
}

func newTestRecording(t *testing.T, segment time.Duration) (*Recording, *captureSink) {
	t.Helper()
	sink := &captureSink{}
	conf := config.Recording{Enabled: true, Folder: t.TempDir(), Name: "test", Segment: segment}
	return New(conf, sink, logger.Default()), sink
}

func TestStartStopIdempotent(t *testing.T) {
	r, _ := newTestRecording(t, time.Hour)
	if err := r.Start("room1"); err != nil {
		t.Fatal(err)
	}
	if err := r.Start("room1"); err != nil {
		t.Errorf("double start should be a no-op: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := r.Stop(); err != nil {
		t.Errorf("double stop should be a no-op: %v", err)
	}
	if r.Active() {
		t.Error("should be inactive after stop")
	}
}

func TestWriteRequiresActive(t *testing.T) {
	r, _ := newTestRecording(t, time.Hour)
	if _, err := r.Write([]byte("x")); err != ErrNotActive {
		t.Errorf("expected ErrNotActive, got %v", err)
	}
}

func TestSegmentHandoff(t *testing.T) {
	r, sink := newTestRecording(t, time.Hour)
	if err := r.Start("room1"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Write([]byte("chunk-data")); err != nil {
		t.Fatal(err)
	}
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}
	names := sink.names()
	if len(names) != 1 {
		t.Fatalf("expected 1 uploaded segment, got %v", names)
	}
	if names[0] != "test_room1_000.webm" {
		t.Errorf("unexpected segment name %v", names[0])
	}
}

func TestSegmentsWrittenToDisk(t *testing.T) {
	sink := &captureSink{}
	dir := t.TempDir()
	conf := config.Recording{Enabled: true, Folder: dir, Segment: time.Hour}
	r := New(conf, sink, logger.Default())
	if err := r.Start("room2"); err != nil {
		t.Fatal(err)
	}
	payload := []byte("media bytes")
	if _, err := r.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 segment on disk, got %v", len(entries))
	}
	data, err := os.ReadFile(dir + string(os.PathSeparator) + entries[0].Name())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(payload) {
		t.Errorf("segment content mismatch: %q", data)
	}
}
