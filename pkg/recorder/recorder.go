// Package recorder persists the class media stream as a sequence of
// timed segments. Chunks are appended to the current segment file and
// each finished segment is handed to a storage sink, so a crash loses at
// most one segment worth of recording.
package recorder

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/vineetpathak08/remote-classroom/pkg/config"
	"github.com/vineetpathak08/remote-classroom/pkg/logger"
	"github.com/vineetpathak08/remote-classroom/pkg/os"
)

var ErrNotActive = errors.New("recording is not active")

type Recording struct {
	conf config.Recording
	sink Sink
	log  *logger.Logger

	mu      sync.Mutex
	active  bool
	session string
	seq     int
	file    *os.File
	done    chan struct{}
	wg      sync.WaitGroup
}

const defaultSegment = 60 * time.Second

func New(conf config.Recording, sink Sink, log *logger.Logger) *Recording {
	if sink == nil {
		sink = NewNoopStorage()
	}
	return &Recording{conf: conf, sink: sink, log: log}
}

func (r *Recording) Active() bool { r.mu.Lock(); defer r.mu.Unlock(); return r.active }

// Start opens the first segment of a new recording.
// Starting an already active recording is a no-op.
func (r *Recording) Start(session string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return nil
	}
	if err := os.CheckCreateDir(r.conf.Folder); err != nil {
		return err
	}
	r.session = session
	r.seq = 0
	if err := r.openSegment(); err != nil {
		return err
	}
	r.active = true
	r.done = make(chan struct{})
	r.wg.Add(1)
	go r.rotateLoop(r.done)
	r.log.Info().Msgf("recording started, %v", r.segmentName())
	return nil
}

// Write appends one media chunk to the current segment.
func (r *Recording) Write(data []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return 0, ErrNotActive
	}
	return r.file.Write(data)
}

// Stop closes the recording and ships the last segment.
// Stopping twice is a no-op.
func (r *Recording) Stop() error {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return nil
	}
	r.active = false
	close(r.done)
	err := r.closeSegment()
	r.mu.Unlock()

	r.wg.Wait()
	r.log.Info().Msgf("recording stopped, %v segments", r.seq+1)
	return err
}

func (r *Recording) rotateLoop(done chan struct{}) {
	defer r.wg.Done()
	segment := r.conf.Segment
	if segment <= 0 {
		segment = defaultSegment
	}
	ticker := time.NewTicker(segment)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.mu.Lock()
			if !r.active {
				r.mu.Unlock()
				return
			}
			err := r.rotate()
			r.mu.Unlock()
			if err != nil {
				r.log.Error().Err(err).Msg("segment rotation fail")
			}
		}
	}
}

// rotate closes the current segment and opens the next one.
// Callers hold the lock.
func (r *Recording) rotate() error {
	var result *multierror.Error
	result = multierror.Append(result, r.closeSegment())
	r.seq++
	result = multierror.Append(result, r.openSegment())
	return result.ErrorOrNil()
}

func (r *Recording) openSegment() error {
	file, err := os.NewFile(filepath.Join(r.conf.Folder, r.segmentName()))
	if err != nil {
		return err
	}
	r.file = file
	return nil
}

// closeSegment flushes the current file and uploads it in the background.
func (r *Recording) closeSegment() error {
	if r.file == nil {
		return nil
	}
	var result *multierror.Error
	name, path := r.segmentName(), r.file.Name()
	result = multierror.Append(result, r.file.Close())
	r.file = nil

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.sink.Save(name, path); err != nil {
			r.log.Error().Err(err).Msgf("segment upload fail, %v", name)
		}
	}()
	return result.ErrorOrNil()
}

func (r *Recording) segmentName() string {
	name := r.conf.Name
	if name == "" {
		name = "class"
	}
	return fmt.Sprintf("%s_%s_%03d.webm", name, r.session, r.seq)
}
