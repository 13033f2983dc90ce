// Package media owns the local outbound tracks of a class participant.
// Tracks are created once and shared by every peer link; muting gates the
// sample writers instead of renegotiating.
package media

import (
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/vineetpathak08/remote-classroom/pkg/logger"
)

// Mode names the active video source.
type Mode string

const (
	ModeOff    Mode = "off"
	ModeCamera Mode = "camera"
	ModeScreen Mode = "screen"
)

var ErrBadTransition = errors.New("bad media transition")

type TrackSet struct {
	Audio *webrtc.TrackLocalStaticSample
	Video *webrtc.TrackLocalStaticSample

	mode         Mode
	audioEnabled bool
	videoEnabled bool
	log          *logger.Logger
	mu           sync.Mutex
}

func NewTrackSet(log *logger.Logger) (*TrackSet, error) {
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "class-audio")
	if err != nil {
		return nil, err
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "class-video")
	if err != nil {
		return nil, err
	}
	return &TrackSet{Audio: audio, Video: video, mode: ModeOff, log: log}, nil
}

func (t *TrackSet) Mode() Mode { t.mu.Lock(); defer t.mu.Unlock(); return t.mode }

// Transition switches the video source. The camera and the screen are
// exclusive: going camera to screen releases the camera first, and the
// previous mode is restored by a later transition, not implicitly.
func (t *TrackSet) Transition(next Mode) (Mode, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.mode
	switch next {
	case ModeOff, ModeCamera, ModeScreen:
	default:
		return prev, ErrBadTransition
	}
	if prev == next {
		return prev, nil
	}
	t.mode = next
	t.log.Debug().Msgf("media source %v -> %v", prev, next)
	return prev, nil
}

func (t *TrackSet) SetAudio(enabled bool) { t.mu.Lock(); t.audioEnabled = enabled; t.mu.Unlock() }
func (t *TrackSet) SetVideo(enabled bool) { t.mu.Lock(); t.videoEnabled = enabled; t.mu.Unlock() }

func (t *TrackSet) AudioEnabled() bool { t.mu.Lock(); defer t.mu.Unlock(); return t.audioEnabled }
func (t *TrackSet) VideoEnabled() bool { t.mu.Lock(); defer t.mu.Unlock(); return t.videoEnabled }

// WriteAudio pushes one opus frame to every subscribed peer.
// Muted audio drops the frame, it doesn't stop the capture.
func (t *TrackSet) WriteAudio(data []byte, duration time.Duration) error {
	if !t.AudioEnabled() {
		return nil
	}
	return t.Audio.WriteSample(media.Sample{Data: data, Duration: duration})
}

// WriteVideo pushes one encoded frame; dropped when the video is off.
func (t *TrackSet) WriteVideo(data []byte, duration time.Duration) error {
	t.mu.Lock()
	ok := t.videoEnabled && t.mode != ModeOff
	t.mu.Unlock()
	if !ok {
		return nil
	}
	return t.Video.WriteSample(media.Sample{Data: data, Duration: duration})
}

// Source produces encoded samples from a capture device.
type Source interface {
	Read() (data []byte, duration time.Duration, err error)
	Close() error
}

// Pump forwards samples from the sources into the tracks until done
// closes or a source runs dry. Nil sources are skipped.
func (t *TrackSet) Pump(done <-chan struct{}, audio, video Source) {
	pump := func(src Source, write func([]byte, time.Duration) error, tag string) {
		defer func() { _ = src.Close() }()
		for {
			select {
			case <-done:
				return
			default:
			}
			data, duration, err := src.Read()
			if err != nil {
				t.log.Debug().Err(err).Msgf("%v source stopped", tag)
				return
			}
			if err = write(data, duration); err != nil {
				t.log.Error().Err(err).Msgf("%v write fail", tag)
				return
			}
		}
	}
	if audio != nil {
		go pump(audio, t.WriteAudio, "audio")
	}
	if video != nil {
		go pump(video, t.WriteVideo, "video")
	}
}
