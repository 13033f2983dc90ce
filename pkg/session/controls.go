package session

import (
	"time"

	"github.com/vineetpathak08/remote-classroom/pkg/api"
	"github.com/vineetpathak08/remote-classroom/pkg/bandwidth"
	"github.com/vineetpathak08/remote-classroom/pkg/com"
	"github.com/vineetpathak08/remote-classroom/pkg/media"
	"github.com/vineetpathak08/remote-classroom/pkg/state"
)

// Control calls are the UI surface of the session. Every one of them
// validates the session status and the caller's authority first and
// fails with a sentinel error instead of emitting anything.

func (s *Session) active() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != Active {
		return ErrNotActive
	}
	return nil
}

func (s *Session) instructor() error {
	if err := s.active(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.me.UserRole != api.RoleInstructor {
		return ErrNotInstructor
	}
	return nil
}

// SendChat appends the message locally right away and announces it; the
// relay echo of the own message is dropped on arrival.
func (s *Session) SendChat(message string) error {
	if err := s.active(); err != nil {
		return err
	}
	now := time.Now()
	s.mu.Lock()
	s.chat = s.chat.Append(s.me.UserName, message, now)
	ev := api.ChatMessageEvent{
		Room:     api.Room{Rid: s.room},
		UserId:   s.me.UserId,
		UserName: s.me.UserName,
		Message:  message,
		SentAt:   now,
	}
	s.mu.Unlock()
	s.transport.Notify(api.ChatMessage, ev)
	s.notify()
	return nil
}

// SetChatOpen tracks the chat pane visibility for the unread counter.
func (s *Session) SetChatOpen(open bool) {
	s.mu.Lock()
	s.chat = s.chat.SetOpen(open)
	s.mu.Unlock()
	s.notify()
}

func (s *Session) ChangeSlide(url string, index int) error {
	if err := s.instructor(); err != nil {
		return err
	}
	s.mu.Lock()
	s.slide = &api.Slide{Url: url, Index: index}
	ev := api.SlideChangedEvent{Room: api.Room{Rid: s.room}, Slide: *s.slide}
	s.mu.Unlock()
	s.transport.Notify(api.SlideChanged, ev)
	s.notify()
	return nil
}

func (s *Session) RaiseHand(raised bool) error {
	if err := s.active(); err != nil {
		return err
	}
	s.mu.Lock()
	s.me.HandRaised = raised
	s.roster = s.roster.SetHand(s.me.UserId, raised)
	ev := api.RaiseHandEvent{
		Room:     api.Room{Rid: s.room},
		UserId:   s.me.UserId,
		UserName: s.me.UserName,
		Raised:   raised,
	}
	s.mu.Unlock()
	s.transport.Notify(api.RaiseHand, ev)
	s.notify()
	return nil
}

func (s *Session) ToggleAudio(enabled bool) error {
	if err := s.active(); err != nil {
		return err
	}
	return s.setMedia(api.MediaAudio, enabled)
}

// ToggleVideo flips the camera. Turning it on is refused while the
// bandwidth policy pins the session to audio-only, and no event leaves
// the client in that case.
func (s *Session) ToggleVideo(enabled bool) error {
	if err := s.active(); err != nil {
		return err
	}
	s.mu.Lock()
	blocked := enabled && s.audioOnly
	s.mu.Unlock()
	if blocked {
		return ErrPolicyAudioOnly
	}
	return s.setMedia(api.MediaVideo, enabled)
}

func (s *Session) setMedia(kind api.MediaType, enabled bool) error {
	s.mu.Lock()
	switch kind {
	case api.MediaAudio:
		s.me.AudioEnabled = enabled
		if s.tracks != nil {
			s.tracks.SetAudio(enabled)
		}
	case api.MediaVideo:
		s.me.VideoEnabled = enabled
		if s.tracks != nil {
			s.tracks.SetVideo(enabled)
		}
	}
	s.roster = s.roster.SetMedia(s.me.UserId, kind, enabled)
	ev := api.ToggleMediaEvent{
		Room:      api.Room{Rid: s.room},
		MediaType: kind,
		Enabled:   enabled,
	}
	s.mu.Unlock()
	s.transport.Notify(api.ToggleMedia, ev)
	s.notify()
	return nil
}

func (s *Session) StartScreenShare() error {
	if err := s.instructor(); err != nil {
		return err
	}
	s.mu.Lock()
	tracks := s.tracks
	s.mu.Unlock()
	if tracks != nil {
		if _, err := tracks.Transition(media.ModeScreen); err != nil {
			return err
		}
	}
	s.transport.Notify(api.StartScreenShare, api.ScreenShareEvent{Room: api.Room{Rid: s.room}})
	return nil
}

func (s *Session) StopScreenShare() error {
	if err := s.instructor(); err != nil {
		return err
	}
	s.mu.Lock()
	tracks := s.tracks
	s.mu.Unlock()
	if tracks != nil {
		if _, err := tracks.Transition(media.ModeCamera); err != nil {
			return err
		}
	}
	s.transport.Notify(api.StopScreenShare, api.ScreenShareEvent{Room: api.Room{Rid: s.room}})
	return nil
}

// StartPoll opens a poll with a hard deadline after duration seconds.
func (s *Session) StartPoll(question string, kind api.PollType, options []string, duration int) (api.Poll, error) {
	if err := s.instructor(); err != nil {
		return api.Poll{}, err
	}
	poll := api.Poll{
		Id:       com.NewUid().String(),
		Question: question,
		Type:     kind,
		Options:  options,
		Duration: duration,
	}
	s.mu.Lock()
	s.poll = state.NewPollState().Start(poll, time.Now())
	s.mu.Unlock()
	s.transport.Notify(api.NewPoll, api.NewPollEvent{Room: api.Room{Rid: s.room}, Poll: poll})
	s.notify()
	return poll, nil
}

func (s *Session) EndPoll() error {
	if err := s.instructor(); err != nil {
		return err
	}
	s.mu.Lock()
	id := s.poll.Poll.Id
	s.poll = s.poll.End(id)
	s.mu.Unlock()
	s.transport.Notify(api.PollEnded, api.PollEndedEvent{Room: api.Room{Rid: s.room}, PollId: id})
	s.notify()
	return nil
}

// RespondPoll submits the local answer once; late or repeated answers
// fail without emitting anything.
func (s *Session) RespondPoll(answer string) error {
	if err := s.active(); err != nil {
		return err
	}
	now := time.Now()
	s.mu.Lock()
	next, err := s.poll.Respond(now)
	s.poll = next
	pollId := s.poll.Poll.Id
	ev := api.PollResponseEvent{
		Room:     api.Room{Rid: s.room},
		PollId:   pollId,
		UserId:   s.me.UserId,
		UserName: s.me.UserName,
		Answer:   answer,
		SentAt:   now,
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.transport.Notify(api.PollResponse, ev)
	s.submitPollArchive(pollId, answer)
	s.notify()
	return nil
}

// StartRecording begins the local capture and announces it to the room.
func (s *Session) StartRecording() error {
	if err := s.instructor(); err != nil {
		return err
	}
	if s.rec != nil {
		if err := s.rec.Start(s.room); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.recording = true
	s.mu.Unlock()
	s.transport.Notify(api.StartRecording, api.RecordingEvent{Room: api.Room{Rid: s.room}, InitiatedBy: s.me.UserId})
	s.notify()
	return nil
}

func (s *Session) StopRecording() error {
	if err := s.instructor(); err != nil {
		return err
	}
	if s.rec != nil {
		if err := s.rec.Stop(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.recording = false
	s.mu.Unlock()
	s.transport.Notify(api.StopRecording, api.RecordingEvent{Room: api.Room{Rid: s.room}, InitiatedBy: s.me.UserId})
	s.notify()
	return nil
}

// WriteRecording feeds one captured media chunk into the recorder.
func (s *Session) WriteRecording(chunk []byte) error {
	if s.rec == nil {
		return nil
	}
	_, err := s.rec.Write(chunk)
	return err
}

func (s *Session) MuteAll() error {
	if err := s.instructor(); err != nil {
		return err
	}
	s.transport.Notify(api.MuteAll, api.Room{Rid: s.room})
	return nil
}

func (s *Session) MuteStudent(socketId string) error {
	if err := s.instructor(); err != nil {
		return err
	}
	s.transport.Notify(api.MuteStudent, api.MuteStudentRequest{
		Room:           api.Room{Rid: s.room},
		TargetSocketId: socketId,
	})
	return nil
}

func (s *Session) RemoveStudent(socketId, reason string) error {
	if err := s.instructor(); err != nil {
		return err
	}
	s.transport.Notify(api.RemoveStudent, api.RemoveStudentRequest{
		Room:           api.Room{Rid: s.room},
		TargetSocketId: socketId,
		Reason:         reason,
	})
	return nil
}

func (s *Session) EndClass() error {
	if err := s.instructor(); err != nil {
		return err
	}
	s.transport.Notify(api.EndClass, api.EndClassRequest{Room: api.Room{Rid: s.room}})
	s.remoteClose("class ended")
	return nil
}

// ReportBandwidth feeds a passive connectivity reading into the monitor.
func (s *Session) ReportBandwidth(networkType string, downlinkMbps float64) {
	if s.monitor == nil {
		return
	}
	s.monitor.Report(bandwidth.Reading{NetworkType: networkType, DownlinkMbps: downlinkMbps})
}

// handleBandwidth applies a new estimate: under audio-only the camera
// goes off and stays off until the policy lifts.
func (s *Session) handleBandwidth(est bandwidth.Estimate) {
	s.mu.Lock()
	s.audioOnly = est.AudioOnly
	s.me.ConnectionQuality = string(est.Quality)
	s.roster = s.roster.SetQuality(s.me.UserId, string(est.Quality))
	forceVideoOff := est.AudioOnly && s.me.VideoEnabled
	active := s.status == Active
	s.mu.Unlock()

	if !active {
		return
	}
	if forceVideoOff {
		s.log.Info().Msg("bandwidth policy: video off")
		_ = s.setMedia(api.MediaVideo, false)
	}
	s.transport.Notify(api.BandwidthUpdate, api.BandwidthUpdateEvent{
		Room:              api.Room{Rid: s.room},
		Bandwidth:         string(est.Level),
		ConnectionQuality: string(est.Quality),
	})
	s.notify()
}
