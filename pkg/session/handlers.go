package session

import (
	"time"

	"github.com/vineetpathak08/remote-classroom/pkg/api"
	"github.com/vineetpathak08/remote-classroom/pkg/state"
)

// handle routes one inbound relay packet. Packets arriving while the
// session is leaving or closed are discarded wholesale, so a late event
// can never resurrect released state.
func (s *Session) handle(in api.In) {
	s.mu.Lock()
	gone := s.status == Leaving || s.status == Closed
	s.mu.Unlock()
	if gone {
		return
	}

	switch in.T {
	case api.UserJoined:
		s.handleUserJoined(in.Payload)
	case api.UserLeft:
		s.handleUserLeft(in.Payload)
	case api.WebrtcOffer:
		s.handleOffer(in.Payload)
	case api.WebrtcAnswer:
		s.handleAnswer(in.Payload)
	case api.WebrtcIce:
		s.handleIce(in.Payload)
	case api.ChatMessage:
		s.handleChat(in.Payload)
	case api.SlideChanged:
		s.handleSlide(in.Payload)
	case api.HandRaised:
		s.handleHand(in.Payload)
	case api.MediaChanged:
		s.handleMediaChanged(in.Payload)
	case api.NewPoll:
		s.handleNewPoll(in.Payload)
	case api.PollResponse:
		s.handlePollResponse(in.Payload)
	case api.PollEnded:
		s.handlePollEnded(in.Payload)
	case api.RecordingStarted:
		s.handleRecording(true)
	case api.RecordingStopped:
		s.handleRecording(false)
	case api.ParticipantBandwidth:
		s.handlePeerBandwidth(in.Payload)
	case api.MuteAllCommand:
		s.handleForceMute()
	case api.ForceMute:
		s.handleForceMute()
	case api.RemovedFromClass:
		ev := api.Unwrap[api.RemovedFromClassEvent](in.Payload)
		reason := "removed by the instructor"
		if ev != nil && ev.Reason != "" {
			reason = ev.Reason
		}
		s.remoteClose(reason)
	case api.ClassEnded:
		s.remoteClose("class ended")
	case api.RoomState:
		// unsolicited snapshot, adopt it as-is
		if ev := api.Unwrap[api.RoomStateEvent](in.Payload); ev != nil {
			s.mu.Lock()
			s.adoptSnapshot(*ev)
			s.mu.Unlock()
			s.notify()
		}
	default:
		s.log.Debug().Msgf("unhandled packet %v", in.T)
	}
}

func (s *Session) handleUserJoined(payload []byte) {
	ev := api.Unwrap[api.UserJoinedEvent](payload)
	if ev == nil {
		return
	}
	p := ev.Participant
	if p.UserId == s.Me().UserId {
		// own echo after a reconnect race, the roster already has us
		return
	}
	s.mu.Lock()
	s.roster = s.roster.Join(p).Dedup()
	instructor := s.me.UserRole == api.RoleInstructor
	_, linked := s.peers[p.SocketId]
	s.mu.Unlock()
	s.log.Info().Msgf("%v joined", p.UserName)
	if instructor && !linked {
		s.dial(p.SocketId)
	}
	s.notify()
}

func (s *Session) handleUserLeft(payload []byte) {
	ev := api.Unwrap[api.UserLeftEvent](payload)
	if ev == nil {
		return
	}
	s.mu.Lock()
	// a stale socketId must not evict the user's fresh connection
	s.roster = s.roster.Leave(ev.UserId, ev.SocketId)
	s.mu.Unlock()
	if ev.SocketId != "" {
		s.dropPeer(ev.SocketId)
	}
	s.log.Info().Msgf("%v left", ev.UserName)
	s.notify()
}

// handleOffer is the student side of the negotiation: answer whoever
// initiates, replacing any previous link from the same socket.
func (s *Session) handleOffer(payload []byte) {
	ev := api.Unwrap[api.WebrtcOfferEvent](payload)
	if ev == nil || ev.FromSocketId == "" {
		return
	}
	link, err := s.links.NewLink()
	if err != nil {
		s.log.Error().Err(err).Msg("link create fail")
		return
	}
	from := ev.FromSocketId
	s.mu.Lock()
	if old := s.peers[from]; old != nil {
		old.Destroy()
	}
	s.peers[from] = link
	s.mu.Unlock()

	link.OnMediaLoss(func() { s.handleMediaLoss(from) })
	answer, err := link.Answer(ev.Offer, func(candidate string) {
		if candidate == "" {
			return
		}
		s.transport.Notify(api.WebrtcIce, api.WebrtcIceEvent{
			Room:           api.Room{Rid: s.room},
			TargetSocketId: from,
			Candidate:      candidate,
		})
	})
	if err != nil {
		s.log.Error().Err(err).Msg("answer fail")
		s.dropPeer(from)
		return
	}
	s.transport.Notify(api.WebrtcAnswer, api.WebrtcAnswerEvent{
		Room:           api.Room{Rid: s.room},
		TargetSocketId: from,
		Answer:         answer,
	})
}

func (s *Session) handleAnswer(payload []byte) {
	ev := api.Unwrap[api.WebrtcAnswerEvent](payload)
	if ev == nil {
		return
	}
	s.mu.Lock()
	link := s.peers[ev.FromSocketId]
	s.mu.Unlock()
	if link == nil {
		s.log.Warn().Msgf("answer from an unknown socket %v", ev.FromSocketId)
		return
	}
	if err := link.SetRemoteSDP(ev.Answer); err != nil {
		s.log.Error().Err(err).Msg("remote answer fail")
	}
}

func (s *Session) handleIce(payload []byte) {
	ev := api.Unwrap[api.WebrtcIceEvent](payload)
	if ev == nil || ev.Candidate == "" {
		return
	}
	s.mu.Lock()
	link := s.peers[ev.FromSocketId]
	s.mu.Unlock()
	if link == nil {
		return
	}
	if err := link.AddCandidate(ev.Candidate); err != nil {
		s.log.Error().Err(err).Msg("ice candidate fail")
	}
}

// handleChat appends remote messages; the own echo is dropped because
// the message was already added optimistically on send.
func (s *Session) handleChat(payload []byte) {
	ev := api.Unwrap[api.ChatMessageEvent](payload)
	if ev == nil {
		return
	}
	s.mu.Lock()
	if ev.UserId == s.me.UserId {
		s.mu.Unlock()
		return
	}
	at := ev.SentAt
	if at.IsZero() {
		at = time.Now()
	}
	s.chat = s.chat.Append(ev.UserName, ev.Message, at)
	s.mu.Unlock()
	s.notify()
}

func (s *Session) handleSlide(payload []byte) {
	ev := api.Unwrap[api.SlideChangedEvent](payload)
	if ev == nil {
		return
	}
	s.mu.Lock()
	s.slide = &api.Slide{Url: ev.Url, Index: ev.Index}
	s.mu.Unlock()
	s.notify()
}

func (s *Session) handleHand(payload []byte) {
	ev := api.Unwrap[api.RaiseHandEvent](payload)
	if ev == nil {
		return
	}
	s.mu.Lock()
	self := ev.UserId == s.me.UserId
	s.roster = s.roster.SetHand(ev.UserId, ev.Raised)
	if self {
		s.me.HandRaised = ev.Raised
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Session) handleMediaChanged(payload []byte) {
	ev := api.Unwrap[api.MediaChangedEvent](payload)
	if ev == nil {
		return
	}
	s.mu.Lock()
	if ev.UserId == s.me.UserId {
		// already applied locally before the notify went out
		s.mu.Unlock()
		return
	}
	s.roster = s.roster.SetMedia(ev.UserId, ev.MediaType, ev.Enabled)
	s.mu.Unlock()
	s.notify()
}

func (s *Session) handleNewPoll(payload []byte) {
	ev := api.Unwrap[api.NewPollEvent](payload)
	if ev == nil {
		return
	}
	s.mu.Lock()
	s.poll = state.NewPollState().Start(ev.Poll, time.Now())
	s.mu.Unlock()
	s.notify()
}

func (s *Session) handlePollResponse(payload []byte) {
	ev := api.Unwrap[api.PollResponseEvent](payload)
	if ev == nil {
		return
	}
	s.mu.Lock()
	if s.me.UserRole != api.RoleInstructor {
		s.mu.Unlock()
		return
	}
	s.poll = s.poll.AddResponse(*ev)
	s.mu.Unlock()
	s.notify()
}

func (s *Session) handlePollEnded(payload []byte) {
	ev := api.Unwrap[api.PollEndedEvent](payload)
	if ev == nil {
		return
	}
	s.mu.Lock()
	s.poll = s.poll.End(ev.PollId)
	s.mu.Unlock()
	s.notify()
}

func (s *Session) handleRecording(started bool) {
	s.mu.Lock()
	s.recording = started
	s.mu.Unlock()
	s.notify()
}

func (s *Session) handlePeerBandwidth(payload []byte) {
	ev := api.Unwrap[api.ParticipantBandwidthEvent](payload)
	if ev == nil {
		return
	}
	s.mu.Lock()
	s.roster = s.roster.SetQuality(ev.UserId, ev.ConnectionQuality)
	s.mu.Unlock()
	s.notify()
}

// handleForceMute applies an instructor mute: the microphone goes off
// locally and the change is announced back, video stays as it was.
func (s *Session) handleForceMute() {
	s.mu.Lock()
	if s.me.UserRole == api.RoleInstructor {
		// mute-all never silences the speaker
		s.mu.Unlock()
		return
	}
	already := !s.me.AudioEnabled
	s.me.AudioEnabled = false
	if s.tracks != nil {
		s.tracks.SetAudio(false)
	}
	s.roster = s.roster.SetMedia(s.me.UserId, api.MediaAudio, false)
	s.mu.Unlock()
	if already {
		return
	}
	s.transport.Notify(api.ToggleMedia, api.ToggleMediaEvent{
		Room:      api.Room{Rid: s.room},
		MediaType: api.MediaAudio,
		Enabled:   false,
	})
	s.log.Info().Msg("muted by the instructor")
	s.notify()
}
