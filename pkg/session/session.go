// Package session is the client-side coordinator of one live class. It
// owns the room state, drives peer links through the signaling channel,
// and applies the bandwidth policy to the local media. All mutations of
// the shared state funnel through one mutex, so handlers never race the
// UI-facing control calls.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/vineetpathak08/remote-classroom/pkg/api"
	"github.com/vineetpathak08/remote-classroom/pkg/bandwidth"
	"github.com/vineetpathak08/remote-classroom/pkg/classapi"
	"github.com/vineetpathak08/remote-classroom/pkg/config"
	"github.com/vineetpathak08/remote-classroom/pkg/logger"
	"github.com/vineetpathak08/remote-classroom/pkg/media"
	"github.com/vineetpathak08/remote-classroom/pkg/recorder"
	"github.com/vineetpathak08/remote-classroom/pkg/signaling"
	"github.com/vineetpathak08/remote-classroom/pkg/state"
)

type Status uint8

const (
	Connecting Status = iota
	Joined
	Active
	Leaving
	Closed
)

func (s Status) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Joined:
		return "joined"
	case Active:
		return "active"
	case Leaving:
		return "leaving"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Link is one peer media connection as the session sees it.
type Link interface {
	Offer(iceCB func(candidate string)) (string, error)
	Answer(remoteOffer string, iceCB func(candidate string)) (string, error)
	SetRemoteSDP(sdp string) error
	AddCandidate(candidate string) error
	OnMediaLoss(fn func())
	Destroy()
}

// LinkFactory builds a fresh link per remote peer.
type LinkFactory interface {
	NewLink() (Link, error)
}

type Session struct {
	conf      config.Session
	transport signaling.Transport
	links     LinkFactory
	backend   *classapi.Client
	rec       *recorder.Recording
	monitor   *bandwidth.Monitor
	tracks    *media.TrackSet
	log       *logger.Logger

	mu        sync.Mutex
	status    Status
	room      string
	me        api.Participant
	roster    state.Roster
	chat      state.ChatLog
	poll      state.PollState
	slide     *api.Slide
	recording bool
	audioOnly bool
	peers     map[string]Link // keyed by remote socketId

	onChange func()
	onClosed func(reason string)

	done chan struct{}
	once sync.Once
}

const defaultDedupInterval = 5 * time.Second

func New(transport signaling.Transport, links LinkFactory, conf config.Session,
	backend *classapi.Client, rec *recorder.Recording, monitor *bandwidth.Monitor,
	log *logger.Logger) *Session {
	s := &Session{
		conf:      conf,
		transport: transport,
		links:     links,
		backend:   backend,
		rec:       rec,
		monitor:   monitor,
		log:       log,
		status:    Connecting,
		chat:      state.NewChatLog(),
		poll:      state.NewPollState(),
		peers:     make(map[string]Link, 8),
		done:      make(chan struct{}),
	}
	transport.OnPacket(s.handle)
	if monitor != nil {
		monitor.OnChange(s.handleBandwidth)
	}
	return s
}

// BindTracks attaches the local capture so that media toggles gate the
// actual sample writers. A session without tracks still works, just
// degraded (no outbound media), matching the low-bandwidth-first rule
// that a denied capture device never aborts a join.
func (s *Session) BindTracks(tracks *media.TrackSet) {
	s.mu.Lock()
	s.tracks = tracks
	s.mu.Unlock()
}

// OnChange registers the callback fired after every state mutation.
func (s *Session) OnChange(fn func()) { s.mu.Lock(); s.onChange = fn; s.mu.Unlock() }

// OnClosed registers the callback fired when the session ends from the
// remote side (class ended, removed by the instructor).
func (s *Session) OnClosed(fn func(reason string)) { s.mu.Lock(); s.onClosed = fn; s.mu.Unlock() }

// Join enters the room and adopts the authoritative state snapshot.
func (s *Session) Join(room, userId, userName string, role api.Role) error {
	s.mu.Lock()
	if s.status != Connecting {
		s.mu.Unlock()
		return ErrJoined
	}
	s.room = room
	s.me = api.Participant{
		UserId:       userId,
		UserName:     userName,
		UserRole:     role,
		AudioEnabled: true,
		VideoEnabled: true,
	}
	s.mu.Unlock()

	raw, err := s.transport.Call(api.JoinClass, api.JoinClassRequest{
		Room:     api.Room{Rid: room},
		UserId:   userId,
		UserName: userName,
		UserRole: role,
	})
	if err != nil {
		return err
	}
	snapshot, err := api.UnwrapChecked[api.RoomStateEvent](raw)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.adoptSnapshot(*snapshot)
	s.status = Joined
	// own socketId is assigned by the relay and learned from the snapshot
	if self, ok := s.roster.FindByUser(userId); ok {
		s.me.SocketId = self.SocketId
	}
	peers := s.missingPeersLocked()
	s.status = Active
	s.mu.Unlock()

	s.log.Info().Str("room", room).Msgf("joined as %v", role)

	// the instructor initiates a link towards every student already in
	if role == api.RoleInstructor {
		for _, socketId := range peers {
			s.dial(socketId)
		}
	}
	if s.monitor != nil {
		s.monitor.Start()
	}
	go s.dedupLoop()
	s.notify()
	return nil
}

func (s *Session) adoptSnapshot(ev api.RoomStateEvent) {
	s.roster = state.NewRoster(ev.Participants...)
	s.slide = ev.CurrentSlide
	s.recording = ev.IsRecording
	if ev.ActivePoll != nil {
		s.poll = state.NewPollState().Start(*ev.ActivePoll, time.Now())
	} else {
		s.poll = state.NewPollState()
	}
}

// missingPeersLocked lists remote sockets with no link yet.
func (s *Session) missingPeersLocked() []string {
	var out []string
	for _, p := range s.roster.List() {
		if p.UserId == s.me.UserId {
			continue
		}
		if _, ok := s.peers[p.SocketId]; !ok {
			out = append(out, p.SocketId)
		}
	}
	return out
}

// dial creates an outbound link and pushes the offer to the peer.
func (s *Session) dial(socketId string) {
	link, err := s.links.NewLink()
	if err != nil {
		s.log.Error().Err(err).Msg("link create fail")
		return
	}
	s.mu.Lock()
	if old := s.peers[socketId]; old != nil {
		old.Destroy()
	}
	s.peers[socketId] = link
	s.mu.Unlock()

	link.OnMediaLoss(func() { s.handleMediaLoss(socketId) })
	offer, err := link.Offer(func(candidate string) {
		if candidate == "" {
			return
		}
		s.transport.Notify(api.WebrtcIce, api.WebrtcIceEvent{
			Room:           api.Room{Rid: s.room},
			TargetSocketId: socketId,
			Candidate:      candidate,
		})
	})
	if err != nil {
		s.log.Error().Err(err).Msg("offer fail")
		s.dropPeer(socketId)
		return
	}
	s.transport.Notify(api.WebrtcOffer, api.WebrtcOfferEvent{
		Room:           api.Room{Rid: s.room},
		TargetSocketId: socketId,
		Offer:          offer,
	})
}

func (s *Session) dropPeer(socketId string) {
	s.mu.Lock()
	link := s.peers[socketId]
	delete(s.peers, socketId)
	s.mu.Unlock()
	if link != nil {
		link.Destroy()
	}
}

// handleMediaLoss marks the peer's quality, it never drops the roster
// record: membership is the relay's call, not the transport's.
func (s *Session) handleMediaLoss(socketId string) {
	s.mu.Lock()
	for _, p := range s.roster.List() {
		if p.SocketId == socketId {
			s.roster = s.roster.SetQuality(p.UserId, string(bandwidth.QualityPoor))
			break
		}
	}
	s.mu.Unlock()
	s.log.Warn().Msgf("media loss on %v", socketId)
	s.notify()
}

// dedupLoop periodically re-collapses the roster to self-heal from the
// join races the relay cannot prevent.
func (s *Session) dedupLoop() {
	interval := s.conf.DedupInterval
	if interval <= 0 {
		interval = defaultDedupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			before := s.roster.Len()
			s.roster = s.roster.Dedup()
			changed := s.roster.Len() != before
			s.mu.Unlock()
			if changed {
				s.log.Debug().Msg("roster dedup removed stale records")
				s.notify()
			}
		}
	}
}

// Resync pulls a fresh authoritative snapshot from the relay.
func (s *Session) Resync() error {
	raw, err := s.transport.Call(api.RoomState, api.Room{Rid: s.room})
	if err != nil {
		return err
	}
	snapshot, err := api.UnwrapChecked[api.RoomStateEvent](raw)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.adoptSnapshot(*snapshot)
	s.mu.Unlock()
	s.notify()
	return nil
}

// Leave exits the room and releases every resource. Safe to call twice.
func (s *Session) Leave() {
	s.once.Do(func() {
		s.mu.Lock()
		s.status = Leaving
		s.mu.Unlock()

		s.transport.Notify(api.LeaveClass, api.LeaveClassRequest{
			Room:   api.Room{Rid: s.room},
			UserId: s.me.UserId,
		})
		s.teardown()
		s.log.Info().Msg("left the class")
	})
}

// teardown releases links, recording, and probes without the leave
// notification; used both by Leave and the remote close paths.
func (s *Session) teardown() {
	close(s.done)
	if s.monitor != nil {
		s.monitor.Stop()
	}
	if s.rec != nil {
		if err := s.rec.Stop(); err != nil {
			s.log.Error().Err(err).Msg("recording stop fail")
		}
	}
	s.mu.Lock()
	links := make([]Link, 0, len(s.peers))
	for _, l := range s.peers {
		links = append(links, l)
	}
	s.peers = map[string]Link{}
	s.status = Closed
	s.mu.Unlock()
	for _, l := range links {
		l.Destroy()
	}
	s.transport.Close()
}

func (s *Session) remoteClose(reason string) {
	var fired func(string)
	s.once.Do(func() {
		s.mu.Lock()
		s.status = Leaving
		fired = s.onClosed
		s.mu.Unlock()
		s.teardown()
	})
	if fired != nil {
		fired(reason)
	}
}

func (s *Session) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *Session) Status() Status { s.mu.Lock(); defer s.mu.Unlock(); return s.status }

func (s *Session) Me() api.Participant { s.mu.Lock(); defer s.mu.Unlock(); return s.me }

func (s *Session) Roster() []api.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.List()
}

func (s *Session) Chat() []state.Message { s.mu.Lock(); defer s.mu.Unlock(); return s.chat.Messages() }

func (s *Session) Unread() int { s.mu.Lock(); defer s.mu.Unlock(); return s.chat.Unread() }

func (s *Session) Poll() state.PollState { s.mu.Lock(); defer s.mu.Unlock(); return s.poll }

func (s *Session) Slide() *api.Slide { s.mu.Lock(); defer s.mu.Unlock(); return s.slide }

func (s *Session) Recording() bool { s.mu.Lock(); defer s.mu.Unlock(); return s.recording }

func (s *Session) AudioOnly() bool { s.mu.Lock(); defer s.mu.Unlock(); return s.audioOnly }

func (s *Session) Peers() int { s.mu.Lock(); defer s.mu.Unlock(); return len(s.peers) }

// SubmitPollArchive forwards the local poll answer to the backend,
// best-effort and off the hot path.
func (s *Session) submitPollArchive(pollId, answer string) {
	if s.backend == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.backend.SubmitPollResponse(ctx, s.room, pollId, s.me.UserId, answer); err != nil {
			s.log.Warn().Err(err).Msg("poll archive fail")
		}
	}()
}
