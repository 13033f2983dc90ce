package relay

import (
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/vineetpathak08/remote-classroom/pkg/api"
	"github.com/vineetpathak08/remote-classroom/pkg/logger"
	"github.com/vineetpathak08/remote-classroom/pkg/state"
)

// conn is the writable side of a member's socket.
type conn interface {
	Write(data []byte)
	Close()
}

type member struct {
	conn     conn
	socketId string
	userId   string
	userName string
	role     api.Role
	room     *Room
	log      *logger.Logger
}

func (m *member) instructor() bool { return m.role == api.RoleInstructor }

func (m *member) send(t api.PT, payload any) { m.reply("", t, payload) }

func (m *member) reply(id string, t api.PT, payload any) {
	r, err := json.Marshal(api.Out{Id: id, T: t, Payload: payload})
	if err != nil {
		m.log.Error().Err(err).Msgf("packet encode fail %v", t)
		return
	}
	m.conn.Write(r)
}

// Room tracks the live state of one class: who is in, where the deck
// is, whether a recording or a poll runs. The state exists so that late
// joiners can be brought up to speed with a single snapshot.
type Room struct {
	id  string
	log *logger.Logger

	mu        sync.Mutex
	members   map[string]*member // keyed by socketId
	roster    state.Roster
	slide     *api.Slide
	recording bool
	poll      *api.Poll
}

func newRoom(id string, log *logger.Logger) *Room {
	return &Room{
		id:      id,
		log:     log.Wrap(log.With().Str("room", id)),
		members: make(map[string]*member, 8),
	}
}

func (r *Room) empty() bool { r.mu.Lock(); defer r.mu.Unlock(); return len(r.members) == 0 }

func (r *Room) join(m *member, rq api.JoinClassRequest) {
	p := api.Participant{
		UserId:       rq.UserId,
		SocketId:     m.socketId,
		UserName:     rq.UserName,
		UserRole:     rq.UserRole,
		AudioEnabled: true,
		VideoEnabled: true,
	}
	r.mu.Lock()
	m.userId, m.userName, m.role, m.room = rq.UserId, rq.UserName, rq.UserRole, r
	r.members[m.socketId] = m
	r.roster = r.roster.Join(p)
	r.mu.Unlock()

	r.log.Info().Str("uid", rq.UserId).Msgf("%v joined as %v", rq.UserName, rq.UserRole)
	r.broadcast(api.UserJoined, api.UserJoinedEvent{Participant: p}, m.socketId)
}

func (r *Room) leave(m *member) {
	r.mu.Lock()
	delete(r.members, m.socketId)
	r.roster = r.roster.Leave(m.userId, m.socketId)
	r.mu.Unlock()

	r.log.Info().Str("uid", m.userId).Msg("left")
	r.broadcast(api.UserLeft, api.UserLeftEvent{
		UserId:   m.userId,
		SocketId: m.socketId,
		UserName: m.userName,
	}, "")
}

func (r *Room) close() {
	r.mu.Lock()
	members := make([]*member, 0, len(r.members))
	for _, m := range r.members {
		m.room = nil
		members = append(members, m)
	}
	r.members = map[string]*member{}
	r.roster = state.Roster{}
	r.mu.Unlock()
	for _, m := range members {
		m.conn.Close()
	}
}

func (r *Room) snapshot() api.RoomStateEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return api.RoomStateEvent{
		Participants: r.roster.Dedup().List(),
		CurrentSlide: r.slide,
		IsRecording:  r.recording,
		ActivePoll:   r.poll,
	}
}

// broadcast sends an event to every room member except the one with the
// skip socket id. Collaboration events pass an empty skip so the sender
// hears its own echo and can reconcile optimistic state.
func (r *Room) broadcast(t api.PT, payload any, skip string) {
	body, err := json.Marshal(api.Out{T: t, Payload: payload})
	if err != nil {
		r.log.Error().Err(err).Msgf("packet encode fail %v", t)
		return
	}
	r.mu.Lock()
	targets := make([]*member, 0, len(r.members))
	for _, m := range r.members {
		if m.socketId != skip {
			targets = append(targets, m)
		}
	}
	r.mu.Unlock()
	for _, m := range targets {
		m.conn.Write(body)
	}
}

func (r *Room) sendTo(socketId string, t api.PT, payload any) {
	r.mu.Lock()
	m := r.members[socketId]
	r.mu.Unlock()
	if m == nil {
		r.log.Debug().Msgf("%v to a gone socket %v", t, socketId)
		return
	}
	m.send(t, payload)
}

// routeSignal forwards a negotiation packet to its target socket with
// the sender's socket id stamped in.
func (r *Room) routeSignal(m *member, t api.PT, payload []byte) {
	var ev struct {
		api.WebrtcOfferEvent
		Answer    api.SignalData `json:"answer,omitempty"`
		Candidate api.SignalData `json:"candidate,omitempty"`
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		m.log.Error().Err(err).Msgf("malformed %v", t)
		return
	}
	ev.FromSocketId = m.socketId
	r.sendTo(ev.TargetSocketId, t, ev)
}

func (r *Room) chat(m *member, payload []byte) {
	ev := api.Unwrap[api.ChatMessageEvent](payload)
	if ev == nil {
		return
	}
	ev.SocketId = m.socketId
	if ev.SentAt.IsZero() {
		ev.SentAt = time.Now()
	}
	r.broadcast(api.ChatMessage, ev, "")
}

func (r *Room) slideChange(m *member, payload []byte) {
	if !m.instructor() {
		return
	}
	ev := api.Unwrap[api.SlideChangedEvent](payload)
	if ev == nil {
		return
	}
	r.mu.Lock()
	r.slide = &api.Slide{Url: ev.Url, Index: ev.Index}
	r.mu.Unlock()
	r.broadcast(api.SlideChanged, ev, "")
}

func (r *Room) raiseHand(m *member, payload []byte) {
	ev := api.Unwrap[api.RaiseHandEvent](payload)
	if ev == nil {
		return
	}
	ev.SocketId = m.socketId
	r.mu.Lock()
	r.roster = r.roster.SetHand(ev.UserId, ev.Raised)
	r.mu.Unlock()
	r.broadcast(api.HandRaised, ev, "")
}

func (r *Room) toggleMedia(m *member, payload []byte) {
	ev := api.Unwrap[api.ToggleMediaEvent](payload)
	if ev == nil {
		return
	}
	r.mu.Lock()
	r.roster = r.roster.SetMedia(m.userId, ev.MediaType, ev.Enabled)
	r.mu.Unlock()
	r.broadcast(api.MediaChanged, api.MediaChangedEvent{
		UserId:    m.userId,
		SocketId:  m.socketId,
		MediaType: ev.MediaType,
		Enabled:   ev.Enabled,
	}, "")
}

func (r *Room) newPoll(m *member, payload []byte) {
	if !m.instructor() {
		return
	}
	ev := api.Unwrap[api.NewPollEvent](payload)
	if ev == nil {
		return
	}
	r.mu.Lock()
	r.poll = &ev.Poll
	r.mu.Unlock()
	r.broadcast(api.NewPoll, ev, "")
}

// pollResponse goes to the instructor(s) only; students never see each
// other's answers.
func (r *Room) pollResponse(m *member, payload []byte) {
	ev := api.Unwrap[api.PollResponseEvent](payload)
	if ev == nil {
		return
	}
	r.mu.Lock()
	targets := make([]*member, 0, 1)
	for _, w := range r.members {
		if w.instructor() {
			targets = append(targets, w)
		}
	}
	r.mu.Unlock()
	for _, w := range targets {
		w.send(api.PollResponse, ev)
	}
}

func (r *Room) pollEnded(m *member, payload []byte) {
	if !m.instructor() {
		return
	}
	ev := api.Unwrap[api.PollEndedEvent](payload)
	if ev == nil {
		return
	}
	r.mu.Lock()
	r.poll = nil
	r.mu.Unlock()
	r.broadcast(api.PollEnded, ev, "")
}

func (r *Room) recording(m *member, t api.PT) {
	if !m.instructor() {
		return
	}
	started := t == api.StartRecording
	r.mu.Lock()
	r.recording = started
	r.mu.Unlock()
	out := api.RecordingStarted
	if !started {
		out = api.RecordingStopped
	}
	r.broadcast(out, api.RecordingEvent{Room: api.Room{Rid: r.id}, InitiatedBy: m.userId}, "")
}

func (r *Room) bandwidth(m *member, payload []byte) {
	ev := api.Unwrap[api.BandwidthUpdateEvent](payload)
	if ev == nil {
		return
	}
	r.mu.Lock()
	r.roster = r.roster.SetQuality(m.userId, ev.ConnectionQuality)
	r.mu.Unlock()
	r.broadcast(api.ParticipantBandwidth, api.ParticipantBandwidthEvent{
		UserId:            m.userId,
		SocketId:          m.socketId,
		Bandwidth:         ev.Bandwidth,
		ConnectionQuality: ev.ConnectionQuality,
	}, "")
}

func (r *Room) muteStudent(m *member, payload []byte) {
	if !m.instructor() {
		return
	}
	ev := api.Unwrap[api.MuteStudentRequest](payload)
	if ev == nil {
		return
	}
	r.sendTo(ev.TargetSocketId, api.ForceMute, ev)
}

func (r *Room) muteAll(m *member) {
	if !m.instructor() {
		return
	}
	// the instructor keeps their own microphone
	r.broadcast(api.MuteAllCommand, api.Room{Rid: r.id}, m.socketId)
}

func (r *Room) removeStudent(m *member, payload []byte) {
	if !m.instructor() {
		return
	}
	ev := api.Unwrap[api.RemoveStudentRequest](payload)
	if ev == nil {
		return
	}
	r.mu.Lock()
	target := r.members[ev.TargetSocketId]
	r.mu.Unlock()
	if target == nil {
		return
	}
	target.send(api.RemovedFromClass, api.RemovedFromClassEvent{Reason: ev.Reason})
	target.conn.Close()
	// the connection teardown triggers the regular leave path
}
