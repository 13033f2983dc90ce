package session

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/vineetpathak08/remote-classroom/pkg/api"
	"github.com/vineetpathak08/remote-classroom/pkg/config"
	"github.com/vineetpathak08/remote-classroom/pkg/logger"
)

type fakeTransport struct {
	mu       sync.Mutex
	onPacket func(api.In)
	sent     []api.Out
	snapshot api.RoomStateEvent
	closed   int
	done     chan struct{}
}

func newFakeTransport(snapshot api.RoomStateEvent) *fakeTransport {
	return &fakeTransport{snapshot: snapshot, done: make(chan struct{})}
}

func (t *fakeTransport) OnPacket(fn func(api.In)) { t.mu.Lock(); t.onPacket = fn; t.mu.Unlock() }

func (t *fakeTransport) Notify(pt api.PT, payload any) {
	t.mu.Lock()
	t.sent = append(t.sent, api.Out{T: pt, Payload: payload})
	t.mu.Unlock()
}

func (t *fakeTransport) Call(pt api.PT, payload any) ([]byte, error) {
	return json.Marshal(t.snapshot)
}

func (t *fakeTransport) Close() { t.mu.Lock(); t.closed++; t.mu.Unlock() }

func (t *fakeTransport) Wait() chan struct{} { return t.done }

// push delivers an event as if it came from the relay.
func (t *fakeTransport) push(tb testing.TB, pt api.PT, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		tb.Fatal(err)
	}
	t.mu.Lock()
	fn := t.onPacket
	t.mu.Unlock()
	fn(api.In{T: pt, Payload: raw})
}

func (t *fakeTransport) outbound(pt api.PT) []api.Out {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []api.Out
	for _, o := range t.sent {
		if o.T == pt {
			out = append(out, o)
		}
	}
	return out
}

type fakeLink struct {
	mu         sync.Mutex
	remoteSDP  string
	candidates []string
	destroyed  bool
	lossFn     func()
}

func (l *fakeLink) Offer(func(string)) (string, error) { return "offer-sdp", nil }

func (l *fakeLink) Answer(offer string, _ func(string)) (string, error) {
	l.mu.Lock()
	l.remoteSDP = offer
	l.mu.Unlock()
	return "answer-sdp", nil
}

func (l *fakeLink) SetRemoteSDP(sdp string) error {
	l.mu.Lock()
	l.remoteSDP = sdp
	l.mu.Unlock()
	return nil
}

func (l *fakeLink) AddCandidate(c string) error {
	l.mu.Lock()
	l.candidates = append(l.candidates, c)
	l.mu.Unlock()
	return nil
}

func (l *fakeLink) OnMediaLoss(fn func()) { l.mu.Lock(); l.lossFn = fn; l.mu.Unlock() }

func (l *fakeLink) Destroy() { l.mu.Lock(); l.destroyed = true; l.mu.Unlock() }

type fakeLinks struct {
	mu      sync.Mutex
	created []*fakeLink
}

func (f *fakeLinks) NewLink() (Link, error) {
	l := &fakeLink{}
	f.mu.Lock()
	f.created = append(f.created, l)
	f.mu.Unlock()
	return l, nil
}

func (f *fakeLinks) count() int { f.mu.Lock(); defer f.mu.Unlock(); return len(f.created) }

func roomWith(participants ...api.Participant) api.RoomStateEvent {
	return api.RoomStateEvent{Participants: participants}
}

func student(userId, socketId string) api.Participant {
	return api.Participant{
		UserId: userId, SocketId: socketId, UserName: userId,
		UserRole: api.RoleStudent, AudioEnabled: true, VideoEnabled: true,
	}
}

func instructor(userId, socketId string) api.Participant {
	p := student(userId, socketId)
	p.UserRole = api.RoleInstructor
	return p
}

func newTestSession(t *testing.T, role api.Role, snapshot api.RoomStateEvent) (*Session, *fakeTransport, *fakeLinks) {
	t.Helper()
	transport := newFakeTransport(snapshot)
	links := &fakeLinks{}
	s := New(transport, links, config.Session{}, nil, nil, nil, logger.Default())
	if err := s.Join("room1", "me", "Me", role); err != nil {
		t.Fatal(err)
	}
	return s, transport, links
}

func TestInstructorDialsPresentStudents(t *testing.T) {
	s, transport, links := newTestSession(t, api.RoleInstructor,
		roomWith(instructor("me", "s-me"), student("u1", "s1")))
	defer s.Leave()

	if links.count() != 1 {
		t.Fatalf("expected 1 link towards the student, got %v", links.count())
	}
	offers := transport.outbound(api.WebrtcOffer)
	if len(offers) != 1 {
		t.Fatalf("expected 1 offer, got %v", len(offers))
	}
	ev := offers[0].Payload.(api.WebrtcOfferEvent)
	if ev.TargetSocketId != "s1" || ev.Offer != "offer-sdp" {
		t.Errorf("offer misrouted: %+v", ev)
	}
	if s.Me().SocketId != "s-me" {
		t.Errorf("own socket id should come from the snapshot, got %q", s.Me().SocketId)
	}
}

func TestInstructorDialsLateJoiner(t *testing.T) {
	s, transport, links := newTestSession(t, api.RoleInstructor, roomWith(instructor("me", "s-me")))
	defer s.Leave()

	transport.push(t, api.UserJoined, api.UserJoinedEvent{Participant: student("u2", "s2")})

	if links.count() != 1 {
		t.Fatalf("expected a link to the late joiner, got %v", links.count())
	}
	if got := len(transport.outbound(api.WebrtcOffer)); got != 1 {
		t.Errorf("expected 1 offer, got %v", got)
	}
	// the same join delivered again must not create a second link
	transport.push(t, api.UserJoined, api.UserJoinedEvent{Participant: student("u2", "s2")})
	if links.count() != 1 {
		t.Errorf("duplicate join should not redial, got %v links", links.count())
	}
}

func TestStudentAnswersOffer(t *testing.T) {
	s, transport, links := newTestSession(t, api.RoleStudent,
		roomWith(student("me", "s-me"), instructor("i1", "s-i")))
	defer s.Leave()

	if links.count() != 0 {
		t.Fatalf("students never initiate, got %v links", links.count())
	}
	transport.push(t, api.WebrtcOffer, api.WebrtcOfferEvent{
		Room: api.Room{Rid: "room1"}, FromSocketId: "s-i", Offer: "sdp-from-instructor",
	})
	if links.count() != 1 {
		t.Fatalf("expected 1 link after the offer, got %v", links.count())
	}
	answers := transport.outbound(api.WebrtcAnswer)
	if len(answers) != 1 {
		t.Fatalf("expected 1 answer, got %v", len(answers))
	}
	if ev := answers[0].Payload.(api.WebrtcAnswerEvent); ev.TargetSocketId != "s-i" {
		t.Errorf("answer misrouted: %+v", ev)
	}
}

func TestLeaveTwiceIsIdempotent(t *testing.T) {
	s, transport, _ := newTestSession(t, api.RoleStudent, roomWith(student("me", "s-me")))

	s.Leave()
	s.Leave()

	if s.Status() != Closed {
		t.Errorf("expected closed, got %v", s.Status())
	}
	transport.mu.Lock()
	closed := transport.closed
	transport.mu.Unlock()
	if closed != 1 {
		t.Errorf("transport should close exactly once, got %v", closed)
	}
	if got := len(transport.outbound(api.LeaveClass)); got != 1 {
		t.Errorf("expected 1 leave notification, got %v", got)
	}
}

func TestEventsDiscardedAfterLeave(t *testing.T) {
	s, transport, _ := newTestSession(t, api.RoleStudent, roomWith(student("me", "s-me")))
	s.Leave()

	transport.push(t, api.ChatMessage, api.ChatMessageEvent{UserId: "u1", UserName: "u1", Message: "late"})
	if len(s.Chat()) != 0 {
		t.Error("a late event must not mutate released state")
	}
}

func TestMuteAllCommand(t *testing.T) {
	s, transport, _ := newTestSession(t, api.RoleStudent, roomWith(student("me", "s-me")))
	defer s.Leave()

	transport.push(t, api.MuteAllCommand, api.Room{Rid: "room1"})

	me := s.Me()
	if me.AudioEnabled {
		t.Error("audio should be off after mute-all")
	}
	if !me.VideoEnabled {
		t.Error("mute-all must not touch video")
	}
	toggles := transport.outbound(api.ToggleMedia)
	if len(toggles) != 1 {
		t.Fatalf("expected 1 media announcement, got %v", len(toggles))
	}
	// a repeated command changes nothing and stays silent
	transport.push(t, api.MuteAllCommand, api.Room{Rid: "room1"})
	if got := len(transport.outbound(api.ToggleMedia)); got != 1 {
		t.Errorf("repeated mute-all should not re-announce, got %v", got)
	}
}

func TestInstructorIgnoresMuteAll(t *testing.T) {
	s, transport, _ := newTestSession(t, api.RoleInstructor, roomWith(instructor("me", "s-me")))
	defer s.Leave()

	transport.push(t, api.MuteAllCommand, api.Room{Rid: "room1"})
	if !s.Me().AudioEnabled {
		t.Error("mute-all must not silence the instructor")
	}
}

func TestOwnChatEchoAppearsOnce(t *testing.T) {
	s, transport, _ := newTestSession(t, api.RoleStudent, roomWith(student("me", "s-me")))
	defer s.Leave()

	if err := s.SendChat("hello"); err != nil {
		t.Fatal(err)
	}
	// the relay echoes the message back, sender included
	transport.push(t, api.ChatMessage, api.ChatMessageEvent{
		UserId: "me", UserName: "Me", Message: "hello",
	})
	if got := len(s.Chat()); got != 1 {
		t.Errorf("own message should appear once, got %v", got)
	}
	transport.push(t, api.ChatMessage, api.ChatMessageEvent{
		UserId: "u1", UserName: "u1", Message: "hey",
	})
	if got := len(s.Chat()); got != 2 {
		t.Errorf("remote message should be appended, got %v", got)
	}
}

func TestStaleUserLeftKeepsFreshRecord(t *testing.T) {
	s, transport, _ := newTestSession(t, api.RoleStudent,
		roomWith(student("me", "s-me"), student("u1", "s-old"), student("u1", "s-new")))
	defer s.Leave()

	transport.push(t, api.UserLeft, api.UserLeftEvent{UserId: "u1", SocketId: "s-old", UserName: "u1"})

	var fresh bool
	for _, p := range s.Roster() {
		if p.UserId == "u1" && p.SocketId == "s-new" {
			fresh = true
		}
		if p.UserId == "u1" && p.SocketId == "s-old" {
			t.Error("stale record should be gone")
		}
	}
	if !fresh {
		t.Error("the fresh record of u1 was evicted by a stale user-left")
	}
}

func TestToggleVideoBlockedUnderAudioOnly(t *testing.T) {
	s, transport, _ := newTestSession(t, api.RoleStudent, roomWith(student("me", "s-me")))
	defer s.Leave()

	s.mu.Lock()
	s.audioOnly = true
	s.me.VideoEnabled = false
	s.mu.Unlock()

	if err := s.ToggleVideo(true); !errors.Is(err, ErrPolicyAudioOnly) {
		t.Fatalf("expected ErrPolicyAudioOnly, got %v", err)
	}
	if got := len(transport.outbound(api.ToggleMedia)); got != 0 {
		t.Errorf("a refused toggle must not emit, got %v events", got)
	}
	// turning the camera off is always allowed
	if err := s.ToggleVideo(false); err != nil {
		t.Errorf("disabling video should pass: %v", err)
	}
}

func TestStudentControlsRequireAuthority(t *testing.T) {
	s, transport, _ := newTestSession(t, api.RoleStudent, roomWith(student("me", "s-me")))
	defer s.Leave()

	if err := s.MuteAll(); !errors.Is(err, ErrNotInstructor) {
		t.Errorf("expected ErrNotInstructor, got %v", err)
	}
	if err := s.ChangeSlide("deck.pdf", 2); !errors.Is(err, ErrNotInstructor) {
		t.Errorf("expected ErrNotInstructor, got %v", err)
	}
	if _, err := s.StartPoll("q", api.PollTrueFalse, nil, 30); !errors.Is(err, ErrNotInstructor) {
		t.Errorf("expected ErrNotInstructor, got %v", err)
	}
	if got := len(transport.outbound(api.MuteAll)); got != 0 {
		t.Errorf("refused commands must not emit, got %v", got)
	}
}

func TestRemovedFromClassClosesSession(t *testing.T) {
	s, transport, links := newTestSession(t, api.RoleStudent,
		roomWith(student("me", "s-me"), instructor("i1", "s-i")))

	transport.push(t, api.WebrtcOffer, api.WebrtcOfferEvent{FromSocketId: "s-i", Offer: "sdp"})

	var reason string
	done := make(chan struct{})
	s.OnClosed(func(r string) { reason = r; close(done) })

	transport.push(t, api.RemovedFromClass, api.RemovedFromClassEvent{Reason: "disruptive"})
	<-done

	if reason != "disruptive" {
		t.Errorf("unexpected close reason %q", reason)
	}
	if s.Status() != Closed {
		t.Errorf("expected closed, got %v", s.Status())
	}
	links.mu.Lock()
	destroyed := links.created[0].destroyed
	links.mu.Unlock()
	if !destroyed {
		t.Error("peer links should be destroyed on close")
	}
}

func TestPeerBandwidthUpdatesRoster(t *testing.T) {
	s, transport, _ := newTestSession(t, api.RoleStudent,
		roomWith(student("me", "s-me"), student("u1", "s1")))
	defer s.Leave()

	transport.push(t, api.ParticipantBandwidth, api.ParticipantBandwidthEvent{
		UserId: "u1", SocketId: "s1", Bandwidth: "low", ConnectionQuality: "fair",
	})
	for _, p := range s.Roster() {
		if p.UserId == "u1" && p.ConnectionQuality != "fair" {
			t.Errorf("quality not applied: %+v", p)
		}
	}
}
