package relay

import (
	"testing"

	"github.com/vineetpathak08/remote-classroom/pkg/api"
	"github.com/vineetpathak08/remote-classroom/pkg/logger"
)

type fakeConn struct {
	writes [][]byte
	closed bool
}

func (c *fakeConn) Write(data []byte) { c.writes = append(c.writes, data) }
func (c *fakeConn) Close()            { c.closed = true }

func testMember(socketId string) *member {
	return &member{conn: &fakeConn{}, socketId: socketId, log: logger.Default()}
}

func TestRoomBookkeeping(t *testing.T) {
	room := newRoom("r1", logger.Default())
	m := testMember("s1")

	room.join(m, api.JoinClassRequest{
		Room: api.Room{Rid: "r1"}, UserId: "u1", UserName: "Alice", UserRole: api.RoleInstructor,
	})

	if room.empty() {
		t.Fatal("room should have a member")
	}
	if m.room != room || !m.instructor() {
		t.Errorf("member not wired: %+v", m)
	}

	snap := room.snapshot()
	if len(snap.Participants) != 1 {
		t.Fatalf("expected 1 participant, got %v", len(snap.Participants))
	}
	p := snap.Participants[0]
	if p.UserId != "u1" || p.SocketId != "s1" || !p.AudioEnabled || !p.VideoEnabled {
		t.Errorf("bad join defaults: %+v", p)
	}

	room.leave(m)
	if !room.empty() {
		t.Error("room should be empty after leave")
	}
	if len(room.snapshot().Participants) != 0 {
		t.Error("roster should be empty after leave")
	}
}

func TestRoomStateTracksSlideAndPoll(t *testing.T) {
	room := newRoom("r1", logger.Default())
	m := testMember("s1")
	room.join(m, api.JoinClassRequest{
		Room: api.Room{Rid: "r1"}, UserId: "u1", UserName: "Alice", UserRole: api.RoleInstructor,
	})

	room.slideChange(m, []byte(`{"roomId":"r1","url":"deck.pdf","index":3}`))
	room.newPoll(m, []byte(`{"roomId":"r1","poll":{"id":"p1","question":"?","type":"true-false","duration":30}}`))
	room.recording(m, api.StartRecording)

	snap := room.snapshot()
	if snap.CurrentSlide == nil || snap.CurrentSlide.Index != 3 {
		t.Errorf("slide not tracked: %+v", snap.CurrentSlide)
	}
	if snap.ActivePoll == nil || snap.ActivePoll.Id != "p1" {
		t.Errorf("poll not tracked: %+v", snap.ActivePoll)
	}
	if !snap.IsRecording {
		t.Error("recording flag not tracked")
	}

	room.pollEnded(m, []byte(`{"roomId":"r1","pollId":"p1"}`))
	room.recording(m, api.StopRecording)
	snap = room.snapshot()
	if snap.ActivePoll != nil || snap.IsRecording {
		t.Errorf("state not cleared: %+v", snap)
	}
}

func TestChatBroadcastIncludesSender(t *testing.T) {
	room := newRoom("r1", logger.Default())
	a, b := testMember("s1"), testMember("s2")
	room.join(a, api.JoinClassRequest{Room: api.Room{Rid: "r1"}, UserId: "u1", UserName: "A", UserRole: api.RoleInstructor})
	room.join(b, api.JoinClassRequest{Room: api.Room{Rid: "r1"}, UserId: "u2", UserName: "B", UserRole: api.RoleStudent})

	before := len(a.conn.(*fakeConn).writes)
	room.chat(a, []byte(`{"roomId":"r1","userId":"u1","userName":"A","message":"hi"}`))

	// the sender gets its own echo so clients can reconcile optimistic state
	if got := len(a.conn.(*fakeConn).writes); got != before+1 {
		t.Errorf("sender should receive the echo, writes %v", got)
	}
	if got := len(b.conn.(*fakeConn).writes); got == 0 {
		t.Error("the other member should receive the message")
	}
}

func TestSignalRoutingIsTargeted(t *testing.T) {
	room := newRoom("r1", logger.Default())
	a, b, c := testMember("s1"), testMember("s2"), testMember("s3")
	for i, m := range []*member{a, b, c} {
		room.join(m, api.JoinClassRequest{
			Room: api.Room{Rid: "r1"}, UserId: string(rune('a' + i)), UserName: "x", UserRole: api.RoleStudent,
		})
	}
	bWrites := len(b.conn.(*fakeConn).writes)
	cWrites := len(c.conn.(*fakeConn).writes)

	room.routeSignal(a, api.WebrtcOffer, []byte(`{"roomId":"r1","targetSocketId":"s2","offer":"sdp"}`))

	if got := len(b.conn.(*fakeConn).writes); got != bWrites+1 {
		t.Errorf("target should receive the offer, writes %v", got)
	}
	if got := len(c.conn.(*fakeConn).writes); got != cWrites {
		t.Error("an offer must not leak to third parties")
	}
}

func TestMuteAllSkipsTheInstructor(t *testing.T) {
	room := newRoom("r1", logger.Default())
	i, s := testMember("s1"), testMember("s2")
	room.join(i, api.JoinClassRequest{Room: api.Room{Rid: "r1"}, UserId: "u1", UserName: "I", UserRole: api.RoleInstructor})
	room.join(s, api.JoinClassRequest{Room: api.Room{Rid: "r1"}, UserId: "u2", UserName: "S", UserRole: api.RoleStudent})

	iWrites := len(i.conn.(*fakeConn).writes)
	sWrites := len(s.conn.(*fakeConn).writes)
	room.muteAll(i)

	if got := len(i.conn.(*fakeConn).writes); got != iWrites {
		t.Error("the instructor must not mute themselves")
	}
	if got := len(s.conn.(*fakeConn).writes); got != sWrites+1 {
		t.Error("students should receive the mute command")
	}
}

func TestStudentCannotDriveTheClass(t *testing.T) {
	room := newRoom("r1", logger.Default())
	m := testMember("s1")
	room.join(m, api.JoinClassRequest{
		Room: api.Room{Rid: "r1"}, UserId: "u1", UserName: "Bob", UserRole: api.RoleStudent,
	})

	room.slideChange(m, []byte(`{"roomId":"r1","url":"deck.pdf","index":3}`))
	room.newPoll(m, []byte(`{"roomId":"r1","poll":{"id":"p1","question":"?"}}`))
	room.recording(m, api.StartRecording)

	snap := room.snapshot()
	if snap.CurrentSlide != nil || snap.ActivePoll != nil || snap.IsRecording {
		t.Errorf("student commands should be refused: %+v", snap)
	}
}
