package state

import (
	"testing"

	"github.com/vineetpathak08/remote-classroom/pkg/api"
)

func p(userId, socketId string) api.Participant {
	return api.Participant{UserId: userId, SocketId: socketId, UserName: userId}
}

func TestJoinIsIdempotent(t *testing.T) {
	r := NewRoster()
	r = r.Join(p("u1", "s1"))
	r = r.Join(p("u1", "s1"))
	r = r.Join(p("u1", "s1"))
	if r.Len() != 1 {
		t.Errorf("expected a single record, got %v", r.Len())
	}
}

func TestJoinKeepsReconnectRecords(t *testing.T) {
	r := NewRoster()
	r = r.Join(p("u1", "s1"))
	r = r.Join(p("u1", "s2"))
	if r.Len() != 2 {
		t.Errorf("distinct sockets of one user should coexist, got %v", r.Len())
	}
}

func TestLeaveMatchesSocket(t *testing.T) {
	r := NewRoster(p("u1", "s1"), p("u1", "s2"), p("u2", "s3"))

	// a stale socket removes only its own record
	r = r.Leave("u1", "s1")
	if r.Len() != 2 {
		t.Fatalf("expected 2 records, got %v", r.Len())
	}
	if _, ok := r.Find(Key{UserId: "u1", SocketId: "s2"}); !ok {
		t.Error("the fresh connection of u1 was evicted by a stale leave")
	}

	// leaving an absent participant changes nothing
	r = r.Leave("u9", "s9")
	if r.Len() != 2 {
		t.Errorf("leave of an absent user should be a no-op, got %v", r.Len())
	}

	// an empty socket clears every record of the user
	r = r.Leave("u1", "")
	if _, ok := r.FindByUser("u1"); ok {
		t.Error("u1 should be gone entirely")
	}
}

func TestDedupKeepsFirst(t *testing.T) {
	first := p("u1", "s1")
	first.HandRaised = true
	dup := p("u1", "s1")
	r := NewRoster(first, dup, p("u2", "s2"))
	if r.Len() != 2 {
		t.Fatalf("expected 2 records after dedup, got %v", r.Len())
	}
	got, _ := r.Find(Key{UserId: "u1", SocketId: "s1"})
	if !got.HandRaised {
		t.Error("dedup should keep the first record")
	}
}

func TestEventOrderInvariance(t *testing.T) {
	// the same membership events applied in different orders must
	// converge to the same participant set
	apply := func(r Roster, ops ...func(Roster) Roster) Roster {
		for _, op := range ops {
			r = op(r)
		}
		return r
	}
	joinA := func(r Roster) Roster { return r.Join(p("a", "s1")) }
	joinB := func(r Roster) Roster { return r.Join(p("b", "s2")) }
	leaveC := func(r Roster) Roster { return r.Leave("c", "s3") }

	one := apply(NewRoster(), joinA, joinB, leaveC)
	two := apply(NewRoster(), leaveC, joinB, joinA)

	if one.Len() != two.Len() {
		t.Fatalf("orders diverged: %v vs %v", one.Len(), two.Len())
	}
	for _, w := range one.List() {
		if _, ok := two.Find(KeyOf(w)); !ok {
			t.Errorf("participant %v missing after reorder", KeyOf(w))
		}
	}
}

func TestSetMediaTouchesOneFlag(t *testing.T) {
	record := p("u1", "s1")
	record.AudioEnabled, record.VideoEnabled = true, true
	r := NewRoster(record)
	r = r.SetMedia("u1", api.MediaAudio, false)
	got, _ := r.FindByUser("u1")
	if got.AudioEnabled {
		t.Error("audio should be off")
	}
	if !got.VideoEnabled {
		t.Error("video should be untouched")
	}
}
