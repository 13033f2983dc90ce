// Package state holds the pure state-transition logic of a live class.
// Every operation takes the current value and returns the next one with no
// side effects, so the reconciliation rules are testable without any
// transport.
package state

import "github.com/vineetpathak08/remote-classroom/pkg/api"

// Key is the composite participant identity. The same UserId may appear
// transiently with several SocketIds during reconnect races, so records
// are unique by the pair, never by UserId alone.
type Key struct {
	UserId   string
	SocketId string
}

func KeyOf(p api.Participant) Key { return Key{UserId: p.UserId, SocketId: p.SocketId} }

// Roster is the ordered set of room participants.
type Roster struct {
	list []api.Participant
}

func NewRoster(participants ...api.Participant) Roster {
	return Roster{list: participants}.Dedup()
}

func (r Roster) Len() int { return len(r.list) }

func (r Roster) List() []api.Participant {
	out := make([]api.Participant, len(r.list))
	copy(out, r.list)
	return out
}

func (r Roster) Find(k Key) (api.Participant, bool) {
	for _, p := range r.list {
		if KeyOf(p) == k {
			return p, true
		}
	}
	return api.Participant{}, false
}

func (r Roster) FindByUser(userId string) (api.Participant, bool) {
	for _, p := range r.list {
		if p.UserId == userId {
			return p, true
		}
	}
	return api.Participant{}, false
}

// Join adds a participant. Joining an already-present (userId, socketId)
// pair is a no-op.
func (r Roster) Join(p api.Participant) Roster {
	if _, ok := r.Find(KeyOf(p)); ok {
		return r
	}
	next := r.List()
	return Roster{list: append(next, p)}
}

// Leave removes the matching record only. An empty socketId removes every
// record of the user. Leaving an absent participant is a no-op.
func (r Roster) Leave(userId, socketId string) Roster {
	next := make([]api.Participant, 0, len(r.list))
	for _, p := range r.list {
		if p.UserId == userId && (socketId == "" || p.SocketId == socketId) {
			continue
		}
		next = append(next, p)
	}
	return Roster{list: next}
}

// Dedup keeps the first record per (userId, socketId) pair. It is applied
// both on room-state snapshots and by the periodic reconciliation sweep to
// self-heal from join races.
func (r Roster) Dedup() Roster {
	seen := make(map[Key]struct{}, len(r.list))
	next := make([]api.Participant, 0, len(r.list))
	for _, p := range r.list {
		k := KeyOf(p)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		next = append(next, p)
	}
	return Roster{list: next}
}

// SetMedia flips the audio or video flag of every record of the user.
func (r Roster) SetMedia(userId string, media api.MediaType, enabled bool) Roster {
	return r.update(userId, func(p *api.Participant) {
		switch media {
		case api.MediaAudio:
			p.AudioEnabled = enabled
		case api.MediaVideo:
			p.VideoEnabled = enabled
		}
	})
}

func (r Roster) SetHand(userId string, raised bool) Roster {
	return r.update(userId, func(p *api.Participant) { p.HandRaised = raised })
}

func (r Roster) SetQuality(userId, quality string) Roster {
	return r.update(userId, func(p *api.Participant) { p.ConnectionQuality = quality })
}

func (r Roster) update(userId string, fn func(p *api.Participant)) Roster {
	next := r.List()
	for i := range next {
		if next[i].UserId == userId {
			fn(&next[i])
		}
	}
	return Roster{list: next}
}
