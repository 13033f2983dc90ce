package state

import (
	"errors"
	"time"

	"github.com/vineetpathak08/remote-classroom/pkg/api"
)

type PollPhase uint8

const (
	PollIdle PollPhase = iota
	PollActive
	PollResponded
	PollExpired
)

var (
	ErrNoPoll        = errors.New("no active poll")
	ErrPollClosed    = errors.New("poll closed")
	ErrPollResponded = errors.New("already responded")
)

// PollState tracks the single active poll of a room. The deadline is a
// client-side guard: once it passes, responses are rejected locally even
// when the authoritative poll-ended event has not arrived yet.
type PollState struct {
	Poll      api.Poll
	Phase     PollPhase
	Deadline  time.Time
	Responses []api.PollResponseEvent // instructor-only aggregate
}

func NewPollState() PollState { return PollState{Phase: PollIdle} }

// Start activates a poll, superseding any previous one.
func (s PollState) Start(p api.Poll, now time.Time) PollState {
	return PollState{
		Poll:     p,
		Phase:    PollActive,
		Deadline: now.Add(time.Duration(p.Duration) * time.Second),
	}
}

// End clears the poll. A mismatched or empty poll id still clears: the
// authoritative event always wins.
func (s PollState) End(pollId string) PollState {
	if s.Phase == PollIdle {
		return s
	}
	return NewPollState()
}

func (s PollState) ExpiredAt(now time.Time) bool {
	return s.Phase != PollIdle && now.After(s.Deadline)
}

// Respond records the local participant's answer. Rejected when the poll
// is idle, already answered, or past its countdown.
func (s PollState) Respond(now time.Time) (PollState, error) {
	switch {
	case s.Phase == PollIdle:
		return s, ErrNoPoll
	case s.Phase == PollResponded:
		return s, ErrPollResponded
	case s.Phase == PollExpired || s.ExpiredAt(now):
		out := s
		out.Phase = PollExpired
		return out, ErrPollClosed
	}
	out := s
	out.Phase = PollResponded
	return out, nil
}

// AddResponse accumulates a remote participant's answer (instructor view).
func (s PollState) AddResponse(ev api.PollResponseEvent) PollState {
	if s.Phase == PollIdle || ev.PollId != s.Poll.Id {
		return s
	}
	out := s
	out.Responses = make([]api.PollResponseEvent, len(s.Responses), len(s.Responses)+1)
	copy(out.Responses, s.Responses)
	out.Responses = append(out.Responses, ev)
	return out
}
