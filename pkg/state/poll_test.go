package state

import (
	"errors"
	"testing"
	"time"

	"github.com/vineetpathak08/remote-classroom/pkg/api"
)

var quiz = api.Poll{Id: "p1", Question: "?", Type: api.PollTrueFalse, Duration: 30}

func TestPollRespondOnce(t *testing.T) {
	now := time.Now()
	s := NewPollState().Start(quiz, now)

	s, err := s.Respond(now.Add(time.Second))
	if err != nil {
		t.Fatalf("first response should pass: %v", err)
	}
	if _, err = s.Respond(now.Add(2 * time.Second)); !errors.Is(err, ErrPollResponded) {
		t.Errorf("second response should fail with ErrPollResponded, got %v", err)
	}
}

func TestPollDeadlineRejects(t *testing.T) {
	now := time.Now()
	s := NewPollState().Start(quiz, now)

	if _, err := s.Respond(now.Add(31 * time.Second)); !errors.Is(err, ErrPollClosed) {
		t.Errorf("late response should fail with ErrPollClosed, got %v", err)
	}
}

func TestPollRespondWithoutPoll(t *testing.T) {
	if _, err := NewPollState().Respond(time.Now()); !errors.Is(err, ErrNoPoll) {
		t.Errorf("expected ErrNoPoll, got %v", err)
	}
}

func TestPollEndClears(t *testing.T) {
	s := NewPollState().Start(quiz, time.Now())
	s = s.End("p1")
	if s.Phase != PollIdle {
		t.Errorf("expected idle after end, got %v", s.Phase)
	}
}

func TestPollAggregate(t *testing.T) {
	s := NewPollState().Start(quiz, time.Now())
	s = s.AddResponse(api.PollResponseEvent{PollId: "p1", UserId: "u1", Answer: "yes"})
	s = s.AddResponse(api.PollResponseEvent{PollId: "p1", UserId: "u2", Answer: "no"})
	// an answer for a different poll is dropped
	s = s.AddResponse(api.PollResponseEvent{PollId: "px", UserId: "u3", Answer: "yes"})
	if len(s.Responses) != 2 {
		t.Errorf("expected 2 responses, got %v", len(s.Responses))
	}
}

func TestChatUnreadCounter(t *testing.T) {
	now := time.Now()
	l := NewChatLog()
	l = l.Append("u1", "hi", now)
	if l.Unread() != 0 {
		t.Errorf("open pane should not count unread, got %v", l.Unread())
	}
	l = l.SetOpen(false)
	l = l.Append("u2", "there", now)
	l = l.AppendSystem("u3 joined", now)
	if l.Unread() != 1 {
		t.Errorf("system messages should not count, got %v", l.Unread())
	}
	l = l.SetOpen(true)
	if l.Unread() != 0 {
		t.Errorf("opening should reset unread, got %v", l.Unread())
	}
	if l.Len() != 3 {
		t.Errorf("expected 3 messages, got %v", l.Len())
	}
	msgs := l.Messages()
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Id <= msgs[i-1].Id {
			t.Error("message ids should grow monotonically")
		}
	}
}
