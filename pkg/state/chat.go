package state

import "time"

type MessageKind string

const (
	MessageUser   MessageKind = "user"
	MessageSystem MessageKind = "system"
)

// Message is one chat entry. Messages are never mutated after creation.
type Message struct {
	Id       int64
	UserName string
	Body     string
	Kind     MessageKind
	SentAt   time.Time
}

// ChatLog is the append-only message log, ordered by arrival.
// Unread counts messages appended while the chat pane is closed.
type ChatLog struct {
	msgs   []Message
	nextId int64
	unread int
	open   bool
}

func NewChatLog() ChatLog { return ChatLog{nextId: 1, open: true} }

func (l ChatLog) Len() int    { return len(l.msgs) }
func (l ChatLog) Unread() int { return l.unread }

func (l ChatLog) Messages() []Message {
	out := make([]Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

func (l ChatLog) Append(userName, body string, at time.Time) ChatLog {
	return l.push(Message{UserName: userName, Body: body, Kind: MessageUser, SentAt: at})
}

func (l ChatLog) AppendSystem(body string, at time.Time) ChatLog {
	return l.push(Message{Body: body, Kind: MessageSystem, SentAt: at})
}

func (l ChatLog) push(m Message) ChatLog {
	m.Id = l.nextId
	next := l.Messages()
	out := ChatLog{msgs: append(next, m), nextId: l.nextId + 1, unread: l.unread, open: l.open}
	if !out.open && m.Kind == MessageUser {
		out.unread++
	}
	return out
}

// SetOpen marks the chat pane visible or hidden; opening resets unread.
func (l ChatLog) SetOpen(open bool) ChatLog {
	out := ChatLog{msgs: l.msgs, nextId: l.nextId, unread: l.unread, open: open}
	if open {
		out.unread = 0
	}
	return out
}
