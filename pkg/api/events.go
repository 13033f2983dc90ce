package api

import "time"

type Role string

const (
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)

// SignalData is an opaque negotiation payload (base64 of a JSON
// offer/answer/candidate), produced and consumed by the peer transport.
type SignalData = string

type MediaType string

const (
	MediaAudio MediaType = "audio"
	MediaVideo MediaType = "video"
)

// Participant is the wire view of one attendee.
// Identity is the (userId, socketId) pair: userId survives reconnects,
// socketId does not.
type Participant struct {
	UserId            string `json:"userId"`
	SocketId          string `json:"socketId"`
	UserName          string `json:"userName"`
	UserRole          Role   `json:"userRole"`
	AudioEnabled      bool   `json:"audioEnabled"`
	VideoEnabled      bool   `json:"videoEnabled"`
	HandRaised        bool   `json:"handRaised"`
	ConnectionQuality string `json:"connectionQuality,omitempty"`
}

type Slide struct {
	Url   string `json:"url"`
	Index int    `json:"index"`
}

type Poll struct {
	Id       string   `json:"id"`
	Question string   `json:"question"`
	Type     PollType `json:"type"`
	Options  []string `json:"options,omitempty"`
	Duration int      `json:"duration"` // seconds
}

type PollType string

const (
	PollMultipleChoice PollType = "multiple-choice"
	PollTrueFalse      PollType = "true-false"
	PollOpenEnded      PollType = "open-ended"
)

type (
	JoinClassRequest struct {
		Room
		UserId   string `json:"userId"`
		UserName string `json:"userName"`
		UserRole Role   `json:"userRole"`
	}
	LeaveClassRequest struct {
		Room
		UserId string `json:"userId"`
	}
	RoomStateEvent struct {
		Participants []Participant `json:"participants"`
		CurrentSlide *Slide        `json:"currentSlide,omitempty"`
		IsRecording  bool          `json:"isRecording"`
		ActivePoll   *Poll         `json:"activePoll,omitempty"`
	}
	UserJoinedEvent struct {
		Participant Participant `json:"participant"`
	}
	UserLeftEvent struct {
		UserId   string `json:"userId"`
		SocketId string `json:"socketId"`
		UserName string `json:"userName"`
	}
	RemovedFromClassEvent struct {
		Reason string `json:"reason,omitempty"`
	}
)

// Negotiation events carry the remote transport identity and an opaque
// payload. TargetSocketId is set by the sender, FromSocketId is stamped
// by the relay on delivery.
type (
	WebrtcOfferEvent struct {
		Room
		TargetSocketId string     `json:"targetSocketId,omitempty"`
		FromSocketId   string     `json:"fromSocketId,omitempty"`
		Offer          SignalData `json:"offer"`
	}
	WebrtcAnswerEvent struct {
		Room
		TargetSocketId string     `json:"targetSocketId,omitempty"`
		FromSocketId   string     `json:"fromSocketId,omitempty"`
		Answer         SignalData `json:"answer"`
	}
	WebrtcIceEvent struct {
		Room
		TargetSocketId string     `json:"targetSocketId,omitempty"`
		FromSocketId   string     `json:"fromSocketId,omitempty"`
		Candidate      SignalData `json:"candidate"`
	}
)

type (
	ChatMessageEvent struct {
		Room
		UserId   string    `json:"userId"`
		SocketId string    `json:"socketId,omitempty"`
		UserName string    `json:"userName"`
		Message  string    `json:"message"`
		SentAt   time.Time `json:"sentAt,omitempty"`
	}
	SlideChangedEvent struct {
		Room
		Slide
	}
	RaiseHandEvent struct {
		Room
		UserId   string `json:"userId"`
		SocketId string `json:"socketId,omitempty"`
		UserName string `json:"userName"`
		Raised   bool   `json:"raised"`
	}
	ToggleMediaEvent struct {
		Room
		MediaType MediaType `json:"mediaType"`
		Enabled   bool      `json:"enabled"`
	}
	MediaChangedEvent struct {
		UserId    string    `json:"userId"`
		SocketId  string    `json:"socketId"`
		MediaType MediaType `json:"mediaType"`
		Enabled   bool      `json:"enabled"`
	}
	ScreenShareEvent struct {
		Room
	}
)

type (
	NewPollEvent struct {
		Room
		Poll Poll `json:"poll"`
	}
	PollResponseEvent struct {
		Room
		PollId   string    `json:"pollId"`
		UserId   string    `json:"userId"`
		UserName string    `json:"userName"`
		Answer   string    `json:"response"`
		SentAt   time.Time `json:"sentAt,omitempty"`
	}
	PollEndedEvent struct {
		Room
		PollId string `json:"pollId"`
	}
)

type (
	RecordingEvent struct {
		Room
		InitiatedBy string `json:"initiatedBy,omitempty"`
	}
	RecordingChunkEvent struct {
		Room
		Seq  int    `json:"seq"`
		Data []byte `json:"chunk"` // base64 on the wire
	}
)

type (
	BandwidthUpdateEvent struct {
		Room
		Bandwidth         string `json:"bandwidth"`
		ConnectionQuality string `json:"connectionQuality"`
	}
	ParticipantBandwidthEvent struct {
		UserId            string `json:"userId"`
		SocketId          string `json:"socketId"`
		Bandwidth         string `json:"bandwidth"`
		ConnectionQuality string `json:"connectionQuality"`
	}
)

type (
	MuteStudentRequest struct {
		Room
		TargetSocketId string `json:"targetSocketId"`
	}
	RemoveStudentRequest struct {
		Room
		TargetSocketId string `json:"targetSocketId"`
		Reason         string `json:"reason,omitempty"`
	}
	EndClassRequest struct {
		Room
	}
)
