// Package api defines the signaling protocol between classroom clients and the relay.
//
// Each event (in both directions) is a JSON-encoded "packet" of the following structure:
//
//	id - (optional) a globally unique packet id;
//	 t - (required) one of the predefined unique packet types;
//	 p - (optional) packet payload with arbitrary data.
//
// Packets differentiate by their predefined types with which it is possible
// to unwrap the payload into distinct per-event data structures. The id field
// is set only on the rare request/response exchanges (room-state resync) and
// is used for matching a response to its pending request.
//
// Example:
//
//	{"t":12,"p":{"participants":[{"userId":"u1","socketId":"cfv68irdrc3ifu3jn6bg"}]}}
package api

import (
	"encoding/json"
	"fmt"
)

type (
	Room struct {
		Rid string `json:"roomId"`
	}
	PT uint8
)

type In struct {
	Id      string          `json:"id,omitempty"`
	T       PT              `json:"t"`
	Payload json.RawMessage `json:"p,omitempty"` // should be json.RawMessage for 2-pass unmarshal
}

func (i In) GetId() string        { return i.Id }
func (i In) GetPayload() []byte   { return i.Payload }
func (i In) GetType() PT          { return i.T }
func (i In) HasId() bool          { return i.Id != "" }

type Out struct {
	Id      string `json:"id,omitempty"`
	T       PT     `json:"t"`
	Payload any    `json:"p,omitempty"`
}

// Event codes:
//
//	1x  - room lifecycle
//	2x  - webrtc negotiation
//	3x  - collaboration
//	4x  - polls
//	5x  - recording
//	6x  - bandwidth
//	7x  - instructor commands
const (
	JoinClass        PT = 10
	LeaveClass       PT = 11
	RoomState        PT = 12
	UserJoined       PT = 13
	UserLeft         PT = 14
	RemovedFromClass PT = 15
	ClassEnded       PT = 16

	WebrtcOffer  PT = 20
	WebrtcAnswer PT = 21
	WebrtcIce    PT = 22

	ChatMessage      PT = 30
	SlideChanged     PT = 31
	RaiseHand        PT = 32
	HandRaised       PT = 33
	ToggleMedia      PT = 34
	MediaChanged     PT = 35
	StartScreenShare PT = 36
	StopScreenShare  PT = 37

	NewPoll      PT = 40
	PollResponse PT = 41
	PollEnded    PT = 42

	StartRecording   PT = 50
	StopRecording    PT = 51
	RecordingStarted PT = 52
	RecordingStopped PT = 53
	RecordingChunk   PT = 54

	BandwidthUpdate      PT = 60
	ParticipantBandwidth PT = 61

	MuteStudent    PT = 70
	MuteAll        PT = 71
	ForceMute      PT = 72
	MuteAllCommand PT = 73
	RemoveStudent  PT = 74
	EndClass       PT = 75
)

func (p PT) String() string {
	switch p {
	case JoinClass:
		return "JoinClass"
	case LeaveClass:
		return "LeaveClass"
	case RoomState:
		return "RoomState"
	case UserJoined:
		return "UserJoined"
	case UserLeft:
		return "UserLeft"
	case RemovedFromClass:
		return "RemovedFromClass"
	case ClassEnded:
		return "ClassEnded"
	case WebrtcOffer:
		return "WebrtcOffer"
	case WebrtcAnswer:
		return "WebrtcAnswer"
	case WebrtcIce:
		return "WebrtcIce"
	case ChatMessage:
		return "ChatMessage"
	case SlideChanged:
		return "SlideChanged"
	case RaiseHand:
		return "RaiseHand"
	case HandRaised:
		return "HandRaised"
	case ToggleMedia:
		return "ToggleMedia"
	case MediaChanged:
		return "MediaChanged"
	case StartScreenShare:
		return "StartScreenShare"
	case StopScreenShare:
		return "StopScreenShare"
	case NewPoll:
		return "NewPoll"
	case PollResponse:
		return "PollResponse"
	case PollEnded:
		return "PollEnded"
	case StartRecording:
		return "StartRecording"
	case StopRecording:
		return "StopRecording"
	case RecordingStarted:
		return "RecordingStarted"
	case RecordingStopped:
		return "RecordingStopped"
	case RecordingChunk:
		return "RecordingChunk"
	case BandwidthUpdate:
		return "BandwidthUpdate"
	case ParticipantBandwidth:
		return "ParticipantBandwidth"
	case MuteStudent:
		return "MuteStudent"
	case MuteAll:
		return "MuteAll"
	case ForceMute:
		return "ForceMute"
	case MuteAllCommand:
		return "MuteAllCommand"
	case RemoveStudent:
		return "RemoveStudent"
	case EndClass:
		return "EndClass"
	default:
		return "Unknown"
	}
}

var (
	ErrForbidden = fmt.Errorf("forbidden")
	ErrMalformed = fmt.Errorf("malformed")
)

func Unwrap[T any](data []byte) *T {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}

func UnwrapChecked[T any](data []byte) (*T, error) {
	out := Unwrap[T](data)
	if out == nil {
		return nil, ErrMalformed
	}
	return out, nil
}
