package api

import (
	"encoding/json"
	"testing"
)

func TestPacketRoundTrip(t *testing.T) {
	out := Out{Id: "abc", T: ChatMessage, Payload: ChatMessageEvent{
		Room: Room{Rid: "r1"}, UserId: "u1", UserName: "u1", Message: "hi",
	}}
	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatal(err)
	}
	var in In
	if err = json.Unmarshal(raw, &in); err != nil {
		t.Fatal(err)
	}
	if in.T != ChatMessage || !in.HasId() {
		t.Fatalf("envelope mismatch: %+v", in)
	}
	ev, err := UnwrapChecked[ChatMessageEvent](in.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Rid != "r1" || ev.Message != "hi" {
		t.Errorf("payload mismatch: %+v", ev)
	}
}

func TestUnwrapMalformed(t *testing.T) {
	if ev := Unwrap[ChatMessageEvent]([]byte("{broken")); ev != nil {
		t.Error("expected nil on malformed payload")
	}
	if _, err := UnwrapChecked[ChatMessageEvent]([]byte("{broken")); err != ErrMalformed {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestTypesAreNamed(t *testing.T) {
	known := []PT{JoinClass, RoomState, UserJoined, UserLeft, WebrtcOffer, WebrtcAnswer,
		WebrtcIce, ChatMessage, SlideChanged, HandRaised, MediaChanged, NewPoll,
		PollResponse, PollEnded, RecordingStarted, RecordingStopped, BandwidthUpdate,
		ParticipantBandwidth, MuteAllCommand, ForceMute, RemovedFromClass, ClassEnded}
	for _, pt := range known {
		if pt.String() == "Unknown" {
			t.Errorf("packet type %d has no name", pt)
		}
	}
	if PT(255).String() != "Unknown" {
		t.Error("an unknown type should say so")
	}
}
