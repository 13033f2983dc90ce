package session

import "errors"

var (
	ErrJoined          = errors.New("session already joined")
	ErrNotActive       = errors.New("session is not active")
	ErrNotInstructor   = errors.New("instructor authority required")
	ErrPolicyAudioOnly = errors.New("video is blocked by the bandwidth policy")
)
