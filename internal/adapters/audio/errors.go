package audio

import "errors"

// Sentinel errors for the audio adapter.
var (
	ErrSend      = errors.New("midi send failed")
	ErrPort      = errors.New("midi port unavailable")
	ErrNoRecords = errors.New("nothing recorded")
)
