package fret

import "errors"

// Sentinel kinds for inbound message errors.
var (
	ErrMalformed   = errors.New("malformed fret message")
	ErrUnknownType = errors.New("unknown message type")
)
