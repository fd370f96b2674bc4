package fret

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/airstrum/internal/domain/model"
)

// Inbound message types.
const (
	TypeChordChange = "chord_change"
	TypeFretUpdate  = "FRET_UPDATE"
	TypePing        = "ping"
)

const mutedFret = -1

// Update is a fully built replacement for the stored fret state.
type Update struct {
	Type      string
	Chord     string
	Fret      model.FretState
	Timestamp time.Time
}

// Key identifies a message for duplicate suppression. Only timestamped
// messages have a key; an untimed message may legitimately repeat an
// earlier shape and is always applied.
func (u Update) Key() (string, bool) {
	if u.Timestamp.IsZero() {
		return "", false
	}
	return u.Type + "|" + u.Chord + "|" + u.Fret.String() + "|" + strconv.FormatInt(u.Timestamp.UnixMilli(), 10), true
}

type envelope struct {
	Type      string          `json:"type"`
	Chord     string          `json:"chord"`
	Fingering []fingering     `json:"fingering"`
	Payload   []int           `json:"payload"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type fingering struct {
	String int `json:"string"`
	Fret   int `json:"fret"`
}

// MessageType peeks at the type field without validating the rest.
func MessageType(data []byte) (string, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return env.Type, nil
}

// Parse decodes a chord_change or legacy FRET_UPDATE message into a
// complete Update. Every string the message does not mention is Unused.
func Parse(data []byte) (Update, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Update{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	switch env.Type {
	case TypeChordChange:
		return parseChordChange(env)
	case TypeFretUpdate:
		return parseLegacy(env)
	default:
		return Update{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func parseChordChange(env envelope) (Update, error) {
	ts, err := parseTimestamp(env.Timestamp)
	if err != nil {
		return Update{}, err
	}
	var state model.FretState
	seen := [model.StringCount]bool{}
	for _, f := range env.Fingering {
		if f.String < 1 || f.String > model.StringCount {
			return Update{}, fmt.Errorf("%w: string %d out of range", ErrMalformed, f.String)
		}
		slot := model.StringCount - f.String
		if seen[slot] {
			return Update{}, fmt.Errorf("%w: string %d listed twice", ErrMalformed, f.String)
		}
		seen[slot] = true
		switch {
		case f.Fret == mutedFret:
			state[slot] = model.MutedSlot()
		case f.Fret >= 0:
			state[slot] = model.FretAt(f.Fret)
		default:
			return Update{}, fmt.Errorf("%w: fret %d on string %d", ErrMalformed, f.Fret, f.String)
		}
	}
	return Update{Type: TypeChordChange, Chord: env.Chord, Fret: state, Timestamp: ts}, nil
}

func parseLegacy(env envelope) (Update, error) {
	if len(env.Payload) != model.StringCount {
		return Update{}, fmt.Errorf("%w: payload has %d slots", ErrMalformed, len(env.Payload))
	}
	var state model.FretState
	for i, v := range env.Payload {
		switch {
		case v == mutedFret:
			state[i] = model.UnusedSlot()
		case v >= 0:
			state[i] = model.FretAt(v)
		default:
			return Update{}, fmt.Errorf("%w: fret %d in slot %d", ErrMalformed, v, i)
		}
	}
	return Update{Type: TypeFretUpdate, Fret: state}, nil
}

// parseTimestamp accepts epoch milliseconds or an RFC3339 string.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	if raw[0] != '"' {
		ms, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: timestamp %s: %w", ErrMalformed, raw, err)
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp: %w", ErrMalformed, err)
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp: %w", ErrMalformed, err)
	}
	return ts, nil
}
