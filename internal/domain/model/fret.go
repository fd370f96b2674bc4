package model

import (
	"strconv"
	"strings"
)

// StringCount is the number of guitar strings a FretState describes.
const StringCount = 6

// SlotKind describes what a string does in the current chord shape.
type SlotKind int

const (
	Unused SlotKind = iota
	Muted
	Fretted
)

// FretSlot is one string. Fret is meaningful only when Kind is Fretted;
// fret 0 is an open string that belongs to the shape.
type FretSlot struct {
	Kind SlotKind
	Fret int
}

// UnusedSlot, MutedSlot and FretAt build slots.
func UnusedSlot() FretSlot  { return FretSlot{Kind: Unused} }
func MutedSlot() FretSlot   { return FretSlot{Kind: Muted} }
func FretAt(n int) FretSlot { return FretSlot{Kind: Fretted, Fret: n} }

// IsUsed reports whether the string is part of the shape.
func (s FretSlot) IsUsed() bool { return s.Kind != Unused }

func (s FretSlot) String() string {
	switch s.Kind {
	case Muted:
		return "x"
	case Fretted:
		return strconv.Itoa(s.Fret)
	default:
		return "-"
	}
}

// FretState holds six slots; slot 0 is the lowest string.
type FretState [StringCount]FretSlot

// String renders the shape low to high, e.g. "x32010".
func (f FretState) String() string {
	var b strings.Builder
	for _, s := range f {
		b.WriteString(s.String())
	}
	return b.String()
}
