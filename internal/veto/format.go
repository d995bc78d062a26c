package veto

import "strings"

type StepKind string

const (
	StepBan       StepKind = "ban"
	StepPick      StepKind = "pick"
	StepRemaining StepKind = "remaining"
)

// Format is the ordered list of steps a veto runs through.
type Format []StepKind

const formatSeparator = "-"

// DefaultFormat is the descriptor used when a room is created without one.
const DefaultFormat = "ban-ban-ban-ban-pick-pick-remaining"

// ParseFormat splits a descriptor such as "ban-ban-pick-remaining" into steps.
// Unknown tokens become StepRemaining. A blank descriptor yields an empty
// Format, which Start rejects.
func ParseFormat(descriptor string) Format {
	descriptor = strings.TrimSpace(descriptor)
	if descriptor == "" {
		return Format{}
	}

	tokens := strings.Split(descriptor, formatSeparator)
	f := make(Format, 0, len(tokens))
	for _, tok := range tokens {
		switch StepKind(strings.ToLower(strings.TrimSpace(tok))) {
		case StepBan:
			f = append(f, StepBan)
		case StepPick:
			f = append(f, StepPick)
		default:
			f = append(f, StepRemaining)
		}
	}
	return f
}

func (f Format) String() string {
	parts := make([]string, len(f))
	for i, k := range f {
		parts[i] = string(k)
	}
	return strings.Join(parts, formatSeparator)
}

func (f Format) last() StepKind {
	if len(f) == 0 {
		return ""
	}
	return f[len(f)-1]
}
