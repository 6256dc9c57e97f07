// Package parser lexes and validates canonical (already macro-expanded)
// input text into a timed InputSequence.
package parser

import "inputbot/internal/vocab"

// Result is the outcome attached to every parsed InputSequence.
type Result int

const (
	Valid Result = iota
	NormalMsg
	Invalid
	BlacklistedInput
	ExceededMaxDuration
	ExceededMaxSimultaneousDuration
	InvalidPortNumber
	InvalidInput
)

func (r Result) String() string {
	switch r {
	case Valid:
		return "Valid"
	case NormalMsg:
		return "NormalMsg"
	case Invalid:
		return "Invalid"
	case BlacklistedInput:
		return "BlacklistedInput"
	case ExceededMaxDuration:
		return "ExceededMaxDuration"
	case ExceededMaxSimultaneousDuration:
		return "ExceededMaxSimultaneousDuration"
	case InvalidPortNumber:
		return "InvalidPortNumber"
	case InvalidInput:
		return "InvalidInput"
	default:
		return "Unknown"
	}
}

// Input is a single button/axis/wait token within a chord, fully resolved.
type Input struct {
	Name         string
	Kind         vocab.Kind
	Port         int  // resolved 0-based port (explicit &p, or the caller's default)
	ExplicitPort bool // true if the &p suffix was present
	DurationMs   int
	Hold         bool // '_' suffix: latches, no balancing release
	Release      bool // '-' suffix: releases a prior hold, never presses
	Percent      int  // axes only, 0-100
}

// InputSubSequence is a chord: a set of Inputs intended to be applied
// simultaneously.
type InputSubSequence struct {
	Inputs []Input
	// WaitAfter is not set by Parse and not read by the scheduler: a '.'
	// or '#' wait token is parsed as its own step of Kind vocab.Wait.
	WaitAfter bool
}

// MaxDuration returns the longest single input duration in the chord,
// which is the chord's effective duration for timing and release purposes.
func (s InputSubSequence) MaxDuration() int {
	max := 0
	for _, in := range s.Inputs {
		if in.DurationMs > max {
			max = in.DurationMs
		}
	}
	return max
}

// InputSequence is the fully parsed, validated program the scheduler
// plays back.
type InputSequence struct {
	Steps         []InputSubSequence
	TotalMs       int
	Result        Result
	Raw           string // the canonical (post-expansion) source text, for diagnostics
	FailureDetail string // human-readable detail for non-Valid results
}
