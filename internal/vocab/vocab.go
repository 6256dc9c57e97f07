// Package vocab describes the installation-defined set of recognized
// input names and the safety limits the parser enforces against them.
package vocab

import (
	"strings"

	"inputbot/internal/access"
)

// Kind distinguishes how an input name is played back.
type Kind int

const (
	// Button is a simple digital press/release input.
	Button Kind = iota
	// Axis is an analog input that additionally carries a percent (0-100).
	Axis
	// Wait is a structural token ('.' or '#') rather than a device input.
	Wait
)

// InputDef describes one recognized input name.
type InputDef struct {
	Name string
	Kind Kind
}

// DurationUnit is the unit a bare numeric duration suffix is interpreted
// in, set per installation.
type DurationUnit int

const (
	Milliseconds DurationUnit = iota
	Frames
)

// Vocabulary is the full installation configuration the lexer/parser and
// executor consult: which names exist, which are blacklisted above a
// given access level, and the numeric caps/defaults validation enforces.
type Vocabulary struct {
	inputs map[string]InputDef
	// Blacklist maps an input name to the minimum access level required
	// to use it.
	Blacklist map[string]access.Level

	// DefaultDurationMs is the duration (in ms) assigned to an input that
	// carries no explicit duration suffix.
	DefaultDurationMs int
	// DefaultDurationUnit is the unit bare numeric suffixes are read in.
	DefaultDurationUnit DurationUnit
	// FrameMs is the ms-per-frame conversion factor used when
	// DefaultDurationUnit == Frames.
	FrameMs float64

	// MaxInputDurationMs caps any single input's duration.
	MaxInputDurationMs int
	// MaxUserDurationMs caps any single input's duration per-user, on top
	// of MaxInputDurationMs.
	MaxUserDurationMs int
	// MaxSimultaneousDurationMs caps the sum of durations of inputs held
	// through the whole sequence.
	MaxSimultaneousDurationMs int
}

// New creates a Vocabulary from a set of input definitions.
func New(defs []InputDef) *Vocabulary {
	v := &Vocabulary{
		inputs:                    make(map[string]InputDef, len(defs)),
		Blacklist:                 make(map[string]access.Level),
		DefaultDurationMs:         200,
		DefaultDurationUnit:       Milliseconds,
		FrameMs:                   1000.0 / 60.0,
		MaxInputDurationMs:        10_000,
		MaxUserDurationMs:         30_000,
		MaxSimultaneousDurationMs: 15_000,
	}
	for _, d := range defs {
		v.inputs[strings.ToLower(d.Name)] = d
	}
	// The wait tokens are always part of the vocabulary — they are
	// structural, not installation-defined.
	v.inputs["."] = InputDef{Name: ".", Kind: Wait}
	v.inputs["#"] = InputDef{Name: "#", Kind: Wait}
	return v
}

// Lookup returns the definition for a case-insensitive input name.
func (v *Vocabulary) Lookup(name string) (InputDef, bool) {
	d, ok := v.inputs[strings.ToLower(name)]
	return d, ok
}

// RequiredLevel returns the minimum access level needed to use name, or
// access.User if it isn't blacklisted.
func (v *Vocabulary) RequiredLevel(name string) access.Level {
	if lvl, ok := v.Blacklist[strings.ToLower(name)]; ok {
		return lvl
	}
	return access.User
}

// Names returns every recognized button/axis name, longest first. The
// lexer does not call it; it matches names by trying prefixes through
// Lookup, longest first.
func (v *Vocabulary) Names() []string {
	names := make([]string, 0, len(v.inputs))
	for n := range v.inputs {
		if n == "." || n == "#" {
			continue
		}
		names = append(names, n)
	}
	// Stable longest-first ordering without importing sort's less-typical
	// comparators: simple insertion by length since vocabularies are small.
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && len(names[j-1]) < len(names[j]); j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}

// FrameToMs converts a frame count to milliseconds using FrameMs.
func (v *Vocabulary) FrameToMs(frames int) int {
	return int(float64(frames)*v.FrameMs + 0.5)
}
