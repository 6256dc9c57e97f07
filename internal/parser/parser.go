package parser

import (
	"strings"

	"inputbot/internal/access"
	"inputbot/internal/vocab"
)

// Options bundles everything the parser needs beyond the raw text: the
// installation vocabulary, the issuer's level and default port, and the
// live controller count (needed to bounds-check explicit &p suffixes).
type Options struct {
	Vocabulary      *vocab.Vocabulary
	IssuerLevel     access.Level
	DefaultPort     int
	ControllerCount int
	// MaxUserDurationMs overrides Vocabulary.MaxUserDurationMs when > 0;
	// lets callers apply a per-user cap distinct from the installation
	// default.
	MaxUserDurationMs int
}

// Parse lexes and validates already macro-expanded text into an
// InputSequence. It is a pure function of its arguments, so the same
// text and options always yield the same sequence.
func Parse(text string, opts Options) *InputSequence {
	seq := &InputSequence{Raw: text}

	fields := strings.Fields(text)
	if len(fields) == 0 {
		seq.Result = NormalMsg
		return seq
	}

	stepsRaw := make([][]rawInput, 0, len(fields))
	for _, f := range fields {
		ris, ok := lexStep(f, opts.Vocabulary)
		if !ok {
			seq.Result = NormalMsg
			return seq
		}
		stepsRaw = append(stepsRaw, ris)
	}

	maxUserMs := opts.MaxUserDurationMs
	if maxUserMs <= 0 {
		maxUserMs = opts.Vocabulary.MaxUserDurationMs
	}

	steps := make([]InputSubSequence, 0, len(stepsRaw))
	hasPercent := make([][]bool, len(stepsRaw))
	for si, ris := range stepsRaw {
		step := InputSubSequence{Inputs: make([]Input, 0, len(ris))}
		hasPercent[si] = make([]bool, 0, len(ris))
		for _, ri := range ris {
			in := resolveInput(ri, opts)

			// Rule 2: blacklist.
			required := opts.Vocabulary.RequiredLevel(in.Name)
			if !opts.IssuerLevel.Meets(required) {
				seq.Result = BlacklistedInput
				seq.FailureDetail = in.Name
				return seq
			}

			// Rule 3: per-input / per-user duration caps.
			if in.DurationMs > opts.Vocabulary.MaxInputDurationMs || in.DurationMs > maxUserMs {
				seq.Result = ExceededMaxDuration
				seq.FailureDetail = in.Name
				return seq
			}

			step.Inputs = append(step.Inputs, in)
			hasPercent[si] = append(hasPercent[si], ri.hasPercent)
		}
		steps = append(steps, step)
	}

	// Rule 4: simultaneous-duration cap across held-through-whole-sequence
	// inputs, checked before rules 5/6 so it wins ties per the
	// first-failure-determines-the-result ordering.
	heldSum := 0
	for _, step := range steps {
		for _, in := range step.Inputs {
			if in.Hold {
				heldSum += in.DurationMs
			}
		}
	}
	if heldSum > opts.Vocabulary.MaxSimultaneousDurationMs {
		seq.Result = ExceededMaxSimultaneousDuration
		return seq
	}

	for si, step := range steps {
		for ii, in := range step.Inputs {
			// Rule 5: port bounds (1-based on the wire, 0-based internally).
			if in.ExplicitPort {
				if in.Port < 0 || in.Port >= opts.ControllerCount {
					seq.Result = InvalidPortNumber
					seq.FailureDetail = in.Name
					return seq
				}
			}

			// Rule 6: axis percent range, and no percent on a non-axis input.
			if in.Kind == vocab.Axis {
				if in.Percent < 0 || in.Percent > 100 {
					seq.Result = InvalidInput
					seq.FailureDetail = in.Name
					return seq
				}
			} else if hasPercent[si][ii] {
				seq.Result = InvalidInput
				seq.FailureDetail = in.Name
				return seq
			}
		}
	}

	total := 0
	for _, step := range steps {
		total += step.MaxDuration()
	}

	seq.Steps = steps
	seq.TotalMs = total
	seq.Result = Valid
	return seq
}

func resolveInput(ri rawInput, opts Options) Input {
	in := Input{
		Name:         ri.name,
		Kind:         ri.kind,
		ExplicitPort: ri.explicitPort,
		Hold:         ri.hold,
		Release:      ri.release,
		Percent:      ri.percent,
	}

	if ri.explicitPort {
		in.Port = ri.port - 1 // wire is 1-based, internal port indices are 0-based
	} else {
		in.Port = opts.DefaultPort
	}

	switch {
	case !ri.hasDuration:
		in.DurationMs = opts.Vocabulary.DefaultDurationMs
	case ri.unitSeconds:
		in.DurationMs = ri.duration * 1000
	case ri.unitMs:
		in.DurationMs = ri.duration
	case opts.Vocabulary.DefaultDurationUnit == vocab.Frames:
		// A bare numeric duration with no 'ms'/'s' suffix is read in the
		// installation's configured default unit.
		in.DurationMs = opts.Vocabulary.FrameToMs(ri.duration)
	default:
		in.DurationMs = ri.duration
	}

	return in
}
