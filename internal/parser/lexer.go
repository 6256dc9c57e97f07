package parser

import (
	"strconv"
	"strings"

	"inputbot/internal/vocab"
)

// rawInput is one lexed member token before port/level resolution.
type rawInput struct {
	name         string
	kind         vocab.Kind
	port         int
	explicitPort bool
	hasDuration  bool
	duration     int
	unitSeconds  bool // true if the 's' unit was used
	unitMs       bool // true if the 'ms' unit was used (as opposed to 's' or the installation default)
	hasPercent   bool
	percent      int
	hold         bool
	release      bool
}

// lexStep splits one whitespace-delimited step into its '+'-joined member
// tokens and lexes each.
func lexStep(step string, v *vocab.Vocabulary) ([]rawInput, bool) {
	parts := strings.Split(step, "+")
	out := make([]rawInput, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return nil, false
		}
		ri, ok := lexMember(p, v)
		if !ok {
			return nil, false
		}
		out = append(out, ri)
	}
	return out, true
}

// lexMember lexes a single "input(port)?(duration)?(ms|s)?(percent)?(flag)?"
// token. The input name is matched by longest-prefix against the
// vocabulary, since installation names may themselves contain digits
// (e.g. "l1", "r2") that would otherwise be mistaken for a duration.
func lexMember(tok string, v *vocab.Vocabulary) (rawInput, bool) {
	lower := strings.ToLower(tok)

	nameLen := 0
	var def vocab.InputDef
	for i := len(lower); i >= 1; i-- {
		if d, ok := v.Lookup(lower[:i]); ok {
			nameLen = i
			def = d
			break
		}
	}
	if nameLen == 0 {
		return rawInput{}, false
	}

	ri := rawInput{name: lower[:nameLen], kind: def.Kind}
	suffix := lower[nameLen:]
	pos := 0
	n := len(suffix)

	// port: '&' digit+
	if pos < n && suffix[pos] == '&' {
		start := pos + 1
		i := start
		for i < n && isDigit(suffix[i]) {
			i++
		}
		if i == start {
			return rawInput{}, false
		}
		port, err := strconv.Atoi(suffix[start:i])
		if err != nil {
			return rawInput{}, false
		}
		ri.port = port
		ri.explicitPort = true
		pos = i
	}

	// duration digit+, optionally followed by unit, optionally followed
	// by a second digit+ '%' block. A digit+ run immediately followed by
	// '%' is instead read as the percent with no duration present.
	if pos < n && isDigit(suffix[pos]) {
		start := pos
		i := start
		for i < n && isDigit(suffix[i]) {
			i++
		}
		numStr := suffix[start:i]

		if i < n && suffix[i] == '%' {
			pct, err := strconv.Atoi(numStr)
			if err != nil {
				return rawInput{}, false
			}
			ri.hasPercent = true
			ri.percent = pct
			pos = i + 1
		} else {
			dur, err := strconv.Atoi(numStr)
			if err != nil {
				return rawInput{}, false
			}
			ri.hasDuration = true
			ri.duration = dur
			pos = i

			switch {
			case strings.HasPrefix(suffix[pos:], "ms"):
				ri.unitMs = true
				pos += 2
			case pos < n && suffix[pos] == 's':
				ri.unitSeconds = true
				pos++
			}

			if pos < n && isDigit(suffix[pos]) {
				start2 := pos
				i2 := start2
				for i2 < n && isDigit(suffix[i2]) {
					i2++
				}
				if i2 < n && suffix[i2] == '%' {
					pct, err := strconv.Atoi(suffix[start2:i2])
					if err != nil {
						return rawInput{}, false
					}
					ri.hasPercent = true
					ri.percent = pct
					pos = i2 + 1
				} else {
					return rawInput{}, false
				}
			}
		}
	}

	// hold/release flag
	if pos < n {
		switch suffix[pos] {
		case '_':
			ri.hold = true
			pos++
		case '-':
			ri.release = true
			pos++
		}
	}

	if pos != n {
		return rawInput{}, false
	}
	if ri.hold && ri.release {
		return rawInput{}, false
	}
	return ri, true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
