// Package heuristic implements the pure, side-effect-free string-pattern
// scorer that flags evasion techniques a fast-path/policy check would miss.
package heuristic

import "regexp"

// Signal is one flagged evasion technique, carrying a confidence score.
type Signal struct {
	Category   string
	Confidence int
	Reason     string
}

// subCheck runs one detection family and returns at most one Signal.
type subCheck struct {
	category string
	rules    []signalRule
}

type signalRule struct {
	pattern    *regexp.Regexp
	confidence int
	reason     string
}

var checks = []subCheck{
	{
		category: "encoding_evasion",
		rules: []signalRule{
			{regexp.MustCompile(`base64\s+(-d|--decode)\s*\|\s*(sh|bash|zsh)\b`), 90, "base64-decoded payload piped to a shell"},
			{regexp.MustCompile(`echo\s+\S+\s*\|\s*base64\s+(-d|--decode)`), 85, "base64 decode of an inline string"},
			{regexp.MustCompile(`xxd\s+-r(\s+-p)?\s*\|\s*(sh|bash)\b`), 85, "hex-decoded payload piped to a shell"},
			{regexp.MustCompile(`\\x[0-9a-fA-F]{2}(\\x[0-9a-fA-F]{2}){3,}`), 80, "escaped hex byte sequence"},
			{regexp.MustCompile(`\\[0-7]{3}(\\[0-7]{3}){3,}`), 80, "escaped octal byte sequence"},
		},
	},
	{
		category: "variable_substitution",
		rules: []signalRule{
			{regexp.MustCompile(`eval\s+.*\$\{?\w+\}?`), 85, "eval of an expanded variable"},
			{regexp.MustCompile(`\$\{[^}]*:-[^}]*\}.*\|\s*(sh|bash)\b`), 80, "array/parameter expansion used to build a command"},
			{regexp.MustCompile(`\$\(\s*echo\s+[^)]*\)\s*(-[a-zA-Z]+\s*)*\$\(`), 75, "variable-built command assembled from substitutions"},
		},
	},
	{
		category: "obfuscation",
		rules: []signalRule{
			{regexp.MustCompile(`\br""?m\b|\br\\m\b|r\s*"\s*"\s*m`), 90, "quote insertion splitting a dangerous command"},
			{regexp.MustCompile(`(\\.){3,}`), 80, "backslash splitting of command characters"},
			{regexp.MustCompile(`""{2,}|''{2,}`), 75, "excessive empty-quote insertion"},
			{regexp.MustCompile(`\\0|\\x00`), 80, "null-byte escape"},
			{regexp.MustCompile(`\b[rR][mM]\b`), 70, "case-varied dangerous command"},
		},
	},
	{
		category: "indirect_execution",
		rules: []signalRule{
			{regexp.MustCompile(`\beval\s`), 75, "eval of a constructed string"},
			{regexp.MustCompile(`\b(bash|sh|zsh)\s+-c\s`), 80, "indirect execution via -c"},
			{regexp.MustCompile(`\bsource\s+/(tmp|var/tmp|dev/shm)/`), 85, "sourcing a script from a world-writable directory"},
			{regexp.MustCompile(`^\s*` + "`" + `[^` + "`" + `]+` + "`" + `\s*$`), 75, "backtick command substitution as the root command"},
		},
	},
	{
		category: "network_evasion",
		rules: []signalRule{
			{regexp.MustCompile(`curl\s[^|]*\|\s*(sh|bash)\b`), 90, "curl piped directly to a shell"},
			{regexp.MustCompile(`wget\s+-O-?\s*[^|]*\|\s*(sh|bash)\b`), 90, "wget piped directly to a shell"},
			{regexp.MustCompile(`%[0-9a-fA-F]{2}(%[0-9a-fA-F]{2}){3,}`), 75, "URL-encoded address or payload"},
		},
	},
}

// Detect runs all five sub-checks against operation and returns the
// highest-confidence signal, or nil when nothing matched.
func Detect(operation string) *Signal {
	var best *Signal
	for _, c := range checks {
		for _, r := range c.rules {
			if !r.pattern.MatchString(operation) {
				continue
			}
			sig := Signal{Category: c.category, Confidence: r.confidence, Reason: r.reason}
			if best == nil || sig.Confidence > best.Confidence {
				best = &sig
			}
			break
		}
	}
	return best
}

// Classification of a detector result per spec's confidence thresholds.
type Classification string

const (
	ClassNone  Classification = "none"
	ClassWarn  Classification = "warn"
	ClassBlock Classification = "block"
)

// Classify maps a Signal (possibly nil) onto the block/warn/none thresholds.
func Classify(sig *Signal) Classification {
	switch {
	case sig == nil:
		return ClassNone
	case sig.Confidence >= 70:
		return ClassBlock
	case sig.Confidence >= 40:
		return ClassWarn
	default:
		return ClassNone
	}
}
