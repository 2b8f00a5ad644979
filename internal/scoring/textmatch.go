package scoring

import (
	"fmt"
	"strings"
	"unicode"
)

// Policy decides how free-text ("short"/"other") answers are auto-graded.
type Policy string

const (
	// PolicyExact accepts a trimmed, byte-equal match.
	PolicyExact Policy = "exact"
	// PolicyNormalized casefolds, drops punctuation and collapses whitespace before comparing.
	PolicyNormalized Policy = "normalized"
	// PolicyManual never auto-marks free text; every answer is flagged for review.
	PolicyManual Policy = "manual"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyExact, PolicyNormalized, PolicyManual:
		return p, nil
	case "":
		return PolicyNormalized, nil
	default:
		return "", fmt.Errorf("unknown free-text policy %q", s)
	}
}

// normalize casefolds, strips punctuation and collapses runs of whitespace.
func normalize(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r):
		default:
			if space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = false
			out = append(out, unicode.ToLower(r))
		}
	}
	return string(out)
}

// matchText compares a student's text with the canonical answer under the policy.
// The second return value is false when the policy cannot decide (manual review).
func matchText(policy Policy, given, canonical string) (correct bool, decided bool) {
	switch policy {
	case PolicyExact:
		return strings.TrimSpace(given) == strings.TrimSpace(canonical), true
	case PolicyNormalized:
		return normalize(given) == normalize(canonical), true
	default:
		return false, false
	}
}
