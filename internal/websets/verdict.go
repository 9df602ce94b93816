package websets

import (
	"strings"

	"github.com/fathomchat/chat-plane/internal/exa"
)

// Verdict is the closed tri-state outcome of evaluating one criterion
// against one entity. The raw heterogeneous remote shape never propagates
// past this boundary.
type Verdict string

const (
	VerdictMatch   Verdict = "Match"
	VerdictMiss    Verdict = "Miss"
	VerdictUnknown Verdict = "Unknown"
)

// VerdictOf normalizes the remote verdict vocabulary. The comparison is
// case-insensitive and whitespace-trimmed; anything outside the known
// vocabulary, including a missing verdict, maps to Unknown.
func VerdictOf(ev exa.Evaluation) Verdict {
	switch strings.ToLower(strings.TrimSpace(ev.RawVerdict())) {
	case "yes", "match", "true":
		return VerdictMatch
	case "no", "miss", "false":
		return VerdictMiss
	default:
		return VerdictUnknown
	}
}

func criterionEqual(requested, evaluated string) bool {
	return strings.EqualFold(strings.TrimSpace(requested), strings.TrimSpace(evaluated))
}

// VerdictFor resolves a requested criterion against the item's evaluations.
// A criterion with no matching evaluation is Unknown.
func VerdictFor(criterion string, evaluations []exa.Evaluation) Verdict {
	for _, ev := range evaluations {
		if criterionEqual(criterion, ev.CriterionText()) {
			return VerdictOf(ev)
		}
	}
	return VerdictUnknown
}

// SatisfiesAll reports whether every requested criterion resolves to Match.
// An empty criteria list is vacuously true.
func SatisfiesAll(criteria []string, evaluations []exa.Evaluation) bool {
	for _, criterion := range criteria {
		if VerdictFor(criterion, evaluations) != VerdictMatch {
			return false
		}
	}
	return true
}
