package suitectl

import (
	"fmt"
	"strings"
	"time"

	"github.com/suitectl/suitectl/results"
	"github.com/suitectl/suitectl/types"
)

// getResultString returns a short glyphed string representing a result state.
func getResultString(kind types.OutcomeKind) string {
	switch kind {
	case types.OutcomePassed:
		return "✓ pass"
	case types.OutcomeBroken:
		return "~ broken"
	case types.OutcomeErrored:
		return "! error"
	case types.OutcomeInterrupted:
		return "- interrupted"
	default:
		return "✗ fail"
	}
}

// nodeKind rolls a testset's leaves up into a single display state. Errored
// dominates, then interrupted, then failed; a broken-only testset shows as
// broken rather than passed.
func nodeKind(n *results.Node) types.OutcomeKind {
	if n.Leaf() && n.Outcome != nil {
		return n.Outcome.Kind
	}
	s := n.Stats()
	switch {
	case s.Errored > 0:
		return types.OutcomeErrored
	case s.Interrupted > 0:
		return types.OutcomeInterrupted
	case s.Failed > 0:
		return types.OutcomeFailed
	case s.Passed == 0 && s.Broken > 0:
		return types.OutcomeBroken
	default:
		return types.OutcomePassed
	}
}

// firstLine returns the first line of a potentially multi-line message,
// truncated for table display.
func firstLine(s string) string {
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[:idx]
	}
	if len(s) > 80 {
		return s[:70] + "..."
	}
	return s
}

// formatDuration formats the duration to seconds with 1 decimal place.
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
