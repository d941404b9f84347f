package reporting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/suitectl/suitectl/results"
	"github.com/suitectl/suitectl/types"
)

// TextSummarySink writes a plain-text rendering of the result tree to
// <baseDir>/<runID>/summary.txt.
type TextSummarySink struct {
	baseDir string
}

var _ Sink = (*TextSummarySink)(nil)

// NewTextSummarySink creates a text sink rooted at baseDir.
func NewTextSummarySink(baseDir string) *TextSummarySink {
	return &TextSummarySink{baseDir: baseDir}
}

// Flush renders the tree and writes it once.
func (s *TextSummarySink) Flush(ctx context.Context, run *RunSummary) error {
	outputDir := filepath.Join(s.baseDir, run.RunID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	content := FormatTree(run.Tree)
	path := filepath.Join(outputDir, "summary.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}
	return nil
}

// FormatTree renders a result tree as an indented text listing with one line
// per testset and a stats footer.
func FormatTree(root *results.Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", root.Name, root.Duration())
	for _, c := range root.Children {
		formatNode(&b, c, 1)
	}

	stats := root.Stats()
	fmt.Fprintf(&b, "\nassertions: %d passed, %d failed, %d broken\n",
		stats.Passed, stats.Failed, stats.Broken)
	fmt.Fprintf(&b, "units errored: %d, interrupted: %d\n",
		stats.Errored, stats.Interrupted)
	if root.ErrorFree() {
		b.WriteString("result: SUCCESS\n")
	} else {
		b.WriteString("result: FAILURE\n")
	}
	return b.String()
}

func formatNode(b *strings.Builder, n *results.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	if n.Leaf() {
		fmt.Fprintf(b, "%s%s %s\n", indent, n.Name, leafSuffix(n.Outcome))
		return
	}
	fmt.Fprintf(b, "%s%s (%s)\n", indent, n.Name, n.Duration())
	for _, c := range n.Children {
		formatNode(b, c, depth+1)
	}
}

func leafSuffix(o *types.Outcome) string {
	if o == nil {
		return ""
	}
	switch o.Kind {
	case types.OutcomeErrored:
		return fmt.Sprintf("[%s]", o.Kind)
	case types.OutcomeInterrupted:
		return fmt.Sprintf("[%s]", o.Kind)
	default:
		return fmt.Sprintf("[%d passed, %d failed, %d broken]", o.Passed, o.Failed, o.Broken)
	}
}
