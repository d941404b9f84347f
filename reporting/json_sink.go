package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ReportFilename is the name of the structured report inside the run dir.
const ReportFilename = "report.json"

// JSONSink writes the structured report to <baseDir>/<runID>/report.json.
type JSONSink struct {
	baseDir string
}

var _ Sink = (*JSONSink)(nil)

// NewJSONSink creates a sink rooted at baseDir.
func NewJSONSink(baseDir string) *JSONSink {
	return &JSONSink{baseDir: baseDir}
}

// Flush writes the report once, at the end of the run.
func (s *JSONSink) Flush(ctx context.Context, run *RunSummary) error {
	outputDir := filepath.Join(s.baseDir, run.RunID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	rec := BuildRecord(run.Tree)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(outputDir, ReportFilename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

// Path returns where the report for runID is written.
func (s *JSONSink) Path(runID string) string {
	return filepath.Join(s.baseDir, runID, ReportFilename)
}
