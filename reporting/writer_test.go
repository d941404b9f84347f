package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suitectl/suitectl/results"
	"github.com/suitectl/suitectl/types"
)

func sampleSummary() *RunSummary {
	root := results.NewRoot("run", treeStart)
	root.Record("alpha", nil, types.PassedOutcome(2, 0), time.Second)
	return &RunSummary{RunID: "run-42", Seed: 99, Tree: root}
}

func TestJSONSinkWritesReport(t *testing.T) {
	dir := t.TempDir()
	sink := NewJSONSink(dir)

	require.NoError(t, sink.Flush(context.Background(), sampleSummary()))

	data, err := os.ReadFile(filepath.Join(dir, "run-42", ReportFilename))
	require.NoError(t, err)

	var rec Record
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, "run", rec.Name)
	assert.Equal(t, 2, rec.PassCount)
	require.Len(t, rec.Children, 1)
	assert.Equal(t, "alpha", rec.Children[0].Name)
}

func TestTextSummarySinkWritesSummary(t *testing.T) {
	dir := t.TempDir()
	sink := NewTextSummarySink(dir)

	require.NoError(t, sink.Flush(context.Background(), sampleSummary()))

	data, err := os.ReadFile(filepath.Join(dir, "run-42", "summary.txt"))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "alpha")
	assert.Contains(t, content, "result: SUCCESS")
}

func TestFormatTreeFailure(t *testing.T) {
	root := results.NewRoot("run", treeStart)
	root.Record("bad", nil, types.FailedOutcome(0, 1, 0, nil), time.Second)

	content := FormatTree(root)
	assert.Contains(t, content, "result: FAILURE")
	assert.Contains(t, content, "1 failed")
}

type failingSink struct{}

func (failingSink) Flush(context.Context, *RunSummary) error {
	return errors.New("sink exploded")
}

func TestWriterFlushesAllSinks(t *testing.T) {
	dir := t.TempDir()
	writer := NewWriter(NewJSONSink(dir), NewTextSummarySink(dir))

	require.NoError(t, writer.Flush(context.Background(), sampleSummary()))
	_, err := os.Stat(filepath.Join(dir, "run-42", ReportFilename))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "run-42", "summary.txt"))
	assert.NoError(t, err)
}

func TestWriterPropagatesSinkError(t *testing.T) {
	writer := NewWriter(failingSink{})
	err := writer.Flush(context.Background(), sampleSummary())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink exploded")
}

func TestWriterRejectsNilTree(t *testing.T) {
	writer := NewWriter()
	require.Error(t, writer.Flush(context.Background(), nil))
	require.Error(t, writer.Flush(context.Background(), &RunSummary{RunID: "x"}))
}
