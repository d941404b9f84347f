package reporting

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/suitectl/suitectl/results"
)

// RunSummary is the finished state a sink consumes: the tree plus the run
// identity needed to place the output.
type RunSummary struct {
	RunID string
	Seed  uint64
	Tree  *results.Node
}

// Sink consumes a completed run exactly once.
type Sink interface {
	Flush(ctx context.Context, run *RunSummary) error
}

// Writer fans a completed run out to all configured sinks.
type Writer struct {
	sinks []Sink
}

// NewWriter creates a writer over the given sinks. A writer with no sinks is
// valid and flushes to nothing.
func NewWriter(sinks ...Sink) *Writer {
	return &Writer{sinks: sinks}
}

// Flush delivers the run to every sink concurrently and returns the first
// error. Sinks write independent files, so one failing does not stop others.
func (w *Writer) Flush(ctx context.Context, run *RunSummary) error {
	if run == nil || run.Tree == nil {
		return fmt.Errorf("run summary with a result tree is required")
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, sink := range w.sinks {
		g.Go(func() error {
			return sink.Flush(ctx, run)
		})
	}
	return g.Wait()
}
