// Package reporting turns a finished result tree into its external
// representations: the nested JSON report and the plain-text summary.
// Everything here is a pure function of the tree; no sink mutates it.
package reporting

import (
	"time"

	"github.com/suitectl/suitectl/results"
	"github.com/suitectl/suitectl/types"
)

// Record is one node of the structured report: the JSON shape written for
// every testset in the tree. Leaves carry their own counts; containers carry
// the rollup of their children, so the counts obey the same sum law as the
// tree itself.
type Record struct {
	Name        string   `json:"name"`
	TimeStart   float64  `json:"time_start"`
	TimeEnd     float64  `json:"time_end"`
	PassCount   int      `json:"pass_count"`
	FailCount   int      `json:"fail_count"`
	BrokenCount int      `json:"broken_count"`
	ErrorCount  int      `json:"error_count"`
	Children    []Record `json:"children"`
}

// BuildRecord converts a result tree into its report representation. Errored
// and interrupted leaves both count toward error_count: neither produced a
// trustworthy assertion tally, and consumers only need to know the unit did
// not complete normally.
func BuildRecord(n *results.Node) Record {
	rec := Record{
		Name:      n.Name,
		TimeStart: epochSeconds(n.Start),
		TimeEnd:   epochSeconds(n.End),
		Children:  []Record{},
	}

	if n.Leaf() {
		if o := n.Outcome; o != nil {
			rec.PassCount = o.Passed
			rec.FailCount = o.Failed
			rec.BrokenCount = o.Broken
			if o.Kind == types.OutcomeErrored || o.Kind == types.OutcomeInterrupted {
				rec.ErrorCount = 1
			}
		}
		return rec
	}

	for _, c := range n.Children {
		child := BuildRecord(c)
		rec.PassCount += child.PassCount
		rec.FailCount += child.FailCount
		rec.BrokenCount += child.BrokenCount
		rec.ErrorCount += child.ErrorCount
		rec.Children = append(rec.Children, child)
	}
	return rec
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
