package runner

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/suitectl/suitectl/results"
	"github.com/suitectl/suitectl/types"
)

// UnitReport is the JSON document a test unit prints on stdout: a nested
// testset record with assertion counts and optional children. A populated
// Error field means the unit's own reporting layer propagated a structured
// failure before finishing.
type UnitReport struct {
	Name     string                `json:"name"`
	Passed   int                   `json:"passed"`
	Failed   int                   `json:"failed"`
	Broken   int                   `json:"broken"`
	Failures []types.FailureDetail `json:"failures,omitempty"`
	Children []UnitReport          `json:"children,omitempty"`
	Error    *UnitError            `json:"error,omitempty"`
}

// UnitError carries a structured failure propagated by the unit's reporting
// layer, plus the pass/broken counts observed before the failure.
type UnitError struct {
	Message string `json:"message"`
	Passed  int    `json:"passed"`
	Broken  int    `json:"broken"`
}

// ParseUnitReport decodes a unit's stdout into a UnitReport. Any decode
// failure means the result is not recoverable as structured data; callers
// classify that as a process error.
func ParseUnitReport(r io.Reader) (*UnitReport, error) {
	dec := json.NewDecoder(r)
	var rep UnitReport
	if err := dec.Decode(&rep); err != nil {
		return nil, fmt.Errorf("decoding unit report: %w", err)
	}
	return &rep, nil
}

// Totals sums assertion counts over the report and all nested children.
func (r *UnitReport) Totals() (passed, failed, broken int, failures []types.FailureDetail) {
	passed, failed, broken = r.Passed, r.Failed, r.Broken
	failures = append(failures, r.Failures...)
	for i := range r.Children {
		p, f, b, ff := r.Children[i].Totals()
		passed += p
		failed += f
		broken += b
		failures = append(failures, ff...)
	}
	return passed, failed, broken, failures
}

// OutcomeFromReport classifies a decoded report into an Outcome.
func OutcomeFromReport(rep *UnitReport) types.Outcome {
	if rep.Error != nil {
		return types.RemoteErrorOutcome(rep.Error.Message, rep.Error.Passed, rep.Error.Broken)
	}
	passed, failed, broken, failures := rep.Totals()
	if failed > 0 {
		return types.FailedOutcome(passed, failed, broken, failures)
	}
	return types.PassedOutcome(passed, broken)
}

// Subtree converts a nested report into a result subtree, preserving the
// unit's internal structure verbatim. Nodes with children become containers;
// childless nodes become leaves carrying their own counts as an outcome.
// Timing is assigned later by the result tree when the subtree is recorded.
func Subtree(rep *UnitReport) *results.Node {
	node := &results.Node{Name: rep.Name}

	if len(rep.Children) == 0 {
		var o types.Outcome
		if rep.Failed > 0 {
			o = types.FailedOutcome(rep.Passed, rep.Failed, rep.Broken, rep.Failures)
		} else {
			o = types.PassedOutcome(rep.Passed, rep.Broken)
		}
		node.Outcome = &o
		return node
	}

	// Assertions recorded directly on a container keep their own leaf so no
	// count is lost when children are present.
	if rep.Passed+rep.Failed+rep.Broken > 0 {
		var own types.Outcome
		if rep.Failed > 0 {
			own = types.FailedOutcome(rep.Passed, rep.Failed, rep.Broken, rep.Failures)
		} else {
			own = types.PassedOutcome(rep.Passed, rep.Broken)
		}
		node.Children = append(node.Children, &results.Node{Name: rep.Name, Outcome: &own})
	}

	for i := range rep.Children {
		node.Children = append(node.Children, Subtree(&rep.Children[i]))
	}
	return node
}
