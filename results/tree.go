// Package results holds the hierarchical result tree ("testset" tree) built
// incrementally during one orchestration run. The tree is owned and mutated
// exclusively by the coordinator; workers only ever hand outcomes back.
package results

import (
	"time"

	"github.com/suitectl/suitectl/types"
)

// Node is one testset in the result tree: a name, a synthetic time window,
// an ordered sequence of child testsets, and a leaf Outcome when the node
// has no children. Aggregation is purely additive and order-preserving; an
// entry is never overwritten once recorded.
type Node struct {
	Name     string
	Start    time.Time
	End      time.Time
	Outcome  *types.Outcome // set on leaves only
	Children []*Node
}

// Stats aggregates leaf outcomes below a node. Passed/Failed/Broken count
// assertions; Errored and Interrupted count leaves in those states.
type Stats struct {
	Passed      int
	Failed      int
	Broken      int
	Errored     int
	Interrupted int
}

// NewRoot creates an empty tree anchored at start. The root's end time moves
// forward as children are recorded, so the root duration always equals the
// sum of its children's durations.
func NewRoot(name string, start time.Time) *Node {
	return &Node{Name: name, Start: start, End: start}
}

// Record appends a new child testset under n, preserving insertion order.
//
// When subtree is non-nil the executed unit reported its own nested
// breakdown; the subtree's internal structure is adopted verbatim under the
// given child name, with the duration distributed over its leaves so the
// sum law holds at every level. When subtree is nil the bare Outcome is
// wrapped in a synthetic single-child leaf so the tree shape stays uniform:
// one testset per requested unit, each with at least one leaf.
func (n *Node) Record(childName string, subtree *Node, outcome types.Outcome, duration time.Duration) *Node {
	start := n.End
	end := start.Add(duration)

	var child *Node
	if subtree != nil {
		child = subtree
		child.Name = childName
		assignTimes(child, start, end)
	} else {
		o := outcome
		leaf := &Node{Name: childName, Start: start, End: end, Outcome: &o}
		child = &Node{Name: childName, Start: start, End: end, Children: []*Node{leaf}}
	}

	n.Children = append(n.Children, child)
	n.End = end
	return child
}

// MarkUnscheduled guarantees one top-level entry per requested identifier.
// For every identifier that never reached Record (an earlier abort stopped
// the run), an Interrupted leaf is inserted at the identifier's request-order
// position. Already recorded entries keep their contents untouched.
func (n *Node) MarkUnscheduled(requested []string) {
	recorded := make(map[string]*Node, len(n.Children))
	for _, c := range n.Children {
		if _, ok := recorded[c.Name]; !ok {
			recorded[c.Name] = c
		}
	}

	children := make([]*Node, 0, len(requested))
	for _, id := range requested {
		if c, ok := recorded[id]; ok {
			children = append(children, c)
			continue
		}
		o := types.InterruptedOutcome()
		leaf := &Node{Name: id, Start: n.End, End: n.End, Outcome: &o}
		children = append(children, &Node{
			Name:     id,
			Start:    n.End,
			End:      n.End,
			Children: []*Node{leaf},
		})
	}
	n.Children = children
}

// Duration is the synthetic wall-time window of this testset.
func (n *Node) Duration() time.Duration {
	return n.End.Sub(n.Start)
}

// Leaf reports whether this node carries an outcome directly.
func (n *Node) Leaf() bool {
	return len(n.Children) == 0
}

// Stats walks the subtree and sums its leaf outcomes.
func (n *Node) Stats() Stats {
	var s Stats
	n.walkLeaves(func(leaf *Node) {
		o := leaf.Outcome
		if o == nil {
			return
		}
		s.Passed += o.Passed
		s.Failed += o.Failed
		s.Broken += o.Broken
		switch o.Kind {
		case types.OutcomeErrored:
			s.Errored++
		case types.OutcomeInterrupted:
			s.Interrupted++
		}
	})
	return s
}

// ErrorFree reports the root success predicate: every leaf outcome is passed
// or broken, and no leaf is errored or interrupted. Broken counts do not
// cause failure.
func (n *Node) ErrorFree() bool {
	ok := true
	n.walkLeaves(func(leaf *Node) {
		if leaf.Outcome == nil {
			return
		}
		if !leaf.Outcome.ErrorFree() {
			ok = false
		}
	})
	return ok
}

// Outcomes returns the leaf outcomes below n in tree order.
func (n *Node) Outcomes() []types.Outcome {
	var out []types.Outcome
	n.walkLeaves(func(leaf *Node) {
		if leaf.Outcome != nil {
			out = append(out, *leaf.Outcome)
		}
	})
	return out
}

func (n *Node) walkLeaves(fn func(*Node)) {
	if n.Leaf() {
		fn(n)
		return
	}
	for _, c := range n.Children {
		c.walkLeaves(fn)
	}
}

// leafCount counts the leaves below n, treating a childless node as one leaf.
func leafCount(n *Node) int {
	if n.Leaf() {
		return 1
	}
	sum := 0
	for _, c := range n.Children {
		sum += leafCount(c)
	}
	return sum
}

// assignTimes distributes the window [start, end] over the subtree so that
// every parent's duration equals the sum of its children's durations. Each
// child receives a share proportional to its leaf count; the last child
// absorbs rounding remainders.
func assignTimes(n *Node, start, end time.Time) {
	n.Start, n.End = start, end
	if n.Leaf() {
		return
	}

	total := leafCount(n)
	window := end.Sub(start)
	cursor := start
	for i, c := range n.Children {
		var childEnd time.Time
		if i == len(n.Children)-1 {
			childEnd = end
		} else {
			share := time.Duration(int64(window) * int64(leafCount(c)) / int64(total))
			childEnd = cursor.Add(share)
		}
		assignTimes(c, cursor, childEnd)
		cursor = childEnd
	}
}
