// Package runner drives one orchestration run: it resolves the requested
// identifiers through the catalog, partitions them with the node assigner,
// executes every unit as an isolated subprocess (sequentially in the
// coordinator for affine units, on a bounded worker pool for the rest),
// and folds the outcomes into the request-ordered result tree.
//
// No failure mode of a unit escapes as a Go error: crashes, timeouts and
// undecodable results all become Outcome values, so a dying worker can
// never corrupt the overall report.
package runner
