package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suitectl/suitectl/catalog"
	"github.com/suitectl/suitectl/schedule"
	"github.com/suitectl/suitectl/types"
)

type unitSpec struct {
	id     string
	script string
	affine bool
}

var passScript = `echo "{\"name\": \"$1\", \"passed\": 2}"` + "\n"

// newTestOrchestrator builds a real catalog and assigner over shell-script
// units and returns an orchestrator driving them through /bin/sh.
func newTestOrchestrator(t *testing.T, specs []unitSpec, runCfg types.RunConfig, concurrency int) *Orchestrator {
	t.Helper()
	dir := t.TempDir()

	var manifest strings.Builder
	manifest.WriteString("units:\n")
	var affine []string
	for _, spec := range specs {
		file := spec.id + ".test"
		require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(spec.script), 0755))
		fmt.Fprintf(&manifest, "  - id: %s\n    file: %s\n", spec.id, file)
		if spec.affine {
			affine = append(affine, spec.id)
		}
	}
	if len(affine) > 0 {
		manifest.WriteString("affine:\n")
		for _, id := range affine {
			fmt.Fprintf(&manifest, "  - %s\n", id)
		}
	}
	manifestPath := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(manifest.String()), 0644))

	cat, err := catalog.New(catalog.Config{Log: slog.Default(), ManifestFile: manifestPath})
	require.NoError(t, err)

	assigner := schedule.NewAssigner(schedule.Config{
		Log:           slog.Default(),
		Affine:        cat.AffineSet(),
		MemoryHungry:  cat.MemoryHungrySet(),
		MemoryCeiling: runCfg.MemoryCeiling,
	})

	orchestrator, err := NewOrchestrator(Config{
		Catalog:      cat,
		Assigner:     assigner,
		RunConfig:    runCfg,
		RunnerBinary: "/bin/sh",
		Concurrency:  concurrency,
		Log:          slog.Default(),
	})
	require.NoError(t, err)
	return orchestrator
}

func treeNames(result *RunResult) []string {
	names := make([]string, len(result.Tree.Children))
	for i, c := range result.Tree.Children {
		names[i] = c.Name
	}
	return names
}

func TestRunThreePassingUnits(t *testing.T) {
	specs := []unitSpec{
		{id: "alpha", script: `echo '{"name": "alpha", "passed": 1}'`},
		{id: "beta", script: `echo '{"name": "beta", "passed": 2}'`},
		{id: "gamma", script: `echo '{"name": "gamma", "passed": 3}'`},
	}
	o := newTestOrchestrator(t, specs, types.RunConfig{
		Units: []string{"alpha", "beta", "gamma"},
		Seed:  7,
	}, 0)

	result, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.ErrorFree)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, treeNames(result))
	assert.Equal(t, 6, result.Stats.Passed)
	assert.Zero(t, result.Stats.Failed)
	assert.Zero(t, result.Stats.Errored)
	assert.Zero(t, result.Stats.Interrupted)
	assert.Contains(t, result.String(), "Seed: 7")
}

func TestRunMissingIdentifierIsFatal(t *testing.T) {
	specs := []unitSpec{
		{id: "alpha", script: passScript},
	}
	o := newTestOrchestrator(t, specs, types.RunConfig{
		Units: []string{"alpha", "ghost"},
	}, 0)

	result, err := o.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, catalog.IsCatalogError(err))
	assert.Contains(t, err.Error(), "ghost")
}

func TestRunDeduplicatesRequest(t *testing.T) {
	specs := []unitSpec{
		{id: "alpha", script: `echo '{"name": "alpha", "passed": 1}'`},
		{id: "beta", script: `echo '{"name": "beta", "passed": 1}'`},
	}
	o := newTestOrchestrator(t, specs, types.RunConfig{
		Units: []string{"beta", "alpha", "beta"},
	}, 0)

	result, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"beta", "alpha"}, treeNames(result))
}

func TestRunTimeoutDoesNotStopTheRun(t *testing.T) {
	specs := []unitSpec{
		{id: "slow", script: "exec sleep 5\n"},
		{id: "quick", script: `echo '{"name": "quick", "passed": 1}'`},
	}
	o := newTestOrchestrator(t, specs, types.RunConfig{
		Units:   []string{"slow", "quick"},
		Timeout: 200 * time.Millisecond,
	}, 0)

	result, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, result.ErrorFree)
	assert.Equal(t, 1, result.Stats.Errored)
	assert.Equal(t, 1, result.Stats.Passed)
	assert.Zero(t, result.Stats.Interrupted, "a timeout alone does not abort the run")

	require.Len(t, result.Executions, 2)
	slow := result.Executions[0]
	assert.True(t, slow.Outcome.Timeout)
	assert.Contains(t, result.String(), "timeout")
}

func TestRunAbortOnErrorMarksRemainderInterrupted(t *testing.T) {
	specs := []unitSpec{
		{id: "crash", script: "kill -9 $$\n", affine: true},
		{id: "later-1", script: passScript, affine: true},
		{id: "later-2", script: passScript, affine: true},
	}
	o := newTestOrchestrator(t, specs, types.RunConfig{
		Units:        []string{"crash", "later-1", "later-2"},
		AbortOnError: true,
	}, 0)

	result, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Aborted)
	assert.False(t, result.ErrorFree)
	assert.Equal(t, 1, result.Stats.Errored)
	assert.Equal(t, 2, result.Stats.Interrupted)
	assert.Equal(t, []string{"later-1", "later-2"}, result.Interrupted)

	// Interrupted units still appear as top-level entries in request order.
	assert.Equal(t, []string{"crash", "later-1", "later-2"}, treeNames(result))
	assert.Contains(t, result.String(), "interrupted")
}

func TestRunSameSeedYieldsSameOutcomes(t *testing.T) {
	specs := []unitSpec{
		{id: "steady", script: `echo "{\"name\": \"steady-$SUITECTL_SEED\", \"passed\": 2}"`},
		{id: "flunk", script: `echo '{"name": "flunk", "passed": 1, "failed": 1}'`},
		{id: "noise", script: "echo not a report\n"},
	}
	runCfg := types.RunConfig{
		Units: []string{"steady", "flunk", "noise"},
		Seed:  11,
	}

	run := func() map[string]types.Outcome {
		o := newTestOrchestrator(t, specs, runCfg, 2)
		result, err := o.Run(context.Background())
		require.NoError(t, err)
		outcomes := make(map[string]types.Outcome, len(result.Executions))
		for _, execution := range result.Executions {
			outcomes[execution.Unit.ID] = execution.Outcome
		}
		return outcomes
	}

	first := run()
	second := run()

	// With a fixed seed and no flaky units, a re-run reproduces every
	// outcome per identifier.
	require.Len(t, first, 3)
	for id, outcome := range first {
		assert.Equal(t, outcome.Kind, second[id].Kind, "outcome kind for %s", id)
		assert.Equal(t, outcome.Passed, second[id].Passed, "pass count for %s", id)
		assert.Equal(t, outcome.Failed, second[id].Failed, "fail count for %s", id)
	}
	assert.Equal(t, types.OutcomePassed, first["steady"].Kind)
	assert.Equal(t, types.OutcomeFailed, first["flunk"].Kind)
	assert.Equal(t, types.OutcomeErrored, first["noise"].Kind)
}

func TestRunWorkerCrashIsolation(t *testing.T) {
	specs := []unitSpec{
		{id: "crash", script: "echo garbage\nkill -9 $$\n"},
		{id: "survivor", script: `echo '{"name": "survivor", "passed": 4}'`},
	}
	o := newTestOrchestrator(t, specs, types.RunConfig{
		Units: []string{"crash", "survivor"},
	}, 2)

	result, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Stats.Errored)
	assert.Equal(t, 4, result.Stats.Passed)
	assert.Zero(t, result.Stats.Interrupted)

	// Process errors surface their raw diagnostics in the summary.
	summary := result.String()
	assert.Contains(t, summary, "Process errors:")
	assert.Contains(t, summary, "garbage")
}

func TestRunAffineUnitsExecuteFirst(t *testing.T) {
	// Each unit appends its id to a shared file; affine units must run
	// before the parallel population regardless of request order.
	dir := t.TempDir()
	orderFile := filepath.Join(dir, "order.txt")
	script := func(id string) string {
		return fmt.Sprintf("echo %s >> %s\necho '{\"name\": \"%s\", \"passed\": 1}'\n", id, orderFile, id)
	}
	specs := []unitSpec{
		{id: "free", script: script("free")},
		{id: "pinned", script: script("pinned"), affine: true},
	}
	o := newTestOrchestrator(t, specs, types.RunConfig{
		Units: []string{"free", "pinned"},
	}, 0)

	result, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.ErrorFree)

	data, err := os.ReadFile(orderFile)
	require.NoError(t, err)
	lines := strings.Fields(string(data))
	assert.Equal(t, []string{"pinned", "free"}, lines)

	// Tree order still follows the request, not execution order.
	assert.Equal(t, []string{"free", "pinned"}, treeNames(result))
}

func TestRunNestedReportAdoptedVerbatim(t *testing.T) {
	doc := `{"name": "suite", "passed": 0, "children": [` +
		`{"name": "child-a", "passed": 1},` +
		`{"name": "child-b", "passed": 2, "failed": 1}]}`
	specs := []unitSpec{
		{id: "nested", script: fmt.Sprintf("echo '%s'\n", doc)},
	}
	o := newTestOrchestrator(t, specs, types.RunConfig{Units: []string{"nested"}}, 0)

	result, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Tree.Children, 1)
	top := result.Tree.Children[0]
	assert.Equal(t, "nested", top.Name)
	require.Len(t, top.Children, 2)
	assert.Equal(t, "child-a", top.Children[0].Name)
	assert.Equal(t, "child-b", top.Children[1].Name)

	assert.Equal(t, 3, result.Stats.Passed)
	assert.Equal(t, 1, result.Stats.Failed)
	assert.False(t, result.ErrorFree)
}

func TestRunEmptyRequestRunsWholeManifest(t *testing.T) {
	specs := []unitSpec{
		{id: "one", script: `echo '{"name": "one", "passed": 1}'`},
		{id: "two", script: `echo '{"name": "two", "passed": 1}'`},
	}
	o := newTestOrchestrator(t, specs, types.RunConfig{}, 0)

	result, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, treeNames(result))
	assert.True(t, result.ErrorFree)
}

func TestNewOrchestratorValidation(t *testing.T) {
	_, err := NewOrchestrator(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog")
}
