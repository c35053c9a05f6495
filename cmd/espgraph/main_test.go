package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dusk-indust/espgraph/internal/conflict"
	"github.com/dusk-indust/espgraph/internal/esp/esptest"
	"github.com/dusk-indust/espgraph/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Kind       string          `json:"kind"`
	ExportedAt string          `json:"exportedAt"`
	Data       json.RawMessage `json:"data"`
}

// run executes the CLI with args against an empty config directory unless
// args set --config themselves.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", t.TempDir()}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func decode(t *testing.T, out, kind string, data any) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.Equal(t, kind, env.Kind)
	assert.NotEmpty(t, env.ExportedAt)
	require.NoError(t, json.Unmarshal(env.Data, data))
}

// loadOrder writes Base.esm and a Patch.esp overriding both of its records.
func loadOrder(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	esptest.New().Flags(0x1).
		Record("STAT", 0x100, esptest.Str("EDID", "Rock")).
		Record("NAVM", 0x200).
		Write(t, dir, "Base.esm")
	esptest.New().Master("Base.esm").
		Record("STAT", 0x100, esptest.Str("EDID", "BigRock")).
		Record("NAVM", 0x200).
		Write(t, dir, "Patch.esp")
	return dir
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestGraph_JSON(t *testing.T) {
	out, err := run(t, "graph", loadOrder(t))
	require.NoError(t, err)

	var got graphResult
	decode(t, out, "graph", &got)
	require.NotNil(t, got.Graph)
	assert.Equal(t, []string{"Base.esm", "Patch.esp"}, got.Graph.LoadOrder)
	require.NotNil(t, got.Stats)
	assert.Equal(t, 2, got.Stats.PluginCount)
	assert.Equal(t, 1, got.Stats.MasterEdges)
	require.Len(t, got.Clusters, 1)
}

func TestGraph_Mermaid(t *testing.T) {
	out, err := run(t, "graph", "--format", "mermaid", loadOrder(t))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, `["Patch.esp"]`)
	assert.Contains(t, out, " --> ")
}

func TestGraph_UnknownFormat(t *testing.T) {
	_, err := run(t, "graph", "--format", "dot", loadOrder(t))
	assert.ErrorContains(t, err, "unknown format")
}

func TestGraph_RequiresPaths(t *testing.T) {
	_, err := run(t, "graph")
	assert.Error(t, err)
}

func TestConflicts(t *testing.T) {
	out, err := run(t, "conflicts", loadOrder(t))
	require.NoError(t, err)

	var got conflict.Analysis
	decode(t, out, "conflicts", &got)
	assert.Equal(t, 2, got.TotalConflicts)
	assert.Equal(t, 1, got.CriticalConflicts)
}

func TestCompare(t *testing.T) {
	dir := loadOrder(t)
	out, err := run(t, "compare", filepath.Join(dir, "Base.esm"), filepath.Join(dir, "Patch.esp"), "100")
	require.NoError(t, err)

	var got conflict.RecordComparison
	decode(t, out, "comparison", &got)
	assert.Equal(t, "STAT", got.RecordType)
	assert.Len(t, got.Differences, 1)
}

func TestPatch(t *testing.T) {
	dir := loadOrder(t)
	out, err := run(t, "patch", "--strategy", "manual", dir)
	require.NoError(t, err)

	var got conflict.PatchESP
	decode(t, out, "patch", &got)
	require.Len(t, got.Records, 2)
	assert.Equal(t, conflict.ActionDefer, got.Records[0].Resolution)

	_, err = run(t, "patch", "--strategy", "coin-flip", dir)
	var unknown *conflict.UnknownStrategyError
	assert.ErrorAs(t, err, &unknown)
}

func TestCompat(t *testing.T) {
	dir := loadOrder(t)
	out, err := run(t, "compat", filepath.Join(dir, "Base.esm"), filepath.Join(dir, "Patch.esp"))
	require.NoError(t, err)

	var got conflict.CompatibilityReport
	decode(t, out, "compatibility", &got)
	assert.False(t, got.Compatible)
}

func TestMerge(t *testing.T) {
	out, err := run(t, "merge", loadOrder(t))
	require.NoError(t, err)

	var got []conflict.MergeRecommendation
	decode(t, out, "merge", &got)
	assert.Empty(t, got)
}

func TestRules_FromConfig(t *testing.T) {
	cfgDir := t.TempDir()
	yml := `
rules:
  - name: navmesh
    enabled: true
    match:
      type: navmesh
    action:
      resolution: Rebuild navmesh
`
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "espgraph.yml"), []byte(yml), 0o644))

	// A later --config wins over the default one run prepends.
	out, err := run(t, "--config", cfgDir, "rules", loadOrder(t))
	require.NoError(t, err)

	var got conflict.Resolved
	decode(t, out, "rules", &got)
	require.Len(t, got.Resolved, 1)
	assert.Equal(t, "Rebuild navmesh", got.Resolved[0].ResolutionSuggestion)
	assert.Equal(t, []string{"navmesh"}, got.AppliedRules)
	assert.Len(t, got.Unresolved, 1)
}

func TestImpact_NoPersistedGraph(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "graph")
	_, err := run(t, "--persist-dir", missing, "impact", "Base.esm")
	require.Error(t, err)
	if !strings.Contains(err.Error(), "no graph found") {
		assert.ErrorIs(t, err, graph.ErrNoPersistence)
	}
}
