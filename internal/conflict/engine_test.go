package conflict_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dusk-indust/espgraph/internal/conflict"
	"github.com/dusk-indust/espgraph/internal/esp"
	"github.com/dusk-indust/espgraph/internal/esp/esptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// --- Helpers ---

func newEngine(opts ...conflict.Option) *conflict.Engine {
	return conflict.NewEngine(esp.NewCache(), opts...)
}

// overlapping writes a plugin with n STAT records starting at form id base.
func overlapping(t *testing.T, dir, name string, base uint32, n int) string {
	t.Helper()
	p := esptest.New()
	for i := range n {
		p.Record("STAT", base+uint32(i), esptest.Str("EDID", "Stat"))
	}
	return p.Write(t, dir, name)
}

// --- Classification ---

func TestClassify(t *testing.T) {
	tests := []struct {
		recordType string
		kind       conflict.Type
		severity   conflict.Severity
	}{
		{"NAVM", conflict.TypeNavmesh, conflict.SeverityCritical},
		{"NAVI", conflict.TypeNavmesh, conflict.SeverityCritical},
		{"PACK", conflict.TypeDelete, conflict.SeverityMajor},
		{"SCPT", conflict.TypeScript, conflict.SeverityMajor},
		{"TXST", conflict.TypeAsset, conflict.SeverityMinor},
		{"STAT", conflict.TypeAsset, conflict.SeverityMinor},
		{"MESH", conflict.TypeAsset, conflict.SeverityMinor},
		{"WEAP", conflict.TypeOverride, conflict.SeverityMinor},
		{"ZZZZ", conflict.TypeOverride, conflict.SeverityMinor},
	}
	for _, tt := range tests {
		t.Run(tt.recordType, func(t *testing.T) {
			kind, severity := conflict.Classify(tt.recordType)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.severity, severity)
		})
	}
}

func TestHighest(t *testing.T) {
	assert.Equal(t, conflict.SeverityMinor, conflict.Highest(nil))
	assert.Equal(t, conflict.SeverityMajor, conflict.Highest([]conflict.Conflict{
		{Severity: conflict.SeverityMinor},
		{Severity: conflict.SeverityMajor},
	}))
}

func TestFormatFormID(t *testing.T) {
	assert.Equal(t, "0x1234", conflict.FormatFormID(0x00001234))
	assert.Equal(t, "0xff00abcd", conflict.FormatFormID(0xFF00ABCD))
}

// --- LoadOrder ---

func TestLoadOrder_Winner(t *testing.T) {
	order := conflict.LoadOrder{"Base.esm", "A.esp", "B.esp"}

	assert.Equal(t, "B.esp", order.Winner("A.esp", "B.esp"))
	assert.Equal(t, "B.esp", order.Winner("B.esp", "A.esp"))
	assert.Equal(t, "a.ESP", order.Winner("a.ESP", "Base.esm"), "names match case-insensitively")
	assert.Equal(t, "A.esp", order.Winner("A.esp", "Missing.esp"), "present beats missing")
	assert.Equal(t, "Y.esp", order.Winner("X.esp", "Y.esp"), "both missing: second wins")
}

func TestComparePair_WinnerFollowsOrder(t *testing.T) {
	dir := t.TempDir()
	a := esptest.New().Record("WEAP", 0x10, esptest.Str("EDID", "Sword")).Write(t, dir, "A.esp")
	b := esptest.New().Record("WEAP", 0x10).Write(t, dir, "B.esp")

	p := esp.NewParser()
	pa, err := p.ParseFile(context.Background(), a)
	require.NoError(t, err)
	pb, err := p.ParseFile(context.Background(), b)
	require.NoError(t, err)

	got := conflict.ComparePair(pa, pb, conflict.LoadOrder{"B.esp", "A.esp"})
	require.Len(t, got, 1)
	assert.Equal(t, "A.esp", got[0].WinningPlugin)
	assert.Equal(t, []string{"B.esp"}, got[0].LosingPlugins)
	assert.Equal(t, "Sword", got[0].EditorID)
	assert.Equal(t, []string{"A.esp", "B.esp"}, got[0].AffectedPlugins)
}

// --- AnalyzeConflicts ---

func TestAnalyzeConflicts_NavmeshIsCritical(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	a := esptest.New().Record("NAVM", 0x00001234).Write(t, dir, "A.esp")
	b := esptest.New().Record("NAVM", 0x00001234).Write(t, dir, "B.esp")

	got, err := newEngine().AnalyzeConflicts(context.Background(), []string{a, b})
	require.NoError(t, err)

	require.Len(t, got.Conflicts, 1)
	c := got.Conflicts[0]
	assert.Equal(t, "0x1234", c.FormID)
	assert.Equal(t, conflict.SeverityCritical, c.Severity)
	assert.Equal(t, conflict.TypeNavmesh, c.ConflictType)
	assert.Equal(t, "B.esp", c.WinningPlugin)
	assert.Equal(t, 1, got.TotalConflicts)
	assert.Equal(t, 1, got.CriticalConflicts)
	assert.Contains(t, got.Recommendations, "Address 1 critical conflicts first")
}

func TestAnalyzeConflicts_OnlySharedIDs(t *testing.T) {
	dir := t.TempDir()
	a := esptest.New().
		Record("WEAP", 0x1).
		Record("ARMO", 0x2).
		Record("SCPT", 0x3).
		Write(t, dir, "A.esp")
	b := esptest.New().
		Record("ARMO", 0x2).
		Record("SCPT", 0x3).
		Record("MISC", 0x4).
		Write(t, dir, "B.esp")

	got, err := newEngine().AnalyzeConflicts(context.Background(), []string{a, b})
	require.NoError(t, err)

	var ids []string
	for _, c := range got.Conflicts {
		ids = append(ids, c.FormID)
	}
	assert.Equal(t, []string{"0x2", "0x3"}, ids)
	assert.Contains(t, got.Recommendations, "Review script conflicts carefully - they may cause runtime errors")
}

func TestAnalyzeConflicts_Matrix(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	p1 := overlapping(t, dir, "One.esp", 0x100, 3)
	p2 := overlapping(t, dir, "Two.esp", 0x100, 2)
	p3 := esptest.New().Record("NAVM", 0x900).Write(t, dir, "Three.esp")

	got, err := newEngine(conflict.WithWorkers(2)).AnalyzeConflicts(context.Background(), []string{p1, p2, p3})
	require.NoError(t, err)

	m := got.Matrix
	assert.Equal(t, []string{"One.esp", "Two.esp", "Three.esp"}, m.Plugins)
	for i := range 3 {
		assert.Equal(t, 0, m.Conflicts[i][i])
		assert.Equal(t, conflict.SeverityNone, m.SeverityMap[i][i])
		for j := range 3 {
			assert.Equal(t, m.Conflicts[i][j], m.Conflicts[j][i])
			assert.Equal(t, m.SeverityMap[i][j], m.SeverityMap[j][i])
		}
	}
	assert.Equal(t, 2, m.Conflicts[0][1])
	assert.Equal(t, conflict.SeverityMinor, m.SeverityMap[0][1])
	assert.Equal(t, conflict.SeverityNone, m.SeverityMap[0][2])

	require.Len(t, m.Heatmap, 1)
	assert.Equal(t, conflict.HeatmapCell{
		X: 0, Y: 1, Value: 2,
		Severity: conflict.SeverityMinor,
		Plugins:  [2]string{"One.esp", "Two.esp"},
	}, m.Heatmap[0])

	require.Len(t, got.Plugins, 3)
	assert.Equal(t, 2, got.Plugins[0].ConflictCount)
	assert.Equal(t, 2, got.Plugins[1].ConflictCount)
	assert.Equal(t, 0, got.Plugins[2].ConflictCount)
	assert.Empty(t, got.Plugins[2].AffectedRecords)
}

func TestAnalyzeConflicts_NoConflicts(t *testing.T) {
	dir := t.TempDir()
	a := esptest.New().Record("WEAP", 0x1).Write(t, dir, "A.esp")
	b := esptest.New().Record("WEAP", 0x2).Write(t, dir, "B.esp")

	got, err := newEngine().AnalyzeConflicts(context.Background(), []string{a, b})
	require.NoError(t, err)
	assert.Empty(t, got.Conflicts)
	assert.Empty(t, got.Matrix.Heatmap)
	assert.Equal(t, []string{"No conflicts detected - load order appears stable"}, got.Recommendations)
}

func TestAnalyzeConflicts_ParseFailure(t *testing.T) {
	dir := t.TempDir()
	a := esptest.New().Write(t, dir, "A.esp")
	bad := esptest.WriteFile(t, dir, "Bad.esp", []byte("NOPE"))

	_, err := newEngine().AnalyzeConflicts(context.Background(), []string{a, bad})
	require.Error(t, err)
	var mh *esp.MalformedHeaderError
	assert.True(t, errors.As(err, &mh))
}

// --- CheckCompatibility ---

func TestCheckCompatibility(t *testing.T) {
	dir := t.TempDir()
	a := esptest.New().Record("NAVM", 0x1).Record("WEAP", 0x2).Write(t, dir, "A.esp")
	b := esptest.New().Record("NAVM", 0x1).Record("WEAP", 0x2).Write(t, dir, "B.esp")
	c := esptest.New().Record("WEAP", 0x2).Write(t, dir, "C.esp")

	eng := newEngine()

	report, err := eng.CheckCompatibility(context.Background(), a, b)
	require.NoError(t, err)
	assert.False(t, report.Compatible)
	assert.Equal(t, conflict.SeverityCritical, report.Severity)
	assert.Equal(t, "Detected 2 conflicts (1 critical).", report.Summary)
	assert.Equal(t, []string{"Create a compatibility patch or adjust load order"}, report.Recommendations)
	for _, cf := range report.Conflicts {
		assert.Equal(t, "B.esp", cf.WinningPlugin)
	}

	report, err = eng.CheckCompatibility(context.Background(), a, c)
	require.NoError(t, err)
	assert.True(t, report.Compatible)
	assert.Equal(t, conflict.SeverityMinor, report.Severity)
}

func TestCheckCompatibility_NoSharedRecords(t *testing.T) {
	dir := t.TempDir()
	a := esptest.New().Record("WEAP", 0x1).Write(t, dir, "A.esp")
	b := esptest.New().Record("WEAP", 0x2).Write(t, dir, "B.esp")

	report, err := newEngine().CheckCompatibility(context.Background(), a, b)
	require.NoError(t, err)
	assert.True(t, report.Compatible)
	assert.Equal(t, conflict.SeverityMinor, report.Severity)
	assert.Empty(t, report.Conflicts)
}

// --- RecommendMerge ---

func TestRecommendMerge(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	// plugin1 shares 30 ids with plugin2 and 5 with plugin3.
	p1 := overlapping(t, dir, "plugin1.esp", 0x1000, 30)
	p2 := overlapping(t, dir, "plugin2.esp", 0x1000, 30)
	p3 := overlapping(t, dir, "plugin3.esp", 0x1000+25, 5)

	got, err := newEngine().RecommendMerge(context.Background(), []string{p1, p2, p3})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, [2]string{"plugin1.esp", "plugin2.esp"}, got[0].Plugins)
	assert.Equal(t, 30, got[0].ConflictCount)
	assert.Equal(t, conflict.SeverityMinor, got[0].Severity)
	assert.Equal(t, "High overlap of record overrides", got[0].Reason)
}

func TestRecommendMerge_Threshold(t *testing.T) {
	dir := t.TempDir()
	p1 := overlapping(t, dir, "a.esp", 0x1, 5)
	p2 := overlapping(t, dir, "b.esp", 0x1, 5)

	got, err := newEngine().RecommendMerge(context.Background(), []string{p1, p2})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = newEngine(conflict.WithMergeThreshold(5)).RecommendMerge(context.Background(), []string{p1, p2})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestEngine_Cancelled(t *testing.T) {
	dir := t.TempDir()
	a := overlapping(t, dir, "a.esp", 0x1, 2)
	b := overlapping(t, dir, "b.esp", 0x1, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEngine().AnalyzeConflicts(ctx, []string{a, b})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_RepeatedPluginIsIgnored(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	a := overlapping(t, dir, "A.esp", 0x100, 30)
	eng := newEngine()
	ctx := context.Background()

	analysis, err := eng.AnalyzeConflicts(ctx, []string{a, a})
	require.NoError(t, err)
	assert.Equal(t, 0, analysis.TotalConflicts)
	assert.Empty(t, analysis.Conflicts)
	assert.Equal(t, []string{"A.esp"}, analysis.Matrix.Plugins)

	recs, err := eng.RecommendMerge(ctx, []string{a, a})
	require.NoError(t, err)
	assert.Empty(t, recs)

	report, err := eng.CheckCompatibility(ctx, a, a)
	require.NoError(t, err)
	assert.True(t, report.Compatible)
	assert.Empty(t, report.Conflicts)
}

func TestAnalyzeConflicts_ArgumentOrder(t *testing.T) {
	dir := t.TempDir()
	a := overlapping(t, dir, "A.esp", 0x100, 3)
	b := overlapping(t, dir, "B.esp", 0x101, 5)

	tests := []struct {
		name   string
		paths  []string
		winner string
	}{
		{"a then b", []string{a, b}, "B.esp"},
		{"b then a", []string{b, a}, "A.esp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newEngine().AnalyzeConflicts(context.Background(), tt.paths)
			require.NoError(t, err)

			var ids []string
			for _, c := range got.Conflicts {
				ids = append(ids, c.FormID)
				assert.Equal(t, tt.winner, c.WinningPlugin)
			}
			assert.ElementsMatch(t, []string{"0x101", "0x102"}, ids)
			assert.Equal(t, 2, got.TotalConflicts)
		})
	}
}

func TestCheckCompatibility_MixedRecordTypes(t *testing.T) {
	dir := t.TempDir()
	navm := esptest.New().Record("NAVM", 0x10).Write(t, dir, "Nav.esp")
	weap := esptest.New().Record("WEAP", 0x10).Write(t, dir, "Weap.esp")

	tests := []struct {
		name string
		a, b string
	}{
		{"navmesh first", navm, weap},
		{"weapon first", weap, navm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := newEngine().CheckCompatibility(context.Background(), tt.a, tt.b)
			require.NoError(t, err)
			assert.False(t, report.Compatible)
			assert.Equal(t, conflict.SeverityCritical, report.Severity)
			require.Len(t, report.Conflicts, 1)
			assert.Equal(t, "NAVM", report.Conflicts[0].RecordType)
			assert.Equal(t, conflict.TypeNavmesh, report.Conflicts[0].ConflictType)
		})
	}
}
