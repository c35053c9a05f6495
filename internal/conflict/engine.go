package conflict

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/dusk-indust/espgraph/internal/esp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultMergeThreshold is the shared-record count at which a plugin pair is
// recommended for merging.
const DefaultMergeThreshold = 25

// Engine compares parsed plugins. It reads plugins through an injected
// cache and holds no other state, so one Engine may serve many requests.
type Engine struct {
	cache          *esp.Cache
	log            *zap.Logger
	workers        int
	mergeThreshold int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithWorkers bounds the number of plugin pairs compared at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithMergeThreshold overrides DefaultMergeThreshold.
func WithMergeThreshold(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.mergeThreshold = n
		}
	}
}

// NewEngine returns an Engine reading plugins through cache. A nil cache
// gets a private one.
func NewEngine(cache *esp.Cache, opts ...Option) *Engine {
	if cache == nil {
		cache = esp.NewCache()
	}
	e := &Engine{
		cache:          cache,
		log:            zap.NewNop(),
		workers:        runtime.GOMAXPROCS(0),
		mergeThreshold: DefaultMergeThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// pairResult holds the conflicts of plugins[i] vs plugins[j].
type pairResult struct {
	i, j      int
	conflicts []Conflict
}

// comparePairs compares every unordered pair i<j in parallel. Results come
// back in (i, j) lexical order regardless of scheduling.
func (e *Engine) comparePairs(ctx context.Context, plugins []*esp.Plugin, order LoadOrder) ([]pairResult, error) {
	var pairs []pairResult
	for i := range plugins {
		for j := i + 1; j < len(plugins); j++ {
			pairs = append(pairs, pairResult{i: i, j: j})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for k := range pairs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p := &pairs[k]
			p.conflicts = ComparePair(plugins[p.i], plugins[p.j], order)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pairs, nil
}

// fileNames returns the FileName of each plugin.
func fileNames(plugins []*esp.Plugin) []string {
	out := make([]string, len(plugins))
	for i, p := range plugins {
		out[i] = p.FileName
	}
	return out
}

// distinct drops plugins whose file name repeats an earlier one, so a
// plugin is never compared with itself.
func (e *Engine) distinct(plugins []*esp.Plugin) []*esp.Plugin {
	seen := make(map[string]bool, len(plugins))
	out := make([]*esp.Plugin, 0, len(plugins))
	for _, p := range plugins {
		key := strings.ToLower(p.FileName)
		if seen[key] {
			e.log.Warn("skipping duplicate plugin name", zap.String("path", p.Path))
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// AnalyzeConflicts compares every pair of plugins. paths are taken to be in
// load order: for each conflict the later plugin wins.
func (e *Engine) AnalyzeConflicts(ctx context.Context, paths []string) (*Analysis, error) {
	plugins, err := e.cache.Load(ctx, paths)
	if err != nil {
		return nil, fmt.Errorf("analyze conflicts: %w", err)
	}
	plugins = e.distinct(plugins)
	names := fileNames(plugins)

	pairs, err := e.comparePairs(ctx, plugins, LoadOrder(names))
	if err != nil {
		return nil, fmt.Errorf("analyze conflicts: %w", err)
	}

	n := len(plugins)
	matrix := Matrix{
		Plugins:     names,
		Conflicts:   make([][]int, n),
		SeverityMap: make([][]Severity, n),
		Heatmap:     []HeatmapCell{},
	}
	for i := range n {
		matrix.Conflicts[i] = make([]int, n)
		matrix.SeverityMap[i] = make([]Severity, n)
		for j := range n {
			matrix.SeverityMap[i][j] = SeverityNone
		}
	}

	all := []Conflict{}
	info := make([]PluginConflictInfo, n)
	for i, name := range names {
		info[i] = PluginConflictInfo{PluginName: name, AffectedRecords: []string{}}
	}

	for _, p := range pairs {
		all = append(all, p.conflicts...)

		count := len(p.conflicts)
		sev := worst(p.conflicts)
		matrix.Conflicts[p.i][p.j], matrix.Conflicts[p.j][p.i] = count, count
		matrix.SeverityMap[p.i][p.j], matrix.SeverityMap[p.j][p.i] = sev, sev
		if count > 0 {
			matrix.Heatmap = append(matrix.Heatmap, HeatmapCell{
				X:        p.i,
				Y:        p.j,
				Value:    count,
				Severity: sev,
				Plugins:  [2]string{names[p.i], names[p.j]},
			})
		}

		for _, c := range p.conflicts {
			for _, idx := range []int{p.i, p.j} {
				info[idx].ConflictCount++
				if c.Severity == SeverityCritical {
					info[idx].CriticalCount++
				}
				info[idx].AffectedRecords = append(info[idx].AffectedRecords, c.FormID)
			}
		}
	}

	critical := 0
	for _, c := range all {
		if c.Severity == SeverityCritical {
			critical++
		}
	}

	e.log.Debug("analyzed conflicts",
		zap.Int("plugins", n),
		zap.Int("conflicts", len(all)),
		zap.Int("critical", critical),
	)

	return &Analysis{
		TotalConflicts:    len(all),
		CriticalConflicts: critical,
		Plugins:           info,
		Matrix:            matrix,
		Conflicts:         all,
		Recommendations:   recommendations(all),
	}, nil
}

// recommendations summarizes what to do about a set of conflicts.
func recommendations(conflicts []Conflict) []string {
	if len(conflicts) == 0 {
		return []string{"No conflicts detected - load order appears stable"}
	}

	var out []string
	critical, scripts := 0, 0
	for _, c := range conflicts {
		if c.Severity == SeverityCritical {
			critical++
		}
		if c.ConflictType == TypeScript {
			scripts++
		}
	}
	if critical > 0 {
		out = append(out, fmt.Sprintf("Address %d critical conflicts first", critical))
	}
	if scripts > 0 {
		out = append(out, "Review script conflicts carefully - they may cause runtime errors")
	}
	return append(out,
		"Consider using a bashed patch for minor conflicts",
		"Test in a separate save before applying changes",
	)
}

// CheckCompatibility compares two plugins, modB loading after modA. They are
// compatible unless some conflict is critical.
func (e *Engine) CheckCompatibility(ctx context.Context, modA, modB string) (*CompatibilityReport, error) {
	plugins, err := e.cache.Load(ctx, []string{modA, modB})
	if err != nil {
		return nil, fmt.Errorf("check compatibility: %w", err)
	}
	a, b := plugins[0], plugins[1]
	conflicts := []Conflict{}
	if strings.EqualFold(a.FileName, b.FileName) {
		e.log.Warn("skipping duplicate plugin name", zap.String("path", b.Path))
	} else {
		conflicts = ComparePair(a, b, LoadOrder{a.FileName, b.FileName})
	}

	severity := Highest(conflicts)
	compatible := severity != SeverityCritical
	critical := 0
	for _, c := range conflicts {
		if c.Severity == SeverityCritical {
			critical++
		}
	}

	recs := []string{"Create a small override patch if conflicts affect gameplay"}
	if !compatible {
		recs = []string{"Create a compatibility patch or adjust load order"}
	}

	return &CompatibilityReport{
		ModA:            modA,
		ModB:            modB,
		Compatible:      compatible,
		Severity:        severity,
		Conflicts:       conflicts,
		Summary:         fmt.Sprintf("Detected %d conflicts (%d critical).", len(conflicts), critical),
		Recommendations: recs,
	}, nil
}

// RecommendMerge flags every plugin pair sharing at least the merge
// threshold of conflicting records.
func (e *Engine) RecommendMerge(ctx context.Context, paths []string) ([]MergeRecommendation, error) {
	plugins, err := e.cache.Load(ctx, paths)
	if err != nil {
		return nil, fmt.Errorf("recommend merge: %w", err)
	}
	plugins = e.distinct(plugins)
	names := fileNames(plugins)

	pairs, err := e.comparePairs(ctx, plugins, LoadOrder(names))
	if err != nil {
		return nil, fmt.Errorf("recommend merge: %w", err)
	}

	out := []MergeRecommendation{}
	for _, p := range pairs {
		if len(p.conflicts) < e.mergeThreshold {
			continue
		}
		out = append(out, MergeRecommendation{
			Plugins:       [2]string{names[p.i], names[p.j]},
			ConflictCount: len(p.conflicts),
			Severity:      Highest(p.conflicts),
			Reason:        "High overlap of record overrides",
		})
	}
	return out, nil
}
