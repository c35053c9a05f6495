package mcptools

import (
	"context"
	"fmt"
	"sync"

	"github.com/dusk-indust/espgraph/internal/conflict"
	"github.com/dusk-indust/espgraph/internal/esp"
	"github.com/dusk-indust/espgraph/internal/graph"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// ModService holds the parse cache, graph builder, conflict engine and the
// most recently built graph store used by MCP tool handlers.
type ModService struct {
	cache      *esp.Cache
	builder    *graph.Builder
	engine     *conflict.Engine
	log        *zap.Logger
	rules      []conflict.Rule
	extensions []string
	persistDir string // empty disables persistence

	mu    sync.RWMutex
	store graph.Store
}

// Option configures a ModService.
type Option func(*ModService)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *ModService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRules sets the rules apply_rules uses when a call supplies none.
func WithRules(rules []conflict.Rule) Option {
	return func(s *ModService) { s.rules = rules }
}

// WithExtensions sets the extensions used when expanding directory paths.
func WithExtensions(exts []string) Option {
	return func(s *ModService) {
		if len(exts) > 0 {
			s.extensions = exts
		}
	}
}

// WithPersistDir sets where build_graph persists the graph on request.
func WithPersistDir(dir string) Option {
	return func(s *ModService) { s.persistDir = dir }
}

// NewModService creates a ModService. The builder and engine should share
// cache so a graph build warms the conflict tools.
func NewModService(cache *esp.Cache, builder *graph.Builder, engine *conflict.Engine, opts ...Option) *ModService {
	s := &ModService{
		cache:   cache,
		builder: builder,
		engine:  engine,
		log:     zap.NewNop(),
		store:   graph.NewMemStore(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the store holding the last built graph.
func (s *ModService) Store() graph.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

func (s *ModService) expand(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("paths is required")
	}
	return esp.ExpandPaths(paths, s.extensions)
}

// conflicts returns given when non-empty, otherwise analyzes paths.
func (s *ModService) conflicts(ctx context.Context, given []conflict.Conflict, paths []string) ([]conflict.Conflict, error) {
	if len(given) > 0 {
		return given, nil
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("conflicts or paths is required")
	}
	expanded, err := s.expand(paths)
	if err != nil {
		return nil, err
	}
	analysis, err := s.engine.AnalyzeConflicts(ctx, expanded)
	if err != nil {
		return nil, fmt.Errorf("analyze conflicts: %w", err)
	}
	return analysis.Conflicts, nil
}

// BuildGraph parses the given plugins, builds the dependency graph, loads it
// into a fresh in-memory store and computes clusters.
func (s *ModService) BuildGraph(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input BuildGraphInput,
) (*mcp.CallToolResult, BuildGraphOutput, error) {
	paths, err := s.expand(input.Paths)
	if err != nil {
		return nil, BuildGraphOutput{}, err
	}

	g, err := s.builder.Build(ctx, paths)
	if err != nil {
		return nil, BuildGraphOutput{}, fmt.Errorf("build graph: %w", err)
	}

	store := graph.NewMemStore()
	if err := graph.Load(ctx, store, g); err != nil {
		return nil, BuildGraphOutput{}, fmt.Errorf("load graph: %w", err)
	}
	clusters, err := graph.ComputeClusters(ctx, store)
	if err != nil {
		return nil, BuildGraphOutput{}, fmt.Errorf("compute clusters: %w", err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		return nil, BuildGraphOutput{}, fmt.Errorf("get stats: %w", err)
	}

	s.mu.Lock()
	old := s.store
	s.store = store
	s.mu.Unlock()
	old.Close()

	out := BuildGraphOutput{
		Graph:    g,
		Stats:    *stats,
		Clusters: clusters,
		Cache:    s.cache.Stats(),
	}

	if input.Persist {
		if s.persistDir == "" {
			s.log.Warn("persist requested without a persist directory")
		} else if _, err := graph.Persist(ctx, g, s.persistDir); err != nil {
			s.log.Warn("failed to persist graph", zap.String("dir", s.persistDir), zap.Error(err))
		} else {
			out.Persisted = true
		}
	}

	s.log.Info("graph built",
		zap.Int("plugins", stats.PluginCount),
		zap.Int("edges", stats.EdgeCount),
		zap.Int("clusters", stats.ClusterCount),
	)
	return nil, out, nil
}

// GetDependencies traverses master edges from a plugin.
func (s *ModService) GetDependencies(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetDependenciesInput,
) (*mcp.CallToolResult, GetDependenciesOutput, error) {
	if input.Plugin == "" {
		return nil, GetDependenciesOutput{}, fmt.Errorf("plugin is required")
	}

	direction, err := graph.ParseDirection(input.Direction)
	if err != nil {
		return nil, GetDependenciesOutput{}, err
	}

	maxDepth := input.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 5
	}

	chains, err := s.Store().GetDependencies(ctx, input.Plugin, direction, maxDepth)
	if err != nil {
		return nil, GetDependenciesOutput{}, fmt.Errorf("get dependencies: %w", err)
	}
	if chains == nil {
		chains = []graph.DependencyChain{}
	}

	return nil, GetDependenciesOutput{Chains: chains}, nil
}

// AssessImpact computes which plugins depend on the changed ones.
func (s *ModService) AssessImpact(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AssessImpactInput,
) (*mcp.CallToolResult, AssessImpactOutput, error) {
	if len(input.ChangedPlugins) == 0 {
		return nil, AssessImpactOutput{}, fmt.Errorf("changedPlugins is required")
	}

	impact, err := s.Store().AssessImpact(ctx, input.ChangedPlugins)
	if err != nil {
		return nil, AssessImpactOutput{}, fmt.Errorf("assess impact: %w", err)
	}

	return nil, AssessImpactOutput{Impact: impact}, nil
}

// GetClusters returns the plugin clusters of the last built graph.
func (s *ModService) GetClusters(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ GetClustersInput,
) (*mcp.CallToolResult, GetClustersOutput, error) {
	clusters, err := s.Store().GetClusters(ctx)
	if err != nil {
		return nil, GetClustersOutput{}, fmt.Errorf("get clusters: %w", err)
	}
	if clusters == nil {
		clusters = []graph.ClusterNode{}
	}

	return nil, GetClustersOutput{Clusters: clusters}, nil
}

// AnalyzeConflicts finds every form id defined by more than one plugin.
func (s *ModService) AnalyzeConflicts(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnalyzeConflictsInput,
) (*mcp.CallToolResult, AnalyzeConflictsOutput, error) {
	paths, err := s.expand(input.Paths)
	if err != nil {
		return nil, AnalyzeConflictsOutput{}, err
	}

	analysis, err := s.engine.AnalyzeConflicts(ctx, paths)
	if err != nil {
		return nil, AnalyzeConflictsOutput{}, fmt.Errorf("analyze conflicts: %w", err)
	}

	return nil, AnalyzeConflictsOutput{Analysis: analysis}, nil
}

// CompareRecords diffs one record across two plugins.
func (s *ModService) CompareRecords(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CompareRecordsInput,
) (*mcp.CallToolResult, CompareRecordsOutput, error) {
	if input.PluginA == "" || input.PluginB == "" || input.FormID == "" {
		return nil, CompareRecordsOutput{}, fmt.Errorf("pluginA, pluginB and formId are required")
	}

	comparison, err := s.engine.CompareRecords(ctx, input.PluginA, input.PluginB, input.FormID)
	if err != nil {
		return nil, CompareRecordsOutput{}, fmt.Errorf("compare records: %w", err)
	}

	return nil, CompareRecordsOutput{Comparison: comparison}, nil
}

// GeneratePatch plans a conflict resolution patch.
func (s *ModService) GeneratePatch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GeneratePatchInput,
) (*mcp.CallToolResult, GeneratePatchOutput, error) {
	conflicts, err := s.conflicts(ctx, input.Conflicts, input.Paths)
	if err != nil {
		return nil, GeneratePatchOutput{}, err
	}

	patch, err := conflict.GeneratePatch(conflicts, conflict.Strategy(input.Strategy))
	if err != nil {
		return nil, GeneratePatchOutput{}, fmt.Errorf("generate patch: %w", err)
	}

	return nil, GeneratePatchOutput{Patch: patch}, nil
}

// CheckCompatibility reports the conflicts between two plugins.
func (s *ModService) CheckCompatibility(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CheckCompatibilityInput,
) (*mcp.CallToolResult, CheckCompatibilityOutput, error) {
	if input.ModA == "" || input.ModB == "" {
		return nil, CheckCompatibilityOutput{}, fmt.Errorf("modA and modB are required")
	}

	report, err := s.engine.CheckCompatibility(ctx, input.ModA, input.ModB)
	if err != nil {
		return nil, CheckCompatibilityOutput{}, fmt.Errorf("check compatibility: %w", err)
	}

	return nil, CheckCompatibilityOutput{Report: report}, nil
}

// RecommendMerge lists plugin pairs worth merging.
func (s *ModService) RecommendMerge(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RecommendMergeInput,
) (*mcp.CallToolResult, RecommendMergeOutput, error) {
	paths, err := s.expand(input.Paths)
	if err != nil {
		return nil, RecommendMergeOutput{}, err
	}

	recs, err := s.engine.RecommendMerge(ctx, paths)
	if err != nil {
		return nil, RecommendMergeOutput{}, fmt.Errorf("recommend merge: %w", err)
	}
	if recs == nil {
		recs = []conflict.MergeRecommendation{}
	}

	return nil, RecommendMergeOutput{Recommendations: recs}, nil
}

// ApplyRules resolves conflicts with user-defined rules.
func (s *ModService) ApplyRules(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ApplyRulesInput,
) (*mcp.CallToolResult, ApplyRulesOutput, error) {
	conflicts, err := s.conflicts(ctx, input.Conflicts, input.Paths)
	if err != nil {
		return nil, ApplyRulesOutput{}, err
	}

	rules := input.Rules
	if len(rules) == 0 {
		rules = s.rules
	}

	return nil, ApplyRulesOutput{Result: conflict.ApplyRules(conflicts, rules)}, nil
}
