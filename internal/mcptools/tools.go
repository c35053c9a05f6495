package mcptools

import (
	"github.com/dusk-indust/espgraph/internal/conflict"
	"github.com/dusk-indust/espgraph/internal/esp"
	"github.com/dusk-indust/espgraph/internal/graph"
)

// --- build_graph ---

// BuildGraphInput is the input for the build_graph tool.
type BuildGraphInput struct {
	Paths   []string `json:"paths" jsonschema:"Plugin files or Data directories, in load order. Directories are expanded to the plugin files they contain."`
	Persist bool     `json:"persist,omitempty" jsonschema:"Also write the graph to the on-disk graph store (requires a cgo build)"`
}

// BuildGraphOutput is the output for the build_graph tool.
type BuildGraphOutput struct {
	Graph     *graph.ModDependencyGraph `json:"graph"`
	Stats     graph.GraphStats          `json:"stats"`
	Clusters  []graph.ClusterNode       `json:"clusters"`
	Cache     esp.CacheStats            `json:"cache"`
	Persisted bool                      `json:"persisted"`
}

// --- get_dependencies ---

// GetDependenciesInput is the input for the get_dependencies tool.
type GetDependenciesInput struct {
	Plugin    string `json:"plugin" jsonschema:"Plugin file name, e.g. Skyrim.esm"`
	Direction string `json:"direction,omitempty" jsonschema:"upstream (masters) or downstream (dependents). Default: upstream"`
	MaxDepth  int    `json:"maxDepth,omitempty" jsonschema:"Maximum traversal depth. Default: 5"`
}

// GetDependenciesOutput is the output for the get_dependencies tool.
type GetDependenciesOutput struct {
	Chains []graph.DependencyChain `json:"chains"`
}

// --- assess_impact ---

// AssessImpactInput is the input for the assess_impact tool.
type AssessImpactInput struct {
	ChangedPlugins []string `json:"changedPlugins" jsonschema:"Plugin file names that are being modified or removed"`
}

// AssessImpactOutput is the output for the assess_impact tool.
type AssessImpactOutput struct {
	Impact *graph.ImpactResult `json:"impact"`
}

// --- get_clusters ---

// GetClustersInput is the input for the get_clusters tool.
type GetClustersInput struct{}

// GetClustersOutput is the output for the get_clusters tool.
type GetClustersOutput struct {
	Clusters []graph.ClusterNode `json:"clusters"`
}

// --- analyze_conflicts ---

// AnalyzeConflictsInput is the input for the analyze_conflicts tool.
type AnalyzeConflictsInput struct {
	Paths []string `json:"paths" jsonschema:"Plugin files or Data directories, in load order"`
}

// AnalyzeConflictsOutput is the output for the analyze_conflicts tool.
type AnalyzeConflictsOutput struct {
	Analysis *conflict.Analysis `json:"analysis"`
}

// --- compare_records ---

// CompareRecordsInput is the input for the compare_records tool.
type CompareRecordsInput struct {
	PluginA string `json:"pluginA" jsonschema:"Path of the first plugin"`
	PluginB string `json:"pluginB" jsonschema:"Path of the second plugin"`
	FormID  string `json:"formId" jsonschema:"Form id as 0x-prefixed or bare hex, e.g. 0x00012e49"`
}

// CompareRecordsOutput is the output for the compare_records tool.
type CompareRecordsOutput struct {
	Comparison *conflict.RecordComparison `json:"comparison"`
}

// --- generate_patch ---

// GeneratePatchInput is the input for the generate_patch tool.
type GeneratePatchInput struct {
	Conflicts []conflict.Conflict `json:"conflicts,omitempty" jsonschema:"Conflicts to patch. When empty they are analyzed from paths."`
	Paths     []string            `json:"paths,omitempty" jsonschema:"Plugins to analyze when conflicts is empty"`
	Strategy  string              `json:"strategy" jsonschema:"first-wins, last-wins, merge-all, manual, rule-based or ai-suggest"`
}

// GeneratePatchOutput is the output for the generate_patch tool.
type GeneratePatchOutput struct {
	Patch *conflict.PatchESP `json:"patch"`
}

// --- check_compatibility ---

// CheckCompatibilityInput is the input for the check_compatibility tool.
type CheckCompatibilityInput struct {
	ModA string `json:"modA" jsonschema:"Path of the earlier-loading plugin"`
	ModB string `json:"modB" jsonschema:"Path of the later-loading plugin"`
}

// CheckCompatibilityOutput is the output for the check_compatibility tool.
type CheckCompatibilityOutput struct {
	Report *conflict.CompatibilityReport `json:"report"`
}

// --- recommend_merge ---

// RecommendMergeInput is the input for the recommend_merge tool.
type RecommendMergeInput struct {
	Paths []string `json:"paths" jsonschema:"Plugin files or Data directories, in load order"`
}

// RecommendMergeOutput is the output for the recommend_merge tool.
type RecommendMergeOutput struct {
	Recommendations []conflict.MergeRecommendation `json:"recommendations"`
}

// --- apply_rules ---

// ApplyRulesInput is the input for the apply_rules tool.
type ApplyRulesInput struct {
	Conflicts []conflict.Conflict `json:"conflicts,omitempty" jsonschema:"Conflicts to resolve. When empty they are analyzed from paths."`
	Paths     []string            `json:"paths,omitempty" jsonschema:"Plugins to analyze when conflicts is empty"`
	Rules     []conflict.Rule     `json:"rules,omitempty" jsonschema:"Resolution rules. Default: the rules from espgraph.yml"`
}

// ApplyRulesOutput is the output for the apply_rules tool.
type ApplyRulesOutput struct {
	Result conflict.Resolved `json:"result"`
}
