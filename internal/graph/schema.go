package graph

import "github.com/dusk-indust/espgraph/internal/conflict"

// --- Enums ---

// EdgeKind classifies relationships between plugins.
type EdgeKind string

const (
	// EdgeKindMaster points from a plugin to a master it declares.
	EdgeKindMaster EdgeKind = "master"
	// EdgeKindCompatibility points from a plugin to one whose form ids
	// appear in its field payloads. Weight is matches/100.
	EdgeKindCompatibility EdgeKind = "compatibility"
)

// --- Dependency graph ---

// ModNode is one parsed plugin in the dependency graph.
type ModNode struct {
	Name            string              `json:"name"`     // file name without extension
	FileName        string              `json:"filename"` // base name, the node key
	Masters         []string            `json:"masters"`
	OptionalMasters []string            `json:"optionalMasters"`
	ProvidedRecords map[string][]uint32 `json:"providedRecords"` // record type -> form ids
	// RequiredRecords is reserved for real form-id reference collection and
	// is always empty.
	RequiredRecords map[string][]uint32 `json:"requiredRecords"`
	Conflicts       []ModConflict       `json:"conflicts"`
	LoadOrder       int                 `json:"loadOrder"` // 1-based
	Enabled         bool                `json:"enabled"`
	IsMaster        bool                `json:"isMaster"`
	IsLight         bool                `json:"isLight"`
}

// RecordCount is the number of records the node provides.
func (n *ModNode) RecordCount() int {
	total := 0
	for _, ids := range n.ProvidedRecords {
		total += len(ids)
	}
	return total
}

// ModConflict is a record shared, by form id and type, with another plugin.
type ModConflict struct {
	ConflictingMod string            `json:"conflictingMod"`
	RecordType     string            `json:"recordType"`
	FormIDs        []uint32          `json:"formIds"`
	ConflictType   conflict.Type     `json:"type"`
	Severity       conflict.Severity `json:"severity"`
}

// DependencyEdge is a directed edge between two plugin file names.
type DependencyEdge struct {
	From   string   `json:"from"`
	To     string   `json:"to"`
	Kind   EdgeKind `json:"type"`
	Weight float64  `json:"weight"`
}

// ModDependencyGraph is the result of Builder.Build.
type ModDependencyGraph struct {
	Nodes     []*ModNode       `json:"nodes"` // input order
	Edges     []DependencyEdge `json:"edges"`
	Cycles    [][]string       `json:"cycles"`
	LoadOrder []string         `json:"loadOrder"`
}

// Node returns the node with the given file name, or nil.
func (g *ModDependencyGraph) Node(fileName string) *ModNode {
	for _, n := range g.Nodes {
		if n.FileName == fileName {
			return n
		}
	}
	return nil
}

// --- Store models ---

// PluginNode is the stored summary of a ModNode.
type PluginNode struct {
	FileName      string `json:"fileName"`
	Name          string `json:"name"`
	LoadOrder     int    `json:"loadOrder"`
	RecordCount   int    `json:"recordCount"`
	ConflictCount int    `json:"conflictCount"`
	IsMaster      bool   `json:"isMaster"`
}

// ClusterNode is a group of plugins joined by master edges.
type ClusterNode struct {
	Name          string   `json:"name"`
	CohesionScore float64  `json:"cohesionScore"`
	Members       []string `json:"members"` // plugin file names
}

// GraphStats summarizes a stored graph.
type GraphStats struct {
	PluginCount  int `json:"pluginCount"`
	EdgeCount    int `json:"edgeCount"`
	MasterEdges  int `json:"masterEdges"`
	ClusterCount int `json:"clusterCount"`
}

// DependencyChain is an ordered path of plugin file names.
type DependencyChain struct {
	Nodes []string `json:"nodes"`
	Depth int      `json:"depth"`
}

// ImpactResult describes which plugins are affected by changing others.
type ImpactResult struct {
	DirectlyAffected     []string `json:"directlyAffected"`     // plugins declaring a changed plugin as master
	TransitivelyAffected []string `json:"transitivelyAffected"` // full dependent closure
	RiskScore            float64  `json:"riskScore"`            // affected / total plugins
}
