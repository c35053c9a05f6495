package graph

import (
	"context"
	"sort"
	"sync"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu       sync.RWMutex
	plugins  map[string]PluginNode
	order    []string // insertion order of plugin file names
	edges    []DependencyEdge
	clusters []ClusterNode
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{plugins: make(map[string]PluginNode)}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// AddPlugin stores a plugin keyed by file name. Re-adding replaces it.
func (m *MemStore) AddPlugin(_ context.Context, node PluginNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plugins[node.FileName]; !ok {
		m.order = append(m.order, node.FileName)
	}
	m.plugins[node.FileName] = node
	return nil
}

// AddEdge appends an edge.
func (m *MemStore) AddEdge(_ context.Context, edge DependencyEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges = append(m.edges, edge)
	return nil
}

// AddCluster appends a cluster.
func (m *MemStore) AddCluster(_ context.Context, node ClusterNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clusters = append(m.clusters, node)
	return nil
}

// GetPlugin returns the plugin with the given file name, or nil if not found.
func (m *MemStore) GetPlugin(_ context.Context, fileName string) (*PluginNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plugins[fileName]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ListPlugins returns every plugin sorted by load order, then file name.
func (m *MemStore) ListPlugins(_ context.Context) ([]PluginNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PluginNode, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.plugins[name])
	}
	sortPlugins(out)
	return out, nil
}

// GetAllEdges returns a copy of all edges in insertion order.
func (m *MemStore) GetAllEdges(_ context.Context) ([]DependencyEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]DependencyEdge, len(m.edges))
	copy(out, m.edges)
	return out, nil
}

// GetDependencies performs a BFS over master edges from fileName in the given
// direction, up to maxDepth hops. It returns one DependencyChain per
// reachable plugin.
func (m *MemStore) GetDependencies(_ context.Context, fileName string, direction Direction, maxDepth int) ([]DependencyChain, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if maxDepth <= 0 {
		return nil, nil
	}

	type bfsEntry struct {
		id   string
		path []string
	}

	visited := map[string]bool{fileName: true}
	queue := []bfsEntry{{id: fileName, path: []string{fileName}}}
	var chains []DependencyChain

	for depth := 0; depth < maxDepth && len(queue) > 0; depth++ {
		var nextQueue []bfsEntry
		for _, entry := range queue {
			for _, nb := range m.neighbors(entry.id, direction) {
				if visited[nb] {
					continue
				}
				visited[nb] = true
				newPath := make([]string, len(entry.path), len(entry.path)+1)
				copy(newPath, entry.path)
				newPath = append(newPath, nb)
				chains = append(chains, DependencyChain{
					Nodes: newPath,
					Depth: len(newPath) - 1,
				})
				nextQueue = append(nextQueue, bfsEntry{id: nb, path: newPath})
			}
		}
		queue = nextQueue
	}

	return chains, nil
}

// neighbors returns plugins one master edge away from id.
func (m *MemStore) neighbors(id string, direction Direction) []string {
	var result []string
	for _, e := range m.edges {
		if e.Kind != EdgeKindMaster {
			continue
		}
		switch direction {
		case DirectionUpstream:
			if e.From == id {
				result = append(result, e.To)
			}
		case DirectionDownstream:
			if e.To == id {
				result = append(result, e.From)
			}
		}
	}
	return result
}

// AssessImpact finds every plugin that depends, directly or through other
// plugins, on one of the changed plugins via master edges.
func (m *MemStore) AssessImpact(_ context.Context, changed []string) (*ImpactResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	changedSet := make(map[string]bool, len(changed))
	for _, f := range changed {
		changedSet[f] = true
	}

	// A master edge From->To means From depends on To.
	directSet := make(map[string]bool)
	for _, e := range m.edges {
		if e.Kind == EdgeKindMaster && changedSet[e.To] && !changedSet[e.From] {
			directSet[e.From] = true
		}
	}

	allAffected := make(map[string]bool, len(directSet))
	frontier := make(map[string]bool, len(directSet))
	for k := range directSet {
		allAffected[k] = true
		frontier[k] = true
	}
	for len(frontier) > 0 {
		next := make(map[string]bool)
		for _, e := range m.edges {
			if e.Kind != EdgeKindMaster {
				continue
			}
			if frontier[e.To] && !changedSet[e.From] && !allAffected[e.From] {
				allAffected[e.From] = true
				next[e.From] = true
			}
		}
		frontier = next
	}

	transitive := setToSlice(allAffected)
	var risk float64
	if len(m.plugins) > 0 {
		risk = float64(len(transitive)) / float64(len(m.plugins))
	}

	return &ImpactResult{
		DirectlyAffected:     setToSlice(directSet),
		TransitivelyAffected: transitive,
		RiskScore:            risk,
	}, nil
}

// GetClusters returns all stored clusters.
func (m *MemStore) GetClusters(_ context.Context) ([]ClusterNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ClusterNode, len(m.clusters))
	copy(out, m.clusters)
	return out, nil
}

// Stats returns plugin, edge and cluster counts.
func (m *MemStore) Stats(_ context.Context) (*GraphStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	masters := 0
	for _, e := range m.edges {
		if e.Kind == EdgeKindMaster {
			masters++
		}
	}
	return &GraphStats{
		PluginCount:  len(m.plugins),
		EdgeCount:    len(m.edges),
		MasterEdges:  masters,
		ClusterCount: len(m.clusters),
	}, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}

// setToSlice converts a set to a sorted slice.
func setToSlice(s map[string]bool) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// sortPlugins orders plugins by load order, then file name.
func sortPlugins(ps []PluginNode) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].LoadOrder != ps[j].LoadOrder {
			return ps[i].LoadOrder < ps[j].LoadOrder
		}
		return ps[i].FileName < ps[j].FileName
	})
}
