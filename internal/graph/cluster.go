package graph

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// ComputeClusters finds connected groups of plugins and stores them as
// ClusterNodes.
//
// Algorithm:
//  1. Build an undirected adjacency list from master edges among stored plugins.
//  2. Find connected components via BFS, visiting plugins in load order.
//  3. For each component with >= 2 plugins, compute a cohesion score over all
//     edge kinds and store the cluster.
func ComputeClusters(ctx context.Context, store Store) ([]ClusterNode, error) {
	plugins, err := store.ListPlugins(ctx)
	if err != nil {
		return nil, fmt.Errorf("list plugins: %w", err)
	}
	edges, err := store.GetAllEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}

	adj := buildAdjacency(plugins, edges)
	visited := make(map[string]bool, len(plugins))
	used := make(map[string]bool)
	clusters := []ClusterNode{}

	for _, p := range plugins {
		if visited[p.FileName] {
			continue
		}
		component := bfsComponent(p.FileName, adj, visited)
		if len(component) < 2 {
			continue
		}
		cluster := ClusterNode{
			Name:          clusterName(component, used),
			CohesionScore: computeCohesion(component, edges),
			Members:       component,
		}
		if err := store.AddCluster(ctx, cluster); err != nil {
			return nil, err
		}
		clusters = append(clusters, cluster)
	}

	return clusters, nil
}

// buildAdjacency constructs an undirected adjacency list from master edges
// between known plugins. Neighbor lists keep edge order.
func buildAdjacency(plugins []PluginNode, edges []DependencyEdge) map[string][]string {
	adj := make(map[string][]string, len(plugins))
	for _, p := range plugins {
		adj[p.FileName] = nil
	}
	for _, e := range edges {
		if e.Kind != EdgeKindMaster {
			continue
		}
		if _, ok := adj[e.From]; !ok {
			continue
		}
		if _, ok := adj[e.To]; !ok {
			continue
		}
		adj[e.From] = append(adj[e.From], e.To)
		adj[e.To] = append(adj[e.To], e.From)
	}
	return adj
}

// bfsComponent performs BFS from start and returns all reachable plugins,
// marking them visited.
func bfsComponent(start string, adj map[string][]string, visited map[string]bool) []string {
	var component []string
	queue := []string{start}
	visited[start] = true

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		component = append(component, node)
		for _, neighbor := range adj[node] {
			if !visited[neighbor] {
				visited[neighbor] = true
				queue = append(queue, neighbor)
			}
		}
	}

	return component
}

// computeCohesion calculates internal / (internal + external) over edges of
// any kind. Internal edges join two members; external edges join a member
// to a non-member. Each directed edge counts once.
func computeCohesion(component []string, edges []DependencyEdge) float64 {
	members := make(map[string]bool, len(component))
	for _, m := range component {
		members[m] = true
	}

	internal, external := 0, 0
	for _, e := range edges {
		from, to := members[e.From], members[e.To]
		switch {
		case from && to:
			internal++
		case from || to:
			external++
		}
	}

	total := internal + external
	if total == 0 {
		return 0
	}
	return float64(internal) / float64(total)
}

// clusterName names a component by the common prefix of its member names
// when that prefix is meaningful, else by its first member. Names are kept
// unique across one run.
func clusterName(component []string, used map[string]bool) string {
	stems := make([]string, len(component))
	for i, c := range component {
		stems[i] = strings.TrimSuffix(c, filepath.Ext(c))
	}

	name := strings.TrimRight(commonPrefix(stems), " -_.")
	if len(name) < 3 {
		name = stems[0]
	}
	base := name
	for n := 2; used[name]; n++ {
		name = fmt.Sprintf("%s-%d", base, n)
	}
	used[name] = true
	return name
}

// commonPrefix returns the longest shared prefix of ss.
func commonPrefix(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	prefix := ss[0]
	for _, s := range ss[1:] {
		for !strings.HasPrefix(s, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				return ""
			}
		}
	}
	return prefix
}
