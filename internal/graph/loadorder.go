package graph

import "go.uber.org/zap"

// loadOrder sorts names so every master precedes the plugins declaring it.
// The DFS follows master edges only; a back-edge into a plugin still being
// visited is a cycle, which is logged and skipped so the cyclic plugins are
// still placed, in best-effort order.
func (b *Builder) loadOrder(names []string, edges []DependencyEdge) []string {
	masters := make(map[string][]string, len(names))
	for _, e := range edges {
		if e.Kind == EdgeKindMaster {
			masters[e.From] = append(masters[e.From], e.To)
		}
	}

	visited := make(map[string]bool, len(names))
	visiting := make(map[string]bool)
	order := make([]string, 0, len(names))

	var visit func(name string)
	visit = func(name string) {
		visiting[name] = true
		for _, m := range masters[name] {
			if visited[m] {
				continue
			}
			if visiting[m] {
				b.log.Warn("master cycle in load order",
					zap.String("plugin", name),
					zap.String("master", m),
				)
				continue
			}
			visit(m)
		}
		delete(visiting, name)
		visited[name] = true
		order = append(order, name)
	}

	for _, name := range names {
		if !visited[name] {
			visit(name)
		}
	}
	return order
}

// findCycles runs a DFS over all edges with a recursion stack. Revisiting a
// plugin on the stack reports the path from its first occurrence as a cycle
// and ends the search from that root, so at most one cycle is reported per
// root and not every cycle is found.
func findCycles(names []string, edges []DependencyEdge) [][]string {
	adj := make(map[string][]string, len(names))
	for _, e := range edges {
		adj[e.From] = append(adj[e.From], e.To)
	}

	cycles := [][]string{}
	visited := make(map[string]bool, len(names))
	onStack := make(map[string]bool)
	var path []string

	var dfs func(name string) bool
	dfs = func(name string) bool {
		visited[name] = true
		onStack[name] = true
		path = append(path, name)

		for _, next := range adj[name] {
			if !visited[next] {
				if dfs(next) {
					return true
				}
			} else if onStack[next] {
				for k, p := range path {
					if p == next {
						cycle := make([]string, len(path)-k)
						copy(cycle, path[k:])
						cycles = append(cycles, cycle)
						break
					}
				}
				return true
			}
		}

		onStack[name] = false
		path = path[:len(path)-1]
		return false
	}

	for _, name := range names {
		if visited[name] {
			continue
		}
		dfs(name)
		clear(onStack)
		path = path[:0]
	}
	return cycles
}
