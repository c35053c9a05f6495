package export

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dusk-indust/espgraph/internal/graph"
)

// GenerateMermaid produces a Mermaid graph TD diagram from a graph store.
// Plugins are grouped by cluster; master edges are solid arrows and
// compatibility edges dotted arrows labelled with their weight.
func GenerateMermaid(ctx context.Context, store graph.Store) (string, error) {
	plugins, err := store.ListPlugins(ctx)
	if err != nil {
		return "", fmt.Errorf("list plugins: %w", err)
	}

	clusters, err := store.GetClusters(ctx)
	if err != nil {
		return "", fmt.Errorf("get clusters: %w", err)
	}

	edges, err := store.GetAllEdges(ctx)
	if err != nil {
		return "", fmt.Errorf("get edges: %w", err)
	}

	// Build node → ID mapping for Mermaid (alphanumeric only).
	nodeIDs := make(map[string]string)
	nextID := 0
	getID := func(key string) string {
		if id, ok := nodeIDs[key]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", nextID)
		nextID++
		nodeIDs[key] = id
		return id
	}

	clustered := make(map[string]bool)
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, c := range clusters {
		if len(c.Members) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "  subgraph %s[\"%s\"]\n", getID("cluster:"+c.Name), label(c.Name))
		for _, member := range c.Members {
			clustered[member] = true
			fmt.Fprintf(&sb, "    %s[\"%s\"]\n", getID(member), label(member))
		}
		sb.WriteString("  end\n")
	}

	for _, p := range plugins {
		if clustered[p.FileName] {
			continue
		}
		fmt.Fprintf(&sb, "  %s[\"%s\"]\n", getID(p.FileName), label(p.FileName))
	}

	for _, e := range edges {
		src, dst := getID(e.From), getID(e.To)
		switch e.Kind {
		case graph.EdgeKindMaster:
			fmt.Fprintf(&sb, "  %s --> %s\n", src, dst)
		case graph.EdgeKindCompatibility:
			fmt.Fprintf(&sb, "  %s -.->|%s| %s\n", src, strconv.FormatFloat(e.Weight, 'f', -1, 64), dst)
		}
	}

	return sb.String(), nil
}

// label escapes a name for use inside a quoted Mermaid label.
func label(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}
