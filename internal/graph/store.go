package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNoPersistence is returned by Persist and OpenPersisted in builds
// without cgo.
var ErrNoPersistence = errors.New("graph persistence requires a cgo build (KuzuDB)")

// Store is the interface for the plugin graph backend.
// Implementations: KuzuStore (on disk, cgo), MemStore (in process).
type Store interface {
	io.Closer

	// Schema setup, called once before any data is inserted.
	InitSchema(ctx context.Context) error

	// Write operations.
	AddPlugin(ctx context.Context, node PluginNode) error
	AddEdge(ctx context.Context, edge DependencyEdge) error
	AddCluster(ctx context.Context, node ClusterNode) error

	// Read operations.
	GetPlugin(ctx context.Context, fileName string) (*PluginNode, error)
	ListPlugins(ctx context.Context) ([]PluginNode, error)
	GetAllEdges(ctx context.Context) ([]DependencyEdge, error)

	// Graph traversal along master edges.
	GetDependencies(ctx context.Context, fileName string, direction Direction, maxDepth int) ([]DependencyChain, error)
	AssessImpact(ctx context.Context, changed []string) (*ImpactResult, error)
	GetClusters(ctx context.Context) ([]ClusterNode, error)

	// Stats.
	Stats(ctx context.Context) (*GraphStats, error)
}

// Direction controls dependency traversal direction.
type Direction string

const (
	DirectionUpstream   Direction = "upstream"   // masters of the plugin
	DirectionDownstream Direction = "downstream" // plugins that use it as a master
)

// ParseDirection validates a direction string. Empty means upstream.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case "", DirectionUpstream:
		return DirectionUpstream, nil
	case DirectionDownstream:
		return DirectionDownstream, nil
	default:
		return "", fmt.Errorf("unknown direction %q (want upstream or downstream)", s)
	}
}

// Load writes every node and edge of g into store. The schema is
// initialized first.
func Load(ctx context.Context, store Store, g *ModDependencyGraph) error {
	if err := store.InitSchema(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	for _, n := range g.Nodes {
		node := PluginNode{
			FileName:      n.FileName,
			Name:          n.Name,
			LoadOrder:     n.LoadOrder,
			RecordCount:   n.RecordCount(),
			ConflictCount: len(n.Conflicts),
			IsMaster:      n.IsMaster,
		}
		if err := store.AddPlugin(ctx, node); err != nil {
			return fmt.Errorf("add plugin %s: %w", n.FileName, err)
		}
	}
	for _, e := range g.Edges {
		if err := store.AddEdge(ctx, e); err != nil {
			return fmt.Errorf("add edge %s->%s: %w", e.From, e.To, err)
		}
	}
	return nil
}
