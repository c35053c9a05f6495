//go:build cgo

package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Persist replaces the KuzuDB graph at dir with g and its clusters.
func Persist(ctx context.Context, g *ModDependencyGraph, dir string) (*GraphStats, error) {
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("remove old graph: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, fmt.Errorf("create graph parent: %w", err)
	}
	dst, err := NewKuzuFileStore(dir)
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	if err := Load(ctx, dst, g); err != nil {
		return nil, err
	}
	if _, err := ComputeClusters(ctx, dst); err != nil {
		return nil, fmt.Errorf("compute clusters: %w", err)
	}
	return dst.Stats(ctx)
}

// OpenPersisted opens the KuzuDB graph previously written by Persist.
func OpenPersisted(dir string) (Store, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("no persisted graph at %s: %w", dir, err)
	}
	return NewKuzuFileStore(dir)
}
