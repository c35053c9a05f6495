//go:build !cgo

package graph

import "context"

// Persist needs the cgo KuzuDB driver.
func Persist(_ context.Context, _ *ModDependencyGraph, _ string) (*GraphStats, error) {
	return nil, ErrNoPersistence
}

// OpenPersisted needs the cgo KuzuDB driver.
func OpenPersisted(_ string) (Store, error) {
	return nil, ErrNoPersistence
}
