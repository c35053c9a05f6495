package graph

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dusk-indust/espgraph/internal/conflict"
	"github.com/dusk-indust/espgraph/internal/esp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Builder turns a set of plugin paths into a ModDependencyGraph.
type Builder struct {
	cache      *esp.Cache
	log        *zap.Logger
	workers    int
	extensions []string
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the builder logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.log = l
		}
	}
}

// WithWorkers bounds the number of plugins analyzed at once.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithExtensions replaces esp.PluginExtensions as the set of paths Build
// accepts.
func WithExtensions(exts []string) Option {
	return func(b *Builder) {
		if len(exts) > 0 {
			b.extensions = exts
		}
	}
}

// NewBuilder returns a Builder reading plugins through cache. A nil cache
// gets a private one.
func NewBuilder(cache *esp.Cache, opts ...Option) *Builder {
	if cache == nil {
		cache = esp.NewCache()
	}
	b := &Builder{
		cache:      cache,
		log:        zap.NewNop(),
		workers:    runtime.GOMAXPROCS(0),
		extensions: esp.PluginExtensions,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// nodeResult is the per-plugin output of the parallel phase.
type nodeResult struct {
	references []int // references[j] = matches of plugin j's form ids
	conflicts  []ModConflict
}

// Build parses paths and derives nodes, edges, load order and cycles.
// Paths without a plugin extension are ignored, and files that fail to
// parse are logged and skipped. Only cancellation is an error.
func (b *Builder) Build(ctx context.Context, paths []string) (*ModDependencyGraph, error) {
	plugins, err := b.load(ctx, paths)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	g := &ModDependencyGraph{
		Nodes:     make([]*ModNode, len(plugins)),
		Edges:     []DependencyEdge{},
		Cycles:    [][]string{},
		LoadOrder: []string{},
	}
	for i, p := range plugins {
		g.Nodes[i] = newNode(p)
	}

	owners := formIDOwners(plugins)
	results := make([]nodeResult, len(plugins))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(b.workers)
	for i := range plugins {
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			results[i] = nodeResult{
				references: countReferences(i, plugins[i], owners, len(plugins)),
				conflicts:  nodeConflicts(i, plugins),
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	index := nameIndex(plugins)
	for i, node := range g.Nodes {
		g.Edges = append(g.Edges, masterEdges(i, node, plugins, index)...)
		for j, count := range results[i].references {
			if count == 0 {
				continue
			}
			g.Edges = append(g.Edges, DependencyEdge{
				From:   node.FileName,
				To:     plugins[j].FileName,
				Kind:   EdgeKindCompatibility,
				Weight: float64(count) / 100.0,
			})
		}
		node.Conflicts = results[i].conflicts
	}

	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.FileName
	}
	g.LoadOrder = b.loadOrder(names, g.Edges)
	for pos, name := range g.LoadOrder {
		g.Node(name).LoadOrder = pos + 1
	}

	g.Cycles = findCycles(names, g.Edges)
	for _, c := range g.Cycles {
		b.log.Warn("dependency cycle", zap.Strings("plugins", c))
	}

	b.log.Debug("built dependency graph",
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("edges", len(g.Edges)),
		zap.Int("cycles", len(g.Cycles)),
	)
	return g, nil
}

// load parses the plugin paths, dropping failures and repeated file names.
func (b *Builder) load(ctx context.Context, paths []string) ([]*esp.Plugin, error) {
	var accepted []string
	for _, p := range paths {
		if !esp.HasExtension(p, b.extensions) {
			b.log.Debug("ignoring non-plugin path", zap.String("path", p))
			continue
		}
		accepted = append(accepted, p)
	}

	results, err := b.cache.LoadAll(ctx, accepted)
	if err != nil {
		return nil, err
	}

	var plugins []*esp.Plugin
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		if r.Err != nil {
			b.log.Warn("skipping plugin", zap.String("path", r.Path), zap.Error(r.Err))
			continue
		}
		key := strings.ToLower(r.Plugin.FileName)
		if seen[key] {
			b.log.Warn("skipping duplicate plugin name", zap.String("path", r.Path))
			continue
		}
		seen[key] = true
		plugins = append(plugins, r.Plugin)
	}
	return plugins, nil
}

func newNode(p *esp.Plugin) *ModNode {
	provided := make(map[string][]uint32)
	for _, rec := range p.Records {
		provided[rec.Type] = append(provided[rec.Type], rec.FormID)
	}
	masters := make([]string, len(p.Masters))
	copy(masters, p.Masters)
	return &ModNode{
		Name:            strings.TrimSuffix(p.FileName, filepath.Ext(p.FileName)),
		FileName:        p.FileName,
		Masters:         masters,
		OptionalMasters: []string{},
		ProvidedRecords: provided,
		RequiredRecords: map[string][]uint32{},
		Conflicts:       []ModConflict{},
		Enabled:         true,
		IsMaster:        p.IsMaster(),
		IsLight:         p.IsLight(),
	}
}

// nameIndex maps lowercased file names to plugin positions.
func nameIndex(plugins []*esp.Plugin) map[string]int {
	idx := make(map[string]int, len(plugins))
	for i, p := range plugins {
		idx[strings.ToLower(p.FileName)] = i
	}
	return idx
}

// masterEdges links node i to each declared master present in the set. A
// master matches a node by file name, ignoring case, or as name+".esm".
func masterEdges(i int, node *ModNode, plugins []*esp.Plugin, index map[string]int) []DependencyEdge {
	var out []DependencyEdge
	linked := make(map[int]bool)
	for _, m := range node.Masters {
		j, ok := index[strings.ToLower(m)]
		if !ok {
			j, ok = index[strings.ToLower(m+".esm")]
		}
		if !ok || j == i || linked[j] {
			continue
		}
		linked[j] = true
		out = append(out, DependencyEdge{
			From:   node.FileName,
			To:     plugins[j].FileName,
			Kind:   EdgeKindMaster,
			Weight: 1.0,
		})
	}
	return out
}

// formIDOwners maps each form id to how many top-level records each plugin
// defines with it.
func formIDOwners(plugins []*esp.Plugin) map[uint32]map[int]int {
	owners := make(map[uint32]map[int]int)
	for i, p := range plugins {
		for _, rec := range p.Records {
			m := owners[rec.FormID]
			if m == nil {
				m = make(map[int]int, 1)
				owners[rec.FormID] = m
			}
			m[i]++
		}
	}
	return owners
}

// countReferences scans the concatenated field payloads of every record in
// p for little-endian form ids of other plugins. Each (record, other record)
// pair whose id occurs counts once. Coincidental byte matches count too.
func countReferences(i int, p *esp.Plugin, owners map[uint32]map[int]int, n int) []int {
	counts := make([]int, n)
	var buf []byte
	for _, rec := range p.Records {
		buf = buf[:0]
		for _, f := range rec.Fields {
			buf = append(buf, f.Data...)
		}
		seen := make(map[uint32]bool)
		for k := 0; k+4 <= len(buf); k++ {
			v := binary.LittleEndian.Uint32(buf[k:])
			if seen[v] {
				continue
			}
			seen[v] = true
			for j, c := range owners[v] {
				if j != i {
					counts[j] += c
				}
			}
		}
	}
	return counts
}

// nodeConflicts lists the records of plugins[i] that another plugin defines
// with the same form id and record type.
func nodeConflicts(i int, plugins []*esp.Plugin) []ModConflict {
	out := []ModConflict{}
	p := plugins[i]
	for j, other := range plugins {
		if j == i {
			continue
		}
		for _, rec := range p.Records {
			theirs, ok := other.Lookup(rec.FormID)
			if !ok || theirs.Type != rec.Type {
				continue
			}
			kind, severity := conflict.Classify(rec.Type)
			out = append(out, ModConflict{
				ConflictingMod: other.FileName,
				RecordType:     rec.Type,
				FormIDs:        []uint32{rec.FormID},
				ConflictType:   kind,
				Severity:       severity,
			})
		}
	}
	return out
}
