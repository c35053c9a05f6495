package esp

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Cache memoizes parsed plugins by lowercased absolute path. It is
// constructed explicitly and injected into the graph builder and conflict
// engine so cold/warm behaviour is under the caller's control. Entries are
// never invalidated: files must not change during a session.
type Cache struct {
	parser  *Parser
	log     *zap.Logger
	workers int

	mu      sync.RWMutex
	entries map[string]*Plugin
	hits    int
	misses  int

	flight singleflight.Group
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithParser sets the parser used on cache misses.
func WithParser(p *Parser) CacheOption {
	return func(c *Cache) {
		if p != nil {
			c.parser = p
		}
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(l *zap.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// WithWorkers bounds how many files LoadAll parses at once.
func WithWorkers(n int) CacheOption {
	return func(c *Cache) {
		if n > 0 {
			c.workers = n
		}
	}
}

// NewCache returns an empty cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		parser:  NewParser(),
		log:     zap.NewNop(),
		workers: runtime.GOMAXPROCS(0),
		entries: make(map[string]*Plugin),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CacheStats summarizes cache usage.
type CacheStats struct {
	Entries int `json:"entries"`
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
}

// Stats returns current counters.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}

// cacheKey lowercases the absolute form of path.
func cacheKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return strings.ToLower(path)
}

// Get returns the parsed plugin for path, parsing it on first use.
// Concurrent Gets for the same key share one parse, which runs to completion
// even if the caller that started it is cancelled; each caller still gets
// its own context's error. Failed parses are not cached.
func (c *Cache) Get(ctx context.Context, path string) (*Plugin, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := cacheKey(path)

	c.mu.Lock()
	if p, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return p, nil
	}
	c.mu.Unlock()

	v, err, _ := c.flight.Do(key, func() (any, error) {
		c.mu.RLock()
		p, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return p, nil
		}

		// Shared by every waiting caller.
		p, err := c.parser.ParseFile(context.WithoutCancel(ctx), path)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = p
		c.misses++
		c.mu.Unlock()

		c.log.Debug("parsed plugin",
			zap.String("path", path),
			zap.Int("records", len(p.Records)),
			zap.Strings("masters", p.Masters),
		)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return v.(*Plugin), nil
}

// LoadResult is the outcome of loading one path.
type LoadResult struct {
	Path   string
	Plugin *Plugin
	Err    error
}

// LoadAll parses every path in parallel. Per-file failures are reported in
// the matching LoadResult; only cancellation aborts the batch. Results keep
// the order of paths.
func (c *Cache) LoadAll(ctx context.Context, paths []string) ([]LoadResult, error) {
	results := make([]LoadResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := c.Get(gctx, path)
			results[i] = LoadResult{Path: path, Plugin: p, Err: err}
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Load parses every path and fails on the first error.
func (c *Cache) Load(ctx context.Context, paths []string) ([]*Plugin, error) {
	results, err := c.LoadAll(ctx, paths)
	if err != nil {
		return nil, err
	}
	out := make([]*Plugin, len(results))
	for i, r := range results {
		if r.Err != nil {
			return nil, r.Err
		}
		out[i] = r.Plugin
	}
	return out, nil
}
