//go:build cgo

package graph

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuStore implements the Store interface using KuzuDB as the graph backend.
// It requires CGO because the go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at
// dbPath. KuzuDB creates the leaf directory itself for new databases.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(path string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Node tables must precede relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS Plugin(
		file_name STRING,
		name STRING,
		load_order INT64,
		record_count INT64,
		conflict_count INT64,
		is_master BOOLEAN,
		PRIMARY KEY(file_name)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS ModGroup(
		name STRING,
		cohesion_score DOUBLE,
		PRIMARY KEY(name)
	)`,
	`CREATE REL TABLE IF NOT EXISTS MASTER(FROM Plugin TO Plugin, weight DOUBLE)`,
	`CREATE REL TABLE IF NOT EXISTS REFERENCES(FROM Plugin TO Plugin, weight DOUBLE)`,
	`CREATE REL TABLE IF NOT EXISTS BELONGS_TO(FROM Plugin TO ModGroup)`,
}

// relTables maps edge kinds to relationship tables.
var relTables = map[EdgeKind]string{
	EdgeKindMaster:        "MASTER",
	EdgeKindCompatibility: "REFERENCES",
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// ---------- Write operations ----------

// AddPlugin inserts a Plugin node.
func (s *KuzuStore) AddPlugin(_ context.Context, node PluginNode) error {
	return s.exec(
		`CREATE (p:Plugin {
			file_name: $fn,
			name: $name,
			load_order: $lo,
			record_count: $rc,
			conflict_count: $cc,
			is_master: $master
		})`,
		map[string]any{
			"fn":     node.FileName,
			"name":   node.Name,
			"lo":     int64(node.LoadOrder),
			"rc":     int64(node.RecordCount),
			"cc":     int64(node.ConflictCount),
			"master": node.IsMaster,
		},
	)
}

// AddEdge inserts a MASTER or REFERENCES relationship.
func (s *KuzuStore) AddEdge(_ context.Context, edge DependencyEdge) error {
	table, ok := relTables[edge.Kind]
	if !ok {
		return fmt.Errorf("kuzu: unsupported edge kind: %s", edge.Kind)
	}
	// Table name is a fixed internal constant, not user input.
	cypher := fmt.Sprintf(
		`MATCH (a:Plugin {file_name: $src}), (b:Plugin {file_name: $dst})
		 CREATE (a)-[:%s {weight: $w}]->(b)`, table)
	return s.exec(cypher, map[string]any{
		"src": edge.From,
		"dst": edge.To,
		"w":   edge.Weight,
	})
}

// AddCluster inserts a ModGroup node and a BELONGS_TO edge per member.
func (s *KuzuStore) AddCluster(_ context.Context, node ClusterNode) error {
	err := s.exec(
		"CREATE (g:ModGroup {name: $name, cohesion_score: $score})",
		map[string]any{
			"name":  node.Name,
			"score": node.CohesionScore,
		},
	)
	if err != nil {
		return err
	}
	for _, m := range node.Members {
		err := s.exec(
			`MATCH (p:Plugin {file_name: $fn}), (g:ModGroup {name: $name})
			 CREATE (p)-[:BELONGS_TO]->(g)`,
			map[string]any{"fn": m, "name": node.Name},
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ---------- Read operations ----------

const pluginColumns = "p.file_name, p.name, p.load_order, p.record_count, p.conflict_count, p.is_master"

// GetPlugin retrieves a single Plugin node, or nil if not found.
func (s *KuzuStore) GetPlugin(_ context.Context, fileName string) (*PluginNode, error) {
	rows, err := s.query(
		"MATCH (p:Plugin {file_name: $fn}) RETURN "+pluginColumns,
		map[string]any{"fn": fileName},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToPlugin(rows[0]), nil
}

// ListPlugins returns every plugin sorted by load order, then file name.
func (s *KuzuStore) ListPlugins(_ context.Context) ([]PluginNode, error) {
	rows, err := s.query("MATCH (p:Plugin) RETURN "+pluginColumns, nil)
	if err != nil {
		return nil, err
	}
	out := make([]PluginNode, 0, len(rows))
	for _, r := range rows {
		out = append(out, *rowToPlugin(r))
	}
	sortPlugins(out)
	return out, nil
}

// ---------- Graph traversal ----------

// GetDependencies performs a BFS over MASTER edges starting from fileName.
// It returns one DependencyChain per reachable plugin.
func (s *KuzuStore) GetDependencies(_ context.Context, fileName string, dir Direction, maxDepth int) ([]DependencyChain, error) {
	if maxDepth <= 0 {
		maxDepth = 10
	}

	type bfsEntry struct {
		path  []string
		depth int
	}
	visited := map[string]bool{fileName: true}
	queue := []bfsEntry{{path: []string{fileName}, depth: 0}}
	var chains []DependencyChain

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		tip := cur.path[len(cur.path)-1]
		neighbors, err := s.masterNeighbors(tip, dir)
		if err != nil {
			return nil, err
		}
		for _, nb := range neighbors {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			newPath := make([]string, len(cur.path)+1)
			copy(newPath, cur.path)
			newPath[len(cur.path)] = nb
			chains = append(chains, DependencyChain{
				Nodes: newPath,
				Depth: cur.depth + 1,
			})
			queue = append(queue, bfsEntry{path: newPath, depth: cur.depth + 1})
		}
	}
	return chains, nil
}

// masterNeighbors returns plugins one MASTER edge away.
func (s *KuzuStore) masterNeighbors(fileName string, dir Direction) ([]string, error) {
	var cypher string
	switch dir {
	case DirectionUpstream:
		cypher = "MATCH (a:Plugin {file_name: $fn})-[:MASTER]->(b:Plugin) RETURN b.file_name"
	case DirectionDownstream:
		cypher = "MATCH (a:Plugin)-[:MASTER]->(b:Plugin {file_name: $fn}) RETURN a.file_name"
	default:
		return nil, fmt.Errorf("kuzu: unknown direction: %s", dir)
	}
	rows, err := s.query(cypher, map[string]any{"fn": fileName})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, toString(r[0]))
	}
	return out, nil
}

// AssessImpact walks MASTER edges downstream from the changed plugins to
// find direct and transitive dependents, then scores the fraction affected.
func (s *KuzuStore) AssessImpact(ctx context.Context, changed []string) (*ImpactResult, error) {
	total, err := s.countTable("Plugin")
	if err != nil {
		return nil, err
	}

	directSet := map[string]bool{}
	transitiveSet := map[string]bool{}
	for _, f := range changed {
		chains, err := s.GetDependencies(ctx, f, DirectionDownstream, 1)
		if err != nil {
			return nil, err
		}
		for _, c := range chains {
			directSet[c.Nodes[len(c.Nodes)-1]] = true
		}

		all, err := s.GetDependencies(ctx, f, DirectionDownstream, 10)
		if err != nil {
			return nil, err
		}
		for _, c := range all {
			transitiveSet[c.Nodes[len(c.Nodes)-1]] = true
		}
	}

	changedSet := map[string]bool{}
	for _, f := range changed {
		changedSet[f] = true
	}
	direct := filterKeys(directSet, changedSet)
	transitive := filterKeys(transitiveSet, changedSet)

	risk := 0.0
	if total > 0 {
		risk = math.Min(1.0, float64(len(transitive))/float64(total))
	}

	return &ImpactResult{
		DirectlyAffected:     direct,
		TransitivelyAffected: transitive,
		RiskScore:            risk,
	}, nil
}

// GetClusters returns all ModGroup nodes with their members.
func (s *KuzuStore) GetClusters(_ context.Context) ([]ClusterNode, error) {
	rows, err := s.query("MATCH (g:ModGroup) RETURN g.name, g.cohesion_score", nil)
	if err != nil {
		return nil, err
	}
	out := make([]ClusterNode, 0, len(rows))
	for _, r := range rows {
		name := toString(r[0])
		memberRows, err := s.query(
			`MATCH (p:Plugin)-[:BELONGS_TO]->(g:ModGroup {name: $name})
			 RETURN p.file_name ORDER BY p.load_order`,
			map[string]any{"name": name},
		)
		if err != nil {
			return nil, err
		}
		members := make([]string, 0, len(memberRows))
		for _, mr := range memberRows {
			members = append(members, toString(mr[0]))
		}
		out = append(out, ClusterNode{
			Name:          name,
			CohesionScore: toFloat64(r[1]),
			Members:       members,
		})
	}
	return out, nil
}

// GetAllEdges returns MASTER edges then REFERENCES edges.
func (s *KuzuStore) GetAllEdges(_ context.Context) ([]DependencyEdge, error) {
	var edges []DependencyEdge
	for _, kind := range []EdgeKind{EdgeKindMaster, EdgeKindCompatibility} {
		cypher := fmt.Sprintf(
			"MATCH (a:Plugin)-[r:%s]->(b:Plugin) RETURN a.file_name, b.file_name, r.weight",
			relTables[kind])
		rows, err := s.query(cypher, nil)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			edges = append(edges, DependencyEdge{
				From:   toString(r[0]),
				To:     toString(r[1]),
				Kind:   kind,
				Weight: toFloat64(r[2]),
			})
		}
	}
	return edges, nil
}

// ---------- Stats ----------

// Stats returns counts of plugins, edges and clusters.
func (s *KuzuStore) Stats(_ context.Context) (*GraphStats, error) {
	plugins, err := s.countTable("Plugin")
	if err != nil {
		return nil, err
	}
	clusters, err := s.countTable("ModGroup")
	if err != nil {
		return nil, err
	}
	masters, err := s.countRel("MASTER")
	if err != nil {
		return nil, err
	}
	refs, err := s.countRel("REFERENCES")
	if err != nil {
		return nil, err
	}
	return &GraphStats{
		PluginCount:  plugins,
		EdgeCount:    masters + refs,
		MasterEdges:  masters,
		ClusterCount: clusters,
	}, nil
}

// ---------- Internal helpers ----------

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// countTable returns the number of rows in a node table.
func (s *KuzuStore) countTable(table string) (int, error) {
	rows, err := s.query(fmt.Sprintf("MATCH (n:%s) RETURN count(n)", table), nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return toInt(rows[0][0]), nil
}

// countRel returns the number of edges in a relationship table.
func (s *KuzuStore) countRel(table string) (int, error) {
	rows, err := s.query(fmt.Sprintf("MATCH ()-[r:%s]->() RETURN count(r)", table), nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return toInt(rows[0][0]), nil
}

// rowToPlugin converts a pluginColumns row into a PluginNode.
func rowToPlugin(r []any) *PluginNode {
	return &PluginNode{
		FileName:      toString(r[0]),
		Name:          toString(r[1]),
		LoadOrder:     toInt(r[2]),
		RecordCount:   toInt(r[3]),
		ConflictCount: toInt(r[4]),
		IsMaster:      toBool(r[5]),
	}
}

// filterKeys returns keys from set that are not in exclude, sorted.
func filterKeys(set, exclude map[string]bool) []string {
	keep := make(map[string]bool, len(set))
	for k := range set {
		if !exclude[k] {
			keep[k] = true
		}
	}
	return setToSlice(keep)
}

// ---------- Type coercion helpers ----------
// KuzuDB returns typed Go values (int64, float64, bool, string).

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func toBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}
