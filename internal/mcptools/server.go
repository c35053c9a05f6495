package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// Version reports the build version.
func Version() string { return version }

// NewModMCPServer creates an MCP server with every plugin analysis tool registered.
func NewModMCPServer(svc *ModService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "espgraph",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "build_graph",
		Description: "Parse a load order of Bethesda plugins and build the mod dependency graph. Returns nodes, master and compatibility edges, cycles, the computed load order and plugin clusters.",
	}, svc.BuildGraph)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_dependencies",
		Description: "Traverse master edges of the last built graph upstream (masters) or downstream (dependents) from a plugin. Returns dependency chains up to the specified depth.",
	}, svc.GetDependencies)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "assess_impact",
		Description: "Compute which plugins depend on a set of changed plugins through master edges, with a risk score.",
	}, svc.AssessImpact)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_clusters",
		Description: "Return the plugin clusters of the last built graph. Clusters are plugins connected by master edges, with cohesion scores.",
	}, svc.GetClusters)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_conflicts",
		Description: "Find every form id defined by more than one plugin. Returns classified conflicts, per-plugin tallies, the pairwise conflict matrix and recommendations.",
	}, svc.AnalyzeConflicts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "compare_records",
		Description: "Compare one record, by form id, across two plugins field by field and recommend which version to keep.",
	}, svc.CompareRecords)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_patch",
		Description: "Plan a conflict resolution patch for a list of conflicts using a strategy such as last-wins or merge-all.",
	}, svc.GeneratePatch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_compatibility",
		Description: "Report the conflicts between two plugins loaded in the given order and whether they are compatible.",
	}, svc.CheckCompatibility)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "recommend_merge",
		Description: "List plugin pairs sharing enough records to be worth merging into one plugin.",
	}, svc.RecommendMerge)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "apply_rules",
		Description: "Resolve conflicts with user-defined rules. The highest priority enabled rule matching a conflict sets its resolution.",
	}, svc.ApplyRules)

	return server
}

// RunMCPServer starts an HTTP server exposing the plugin analysis MCP tools.
func RunMCPServer(ctx context.Context, svc *ModService, addr string) error {
	server := NewModMCPServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
