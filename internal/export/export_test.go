package export

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dusk-indust/espgraph/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateMermaid(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemStore()
	for i, name := range []string{"Base.esm", "Base - Patch.esp", "Loose.esp"} {
		require.NoError(t, store.AddPlugin(ctx, graph.PluginNode{FileName: name, LoadOrder: i + 1}))
	}
	require.NoError(t, store.AddEdge(ctx, graph.DependencyEdge{
		From: "Base - Patch.esp", To: "Base.esm", Kind: graph.EdgeKindMaster, Weight: 1,
	}))
	require.NoError(t, store.AddEdge(ctx, graph.DependencyEdge{
		From: "Loose.esp", To: "Base.esm", Kind: graph.EdgeKindCompatibility, Weight: 0.03,
	}))
	_, err := graph.ComputeClusters(ctx, store)
	require.NoError(t, err)

	got, err := GenerateMermaid(ctx, store)
	require.NoError(t, err)

	want := `graph TD
  subgraph N0["Base"]
    N1["Base.esm"]
    N2["Base - Patch.esp"]
  end
  N3["Loose.esp"]
  N2 --> N1
  N3 -.->|0.03| N1
`
	assert.Equal(t, want, got)
}

func TestGenerateMermaid_Empty(t *testing.T) {
	got, err := GenerateMermaid(context.Background(), graph.NewMemStore())
	require.NoError(t, err)
	assert.Equal(t, "graph TD\n", got)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, `say #quot;hi#quot;.esp`, label(`say "hi".esp`))
}

func TestWriteJSON(t *testing.T) {
	orig := now
	now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	t.Cleanup(func() { now = orig })

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, KindMerge, map[string]int{"count": 2}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "merge", got["kind"])
	assert.Equal(t, "2026-01-02T03:04:05Z", got["exportedAt"])
	assert.Equal(t, map[string]any{"count": float64(2)}, got["data"])
}

func TestWriteJSON_Unencodable(t *testing.T) {
	var buf bytes.Buffer
	err := WriteJSON(&buf, KindGraph, make(chan int))
	assert.Error(t, err)
}
