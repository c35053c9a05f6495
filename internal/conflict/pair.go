package conflict

import (
	"sort"
	"strings"

	"github.com/dusk-indust/espgraph/internal/esp"
)

// LoadOrder lists plugin file names from first-loaded to last-loaded.
// The later a plugin sits, the more authoritative its records.
type LoadOrder []string

// Position returns the index of name (case-insensitive), or -1.
func (o LoadOrder) Position(name string) int {
	for i, n := range o {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}

// Winner returns whichever of a and b loads later. A plugin missing from
// the order loses to one that is present; when both are missing b wins.
func (o LoadOrder) Winner(a, b string) string {
	if o.Position(a) > o.Position(b) {
		return a
	}
	return b
}

// ComparePair emits one Conflict per form id defined by both plugins,
// ordered by form id. The winner of each conflict is the plugin positioned
// later in order.
//
// Equal numeric form ids are always treated as overrides, even when the
// two plugins do not share the master that owns the id. When the two
// records differ in type, the more severe classification is reported.
func ComparePair(a, b *esp.Plugin, order LoadOrder) []Conflict {
	ids := make([]uint32, 0)
	for id := range a.FormIDs {
		if _, ok := b.FormIDs[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	winner := order.Winner(a.FileName, b.FileName)
	loser := a.FileName
	if winner == a.FileName {
		loser = b.FileName
	}

	out := make([]Conflict, 0, len(ids))
	for _, id := range ids {
		recA, recB := a.FormIDs[id], b.FormIDs[id]
		rec := recA
		kind, severity := Classify(recA.Type)
		if k, s := Classify(recB.Type); s.rank() > severity.rank() {
			rec, kind, severity = recB, k, s
		}
		editorID := recA.EditorID
		if editorID == "" {
			editorID = recB.EditorID
		}
		out = append(out, Conflict{
			FormID:               FormatFormID(id),
			RecordType:           rec.Type,
			EditorID:             editorID,
			AffectedPlugins:      []string{a.FileName, b.FileName},
			WinningPlugin:        winner,
			LosingPlugins:        []string{loser},
			Severity:             severity,
			ConflictType:         kind,
			ResolutionSuggestion: suggestion(rec.Type, severity),
		})
	}
	return out
}
