package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Result kinds carried in an Envelope.
const (
	KindGraph         = "graph"
	KindImpact        = "impact"
	KindConflicts     = "conflicts"
	KindComparison    = "comparison"
	KindPatch         = "patch"
	KindCompatibility = "compatibility"
	KindMerge         = "merge"
	KindRules         = "rules"
)

// Envelope wraps every exported result.
type Envelope struct {
	Kind       string `json:"kind"`
	ExportedAt string `json:"exportedAt"`
	Data       any    `json:"data"`
}

// now is replaced in tests.
var now = time.Now

// NewEnvelope stamps data with kind and the current UTC time.
func NewEnvelope(kind string, data any) Envelope {
	return Envelope{
		Kind:       kind,
		ExportedAt: now().UTC().Format(time.RFC3339),
		Data:       data,
	}
}

// WriteJSON writes data as an indented Envelope followed by a newline.
func WriteJSON(w io.Writer, kind string, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewEnvelope(kind, data)); err != nil {
		return fmt.Errorf("export %s: %w", kind, err)
	}
	return nil
}
