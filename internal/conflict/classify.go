package conflict

import "fmt"

// classification is the (type, severity) pair for a record tag.
type classification struct {
	kind     Type
	severity Severity
}

var classifications = map[string]classification{
	"NAVM": {TypeNavmesh, SeverityCritical},
	"NAVI": {TypeNavmesh, SeverityCritical},
	"PACK": {TypeDelete, SeverityMajor},
	"SCPT": {TypeScript, SeverityMajor},
	"TXST": {TypeAsset, SeverityMinor},
	"STAT": {TypeAsset, SeverityMinor},
	"MESH": {TypeAsset, SeverityMinor},
}

// Classify maps a record type tag to its conflict type and severity.
// Unknown tags are (override, minor).
func Classify(recordType string) (Type, Severity) {
	if c, ok := classifications[recordType]; ok {
		return c.kind, c.severity
	}
	return TypeOverride, SeverityMinor
}

// Highest returns the worst severity among conflicts, or minor when there
// are none.
func Highest(conflicts []Conflict) Severity {
	out := SeverityMinor
	for _, c := range conflicts {
		if c.Severity.rank() > out.rank() {
			out = c.Severity
		}
	}
	return out
}

// worst is like Highest but yields none for an empty slice.
func worst(conflicts []Conflict) Severity {
	if len(conflicts) == 0 {
		return SeverityNone
	}
	return Highest(conflicts)
}

// FormatFormID renders a form id the way conflicts carry it.
func FormatFormID(id uint32) string {
	return fmt.Sprintf("0x%x", id)
}

// suggestion produces the default resolution text for a conflict.
func suggestion(recordType string, severity Severity) string {
	if severity == SeverityCritical {
		return "Manual resolution required - conflicts may break gameplay"
	}
	switch recordType {
	case "WEAP", "ARMO":
		return "Consider merging equipment stats or keeping higher-level version"
	case "NPC_":
		return "NPC conflicts may affect quest progression - review carefully"
	}
	return "Standard override resolution should work"
}
