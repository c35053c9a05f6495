package conflict

// --- Enums ---

// Severity ranks how dangerous a conflict is.
type Severity string

const (
	SeverityNone     Severity = "none" // matrix cells only
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// rank orders severities for max/min comparisons.
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityMajor:
		return 2
	case SeverityMinor:
		return 1
	default:
		return 0
	}
}

// Type classifies what kind of data a conflict touches.
type Type string

const (
	TypeOverride Type = "override"
	TypeDelete   Type = "delete"
	TypeNavmesh  Type = "navmesh"
	TypeScript   Type = "script"
	TypeAsset    Type = "asset"
)

// Strategy selects how GeneratePatch picks a source plugin per conflict.
type Strategy string

const (
	StrategyFirstWins Strategy = "first-wins"
	StrategyLastWins  Strategy = "last-wins"
	StrategyMergeAll  Strategy = "merge-all"
	StrategyManual    Strategy = "manual"
	StrategyRuleBased Strategy = "rule-based"
	StrategyAISuggest Strategy = "ai-suggest"
)

// Strategies lists every supported strategy.
var Strategies = []Strategy{
	StrategyFirstWins, StrategyLastWins, StrategyMergeAll,
	StrategyManual, StrategyRuleBased, StrategyAISuggest,
}

// PatchAction is what a patch record does with its source plugin's version.
type PatchAction string

const (
	ActionKeep  PatchAction = "keep"
	ActionMerge PatchAction = "merge"
	ActionDefer PatchAction = "defer" // left for a human or a rule pass
)

// Recommendation is the suggested outcome of a record comparison.
type Recommendation string

const (
	RecommendKeepA  Recommendation = "keep-a"
	RecommendKeepB  Recommendation = "keep-b"
	RecommendMerge  Recommendation = "merge"
	RecommendManual Recommendation = "manual"
)

// --- Models ---

// Conflict is one form id defined by more than one plugin.
type Conflict struct {
	FormID               string   `json:"formId" yaml:"formId"` // "0x" + lowercase hex
	RecordType           string   `json:"recordType" yaml:"recordType"`
	EditorID             string   `json:"editorId,omitempty" yaml:"editorId,omitempty"`
	AffectedPlugins      []string `json:"affectedPlugins" yaml:"affectedPlugins"`
	WinningPlugin        string   `json:"winningPlugin" yaml:"winningPlugin"`
	LosingPlugins        []string `json:"losingPlugins" yaml:"losingPlugins"`
	Severity             Severity `json:"severity" yaml:"severity"`
	ConflictType         Type     `json:"conflictType" yaml:"conflictType"`
	ResolutionSuggestion string   `json:"resolutionSuggestion" yaml:"resolutionSuggestion"`
}

// PluginConflictInfo tallies conflicts for one plugin.
type PluginConflictInfo struct {
	PluginName      string   `json:"pluginName"`
	ConflictCount   int      `json:"conflictCount"`
	CriticalCount   int      `json:"criticalCount"`
	AffectedRecords []string `json:"affectedRecords"`
}

// HeatmapCell is one non-empty cell of the conflict matrix.
type HeatmapCell struct {
	X        int       `json:"x"`
	Y        int       `json:"y"`
	Value    int       `json:"value"`
	Severity Severity  `json:"severity"`
	Plugins  [2]string `json:"plugins"`
}

// Matrix holds pairwise conflict counts and worst severities. Both 2D
// slices are symmetric with a zero/none diagonal.
type Matrix struct {
	Plugins     []string      `json:"plugins"`
	Conflicts   [][]int       `json:"conflicts"`
	SeverityMap [][]Severity  `json:"severityMap"`
	Heatmap     []HeatmapCell `json:"heatmapData"`
}

// Analysis is the result of AnalyzeConflicts.
type Analysis struct {
	TotalConflicts    int                  `json:"totalConflicts"`
	CriticalConflicts int                  `json:"criticalConflicts"`
	Plugins           []PluginConflictInfo `json:"plugins"`
	Matrix            Matrix               `json:"conflictMatrix"`
	Conflicts         []Conflict           `json:"conflicts"`
	Recommendations   []string             `json:"recommendations"`
}

// RecordData is one side of a record comparison. Fields maps a field key
// (tag, or tag#n for the n-th repeat) to its displayed payload.
type RecordData struct {
	PluginName string            `json:"pluginName"`
	FormID     string            `json:"formId"`
	RecordType string            `json:"recordType"`
	EditorID   string            `json:"editorId,omitempty"`
	Fields     map[string]string `json:"fields"`
}

// FieldDifference is one field key whose values differ. A nil value means
// the field is absent on that side.
type FieldDifference struct {
	FieldName string  `json:"fieldName"`
	ValueA    *string `json:"valueA,omitempty"`
	ValueB    *string `json:"valueB,omitempty"`
	Important bool    `json:"important"`
}

// RecordComparison is the result of CompareRecords.
type RecordComparison struct {
	FormID         string            `json:"formId"`
	RecordType     string            `json:"recordType"`
	PluginA        RecordData        `json:"pluginA"`
	PluginB        RecordData        `json:"pluginB"`
	Differences    []FieldDifference `json:"differences"`
	Recommendation Recommendation    `json:"recommendation"`
}

// FieldChange is a descriptive note attached to a patch record.
type FieldChange struct {
	Field string `json:"field"`
	Note  string `json:"note"`
}

// PatchRecord describes how one conflicting record should be patched.
type PatchRecord struct {
	FormID       string        `json:"formId"`
	RecordType   string        `json:"recordType"`
	SourcePlugin string        `json:"sourcePlugin,omitempty"` // empty when deferred
	Fields       []FieldChange `json:"fields"`
	Resolution   PatchAction   `json:"resolution"`
}

// PatchESP is patch-planning metadata. It is not an installable plugin.
type PatchESP struct {
	FileName     string        `json:"fileName"`
	Records      []PatchRecord `json:"records"`
	Masters      []string      `json:"masters"`
	LoadPosition string        `json:"loadPosition"`
	Description  string        `json:"description"`
}

// CompatibilityReport is the result of CheckCompatibility.
type CompatibilityReport struct {
	ModA            string     `json:"modA"`
	ModB            string     `json:"modB"`
	Compatible      bool       `json:"compatible"`
	Severity        Severity   `json:"severity"`
	Conflicts       []Conflict `json:"conflicts"`
	Summary         string     `json:"summary"`
	Recommendations []string   `json:"recommendations"`
}

// MergeRecommendation flags a plugin pair dense enough in shared records to
// be worth merging.
type MergeRecommendation struct {
	Plugins       [2]string `json:"plugins"`
	ConflictCount int       `json:"conflictCount"`
	Severity      Severity  `json:"severity"`
	Reason        string    `json:"reason"`
}

// RuleMatch lists the conflict fields a rule constrains. Empty fields match
// anything.
type RuleMatch struct {
	Type       Type     `json:"type,omitempty" yaml:"type,omitempty"`
	RecordType string   `json:"recordType,omitempty" yaml:"recordType,omitempty"`
	Severity   Severity `json:"severity,omitempty" yaml:"severity,omitempty"`
	Plugin     string   `json:"plugin,omitempty" yaml:"plugin,omitempty"`
}

// RuleAction is applied to conflicts a rule matches.
type RuleAction struct {
	Resolution string `json:"resolution" yaml:"resolution"`
}

// Rule is a user-defined resolution rule.
type Rule struct {
	Name     string     `json:"name" yaml:"name"`
	Enabled  bool       `json:"enabled" yaml:"enabled"`
	Priority int        `json:"priority" yaml:"priority"`
	Match    RuleMatch  `json:"match" yaml:"match"`
	Action   RuleAction `json:"action" yaml:"action"`
}

// Resolved is the result of ApplyRules.
type Resolved struct {
	Resolved     []Conflict `json:"resolved"`
	Unresolved   []Conflict `json:"unresolved"`
	AppliedRules []string   `json:"appliedRules"`
}
