package conflict

import "fmt"

// PatchFileName is the file name given to generated patch metadata.
const PatchFileName = "ConflictResolutionPatch.esp"

// GeneratePatch plans one patch record per conflict. No binary plugin is
// produced; records carry descriptive notes only.
//
// Source plugin per strategy:
//   - first-wins: first affected plugin
//   - last-wins, ai-suggest: last affected plugin
//   - merge-all: first affected plugin, action merge
//   - manual, rule-based: none; the record is deferred
func GeneratePatch(conflicts []Conflict, strategy Strategy) (*PatchESP, error) {
	if !validStrategy(strategy) {
		return nil, &UnknownStrategyError{Strategy: strategy}
	}

	records := make([]PatchRecord, 0, len(conflicts))
	for _, c := range conflicts {
		formID := c.FormID
		if formID == "" {
			formID = FormatFormID(0)
		}
		records = append(records, PatchRecord{
			FormID:       formID,
			RecordType:   c.RecordType,
			SourcePlugin: preferredPlugin(c, strategy),
			Fields:       fieldChanges(c),
			Resolution:   patchAction(strategy),
		})
	}

	return &PatchESP{
		FileName:     PatchFileName,
		Records:      records,
		Masters:      collectMasters(conflicts),
		LoadPosition: "last",
		Description:  fmt.Sprintf("Generated with strategy: %s", strategy),
	}, nil
}

func validStrategy(s Strategy) bool {
	for _, known := range Strategies {
		if s == known {
			return true
		}
	}
	return false
}

func preferredPlugin(c Conflict, strategy Strategy) string {
	if len(c.AffectedPlugins) == 0 {
		return ""
	}
	switch strategy {
	case StrategyLastWins, StrategyAISuggest:
		return c.AffectedPlugins[len(c.AffectedPlugins)-1]
	case StrategyManual, StrategyRuleBased:
		return ""
	default:
		return c.AffectedPlugins[0]
	}
}

func patchAction(strategy Strategy) PatchAction {
	switch strategy {
	case StrategyMergeAll:
		return ActionMerge
	case StrategyManual, StrategyRuleBased:
		return ActionDefer
	default:
		return ActionKeep
	}
}

func fieldChanges(c Conflict) []FieldChange {
	note := c.ResolutionSuggestion
	if note == "" {
		note = "Conflict resolution needed"
	}
	return []FieldChange{{Field: "record", Note: note}}
}

// collectMasters lists every affected plugin once, in first-seen order.
func collectMasters(conflicts []Conflict) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, c := range conflicts {
		for _, p := range c.AffectedPlugins {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}
