package conflict

import (
	"sort"
	"strings"
)

// ApplyRules resolves conflicts with the first matching enabled rule, rules
// tried in descending priority (ties keep their given order). The matched
// rule's resolution text replaces the conflict's suggestion. Inputs are not
// modified.
func ApplyRules(conflicts []Conflict, rules []Rule) Resolved {
	active := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Enabled {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Priority > active[j].Priority })

	out := Resolved{Resolved: []Conflict{}, Unresolved: []Conflict{}, AppliedRules: []string{}}
	for _, c := range conflicts {
		matched := false
		for _, r := range active {
			if !r.Matches(c) {
				continue
			}
			c.ResolutionSuggestion = r.Action.Resolution
			out.Resolved = append(out.Resolved, c)
			out.AppliedRules = append(out.AppliedRules, r.Name)
			matched = true
			break
		}
		if !matched {
			out.Unresolved = append(out.Unresolved, c)
		}
	}
	return out
}

// Matches reports whether every field the rule sets agrees with c. Plugin
// matches when any affected plugin equals it case-insensitively.
func (r Rule) Matches(c Conflict) bool {
	m := r.Match
	if m.Type != "" && m.Type != c.ConflictType {
		return false
	}
	if m.RecordType != "" && m.RecordType != c.RecordType {
		return false
	}
	if m.Severity != "" && m.Severity != c.Severity {
		return false
	}
	if m.Plugin != "" {
		found := false
		for _, p := range c.AffectedPlugins {
			if strings.EqualFold(p, m.Plugin) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
