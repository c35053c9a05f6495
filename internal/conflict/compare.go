package conflict

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dusk-indust/espgraph/internal/esp"
)

// importantFields are the field tags whose differences are flagged.
var importantFields = map[string]bool{
	"NAME": true, "EDID": true, "FULL": true, "DESC": true,
	"MODL": true, "ICON": true, "MICO": true,
}

// equipmentTypes get a manual recommendation when important fields differ.
var equipmentTypes = map[string]bool{
	"WEAP": true, "ARMO": true, "NPC_": true, "CREA": true,
}

// ParseFormID parses a comparison identifier: hex with or without a 0x
// prefix, at most eight digits. Record-type identifiers such as "WEAP" are
// rejected with an *UnsupportedIdentifierError rather than read as hex.
func ParseFormID(identifier string) (uint32, error) {
	id := strings.TrimSpace(identifier)
	if esp.IsRecordType(id) {
		return 0, &UnsupportedIdentifierError{
			Identifier: identifier,
			Reason:     "record-type comparison is not supported; pass a hex form id such as 0x00001234",
		}
	}

	digits := id
	if len(digits) > 2 && (digits[:2] == "0x" || digits[:2] == "0X") {
		digits = digits[2:]
	}
	if digits == "" || len(digits) > 8 {
		return 0, &UnsupportedIdentifierError{Identifier: identifier, Reason: "expected 1-8 hex digits"}
	}
	v, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return 0, &UnsupportedIdentifierError{Identifier: identifier, Reason: "not a hex form id"}
	}
	return uint32(v), nil
}

// CompareRecords diffs the record with the given form id in two plugins.
// A side that lacks the record contributes an empty field map; only a form
// id missing from both sides is an error.
func (e *Engine) CompareRecords(ctx context.Context, pluginA, pluginB, identifier string) (*RecordComparison, error) {
	formID, err := ParseFormID(identifier)
	if err != nil {
		return nil, err
	}

	plugins, err := e.cache.Load(ctx, []string{pluginA, pluginB})
	if err != nil {
		return nil, fmt.Errorf("compare records: %w", err)
	}
	a, b := plugins[0], plugins[1]

	recA, okA := a.Lookup(formID)
	recB, okB := b.Lookup(formID)
	hexID := FormatFormID(formID)
	if !okA && !okB {
		return nil, &RecordNotFoundError{FormID: hexID, PluginA: pluginA, PluginB: pluginB}
	}

	recordType := ""
	if okA {
		recordType = recA.Type
	} else {
		recordType = recB.Type
	}

	dataA := recordData(pluginA, hexID, recordType, recA)
	dataB := recordData(pluginB, hexID, recordType, recB)
	keysA := fieldKeys(recA)
	keysB := fieldKeys(recB)

	diffs := diffFields(keysA, dataA.Fields, rawFields(recA, keysA), keysB, dataB.Fields, rawFields(recB, keysB))

	return &RecordComparison{
		FormID:         hexID,
		RecordType:     recordType,
		PluginA:        dataA,
		PluginB:        dataB,
		Differences:    diffs,
		Recommendation: recommend(diffs, recordType),
	}, nil
}

// fieldKeys names each field of rec in order: the tag for its first
// occurrence, tag#n for the n-th repeat.
func fieldKeys(rec *esp.Record) []string {
	if rec == nil {
		return nil
	}
	seen := make(map[string]int)
	keys := make([]string, len(rec.Fields))
	for i, f := range rec.Fields {
		seen[f.Type]++
		if n := seen[f.Type]; n > 1 {
			keys[i] = fmt.Sprintf("%s#%d", f.Type, n)
		} else {
			keys[i] = f.Type
		}
	}
	return keys
}

func recordData(plugin, formID, recordType string, rec *esp.Record) RecordData {
	d := RecordData{
		PluginName: plugin,
		FormID:     formID,
		RecordType: recordType,
		Fields:     map[string]string{},
	}
	if rec == nil {
		return d
	}
	d.EditorID = rec.EditorID
	for i, key := range fieldKeys(rec) {
		d.Fields[key] = rec.Fields[i].Display()
	}
	return d
}

// rawFields maps each field key to its payload bytes.
func rawFields(rec *esp.Record, keys []string) map[string][]byte {
	raw := make(map[string][]byte, len(keys))
	for i, key := range keys {
		raw[key] = rec.Fields[i].Data
	}
	return raw
}

// diffFields walks keys of A then keys only in B, reporting every key whose
// payload bytes differ or that is present on one side only. a and b hold the
// displayed values.
func diffFields(keysA []string, a map[string]string, rawA map[string][]byte, keysB []string, b map[string]string, rawB map[string][]byte) []FieldDifference {
	out := []FieldDifference{}
	visit := func(key string) {
		va, okA := a[key]
		vb, okB := b[key]
		if okA && okB && bytes.Equal(rawA[key], rawB[key]) {
			return
		}
		d := FieldDifference{FieldName: key, Important: importantFields[baseTag(key)]}
		if okA {
			d.ValueA = &va
		}
		if okB {
			d.ValueB = &vb
		}
		out = append(out, d)
	}
	for _, k := range keysA {
		visit(k)
	}
	for _, k := range keysB {
		if _, ok := a[k]; !ok {
			visit(k)
		}
	}
	return out
}

func baseTag(key string) string {
	if i := strings.IndexByte(key, '#'); i >= 0 {
		key = key[:i]
	}
	return strings.ToUpper(key)
}

func recommend(diffs []FieldDifference, recordType string) Recommendation {
	if len(diffs) == 0 {
		return RecommendKeepA
	}
	important := false
	for _, d := range diffs {
		if d.Important {
			important = true
			break
		}
	}
	if !important {
		return RecommendMerge
	}
	if equipmentTypes[recordType] {
		return RecommendManual
	}
	return RecommendKeepA
}
