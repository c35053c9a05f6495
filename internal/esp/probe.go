package esp

// NestedProbe decides which field boundaries are worth re-reading as an
// embedded record. The parser owns the attempt and the rollback; a probe only
// names candidates, so a per-record-type schema table can replace the
// heuristic without touching the record loop.
type NestedProbe interface {
	Candidate(parentType, tag string) bool
}

// KnownTypeProbe treats any field whose tag is a known top-level record type
// as a candidate.
type KnownTypeProbe struct{}

func (KnownTypeProbe) Candidate(_, tag string) bool {
	return IsRecordType(tag)
}

// NoNesting disables nested-record probing; every subrecord stays flat.
type NoNesting struct{}

func (NoNesting) Candidate(_, _ string) bool { return false }

// recordTypes are the top-level record tags seen in Fallout 4 plugins.
var recordTypes = map[string]bool{}

func init() {
	for _, t := range []string{
		"TES4", "WEAP", "ARMO", "AMMO", "MISC", "STAT", "MSTT", "ACTI",
		"CONT", "DOOR", "LIGH", "FLOR", "FURN", "NPC_", "CREA", "LVLI",
		"LVLN", "KEYM", "ALCH", "IDLM", "NOTE", "PROJ", "HAZD", "BNDS",
		"TERM", "LVLC", "ENCH", "SPEL", "SCRL", "QUST", "IDLE", "PACK",
		"CSTY", "LSCR", "ANIO", "WATR", "EFSH", "EXPL", "DEBR", "IMGS",
		"IMAD", "FLST", "PERK", "BPTD", "ADDN", "AVIF", "CAMS", "CPTH",
		"VTYP", "MATT", "IPCT", "IPDS", "ARMA", "ECZN", "LCTN", "MESG",
		"RGDL", "DOBJ", "LGTM", "MUSC", "FSTP", "FSTS", "SMBN", "SMEN",
		"SMQN", "SMIL", "DLBR", "MUST", "DLVW", "WOOP", "SHOU", "EQUP",
		"RELA", "SCEN", "ASTP", "OTFT", "ARTO", "MATO", "MOVT", "SNDR",
		"SNCT", "SOPM", "COLL", "CLFM", "REVB", "PKIN", "RFCT", "LENS",
		"LSPR", "GODR", "SPGD", "SCOL", "NAVM", "NAVI",
	} {
		recordTypes[t] = true
	}
}

// IsRecordType reports whether tag is a known top-level record type.
func IsRecordType(tag string) bool {
	return recordTypes[tag]
}
