package esp

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"strings"
)

// --- Constants ---

const (
	// HeaderType is the tag every plugin must open with.
	HeaderType = "TES4"

	// GroupType tags a GRUP container rather than a record.
	GroupType = "GRUP"

	recordHeaderSize = 24
	fieldHeaderSize  = 6

	// Header flags.
	FlagMaster = 0x00000001
	FlagLight  = 0x00000200

	// Record flags.
	FlagCompressed = 0x00040000
)

// Well-known field tags.
const (
	FieldEditorID    = "EDID"
	FieldMaster      = "MAST"
	FieldHeaderInfo  = "HEDR"
	FieldAuthor      = "CNAM"
	FieldDescription = "SNAM"
	FieldBigSize     = "XXXX"
)

// PluginExtensions lists the file extensions treated as plugins.
var PluginExtensions = []string{".esp", ".esm", ".esl"}

// IsPluginPath reports whether path carries one of the plugin extensions.
func IsPluginPath(path string) bool {
	return HasExtension(path, PluginExtensions)
}

// HasExtension reports whether path ends in one of exts, ignoring case.
func HasExtension(path string, exts []string) bool {
	lower := strings.ToLower(path)
	for _, ext := range exts {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// --- Models ---

// Field is one subrecord: a tag plus its raw payload. Typed views are
// computed on demand; nothing is decoded at parse time.
type Field struct {
	Type string `json:"type"`
	Size int    `json:"size"`
	Data []byte `json:"-"`
}

// String returns the payload as text with trailing NULs removed.
func (f Field) String() string {
	return strings.TrimRight(string(f.Data), "\x00")
}

// Uint32 returns the first four payload bytes as a little-endian integer.
func (f Field) Uint32() (uint32, bool) {
	if len(f.Data) < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(f.Data), true
}

// Float32 returns the first four payload bytes as a little-endian float.
func (f Field) Float32() (float32, bool) {
	v, ok := f.Uint32()
	if !ok {
		return 0, false
	}
	return math.Float32frombits(v), true
}

// Hex returns the payload hex-encoded.
func (f Field) Hex() string {
	return hex.EncodeToString(f.Data)
}

// Display renders the payload for humans: text when it is a printable
// NUL-terminated string, hex otherwise.
func (f Field) Display() string {
	if isPrintable(f.Data) {
		return f.String()
	}
	return f.Hex()
}

func isPrintable(b []byte) bool {
	s := strings.TrimRight(string(b), "\x00")
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

// Record is a form-id addressed unit of game data.
type Record struct {
	Type       string    `json:"type"`
	FormID     uint32    `json:"formId"`
	EditorID   string    `json:"editorId,omitempty"`
	Flags      uint32    `json:"flags"`
	Fields     []Field   `json:"fields"`
	Subrecords []*Record `json:"subrecords,omitempty"`
	Offset     int       `json:"offset"` // absolute offset of the record header
}

// Field returns the first field with the given tag.
func (r *Record) Field(tag string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Type == tag {
			return f, true
		}
	}
	return Field{}, false
}

// Payload concatenates every field payload in order.
func (r *Record) Payload() []byte {
	n := 0
	for _, f := range r.Fields {
		n += len(f.Data)
	}
	out := make([]byte, 0, n)
	for _, f := range r.Fields {
		out = append(out, f.Data...)
	}
	return out
}

// Plugin is one parsed ESP/ESM/ESL file. It is immutable after Parse returns.
type Plugin struct {
	FileName string             `json:"fileName"`
	Path     string             `json:"path"`
	Header   *Record            `json:"header"`
	Records  []*Record          `json:"records"`
	Masters  []string           `json:"masters"`
	FormIDs  map[uint32]*Record `json:"-"`
}

// Lookup returns the record registered for formID. On in-file collisions
// the last record read wins.
func (p *Plugin) Lookup(formID uint32) (*Record, bool) {
	r, ok := p.FormIDs[formID]
	return r, ok
}

// IsMaster reports whether the header carries the master flag.
func (p *Plugin) IsMaster() bool {
	return p.Header != nil && p.Header.Flags&FlagMaster != 0
}

// IsLight reports whether the header carries the light (ESL) flag.
func (p *Plugin) IsLight() bool {
	return p.Header != nil && p.Header.Flags&FlagLight != 0
}

// Version returns the header format version from HEDR.
func (p *Plugin) Version() float32 {
	if p.Header == nil {
		return 0
	}
	f, ok := p.Header.Field(FieldHeaderInfo)
	if !ok {
		return 0
	}
	v, _ := f.Float32()
	return v
}

// Author returns the CNAM header string, if any.
func (p *Plugin) Author() string {
	return p.headerString(FieldAuthor)
}

// Description returns the SNAM header string, if any.
func (p *Plugin) Description() string {
	return p.headerString(FieldDescription)
}

func (p *Plugin) headerString(tag string) string {
	if p.Header == nil {
		return ""
	}
	f, ok := p.Header.Field(tag)
	if !ok {
		return ""
	}
	return f.String()
}

// RecordsByType groups form ids by record type, preserving file order.
func (p *Plugin) RecordsByType() map[string][]uint32 {
	out := make(map[string][]uint32)
	for _, r := range p.Records {
		out[r.Type] = append(out[r.Type], r.FormID)
	}
	return out
}
