// Package esptest builds synthetic plugin buffers for tests.
package esptest

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// Field is one subrecord to encode.
type Field struct {
	Type string
	Data []byte
}

// F builds a Field from raw bytes.
func F(tag string, data []byte) Field {
	return Field{Type: tag, Data: data}
}

// Str builds a NUL-terminated string field.
func Str(tag, s string) Field {
	return Field{Type: tag, Data: append([]byte(s), 0)}
}

// U32 builds a field holding one little-endian uint32 (e.g. a form id
// reference).
func U32(tag string, v uint32) Field {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return Field{Type: tag, Data: b}
}

// Plugin accumulates a TES4 header and a body of records/groups.
type Plugin struct {
	flags  uint32
	header []Field
	body   bytes.Buffer
}

// New starts a plugin with an HEDR field.
func New() *Plugin {
	hedr := make([]byte, 12)
	binary.LittleEndian.PutUint32(hedr, 0x3F733333) // 0.95
	return &Plugin{header: []Field{F("HEDR", hedr)}}
}

// Flags sets the header flags.
func (p *Plugin) Flags(flags uint32) *Plugin {
	p.flags = flags
	return p
}

// Master adds a MAST field to the header.
func (p *Plugin) Master(name string) *Plugin {
	p.header = append(p.header, Str("MAST", name), F("DATA", make([]byte, 8)))
	return p
}

// HeaderField adds an arbitrary header field.
func (p *Plugin) HeaderField(f Field) *Plugin {
	p.header = append(p.header, f)
	return p
}

// Record appends a record with the given fields.
func (p *Plugin) Record(typ string, formID uint32, fields ...Field) *Plugin {
	p.body.Write(Record(typ, formID, 0, fields...))
	return p
}

// Raw appends pre-encoded bytes to the body.
func (p *Plugin) Raw(b []byte) *Plugin {
	p.body.Write(b)
	return p
}

// Bytes encodes the plugin.
func (p *Plugin) Bytes() []byte {
	var out bytes.Buffer
	out.Write(Record("TES4", 0, p.flags, p.header...))
	out.Write(p.body.Bytes())
	return out.Bytes()
}

// Write stores the plugin as dir/name and returns the path.
func (p *Plugin) Write(t testing.TB, dir, name string) string {
	t.Helper()
	return WriteFile(t, dir, name, p.Bytes())
}

// WriteFile stores raw bytes as dir/name and returns the path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// EncodeFields encodes subrecords back to back.
func EncodeFields(fields ...Field) []byte {
	var b bytes.Buffer
	for _, f := range fields {
		b.WriteString(f.Type)
		_ = binary.Write(&b, binary.LittleEndian, uint16(len(f.Data)))
		b.Write(f.Data)
	}
	return b.Bytes()
}

// Record encodes one record with a 24-byte header.
func Record(typ string, formID, flags uint32, fields ...Field) []byte {
	return RecordData(typ, formID, flags, EncodeFields(fields...))
}

// RecordData encodes a record header around an already-encoded body. The
// declared size is len(data).
func RecordData(typ string, formID, flags uint32, data []byte) []byte {
	return RecordSized(typ, formID, flags, uint32(len(data)), data)
}

// RecordSized encodes a record whose declared size may disagree with the
// body, for bounds tests.
func RecordSized(typ string, formID, flags, size uint32, data []byte) []byte {
	var b bytes.Buffer
	b.WriteString(typ)
	_ = binary.Write(&b, binary.LittleEndian, size)
	_ = binary.Write(&b, binary.LittleEndian, flags)
	_ = binary.Write(&b, binary.LittleEndian, formID)
	b.Write(make([]byte, 8))
	b.Write(data)
	return b.Bytes()
}

// Compressed encodes a record with the compressed flag set.
func Compressed(typ string, formID uint32, fields ...Field) []byte {
	raw := EncodeFields(fields...)
	var z bytes.Buffer
	_ = binary.Write(&z, binary.LittleEndian, uint32(len(raw)))
	zw := zlib.NewWriter(&z)
	_, _ = zw.Write(raw)
	_ = zw.Close()
	return RecordData(typ, formID, 0x00040000, z.Bytes())
}

// Group wraps already-encoded records in a GRUP container.
func Group(label string, contents ...[]byte) []byte {
	var body bytes.Buffer
	for _, c := range contents {
		body.Write(c)
	}
	var b bytes.Buffer
	b.WriteString("GRUP")
	_ = binary.Write(&b, binary.LittleEndian, uint32(24+body.Len()))
	lbl := make([]byte, 4)
	copy(lbl, label)
	b.Write(lbl)
	b.Write(make([]byte, 12)) // group type, timestamp, version control, unknown
	b.Write(body.Bytes())
	return b.Bytes()
}
