package esp

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Parser decodes plugin buffers into Plugins. A Parser holds no per-file
// state and is safe for concurrent use.
type Parser struct {
	probe NestedProbe
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithProbe replaces the nested-record probe. Pass NoNesting{} to keep every
// subrecord flat.
func WithProbe(probe NestedProbe) ParserOption {
	return func(p *Parser) {
		if probe != nil {
			p.probe = probe
		}
	}
}

// NewParser returns a Parser using KnownTypeProbe unless overridden.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{probe: KnownTypeProbe{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFile reads path and parses it.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Plugin, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("esp: read %s: %w", path, err)
	}
	return p.Parse(path, data)
}

// Parse decodes a complete plugin buffer. path is used for the file name and
// in error messages only.
//
// Layout handled:
//  1. A TES4 header record; its MAST fields name the masters.
//  2. Any sequence of records and GRUP containers until end of buffer.
//     Records inside groups are flattened into Plugin.Records in file order.
func (p *Parser) Parse(path string, data []byte) (*Plugin, error) {
	r := &reader{path: path, buf: data}

	if err := r.need(4, len(data), "header type"); err != nil {
		return nil, err
	}
	if tag := string(data[:4]); tag != HeaderType {
		return nil, &MalformedHeaderError{Path: path, Type: tag}
	}

	header, err := p.record(r, len(data))
	if err != nil {
		return nil, err
	}

	plugin := &Plugin{
		FileName: filepath.Base(path),
		Path:     path,
		Header:   header,
		FormIDs:  make(map[uint32]*Record),
	}
	for _, f := range header.Fields {
		if f.Type == FieldMaster {
			plugin.Masters = append(plugin.Masters, f.String())
		}
	}

	for r.off < len(data) {
		if err := p.top(r, len(data), plugin); err != nil {
			return nil, err
		}
	}
	return plugin, nil
}

// top reads one record or group at the cursor.
func (p *Parser) top(r *reader, limit int, plugin *Plugin) error {
	if err := r.need(4, limit, "record type"); err != nil {
		return err
	}
	if string(r.buf[r.off:r.off+4]) == GroupType {
		return p.group(r, limit, plugin)
	}
	rec, err := p.record(r, limit)
	if err != nil {
		return err
	}
	plugin.Records = append(plugin.Records, rec)
	plugin.FormIDs[rec.FormID] = rec
	return nil
}

// group reads a GRUP container. Its size field counts the 24-byte header.
func (p *Parser) group(r *reader, limit int, plugin *Plugin) error {
	start := r.off
	if _, err := r.tag(limit, "group type"); err != nil {
		return err
	}
	size, err := r.u32(limit, "group size")
	if err != nil {
		return err
	}
	if size < recordHeaderSize {
		return &BoundsError{Path: r.path, Offset: r.base + start, Need: recordHeaderSize, Limit: r.base + start + int(size), What: "group header"}
	}
	// label, group type, timestamp, version control, unknown
	if err := r.skip(recordHeaderSize-8, limit, "group header"); err != nil {
		return err
	}
	end := start + int(size)
	if end > limit || end > len(r.buf) {
		return &BoundsError{Path: r.path, Offset: r.pos(), Need: end - r.off, Limit: r.base + min(limit, len(r.buf)), What: "group contents"}
	}
	for r.off < end {
		if err := p.top(r, end, plugin); err != nil {
			return err
		}
	}
	return nil
}

// record reads one record header and its fields. Reads never cross limit.
func (p *Parser) record(r *reader, limit int) (*Record, error) {
	start := r.pos()
	typ, err := r.tag(limit, "record type")
	if err != nil {
		return nil, err
	}
	size, err := r.u32(limit, "record size")
	if err != nil {
		return nil, err
	}
	flags, err := r.u32(limit, "record flags")
	if err != nil {
		return nil, err
	}
	formID, err := r.u32(limit, "form id")
	if err != nil {
		return nil, err
	}
	// timestamp, version control, internal version, unknown
	if err := r.skip(8, limit, "record header"); err != nil {
		return nil, err
	}
	if err := r.need(int(size), limit, "record data"); err != nil {
		return nil, err
	}
	end := r.off + int(size)

	rec := &Record{Type: typ, FormID: formID, Flags: flags, Offset: start}

	fr, fend := r, end
	if flags&FlagCompressed != 0 && typ != HeaderType {
		inflated, err := inflate(r, end)
		if err != nil {
			return nil, err
		}
		fr = &reader{path: r.path, buf: inflated, base: r.pos()}
		fend = len(inflated)
	}

	if err := p.fields(fr, fend, rec); err != nil {
		return nil, err
	}
	r.off = end

	if f, ok := rec.Field(FieldEditorID); ok {
		rec.EditorID = f.String()
	}
	return rec, nil
}

// fields reads subrecords until end, probing candidate tags as nested
// records and rolling back to a flat field when the probe fails.
func (p *Parser) fields(r *reader, end int, rec *Record) error {
	bigSize := -1
	for r.off < end {
		fieldStart := r.off

		if err := r.need(4, end, "field type"); err != nil {
			return err
		}
		tag := string(r.buf[r.off : r.off+4])
		if bigSize < 0 && fieldStart+recordHeaderSize <= end && p.probe.Candidate(rec.Type, tag) {
			if nested, err := p.record(r, end); err == nil {
				rec.Subrecords = append(rec.Subrecords, nested)
				continue
			}
			r.off = fieldStart
		}

		tag, err := r.tag(end, "field type")
		if err != nil {
			return err
		}
		size16, err := r.u16(end, "field size")
		if err != nil {
			return err
		}
		size := int(size16)
		if bigSize >= 0 {
			size, bigSize = bigSize, -1
		}
		data, err := r.bytes(size, end, "field payload")
		if err != nil {
			return err
		}
		if tag == FieldBigSize && len(data) == 4 {
			bigSize = int(binary.LittleEndian.Uint32(data))
			continue
		}
		rec.Fields = append(rec.Fields, Field{Type: tag, Size: size, Data: data})
	}
	return nil
}

// MaxInflatedSize caps the decompressed size a compressed record may declare.
const MaxInflatedSize = 64 << 20

// inflate decodes a compressed record body: a little-endian decompressed
// size followed by a zlib stream, spanning [r.off, end).
func inflate(r *reader, end int) ([]byte, error) {
	at := r.pos()
	declared, err := r.u32(end, "decompressed size")
	if err != nil {
		return nil, err
	}
	if declared > MaxInflatedSize {
		return nil, &CompressionError{
			Path:   r.path,
			Offset: at,
			Err:    fmt.Errorf("declared size %d exceeds limit %d", declared, MaxInflatedSize),
		}
	}
	zr, err := zlib.NewReader(bytes.NewReader(r.buf[r.off:end]))
	if err != nil {
		return nil, &CompressionError{Path: r.path, Offset: at, Err: err}
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, int64(declared)+1))
	if err != nil {
		return nil, &CompressionError{Path: r.path, Offset: at, Err: err}
	}
	if len(out) != int(declared) {
		return nil, &CompressionError{
			Path:   r.path,
			Offset: at,
			Err:    fmt.Errorf("inflated %d bytes, header declares %d", len(out), declared),
		}
	}
	return out, nil
}
