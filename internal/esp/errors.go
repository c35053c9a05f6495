package esp

import "fmt"

// MalformedHeaderError reports that the first record of a plugin is not a
// TES4 header.
type MalformedHeaderError struct {
	Path string
	Type string // tag actually found at offset 0
}

func (e *MalformedHeaderError) Error() string {
	return fmt.Sprintf("esp: %s: malformed header: expected %s record, found %q", e.Path, HeaderType, e.Type)
}

// BoundsError reports a read that would cross the declared span of the
// enclosing record/group or the end of the buffer.
type BoundsError struct {
	Path   string
	Offset int    // cursor position when the read was attempted
	Need   int    // bytes the read required
	Limit  int    // absolute offset the read may not cross
	What   string // what was being read, e.g. "field payload"
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("esp: %s: %s at offset %d needs %d bytes but span ends at %d",
		e.Path, e.What, e.Offset, e.Need, e.Limit)
}

// CompressionError reports a compressed record whose payload could not be
// inflated to its declared size.
type CompressionError struct {
	Path   string
	Offset int
	Err    error
}

func (e *CompressionError) Error() string {
	return fmt.Sprintf("esp: %s: compressed record at offset %d: %v", e.Path, e.Offset, e.Err)
}

func (e *CompressionError) Unwrap() error { return e.Err }
