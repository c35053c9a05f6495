package esp

import "encoding/binary"

// reader is a bounds-checked cursor over a plugin buffer. Every read names
// the absolute offset it may not cross; crossing it (or the buffer end)
// yields a *BoundsError instead of a panic.
type reader struct {
	path string
	buf  []byte
	off  int
	base int // absolute offset of buf[0], non-zero for inflated payloads
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) pos() int { return r.base + r.off }

func (r *reader) need(n, limit int, what string) error {
	end := r.off + n
	if n < 0 || end > limit || end > len(r.buf) {
		lim := limit
		if len(r.buf) < lim {
			lim = len(r.buf)
		}
		return &BoundsError{Path: r.path, Offset: r.pos(), Need: n, Limit: r.base + lim, What: what}
	}
	return nil
}

func (r *reader) tag(limit int, what string) (string, error) {
	if err := r.need(4, limit, what); err != nil {
		return "", err
	}
	s := string(r.buf[r.off : r.off+4])
	r.off += 4
	return s, nil
}

func (r *reader) u16(limit int, what string) (uint16, error) {
	if err := r.need(2, limit, what); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

func (r *reader) u32(limit int, what string) (uint32, error) {
	if err := r.need(4, limit, what); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

// bytes returns a copy so parsed plugins never alias the read buffer.
func (r *reader) bytes(n, limit int, what string) ([]byte, error) {
	if err := r.need(n, limit, what); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+n])
	r.off += n
	return out, nil
}

func (r *reader) skip(n, limit int, what string) error {
	if err := r.need(n, limit, what); err != nil {
		return err
	}
	r.off += n
	return nil
}
