package netplay

import "encoding/binary"

var be = binary.BigEndian

// writer is a bounds-checked cursor over a borrowed byte slice. All
// multi-byte fields are big-endian.
type writer struct {
	buf []byte
	pos int
}

func newWriter(buf []byte) *writer {
	return &writer{buf: buf}
}

func (w *writer) Len() int       { return w.pos }
func (w *writer) Remaining() int { return len(w.buf) - w.pos }
func (w *writer) Bytes() []byte  { return w.buf[:w.pos] }

func (w *writer) Reset() { w.pos = 0 }

func (w *writer) WriteU8(v uint8) error {
	if w.Remaining() < 1 {
		return errBufferOverrun
	}
	w.buf[w.pos] = v
	w.pos++
	return nil
}

func (w *writer) WriteU16(v uint16) error {
	if w.Remaining() < 2 {
		return errBufferOverrun
	}
	be.PutUint16(w.buf[w.pos:], v)
	w.pos += 2
	return nil
}

func (w *writer) WriteU32(v uint32) error {
	if w.Remaining() < 4 {
		return errBufferOverrun
	}
	be.PutUint32(w.buf[w.pos:], v)
	w.pos += 4
	return nil
}

func (w *writer) WriteI16(v int16) error {
	return w.WriteU16(uint16(v))
}

func (w *writer) WriteBytes(b []byte) error {
	if w.Remaining() < len(b) {
		return errBufferOverrun
	}
	copy(w.buf[w.pos:], b)
	w.pos += len(b)
	return nil
}

// PatchU8 overwrites a previously written byte without moving the cursor.
// Used to finalize reserved count fields in batch fragments.
func (w *writer) PatchU8(pos int, v uint8) {
	if pos < 0 || pos >= w.pos {
		panic("netplay: patch outside written range")
	}
	w.buf[pos] = v
}

// reader is the decoding counterpart of writer.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) Remaining() int { return len(r.buf) - r.pos }

func (r *reader) ReadU8() (uint8, error) {
	if r.Remaining() < 1 {
		return 0, errBufferOverrun
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) ReadU16() (uint16, error) {
	if r.Remaining() < 2 {
		return 0, errBufferOverrun
	}
	v := be.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) ReadU32() (uint32, error) {
	if r.Remaining() < 4 {
		return 0, errBufferOverrun
	}
	v := be.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

func (r *reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, errBufferOverrun
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}
