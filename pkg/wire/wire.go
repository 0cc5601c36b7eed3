// Package wire implements the canonical binary codec shared by both link
// drivers: little-endian varint integers, discriminant-tagged sums,
// length-prefixed sequences, and length-prefixed UTF-8 strings (spec'd in
// the external interface contract both peers must agree on byte-for-byte).
//
// No third-party serializer in the module's dependency set speaks this
// format, so it is hand-rolled the same way the rest of this codebase
// hand-rolls its binary framing — see DESIGN.md for why.
package wire

import "errors"

// ErrShortBuffer is returned when a Reader runs out of bytes mid-value.
var ErrShortBuffer = errors.New("wire: short buffer")

// ErrVarintOverflow is returned when a varint exceeds 64 bits.
var ErrVarintOverflow = errors.New("wire: varint overflow")

// Writer accumulates a canonically-encoded byte stream.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the encoded bytes written so far.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len reports the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// WriteVarUint appends v as an unsigned LEB128 varint, least significant
// group first.
func (w *Writer) WriteVarUint(v uint64) {
	for v >= 0x80 {
		w.buf = append(w.buf, byte(v)|0x80)
		v >>= 7
	}
	w.buf = append(w.buf, byte(v))
}

// WriteUint8 appends a single raw byte (u8 needs no varint framing).
func (w *Writer) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

// WriteUint32 appends v as a varint.
func (w *Writer) WriteUint32(v uint32) {
	w.WriteVarUint(uint64(v))
}

// WriteUint64 appends v as a varint.
func (w *Writer) WriteUint64(v uint64) {
	w.WriteVarUint(v)
}

// WriteBool appends a single discriminant byte.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
}

// WriteDiscriminant appends an enum variant tag.
func (w *Writer) WriteDiscriminant(d uint32) {
	w.WriteVarUint(uint64(d))
}

// WriteBytes appends a varint length prefix followed by b.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteVarUint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteString appends a varint length prefix followed by the UTF-8 bytes
// of s.
func (w *Writer) WriteString(s string) {
	w.WriteBytes([]byte(s))
}

// WriteRaw appends b verbatim, with no length prefix. Used to splice an
// already-encoded sub-message (e.g. a packet family payload) into an
// enclosing frame.
func (w *Writer) WriteRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

// Reader walks a canonically-encoded byte stream.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps b for decoding. b is not copied; the caller must not
// mutate it while decoding is in progress.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Remaining returns the bytes not yet consumed. Trailing bytes left over
// after a full message decodes are expected on the BLE link, where frames
// are padded to a fixed size.
func (r *Reader) Remaining() []byte {
	return r.buf[r.pos:]
}

// ReadVarUint decodes an unsigned LEB128 varint.
func (r *Reader) ReadVarUint() (uint64, error) {
	var result uint64
	var shift uint
	for {
		if r.pos >= len(r.buf) {
			return 0, ErrShortBuffer
		}
		b := r.buf[r.pos]
		r.pos++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, ErrVarintOverflow
		}
	}
}

// ReadUint8 reads a single raw byte.
func (r *Reader) ReadUint8() (uint8, error) {
	if r.pos >= len(r.buf) {
		return 0, ErrShortBuffer
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// ReadUint32 decodes a varint and narrows it to 32 bits.
func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.ReadVarUint()
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// ReadUint64 decodes a varint.
func (r *Reader) ReadUint64() (uint64, error) {
	return r.ReadVarUint()
}

// ReadBool decodes a single discriminant byte.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadUint8()
	return b != 0, err
}

// ReadDiscriminant decodes an enum variant tag.
func (r *Reader) ReadDiscriminant() (uint32, error) {
	return r.ReadUint32()
}

// ReadBytes decodes a varint length prefix followed by that many bytes.
// The returned slice is a copy, safe to retain past the Reader's lifetime.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadVarUint()
	if err != nil {
		return nil, err
	}
	if uint64(len(r.buf)-r.pos) < n {
		return nil, ErrShortBuffer
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}

// ReadString decodes a varint length prefix followed by UTF-8 bytes.
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
