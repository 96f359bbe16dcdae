package protocol

// Encoder is a binary encoder that appends data to an internal buffer.
// It is designed for efficient encoding without allocations in the hot path.
//
// Every integer is fixed width and big-endian; there are no varints on
// this wire. A frame's length prefix must be computable without
// decoding its payload, so variable-width integers are not an option.
type Encoder struct {
	buf []byte
}

// NewEncoder creates a new encoder with a default initial capacity.
func NewEncoder() *Encoder {
	return &Encoder{
		buf: make([]byte, 0, 256),
	}
}

// NewEncoderWithCap creates a new encoder with the specified initial capacity.
func NewEncoderWithCap(cap int) *Encoder {
	return &Encoder{
		buf: make([]byte, 0, cap),
	}
}

// Reset resets the encoder to empty state, reusing the underlying buffer.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// Bytes returns the encoded bytes. The returned slice is valid until
// the next call to Reset or any Write method.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes currently encoded.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// WriteByte appends a single byte.
// Note: This intentionally doesn't return error (unlike io.ByteWriter)
// because our buffer is unbounded and can always append.
func (e *Encoder) WriteByte(b byte) {
	e.buf = append(e.buf, b)
}

// WriteBytes appends raw bytes with no length prefix.
func (e *Encoder) WriteBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

// WriteUint32 appends a uint32 in big-endian byte order.
func (e *Encoder) WriteUint32(v uint32) {
	e.buf = append(e.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// WriteUint64 appends a uint64 in big-endian byte order.
func (e *Encoder) WriteUint64(v uint64) {
	e.buf = append(e.buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// WriteInt32 appends an int32 in big-endian byte order.
func (e *Encoder) WriteInt32(v int32) {
	e.WriteUint32(uint32(v))
}

// WriteInt64 appends an int64 in big-endian byte order.
func (e *Encoder) WriteInt64(v int64) {
	e.WriteUint64(uint64(v))
}

// WriteBool appends a boolean as a single byte (0x00 or 0x01).
func (e *Encoder) WriteBool(b bool) {
	if b {
		e.buf = append(e.buf, 0x01)
	} else {
		e.buf = append(e.buf, 0x00)
	}
}

// WriteString appends a u64-length-prefixed UTF-8 string.
// Format: u64 byte count, then the string bytes.
func (e *Encoder) WriteString(s string) {
	e.WriteUint64(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

// WriteLenBytes appends u64-length-prefixed bytes.
// Format: u64 byte count, then the bytes.
func (e *Encoder) WriteLenBytes(b []byte) {
	e.WriteUint64(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

// WriteCount appends the u64 element count that precedes a sequence.
func (e *Encoder) WriteCount(n int) {
	e.WriteUint64(uint64(n))
}

// WriteOptionalString appends an Option<String>: a presence byte
// (0x00/0x01) followed, if present, by the string.
func (e *Encoder) WriteOptionalString(s *string) {
	if s == nil {
		e.WriteByte(0x00)
		return
	}
	e.WriteByte(0x01)
	e.WriteString(*s)
}

// WriteTag appends a tagged union's u32 discriminant.
func (e *Encoder) WriteTag(tag uint32) {
	e.WriteUint32(tag)
}
