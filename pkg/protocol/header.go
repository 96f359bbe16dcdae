package protocol

import (
	"errors"
	"io"
)

// HeaderSize is the fixed size of a session file header in bytes.
const HeaderSize = 32

// FileMagic identifies a domcorder session file.
var FileMagic = [4]byte{'D', 'C', 'R', 'R'}

// FileVersion is the only version this package writes or accepts.
const FileVersion uint32 = 1

// ErrBadMagic is returned when a session file does not begin with the
// expected magic bytes.
var ErrBadMagic = errors.New("protocol: bad session file magic")

// ErrUnsupportedVersion is returned when a session file declares a
// version this package does not understand.
var ErrUnsupportedVersion = errors.New("protocol: unsupported session file version")

// FileHeader is the 32-byte header written once at the start of every
// session file: magic, version, creation time, and 16 reserved zero
// bytes reserved for future use.
type FileHeader struct {
	Version   uint32
	CreatedAt uint64 // ms since Unix epoch
}

// Encode writes the 32-byte header.
func (h *FileHeader) Encode(e *Encoder) {
	e.WriteBytes(FileMagic[:])
	e.WriteUint32(h.Version)
	e.WriteUint64(h.CreatedAt)
	e.WriteBytes(make([]byte, 16))
}

// DecodeHeader reads and validates a 32-byte session file header.
func DecodeHeader(d *Decoder) (*FileHeader, error) {
	magic, err := d.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if magic[0] != FileMagic[0] || magic[1] != FileMagic[1] || magic[2] != FileMagic[2] || magic[3] != FileMagic[3] {
		return nil, ErrBadMagic
	}
	h := &FileHeader{}
	if h.Version, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if h.Version != FileVersion {
		return nil, ErrUnsupportedVersion
	}
	if h.CreatedAt, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if _, err = d.ReadBytes(16); err != nil {
		return nil, err
	}
	return h, nil
}

// WriteHeader encodes and writes a FileHeader to w.
func WriteHeader(w io.Writer, h *FileHeader) error {
	e := NewEncoderWithCap(HeaderSize)
	h.Encode(e)
	_, err := w.Write(e.Bytes())
	return err
}

// ReadHeader reads exactly HeaderSize bytes from r and decodes them
// into a FileHeader.
func ReadHeader(r io.Reader) (*FileHeader, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return DecodeHeader(NewDecoder(buf))
}
