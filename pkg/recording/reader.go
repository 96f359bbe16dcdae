package recording

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dnorman/domcorder/pkg/protocol"
)

// MaxFrameSize bounds the length prefix of a single frame. It exists
// only to stop a corrupt or adversarial length prefix from making the
// reader buffer without limit while waiting for bytes that will never
// arrive; real keyframes (the largest frames) sit far below this.
const MaxFrameSize = 256 * 1024 * 1024

// ErrFrameTooLarge is returned when a frame's declared length exceeds
// MaxFrameSize.
var ErrFrameTooLarge = errors.New("recording: frame length exceeds limit")

// ErrNeedMoreData indicates TryReadHeader/TryReadFrame could not make
// progress because the buffer does not yet hold a complete header or
// frame. It is not a decode error — the caller should Feed more bytes
// and retry.
var ErrNeedMoreData = errors.New("recording: need more data")

// FrameReader incrementally decodes a stream of length-prefixed frames
// (optionally preceded by a 32-byte session file header) fed to it in
// arbitrary-sized chunks, including one byte at a time. It holds no
// reference to an io.Reader: callers push bytes via Feed and drain
// completed frames via TryReadFrame, which is the shape an
// asynchronous transport (a WebSocket read loop) needs — decoding must
// never block waiting for a read that won't be ready yet.
//
// Any framing error is fatal: once TryReadHeader or TryReadFrame
// returns a non-ErrNeedMoreData error, the reader must not be used
// again. The caller's responsibility is to quarantine the target
// session file; this type does not resynchronize.
type FrameReader struct {
	buf          []byte
	expectHeader bool
	headerRead   bool
	failed       bool
}

// NewFrameReader creates a reader. When expectHeader is true, the
// caller must drain TryReadHeader before any frame will be produced.
func NewFrameReader(expectHeader bool) *FrameReader {
	return &FrameReader{expectHeader: expectHeader}
}

// Feed appends newly received bytes to the internal buffer.
func (fr *FrameReader) Feed(data []byte) {
	fr.buf = append(fr.buf, data...)
}

// AtBoundary reports whether the buffer holds no partial header or
// frame — i.e. whether a clean EOF here would be a valid stream
// boundary rather than a truncation mid-record.
func (fr *FrameReader) AtBoundary() bool {
	return len(fr.buf) == 0
}

// TryReadHeader attempts to decode the 32-byte session file header.
// It returns ErrNeedMoreData if fewer than 32 bytes are buffered. If
// expectHeader is false this is a no-op returning (nil, nil).
func (fr *FrameReader) TryReadHeader() (*protocol.FileHeader, error) {
	if !fr.expectHeader || fr.headerRead {
		return nil, nil
	}
	if fr.failed {
		return nil, errors.New("recording: reader already failed")
	}
	if len(fr.buf) < protocol.HeaderSize {
		return nil, ErrNeedMoreData
	}
	h, err := protocol.DecodeHeader(protocol.NewDecoder(fr.buf[:protocol.HeaderSize]))
	if err != nil {
		fr.failed = true
		return nil, err
	}
	fr.buf = fr.buf[protocol.HeaderSize:]
	fr.headerRead = true
	return h, nil
}

// TryReadFrame attempts to decode one length-prefixed frame from the
// buffer. It returns ErrNeedMoreData if the length prefix or the full
// payload has not yet been fed.
func (fr *FrameReader) TryReadFrame() (protocol.Frame, error) {
	if fr.failed {
		return nil, errors.New("recording: reader already failed")
	}
	if len(fr.buf) < 4 {
		return nil, ErrNeedMoreData
	}
	length := binary.BigEndian.Uint32(fr.buf[:4])
	if length > MaxFrameSize {
		fr.failed = true
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}
	total := 4 + int(length)
	if len(fr.buf) < total {
		return nil, ErrNeedMoreData
	}
	payload := fr.buf[4:total]
	f, err := protocol.DecodeFrame(protocol.NewDecoder(payload))
	if err != nil {
		fr.failed = true
		return nil, err
	}
	fr.buf = fr.buf[total:]
	return f, nil
}

// DrainFrames pops every frame currently decodable from the buffer,
// stopping at ErrNeedMoreData (which is not returned as an error to
// the caller — it simply means wait for more bytes).
func (fr *FrameReader) DrainFrames() ([]protocol.Frame, error) {
	var frames []protocol.Frame
	for {
		f, err := fr.TryReadFrame()
		if err == nil {
			frames = append(frames, f)
			continue
		}
		if errors.Is(err, ErrNeedMoreData) {
			return frames, nil
		}
		return frames, err
	}
}
