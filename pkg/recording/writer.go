// Package recording implements the session file container: a frame
// writer and an incremental frame reader tolerant of arbitrary byte
// chunking, plus the active-recordings set used to tail a file that is
// still being written.
package recording

import (
	"errors"
	"io"

	"github.com/dnorman/domcorder/pkg/protocol"
)

// ErrHeaderAlreadyWritten is returned by a second call to WriteHeader.
var ErrHeaderAlreadyWritten = errors.New("recording: header already written")

// ErrHeaderAfterFrame is returned by a call to WriteHeader once a frame
// has already been written.
var ErrHeaderAfterFrame = errors.New("recording: header written after a frame")

// FrameWriter enforces: at most one header, written before any frame;
// each frame written as a single length||payload record. It adds no
// buffering beyond the underlying sink — Flush is a hard durability
// barrier the caller explicitly requests.
type FrameWriter struct {
	w             io.Writer
	headerWritten bool
	frameWritten  bool
}

// NewFrameWriter wraps w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteHeader writes the 32-byte session file header. It may be
// called at most once, and only before any frame is written.
func (fw *FrameWriter) WriteHeader(h *protocol.FileHeader) error {
	if fw.headerWritten {
		return ErrHeaderAlreadyWritten
	}
	if fw.frameWritten {
		return ErrHeaderAfterFrame
	}
	if err := protocol.WriteHeader(fw.w, h); err != nil {
		return err
	}
	fw.headerWritten = true
	return nil
}

// WriteFrame encodes and writes a single length-prefixed frame.
func (fw *FrameWriter) WriteFrame(f protocol.Frame) error {
	if err := protocol.WriteWireFrame(fw.w, f); err != nil {
		return err
	}
	fw.frameWritten = true
	return nil
}

// Flush flushes the underlying writer if it supports flushing.
func (fw *FrameWriter) Flush() error {
	if f, ok := fw.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	if s, ok := fw.w.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}
