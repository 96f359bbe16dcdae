package recording

import (
	"bytes"
	"testing"

	"github.com/dnorman/domcorder/pkg/protocol"
)

func TestFrameWriter_HeaderThenFramesRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf)

	if err := w.WriteHeader(&protocol.FileHeader{Version: protocol.FileVersion, CreatedAt: 999}); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := w.WriteFrame(&protocol.TimestampFrame{TimestampMs: 5}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := w.WriteFrame(&protocol.HeartbeatFrame{}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	r := NewFrameReader(true)
	r.Feed(buf.Bytes())
	h, err := r.TryReadHeader()
	if err != nil {
		t.Fatalf("TryReadHeader: %v", err)
	}
	if h.CreatedAt != 999 {
		t.Fatalf("expected CreatedAt 999, got %d", h.CreatedAt)
	}
	frames, err := r.DrainFrames()
	if err != nil {
		t.Fatalf("DrainFrames: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
}

func TestFrameWriter_SecondHeaderIsRejected(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf)
	if err := w.WriteHeader(&protocol.FileHeader{Version: protocol.FileVersion}); err != nil {
		t.Fatalf("first WriteHeader: %v", err)
	}
	if err := w.WriteHeader(&protocol.FileHeader{Version: protocol.FileVersion}); err != ErrHeaderAlreadyWritten {
		t.Fatalf("expected ErrHeaderAlreadyWritten, got %v", err)
	}
}

func TestFrameWriter_HeaderAfterFrameIsRejected(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf)
	if err := w.WriteFrame(&protocol.HeartbeatFrame{}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := w.WriteHeader(&protocol.FileHeader{Version: protocol.FileVersion}); err != ErrHeaderAfterFrame {
		t.Fatalf("expected ErrHeaderAfterFrame, got %v", err)
	}
}
