package recording

import (
	"context"
	"io"
	"os"
	"testing"
	"time"
)

func TestActiveRecordings_InsertContainsRemove(t *testing.T) {
	a := NewActiveRecordings()
	if a.Contains("f") {
		t.Fatal("expected empty tracker to not contain anything")
	}
	a.Insert("f")
	if !a.Contains("f") {
		t.Fatal("expected f to be active after Insert")
	}
	a.Touch("f") // should not panic or remove
	if !a.Contains("f") {
		t.Fatal("expected f to remain active after Touch")
	}
	a.Remove("f")
	if a.Contains("f") {
		t.Fatal("expected f to be inactive after Remove")
	}
}

func TestTailingReader_ReturnsEOFOnceNotActive(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/session.dcrr"
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	reader, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer reader.Close()

	active := NewActiveRecordings()
	// Deliberately not inserted: file is already "committed".
	tr := NewTailingReader(reader, "session.dcrr", active)

	buf := make([]byte, 16)
	n, err := tr.Read(context.Background(), buf)
	if err != nil {
		t.Fatalf("expected to read existing bytes before EOF, got err %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("expected to read %q, got %q", "hello", buf[:n])
	}

	n, err = tr.Read(context.Background(), buf)
	if err != io.EOF {
		t.Fatalf("expected io.EOF once inactive and drained, got n=%d err=%v", n, err)
	}
}

func TestTailingReader_BlocksThenSeesAppendedBytesWhileActive(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/session.dcrr"
	writer, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer writer.Close()

	reader, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer reader.Close()

	active := NewActiveRecordings()
	active.Insert("session.dcrr")
	tr := NewTailingReader(reader, "session.dcrr", active)

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		buf := make([]byte, 16)
		n, err := tr.Read(context.Background(), buf)
		done <- result{n, err}
	}()

	// Give the tailing read a moment to block on the empty file before
	// bytes are appended, matching real ingest-then-playback timing.
	time.Sleep(2 * TailingRewake)
	if _, err := writer.Write([]byte("world")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("expected a successful read of appended bytes, got %v", r.err)
		}
		if r.n != 5 {
			t.Fatalf("expected to read 5 bytes, got %d", r.n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tailing read to observe appended bytes")
	}
}

func TestTailingReader_CancelledContextUnblocks(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/session.dcrr"
	if _, err := os.Create(path); err != nil {
		t.Fatalf("create: %v", err)
	}
	reader, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer reader.Close()

	active := NewActiveRecordings()
	active.Insert("session.dcrr") // stays active forever in this test

	ctx, cancel := context.WithCancel(context.Background())
	tr := NewTailingReader(reader, "session.dcrr", active)

	done := make(chan error, 1)
	go func() {
		buf := make([]byte, 16)
		_, err := tr.Read(ctx, buf)
		done <- err
	}()

	time.Sleep(2 * TailingRewake)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cancellation to unblock the tailing read")
	}
}
