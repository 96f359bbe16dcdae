package recording

import (
	"context"
	"io"
	"os"
	"sync"
	"time"
)

// TailingRewake is the backstop liveness guarantee: if a tailing read
// finds no new bytes and the recording is still active, it sleeps this
// long before checking again.
const TailingRewake = 100 * time.Millisecond

// ActiveRecordings tracks which session filenames currently have an
// ingest pipeline appending to them. A single mutex guards it,
// acquired only for the duration of insert/remove/contains — never
// held across a file or network operation.
type ActiveRecordings struct {
	mu   sync.Mutex
	set  map[string]time.Time
}

// NewActiveRecordings creates an empty tracker.
func NewActiveRecordings() *ActiveRecordings {
	return &ActiveRecordings{set: make(map[string]time.Time)}
}

// Insert marks filename active, recording the current time as its
// last-activity timestamp.
func (a *ActiveRecordings) Insert(filename string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.set[filename] = time.Now()
}

// Touch updates filename's last-activity timestamp. No-op if filename
// is not active.
func (a *ActiveRecordings) Touch(filename string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.set[filename]; ok {
		a.set[filename] = time.Now()
	}
}

// Remove marks filename no longer active (on commit or quarantine).
func (a *ActiveRecordings) Remove(filename string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.set, filename)
}

// Contains reports whether filename is currently active.
func (a *ActiveRecordings) Contains(filename string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.set[filename]
	return ok
}

// TailingReader gives a playback client a "tail -f" view of a session
// file that may still be actively written. It wraps a file handle
// already advanced past the 32-byte header.
type TailingReader struct {
	file     *os.File
	filename string
	active   *ActiveRecordings
}

// NewTailingReader wraps file (positioned past the header) for
// filename, consulting active to decide whether EOF is final.
func NewTailingReader(file *os.File, filename string, active *ActiveRecordings) *TailingReader {
	return &TailingReader{file: file, filename: filename, active: active}
}

// Read blocks until new bytes are available, the recording ends, or
// ctx is cancelled. It returns io.EOF only once the recording has left
// the active set and no further bytes exist — a guaranteed, bounded
// "tail -f" contract rather than a one-shot read.
func (t *TailingReader) Read(ctx context.Context, buf []byte) (int, error) {
	for {
		n, err := t.file.Read(buf)
		if n > 0 {
			return n, nil
		}
		if err != nil && err != io.EOF {
			return 0, err
		}

		if info, statErr := t.file.Stat(); statErr == nil {
			if pos, seekErr := t.file.Seek(0, io.SeekCurrent); seekErr == nil && info.Size() > pos {
				// Writer appended between our Read and Stat; the next
				// Read will see it without waiting.
				continue
			}
		}

		if !t.active.Contains(t.filename) {
			return 0, io.EOF
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(TailingRewake):
		}
	}
}

// Close closes the underlying file handle.
func (t *TailingReader) Close() error {
	return t.file.Close()
}
