package recording

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// QuarantineSuffix marks a session file as quarantined: it is not
// returned by List and is not a valid playback target.
const QuarantineSuffix = ".failed"

// SessionExt is the extension of a committed or in-progress session
// file.
const SessionExt = ".dcrr"

// SessionInfo describes one entry returned by List.
type SessionInfo struct {
	Filename  string
	Size      int64
	CreatedAt time.Time
}

// SessionStore manages the canonical session file directory: file
// creation at ingest start, atomic commit (a no-op rename-wise — the
// file already lives at its final name) or quarantine (rename to
// "*.failed") at ingest end, and listing that excludes quarantined
// files.
type SessionStore struct {
	dir string
}

// NewSessionStore ensures dir exists and returns a store rooted there.
func NewSessionStore(dir string) (*SessionStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("recording: create session dir: %w", err)
	}
	return &SessionStore{dir: dir}, nil
}

// GenerateFilename returns a new unique session filename of the form
// "<UTC timestamp>_<16 random hex chars>.dcrr".
func (s *SessionStore) GenerateFilename() (string, error) {
	var raw [8]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("recording: generate filename: %w", err)
	}
	ts := time.Now().UTC().Format("2006-01-02_15-04-05")
	return fmt.Sprintf("%s_%s%s", ts, hex.EncodeToString(raw[:]), SessionExt), nil
}

// Path returns the path of filename within the store's directory
// (relative when the store was opened with a relative directory).
func (s *SessionStore) Path(filename string) string {
	return filepath.Join(s.dir, filename)
}

// Create creates (and truncates, though none should exist yet) the
// file backing a new recording at ingest start.
func (s *SessionStore) Create(filename string) (*os.File, error) {
	return os.Create(s.Path(filename))
}

// Open opens an existing committed session file for playback.
func (s *SessionStore) Open(filename string) (*os.File, error) {
	return os.Open(s.Path(filename))
}

// Quarantine renames filename to filename+".failed", removing it from
// future listings. Used on any reader/writer/filter error after the
// file has been created.
func (s *SessionStore) Quarantine(filename string) error {
	return os.Rename(s.Path(filename), s.Path(filename+QuarantineSuffix))
}

// Exists reports whether filename is present (committed or still
// active — not quarantined, since a quarantined file has a different
// name).
func (s *SessionStore) Exists(filename string) bool {
	_, err := os.Stat(s.Path(filename))
	return err == nil
}

// List returns every committed or in-progress session file, newest
// first, excluding anything bearing the quarantine suffix.
func (s *SessionStore) List() ([]SessionInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("recording: list sessions: %w", err)
	}
	var infos []SessionInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if filepath.Ext(name) != SessionExt {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, SessionInfo{
			Filename:  name,
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.After(infos[j].CreatedAt) })
	return infos, nil
}
