// Package artifacts stores and retrieves photographs under
// per-location directories derived from path keys.
package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"photokeep/internal/pathkey"
)

var (
	// ErrNotFound means the directory for a key does not exist yet.
	ErrNotFound = errors.New("no photos stored for this location")
)

// imageExts is the extension allow-list applied when listing.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// Store writes photo payloads beneath a jailed filesystem. Concurrent
// saves under one key are safe: directory creation is idempotent and
// file names never collide.
type Store struct {
	fs  afero.Fs
	now func() time.Time
}

// New builds a store over a filesystem rooted at the photo base dir.
func New(fs afero.Fs) *Store {
	return &Store{fs: fs, now: time.Now}
}

// WithClock overrides the time source, for deterministic names in tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// EnsureDir creates the directory for a key if it is absent.
// Repeated and concurrent calls for the same key succeed.
func (s *Store) EnsureDir(key pathkey.Key) error {
	if err := s.fs.MkdirAll(key.Dir(), 0o700); err != nil {
		return fmt.Errorf("create directory %s: %w", key.Dir(), err)
	}
	return nil
}

// Save writes a payload under the key's directory and returns the
// artifact id (the directory-relative path of the stored file). The
// name combines a random identifier with the upload timestamp, so two
// concurrent saves never clobber each other.
func (s *Store) Save(key pathkey.Key, payload []byte, suggestedName string) (string, error) {
	if err := s.EnsureDir(key); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%d%s", uuid.NewString(), s.now().Unix(), extOf(suggestedName))
	id := path.Join(key.Dir(), name)
	if err := afero.WriteFile(s.fs, id, payload, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", id, err)
	}
	return id, nil
}

// List returns the ids of image files stored under a key, sorted by
// name. An existing empty directory yields an empty slice; a missing
// directory yields ErrNotFound.
func (s *Store) List(key pathkey.Key) ([]string, error) {
	dir := key.Dir()
	st, err := s.fs.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !st.IsDir() {
		return nil, ErrNotFound
	}
	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(infos))
	for _, fi := range infos {
		if fi.IsDir() || !imageExts[strings.ToLower(path.Ext(fi.Name()))] {
			continue
		}
		ids = append(ids, path.Join(dir, fi.Name()))
	}
	sort.Strings(ids)
	return ids, nil
}

// Read returns the payload of a previously stored artifact.
func (s *Store) Read(id string) ([]byte, error) {
	b, err := afero.ReadFile(s.fs, id)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", id, err)
	}
	return b, nil
}

// extOf extracts a usable image extension from a suggested file name,
// defaulting to .jpg the way the bot transport delivers photos.
func extOf(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if imageExts[ext] {
		return ext
	}
	return ".jpg"
}
