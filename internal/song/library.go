package song

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// File names inside a song directory.
const (
	MainFile     = "full.wav"
	VocalsFile   = "vocals.wav"
	DrumsFile    = "drums.wav"
	MetadataFile = "metadata.txt"
)

// Info summarises one song directory.
type Info struct {
	Name        string `json:"name"`
	HasVocals   bool   `json:"has_vocals"`
	HasDrums    bool   `json:"has_drums"`
	HasMetadata bool   `json:"has_metadata"`
}

// Library resolves song names to files under a songs directory:
//
//	<dir>/<name>/full.wav     main mix (required)
//	<dir>/<name>/vocals.wav   isolated vocals (optional)
//	<dir>/<name>/drums.wav    isolated percussion (optional)
//	<dir>/<name>/metadata.txt choreography (optional)
//
// Thread Safety: All methods are safe for concurrent use.
type Library struct {
	dir string

	mu     sync.RWMutex
	cached []Info
	valid  bool
}

// NewLibrary creates a Library rooted at dir. The directory is not
// required to exist yet.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir}
}

// Dir returns the songs directory.
func (l *Library) Dir() string {
	return l.dir
}

// ValidateName rejects names that are empty or could escape the songs directory.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q is hidden", ErrInvalidName, name)
	}
	return nil
}

// Path returns the path of file inside the directory of song name.
func (l *Library) Path(name, file string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(l.dir, name, file), nil
}

// MetadataPath returns the metadata file path for song name.
func (l *Library) MetadataPath(name string) (string, error) {
	return l.Path(name, MetadataFile)
}

// Exists reports whether song name has a main track.
func (l *Library) Exists(name string) bool {
	path, err := l.Path(name, MainFile)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// List returns the songs in the library, sorted by name.
// The result is cached until Invalidate is called.
func (l *Library) List() ([]Info, error) {
	l.mu.RLock()
	if l.valid {
		out := append([]Info(nil), l.cached...)
		l.mu.RUnlock()
		return out, nil
	}
	l.mu.RUnlock()

	songs, err := l.scan()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cached = songs
	l.valid = true
	l.mu.Unlock()

	return append([]Info(nil), songs...), nil
}

// Invalidate drops the cached listing.
func (l *Library) Invalidate() {
	l.mu.Lock()
	l.valid = false
	l.cached = nil
	l.mu.Unlock()
}

// scan walks the songs directory one level deep.
func (l *Library) scan() ([]Info, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Info{}, nil
		}
		return nil, fmt.Errorf("reading songs directory: %w", err)
	}

	songs := make([]Info, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || ValidateName(e.Name()) != nil {
			continue
		}
		if !l.Exists(e.Name()) {
			continue
		}
		songs = append(songs, Info{
			Name:        e.Name(),
			HasVocals:   fileExists(filepath.Join(l.dir, e.Name(), VocalsFile)),
			HasDrums:    fileExists(filepath.Join(l.dir, e.Name(), DrumsFile)),
			HasMetadata: fileExists(filepath.Join(l.dir, e.Name(), MetadataFile)),
		})
	}

	sort.Slice(songs, func(i, j int) bool { return songs[i].Name < songs[j].Name })
	return songs, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
