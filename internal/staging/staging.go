// Package staging keeps synthesized and uploaded audio on local disk until it
// is exported.
package staging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/promptstudio/promptstudio/internal/failure"
)

// Filename prefixes of staged artifacts.
const (
	PrefixSynthesized = "tts"
	PrefixUploaded    = "upload"
)

// Store is a flat directory of staged artifacts addressed by base filename.
type Store struct {
	dir string
}

// New creates the staging directory if needed and returns a store rooted at it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the staging directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes data under a new randomized name "<prefix>_<16 hex><ext>" and
// returns that name as the artifact ref.
func (s *Store) Save(prefix, ext string, data []byte) (string, error) {
	name := newName(prefix, ext)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0640); err != nil {
		return "", fmt.Errorf("writing staged artifact: %w", err)
	}
	return name, nil
}

// Load returns the bytes of a staged artifact. A ref that is not a plain base
// filename, or that does not exist, yields ArtifactNotFound.
func (s *Store) Load(ref string) ([]byte, error) {
	path, err := s.Path(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, failure.New(failure.ArtifactNotFound, "File not found")
	}
	if err != nil {
		return nil, fmt.Errorf("reading staged artifact: %w", err)
	}
	return data, nil
}

// Open opens a staged artifact for streaming. The caller closes the file.
func (s *Store) Open(ref string) (*os.File, fs.FileInfo, error) {
	path, err := s.Path(ref)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, failure.New(failure.ArtifactNotFound, "File not found")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("opening staged artifact: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat staged artifact: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, failure.New(failure.ArtifactNotFound, "File not found")
	}
	return f, info, nil
}

// Path resolves ref inside the staging directory.
func (s *Store) Path(ref string) (string, error) {
	if !validRef(ref) {
		return "", failure.New(failure.ArtifactNotFound, "File not found")
	}
	return filepath.Join(s.dir, ref), nil
}

func validRef(ref string) bool {
	if ref == "" || ref == "." || ref == ".." {
		return false
	}
	if strings.ContainsAny(ref, `/\`) || strings.Contains(ref, "..") {
		return false
	}
	return filepath.Base(ref) == ref
}

func newName(prefix, ext string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "_" + id[:16] + ext
}
