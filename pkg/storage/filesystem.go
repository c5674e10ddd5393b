package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage persists uploaded resource files on disk under a base
// directory. The rest of the engine only ever sees the opaque file reference
// returned by Save; file bytes are never inspected.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Save writes the given bytes under the base dir and returns the file reference.
func (s *LocalStorage) Save(fileRef string, data []byte) (string, error) {
	path, err := s.resolve(fileRef)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare upload directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return fileRef, nil
}

// SaveStream copies from reader into the target file path.
func (s *LocalStorage) SaveStream(fileRef string, r io.Reader) (string, error) {
	path, err := s.resolve(fileRef)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare upload directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		return "", fmt.Errorf("write upload stream: %w", err)
	}
	return fileRef, nil
}

// Open returns a read-only handle for the referenced file.
func (s *LocalStorage) Open(fileRef string) (*os.File, error) {
	path, err := s.resolve(fileRef)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file if present. Called when a resource is hard
// deleted so orphaned uploads do not accumulate.
func (s *LocalStorage) Delete(fileRef string) error {
	path, err := s.resolve(fileRef)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload file: %w", err)
	}
	return nil
}

// Path exposes the underlying path for a reference, refusing anything that
// would resolve outside the base directory.
func (s *LocalStorage) Path(fileRef string) (string, error) {
	return s.resolve(fileRef)
}

// resolve maps a file reference to a path strictly inside baseDir. References
// are opaque tokens minted by this server; absolute paths and traversal
// segments are never legitimate.
func (s *LocalStorage) resolve(fileRef string) (string, error) {
	if fileRef == "" || filepath.IsAbs(fileRef) {
		return "", fmt.Errorf("invalid file reference")
	}
	cleaned := filepath.Clean(fileRef)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid file reference")
	}
	return filepath.Join(s.baseDir, cleaned), nil
}
