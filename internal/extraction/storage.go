package extraction

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Storage defines the interface for file storage operations
type Storage interface {
	// Save saves a file and returns its name within the storage
	Save(filename string, data []byte) (string, error)

	// Get retrieves a file by name
	Get(name string) ([]byte, error)

	// Exists reports whether a file is present
	Exists(name string) bool

	// Delete removes a file
	Delete(name string) error

	// Dir returns the directory backing the storage
	Dir() string
}

// LocalStorage implements the Storage interface using local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// baseName reduces a client supplied name to its final element. Backslashes count
// as separators and ".." can never survive.
func baseName(name string) string {
	base := path.Base(path.Clean("/" + strings.ReplaceAll(name, `\`, "/")))
	if base == "/" || base == "." {
		return ""
	}
	return base
}

// fullPath joins a name onto the base path, keeping only the final path element
func (l *LocalStorage) fullPath(name string) string {
	return filepath.Join(l.basePath, baseName(name))
}

// Save saves a file to local storage
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	if err := os.WriteFile(l.fullPath(filename), data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return baseName(filename), nil
}

// Get retrieves a file from local storage
func (l *LocalStorage) Get(name string) ([]byte, error) {
	data, err := os.ReadFile(l.fullPath(name))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Exists reports whether a regular file is present
func (l *LocalStorage) Exists(name string) bool {
	info, err := os.Stat(l.fullPath(name))
	return err == nil && info.Mode().IsRegular()
}

// Delete removes a file from local storage. Deleting a missing file is not an error.
func (l *LocalStorage) Delete(name string) error {
	if err := os.Remove(l.fullPath(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// Dir returns the base path
func (l *LocalStorage) Dir() string {
	return l.basePath
}
