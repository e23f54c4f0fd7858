package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"assay/pkg/logging"
)

// ErrNotFound is returned when a stored entity does not exist.
var ErrNotFound = errors.New("not found")

const fileExt = ".json"

// Dir stores named documents as files grouped by entity type, one
// subdirectory per type under a root directory.
type Dir struct {
	mu   sync.RWMutex
	root string
}

// NewDir creates a Dir rooted at path.
func NewDir(path string) *Dir {
	return &Dir{root: path}
}

// Root returns the root directory.
func (d *Dir) Root() string {
	return d.root
}

// Save writes data for the given entity type and name, replacing any
// previous content atomically.
func (d *Dir) Save(entityType, name string, data []byte) error {
	if err := checkKey(entityType, name); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	targetDir := filepath.Join(d.root, entityType)
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", targetDir, err)
	}

	filePath := filepath.Join(targetDir, sanitizeFilename(name)+fileExt)
	tmp, err := os.CreateTemp(targetDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", targetDir, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write file %s: %w", filePath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write file %s: %w", filePath, err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write file %s: %w", filePath, err)
	}

	logging.Debug("Storage", "Saved %s/%s to %s", entityType, name, filePath)
	return nil
}

// Load reads the document for entityType and name.
func (d *Dir) Load(entityType, name string) ([]byte, error) {
	if err := checkKey(entityType, name); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	filePath := filepath.Join(d.root, entityType, sanitizeFilename(name)+fileExt)
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s/%s: %w", entityType, name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}
	return data, nil
}

// Delete removes the document for entityType and name.
func (d *Dir) Delete(entityType, name string) error {
	if err := checkKey(entityType, name); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	filePath := filepath.Join(d.root, entityType, sanitizeFilename(name)+fileExt)
	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s/%s: %w", entityType, name, ErrNotFound)
		}
		return fmt.Errorf("failed to delete file %s: %w", filePath, err)
	}

	logging.Debug("Storage", "Deleted %s/%s", entityType, name)
	return nil
}

// List returns the names stored for entityType, sorted.
func (d *Dir) List(entityType string) ([]string, error) {
	if entityType == "" {
		return nil, errors.New("entityType cannot be empty")
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(d.root, entityType))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", entityType, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != fileExt {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), fileExt))
	}
	sort.Strings(names)
	return names, nil
}

func checkKey(entityType, name string) error {
	if entityType == "" {
		return errors.New("entityType cannot be empty")
	}
	if name == "" {
		return errors.New("name cannot be empty")
	}
	return nil
}

// sanitizeFilename replaces characters that are unsafe in file names.
func sanitizeFilename(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', '.', ' ':
			return '_'
		}
		return r
	}, name)

	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_")

	if sanitized == "" {
		sanitized = "unnamed"
	}
	return sanitized
}
