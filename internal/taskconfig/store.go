package taskconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"webvideo/internal/services"
)

// Store reads and writes the task record at a fixed path.
type Store struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// NewStore returns a store backed by fsys. A nil fsys uses the OS filesystem.
func NewStore(fsys afero.Fs, path string) *Store {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Store{fs: fsys, path: path}
}

// Path returns the record location.
func (s *Store) Path() string { return s.path }

// Load reads the record. A missing file is created with Default() values.
// Records missing any required key are rejected with a validation error.
func (s *Store) Load() (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		task := Default()
		if err := s.writeLocked(task); err != nil {
			return Task{}, err
		}
		return task, nil
	}
	if err != nil {
		return Task{}, fmt.Errorf("read task file: %w", err)
	}

	if missing, err := missingKeys(data); err != nil {
		return Task{}, services.Wrap(services.ErrValidation, "taskconfig", "parse", s.path, err)
	} else if len(missing) > 0 {
		return Task{}, services.Wrap(services.ErrValidation, "taskconfig", "load",
			"missing keys: "+strings.Join(missing, ", "), nil)
	}

	task := Default()
	if err := toml.NewDecoder(bytes.NewReader(data)).Decode(&task); err != nil {
		return Task{}, services.Wrap(services.ErrValidation, "taskconfig", "decode", s.path, err)
	}
	return task, nil
}

// Save replaces the whole record.
func (s *Store) Save(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(task)
}

func (s *Store) writeLocked(task Task) error {
	data, err := toml.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create task directory: %w", err)
	}
	tmp, err := afero.TempFile(s.fs, dir, ".task-*.toml")
	if err != nil {
		return fmt.Errorf("create temp task file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("write temp task file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("close temp task file: %w", err)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("replace task file: %w", err)
	}
	return nil
}

// MissingKeys reports required keys absent from a raw record.
func MissingKeys(data []byte) ([]string, error) {
	return missingKeys(data)
}

func missingKeys(data []byte) ([]string, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var missing []string
	for _, key := range RequiredKeys {
		if _, ok := raw[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing, nil
}
