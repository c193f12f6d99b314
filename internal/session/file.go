package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStore keeps records in a YAML file mapping endpoint to Record.
// Writes replace the file atomically.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a FileStore at path. The file is created on the
// first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(_ context.Context, endpoint string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return Record{}, err
	}
	rec, ok := records[endpoint]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *FileStore) Save(_ context.Context, endpoint string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	records[endpoint] = rec

	data, err := yaml.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".sessions-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write sessions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write sessions: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func (s *FileStore) read() (map[string]Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]Record), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	records := make(map[string]Record)
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse session file %s: %w", s.path, err)
	}
	if records == nil {
		records = make(map[string]Record)
	}
	return records, nil
}
