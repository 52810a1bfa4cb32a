package status

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStore persists the latest collector status as a YAML document and keeps a copy in memory
// for the status endpoint.
type FileStore struct {
	path string
	mu   sync.RWMutex
	last *CollectorStatus
}

// NewFileStore 创建文件持久化存储；path 为空时仅保存在内存
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Persist writes the status atomically (temp file + rename) and then records it as the latest.
func (s *FileStore) Persist(st CollectorStatus) error {
	if s.path != "" {
		if err := s.writeFile(st); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.last = &st
	s.mu.Unlock()
	return nil
}

// Last returns the most recently persisted status.
func (s *FileStore) Last() (CollectorStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return CollectorStatus{}, false
	}
	return *s.last, true
}

// Load reads a previously persisted status from disk.
func (s *FileStore) Load() (CollectorStatus, error) {
	var st CollectorStatus
	if s.path == "" {
		return st, errors.New("status store has no backing file")
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return st, fmt.Errorf("read status file %s: %w", s.path, err)
	}
	if err := yaml.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("decode status file %s: %w", s.path, err)
	}
	return st, nil
}

func (s *FileStore) writeFile(st CollectorStatus) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create status dir %s: %w", dir, err)
	}

	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode collector status: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".collector-status-*")
	if err != nil {
		return fmt.Errorf("create temp status file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp status file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename status file: %w", err)
	}
	return nil
}
