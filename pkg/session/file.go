package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps sessions in a JSON document (mode 0600) holding one
// entry per backend base URL.
type FileStore struct {
	Path  string
	scope string
	mu    sync.Mutex
}

type fileDocument struct {
	Sessions map[string]map[Field]string `json:"sessions"`
}

// NewFileStore returns a store backed by path and scoped to baseURL.
func NewFileStore(path, baseURL string) *FileStore {
	return &FileStore{Path: path, scope: NormalizeKey(baseURL)}
}

// DefaultFilePath honours XDG_CONFIG_HOME and falls back to
// ~/.config/paydesk/session.json.
func DefaultFilePath() string {
	xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfigHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		xdgConfigHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(xdgConfigHome, "paydesk", "session.json")
}

// EnsureParentDir creates the directory holding path with mode 0700.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

func (s *FileStore) read() (*fileDocument, error) {
	doc := &fileDocument{Sessions: map[string]map[Field]string{}}
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	if len(b) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(b, doc); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	if doc.Sessions == nil {
		doc.Sessions = map[string]map[Field]string{}
	}
	return doc, nil
}

func (s *FileStore) write(doc *fileDocument) error {
	if err := EnsureParentDir(s.Path); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session file: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, f Field) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return "", err
	}
	return doc.Sessions[s.scope][f], nil
}

func (s *FileStore) Set(_ context.Context, f Field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	fields := doc.Sessions[s.scope]
	if fields == nil {
		fields = map[Field]string{}
		doc.Sessions[s.scope] = fields
	}
	fields[f] = value
	return s.write(doc)
}

func (s *FileStore) Delete(_ context.Context, f Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	fields, ok := doc.Sessions[s.scope]
	if !ok {
		return nil
	}
	if _, ok := fields[f]; !ok {
		return nil
	}
	delete(fields, f)
	if len(fields) == 0 {
		delete(doc.Sessions, s.scope)
	}
	return s.write(doc)
}

var _ Store = (*FileStore)(nil)
