package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps all bundles in one JSON file, keyed by session key.
// Writes go through a temp file and a rename so a crash never leaves a
// half written file behind.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type fileContents struct {
	Version  string             `json:"version"`
	Sessions map[string]*Bundle `json:"sessions"`
}

// NewFileStore creates a file store. If path is empty, defaults to
// ~/.timelog/session.json
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".timelog", "session.json")
	}
	return &FileStore{path: path}, nil
}

// Path returns the file path of the store.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the bundle stored under key.
func (s *FileStore) Get(_ context.Context, key string) (*Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := s.read()
	if err != nil {
		return nil, err
	}
	bundle, ok := contents.Sessions[key]
	if !ok || bundle == nil {
		return nil, ErrNotFound
	}
	return bundle, nil
}

// Put replaces the bundle stored under key.
func (s *FileStore) Put(_ context.Context, key string, bundle *Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := s.read()
	if err != nil {
		return err
	}
	contents.Sessions[key] = bundle
	return s.write(contents)
}

// Delete removes the bundle stored under key.
func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := contents.Sessions[key]; !ok {
		return nil
	}
	delete(contents.Sessions, key)

	if len(contents.Sessions) == 0 {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove session file: %w", err)
		}
		return nil
	}
	return s.write(contents)
}

// read loads the file. A missing file is an empty store.
func (s *FileStore) read() (*fileContents, error) {
	contents := &fileContents{Version: "1.0", Sessions: make(map[string]*Bundle)}

	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return contents, nil
		}
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(contents); err != nil {
		return nil, fmt.Errorf("failed to decode session file: %w", err)
	}
	if contents.Sessions == nil {
		contents.Sessions = make(map[string]*Bundle)
	}
	return contents, nil
}

func (s *FileStore) write(contents *fileContents) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(contents); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode session file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
