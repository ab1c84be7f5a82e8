package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/matzehuels/flowlane/pkg/cache"
	"github.com/matzehuels/flowlane/pkg/timeline"
)

// SavedView is the persisted interaction state of one graph.
type SavedView struct {
	GraphID   string         `json:"graph_id"`
	State     timeline.State `json:"state"`
	SavedAt   time.Time      `json:"saved_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// IsExpired returns true if the view has expired.
func (v *SavedView) IsExpired() bool {
	return time.Now().After(v.ExpiresAt)
}

// FileStore persists saved views as JSON files in a config directory.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
	ttl     time.Duration
}

// NewFileStore creates a file-based view store.
// If baseDir is empty, defaults to ~/.config/flowlane/views/
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		baseDir = filepath.Join(home, ".config", "flowlane", "views")
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create view dir: %w", err)
	}
	return &FileStore{baseDir: baseDir, ttl: DefaultSavedTTL}, nil
}

// Graph IDs are free-form, so files are named by hash.
func (s *FileStore) viewPath(graphID string) string {
	return filepath.Join(s.baseDir, cache.Hash([]byte(graphID))[:24]+".json")
}

// Load returns the saved view of graphID, or nil, nil when there is none.
func (s *FileStore) Load(ctx context.Context, graphID string) (*SavedView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := s.viewPath(graphID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read view file: %w", err)
	}

	var v SavedView
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse view: %w", err)
	}
	if v.GraphID != graphID || v.IsExpired() {
		os.Remove(path)
		return nil, nil
	}
	return &v, nil
}

// Save persists the state of graphID.
func (s *FileStore) Save(ctx context.Context, graphID string, st timeline.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	data, err := json.MarshalIndent(SavedView{
		GraphID:   graphID,
		State:     st,
		SavedAt:   now,
		ExpiresAt: now.Add(s.ttl),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal view: %w", err)
	}
	if err := os.WriteFile(s.viewPath(graphID), data, 0o600); err != nil {
		return fmt.Errorf("write view file: %w", err)
	}
	return nil
}

// Delete removes the saved view of graphID.
func (s *FileStore) Delete(ctx context.Context, graphID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.viewPath(graphID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove view file: %w", err)
	}
	return nil
}

// Cleanup removes expired and unreadable views.
func (s *FileStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return fmt.Errorf("read view dir: %w", err)
	}

	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.baseDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var v SavedView
		if err := json.Unmarshal(data, &v); err != nil || now.After(v.ExpiresAt) {
			os.Remove(path)
		}
	}
	return nil
}

// Path returns the base directory for view files.
func (s *FileStore) Path() string {
	return s.baseDir
}
