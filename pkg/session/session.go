// Package session stores timeline viewer sessions.
//
// Two kinds of session exist:
//   - [Viewer]: a live [timeline.Session] held in memory by the viewer API,
//     addressed by its uuid and expired after a period of inactivity
//   - [SavedView]: the interaction state of one graph persisted on disk, so
//     that `flowlane watch --resume` reopens a view where it was left
//
// # Usage
//
//	store := session.NewMemoryStore()
//	v := session.NewViewer(ts, session.DefaultTTL)
//	store.Set(ctx, v)
//
//	v, err := store.Get(ctx, id)
//	if err != nil {
//	    return err
//	}
//	if v == nil {
//	    // unknown or expired
//	}
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/matzehuels/flowlane/pkg/timeline"
)

// Sentinel errors for session operations.
var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExpired is returned when a session has exceeded its TTL.
	ErrExpired = errors.New("expired")
)

// Default durations.
const (
	// DefaultTTL is the idle lifetime of a viewer session.
	DefaultTTL = 30 * time.Minute

	// DefaultSavedTTL is the lifetime of a saved view.
	DefaultSavedTTL = 30 * 24 * time.Hour
)

// Viewer is one client's interactive view held by the viewer API.
type Viewer struct {
	ID        string
	Timeline  *timeline.Session
	CreatedAt time.Time

	mu        sync.Mutex
	ttl       time.Duration
	expiresAt time.Time
}

// NewViewer wraps ts as a viewer session. The session ID is the timeline
// session's ID.
func NewViewer(ts *timeline.Session, ttl time.Duration) *Viewer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	return &Viewer{
		ID:        ts.ID(),
		Timeline:  ts,
		CreatedAt: now,
		ttl:       ttl,
		expiresAt: now.Add(ttl),
	}
}

// Touch extends the session by its TTL.
func (v *Viewer) Touch() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.expiresAt = time.Now().Add(v.ttl)
}

// ExpiresAt returns the current expiry time.
func (v *Viewer) ExpiresAt() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.expiresAt
}

// IsExpired returns true if the session has expired.
func (v *Viewer) IsExpired() bool {
	return time.Now().After(v.ExpiresAt())
}

// Store is the interface for viewer session storage.
type Store interface {
	// Get retrieves a session by ID.
	// Returns nil, nil if the session doesn't exist or has expired.
	Get(ctx context.Context, id string) (*Viewer, error)

	// Set stores a session.
	Set(ctx context.Context, v *Viewer) error

	// Delete removes a session and releases its resources.
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired sessions.
	Cleanup(ctx context.Context) error
}

// MemoryStore keeps viewer sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Viewer
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Viewer)}
}

// Get implements Store. A hit extends the session.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Viewer, error) {
	s.mu.RLock()
	v, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if v.IsExpired() {
		_ = s.Delete(ctx, id)
		return nil, nil
	}
	v.Touch()
	return v, nil
}

// Set implements Store.
func (s *MemoryStore) Set(ctx context.Context, v *Viewer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[v.ID] = v
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	v, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		v.Timeline.Close()
	}
	return nil
}

// Cleanup implements Store.
func (s *MemoryStore) Cleanup(ctx context.Context) error {
	s.mu.RLock()
	var expired []string
	for id, v := range s.sessions {
		if v.IsExpired() {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range expired {
		_ = s.Delete(ctx, id)
	}
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// RunCleanup calls Cleanup every interval until ctx is done.
func RunCleanup(ctx context.Context, s Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Cleanup(ctx)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
