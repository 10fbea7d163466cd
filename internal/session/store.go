// Package session keeps onboarding wizard state between requests.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"tenant-onboarding-service/internal/models"
)

var (
	// ErrNotFound is returned for unknown or expired sessions
	ErrNotFound = errors.New("onboarding session not found")
	// ErrAttachmentNotFound is returned when the bytes of an upload are gone
	ErrAttachmentNotFound = errors.New("attachment not found")
)

// Store persists wizard state keyed by session ID. Uploaded file bytes are
// kept under their own keys so saving the state never rewrites them; Save
// extends the expiry of every attachment listed in the state.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*models.WizardState, error)
	Save(ctx context.Context, state *models.WizardState) error
	Delete(ctx context.Context, id uuid.UUID) error
	// PurgeExpired removes sessions past their expiry and returns how many went
	PurgeExpired(ctx context.Context, now time.Time) (int, error)

	PutAttachment(ctx context.Context, id uuid.UUID, data []byte, expiresAt time.Time) error
	GetAttachment(ctx context.Context, id uuid.UUID) ([]byte, error)
	DeleteAttachments(ctx context.Context, ids ...uuid.UUID) error
}

// MemoryStore is an in-process Store. Values are stored serialized so callers
// never share state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[uuid.UUID]memoryEntry
	attachments map[uuid.UUID]memoryEntry
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[uuid.UUID]memoryEntry),
		attachments: make(map[uuid.UUID]memoryEntry),
	}
}

// Get returns a copy of the stored state
func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*models.WizardState, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || (!entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt)) {
		return nil, ErrNotFound
	}

	var state models.WizardState
	if err := json.Unmarshal(entry.data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &state, nil
}

// Save stores a copy of state
func (s *MemoryStore) Save(ctx context.Context, state *models.WizardState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	s.mu.Lock()
	s.sessions[state.SessionID] = memoryEntry{data: data, expiresAt: state.ExpiresAt}
	for _, a := range state.Attachments {
		if entry, ok := s.attachments[a.ID]; ok {
			entry.expiresAt = state.ExpiresAt
			s.attachments[a.ID] = entry
		}
	}
	s.mu.Unlock()
	return nil
}

// Delete removes a session; deleting an unknown session is not an error
func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// PurgeExpired drops sessions whose expiry has passed
func (s *MemoryStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, entry := range s.sessions {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(s.sessions, id)
			purged++
		}
	}
	for id, entry := range s.attachments {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(s.attachments, id)
		}
	}
	return purged, nil
}

// PutAttachment stores a copy of data until expiresAt
func (s *MemoryStore) PutAttachment(ctx context.Context, id uuid.UUID, data []byte, expiresAt time.Time) error {
	s.mu.Lock()
	s.attachments[id] = memoryEntry{data: append([]byte(nil), data...), expiresAt: expiresAt}
	s.mu.Unlock()
	return nil
}

// GetAttachment returns a copy of the stored bytes
func (s *MemoryStore) GetAttachment(ctx context.Context, id uuid.UUID) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.attachments[id]
	s.mu.RUnlock()

	if !ok || (!entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt)) {
		return nil, ErrAttachmentNotFound
	}
	return append([]byte(nil), entry.data...), nil
}

// DeleteAttachments removes the bytes of the given uploads
func (s *MemoryStore) DeleteAttachments(ctx context.Context, ids ...uuid.UUID) error {
	s.mu.Lock()
	for _, id := range ids {
		delete(s.attachments, id)
	}
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, expired ones included
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
