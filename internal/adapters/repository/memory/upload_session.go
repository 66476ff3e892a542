// Package memory is an in-process session store for development and tests.
package memory

import (
	"context"
	"fmt"
	"ion-upload/internal/core/domain"
	"ion-upload/internal/core/port"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	mu      sync.Mutex
	session *domain.UploadSession
}

// SessionStore keeps sessions in memory. Mutations of one session are
// serialized by that session's lock; the map lock only guards lookups.
type SessionStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry
	now     func() time.Time
}

// NewSessionStore creates an empty SessionStore
func NewSessionStore() *SessionStore {
	return &SessionStore{
		entries: make(map[uuid.UUID]*entry),
		now:     time.Now,
	}
}

// WithClock replaces the clock used for expiry checks
func (m *SessionStore) WithClock(now func() time.Time) *SessionStore {
	m.now = now
	return m
}

var _ port.UploadSessionStore = (*SessionStore)(nil)

// Create stores a new session under a fresh identifier
func (m *SessionStore) Create(_ context.Context, session domain.UploadSession) (uuid.UUID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, &domain.StorageError{Op: "session.create", Err: err}
	}

	now := m.now()
	s := session.Clone()
	s.ID = id
	s.CreatedAt = now
	s.UpdatedAt = now

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = &entry{session: s}
	return id, nil
}

// Get returns a copy of the session
func (m *SessionStore) Get(_ context.Context, id uuid.UUID) (*domain.UploadSession, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), nil
}

// RecordPart records the tag of a part
func (m *SessionStore) RecordPart(_ context.Context, id uuid.UUID, partNumber int, etag string) (*domain.UploadSession, error) {
	session, _, err := m.update(id, domain.RecordPart(partNumber, etag))
	return session, err
}

// Finalize marks the session completed
func (m *SessionStore) Finalize(_ context.Context, id uuid.UUID) (*domain.UploadSession, error) {
	session, _, err := m.update(id, domain.Finalize())
	return session, err
}

// Abort marks the session aborted
func (m *SessionStore) Abort(_ context.Context, id uuid.UUID) (*domain.UploadSession, bool, error) {
	return m.update(id, domain.Abort())
}

// MarkFailed marks the session failed
func (m *SessionStore) MarkFailed(_ context.Context, id uuid.UUID) (*domain.UploadSession, bool, error) {
	return m.update(id, domain.Fail())
}

// FindExpired lists open sessions whose expiry is before now
func (m *SessionStore) FindExpired(_ context.Context, now time.Time) ([]domain.UploadSession, error) {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	var sessions []domain.UploadSession
	for _, e := range entries {
		e.mu.Lock()
		if e.session.IsExpired(now) {
			sessions = append(sessions, *e.session.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ExpiresAt.Before(sessions[j].ExpiresAt)
	})
	return sessions, nil
}

// FindByStorageKey returns the most recent session writing storageKey
func (m *SessionStore) FindByStorageKey(_ context.Context, storageKey string) (*domain.UploadSession, error) {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	var found *domain.UploadSession
	for _, e := range entries {
		e.mu.Lock()
		if e.session.StorageKey == storageKey && (found == nil || e.session.CreatedAt.After(found.CreatedAt)) {
			found = e.session.Clone()
		}
		e.mu.Unlock()
	}
	if found == nil {
		return nil, fmt.Errorf("%w: storage key %s", domain.ErrSessionNotFound, storageKey)
	}
	return found, nil
}

func (m *SessionStore) lookup(id uuid.UUID) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return e, nil
}

func (m *SessionStore) update(id uuid.UUID, t domain.Transition) (*domain.UploadSession, bool, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.session.Clone()
	changed, err := next.Apply(m.now(), t)
	if changed {
		e.session = next
	}
	if err != nil {
		return nil, false, err
	}
	return next.Clone(), changed, nil
}
