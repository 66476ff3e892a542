package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ion-upload/internal/core/domain"
	"ion-upload/internal/core/port"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	pqUniqueViolation = "23505"
	createAttempts    = 3
)

// SessionStore is the postgres backed upload session store. Mutations lock
// the session row with SELECT ... FOR UPDATE for the duration of a transaction.
type SessionStore struct {
	uow *UnitOfWork
	now func() time.Time
}

// NewSessionStore creates a SessionStore on db
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{uow: NewUnitOfWork(db), now: time.Now}
}

// WithClock replaces the clock used for expiry checks
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	s.now = now
	return s
}

var _ port.UploadSessionStore = (*SessionStore)(nil)

// Create inserts the session under a fresh identifier
func (s *SessionStore) Create(ctx context.Context, session domain.UploadSession) (uuid.UUID, error) {
	now := s.now()
	row := session.Clone()
	row.CreatedAt = now
	row.UpdatedAt = now

	for attempt := 1; ; attempt++ {
		id, err := uuid.NewRandom()
		if err != nil {
			return uuid.Nil, &domain.StorageError{Op: "session.create", Err: err}
		}
		row.ID = id

		err = s.uow.Sessions().Insert(ctx, row)
		if err == nil {
			return id, nil
		}

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation && attempt < createAttempts {
			continue
		}
		return uuid.Nil, storageError("session.create", err)
	}
}

// Get returns the session with its parts
func (s *SessionStore) Get(ctx context.Context, id uuid.UUID) (*domain.UploadSession, error) {
	session, err := s.uow.Sessions().FindByID(ctx, id, false)
	if err != nil {
		return nil, storageError("session.get", err)
	}
	return session, nil
}

// RecordPart records the tag of a part
func (s *SessionStore) RecordPart(ctx context.Context, id uuid.UUID, partNumber int, etag string) (*domain.UploadSession, error) {
	session, _, err := s.update(ctx, "session.record_part", id, domain.RecordPart(partNumber, etag))
	return session, err
}

// Finalize marks the session completed
func (s *SessionStore) Finalize(ctx context.Context, id uuid.UUID) (*domain.UploadSession, error) {
	session, _, err := s.update(ctx, "session.finalize", id, domain.Finalize())
	return session, err
}

// Abort marks the session aborted
func (s *SessionStore) Abort(ctx context.Context, id uuid.UUID) (*domain.UploadSession, bool, error) {
	return s.update(ctx, "session.abort", id, domain.Abort())
}

// MarkFailed marks the session failed
func (s *SessionStore) MarkFailed(ctx context.Context, id uuid.UUID) (*domain.UploadSession, bool, error) {
	return s.update(ctx, "session.mark_failed", id, domain.Fail())
}

// FindExpired lists open sessions expired before now
func (s *SessionStore) FindExpired(ctx context.Context, now time.Time) ([]domain.UploadSession, error) {
	sessions, err := s.uow.Sessions().FindAllExpired(ctx, now)
	if err != nil {
		return nil, storageError("session.find_expired", err)
	}
	return sessions, nil
}

// FindByStorageKey returns the newest session writing storageKey
func (s *SessionStore) FindByStorageKey(ctx context.Context, storageKey string) (*domain.UploadSession, error) {
	session, err := s.uow.Sessions().FindLatestByStorageKey(ctx, storageKey)
	if err != nil {
		return nil, storageError("session.find_by_storage_key", err)
	}
	return session, nil
}

// update applies t under a row lock. A transition that changed the session
// is committed even when it also returned an error, so expiry is persisted.
func (s *SessionStore) update(ctx context.Context, op string, id uuid.UUID, t domain.Transition) (*domain.UploadSession, bool, error) {
	var result *domain.UploadSession
	var changed bool
	var transitionErr error

	txErr := s.uow.Execute(ctx, func(uow *UnitOfWork) error {
		rows := uow.Sessions()

		session, err := rows.FindByID(ctx, id, true)
		if err != nil {
			return err
		}
		known := make(map[int]struct{}, len(session.Parts))
		for n := range session.Parts {
			known[n] = struct{}{}
		}

		changed, transitionErr = session.Apply(s.now(), t)
		if !changed {
			result = session
			return nil
		}

		for n, etag := range session.Parts {
			if _, ok := known[n]; ok {
				continue
			}
			if err := rows.InsertPart(ctx, id, n, etag); err != nil {
				return err
			}
		}
		if err := rows.UpdateStatus(ctx, id, session.Status, session.UpdatedAt); err != nil {
			return err
		}
		result = session
		return nil
	})
	if txErr != nil {
		return nil, false, storageError(op, txErr)
	}
	if transitionErr != nil {
		return nil, false, transitionErr
	}
	return result, changed, nil
}

func storageError(op string, err error) error {
	if errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &domain.StorageError{Op: op, Code: pqCode(err), Err: err}
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
