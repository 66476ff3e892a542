package postgres

import (
	"context"
	"database/sql"
	"errors"
	"ion-upload/internal/core/domain"
	"time"

	"github.com/google/uuid"
)

const sessionColumns = `id, storage_key, content_type, total_size, part_size, part_count, provider_upload_id, status, expires_at, created_at, updated_at`

// SessionRows is the row level repository behind SessionStore
type SessionRows struct {
	db SQLQuerier
}

// NewSessionRows creates a SessionRows on db
func NewSessionRows(db SQLQuerier) *SessionRows {
	return &SessionRows{db: db}
}

// Insert inserts the session row
func (s *SessionRows) Insert(ctx context.Context, session *domain.UploadSession) error {
	query := `
		INSERT INTO upload_session (
			id, storage_key, content_type, total_size, part_size, part_count, provider_upload_id, status, expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.db.ExecContext(
		ctx,
		query,
		session.ID,
		session.StorageKey,
		session.ContentType,
		session.TotalSize,
		session.PartSize,
		session.PartCount,
		session.UploadID,
		session.Status,
		session.ExpiresAt,
		session.CreatedAt,
		session.UpdatedAt,
	)
	return err
}

// FindByID loads the session and its parts. forUpdate locks the session row
// until the surrounding transaction ends.
func (s *SessionRows) FindByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*domain.UploadSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM upload_session WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	session, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	parts, err := s.FindParts(ctx, id)
	if err != nil {
		return nil, err
	}
	session.Parts = parts
	return session, nil
}

// FindLatestByStorageKey returns the newest session writing storageKey
func (s *SessionRows) FindLatestByStorageKey(ctx context.Context, storageKey string) (*domain.UploadSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM upload_session
		WHERE storage_key = $1
		ORDER BY created_at DESC
		LIMIT 1`

	session, err := scanSession(s.db.QueryRowContext(ctx, query, storageKey))
	if err != nil {
		return nil, err
	}

	parts, err := s.FindParts(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	session.Parts = parts
	return session, nil
}

// FindParts returns the acknowledged parts of a session
func (s *SessionRows) FindParts(ctx context.Context, id uuid.UUID) (map[int]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT part_number, etag FROM upload_part WHERE session_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	parts := make(map[int]string)
	for rows.Next() {
		var number int
		var etag string
		if err := rows.Scan(&number, &etag); err != nil {
			return nil, err
		}
		parts[number] = etag
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return parts, nil
}

// InsertPart stores the tag of one part
func (s *SessionRows) InsertPart(ctx context.Context, id uuid.UUID, partNumber int, etag string) error {
	query := `INSERT INTO upload_part (session_id, part_number, etag) VALUES ($1, $2, $3)`
	_, err := s.db.ExecContext(ctx, query, id, partNumber, etag)
	return err
}

// UpdateStatus updates status
func (s *SessionRows) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.UploadSessionStatus, updatedAt time.Time) error {
	query := `UPDATE upload_session SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := s.db.ExecContext(ctx, query, status, updatedAt, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return domain.ErrSessionNotFound
	}

	return nil
}

// FindAllExpired lists open sessions expired before now, without their parts
func (s *SessionRows) FindAllExpired(ctx context.Context, now time.Time) ([]domain.UploadSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM upload_session
		WHERE status IN ('initiated', 'in_progress') AND expires_at < $1
		ORDER BY expires_at`

	rows, err := s.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.UploadSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*domain.UploadSession, error) {
	var row dbUploadSession
	err := r.Scan(
		&row.ID,
		&row.StorageKey,
		&row.ContentType,
		&row.TotalSize,
		&row.PartSize,
		&row.PartCount,
		&row.ProviderUploadID,
		&row.Status,
		&row.ExpiresAt,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

type dbUploadSession struct {
	ID               uuid.UUID `db:"id"`
	StorageKey       string    `db:"storage_key"`
	ContentType      string    `db:"content_type"`
	TotalSize        int64     `db:"total_size"`
	PartSize         int64     `db:"part_size"`
	PartCount        int       `db:"part_count"`
	ProviderUploadID string    `db:"provider_upload_id"`
	Status           string    `db:"status"`
	ExpiresAt        time.Time `db:"expires_at"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// ToDomain converts db obj to domain
func (s *dbUploadSession) ToDomain() *domain.UploadSession {
	return &domain.UploadSession{
		ID:          s.ID,
		StorageKey:  s.StorageKey,
		ContentType: s.ContentType,
		TotalSize:   s.TotalSize,
		PartSize:    s.PartSize,
		PartCount:   s.PartCount,
		Parts:       map[int]string{},
		Status:      domain.UploadSessionStatus(s.Status),
		UploadID:    s.ProviderUploadID,
		ExpiresAt:   s.ExpiresAt,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
