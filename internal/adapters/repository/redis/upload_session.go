// Package redis stores upload sessions as JSON documents in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ion-upload/internal/config"
	"ion-upload/internal/core/domain"
	"ion-upload/internal/core/port"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const maxCASAttempts = 100

// SessionStore keeps one JSON document per session. Mutations run as an
// optimistic WATCH/MULTI transaction on the session key.
type SessionStore struct {
	client *goredis.Client
	prefix string
	now    func() time.Time
}

// NewClient connects to redis and checks the connection
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewSessionStore creates a SessionStore using keys under prefix
func NewSessionStore(client *goredis.Client, prefix string) *SessionStore {
	return &SessionStore{client: client, prefix: prefix, now: time.Now}
}

// WithClock replaces the clock used for expiry checks
func (r *SessionStore) WithClock(now func() time.Time) *SessionStore {
	r.now = now
	return r
}

var _ port.UploadSessionStore = (*SessionStore)(nil)

func (r *SessionStore) sessionKey(id uuid.UUID) string {
	return r.prefix + ":session:" + id.String()
}

func (r *SessionStore) storageKeyIndex(storageKey string) string {
	return r.prefix + ":storage-key:" + storageKey
}

func (r *SessionStore) expiryIndex() string {
	return r.prefix + ":open-sessions"
}

// Create stores a new session under a fresh identifier
func (r *SessionStore) Create(ctx context.Context, session domain.UploadSession) (uuid.UUID, error) {
	now := r.now()
	doc := session.Clone()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		id, err := uuid.NewRandom()
		if err != nil {
			return uuid.Nil, &domain.StorageError{Op: "session.create", Err: err}
		}
		doc.ID = id
		data, err := json.Marshal(toDocument(doc))
		if err != nil {
			return uuid.Nil, &domain.StorageError{Op: "session.create", Err: err}
		}

		created, err := r.client.SetNX(ctx, r.sessionKey(id), data, 0).Result()
		if err != nil {
			return uuid.Nil, storageError("session.create", err)
		}
		if !created {
			continue
		}

		_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.ZAdd(ctx, r.expiryIndex(), goredis.Z{Score: float64(doc.ExpiresAt.Unix()), Member: id.String()})
			pipe.Set(ctx, r.storageKeyIndex(doc.StorageKey), id.String(), 0)
			return nil
		})
		if err != nil {
			return uuid.Nil, storageError("session.create", err)
		}
		return id, nil
	}
	return uuid.Nil, &domain.StorageError{Op: "session.create", Err: errors.New("could not allocate a session id")}
}

// Get returns the session
func (r *SessionStore) Get(ctx context.Context, id uuid.UUID) (*domain.UploadSession, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if err != nil {
		return nil, storageError("session.get", err)
	}
	return decode(data)
}

// RecordPart records the tag of a part
func (r *SessionStore) RecordPart(ctx context.Context, id uuid.UUID, partNumber int, etag string) (*domain.UploadSession, error) {
	session, _, err := r.update(ctx, "session.record_part", id, domain.RecordPart(partNumber, etag))
	return session, err
}

// Finalize marks the session completed
func (r *SessionStore) Finalize(ctx context.Context, id uuid.UUID) (*domain.UploadSession, error) {
	session, _, err := r.update(ctx, "session.finalize", id, domain.Finalize())
	return session, err
}

// Abort marks the session aborted
func (r *SessionStore) Abort(ctx context.Context, id uuid.UUID) (*domain.UploadSession, bool, error) {
	return r.update(ctx, "session.abort", id, domain.Abort())
}

// MarkFailed marks the session failed
func (r *SessionStore) MarkFailed(ctx context.Context, id uuid.UUID) (*domain.UploadSession, bool, error) {
	return r.update(ctx, "session.mark_failed", id, domain.Fail())
}

// FindExpired lists open sessions expired before now
func (r *SessionStore) FindExpired(ctx context.Context, now time.Time) ([]domain.UploadSession, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.expiryIndex(), &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, storageError("session.find_expired", err)
	}

	sessions := make([]domain.UploadSession, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		session, err := r.Get(ctx, id)
		if errors.Is(err, domain.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if session.IsExpired(now) {
			sessions = append(sessions, *session)
		}
	}
	return sessions, nil
}

// FindByStorageKey returns the newest session writing storageKey
func (r *SessionStore) FindByStorageKey(ctx context.Context, storageKey string) (*domain.UploadSession, error) {
	raw, err := r.client.Get(ctx, r.storageKeyIndex(storageKey)).Result()
	if err != nil {
		return nil, storageError("session.find_by_storage_key", err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, &domain.StorageError{Op: "session.find_by_storage_key", Err: err}
	}
	return r.Get(ctx, id)
}

func (r *SessionStore) update(ctx context.Context, op string, id uuid.UUID, t domain.Transition) (*domain.UploadSession, bool, error) {
	key := r.sessionKey(id)

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		var result *domain.UploadSession
		var changed bool
		var transitionErr error

		err := r.client.Watch(ctx, func(tx *goredis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			session, err := decode(data)
			if err != nil {
				return err
			}

			changed, transitionErr = session.Apply(r.now(), t)
			result = session
			if !changed {
				return nil
			}

			next, err := json.Marshal(toDocument(session))
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.Set(ctx, key, next, goredis.KeepTTL)
				if session.Status.IsTerminal() {
					pipe.ZRem(ctx, r.expiryIndex(), id.String())
				}
				return nil
			})
			return err
		}, key)

		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, false, storageError(op, err)
		}
		if transitionErr != nil {
			return nil, false, transitionErr
		}
		return result, changed, nil
	}
	return nil, false, &domain.StorageError{Op: op, Code: "TooManyConflicts", Retryable: true, Err: goredis.TxFailedErr}
}

type document struct {
	ID          uuid.UUID                  `json:"id"`
	StorageKey  string                     `json:"storage_key"`
	ContentType string                     `json:"content_type"`
	TotalSize   int64                      `json:"total_size"`
	PartSize    int64                      `json:"part_size"`
	PartCount   int                        `json:"part_count"`
	Parts       map[string]string          `json:"parts"`
	Status      domain.UploadSessionStatus `json:"status"`
	UploadID    string                     `json:"upload_id"`
	CreatedAt   time.Time                  `json:"created_at"`
	UpdatedAt   time.Time                  `json:"updated_at"`
	ExpiresAt   time.Time                  `json:"expires_at"`
}

func toDocument(s *domain.UploadSession) document {
	parts := make(map[string]string, len(s.Parts))
	for n, tag := range s.Parts {
		parts[strconv.Itoa(n)] = tag
	}
	return document{
		ID:          s.ID,
		StorageKey:  s.StorageKey,
		ContentType: s.ContentType,
		TotalSize:   s.TotalSize,
		PartSize:    s.PartSize,
		PartCount:   s.PartCount,
		Parts:       parts,
		Status:      s.Status,
		UploadID:    s.UploadID,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		ExpiresAt:   s.ExpiresAt,
	}
}

func decode(data []byte) (*domain.UploadSession, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &domain.StorageError{Op: "session.decode", Err: err}
	}
	parts := make(map[int]string, len(doc.Parts))
	for raw, tag := range doc.Parts {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, &domain.StorageError{Op: "session.decode", Err: err}
		}
		parts[n] = tag
	}
	return &domain.UploadSession{
		ID:          doc.ID,
		StorageKey:  doc.StorageKey,
		ContentType: doc.ContentType,
		TotalSize:   doc.TotalSize,
		PartSize:    doc.PartSize,
		PartCount:   doc.PartCount,
		Parts:       parts,
		Status:      doc.Status,
		UploadID:    doc.UploadID,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		ExpiresAt:   doc.ExpiresAt,
	}, nil
}

func storageError(op string, err error) error {
	if errors.Is(err, goredis.Nil) {
		return domain.ErrSessionNotFound
	}
	var se *domain.StorageError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &domain.StorageError{Op: op, Retryable: true, Err: err}
}
