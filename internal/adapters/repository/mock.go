package repository

import (
	"context"
	"ion-upload/internal/core/domain"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockUploadSessionStore struct {
	mock.Mock
}

func NewMockUploadSessionStore() *MockUploadSessionStore {
	return &MockUploadSessionStore{}
}

func (m *MockUploadSessionStore) Create(ctx context.Context, session domain.UploadSession) (uuid.UUID, error) {
	args := m.Called(ctx, session)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockUploadSessionStore) Get(ctx context.Context, id uuid.UUID) (*domain.UploadSession, error) {
	args := m.Called(ctx, id)
	out, _ := args.Get(0).(*domain.UploadSession)
	return out, args.Error(1)
}

func (m *MockUploadSessionStore) RecordPart(ctx context.Context, id uuid.UUID, partNumber int, etag string) (*domain.UploadSession, error) {
	args := m.Called(ctx, id, partNumber, etag)
	out, _ := args.Get(0).(*domain.UploadSession)
	return out, args.Error(1)
}

func (m *MockUploadSessionStore) Finalize(ctx context.Context, id uuid.UUID) (*domain.UploadSession, error) {
	args := m.Called(ctx, id)
	out, _ := args.Get(0).(*domain.UploadSession)
	return out, args.Error(1)
}

func (m *MockUploadSessionStore) Abort(ctx context.Context, id uuid.UUID) (*domain.UploadSession, bool, error) {
	args := m.Called(ctx, id)
	out, _ := args.Get(0).(*domain.UploadSession)
	return out, args.Bool(1), args.Error(2)
}

func (m *MockUploadSessionStore) MarkFailed(ctx context.Context, id uuid.UUID) (*domain.UploadSession, bool, error) {
	args := m.Called(ctx, id)
	out, _ := args.Get(0).(*domain.UploadSession)
	return out, args.Bool(1), args.Error(2)
}

func (m *MockUploadSessionStore) FindExpired(ctx context.Context, now time.Time) ([]domain.UploadSession, error) {
	args := m.Called(ctx, now)
	out, _ := args.Get(0).([]domain.UploadSession)
	return out, args.Error(1)
}

func (m *MockUploadSessionStore) FindByStorageKey(ctx context.Context, storageKey string) (*domain.UploadSession, error) {
	args := m.Called(ctx, storageKey)
	out, _ := args.Get(0).(*domain.UploadSession)
	return out, args.Error(1)
}
