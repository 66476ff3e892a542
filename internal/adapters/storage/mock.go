package storage

import (
	"context"
	"ion-upload/internal/core/domain"
	"net/url"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func NewMockStorage() *MockStorage {
	return &MockStorage{}
}

func (m *MockStorage) CreateMultipartUpload(ctx context.Context, storageKey string, contentType string) (string, error) {
	args := m.Called(ctx, storageKey, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) CompleteMultipartUpload(ctx context.Context, storageKey string, uploadID string, parts []domain.CompletedPart) error {
	args := m.Called(ctx, storageKey, uploadID, parts)
	return args.Error(0)
}

func (m *MockStorage) AbortMultipartUpload(ctx context.Context, storageKey string, uploadID string) error {
	args := m.Called(ctx, storageKey, uploadID)
	return args.Error(0)
}

type MockSigner struct {
	mock.Mock
}

func NewMockSigner() *MockSigner {
	return &MockSigner{}
}

func (m *MockSigner) PresignObject(method string, storageKey string, query url.Values, expires time.Duration, at time.Time) (string, error) {
	args := m.Called(method, storageKey, query, expires, at)
	return args.String(0), args.Error(1)
}
