package multipart

import (
	"context"
	"ion-upload/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockMultipartService is a mock implementation of MultipartService
type MockMultipartService struct {
	mock.Mock
}

// NewMockMultipartService creates a new MockMultipartService
func NewMockMultipartService() *MockMultipartService {
	return &MockMultipartService{}
}

func (m *MockMultipartService) InitiateUpload(ctx context.Context, req domain.InitiateUploadRequest) (*domain.InitiatedUpload, error) {
	args := m.Called(ctx, req)
	out, _ := args.Get(0).(*domain.InitiatedUpload)
	return out, args.Error(1)
}

func (m *MockMultipartService) GetPartUploadURL(ctx context.Context, sessionID uuid.UUID, partNumber int) (*domain.PartUploadURL, error) {
	args := m.Called(ctx, sessionID, partNumber)
	out, _ := args.Get(0).(*domain.PartUploadURL)
	return out, args.Error(1)
}

func (m *MockMultipartService) GetPartUploadURLs(ctx context.Context, sessionID uuid.UUID, partNumbers []int) ([]domain.PartUploadURL, error) {
	args := m.Called(ctx, sessionID, partNumbers)
	out, _ := args.Get(0).([]domain.PartUploadURL)
	return out, args.Error(1)
}

func (m *MockMultipartService) AcknowledgePart(ctx context.Context, sessionID uuid.UUID, partNumber int, etag string) (*domain.SessionSummary, error) {
	args := m.Called(ctx, sessionID, partNumber, etag)
	out, _ := args.Get(0).(*domain.SessionSummary)
	return out, args.Error(1)
}

func (m *MockMultipartService) CompleteUpload(ctx context.Context, sessionID uuid.UUID) (*domain.SessionSummary, error) {
	args := m.Called(ctx, sessionID)
	out, _ := args.Get(0).(*domain.SessionSummary)
	return out, args.Error(1)
}

func (m *MockMultipartService) AbortUpload(ctx context.Context, sessionID uuid.UUID) (*domain.SessionSummary, error) {
	args := m.Called(ctx, sessionID)
	out, _ := args.Get(0).(*domain.SessionSummary)
	return out, args.Error(1)
}

func (m *MockMultipartService) GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.UploadSession, error) {
	args := m.Called(ctx, sessionID)
	out, _ := args.Get(0).(*domain.UploadSession)
	return out, args.Error(1)
}
