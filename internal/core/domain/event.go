package domain

import (
	"time"

	"github.com/google/uuid"
)

// BucketEvent represents an S3 bucket notification as emitted by MinIO
type BucketEvent struct {
	EventName string `json:"EventName"`
	Key       string `json:"Key"`
	Records   []struct {
		EventName string `json:"eventName"`
		S3        struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key  string `json:"key"`
				Size int64  `json:"size"`
				ETag string `json:"eTag"`
			} `json:"object"`
		} `json:"s3"`
		EventTime string `json:"eventTime"`
	} `json:"Records"`
}

// BucketEventMultipartComplete is the notification name of a completed multipart upload
const BucketEventMultipartComplete = "s3:ObjectCreated:CompleteMultipartUpload"

// SessionEventType is a lifecycle event of an upload session
type SessionEventType string

const (
	SessionEventInitiated SessionEventType = "upload.initiated"
	SessionEventCompleted SessionEventType = "upload.completed"
	SessionEventAborted   SessionEventType = "upload.aborted"
	SessionEventFailed    SessionEventType = "upload.failed"
)

// SessionEvent is published when a session is created or reaches a terminal state
type SessionEvent struct {
	Type       SessionEventType    `json:"type"`
	SessionID  uuid.UUID           `json:"session_id"`
	StorageKey string              `json:"storage_key"`
	UploadID   string              `json:"upload_id"`
	Status     UploadSessionStatus `json:"status"`
	TotalSize  int64               `json:"total_size"`
	PartCount  int                 `json:"part_count"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// NewSessionEvent builds the event describing s
func NewSessionEvent(t SessionEventType, s *UploadSession, at time.Time) SessionEvent {
	return SessionEvent{
		Type:       t,
		SessionID:  s.ID,
		StorageKey: s.StorageKey,
		UploadID:   s.UploadID,
		Status:     s.Status,
		TotalSize:  s.TotalSize,
		PartCount:  s.PartCount,
		OccurredAt: at,
	}
}

// EventTypeForStatus returns the event announcing a terminal status
func EventTypeForStatus(status UploadSessionStatus) SessionEventType {
	switch status {
	case UploadSessionStatusCompleted:
		return SessionEventCompleted
	case UploadSessionStatusAborted:
		return SessionEventAborted
	case UploadSessionStatusFailed:
		return SessionEventFailed
	default:
		return SessionEventInitiated
	}
}
