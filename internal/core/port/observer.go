package port

import (
	"ion-upload/internal/core/domain"
	"time"
)

// UploadObserver receives coordinator measurements
type UploadObserver interface {
	ObserveOperation(op string, err error, elapsed time.Duration)
	ObserveTransition(status domain.UploadSessionStatus)
}
