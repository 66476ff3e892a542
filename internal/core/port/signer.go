package port

import (
	"net/url"
	"time"
)

// RequestSigner produces presigned object URLs
type RequestSigner interface {
	PresignObject(method string, storageKey string, query url.Values, expires time.Duration, at time.Time) (string, error)
}
