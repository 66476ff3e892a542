package multipart

import (
	"fmt"
	"ion-upload/internal/config"
	"ion-upload/internal/core/domain"
	"mime"
	"strings"
	"unicode/utf8"
)

const (
	mib                = int64(1) << 20
	maxStorageKeyBytes = 1024
	defaultContentType = "application/octet-stream"
)

// planParts picks the part size for totalSize. The hint, or the default, is
// clamped to the part size bounds and then grown until the part count fits.
func planParts(totalSize, hint int64, cfg config.UploadConfig) (int64, int, error) {
	if totalSize <= 0 {
		return 0, 0, domain.NewValidationError("total_size", "must be positive")
	}
	if totalSize > cfg.MaxTotalSize {
		return 0, 0, domain.NewValidationError("total_size", fmt.Sprintf("must not exceed %d bytes", cfg.MaxTotalSize))
	}
	if hint < 0 {
		return 0, 0, domain.NewValidationError("part_size_hint", "must not be negative")
	}

	partSize := cfg.DefaultPartSize
	if hint > 0 {
		partSize = hint
	}
	partSize = min(max(partSize, cfg.MinPartSize), cfg.MaxPartSize)

	if domain.PartCountFor(totalSize, partSize) > cfg.MaxPartCount {
		partSize = ceilDiv(totalSize, int64(cfg.MaxPartCount))
		partSize = ceilDiv(partSize, mib) * mib
		if partSize > cfg.MaxPartSize {
			return 0, 0, domain.NewValidationError("total_size", fmt.Sprintf("cannot be split into at most %d parts", cfg.MaxPartCount))
		}
	}
	return partSize, domain.PartCountFor(totalSize, partSize), nil
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

func validateStorageKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "":
		return domain.NewValidationError("storage_key", "must not be empty")
	case len(key) > maxStorageKeyBytes:
		return domain.NewValidationError("storage_key", fmt.Sprintf("must not exceed %d bytes", maxStorageKeyBytes))
	case !utf8.ValidString(key):
		return domain.NewValidationError("storage_key", "must be valid UTF-8")
	}
	return nil
}

// normalizeContentType parses contentType, defaulting to application/octet-stream
func normalizeContentType(contentType string) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		return defaultContentType, nil
	}
	mimeType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", domain.NewValidationError("content_type", fmt.Sprintf("invalid content type %q", contentType))
	}
	return mime.FormatMediaType(mimeType, params), nil
}
