package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UploadSessionStatus represents the status of an upload session
type UploadSessionStatus string

const (
	UploadSessionStatusInitiated  UploadSessionStatus = "initiated"
	UploadSessionStatusInProgress UploadSessionStatus = "in_progress"
	UploadSessionStatusCompleted  UploadSessionStatus = "completed"
	UploadSessionStatusAborted    UploadSessionStatus = "aborted"
	UploadSessionStatusFailed     UploadSessionStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed from s
func (s UploadSessionStatus) IsTerminal() bool {
	switch s {
	case UploadSessionStatusCompleted, UploadSessionStatusAborted, UploadSessionStatusFailed:
		return true
	default:
		return false
	}
}

// UploadSession represents one multipart upload transaction
type UploadSession struct {
	ID          uuid.UUID
	StorageKey  string
	ContentType string
	TotalSize   int64
	PartSize    int64
	PartCount   int
	// Parts maps a part number to the entity tag returned by storage
	Parts     map[int]string
	Status    UploadSessionStatus
	UploadID  string
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// CompletedPart is a part reference sent to storage on completion
type CompletedPart struct {
	PartNumber int
	ETag       string
}

// PartCountFor returns ceil(totalSize / partSize)
func PartCountFor(totalSize, partSize int64) int {
	if totalSize <= 0 || partSize <= 0 {
		return 0
	}
	return int((totalSize + partSize - 1) / partSize)
}

// NormalizeETag strips the quotes some providers wrap entity tags in
func NormalizeETag(etag string) string {
	return strings.Trim(strings.TrimSpace(etag), "\"")
}

// Clone returns a deep copy of the session
func (s *UploadSession) Clone() *UploadSession {
	c := *s
	c.Parts = make(map[int]string, len(s.Parts))
	for n, tag := range s.Parts {
		c.Parts[n] = tag
	}
	return &c
}

// IsExpired reports whether the session is past its expiry and still open
func (s *UploadSession) IsExpired(now time.Time) bool {
	return !s.Status.IsTerminal() && now.After(s.ExpiresAt)
}

// MissingParts lists part numbers without an acknowledged tag, ascending
func (s *UploadSession) MissingParts() []int {
	missing := make([]int, 0)
	for n := 1; n <= s.PartCount; n++ {
		if _, ok := s.Parts[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

// OrderedParts returns acknowledged parts sorted by part number
func (s *UploadSession) OrderedParts() []CompletedPart {
	parts := make([]CompletedPart, 0, len(s.Parts))
	for n, tag := range s.Parts {
		parts = append(parts, CompletedPart{PartNumber: n, ETag: tag})
	}
	sort.Slice(parts, func(i, j int) bool {
		return parts[i].PartNumber < parts[j].PartNumber
	})
	return parts
}

// AssembledETag returns the entity tag storage gives the object assembled from
// the acknowledged parts: the MD5 of the concatenated part digests suffixed with
// the part count. ok is false when a part tag is not an MD5 digest, as with
// SSE-KMS encrypted parts.
func (s *UploadSession) AssembledETag() (string, bool) {
	h := md5.New()
	parts := s.OrderedParts()
	for _, p := range parts {
		sum, err := hex.DecodeString(NormalizeETag(p.ETag))
		if err != nil || len(sum) != md5.Size {
			return "", false
		}
		h.Write(sum)
	}
	return hex.EncodeToString(h.Sum(nil)) + "-" + strconv.Itoa(len(parts)), true
}

// MatchesAssembledObject reports whether etag can be the tag of the object
// completed from this session's upload. The part count suffix must always
// match; the digest is compared once every part is acknowledged.
func (s *UploadSession) MatchesAssembledObject(etag string) bool {
	etag = strings.ToLower(NormalizeETag(etag))
	i := strings.LastIndexByte(etag, '-')
	if i < 0 || etag[i+1:] != strconv.Itoa(s.PartCount) {
		return false
	}
	if len(s.MissingParts()) > 0 {
		return true
	}
	expected, ok := s.AssembledETag()
	return !ok || etag == expected
}

// ValidatePartNumber checks that n addresses a part of this session
func (s *UploadSession) ValidatePartNumber(n int) error {
	if n < 1 || n > s.PartCount {
		return NewValidationError("part_number", fmt.Sprintf("must be between 1 and %d, got %d", s.PartCount, n))
	}
	return nil
}

// Transition mutates a session and reports whether it has to be persisted
type Transition func(s *UploadSession) (bool, error)

// Apply expires the session if due, then runs t. The returned bool is true
// when either step changed the session.
func (s *UploadSession) Apply(now time.Time, t Transition) (bool, error) {
	expired := false
	if s.IsExpired(now) {
		s.Status = UploadSessionStatusFailed
		expired = true
	}
	changed, err := t(s)
	if changed || expired {
		s.UpdatedAt = now
	}
	return changed || expired, err
}

// RecordPart stores the tag of part n. Recording the same tag twice is a no-op.
func RecordPart(n int, etag string) Transition {
	return func(s *UploadSession) (bool, error) {
		if s.Status.IsTerminal() {
			return false, NewTerminalStateError(s.ID, s.Status)
		}
		if err := s.ValidatePartNumber(n); err != nil {
			return false, err
		}
		tag := NormalizeETag(etag)
		if tag == "" {
			return false, NewValidationError("etag", "must not be empty")
		}
		if existing, ok := s.Parts[n]; ok {
			if existing == tag {
				return false, nil
			}
			return false, &ConflictError{PartNumber: n, Existing: existing, Received: tag}
		}
		if s.Parts == nil {
			s.Parts = make(map[int]string)
		}
		s.Parts[n] = tag
		if s.Status == UploadSessionStatusInitiated {
			s.Status = UploadSessionStatusInProgress
		}
		return true, nil
	}
}

// Finalize marks the session completed once every part is acknowledged
func Finalize() Transition {
	return func(s *UploadSession) (bool, error) {
		if s.Status.IsTerminal() {
			return false, NewTerminalStateError(s.ID, s.Status)
		}
		if missing := s.MissingParts(); len(missing) > 0 {
			return false, &IncompleteUploadError{MissingParts: missing}
		}
		s.Status = UploadSessionStatusCompleted
		return true, nil
	}
}

// Abort moves an open session to aborted. Aborting twice is a no-op.
func Abort() Transition {
	return func(s *UploadSession) (bool, error) {
		switch {
		case s.Status == UploadSessionStatusAborted:
			return false, nil
		case s.Status.IsTerminal():
			return false, NewTerminalStateError(s.ID, s.Status)
		}
		s.Status = UploadSessionStatusAborted
		return true, nil
	}
}

// Fail moves an open session to failed. Failing twice is a no-op.
func Fail() Transition {
	return func(s *UploadSession) (bool, error) {
		switch {
		case s.Status == UploadSessionStatusFailed:
			return false, nil
		case s.Status.IsTerminal():
			return false, NewTerminalStateError(s.ID, s.Status)
		}
		s.Status = UploadSessionStatusFailed
		return true, nil
	}
}

// InitiateUploadRequest holds the client input of InitiateUpload
type InitiateUploadRequest struct {
	StorageKey   string
	TotalSize    int64
	ContentType  string
	PartSizeHint int64
}

// InitiatedUpload is returned to the client once a session exists
type InitiatedUpload struct {
	SessionID uuid.UUID
	UploadID  string
	PartSize  int64
	PartCount int
	ExpiresAt time.Time
}

// PartUploadURL is a presigned target for one part
type PartUploadURL struct {
	PartNumber int
	Method     string
	URL        string
	ExpiresAt  time.Time
}

// SessionSummary is the client view of session progress
type SessionSummary struct {
	SessionID      uuid.UUID
	Status         UploadSessionStatus
	PartsCompleted int
	PartCount      int
	MissingParts   []int
}

// Summary builds the client view of s
func (s *UploadSession) Summary() *SessionSummary {
	return &SessionSummary{
		SessionID:      s.ID,
		Status:         s.Status,
		PartsCompleted: len(s.Parts),
		PartCount:      s.PartCount,
		MissingParts:   s.MissingParts(),
	}
}
