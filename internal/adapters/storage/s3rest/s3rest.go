// Package s3rest speaks the S3 multipart REST API directly, authenticating
// every call with a short-lived presigned URL.
package s3rest

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"ion-upload/internal/core/domain"
	"ion-upload/internal/core/port"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultContentType = "application/octet-stream"
	requestExpiry      = 5 * time.Minute
	maxErrorBody       = 64 << 10
)

// Adapter implements port.MultipartStorage over plain HTTP
type Adapter struct {
	signer     port.RequestSigner
	httpClient *http.Client
	now        func() time.Time
	logger     *slog.Logger
}

var _ port.MultipartStorage = (*Adapter)(nil)

// NewAdapter creates an Adapter. A nil httpClient uses a client with a 30s timeout.
func NewAdapter(signer port.RequestSigner, httpClient *http.Client, logger *slog.Logger) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Adapter{signer: signer, httpClient: httpClient, now: time.Now, logger: logger}
}

type initiateResult struct {
	XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	UploadID string   `xml:"UploadId"`
}

type completeRequest struct {
	XMLName xml.Name       `xml:"CompleteMultipartUpload"`
	Parts   []completePart `xml:"Part"`
}

type completePart struct {
	PartNumber int    `xml:"PartNumber"`
	ETag       string `xml:"ETag"`
}

type errorResponse struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	RequestID string   `xml:"RequestId"`
}

// CreateMultipartUpload starts a multipart upload and returns its id
func (a *Adapter) CreateMultipartUpload(ctx context.Context, storageKey string, contentType string) (string, error) {
	const op = "multipart.create"
	if contentType == "" {
		contentType = defaultContentType
	}

	query := url.Values{}
	query.Set("uploads", "")
	header := http.Header{}
	header.Set("Content-Type", contentType)

	body, err := a.do(ctx, op, http.MethodPost, storageKey, query, header, nil, http.StatusOK)
	if err != nil {
		return "", err
	}

	var result initiateResult
	if err := xml.Unmarshal(body, &result); err != nil {
		return "", &domain.StorageError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if result.UploadID == "" {
		return "", &domain.StorageError{Op: op, Err: errors.New("provider returned an empty upload id")}
	}
	return result.UploadID, nil
}

// CompleteMultipartUpload assembles the object from parts, which must be sorted
func (a *Adapter) CompleteMultipartUpload(ctx context.Context, storageKey string, uploadID string, parts []domain.CompletedPart) error {
	const op = "multipart.complete"

	req := completeRequest{Parts: make([]completePart, 0, len(parts))}
	for _, part := range parts {
		req.Parts = append(req.Parts, completePart{PartNumber: part.PartNumber, ETag: domain.NormalizeETag(part.ETag)})
	}
	payload, err := xml.Marshal(req)
	if err != nil {
		return &domain.StorageError{Op: op, Err: err}
	}

	query := url.Values{}
	query.Set("uploadId", uploadID)
	header := http.Header{}
	header.Set("Content-Type", "application/xml")

	body, err := a.do(ctx, op, http.MethodPost, storageKey, query, header, payload, http.StatusOK)
	if err != nil {
		return err
	}

	// S3 may report a failed completion inside a 200 response
	var failure errorResponse
	if xml.Unmarshal(body, &failure) == nil && failure.Code != "" {
		return &domain.StorageError{
			Op:         op,
			Code:       failure.Code,
			StatusCode: http.StatusOK,
			Retryable:  failure.Code == "InternalError" || failure.Code == "SlowDown",
			Err:        errors.New(failure.Message),
		}
	}

	a.logger.Info("multipart upload completed",
		slog.String("storageKey", storageKey),
		slog.String("uploadID", uploadID),
		slog.Int("parts", len(parts)))
	return nil
}

// AbortMultipartUpload discards the parts uploaded so far
func (a *Adapter) AbortMultipartUpload(ctx context.Context, storageKey string, uploadID string) error {
	const op = "multipart.abort"

	query := url.Values{}
	query.Set("uploadId", uploadID)

	if _, err := a.do(ctx, op, http.MethodDelete, storageKey, query, nil, nil, http.StatusNoContent); err != nil {
		return err
	}

	a.logger.Info("multipart upload aborted",
		slog.String("storageKey", storageKey),
		slog.String("uploadID", uploadID))
	return nil
}

func (a *Adapter) do(ctx context.Context, op, method, storageKey string, query url.Values, header http.Header, payload []byte, want int) ([]byte, error) {
	target, err := a.signer.PresignObject(method, storageKey, query, requestExpiry, a.now())
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &domain.StorageError{Op: op, Err: err}
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, &domain.StorageError{Op: op, Err: err}
		}
		return nil, &domain.StorageError{Op: op, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != want && resp.StatusCode != http.StatusOK {
		return nil, responseError(op, resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.StorageError{Op: op, StatusCode: resp.StatusCode, Retryable: true, Err: err}
	}
	return body, nil
}

func responseError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	se := &domain.StorageError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Retryable:  domain.RetryableStatus(resp.StatusCode),
	}
	var payload errorResponse
	if xml.Unmarshal(body, &payload) == nil && payload.Code != "" {
		se.Code = payload.Code
		se.Err = errors.New(payload.Message)
	} else {
		se.Err = errors.New("unexpected status " + strconv.Itoa(resp.StatusCode))
	}
	return se
}
