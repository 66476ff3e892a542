package sigv4

import (
	"ion-upload/internal/config"
	"ion-upload/internal/core/domain"
	"net/url"
	"strings"
	"time"
)

// Signer presigns object requests against one bucket
type Signer struct {
	scheme       string
	host         string
	basePath     string
	bucket       string
	region       string
	usePathStyle bool
	creds        Credentials
}

// NewSigner creates a Signer from the storage configuration
func NewSigner(cfg config.StorageConfig) (*Signer, error) {
	endpoint, err := cfg.EndpointURL()
	if err != nil {
		return nil, err
	}
	if cfg.Bucket == "" {
		return nil, domain.NewConfigurationError("bucket", "is required")
	}
	if cfg.Region == "" {
		return nil, domain.NewConfigurationError("region", "is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, domain.NewConfigurationError("credentials", "access key and secret key are required")
	}

	return &Signer{
		scheme:       endpoint.Scheme,
		host:         endpoint.Host,
		basePath:     strings.TrimSuffix(endpoint.Path, "/"),
		bucket:       cfg.Bucket,
		region:       cfg.Region,
		usePathStyle: cfg.UsePathStyle,
		creds: Credentials{
			AccessKey:    cfg.AccessKey,
			SecretKey:    cfg.SecretKey,
			SessionToken: cfg.SessionToken,
		},
	}, nil
}

// PresignObject presigns method on storageKey, valid for expires from at
func (s *Signer) PresignObject(method string, storageKey string, query url.Values, expires time.Duration, at time.Time) (string, error) {
	host, path := s.Locate(storageKey)
	return Presign(Params{
		Method:      method,
		Scheme:      s.scheme,
		Host:        host,
		Path:        path,
		Query:       query,
		Region:      s.region,
		Service:     ServiceS3,
		Credentials: s.creds,
		Time:        at,
		Expires:     expires,
	})
}

// Locate returns the host and path addressing storageKey
func (s *Signer) Locate(storageKey string) (string, string) {
	key := strings.TrimPrefix(storageKey, "/")
	if s.usePathStyle {
		return s.host, s.basePath + "/" + s.bucket + "/" + key
	}
	return s.bucket + "." + s.host, s.basePath + "/" + key
}
