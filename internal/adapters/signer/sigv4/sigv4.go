// Package sigv4 builds AWS Signature Version 4 presigned URLs for S3-compatible object stores.
package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"ion-upload/internal/core/domain"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	Algorithm       = "AWS4-HMAC-SHA256"
	UnsignedPayload = "UNSIGNED-PAYLOAD"
	ServiceS3       = "s3"

	amzDateFormat   = "20060102T150405Z"
	shortDateFormat = "20060102"

	// MaxExpiry is the longest validity accepted by S3 for a presigned URL
	MaxExpiry = 7 * 24 * time.Hour
)

// Credentials is a static access key pair
type Credentials struct {
	AccessKey    string
	SecretKey    string
	SessionToken string
}

// Params fully describes one presigned request
type Params struct {
	Method      string
	Scheme      string
	Host        string
	Path        string
	Query       url.Values
	Region      string
	Service     string
	Credentials Credentials
	Time        time.Time
	Expires     time.Duration
}

// Presign returns the presigned URL for p. The result only depends on p.
func Presign(p Params) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}

	service := p.Service
	if service == "" {
		service = ServiceS3
	}
	t := p.Time.UTC()
	amzDate := t.Format(amzDateFormat)
	shortDate := t.Format(shortDateFormat)
	scope := strings.Join([]string{shortDate, p.Region, service, "aws4_request"}, "/")

	query := make(url.Values, len(p.Query)+6)
	for k, v := range p.Query {
		query[k] = append([]string(nil), v...)
	}
	query.Set("X-Amz-Algorithm", Algorithm)
	query.Set("X-Amz-Credential", p.Credentials.AccessKey+"/"+scope)
	query.Set("X-Amz-Date", amzDate)
	query.Set("X-Amz-Expires", strconv.FormatInt(int64(p.Expires/time.Second), 10))
	query.Set("X-Amz-SignedHeaders", "host")
	if p.Credentials.SessionToken != "" {
		query.Set("X-Amz-Security-Token", p.Credentials.SessionToken)
	}

	canonicalURI := canonicalPath(p.Path)
	canonicalQuery := canonicalQueryString(query)
	canonicalRequest := buildCanonicalRequest(p.Method, canonicalURI, canonicalQuery, p.Host)
	stringToSign := buildStringToSign(amzDate, scope, canonicalRequest)
	signingKey := deriveSigningKey(p.Credentials.SecretKey, shortDate, p.Region, service)
	signature := hmacSHA256Hex(signingKey, stringToSign)

	return fmt.Sprintf("%s://%s%s?%s&X-Amz-Signature=%s", p.Scheme, p.Host, canonicalURI, canonicalQuery, signature), nil
}

func (p Params) validate() error {
	switch {
	case p.Credentials.AccessKey == "":
		return domain.NewConfigurationError("access_key", "is required")
	case p.Credentials.SecretKey == "":
		return domain.NewConfigurationError("secret_key", "is required")
	case p.Region == "":
		return domain.NewConfigurationError("region", "is required")
	case p.Host == "" || p.Scheme == "":
		return domain.NewConfigurationError("endpoint", "is required")
	case p.Method == "":
		return domain.NewValidationError("method", "is required")
	case p.Expires < time.Second || p.Expires > MaxExpiry:
		return domain.NewValidationError("expires", fmt.Sprintf("must be between 1s and %s, got %s", MaxExpiry, p.Expires))
	case p.Time.IsZero():
		return domain.NewValidationError("time", "is required")
	}
	return nil
}

func buildCanonicalRequest(method, canonicalURI, canonicalQuery, host string) string {
	return strings.Join([]string{
		method,
		canonicalURI,
		canonicalQuery,
		"host:" + strings.TrimSpace(host) + "\n",
		"host",
		UnsignedPayload,
	}, "\n")
}

func buildStringToSign(amzDate, scope, canonicalRequest string) string {
	return strings.Join([]string{
		Algorithm,
		amzDate,
		scope,
		sha256Hex(canonicalRequest),
	}, "\n")
}

func deriveSigningKey(secret, shortDate, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secret), shortDate)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, "aws4_request")
}

// canonicalQueryString sorts by key then value and encodes per RFC 3986
func canonicalQueryString(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		values := append([]string(nil), q[k]...)
		sort.Strings(values)
		if len(values) == 0 {
			values = []string{""}
		}
		for _, v := range values {
			pairs = append(pairs, uriEncode(k, true)+"="+uriEncode(v, true))
		}
	}
	return strings.Join(pairs, "&")
}

func canonicalPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return uriEncode(p, false)
}

// uriEncode keeps unreserved characters; '/' is kept unless encodeSlash is set
func uriEncode(s string, encodeSlash bool) string {
	const hexUpper = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		case c == '/' && !encodeSlash:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hexUpper[c>>4])
			b.WriteByte(hexUpper[c&0x0f])
		}
	}
	return b.String()
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

func hmacSHA256Hex(key []byte, data string) string {
	return hex.EncodeToString(hmacSHA256(key, data))
}
