package config

import (
	"fmt"
	"ion-upload/internal/core/domain"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	StorageDriverMinio  = "minio"
	StorageDriverS3     = "s3"
	StorageDriverS3REST = "s3rest"

	SessionStoreMemory   = "memory"
	SessionStorePostgres = "postgres"
	SessionStoreRedis    = "redis"
)

type Config struct {
	Env       Env
	Server    ServerConfig
	Storage   StorageConfig
	Retry     RetryConfig
	Upload    UploadConfig
	Session   SessionStoreConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	NATS      NATSConfig
	Telemetry TelemetryConfig
}

type Env struct {
	Env string `envconfig:"ENV" default:"DEV"`
}

type ServerConfig struct {
	Host string `envconfig:"SERVER_HOST" default:"localhost"`
	Port string `envconfig:"SERVER_PORT" default:"8080"`
}

type StorageConfig struct {
	Driver       string `envconfig:"STORAGE_DRIVER" default:"minio"`
	Endpoint     string `envconfig:"STORAGE_ENDPOINT" required:"true"`
	Region       string `envconfig:"STORAGE_REGION" default:"us-east-1"`
	Bucket       string `envconfig:"STORAGE_BUCKET" required:"true"`
	AccessKey    string `envconfig:"STORAGE_ACCESS_KEY" required:"true"`
	SecretKey    string `envconfig:"STORAGE_SECRET_KEY" required:"true"`
	SessionToken string `envconfig:"STORAGE_SESSION_TOKEN"`
	UsePathStyle bool   `envconfig:"STORAGE_USE_PATH_STYLE" default:"true"`
	CreateBucket bool   `envconfig:"STORAGE_CREATE_BUCKET" default:"false"`
}

type RetryConfig struct {
	MaxAttempts     int           `envconfig:"STORAGE_RETRY_MAX_ATTEMPTS" default:"3"`
	InitialInterval time.Duration `envconfig:"STORAGE_RETRY_INITIAL_INTERVAL" default:"200ms"`
	MaxInterval     time.Duration `envconfig:"STORAGE_RETRY_MAX_INTERVAL" default:"2s"`
}

type UploadConfig struct {
	DefaultPartSize int64         `envconfig:"UPLOAD_DEFAULT_PART_SIZE" default:"10485760"` // 10MiB
	MinPartSize     int64         `envconfig:"UPLOAD_MIN_PART_SIZE" default:"5242880"`      // 5MiB
	MaxPartSize     int64         `envconfig:"UPLOAD_MAX_PART_SIZE" default:"5368709120"`   // 5GiB
	MaxPartCount    int           `envconfig:"UPLOAD_MAX_PART_COUNT" default:"10000"`
	MaxTotalSize    int64         `envconfig:"UPLOAD_MAX_TOTAL_SIZE" default:"5497558138880"` // 5TiB
	SessionTTL      time.Duration `envconfig:"UPLOAD_SESSION_TTL" default:"24h"`
	PartURLExpiry   time.Duration `envconfig:"UPLOAD_PART_URL_EXPIRY" default:"1h"`
	SweepEvery      time.Duration `envconfig:"UPLOAD_SWEEP_EVERY" default:"15m"`
}

type SessionStoreConfig struct {
	Driver string `envconfig:"SESSION_STORE_DRIVER" default:"postgres"`
}

type DatabaseConfig struct {
	Host           string        `envconfig:"DB_HOST"`
	Port           int           `envconfig:"DB_PORT" default:"5432"`
	User           string        `envconfig:"DB_USER"`
	Password       string        `envconfig:"DB_PASSWORD"`
	Name           string        `envconfig:"DB_NAME"`
	SSLMode        string        `envconfig:"DB_SSLMODE" default:"disable"`
	MaxOpenCons    int           `envconfig:"DB_MAX_OPEN_CONS" default:"25"`
	MaxIdleCons    int           `envconfig:"DB_MAX_IDLE_CONS" default:"5"`
	ConMaxLifeTime time.Duration `envconfig:"DB_CONMAX_LIFE_TIME" default:"5m"`
}

type RedisConfig struct {
	Addr      string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password  string `envconfig:"REDIS_PASSWORD"`
	DB        int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"ion-upload"`
}

type NATSConfig struct {
	URL           string `envconfig:"NATS_URL"`
	StreamName    string `envconfig:"NATS_STREAM_NAME" default:"UPLOADS"`
	EventsStream  string `envconfig:"NATS_EVENTS_STREAM" default:"UPLOAD_EVENTS"`
	EventsSubject string `envconfig:"NATS_EVENTS_SUBJECT" default:"uploads.events"`
	ConsumerName  string `envconfig:"NATS_CONSUMER_NAME" default:"upload-reconciler"`
	Subject       string `envconfig:"NATS_SUBJECT" default:"minio.bucket.events"`
	DeliverGroup  string `envconfig:"NATS_DELIVER_GROUP"`
}

type TelemetryConfig struct {
	TracingEnabled bool    `envconfig:"TRACING_ENABLED" default:"false"`
	Endpoint       string  `envconfig:"TRACING_ENDPOINT"`
	Protocol       string  `envconfig:"TRACING_PROTOCOL" default:"grpc"`
	SampleRatio    float64 `envconfig:"TRACING_SAMPLE_RATIO" default:"1"`
	ServiceName    string  `envconfig:"TRACING_SERVICE_NAME" default:"ion-upload"`
}

// Load reads the configuration from the environment and validates it
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsProd reports whether the service runs in production
func (c *Config) IsProd() bool {
	return strings.EqualFold(c.Env.Env, "prod")
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Upload.Validate(); err != nil {
		return err
	}
	if c.Retry.MaxAttempts < 1 {
		return domain.NewConfigurationError("STORAGE_RETRY_MAX_ATTEMPTS", "must be at least 1")
	}

	switch c.Session.Driver {
	case SessionStoreMemory:
	case SessionStorePostgres:
		if c.Database.Host == "" || c.Database.User == "" || c.Database.Name == "" {
			return domain.NewConfigurationError("DB_HOST/DB_USER/DB_NAME", "are required by the postgres session store")
		}
	case SessionStoreRedis:
		if c.Redis.Addr == "" {
			return domain.NewConfigurationError("REDIS_ADDR", "is required by the redis session store")
		}
	default:
		return domain.NewConfigurationError("SESSION_STORE_DRIVER", fmt.Sprintf("unknown driver %q", c.Session.Driver))
	}
	return nil
}

// Validate checks that credentials and the endpoint are usable
func (s StorageConfig) Validate() error {
	switch s.Driver {
	case StorageDriverMinio, StorageDriverS3, StorageDriverS3REST:
	default:
		return domain.NewConfigurationError("STORAGE_DRIVER", fmt.Sprintf("unknown driver %q", s.Driver))
	}
	if _, err := s.EndpointURL(); err != nil {
		return err
	}
	if s.Region == "" {
		return domain.NewConfigurationError("STORAGE_REGION", "is required")
	}
	if s.AccessKey == "" || s.SecretKey == "" {
		return domain.NewConfigurationError("STORAGE_ACCESS_KEY/STORAGE_SECRET_KEY", "are required")
	}
	return nil
}

// EndpointURL parses the storage endpoint, which must carry a scheme and a host
func (s StorageConfig) EndpointURL() (*url.URL, error) {
	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return nil, domain.NewConfigurationError("STORAGE_ENDPOINT", err.Error())
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domain.NewConfigurationError("STORAGE_ENDPOINT", fmt.Sprintf("must be an http(s) URL, got %q", s.Endpoint))
	}
	return u, nil
}

// Validate checks part size bounds and durations
func (u UploadConfig) Validate() error {
	if u.MinPartSize <= 0 || u.MaxPartSize < u.MinPartSize {
		return domain.NewConfigurationError("UPLOAD_MIN_PART_SIZE/UPLOAD_MAX_PART_SIZE", "must satisfy 0 < min <= max")
	}
	if u.DefaultPartSize < u.MinPartSize || u.DefaultPartSize > u.MaxPartSize {
		return domain.NewConfigurationError("UPLOAD_DEFAULT_PART_SIZE", "must be within the part size bounds")
	}
	if u.MaxPartCount < 1 {
		return domain.NewConfigurationError("UPLOAD_MAX_PART_COUNT", "must be positive")
	}
	if u.MaxTotalSize <= 0 {
		return domain.NewConfigurationError("UPLOAD_MAX_TOTAL_SIZE", "must be positive")
	}
	if u.SessionTTL <= 0 || u.PartURLExpiry <= 0 || u.SweepEvery <= 0 {
		return domain.NewConfigurationError("UPLOAD_SESSION_TTL/UPLOAD_PART_URL_EXPIRY/UPLOAD_SWEEP_EVERY", "must be positive")
	}
	return nil
}
