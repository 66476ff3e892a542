package config_test

import (
	"ion-upload/internal/config"
	"ion-upload/internal/core/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("STORAGE_ENDPOINT", "http://localhost:9000")
	t.Setenv("STORAGE_BUCKET", "uploads")
	t.Setenv("STORAGE_ACCESS_KEY", "minioadmin")
	t.Setenv("STORAGE_SECRET_KEY", "minioadmin")
	t.Setenv("SESSION_STORE_DRIVER", "memory")
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		// Arrange
		setRequiredEnv(t)

		// Act
		cfg, err := config.Load()

		// Assert
		require.NoError(t, err)
		assert.Equal(t, config.StorageDriverMinio, cfg.Storage.Driver)
		assert.Equal(t, "us-east-1", cfg.Storage.Region)
		assert.Equal(t, int64(10*1024*1024), cfg.Upload.DefaultPartSize)
		assert.Equal(t, int64(5*1024*1024), cfg.Upload.MinPartSize)
		assert.Equal(t, 10000, cfg.Upload.MaxPartCount)
		assert.Equal(t, 3, cfg.Retry.MaxAttempts)
		assert.False(t, cfg.IsProd())
	})

	t.Run("missing credentials", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("STORAGE_ACCESS_KEY", "")

		_, err := config.Load()

		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("endpoint without scheme", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("STORAGE_ENDPOINT", "localhost:9000")

		_, err := config.Load()

		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("postgres store needs a database", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("SESSION_STORE_DRIVER", "postgres")

		_, err := config.Load()

		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("unknown storage driver", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("STORAGE_DRIVER", "ftp")

		_, err := config.Load()

		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("default part size outside bounds", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("UPLOAD_DEFAULT_PART_SIZE", "1024")

		_, err := config.Load()

		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})
}
