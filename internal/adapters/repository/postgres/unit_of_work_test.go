package postgres_test

import (
	"context"
	"ion-upload/internal/adapters/repository/postgres"
	"ion-upload/internal/core/domain"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionRow() *domain.UploadSession {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.UploadSession{
		ID:          uuid.New(),
		StorageKey:  "raw/uow.mp4",
		ContentType: "video/mp4",
		TotalSize:   25,
		PartSize:    10,
		PartCount:   3,
		Status:      domain.UploadSessionStatusInitiated,
		UploadID:    "upload-uow",
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	}
}

func TestSqlUnitOfWork_Execute(t *testing.T) {

	//Arrange
	dbConnection, cleanup, truncate := postgres.NewTestDB(t)
	defer cleanup()

	ctx := context.Background()
	uow := postgres.NewUnitOfWork(dbConnection)
	rows := postgres.NewSessionRows(dbConnection)

	t.Run("Should commit when no error", func(t *testing.T) {
		defer truncate()
		session := sessionRow()

		//act
		err := uow.Execute(ctx, func(u *postgres.UnitOfWork) error {
			if err := u.Sessions().Insert(ctx, session); err != nil {
				return err
			}
			return u.Sessions().InsertPart(ctx, session.ID, 1, "etag-1")
		})

		//assert
		require.NoError(t, err)
		found, err := rows.FindByID(ctx, session.ID, false)
		require.NoError(t, err)
		assert.Equal(t, map[int]string{1: "etag-1"}, found.Parts)
	})

	t.Run("Should rollback when error occurs", func(t *testing.T) {
		defer truncate()
		session := sessionRow()

		//act
		err := uow.Execute(ctx, func(u *postgres.UnitOfWork) error {
			_ = u.Sessions().Insert(ctx, session)
			return assert.AnError
		})

		//assert
		require.ErrorIs(t, err, assert.AnError)
		_, err = rows.FindByID(ctx, session.ID, false)
		require.ErrorIs(t, err, domain.ErrSessionNotFound)
	})
}
