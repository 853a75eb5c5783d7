package consents

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/consentlab/consent-backend/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupConsentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	purposesTable := `
CREATE TABLE IF NOT EXISTS purposes (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  description TEXT NOT NULL,
  created_at DATETIME
);`
	consentsTable := `
CREATE TABLE IF NOT EXISTS consents (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id TEXT NOT NULL,
  purpose_id INTEGER NOT NULL,
  status INTEGER NOT NULL,
  ip_address TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT uniq_consents_user_purpose UNIQUE (user_id, purpose_id)
);`

	require.NoError(t, db.Exec(purposesTable).Error)
	require.NoError(t, db.Exec(consentsTable).Error)

	return db
}

func seedPurpose(t *testing.T, db *gorm.DB, name string) *models.Purpose {
	t.Helper()
	purpose := &models.Purpose{Name: name, Description: name + " description"}
	require.NoError(t, db.Create(purpose).Error)
	return purpose
}

func TestRepositoryUpsertCreatesThenUpdates(t *testing.T) {
	db := setupConsentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	purpose := seedPurpose(t, db, "Marketing Communications")

	first, err := repo.Upsert(ctx, &models.Consent{
		UserID:    "user-1",
		PurposeID: purpose.ID,
		Status:    true,
		IPAddress: "203.0.113.9",
	})
	require.NoError(t, err)
	assert.True(t, first.Status)
	assert.Equal(t, "203.0.113.9", first.IPAddress)
	require.NotNil(t, first.Purpose)
	assert.Equal(t, purpose.Name, first.Purpose.Name)

	second, err := repo.Upsert(ctx, &models.Consent{
		UserID:    "user-1",
		PurposeID: purpose.ID,
		Status:    false,
		IPAddress: "198.51.100.4",
	})
	require.NoError(t, err)

	// same pair stays a single row with refreshed state
	assert.Equal(t, first.ID, second.ID)
	assert.False(t, second.Status)
	assert.Equal(t, "198.51.100.4", second.IPAddress)

	var count int64
	require.NoError(t, db.Model(&models.Consent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRepositoryListFiltersByPurpose(t *testing.T) {
	db := setupConsentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	marketing := seedPurpose(t, db, "Marketing Communications")
	analytics := seedPurpose(t, db, "Analytics")

	_, err := repo.Upsert(ctx, &models.Consent{UserID: "user-1", PurposeID: marketing.ID, Status: true})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, &models.Consent{UserID: "user-1", PurposeID: analytics.ID, Status: false})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, &models.Consent{UserID: "user-2", PurposeID: marketing.ID, Status: true})
	require.NoError(t, err)

	all, err := repo.List(ctx, "user-1", nil)
	require.NoError(t, err)
	require.Len(t, all, 2)

	filtered, err := repo.List(ctx, "user-1", &analytics.ID)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, analytics.ID, filtered[0].PurposeID)
	assert.False(t, filtered[0].Status)
}

func TestRepositoryUpsertBatchAllOrNothing(t *testing.T) {
	db := setupConsentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	marketing := seedPurpose(t, db, "Marketing Communications")
	analytics := seedPurpose(t, db, "Analytics")

	applied, err := repo.UpsertBatch(ctx, []*models.Consent{
		{UserID: "user-1", PurposeID: marketing.ID, Status: true, IPAddress: "203.0.113.9"},
		{UserID: "user-1", PurposeID: analytics.ID, Status: false, IPAddress: "203.0.113.9"},
	})
	require.NoError(t, err)
	require.Len(t, applied, 2)

	var count int64
	require.NoError(t, db.Model(&models.Consent{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestRepositoryDelete(t *testing.T) {
	db := setupConsentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	purpose := seedPurpose(t, db, "Personalization")
	row, err := repo.Upsert(ctx, &models.Consent{UserID: "user-1", PurposeID: purpose.ID, Status: true})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, row.ID))

	err = repo.Delete(ctx, row.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.FindByID(ctx, row.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryDeleteByUser(t *testing.T) {
	db := setupConsentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	marketing := seedPurpose(t, db, "Marketing Communications")
	analytics := seedPurpose(t, db, "Analytics")

	_, err := repo.Upsert(ctx, &models.Consent{UserID: "user-1", PurposeID: marketing.ID, Status: true})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, &models.Consent{UserID: "user-1", PurposeID: analytics.ID, Status: true})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, &models.Consent{UserID: "user-2", PurposeID: marketing.ID, Status: true})
	require.NoError(t, err)

	count, err := repo.DeleteByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// deleting again is a no-op, not an error
	count, err = repo.DeleteByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	remaining, err := repo.List(ctx, "user-2", nil)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestRepositoryCountAndStats(t *testing.T) {
	db := setupConsentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	marketing := seedPurpose(t, db, "Marketing Communications")
	analytics := seedPurpose(t, db, "Analytics")

	_, err := repo.Upsert(ctx, &models.Consent{UserID: "user-1", PurposeID: marketing.ID, Status: true})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, &models.Consent{UserID: "user-2", PurposeID: marketing.ID, Status: false})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, &models.Consent{UserID: "user-1", PurposeID: analytics.ID, Status: true})
	require.NoError(t, err)

	total, err := repo.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	granted := true
	active, err := repo.Count(ctx, &granted)
	require.NoError(t, err)
	assert.Equal(t, int64(2), active)

	stats, err := repo.StatsByPurpose(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "Marketing Communications", stats[0].PurposeName)
	assert.Equal(t, int64(2), stats[0].Total)
	assert.Equal(t, int64(1), stats[0].Active)

	assert.Equal(t, "Analytics", stats[1].PurposeName)
	assert.Equal(t, int64(1), stats[1].Total)
	assert.Equal(t, int64(1), stats[1].Active)
}

func TestRepositoryListByUserNewestFirst(t *testing.T) {
	db := setupConsentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	purpose := seedPurpose(t, db, "Analytics")

	older := &models.Consent{
		UserID:    "user-1",
		PurposeID: purpose.ID,
		Status:    true,
		CreatedAt: time.Now().Add(-2 * time.Hour),
		UpdatedAt: time.Now().Add(-2 * time.Hour),
	}
	require.NoError(t, db.Create(older).Error)

	second := seedPurpose(t, db, "Personalization")
	newer := &models.Consent{
		UserID:    "user-1",
		PurposeID: second.ID,
		Status:    false,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, db.Create(newer).Error)

	rows, err := repo.ListByUserNewestFirst(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, newer.ID, rows[0].ID)
	assert.Equal(t, older.ID, rows[1].ID)
}

func TestRepositoryFindPairs(t *testing.T) {
	db := setupConsentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	marketing := seedPurpose(t, db, "Marketing Communications")
	analytics := seedPurpose(t, db, "Analytics")

	_, err := repo.Upsert(ctx, &models.Consent{UserID: "user-1", PurposeID: marketing.ID, Status: true})
	require.NoError(t, err)

	rows, err := repo.FindPairs(ctx, "user-1", []int64{marketing.ID, analytics.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, marketing.ID, rows[0].PurposeID)

	rows, err = repo.FindPairs(ctx, "user-1", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
