package profiles

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/petermazzocco/go-order-wizard/models"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.UserProfile{}))

	store := NewStore(db)
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return store, db
}

func strPtr(s string) *string { return &s }

func TestLoadMissingProfileIsNotAnError(t *testing.T) {
	store, _ := newTestStore(t)

	profile, found, err := store.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, profile)
}

func TestSaveCreatesThenMergesSuppliedFields(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.Save(ctx, "user-1", Fields{FullName: strPtr("Ada"), PhoneNumber: strPtr("555-0100")})
	require.NoError(t, err)
	assert.Equal(t, "Ada", *created.FullName)
	assert.Nil(t, created.Address)

	updated, err := store.Save(ctx, "user-1", Fields{Address: strPtr("1 Loop St")})
	require.NoError(t, err)
	assert.Equal(t, "Ada", *updated.FullName)
	assert.Equal(t, "555-0100", *updated.PhoneNumber)
	assert.Equal(t, "1 Loop St", *updated.Address)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	loaded, found, err := store.Load(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1 Loop St", *loaded.Address)
}

func TestSaveIsIdempotent(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	fields := FieldsFrom("Ada", "555-0100", "1 Loop St", "Ring twice")

	first, err := store.Save(ctx, "user-1", fields)
	require.NoError(t, err)
	second, err := store.Save(ctx, "user-1", fields)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.UserProfile{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	assert.Equal(t, first.FullName, second.FullName)
	assert.Equal(t, first.PhoneNumber, second.PhoneNumber)
	assert.Equal(t, first.Address, second.Address)
	assert.Equal(t, first.DeliveryInstructions, second.DeliveryInstructions)
}

func TestSaveRequiresUser(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Save(context.Background(), "", Fields{})
	require.ErrorIs(t, err, ErrMissingUser)
}

func TestFieldsFromOmitsBlanks(t *testing.T) {
	f := FieldsFrom("  Ada ", "", "   ", "Leave at door")
	require.NotNil(t, f.FullName)
	assert.Equal(t, "Ada", *f.FullName)
	assert.Nil(t, f.PhoneNumber)
	assert.Nil(t, f.Address)
	assert.Equal(t, "Leave at door", *f.DeliveryInstructions)
}
