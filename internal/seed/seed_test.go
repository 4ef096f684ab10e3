package seed

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/eshop/internal/database"
	"github.com/example/eshop/internal/models"
)

func TestRunSeedsConsistentCatalog(t *testing.T) {
	db, err := database.Open("file:"+filepath.Join(t.TempDir(), "seed.db")+"?_pragma=busy_timeout(5000)", "silent")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	ctx := context.Background()
	opts := Options{Categories: 2, Items: 5, AdminEmail: "admin@example.com", AdminPassword: "changeme123"}
	require.NoError(t, Run(ctx, db, opts))

	var admin models.User
	require.NoError(t, db.First(&admin, "email = ?", "admin@example.com").Error)
	assert.True(t, admin.IsStaff)

	var items []models.Item
	require.NoError(t, db.Preload("Properties").Find(&items).Error)
	require.Len(t, items, 5)
	for _, item := range items {
		assert.Positive(t, item.Quantity, item.Name)
		assert.Len(t, item.Properties, len(demoFilters), item.Name)
		for _, property := range item.Properties {
			assert.NotNil(t, property.ValueID)
		}
	}

	// A second run reuses the filters and the admin account.
	require.NoError(t, Run(ctx, db, opts))

	var filters, users int64
	require.NoError(t, db.Model(&models.Filter{}).Count(&filters).Error)
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Equal(t, int64(len(demoFilters)), filters)
	assert.Equal(t, int64(1), users)
}
