package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/example/buildco/backend/internal/models"
)

// Integration test (requires running Postgres)
func TestMaintenanceRepository_Integration(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.MaintenanceRequest{}, &models.StatusHistoryEntry{}, &models.MaintenanceImage{}))

	repo := NewMaintenanceRepository(db)
	ctx := context.Background()
	ref := fmt.Sprintf("MR-%d", time.Now().UnixNano())

	req := newRequest(ref)
	require.NoError(t, repo.CreateRequest(ctx, req))
	t.Cleanup(func() { _ = repo.DeleteRequest(ctx, req.ID) })

	assert.ErrorIs(t, repo.CreateRequest(ctx, newRequest(ref)), ErrDuplicateReference)

	updated, err := repo.PatchRequest(ctx, req.ID, func(r *models.MaintenanceRequest) (map[string]any, *models.StatusHistoryEntry, error) {
		entry := &models.StatusHistoryEntry{OldStatus: r.Status, NewStatus: models.StatusInProgress, ChangedBy: "it"}
		r.Status = models.StatusInProgress
		return map[string]any{"status": r.Status}, entry, nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Equal(t, ref, updated.ReferenceNumber)

	// A patch without status leaves the status column alone.
	_, err = repo.PatchRequest(ctx, req.ID, func(r *models.MaintenanceRequest) (map[string]any, *models.StatusHistoryEntry, error) {
		return map[string]any{"admin_notes": "parts ordered"}, nil, nil
	})
	require.NoError(t, err)

	got, err := repo.FindByReference(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
	require.Len(t, got.History, 1)
	assert.Equal(t, got.Status, got.CurrentStatus())

	img := &models.MaintenanceImage{RequestID: req.ID, ImageURL: "/uploads/x.png"}
	require.NoError(t, repo.CreateImage(ctx, img))
	n, err := repo.CountImages(ctx, req.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, repo.DeleteRequest(ctx, req.ID))
	_, err = repo.FindImage(ctx, img.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
