package services_test

import (
	"testing"

	"github.com/openbrgy/portal/internal/services"
	"github.com/openbrgy/portal/internal/storage"
)

func TestHealthCheck(t *testing.T) {
	db := setupTestDB(t)
	blobs := storage.NewGormStore(db)

	result := services.HealthCheck(testConfig(), db, blobs)
	if result.Status != "healthy" {
		t.Errorf("Expected healthy, got %s (%s)", result.Status, result.ErrorMessage)
	}
	if result.Database != "ok" {
		t.Errorf("Expected database ok, got %s", result.Database)
	}
	// A missing probe object must not mark the blob store unhealthy.
	if result.BlobStore != "ok" {
		t.Errorf("Expected blob store ok, got %s", result.BlobStore)
	}
}
