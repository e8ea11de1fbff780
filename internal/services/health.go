package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/openbrgy/portal/internal/config"
	"github.com/openbrgy/portal/internal/storage"
	"github.com/openbrgy/portal/internal/utils"
	"gorm.io/gorm"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	BlobStore    string            `json:"blobStore"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

// HealthCheck performs a comprehensive health check of the service
func HealthCheck(cfg *config.Config, db *gorm.DB, blobs storage.BlobStore) HealthCheckResult {
	result := HealthCheckResult{
		Status:  "healthy",
		Details: make(map[string]string),
	}

	// Check database connectivity
	sqlDB, err := db.DB()
	if err != nil {
		result.Status = "unhealthy"
		result.Database = "error"
		result.Details["database_error"] = err.Error()
		result.ErrorMessage = fmt.Sprintf("Database connection error: %v", err)
		log.Printf("Health check failed - database connection: %v", err)
	} else {
		if err := sqlDB.Ping(); err != nil {
			result.Status = "unhealthy"
			result.Database = "unreachable"
			result.Details["database_ping_error"] = err.Error()
			result.ErrorMessage = fmt.Sprintf("Database ping failed: %v", err)
			log.Printf("Health check failed - database ping: %v", err)
		} else {
			result.Database = "ok"
			result.Details["database_type"] = cfg.DBType
			result.Details["database_name"] = cfg.DBDatabase
		}
	}

	// Check blob store reachability. A missing probe object is fine; only
	// transport-level failures mark the store unhealthy.
	if cfg.BlobDriver == "minio" {
		if err := utils.PingBlobEndpoint(cfg.MinioEndpoint); err != nil {
			result.Details["minio_ping_error"] = err.Error()
			log.Printf("Health check warning - MinIO ping: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := blobs.Stat(ctx, "healthz-probe"); err != nil && !errors.Is(err, storage.ErrNotFound) {
		result.Status = "unhealthy"
		result.BlobStore = "unreachable"
		result.Details["blob_store_error"] = err.Error()
		if result.ErrorMessage == "" {
			result.ErrorMessage = fmt.Sprintf("Blob store check failed: %v", err)
		} else {
			result.ErrorMessage += fmt.Sprintf("; blob store check failed: %v", err)
		}
		log.Printf("Health check failed - blob store: %v", err)
	} else {
		result.BlobStore = "ok"
		result.Details["blob_driver"] = cfg.BlobDriver
	}

	if result.Status == "healthy" {
		log.Println("Health check passed - all systems operational")
	}

	return result
}
