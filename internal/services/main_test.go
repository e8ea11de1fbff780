package services_test

import (
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/openbrgy/portal/internal/config"
	"github.com/openbrgy/portal/internal/database"
	"github.com/openbrgy/portal/internal/models"
	"github.com/openbrgy/portal/internal/services"
	"github.com/openbrgy/portal/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// errCode extracts the HTTP status of a CustomError, or 0 for anything else.
func errCode(err error) int {
	var cerr *types.CustomError
	if errors.As(err, &cerr) {
		return cerr.Code
	}
	return 0
}

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:  "test-secret",
		JWTTTL:     time.Hour,
		GuestTTL:   24 * time.Hour,
		BlobDriver: "database",
		DBType:     "sqlite",
		DBDatabase: ":memory:",
	}
}

func seedUser(t *testing.T, db *gorm.DB, username, role string) *models.User {
	t.Helper()
	user := models.User{
		Username: username,
		Role:     role,
		Active:   true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to seed user %s: %v", username, err)
	}
	return &user
}

func seedRequest(t *testing.T, db *gorm.DB, requester *models.User, docType string) *models.DocumentRequest {
	t.Helper()
	req, err := services.CreateRequest(db, nil, requester, services.CreateRequestInput{
		Type:    docType,
		Purpose: "employment",
	})
	if err != nil {
		t.Fatalf("Failed to seed request: %v", err)
	}
	return req
}
