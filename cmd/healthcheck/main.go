package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/openbrgy/portal/internal/config"
	"github.com/openbrgy/portal/internal/database"
	"github.com/openbrgy/portal/internal/services"
	"github.com/openbrgy/portal/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	var blobs storage.BlobStore
	if cfg.BlobDriver == "minio" {
		blobs, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("Failed to connect to blob storage: %v", err)
		}
	} else {
		blobs = storage.NewGormStore(db)
	}

	// Perform health check
	result := services.HealthCheck(cfg, db, blobs)

	// Output result as JSON
	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal health check result: %v", err)
	}

	fmt.Println(string(output))

	// Exit with appropriate code
	if result.Status != "healthy" {
		os.Exit(1)
	}
	os.Exit(0)
}
