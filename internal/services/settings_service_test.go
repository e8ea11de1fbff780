package services_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/openbrgy/portal/internal/models"
	"github.com/openbrgy/portal/internal/services"
	"github.com/openbrgy/portal/internal/storage"
)

func TestPutSettingUpsert(t *testing.T) {
	db := setupTestDB(t)

	if _, err := services.PutSetting(db, "office_hours", json.RawMessage(`"8am-5pm"`), true, "admin-id"); err != nil {
		t.Fatalf("PutSetting failed: %v", err)
	}
	// Second write under the same key replaces, never duplicates.
	if _, err := services.PutSetting(db, "office_hours", json.RawMessage(`"7am-4pm"`), true, "admin-id"); err != nil {
		t.Fatalf("PutSetting upsert failed: %v", err)
	}

	var count int64
	if err := db.Model(&models.SystemSetting{}).Count(&count).Error; err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 setting row, got %d", count)
	}

	settings, err := services.GetSettings(db, false)
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if string(settings["office_hours"]) != `"7am-4pm"` {
		t.Errorf("Expected updated value, got %s", settings["office_hours"])
	}
}

func TestGetSettingsPublicFilter(t *testing.T) {
	db := setupTestDB(t)
	services.PutSetting(db, "barangay_name", json.RawMessage(`"San Isidro"`), true, "admin-id")
	services.PutSetting(db, "smtp_alert_address", json.RawMessage(`"ops@example.com"`), false, "admin-id")

	public, err := services.GetSettings(db, true)
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if _, ok := public["barangay_name"]; !ok {
		t.Error("Expected public setting in public view")
	}
	if _, ok := public["smtp_alert_address"]; ok {
		t.Error("Private setting leaked into public view")
	}

	all, err := services.GetSettings(db, false)
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 settings in admin view, got %d", len(all))
	}
}

func TestPutSettingRejectsInvalidJSON(t *testing.T) {
	db := setupTestDB(t)
	_, err := services.PutSetting(db, "broken", json.RawMessage(`{not json`), false, "admin-id")
	if errCode(err) != 400 {
		t.Errorf("Expected 400 for invalid JSON, got %v", err)
	}
}

func TestOfficialsRoster(t *testing.T) {
	db := setupTestDB(t)

	captain, err := services.CreateOfficial(db, services.OfficialInput{
		Name: "Juan Dela Cruz", Position: "Barangay Captain", Ordering: 1,
	})
	if err != nil {
		t.Fatalf("CreateOfficial failed: %v", err)
	}
	if _, err := services.CreateOfficial(db, services.OfficialInput{
		Name: "Ana Reyes", Position: "Kagawad", Ordering: 2,
	}); err != nil {
		t.Fatalf("CreateOfficial failed: %v", err)
	}

	// Deactivate the captain; the public roster hides them.
	inactive := false
	if _, err := services.UpdateOfficial(db, captain.ID, services.OfficialInput{Ordering: 1, Active: &inactive}); err != nil {
		t.Fatalf("UpdateOfficial failed: %v", err)
	}

	public, err := services.ListOfficials(db, false)
	if err != nil {
		t.Fatalf("ListOfficials failed: %v", err)
	}
	if len(public) != 1 || public[0].Name != "Ana Reyes" {
		t.Errorf("Expected only the active official publicly, got %+v", public)
	}
	admin, err := services.ListOfficials(db, true)
	if err != nil {
		t.Fatalf("ListOfficials failed: %v", err)
	}
	if len(admin) != 2 {
		t.Errorf("Expected full roster for admin, got %d", len(admin))
	}

	if err := services.DeleteOfficial(db, captain.ID); err != nil {
		t.Fatalf("DeleteOfficial failed: %v", err)
	}
	if err := services.DeleteOfficial(db, captain.ID); errCode(err) != 404 {
		t.Errorf("Expected 404 deleting twice, got %v", err)
	}
}

func TestSetOfficialPhoto(t *testing.T) {
	db := setupTestDB(t)
	blobs := storage.NewGormStore(db)
	official, err := services.CreateOfficial(db, services.OfficialInput{
		Name: "Juan Dela Cruz", Position: "Barangay Captain",
	})
	if err != nil {
		t.Fatalf("CreateOfficial failed: %v", err)
	}

	photo := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	if err := services.SetOfficialPhoto(context.Background(), db, blobs, official.ID, photo, "image/png"); err != nil {
		t.Fatalf("SetOfficialPhoto failed: %v", err)
	}

	var fresh models.Official
	if err := db.First(&fresh, "id = ?", official.ID).Error; err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if fresh.PhotoKey != "officials/"+official.ID {
		t.Errorf("Unexpected photo key %q", fresh.PhotoKey)
	}
	info, err := blobs.Stat(context.Background(), fresh.PhotoKey)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size != int64(len(photo)) {
		t.Errorf("Expected %d bytes stored, got %d", len(photo), info.Size)
	}
}

func TestVerifyTransactionCode(t *testing.T) {
	db := setupTestDB(t)
	resident := seedUser(t, db, "maria", models.RoleResident)
	req := seedRequest(t, db, resident, "barangay_clearance")
	if _, err := services.TransitionStatus(db, nil, nil, req.ID, models.StatusApproved, ""); err != nil {
		t.Fatalf("Approval failed: %v", err)
	}
	code := "2026-TESTAB-abc123"
	if err := db.Model(req).Update("transaction_code", code).Error; err != nil {
		t.Fatalf("Failed to set code: %v", err)
	}

	result, err := services.VerifyTransactionCode(db, code, "HR Officer", "hr@example.com")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !result.Verified {
		t.Fatal("Expected a verified result")
	}
	if result.DocumentType != "barangay_clearance" || result.DocumentNumber == "" {
		t.Errorf("Expected document details, got %+v", result)
	}
	if result.Expired {
		t.Error("Freshly approved document must not read as expired")
	}

	miss, err := services.VerifyTransactionCode(db, "2026-NOSUCH-000000", "", "")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if miss.Verified {
		t.Error("Unknown code must not verify")
	}

	// Every lookup leaves an audit row, hit or miss.
	var hits, misses int64
	db.Model(&models.VerificationRequest{}).Where("result = ?", services.VerifyResultVerified).Count(&hits)
	db.Model(&models.VerificationRequest{}).Where("result = ?", services.VerifyResultNotFound).Count(&misses)
	if hits != 1 || misses != 1 {
		t.Errorf("Expected one verified and one not_found audit row, got %d/%d", hits, misses)
	}
}

func TestVerifyExpiredDocument(t *testing.T) {
	db := setupTestDB(t)
	resident := seedUser(t, db, "maria", models.RoleResident)
	req := seedRequest(t, db, resident, "barangay_clearance")
	code := "2026-OLDOLD-abc123"
	past := time.Now().Add(-24 * time.Hour)
	if err := db.Model(req).Updates(map[string]any{
		"status":           models.StatusApproved,
		"transaction_code": code,
		"valid_until":      past,
	}).Error; err != nil {
		t.Fatalf("Failed to seed expired document: %v", err)
	}

	result, err := services.VerifyTransactionCode(db, code, "", "")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !result.Verified || !result.Expired {
		t.Errorf("Expected verified but expired, got %+v", result)
	}
}
