package services_test

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/openbrgy/portal/internal/docgen"
	"github.com/openbrgy/portal/internal/models"
	"github.com/openbrgy/portal/internal/services"
	"github.com/openbrgy/portal/internal/storage"
	"gorm.io/gorm"
)

// seedTemplate uploads a fabricated DOCX template through the service layer.
func seedTemplate(t *testing.T, db *gorm.DB, blobs storage.BlobStore, paragraphs ...string) *models.DocumentTemplate {
	t.Helper()
	data, err := docgen.BuildTemplate(paragraphs)
	if err != nil {
		t.Fatalf("Failed to build template fixture: %v", err)
	}
	tpl, err := services.CreateTemplate(context.Background(), db, blobs,
		"Barangay Clearance", "Standard clearance", "clearance.docx", data, "admin-id")
	if err != nil {
		t.Fatalf("CreateTemplate failed: %v", err)
	}
	return tpl
}

func TestGenerateStandalone(t *testing.T) {
	db := setupTestDB(t)
	blobs := storage.NewGormStore(db)
	tpl := seedTemplate(t, db, blobs, "To whom it may concern: $[fullName] resides at $[address].")
	gen := &services.Generator{DB: db, Blobs: blobs}

	res, err := gen.Generate(context.Background(), tpl.ID, map[string]string{
		"fullName": "Maria Santos",
		"address":  "123 Mabini St",
	}, nil, "staff-id")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.TransactionCode != "" {
		t.Errorf("Standalone generation must not assign a transaction code, got %q", res.TransactionCode)
	}

	pkg, err := docgen.Open(res.Bytes)
	if err != nil {
		t.Fatalf("Output is not a valid package: %v", err)
	}
	text, err := pkg.MainText()
	if err != nil {
		t.Fatalf("MainText failed: %v", err)
	}
	if !strings.Contains(text, "Maria Santos") || !strings.Contains(text, "123 Mabini St") {
		t.Errorf("Expected substituted values in output, got %q", text)
	}
	if strings.Contains(text, "$[") {
		t.Errorf("Expected no leftover tokens, got %q", text)
	}
}

func TestGenerateForRequestAssignsCode(t *testing.T) {
	db := setupTestDB(t)
	blobs := storage.NewGormStore(db)
	resident := seedUser(t, db, "maria", models.RoleResident)
	tpl := seedTemplate(t, db, blobs, "Code: $[transactionCode] Purpose: $[purpose]")
	req := seedRequest(t, db, resident, "barangay_clearance")
	gen := &services.Generator{DB: db, Blobs: blobs}

	res, err := gen.Generate(context.Background(), tpl.ID, nil, &req.ID, "staff-id")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	pattern := fmt.Sprintf(`^%d-[A-Z2-9]{6}-[0-9a-f]{6}$`, time.Now().Year())
	if !regexp.MustCompile(pattern).MatchString(res.TransactionCode) {
		t.Errorf("Transaction code %q does not match %s", res.TransactionCode, pattern)
	}

	// The code is persisted on the request and the request points at the document.
	fresh, err := services.GetRequest(db, req.ID)
	if err != nil {
		t.Fatalf("GetRequest failed: %v", err)
	}
	if fresh.TransactionCode == nil || *fresh.TransactionCode != res.TransactionCode {
		t.Errorf("Expected code %q persisted on the request, got %v", res.TransactionCode, fresh.TransactionCode)
	}
	if fresh.GeneratedDocumentID == nil || *fresh.GeneratedDocumentID != res.Document.ID {
		t.Errorf("Expected request to reference document %s, got %v", res.Document.ID, fresh.GeneratedDocumentID)
	}
}

func TestGenerateEmbedsQRMarker(t *testing.T) {
	db := setupTestDB(t)
	blobs := storage.NewGormStore(db)
	resident := seedUser(t, db, "maria", models.RoleResident)
	tpl := seedTemplate(t, db, blobs, "Scan to verify: $[qr]", "Code: $[transactionCode]")
	req := seedRequest(t, db, resident, "barangay_clearance")
	gen := &services.Generator{DB: db, Blobs: blobs}

	res, err := gen.Generate(context.Background(), tpl.ID, nil, &req.ID, "staff-id")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	pkg, err := docgen.Open(res.Bytes)
	if err != nil {
		t.Fatalf("Output is not a valid package: %v", err)
	}
	text, err := pkg.MainText()
	if err != nil {
		t.Fatalf("MainText failed: %v", err)
	}
	// The marker becomes an image; the code still appears as text.
	if strings.Contains(text, "$[qr]") {
		t.Errorf("Expected the qr marker replaced, got %q", text)
	}
	if !strings.Contains(text, res.TransactionCode) {
		t.Errorf("Expected the code %q as text, got %q", res.TransactionCode, text)
	}
}

func TestGenerateReusesTransactionCode(t *testing.T) {
	db := setupTestDB(t)
	blobs := storage.NewGormStore(db)
	resident := seedUser(t, db, "maria", models.RoleResident)
	tpl := seedTemplate(t, db, blobs, "Code: $[transactionCode]")
	req := seedRequest(t, db, resident, "barangay_clearance")
	gen := &services.Generator{DB: db, Blobs: blobs}

	first, err := gen.Generate(context.Background(), tpl.ID, nil, &req.ID, "staff-id")
	if err != nil {
		t.Fatalf("First generate failed: %v", err)
	}
	second, err := gen.Generate(context.Background(), tpl.ID, nil, &req.ID, "staff-id")
	if err != nil {
		t.Fatalf("Second generate failed: %v", err)
	}
	if second.TransactionCode != first.TransactionCode {
		t.Errorf("Regeneration reminted the code: %q vs %q", second.TransactionCode, first.TransactionCode)
	}
}

func TestGenerateBlobMatchesMetadata(t *testing.T) {
	db := setupTestDB(t)
	blobs := storage.NewGormStore(db)
	tpl := seedTemplate(t, db, blobs, "Hello $[name]")
	gen := &services.Generator{DB: db, Blobs: blobs}

	res, err := gen.Generate(context.Background(), tpl.ID, map[string]string{"name": "Jose"}, nil, "staff-id")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Document.Size != int64(len(res.Bytes)) {
		t.Errorf("Metadata size %d does not match output %d", res.Document.Size, len(res.Bytes))
	}
	info, err := blobs.Stat(context.Background(), res.Document.BlobKey)
	if err != nil {
		t.Fatalf("Stat on stored blob failed: %v", err)
	}
	if info.Size != res.Document.Size {
		t.Errorf("Stored blob size %d does not match metadata %d", info.Size, res.Document.Size)
	}
}

func TestGenerateTemplateNotFound(t *testing.T) {
	db := setupTestDB(t)
	gen := &services.Generator{DB: db, Blobs: storage.NewGormStore(db)}
	_, err := gen.Generate(context.Background(), "00000000-0000-0000-0000-000000000000", nil, nil, "staff-id")
	if errCode(err) != 404 {
		t.Errorf("Expected 404 for a missing template, got %v", err)
	}
}

func TestGenerateFillsRequestSystemFields(t *testing.T) {
	db := setupTestDB(t)
	blobs := storage.NewGormStore(db)
	resident := seedUser(t, db, "maria", models.RoleResident)
	tpl := seedTemplate(t, db, blobs, "No: $[documentNumber] Requested by $[requester] for $[purpose]")
	req := seedRequest(t, db, resident, "barangay_clearance")
	if _, err := services.TransitionStatus(db, nil, nil, req.ID, models.StatusApproved, ""); err != nil {
		t.Fatalf("Approval failed: %v", err)
	}
	gen := &services.Generator{DB: db, Blobs: blobs}

	res, err := gen.Generate(context.Background(), tpl.ID, nil, &req.ID, "staff-id")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	pkg, err := docgen.Open(res.Bytes)
	if err != nil {
		t.Fatalf("Output is not a valid package: %v", err)
	}
	text, err := pkg.MainText()
	if err != nil {
		t.Fatalf("MainText failed: %v", err)
	}
	wantNumber := fmt.Sprintf("%d-00001", time.Now().Year())
	if !strings.Contains(text, wantNumber) {
		t.Errorf("Expected document number %s in output, got %q", wantNumber, text)
	}
	if !strings.Contains(text, "maria") || !strings.Contains(text, "employment") {
		t.Errorf("Expected requester and purpose in output, got %q", text)
	}
}
