package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openbrgy/portal/internal/docgen"
	"github.com/openbrgy/portal/internal/models"
	"github.com/openbrgy/portal/internal/storage"
	"github.com/openbrgy/portal/internal/types"
	"gorm.io/gorm"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// codeAttempts bounds transaction-code collision retries.
const codeAttempts = 5

// ErrCodeAssignmentExhausted is returned when every code candidate collided.
var ErrCodeAssignmentExhausted = errors.New("transaction code assignment exhausted")

// Generator runs the document generation pipeline: template blob in, filled
// and QR-stamped binary out, with the metadata row written only after the
// blob upload is confirmed.
type Generator struct {
	DB    *gorm.DB
	Blobs storage.BlobStore
}

// GenerateResult is what a successful pipeline run hands back.
type GenerateResult struct {
	Bytes           []byte
	TransactionCode string
	Document        *models.GeneratedDocument
}

// Generate fills a template with field values. When requestID is given the
// request's transaction code is assigned idempotently (existing codes are
// reused, never reminted) and system fields fall back to request data.
func (g *Generator) Generate(ctx context.Context, templateID string, fieldValues map[string]string, requestID *string, actorID string) (*GenerateResult, error) {
	var tpl models.DocumentTemplate
	if err := g.DB.First(&tpl, "id = ?", templateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFoundError("template not found")
		}
		return nil, err
	}

	rc, _, err := g.Blobs.Get(ctx, tpl.BlobKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, types.DependencyError("template binary missing from blob store")
		}
		return nil, types.DependencyError("load template: " + err.Error())
	}
	var raw bytes.Buffer
	_, copyErr := raw.ReadFrom(rc)
	rc.Close()
	if copyErr != nil {
		return nil, types.DependencyError("read template: " + copyErr.Error())
	}

	var req *models.DocumentRequest
	code := ""
	if requestID != nil {
		req, err = GetRequest(g.DB, *requestID)
		if err != nil {
			return nil, err
		}
		code, err = g.ensureTransactionCode(req)
		if err != nil {
			return nil, err
		}
	}

	pkg, err := docgen.Open(raw.Bytes())
	if err != nil {
		if errors.Is(err, docgen.ErrTemplateUnreadable) {
			return nil, types.ValidationError("template is not a readable DOCX")
		}
		return nil, err
	}

	values := buildValues(fieldValues, req, code)
	if _, err := pkg.Substitute(values); err != nil {
		return nil, err
	}

	// A [qr] marker becomes a rendered QR image. Templates without a marker
	// still get the code wherever they reference it as text.
	if code != "" {
		for _, marker := range docgen.TokenForms("qr") {
			ok, err := pkg.EmbedQRCode(marker, code)
			if err != nil {
				return nil, err
			}
			if ok {
				break
			}
		}
	}

	// Unresolved tokens pass through as empty strings, consistently.
	if err := pkg.BlankRemaining(); err != nil {
		return nil, err
	}

	out, err := pkg.Bytes()
	if err != nil {
		return nil, err
	}

	filename := generatedFilename(code, tpl.ID, requestID)
	blobKey := "generated/" + filename

	// Blob first; the metadata row must never point at an unconfirmed upload.
	if err := g.Blobs.Put(ctx, blobKey, bytes.NewReader(out), int64(len(out)), docxContentType); err != nil {
		return nil, types.DependencyError("store generated document: " + err.Error())
	}

	doc := models.GeneratedDocument{
		Filename:    filename,
		ContentType: docxContentType,
		Size:        int64(len(out)),
		BlobKey:     blobKey,
		TemplateID:  tpl.ID,
		UploadedBy:  actorID,
	}
	if req != nil {
		doc.RequestID = req.ID
	}
	if err := g.DB.Create(&doc).Error; err != nil {
		// Orphaned blob is tolerable; a dangling metadata row is not.
		_ = g.Blobs.Delete(ctx, blobKey)
		return nil, err
	}

	if req != nil {
		if err := g.DB.Model(&models.DocumentRequest{}).
			Where("id = ?", req.ID).
			Update("generated_document_id", doc.ID).Error; err != nil {
			return nil, err
		}
	}

	return &GenerateResult{Bytes: out, TransactionCode: code, Document: &doc}, nil
}

// ensureTransactionCode returns the request's code, assigning one exactly
// once. The conditional update only fires while the column is still NULL, so
// a concurrent assignment loses cleanly and reuses the winner's code.
func (g *Generator) ensureTransactionCode(req *models.DocumentRequest) (string, error) {
	if req.TransactionCode != nil {
		return *req.TransactionCode, nil
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		candidate := newTransactionCode(req.ID)
		res := g.DB.Model(&models.DocumentRequest{}).
			Where("id = ? AND transaction_code IS NULL", req.ID).
			Update("transaction_code", candidate)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				continue // another request holds this code, roll again
			}
			return "", res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race to a concurrent generate on the same request:
			// reuse whatever was assigned.
			fresh, err := GetRequest(g.DB, req.ID)
			if err != nil {
				return "", err
			}
			if fresh.TransactionCode == nil {
				return "", fmt.Errorf("transaction code vanished for request %s", req.ID)
			}
			req.TransactionCode = fresh.TransactionCode
			return *fresh.TransactionCode, nil
		}
		req.TransactionCode = &candidate
		return candidate, nil
	}
	return "", ErrCodeAssignmentExhausted
}

// newTransactionCode builds a human-legible code: year, random alphanumeric
// segment, and a fragment of the request id.
func newTransactionCode(requestID string) string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		for i := range buf {
			buf[i] = byte(time.Now().UnixNano() >> (i * 5))
		}
	}
	segment := make([]byte, 6)
	for i, b := range buf {
		segment[i] = alphabet[int(b)%len(alphabet)]
	}

	fragment := strings.ReplaceAll(requestID, "-", "")
	if len(fragment) > 6 {
		fragment = fragment[:6]
	}
	return fmt.Sprintf("%d-%s-%s", time.Now().Year(), segment, fragment)
}

// buildValues merges caller field values over system fields derived from the
// linked request. Caller values win.
func buildValues(fieldValues map[string]string, req *models.DocumentRequest, code string) map[string]string {
	values := map[string]string{
		"date": time.Now().Format("January 2, 2006"),
	}
	if req != nil {
		values["documentNumber"] = ""
		values["validUntil"] = ""
		if req.DocumentNumber != nil {
			values["documentNumber"] = *req.DocumentNumber
		}
		if req.ValidUntil != nil {
			values["validUntil"] = req.ValidUntil.Format("January 2, 2006")
		}
		values["transactionCode"] = code
		values["purpose"] = req.Purpose
		values["requester"] = req.RequesterUsername
		values["barangayId"] = req.BarangayID
	}
	for k, v := range fieldValues {
		values[k] = v
	}
	return values
}

// generatedFilename prefers the transaction code, falling back to ids.
func generatedFilename(code, templateID string, requestID *string) string {
	switch {
	case code != "":
		return code + ".docx"
	case requestID != nil:
		return "request-" + *requestID + ".docx"
	default:
		return "template-" + templateID + "-" + fmt.Sprintf("%d", time.Now().Unix()) + ".docx"
	}
}
