package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/openbrgy/portal/internal/docgen"
	"github.com/openbrgy/portal/internal/models"
	"github.com/openbrgy/portal/internal/storage"
	"github.com/openbrgy/portal/internal/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreateTemplate stores an uploaded DOCX template: placeholders are extracted
// up front so request forms can be built without re-parsing, the binary goes
// to the blob store, and the metadata row is written last.
func CreateTemplate(ctx context.Context, db *gorm.DB, blobs storage.BlobStore, name, description, filename string, data []byte, uploadedBy string) (*models.DocumentTemplate, error) {
	if name == "" {
		return nil, types.ValidationError("template name is required")
	}
	if len(data) == 0 {
		return nil, types.ValidationError("template file is required")
	}

	fields, err := docgen.ExtractPlaceholders(data)
	if err != nil {
		if errors.Is(err, docgen.ErrTemplateUnreadable) {
			return nil, types.ValidationError("file is not a readable DOCX template")
		}
		return nil, err
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	blobKey := "templates/" + uuid.NewString() + ".docx"
	if err := blobs.Put(ctx, blobKey, bytes.NewReader(data), int64(len(data)), docxContentType); err != nil {
		return nil, types.DependencyError("store template: " + err.Error())
	}

	tpl := models.DocumentTemplate{
		Name:         name,
		Description:  description,
		Filename:     filename,
		ContentType:  docxContentType,
		Size:         int64(len(data)),
		BlobKey:      blobKey,
		Placeholders: datatypes.JSON(fieldsJSON),
		Active:       true,
		UploadedBy:   uploadedBy,
	}
	if err := db.Create(&tpl).Error; err != nil {
		_ = blobs.Delete(ctx, blobKey)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, types.ConflictError("a template with that name already exists")
		}
		return nil, err
	}
	return &tpl, nil
}

// ListTemplates returns active templates.
func ListTemplates(db *gorm.DB) ([]models.DocumentTemplate, error) {
	var out []models.DocumentTemplate
	err := db.Where("active = ?", true).Order("name ASC").Find(&out).Error
	return out, err
}

// GetTemplate loads one template.
func GetTemplate(db *gorm.DB, id string) (*models.DocumentTemplate, error) {
	var tpl models.DocumentTemplate
	if err := db.First(&tpl, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFoundError("template not found")
		}
		return nil, err
	}
	return &tpl, nil
}

// TemplateFields returns the cached placeholder list for a template.
func TemplateFields(db *gorm.DB, id string) ([]string, error) {
	tpl, err := GetTemplate(db, id)
	if err != nil {
		return nil, err
	}
	var fields []string
	if len(tpl.Placeholders) > 0 {
		if err := json.Unmarshal(tpl.Placeholders, &fields); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

// DeleteTemplate removes the metadata row, then the blob best-effort.
// Generated documents keep their own copies, so deletion never orphans them.
func DeleteTemplate(ctx context.Context, db *gorm.DB, blobs storage.BlobStore, id string) error {
	tpl, err := GetTemplate(db, id)
	if err != nil {
		return err
	}
	if err := db.Delete(&models.DocumentTemplate{}, "id = ?", id).Error; err != nil {
		return err
	}
	if err := blobs.Delete(ctx, tpl.BlobKey); err != nil {
		log.Printf("dependency error: delete template blob %s: %v", tpl.BlobKey, err)
	}
	return nil
}
