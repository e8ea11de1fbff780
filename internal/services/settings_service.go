package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/openbrgy/portal/internal/models"
	"github.com/openbrgy/portal/internal/storage"
	"github.com/openbrgy/portal/internal/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Verification outcomes recorded on every lookup.
const (
	VerifyResultVerified = "verified"
	VerifyResultNotFound = "not_found"
)

// OfficialInput is the admin payload for creating or updating a roster entry.
// Ordering arrives as a number or a string depending on the client form.
type OfficialInput struct {
	Name      string           `json:"name"`
	Position  string           `json:"position"`
	TermStart *time.Time       `json:"termStart,omitempty"`
	TermEnd   *time.Time       `json:"termEnd,omitempty"`
	Ordering  types.FlexUint64 `json:"ordering"`
	Active    *bool            `json:"active,omitempty"`
}

// CreateOfficial adds a roster entry.
func CreateOfficial(db *gorm.DB, in OfficialInput) (*models.Official, error) {
	if in.Name == "" || in.Position == "" {
		return nil, types.ValidationError("name and position are required")
	}
	official := models.Official{
		Name:      in.Name,
		Position:  in.Position,
		TermStart: in.TermStart,
		TermEnd:   in.TermEnd,
		Ordering:  int(in.Ordering.Uint64()),
		Active:    true,
	}
	if in.Active != nil {
		official.Active = *in.Active
	}
	if err := db.Create(&official).Error; err != nil {
		return nil, err
	}
	return &official, nil
}

// ListOfficials returns the roster in display order. Public callers only see
// active entries.
func ListOfficials(db *gorm.DB, includeInactive bool) ([]models.Official, error) {
	q := db.Model(&models.Official{})
	if !includeInactive {
		q = q.Where("active = ?", true)
	}
	var out []models.Official
	err := q.Order("ordering ASC, name ASC").Find(&out).Error
	return out, err
}

// UpdateOfficial applies an admin edit.
func UpdateOfficial(db *gorm.DB, id string, in OfficialInput) (*models.Official, error) {
	var official models.Official
	if err := db.First(&official, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFoundError("official not found")
		}
		return nil, err
	}
	updates := map[string]any{"ordering": int(in.Ordering.Uint64())}
	if in.Name != "" {
		updates["name"] = in.Name
	}
	if in.Position != "" {
		updates["position"] = in.Position
	}
	if in.TermStart != nil {
		updates["term_start"] = in.TermStart
	}
	if in.TermEnd != nil {
		updates["term_end"] = in.TermEnd
	}
	if in.Active != nil {
		updates["active"] = *in.Active
	}
	if err := db.Model(&official).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &official, nil
}

// DeleteOfficial removes a roster entry.
func DeleteOfficial(db *gorm.DB, id string) error {
	res := db.Delete(&models.Official{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return types.NotFoundError("official not found")
	}
	return nil
}

// SetOfficialPhoto stores the roster photo blob and points the entry at it.
func SetOfficialPhoto(ctx context.Context, db *gorm.DB, blobs storage.BlobStore, id string, data []byte, contentType string) error {
	if len(data) == 0 {
		return types.ValidationError("photo file is required")
	}
	var official models.Official
	if err := db.First(&official, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.NotFoundError("official not found")
		}
		return err
	}
	key := "officials/" + official.ID
	if err := blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return types.DependencyError("store photo: " + err.Error())
	}
	return db.Model(&official).Update("photo_key", key).Error
}

// GetSettings returns settings as a key/value map. Public callers get only
// rows flagged public.
func GetSettings(db *gorm.DB, publicOnly bool) (map[string]json.RawMessage, error) {
	q := db.Model(&models.SystemSetting{})
	if publicOnly {
		q = q.Where("public = ?", true)
	}
	var rows []models.SystemSetting
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		out[row.Key] = json.RawMessage(row.Value)
	}
	return out, nil
}

// PutSetting upserts one setting under the admin's identity.
func PutSetting(db *gorm.DB, key string, value json.RawMessage, public bool, updatedBy string) (*models.SystemSetting, error) {
	if key == "" {
		return nil, types.ValidationError("setting key is required")
	}
	if !json.Valid(value) {
		return nil, types.ValidationError("setting value must be valid JSON")
	}
	setting := models.SystemSetting{
		Key:       key,
		Value:     datatypes.JSON(value),
		Public:    public,
		UpdatedBy: updatedBy,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		// Struct condition so gorm quotes the key column per-dialect; it is a
		// reserved word on most of the supported backends.
		res := tx.Model(&models.SystemSetting{}).Where(&models.SystemSetting{Key: key}).
			Updates(map[string]any{"value": setting.Value, "public": public, "updated_by": updatedBy})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return tx.Create(&setting).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// VerificationResult is what a public code lookup reveals. Deliberately
// limited: enough to confirm authenticity, nothing about the requester
// beyond what the document itself shows.
type VerificationResult struct {
	Verified       bool       `json:"verified"`
	DocumentType   string     `json:"documentType,omitempty"`
	DocumentNumber string     `json:"documentNumber,omitempty"`
	Status         string     `json:"status,omitempty"`
	IssuedAt       *time.Time `json:"issuedAt,omitempty"`
	ValidUntil     *time.Time `json:"validUntil,omitempty"`
	Expired        bool       `json:"expired,omitempty"`
}

// VerifyTransactionCode checks a code against issued requests and records the
// lookup as an audit row either way.
func VerifyTransactionCode(db *gorm.DB, code, requesterName, contact string) (*VerificationResult, error) {
	if code == "" {
		return nil, types.ValidationError("transaction code is required")
	}

	var req models.DocumentRequest
	err := db.First(&req, "transaction_code = ?", code).Error
	found := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	audit := models.VerificationRequest{
		Code:          code,
		Result:        VerifyResultNotFound,
		RequesterName: requesterName,
		Contact:       contact,
	}
	if found {
		audit.Result = VerifyResultVerified
	}
	if err := db.Create(&audit).Error; err != nil {
		return nil, err
	}

	if !found {
		return &VerificationResult{Verified: false}, nil
	}

	result := &VerificationResult{
		Verified:     true,
		DocumentType: req.Type,
		Status:       req.Status,
		ValidUntil:   req.ValidUntil,
	}
	if req.DocumentNumber != nil {
		result.DocumentNumber = *req.DocumentNumber
	}
	if req.UpdatedAt != (time.Time{}) {
		issued := req.UpdatedAt
		result.IssuedAt = &issued
	}
	if req.ValidUntil != nil && time.Now().After(*req.ValidUntil) {
		result.Expired = true
	}
	return result, nil
}
