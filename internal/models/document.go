package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentRequest statuses. Transitions are staff/admin driven; approved,
// rejected and completed are terminal for the normal flow.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
	StatusCompleted  = "completed"
)

// DocumentTemplate is an uploaded DOCX layout with bracketed placeholders.
// The binary lives in the blob store under BlobKey; Placeholders caches the
// extracted field-name list so forms can be built without re-parsing.
type DocumentTemplate struct {
	ID           string         `gorm:"type:char(36);primaryKey" json:"id"`
	Name         string         `gorm:"size:128;uniqueIndex;not null" json:"name"`
	Description  string         `gorm:"size:512" json:"description"`
	Filename     string         `gorm:"size:255;not null" json:"filename"`
	ContentType  string         `gorm:"size:128" json:"contentType"`
	Size         int64          `json:"size"`
	BlobKey      string         `gorm:"size:255;not null" json:"-"`
	Placeholders datatypes.JSON `gorm:"type:json" json:"placeholders"`
	Active       bool           `gorm:"not null;default:true" json:"active"`
	UploadedBy   string         `gorm:"type:char(36)" json:"uploadedBy"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func (t *DocumentTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

func (DocumentTemplate) TableName() string {
	return "document_templates"
}

// DocumentRequest is a resident-submitted request for an issued document.
// DocumentNumber and TransactionCode are assigned at most once and never
// reassigned: the number on approval, the code on first generation.
type DocumentRequest struct {
	ID                  string            `gorm:"type:char(36);primaryKey" json:"id"`
	Type                string            `gorm:"size:128;not null;index" json:"type"`
	RequesterID         string            `gorm:"type:char(36);not null;index" json:"requesterId"`
	RequesterUsername   string            `gorm:"size:64" json:"requesterUsername"`
	BarangayID          string            `gorm:"size:32" json:"barangayId"`
	Purpose             string            `gorm:"size:512" json:"purpose"`
	Status              string            `gorm:"size:16;not null;default:'pending';index" json:"status"`
	DocumentNumber      *string           `gorm:"size:32;uniqueIndex" json:"documentNumber,omitempty"`
	TransactionCode     *string           `gorm:"size:32;uniqueIndex" json:"transactionCode,omitempty"`
	ValidUntil          *time.Time        `json:"validUntil,omitempty"`
	FieldValues         datatypes.JSONMap `gorm:"type:json" json:"fieldValues"`
	TemplateID          *string           `gorm:"type:char(36);index" json:"templateId,omitempty"`
	GeneratedDocumentID *string           `gorm:"type:char(36)" json:"generatedDocumentId,omitempty"`
	Remarks             string            `gorm:"size:512" json:"remarks"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`

	Requester *User             `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	Template  *DocumentTemplate `gorm:"foreignKey:TemplateID" json:"template,omitempty"`
}

func (r *DocumentRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (DocumentRequest) TableName() string {
	return "document_requests"
}

// IsTerminal reports whether the status admits no further normal-flow
// transitions out of it, except approved -> completed.
func IsTerminal(status string) bool {
	return status == StatusRejected || status == StatusCompleted
}

// GeneratedDocument is the metadata record for one produced binary. Created
// once per successful generation, never mutated, deleted only by admin action.
type GeneratedDocument struct {
	ID          string    `gorm:"type:char(36);primaryKey" json:"id"`
	Filename    string    `gorm:"size:255;not null" json:"filename"`
	ContentType string    `gorm:"size:128" json:"contentType"`
	Size        int64     `json:"size"`
	BlobKey     string    `gorm:"size:255;not null" json:"-"`
	TemplateID  string    `gorm:"type:char(36);index" json:"templateId"`
	RequestID   string    `gorm:"type:char(36);index" json:"requestId"`
	UploadedBy  string    `gorm:"type:char(36)" json:"uploadedBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (d *GeneratedDocument) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

func (GeneratedDocument) TableName() string {
	return "generated_documents"
}

// DocumentSequence allocates per-year sequential document numbers. Rows are
// updated inside the approval transaction so concurrent approvals cannot
// mint the same number.
type DocumentSequence struct {
	Year       int    `gorm:"primaryKey" json:"year"`
	LastNumber uint64 `gorm:"not null;default:0" json:"lastNumber"`
}

func (DocumentSequence) TableName() string {
	return "document_sequences"
}
