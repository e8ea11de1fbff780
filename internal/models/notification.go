package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification categories.
const (
	NotifyDocuments     = "documents"
	NotifyInquiries     = "inquiries"
	NotifySystem        = "system"
	NotifyStaffApproval = "staff_approval"
)

// Notification is a durable per-recipient alert. Read is the only mutable
// field; unread counts are always derived from it, never stored.
type Notification struct {
	ID          string         `gorm:"type:char(36);primaryKey" json:"id"`
	RecipientID string         `gorm:"type:char(36);not null;index:idx_notifications_recipient" json:"recipientId"`
	Category    string         `gorm:"size:32;not null" json:"category"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Message     string         `gorm:"size:1024" json:"message"`
	Read        bool           `gorm:"column:is_read;not null;default:false;index:idx_notifications_recipient" json:"read"`
	ReadAt      *time.Time     `json:"readAt,omitempty"`
	Data        datatypes.JSON `gorm:"type:json" json:"data,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

// Typed notification payloads, one per category. They are serialized into the
// Data column so consumers never see free-form blobs.

// DocumentPayload accompanies documents notifications.
type DocumentPayload struct {
	RequestID       string `json:"requestId"`
	RequestType     string `json:"requestType"`
	Status          string `json:"status"`
	DocumentNumber  string `json:"documentNumber,omitempty"`
	TransactionCode string `json:"transactionCode,omitempty"`
	Remarks         string `json:"remarks,omitempty"`
}

// InquiryPayload accompanies inquiries notifications.
type InquiryPayload struct {
	InquiryID string `json:"inquiryId"`
	Subject   string `json:"subject"`
	Status    string `json:"status,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

// SystemPayload accompanies system notifications.
type SystemPayload struct {
	Event string `json:"event"`
	Actor string `json:"actor,omitempty"`
}

// StaffApprovalPayload accompanies staff_approval notifications.
type StaffApprovalPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Approved bool   `json:"approved"`
}

// MarshalPayload encodes a typed payload for the Data column.
func MarshalPayload(payload any) (datatypes.JSON, error) {
	if payload == nil {
		return nil, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
