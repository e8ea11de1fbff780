package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Inquiry statuses.
const (
	InquiryOpen       = "open"
	InquiryInProgress = "in_progress"
	InquiryResolved   = "resolved"
	InquiryClosed     = "closed"
)

// Inquiry is a resident-opened conversation routed to staff by assignment.
type Inquiry struct {
	ID           string    `gorm:"type:char(36);primaryKey" json:"id"`
	AuthorID     string    `gorm:"type:char(36);not null;index" json:"authorId"`
	Subject      string    `gorm:"size:255;not null" json:"subject"`
	Category     string    `gorm:"size:64" json:"category"`
	Status       string    `gorm:"size:16;not null;default:'open';index" json:"status"`
	AssignedTo   *string   `gorm:"type:char(36);index" json:"assignedTo,omitempty"`
	AssignedRole string    `gorm:"size:16" json:"assignedRole"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	Messages []InquiryMessage `gorm:"foreignKey:InquiryID" json:"messages,omitempty"`
}

func (i *Inquiry) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// InquiryMessage is one entry in an inquiry thread. Append-only.
type InquiryMessage struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	InquiryID string    `gorm:"type:char(36);not null;index" json:"inquiryId"`
	SenderID  string    `gorm:"type:char(36);not null" json:"senderId"`
	Body      string    `gorm:"size:2048;not null" json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

func (m *InquiryMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

func (InquiryMessage) TableName() string {
	return "inquiry_messages"
}
