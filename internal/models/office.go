package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Official is a barangay official shown on the public roster.
type Official struct {
	ID        string     `gorm:"type:char(36);primaryKey" json:"id"`
	Name      string     `gorm:"size:128;not null" json:"name"`
	Position  string     `gorm:"size:128;not null" json:"position"`
	TermStart *time.Time `json:"termStart,omitempty"`
	TermEnd   *time.Time `json:"termEnd,omitempty"`
	PhotoKey  string     `gorm:"size:255" json:"-"`
	Ordering  int        `gorm:"not null;default:0" json:"ordering"`
	Active    bool       `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (o *Official) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// SystemSetting is a keyed configuration value mutated only through the admin
// settings surface. Public settings are exposed read-only.
type SystemSetting struct {
	Key       string         `gorm:"size:64;primaryKey" json:"key"`
	Value     datatypes.JSON `gorm:"type:json" json:"value"`
	Public    bool           `gorm:"not null;default:false" json:"public"`
	UpdatedBy string         `gorm:"type:char(36)" json:"updatedBy"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}

// VerificationRequest records one authenticity check of a transaction code,
// including checks that found nothing. Audit-only; never mutated.
type VerificationRequest struct {
	ID            string    `gorm:"type:char(36);primaryKey" json:"id"`
	Code          string    `gorm:"size:32;not null;index" json:"code"`
	Result        string    `gorm:"size:16;not null" json:"result"` // verified | not_found
	RequesterName string    `gorm:"size:128" json:"requesterName"`
	Contact       string    `gorm:"size:64" json:"contact"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (v *VerificationRequest) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

func (VerificationRequest) TableName() string {
	return "verification_requests"
}
