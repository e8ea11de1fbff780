package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles known to the portal. Guests are a time-bounded identity class created
// without registration; their accounts expire via GuestExpiresAt.
const (
	RoleResident = "resident"
	RoleStaff    = "staff"
	RoleAdmin    = "admin"
	RoleGuest    = "guest"
)

// User represents a portal account: resident, staff, admin or guest.
type User struct {
	ID             string     `gorm:"type:char(36);primaryKey" json:"id"`
	Username       string     `gorm:"size:64;uniqueIndex;not null" json:"username"`
	// Email is not uniquely indexed: guests have no email and empty strings
	// would collide. Uniqueness is enforced at the service layer.
	Email          string     `gorm:"size:255;index" json:"email"`
	PasswordHash   string     `gorm:"size:255" json:"-"`
	Role           string     `gorm:"size:16;not null;default:'resident';index" json:"role"`
	BarangayID     string     `gorm:"size:32;index" json:"barangayId"`
	FirstName      string     `gorm:"size:128" json:"firstName"`
	LastName       string     `gorm:"size:128" json:"lastName"`
	ContactNumber  string     `gorm:"size:32" json:"contactNumber"`
	Address        string     `gorm:"size:255" json:"address"`
	AvatarKey      string     `gorm:"size:255" json:"-"`
	Active         bool       `gorm:"not null;default:true" json:"active"`
	GuestExpiresAt *time.Time `json:"guestExpiresAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// BeforeCreate assigns a UUID primary key.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// IsExpiredGuest reports whether the account is a guest past its validity window.
func (u *User) IsExpiredGuest(now time.Time) bool {
	return u.Role == RoleGuest && u.GuestExpiresAt != nil && now.After(*u.GuestExpiresAt)
}
