package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/openbrgy/portal/internal/models"
	"github.com/openbrgy/portal/internal/storage"
	"github.com/openbrgy/portal/internal/types"
	"gorm.io/gorm"
)

// ProfileInput is the self-service profile edit payload. Username, role and
// active state are not editable here.
type ProfileInput struct {
	Email         string `json:"email"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	ContactNumber string `json:"contactNumber"`
	Address       string `json:"address"`
}

// UpdateProfile applies a self-service edit and returns the fresh record.
func UpdateProfile(db *gorm.DB, userID string, in ProfileInput) (*models.User, error) {
	updates := map[string]any{}
	if in.Email != "" {
		var count int64
		err := db.Model(&models.User{}).
			Where("email = ? AND id <> ?", in.Email, userID).
			Count(&count).Error
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, types.ConflictError("email already in use")
		}
		updates["email"] = in.Email
	}
	if in.FirstName != "" {
		updates["first_name"] = in.FirstName
	}
	if in.LastName != "" {
		updates["last_name"] = in.LastName
	}
	if in.ContactNumber != "" {
		updates["contact_number"] = in.ContactNumber
	}
	if in.Address != "" {
		updates["address"] = in.Address
	}
	if len(updates) > 0 {
		if err := db.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SetAvatar stores the image blob and points the account at it. The previous
// avatar blob is removed best-effort.
func SetAvatar(ctx context.Context, db *gorm.DB, blobs storage.BlobStore, user *models.User, data []byte, contentType string) error {
	if len(data) == 0 {
		return types.ValidationError("avatar file is required")
	}
	key := "avatars/" + user.ID
	if err := blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return types.DependencyError("store avatar: " + err.Error())
	}
	if err := db.Model(&models.User{}).Where("id = ?", user.ID).
		Update("avatar_key", key).Error; err != nil {
		return err
	}
	if user.AvatarKey != "" && user.AvatarKey != key {
		if err := blobs.Delete(ctx, user.AvatarKey); err != nil {
			log.Printf("dependency error: delete old avatar %s: %v", user.AvatarKey, err)
		}
	}
	user.AvatarKey = key
	return nil
}

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Role   string
	Active *bool
	Limit  int
	Offset int
}

// ListUsers is the admin account listing.
func ListUsers(db *gorm.DB, f UserFilter) ([]models.User, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	q := db.Model(&models.User{})
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Active != nil {
		q = q.Where("active = ?", *f.Active)
	}
	var out []models.User
	err := q.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&out).Error
	return out, err
}

// AdminUserUpdate is the admin account-management payload.
type AdminUserUpdate struct {
	Role   *string `json:"role,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

// UpdateUser applies an admin role or activation change. Promoting an account
// to staff notifies the account so approvals do not go unseen.
func UpdateUser(db *gorm.DB, notifier *Notifier, id string, in AdminUserUpdate) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFoundError("user not found")
		}
		return nil, err
	}

	updates := map[string]any{}
	promotedToStaff := false
	if in.Role != nil && *in.Role != user.Role {
		switch *in.Role {
		case models.RoleResident, models.RoleStaff, models.RoleAdmin:
		default:
			return nil, types.ValidationError("unknown role: " + *in.Role)
		}
		if user.Role == models.RoleGuest {
			return nil, types.ConflictError("guest accounts cannot change role")
		}
		updates["role"] = *in.Role
		promotedToStaff = *in.Role == models.RoleStaff
	}
	if in.Active != nil && *in.Active != user.Active {
		updates["active"] = *in.Active
	}
	if len(updates) == 0 {
		return &user, nil
	}
	if err := db.Model(&user).Updates(updates).Error; err != nil {
		return nil, err
	}

	if promotedToStaff && notifier != nil {
		_, err := notifier.Notify(user.ID, models.NotifyStaffApproval,
			"Staff access granted",
			fmt.Sprintf("Your account %s now has staff access.", user.Username),
			models.StaffApprovalPayload{UserID: user.ID, Username: user.Username, Approved: true})
		if err != nil {
			log.Printf("notify staff approval for %s: %v", user.ID, err)
		}
	}
	return &user, nil
}
