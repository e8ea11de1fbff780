package services

import (
	"errors"
	"fmt"
	"log"

	"github.com/openbrgy/portal/internal/models"
	"github.com/openbrgy/portal/internal/types"
	"gorm.io/gorm"
)

// CreateInquiry opens a conversation and alerts staff.
func CreateInquiry(db *gorm.DB, notifier *Notifier, author *models.User, subject, category, body string) (*models.Inquiry, error) {
	if subject == "" || body == "" {
		return nil, types.ValidationError("subject and message are required")
	}

	inquiry := models.Inquiry{
		AuthorID:     author.ID,
		Subject:      subject,
		Category:     category,
		Status:       models.InquiryOpen,
		AssignedRole: models.RoleStaff,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&inquiry).Error; err != nil {
			return err
		}
		msg := models.InquiryMessage{InquiryID: inquiry.ID, SenderID: author.ID, Body: body}
		return tx.Create(&msg).Error
	})
	if err != nil {
		return nil, err
	}

	if notifier != nil {
		_, err := notifier.NotifyRole(models.RoleStaff, models.NotifyInquiries,
			"New inquiry",
			fmt.Sprintf("%s opened an inquiry: %s", author.Username, subject),
			models.InquiryPayload{InquiryID: inquiry.ID, Subject: subject, Status: inquiry.Status})
		if err != nil {
			log.Printf("notify staff of inquiry %s: %v", inquiry.ID, err)
		}
	}
	return &inquiry, nil
}

// ListInquiries returns inquiries visible to the caller: residents and guests
// see their own, staff/admin see everything.
func ListInquiries(db *gorm.DB, caller *models.User, status string) ([]models.Inquiry, error) {
	q := db.Model(&models.Inquiry{})
	if caller.Role != models.RoleStaff && caller.Role != models.RoleAdmin {
		q = q.Where("author_id = ?", caller.ID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.Inquiry
	err := q.Order("updated_at DESC").Find(&out).Error
	return out, err
}

// GetInquiry loads an inquiry with its thread, enforcing ownership for
// non-staff callers.
func GetInquiry(db *gorm.DB, caller *models.User, id string) (*models.Inquiry, error) {
	var inquiry models.Inquiry
	err := db.Preload("Messages", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("created_at ASC")
	}).First(&inquiry, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFoundError("inquiry not found")
		}
		return nil, err
	}
	if caller.Role != models.RoleStaff && caller.Role != models.RoleAdmin && inquiry.AuthorID != caller.ID {
		return nil, types.ForbiddenError("not your inquiry")
	}
	return &inquiry, nil
}

// AddInquiryMessage appends to the thread and notifies the counterparty:
// author posts reach assigned staff (or the staff role), staff posts reach
// the author.
func AddInquiryMessage(db *gorm.DB, notifier *Notifier, sender *models.User, inquiryID, body string) (*models.InquiryMessage, error) {
	if body == "" {
		return nil, types.ValidationError("message body is required")
	}
	inquiry, err := GetInquiry(db, sender, inquiryID)
	if err != nil {
		return nil, err
	}
	if inquiry.Status == models.InquiryClosed {
		return nil, types.ConflictError("inquiry is closed")
	}

	msg := models.InquiryMessage{InquiryID: inquiry.ID, SenderID: sender.ID, Body: body}
	if err := db.Create(&msg).Error; err != nil {
		return nil, err
	}
	// Touch the parent so list ordering follows activity.
	if err := db.Model(&models.Inquiry{}).Where("id = ?", inquiry.ID).
		Update("updated_at", msg.CreatedAt).Error; err != nil {
		return nil, err
	}

	if notifier != nil {
		payload := models.InquiryPayload{InquiryID: inquiry.ID, Subject: inquiry.Subject, MessageID: msg.ID}
		if sender.ID == inquiry.AuthorID {
			if inquiry.AssignedTo != nil {
				_, err = notifier.Notify(*inquiry.AssignedTo, models.NotifyInquiries,
					"New reply", fmt.Sprintf("Reply on inquiry: %s", inquiry.Subject), payload)
			} else {
				_, err = notifier.NotifyRole(models.RoleStaff, models.NotifyInquiries,
					"New reply", fmt.Sprintf("Reply on inquiry: %s", inquiry.Subject), payload)
			}
		} else {
			_, err = notifier.Notify(inquiry.AuthorID, models.NotifyInquiries,
				"Staff replied", fmt.Sprintf("Staff replied on: %s", inquiry.Subject), payload)
		}
		if err != nil {
			log.Printf("notify inquiry %s reply: %v", inquiry.ID, err)
		}
	}
	return &msg, nil
}

// UpdateInquiry assigns or transitions an inquiry (staff/admin action) and
// notifies the author on status change.
func UpdateInquiry(db *gorm.DB, notifier *Notifier, id string, assignedTo *string, status string) (*models.Inquiry, error) {
	var inquiry models.Inquiry
	if err := db.First(&inquiry, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFoundError("inquiry not found")
		}
		return nil, err
	}

	updates := map[string]any{}
	if assignedTo != nil {
		updates["assigned_to"] = *assignedTo
	}
	statusChanged := false
	if status != "" && status != inquiry.Status {
		switch status {
		case models.InquiryOpen, models.InquiryInProgress, models.InquiryResolved, models.InquiryClosed:
		default:
			return nil, types.ValidationError("unknown inquiry status: " + status)
		}
		updates["status"] = status
		statusChanged = true
	}
	if len(updates) == 0 {
		return &inquiry, nil
	}
	if err := db.Model(&inquiry).Updates(updates).Error; err != nil {
		return nil, err
	}

	if statusChanged && notifier != nil {
		_, err := notifier.Notify(inquiry.AuthorID, models.NotifyInquiries,
			"Inquiry "+status,
			fmt.Sprintf("Your inquiry %q is now %s.", inquiry.Subject, status),
			models.InquiryPayload{InquiryID: inquiry.ID, Subject: inquiry.Subject, Status: status})
		if err != nil {
			log.Printf("notify inquiry %s status: %v", inquiry.ID, err)
		}
	}
	return &inquiry, nil
}
