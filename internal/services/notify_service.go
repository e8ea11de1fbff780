package services

import (
	"errors"
	"log"
	"time"

	"github.com/openbrgy/portal/internal/models"
	"github.com/openbrgy/portal/internal/realtime"
	"github.com/openbrgy/portal/internal/types"
	"gorm.io/gorm"
)

// Notifier persists notifications and pushes them to live sessions. The
// realtime registry is injected; a nil registry degrades to polling-only.
type Notifier struct {
	DB       *gorm.DB
	Registry *realtime.Registry
}

// Notify creates exactly one notification row and attempts one realtime push
// per live session. Push failures are not errors: the row stays queryable.
func (n *Notifier) Notify(recipientID, category, title, message string, payload any) (*models.Notification, error) {
	data, err := models.MarshalPayload(payload)
	if err != nil {
		return nil, err
	}
	notif := models.Notification{
		RecipientID: recipientID,
		Category:    category,
		Title:       title,
		Message:     message,
		Data:        data,
	}
	if err := n.DB.Create(&notif).Error; err != nil {
		return nil, err
	}

	if n.Registry != nil {
		n.Registry.Push(recipientID, realtime.Event{Type: "notification", Notification: &notif})
	}
	return &notif, nil
}

// NotifyRole fans out one notification per active user of a role.
func (n *Notifier) NotifyRole(role, category, title, message string, payload any) (int, error) {
	var users []models.User
	if err := n.DB.Where("role = ? AND active = ?", role, true).Find(&users).Error; err != nil {
		return 0, err
	}
	count := 0
	for _, u := range users {
		if _, err := n.Notify(u.ID, category, title, message, payload); err != nil {
			log.Printf("notify %s (%s): %v", u.Username, role, err)
			continue
		}
		count++
	}
	return count, nil
}

// MarkRead flips the read flag. Marking an already-read notification is a
// no-op, not an error.
func (n *Notifier) MarkRead(recipientID, id string) error {
	var notif models.Notification
	err := n.DB.Where("id = ? AND recipient_id = ?", id, recipientID).First(&notif).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.NotFoundError("notification not found")
		}
		return err
	}
	if notif.Read {
		return nil
	}
	now := time.Now()
	return n.DB.Model(&notif).Updates(map[string]any{"is_read": true, "read_at": now}).Error
}

// MarkManyRead marks a batch and returns how many rows actually flipped.
// Already-read and foreign ids are skipped silently.
func (n *Notifier) MarkManyRead(recipientID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	now := time.Now()
	res := n.DB.Model(&models.Notification{}).
		Where("recipient_id = ? AND id IN ? AND is_read = ?", recipientID, ids, false).
		Updates(map[string]any{"is_read": true, "read_at": now})
	return res.RowsAffected, res.Error
}

// UnreadCount is always derived from the read flags, never cached.
func (n *Notifier) UnreadCount(recipientID string) (int64, error) {
	var count int64
	err := n.DB.Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	return count, err
}

// List returns the recipient's notifications, newest first.
func (n *Notifier) List(recipientID string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := n.DB.Where("recipient_id = ?", recipientID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var out []models.Notification
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&out).Error
	return out, err
}
