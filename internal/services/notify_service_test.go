package services_test

import (
	"testing"

	"github.com/openbrgy/portal/internal/models"
	"github.com/openbrgy/portal/internal/services"
)

func TestNotifyPersistsRow(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "maria", models.RoleResident)
	notifier := &services.Notifier{DB: db}

	notif, err := notifier.Notify(user.ID, models.NotifySystem, "Welcome", "Your account is ready.", nil)
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if notif.Read {
		t.Error("New notification must start unread")
	}

	list, err := notifier.List(user.ID, false, 10, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 || list[0].Title != "Welcome" {
		t.Errorf("Unexpected listing: %+v", list)
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "maria", models.RoleResident)
	notifier := &services.Notifier{DB: db}
	notif, err := notifier.Notify(user.ID, models.NotifySystem, "Hello", "msg", nil)
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if err := notifier.MarkRead(user.ID, notif.ID); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	// Second mark is a no-op, not an error.
	if err := notifier.MarkRead(user.ID, notif.ID); err != nil {
		t.Fatalf("Repeated MarkRead must be a no-op, got: %v", err)
	}

	count, err := notifier.UnreadCount(user.ID)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 unread, got %d", count)
	}
}

func TestMarkReadForeignNotification(t *testing.T) {
	db := setupTestDB(t)
	maria := seedUser(t, db, "maria", models.RoleResident)
	jose := seedUser(t, db, "jose", models.RoleResident)
	notifier := &services.Notifier{DB: db}
	notif, err := notifier.Notify(maria.ID, models.NotifySystem, "Hello", "msg", nil)
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	err = notifier.MarkRead(jose.ID, notif.ID)
	if errCode(err) != 404 {
		t.Errorf("Expected 404 marking someone else's notification, got %v", err)
	}
}

func TestMarkManyRead(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "maria", models.RoleResident)
	other := seedUser(t, db, "jose", models.RoleResident)
	notifier := &services.Notifier{DB: db}

	var ids []string
	for i := 0; i < 3; i++ {
		notif, err := notifier.Notify(user.ID, models.NotifySystem, "Hello", "msg", nil)
		if err != nil {
			t.Fatalf("Notify failed: %v", err)
		}
		ids = append(ids, notif.ID)
	}
	foreign, err := notifier.Notify(other.ID, models.NotifySystem, "Hello", "msg", nil)
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	// One already read; the foreign id must be skipped silently.
	if err := notifier.MarkRead(user.ID, ids[0]); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	flipped, err := notifier.MarkManyRead(user.ID, append(ids, foreign.ID))
	if err != nil {
		t.Fatalf("MarkManyRead failed: %v", err)
	}
	if flipped != 2 {
		t.Errorf("Expected 2 rows flipped, got %d", flipped)
	}

	otherCount, _ := notifier.UnreadCount(other.ID)
	if otherCount != 1 {
		t.Errorf("Foreign notification must stay unread, got %d unread", otherCount)
	}
}

func TestNotifyRoleSkipsInactive(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "staff-a", models.RoleStaff)
	seedUser(t, db, "staff-b", models.RoleStaff)
	inactive := seedUser(t, db, "staff-c", models.RoleStaff)
	if err := db.Model(inactive).Update("active", false).Error; err != nil {
		t.Fatalf("Failed to deactivate: %v", err)
	}
	seedUser(t, db, "maria", models.RoleResident)
	notifier := &services.Notifier{DB: db}

	count, err := notifier.NotifyRole(models.RoleStaff, models.NotifySystem, "Heads up", "msg", nil)
	if err != nil {
		t.Fatalf("NotifyRole failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected fan-out to 2 active staff, got %d", count)
	}
	inactiveCount, _ := notifier.UnreadCount(inactive.ID)
	if inactiveCount != 0 {
		t.Errorf("Inactive staff must not be notified, got %d", inactiveCount)
	}
}

func TestListUnreadOnly(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "maria", models.RoleResident)
	notifier := &services.Notifier{DB: db}

	first, _ := notifier.Notify(user.ID, models.NotifySystem, "One", "msg", nil)
	notifier.Notify(user.ID, models.NotifySystem, "Two", "msg", nil)
	if err := notifier.MarkRead(user.ID, first.ID); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	unread, err := notifier.List(user.ID, true, 10, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(unread) != 1 || unread[0].Title != "Two" {
		t.Errorf("Expected only the unread notification, got %+v", unread)
	}
}
