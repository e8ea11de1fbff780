package services_test

import (
	"context"
	"testing"

	"github.com/openbrgy/portal/internal/models"
	"github.com/openbrgy/portal/internal/services"
	"github.com/openbrgy/portal/internal/storage"
)

func TestUpdateProfile(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "maria", models.RoleResident)

	updated, err := services.UpdateProfile(db, user.ID, services.ProfileInput{
		Email:         "maria@example.com",
		FirstName:     "Maria",
		ContactNumber: "0917-000-0000",
	})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if updated.Email != "maria@example.com" || updated.FirstName != "Maria" {
		t.Errorf("Profile not applied: %+v", updated)
	}
	// Untouched fields survive.
	if updated.Username != "maria" {
		t.Errorf("Username must not change, got %s", updated.Username)
	}
}

func TestUpdateProfileEmailConflict(t *testing.T) {
	db := setupTestDB(t)
	maria := seedUser(t, db, "maria", models.RoleResident)
	jose := seedUser(t, db, "jose", models.RoleResident)
	if _, err := services.UpdateProfile(db, maria.ID, services.ProfileInput{Email: "shared@example.com"}); err != nil {
		t.Fatalf("First email set failed: %v", err)
	}

	_, err := services.UpdateProfile(db, jose.ID, services.ProfileInput{Email: "shared@example.com"})
	if errCode(err) != 409 {
		t.Errorf("Expected 409 claiming a taken email, got %v", err)
	}

	// Re-submitting your own email is not a conflict.
	if _, err := services.UpdateProfile(db, maria.ID, services.ProfileInput{Email: "shared@example.com"}); err != nil {
		t.Errorf("Own email must not conflict, got %v", err)
	}
}

func TestSetAvatar(t *testing.T) {
	db := setupTestDB(t)
	blobs := storage.NewGormStore(db)
	user := seedUser(t, db, "maria", models.RoleResident)

	data := []byte{0xff, 0xd8, 0xff, 0xe0}
	if err := services.SetAvatar(context.Background(), db, blobs, user, data, "image/jpeg"); err != nil {
		t.Fatalf("SetAvatar failed: %v", err)
	}
	if user.AvatarKey != "avatars/"+user.ID {
		t.Errorf("Unexpected avatar key %q", user.AvatarKey)
	}
	info, err := blobs.Stat(context.Background(), user.AvatarKey)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.ContentType != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %s", info.ContentType)
	}

	// Empty upload is rejected.
	if err := services.SetAvatar(context.Background(), db, blobs, user, nil, "image/jpeg"); errCode(err) != 400 {
		t.Errorf("Expected 400 for an empty avatar, got %v", err)
	}
}

func TestListUsersFiltered(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "maria", models.RoleResident)
	seedUser(t, db, "jose", models.RoleResident)
	inactive := seedUser(t, db, "paolo", models.RoleStaff)
	if err := db.Model(inactive).Update("active", false).Error; err != nil {
		t.Fatalf("Failed to deactivate: %v", err)
	}

	residents, err := services.ListUsers(db, services.UserFilter{Role: models.RoleResident})
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(residents) != 2 {
		t.Errorf("Expected 2 residents, got %d", len(residents))
	}

	active := true
	activeOnly, err := services.ListUsers(db, services.UserFilter{Active: &active})
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(activeOnly) != 2 {
		t.Errorf("Expected 2 active users, got %d", len(activeOnly))
	}
}

func TestUpdateUserRole(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "maria", models.RoleResident)
	notifier := &services.Notifier{DB: db}

	staff := models.RoleStaff
	updated, err := services.UpdateUser(db, notifier, user.ID, services.AdminUserUpdate{Role: &staff})
	if err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	if updated.Role != models.RoleStaff {
		t.Errorf("Expected staff role, got %s", updated.Role)
	}

	// Promotion to staff notifies the account.
	notifs, err := notifier.List(user.ID, false, 10, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(notifs) != 1 || notifs[0].Category != models.NotifyStaffApproval {
		t.Errorf("Expected a staff_approval notification, got %+v", notifs)
	}

	bogus := "mayor"
	_, err = services.UpdateUser(db, nil, user.ID, services.AdminUserUpdate{Role: &bogus})
	if errCode(err) != 400 {
		t.Errorf("Expected 400 for an unknown role, got %v", err)
	}
}

func TestUpdateUserGuestRoleLocked(t *testing.T) {
	db := setupTestDB(t)
	guest := seedUser(t, db, "guest-1234", models.RoleGuest)

	resident := models.RoleResident
	_, err := services.UpdateUser(db, nil, guest.ID, services.AdminUserUpdate{Role: &resident})
	if errCode(err) != 409 {
		t.Errorf("Expected 409 promoting a guest, got %v", err)
	}

	// Deactivating a guest is still allowed.
	off := false
	updated, err := services.UpdateUser(db, nil, guest.ID, services.AdminUserUpdate{Active: &off})
	if err != nil {
		t.Fatalf("Deactivation failed: %v", err)
	}
	if updated.Active {
		t.Error("Expected the guest to be deactivated")
	}
}
