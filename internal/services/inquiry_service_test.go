package services_test

import (
	"testing"

	"github.com/openbrgy/portal/internal/models"
	"github.com/openbrgy/portal/internal/services"
)

func TestCreateInquiryOpensThread(t *testing.T) {
	db := setupTestDB(t)
	resident := seedUser(t, db, "maria", models.RoleResident)
	staff := seedUser(t, db, "staffer", models.RoleStaff)
	notifier := &services.Notifier{DB: db}

	inquiry, err := services.CreateInquiry(db, notifier, resident, "Garbage collection", "services", "When is pickup in Purok 3?")
	if err != nil {
		t.Fatalf("CreateInquiry failed: %v", err)
	}
	if inquiry.Status != models.InquiryOpen {
		t.Errorf("Expected open status, got %s", inquiry.Status)
	}

	loaded, err := services.GetInquiry(db, resident, inquiry.ID)
	if err != nil {
		t.Fatalf("GetInquiry failed: %v", err)
	}
	if len(loaded.Messages) != 1 || loaded.Messages[0].Body != "When is pickup in Purok 3?" {
		t.Errorf("Expected the opening message in the thread, got %+v", loaded.Messages)
	}

	count, _ := notifier.UnreadCount(staff.ID)
	if count != 1 {
		t.Errorf("Expected staff to be alerted, got %d notifications", count)
	}
}

func TestInquiryOwnership(t *testing.T) {
	db := setupTestDB(t)
	maria := seedUser(t, db, "maria", models.RoleResident)
	jose := seedUser(t, db, "jose", models.RoleResident)
	staff := seedUser(t, db, "staffer", models.RoleStaff)

	inquiry, err := services.CreateInquiry(db, nil, maria, "Subject", "general", "Body")
	if err != nil {
		t.Fatalf("CreateInquiry failed: %v", err)
	}

	// Another resident is locked out; staff can read anything.
	_, err = services.GetInquiry(db, jose, inquiry.ID)
	if errCode(err) != 403 {
		t.Errorf("Expected 403 for a foreign resident, got %v", err)
	}
	if _, err := services.GetInquiry(db, staff, inquiry.ID); err != nil {
		t.Errorf("Staff must see any inquiry, got %v", err)
	}

	mine, err := services.ListInquiries(db, jose, "")
	if err != nil {
		t.Fatalf("ListInquiries failed: %v", err)
	}
	if len(mine) != 0 {
		t.Errorf("Expected no inquiries for jose, got %d", len(mine))
	}
	all, err := services.ListInquiries(db, staff, "")
	if err != nil {
		t.Fatalf("ListInquiries failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("Expected staff to see 1 inquiry, got %d", len(all))
	}
}

func TestAddInquiryMessageClosedThread(t *testing.T) {
	db := setupTestDB(t)
	maria := seedUser(t, db, "maria", models.RoleResident)
	inquiry, err := services.CreateInquiry(db, nil, maria, "Subject", "general", "Body")
	if err != nil {
		t.Fatalf("CreateInquiry failed: %v", err)
	}
	if _, err := services.UpdateInquiry(db, nil, inquiry.ID, nil, models.InquiryClosed); err != nil {
		t.Fatalf("UpdateInquiry failed: %v", err)
	}

	_, err = services.AddInquiryMessage(db, nil, maria, inquiry.ID, "Still waiting")
	if errCode(err) != 409 {
		t.Errorf("Expected 409 posting to a closed inquiry, got %v", err)
	}
}

func TestStaffReplyNotifiesAuthor(t *testing.T) {
	db := setupTestDB(t)
	maria := seedUser(t, db, "maria", models.RoleResident)
	staff := seedUser(t, db, "staffer", models.RoleStaff)
	notifier := &services.Notifier{DB: db}
	inquiry, err := services.CreateInquiry(db, nil, maria, "Subject", "general", "Body")
	if err != nil {
		t.Fatalf("CreateInquiry failed: %v", err)
	}

	if _, err := services.AddInquiryMessage(db, notifier, staff, inquiry.ID, "Pickup is every Tuesday."); err != nil {
		t.Fatalf("AddInquiryMessage failed: %v", err)
	}

	notifs, err := notifier.List(maria.ID, false, 10, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(notifs) != 1 || notifs[0].Category != models.NotifyInquiries {
		t.Errorf("Expected one inquiries notification for the author, got %+v", notifs)
	}
}

func TestAuthorReplyReachesAssignedStaff(t *testing.T) {
	db := setupTestDB(t)
	maria := seedUser(t, db, "maria", models.RoleResident)
	assigned := seedUser(t, db, "assigned", models.RoleStaff)
	bystander := seedUser(t, db, "bystander", models.RoleStaff)
	notifier := &services.Notifier{DB: db}
	inquiry, err := services.CreateInquiry(db, nil, maria, "Subject", "general", "Body")
	if err != nil {
		t.Fatalf("CreateInquiry failed: %v", err)
	}
	if _, err := services.UpdateInquiry(db, nil, inquiry.ID, &assigned.ID, ""); err != nil {
		t.Fatalf("Assignment failed: %v", err)
	}

	if _, err := services.AddInquiryMessage(db, notifier, maria, inquiry.ID, "Any update?"); err != nil {
		t.Fatalf("AddInquiryMessage failed: %v", err)
	}

	assignedCount, _ := notifier.UnreadCount(assigned.ID)
	bystanderCount, _ := notifier.UnreadCount(bystander.ID)
	if assignedCount != 1 {
		t.Errorf("Expected the assigned staff to be notified, got %d", assignedCount)
	}
	if bystanderCount != 0 {
		t.Errorf("Unassigned staff must not be notified once assigned, got %d", bystanderCount)
	}
}

func TestUpdateInquiryStatusNotifiesAuthor(t *testing.T) {
	db := setupTestDB(t)
	maria := seedUser(t, db, "maria", models.RoleResident)
	notifier := &services.Notifier{DB: db}
	inquiry, err := services.CreateInquiry(db, nil, maria, "Subject", "general", "Body")
	if err != nil {
		t.Fatalf("CreateInquiry failed: %v", err)
	}

	updated, err := services.UpdateInquiry(db, notifier, inquiry.ID, nil, models.InquiryResolved)
	if err != nil {
		t.Fatalf("UpdateInquiry failed: %v", err)
	}
	if updated.Status != models.InquiryResolved {
		t.Errorf("Expected resolved, got %s", updated.Status)
	}
	count, _ := notifier.UnreadCount(maria.ID)
	if count != 1 {
		t.Errorf("Expected a status notification for the author, got %d", count)
	}

	// Unknown status is rejected outright.
	_, err = services.UpdateInquiry(db, notifier, inquiry.ID, nil, "escalated")
	if errCode(err) != 400 {
		t.Errorf("Expected 400 for an unknown status, got %v", err)
	}
}
