package services_test

import (
	"testing"
	"time"

	"github.com/openbrgy/portal/internal/models"
	"github.com/openbrgy/portal/internal/services"
)

func TestStatisticsSnapshot(t *testing.T) {
	db := setupTestDB(t)
	maria := seedUser(t, db, "maria", models.RoleResident)
	seedUser(t, db, "staffer", models.RoleStaff)
	seedRequest(t, db, maria, "barangay_clearance")
	seedRequest(t, db, maria, "barangay_clearance")
	req := seedRequest(t, db, maria, "indigency")
	if _, err := services.TransitionStatus(db, nil, nil, req.ID, models.StatusApproved, ""); err != nil {
		t.Fatalf("Approval failed: %v", err)
	}

	cache := services.NewStatsCache(time.Minute)
	stats, err := cache.Get(db)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stats.RequestsByStatus[models.StatusPending] != 2 {
		t.Errorf("Expected 2 pending, got %d", stats.RequestsByStatus[models.StatusPending])
	}
	if stats.RequestsByStatus[models.StatusApproved] != 1 {
		t.Errorf("Expected 1 approved, got %d", stats.RequestsByStatus[models.StatusApproved])
	}
	if stats.UsersByRole[models.RoleResident] != 1 || stats.UsersByRole[models.RoleStaff] != 1 {
		t.Errorf("Unexpected role counts: %+v", stats.UsersByRole)
	}

	found := false
	for _, tc := range stats.RequestsByType {
		if tc.Type == "barangay_clearance" && tc.Count == 2 {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected 2 barangay_clearance requests in type counts: %+v", stats.RequestsByType)
	}
}

func TestStatisticsCacheAndInvalidate(t *testing.T) {
	db := setupTestDB(t)
	maria := seedUser(t, db, "maria", models.RoleResident)
	cache := services.NewStatsCache(time.Hour)

	first, err := cache.Get(db)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if first.RequestsByStatus[models.StatusPending] != 0 {
		t.Errorf("Expected no pending requests yet, got %d", first.RequestsByStatus[models.StatusPending])
	}

	seedRequest(t, db, maria, "barangay_clearance")

	// Within the TTL the stale snapshot is served.
	cached, err := cache.Get(db)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if cached.RequestsByStatus[models.StatusPending] != 0 {
		t.Error("Expected the cached snapshot before invalidation")
	}

	cache.Invalidate()
	fresh, err := cache.Get(db)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fresh.RequestsByStatus[models.StatusPending] != 1 {
		t.Errorf("Expected a recomputed snapshot, got %d pending", fresh.RequestsByStatus[models.StatusPending])
	}
}
