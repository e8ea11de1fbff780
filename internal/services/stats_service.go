package services

import (
	"sync"
	"time"

	"github.com/openbrgy/portal/internal/models"
	"gorm.io/gorm"
	"gorm.io/hints"
)

// Statistics is the admin dashboard snapshot.
type Statistics struct {
	RequestsByStatus  map[string]int64 `json:"requestsByStatus"`
	RequestsByType    []TypeCount      `json:"requestsByType"`
	InquiriesByStatus map[string]int64 `json:"inquiriesByStatus"`
	UsersByRole       map[string]int64 `json:"usersByRole"`
	GeneratedTotal    int64            `json:"generatedTotal"`
	NotificationsSent int64            `json:"notificationsSent"`
	ComputedAt        time.Time        `json:"computedAt"`
}

type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// StatsCache serves dashboard statistics from a short-TTL in-process cache.
// The queries group-scan several tables; the dashboard polls aggressively.
type StatsCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	fetched  time.Time
	snapshot *Statistics
}

func NewStatsCache(ttl time.Duration) *StatsCache {
	return &StatsCache{ttl: ttl}
}

// Get returns the cached snapshot or recomputes it when stale.
func (c *StatsCache) Get(db *gorm.DB) (*Statistics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot != nil && time.Since(c.fetched) < c.ttl {
		return c.snapshot, nil
	}
	stats, err := computeStatistics(db)
	if err != nil {
		return nil, err
	}
	c.snapshot = stats
	c.fetched = time.Now()
	return stats, nil
}

// Invalidate drops the snapshot; the next Get recomputes.
func (c *StatsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = nil
}

type groupCount struct {
	Bucket string
	Count  int64
}

// statsHint tags the dashboard queries in slow-query logs.
var statsHint = hints.CommentBefore("select", "admin-stats")

func computeStatistics(db *gorm.DB) (*Statistics, error) {
	stats := &Statistics{
		RequestsByStatus:  make(map[string]int64),
		InquiriesByStatus: make(map[string]int64),
		UsersByRole:       make(map[string]int64),
		ComputedAt:        time.Now(),
	}

	var rows []groupCount
	if err := db.Clauses(statsHint).Model(&models.DocumentRequest{}).
		Select("status AS bucket, COUNT(*) AS count").
		Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.RequestsByStatus[r.Bucket] = r.Count
	}

	var typeRows []TypeCount
	if err := db.Clauses(statsHint).Model(&models.DocumentRequest{}).
		Select("type, COUNT(*) AS count").
		Group("type").Order("count DESC").Scan(&typeRows).Error; err != nil {
		return nil, err
	}
	stats.RequestsByType = typeRows

	rows = rows[:0]
	if err := db.Clauses(statsHint).Model(&models.Inquiry{}).
		Select("status AS bucket, COUNT(*) AS count").
		Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.InquiriesByStatus[r.Bucket] = r.Count
	}

	rows = rows[:0]
	if err := db.Clauses(statsHint).Model(&models.User{}).
		Select("role AS bucket, COUNT(*) AS count").
		Group("role").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.UsersByRole[r.Bucket] = r.Count
	}

	if err := db.Clauses(statsHint).Model(&models.GeneratedDocument{}).
		Count(&stats.GeneratedTotal).Error; err != nil {
		return nil, err
	}
	if err := db.Clauses(statsHint).Model(&models.Notification{}).
		Count(&stats.NotificationsSent).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
