package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/netiads/iads/internal/domain"
	"github.com/netiads/iads/internal/em"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordRoundIncrementsCount(t *testing.T) {
	db := newTestDB(t)

	err := db.RecordRound(RoundRecord{
		StartedAt:     time.Now(),
		Duration:      250 * time.Millisecond,
		Strategy:      "explore_all",
		TasksSelected: 5,
		TasksFailed:   1,
		Reward:        0.8,
	})
	if err != nil {
		t.Fatalf("RecordRound() error: %v", err)
	}

	n, err := db.RoundCount()
	if err != nil {
		t.Fatalf("RoundCount() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("RoundCount() = %d, want 1", n)
	}
}

func TestRecordEventsGroupsByType(t *testing.T) {
	db := newTestDB(t)

	events := []em.Event{
		{ID: "ev-1", EntityID: domain.EntityID("1-1:2-1"), Metric: domain.MetricRTT, Type: em.EventRTTSpike, Severity: 2.0, Timestamp: time.Now()},
		{ID: "ev-2", EntityID: domain.EntityID("1-1:2-1"), Metric: domain.MetricRTT, Type: em.EventRTTSpike, Severity: 2.5, Timestamp: time.Now()},
		{ID: "ev-3", EntityID: domain.EntityID("2-1:3-1"), Metric: domain.MetricLiveness, Type: em.EventLivenessLow, Severity: 1.0, Timestamp: time.Now()},
	}
	if err := db.RecordEvents(events); err != nil {
		t.Fatalf("RecordEvents() error: %v", err)
	}

	counts, err := db.EventCountByType()
	if err != nil {
		t.Fatalf("EventCountByType() error: %v", err)
	}
	if counts[em.EventRTTSpike] != 2 {
		t.Fatalf("rtt_spike count = %d, want 2", counts[em.EventRTTSpike])
	}
	if counts[em.EventLivenessLow] != 1 {
		t.Fatalf("liveness_low count = %d, want 1", counts[em.EventLivenessLow])
	}
}

func TestRecordEventsNoOpOnEmptySlice(t *testing.T) {
	db := newTestDB(t)
	if err := db.RecordEvents(nil); err != nil {
		t.Fatalf("RecordEvents(nil) error: %v", err)
	}
}

func TestMigrationsAreReentrant(t *testing.T) {
	db := newTestDB(t)
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			t.Fatalf("re-running migration failed: %v", err)
		}
	}
}
