package audit

import (
	"path/filepath"
	"testing"

	"github.com/dontaskus/backend/internal/db"
	"github.com/dontaskus/backend/internal/models"
)

func TestRecord_PersistsStateSnapshots(t *testing.T) {
	conn, err := db.Open(filepath.Join(t.TempDir(), "audit_test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}

	recorder := NewRecorder(conn)
	errRecord := recorder.Record(Entry{
		AdminID:    1,
		Action:     ActionSuspendUser,
		Outcome:    OutcomeSuccess,
		TargetType: "user",
		TargetID:   "user-abc",
		Before:     map[string]any{"suspended": false},
		After:      map[string]any{"suspended": true},
		IPAddress:  "203.0.113.9",
		Reason:     "abuse report",
	})
	if errRecord != nil {
		t.Fatalf("record: %v", errRecord)
	}

	var row models.AuditLog
	if errFind := conn.First(&row).Error; errFind != nil {
		t.Fatalf("load entry: %v", errFind)
	}
	if row.Action != ActionSuspendUser || row.Outcome != OutcomeSuccess {
		t.Fatalf("unexpected row: %+v", row)
	}
	if len(row.BeforeState) == 0 || len(row.AfterState) == 0 {
		t.Fatalf("expected state snapshots to be stored")
	}
	if row.TargetID != "user-abc" {
		t.Fatalf("expected target user-abc, got %q", row.TargetID)
	}
}
