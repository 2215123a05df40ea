package streak

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dontaskus/backend/internal/db"
	"github.com/dontaskus/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "streak_test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return conn
}

func seedUser(t *testing.T, conn *gorm.DB) *models.User {
	t.Helper()
	group := models.Group{GroupID: uuid.NewString(), Name: "Test Group", InviteCode: uuid.NewString()[:8]}
	if err := conn.Create(&group).Error; err != nil {
		t.Fatalf("create group: %v", err)
	}
	user := models.User{UserID: uuid.NewString(), GroupID: group.ID, DisplayName: "alice", ColorAvatar: "#ff0000"}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &user
}

func TestRecordAnswer_ConsecutiveDaysIncrement(t *testing.T) {
	conn := openTestDB(t)
	tracker := NewTracker(conn)
	user := seedUser(t, conn)

	for i, date := range []string{"2026-08-21", "2026-08-22", "2026-08-23"} {
		if err := tracker.RecordAnswer(nil, user, date); err != nil {
			t.Fatalf("record %s: %v", date, err)
		}
		if user.AnswerStreak != i+1 {
			t.Fatalf("expected streak %d after %s, got %d", i+1, date, user.AnswerStreak)
		}
	}
	if user.LongestAnswerStreak != 3 {
		t.Fatalf("expected longest streak 3, got %d", user.LongestAnswerStreak)
	}
}

func TestRecordAnswer_GapResetsToOne(t *testing.T) {
	conn := openTestDB(t)
	tracker := NewTracker(conn)
	user := seedUser(t, conn)

	if err := tracker.RecordAnswer(nil, user, "2026-08-20"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := tracker.RecordAnswer(nil, user, "2026-08-21"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := tracker.RecordAnswer(nil, user, "2026-08-23"); err != nil {
		t.Fatalf("record after gap: %v", err)
	}

	if user.AnswerStreak != 1 {
		t.Fatalf("expected streak reset to 1, got %d", user.AnswerStreak)
	}
	if user.LongestAnswerStreak != 2 {
		t.Fatalf("expected longest streak kept at 2, got %d", user.LongestAnswerStreak)
	}
}

func TestRecordAnswer_SameDayIsNoop(t *testing.T) {
	conn := openTestDB(t)
	tracker := NewTracker(conn)
	user := seedUser(t, conn)

	if err := tracker.RecordAnswer(nil, user, "2026-08-23"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := tracker.RecordAnswer(nil, user, "2026-08-23"); err != nil {
		t.Fatalf("record same day: %v", err)
	}
	if user.AnswerStreak != 1 {
		t.Fatalf("expected streak to stay 1, got %d", user.AnswerStreak)
	}
}

func TestRecordAnswer_PersistsGroupStreak(t *testing.T) {
	conn := openTestDB(t)
	tracker := NewTracker(conn)
	user := seedUser(t, conn)

	if err := tracker.RecordAnswer(nil, user, "2026-08-22"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := tracker.RecordAnswer(nil, user, "2026-08-23"); err != nil {
		t.Fatalf("record: %v", err)
	}

	var row models.UserGroupStreak
	if errFind := conn.Where("user_id = ? AND group_id = ?", user.ID, user.GroupID).First(&row).Error; errFind != nil {
		t.Fatalf("load group streak: %v", errFind)
	}
	if row.CurrentStreak != 2 || row.LongestStreak != 2 {
		t.Fatalf("unexpected group streak %+v", row)
	}

	var stored models.User
	if errFind := conn.First(&stored, user.ID).Error; errFind != nil {
		t.Fatalf("reload user: %v", errFind)
	}
	if stored.AnswerStreak != 2 {
		t.Fatalf("expected persisted streak 2, got %d", stored.AnswerStreak)
	}
}

func TestLeaderboard_Ordering(t *testing.T) {
	conn := openTestDB(t)
	tracker := NewTracker(conn)

	group := models.Group{GroupID: uuid.NewString(), Name: "Board", InviteCode: uuid.NewString()[:8]}
	if err := conn.Create(&group).Error; err != nil {
		t.Fatalf("create group: %v", err)
	}
	users := make([]*models.User, 3)
	for i, name := range []string{"alice", "bob", "carol"} {
		user := models.User{UserID: uuid.NewString(), GroupID: group.ID, DisplayName: name, ColorAvatar: "#000000"}
		if err := conn.Create(&user).Error; err != nil {
			t.Fatalf("create user: %v", err)
		}
		users[i] = &user
	}

	// alice: 2-day streak, bob: 1 day, carol: none.
	for _, date := range []string{"2026-08-22", "2026-08-23"} {
		if err := tracker.RecordAnswer(nil, users[0], date); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := tracker.RecordAnswer(nil, users[1], "2026-08-23"); err != nil {
		t.Fatalf("record: %v", err)
	}

	rows, errBoard := tracker.Leaderboard(group.ID)
	if errBoard != nil {
		t.Fatalf("leaderboard: %v", errBoard)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 leaderboard rows, got %d", len(rows))
	}
	if rows[0].UserID != users[0].ID || rows[0].CurrentStreak != 2 {
		t.Fatalf("expected alice first with streak 2, got %+v", rows[0])
	}
}

func TestAdvance_TruncatesTimezones(t *testing.T) {
	last := time.Date(2026, 8, 22, 23, 59, 0, 0, time.UTC)
	day := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)
	current, longest, changed := advance(4, 6, &last, day)
	if !changed || current != 5 || longest != 6 {
		t.Fatalf("expected increment to 5/6, got %d/%d changed=%v", current, longest, changed)
	}
}
