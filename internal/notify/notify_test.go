package notify

import (
	"path/filepath"
	"testing"

	"github.com/dontaskus/backend/internal/db"
	"github.com/dontaskus/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "notify_test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return conn
}

func seedUser(t *testing.T, conn *gorm.DB, name string, groupID uint64) *models.User {
	t.Helper()
	user := models.User{UserID: uuid.NewString(), GroupID: groupID, DisplayName: name, ColorAvatar: "#abcdef"}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &user
}

func TestRegistry_RegisterAndUnregister(t *testing.T) {
	conn := openTestDB(t)
	registry := NewRegistry(conn)

	group := models.Group{GroupID: uuid.NewString(), Name: "G", InviteCode: uuid.NewString()[:8]}
	if err := conn.Create(&group).Error; err != nil {
		t.Fatalf("create group: %v", err)
	}
	user := seedUser(t, conn, "alice", group.ID)

	if err := registry.Register(user.ID, "tok-1", "ios", "phone"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(user.ID, "tok-1", "ios", "phone"); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if err := registry.Register(user.ID, "", "ios", ""); err == nil {
		t.Fatalf("expected error for empty token")
	}
	if err := registry.Register(user.ID, "tok-2", "toaster", ""); err == nil {
		t.Fatalf("expected error for unknown platform")
	}

	tokens, errTokens := registry.ActiveTokens(group.ID)
	if errTokens != nil {
		t.Fatalf("active tokens: %v", errTokens)
	}
	if len(tokens) != 1 || tokens[0].Token != "tok-1" {
		t.Fatalf("unexpected tokens %+v", tokens)
	}

	if err := registry.Unregister(user.ID, "tok-1"); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	tokens, errTokens = registry.ActiveTokens(group.ID)
	if errTokens != nil {
		t.Fatalf("active tokens: %v", errTokens)
	}
	if len(tokens) != 0 {
		t.Fatalf("expected no active tokens, got %d", len(tokens))
	}
}

func TestActiveTokens_SkipSuspendedMembers(t *testing.T) {
	conn := openTestDB(t)
	registry := NewRegistry(conn)

	group := models.Group{GroupID: uuid.NewString(), Name: "G", InviteCode: uuid.NewString()[:8]}
	if err := conn.Create(&group).Error; err != nil {
		t.Fatalf("create group: %v", err)
	}
	user := seedUser(t, conn, "bob", group.ID)
	if err := registry.Register(user.ID, "tok-9", "android", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := conn.Model(user).Update("suspended", true).Error; err != nil {
		t.Fatalf("suspend: %v", err)
	}

	tokens, errTokens := registry.ActiveTokens(group.ID)
	if errTokens != nil {
		t.Fatalf("active tokens: %v", errTokens)
	}
	if len(tokens) != 0 {
		t.Fatalf("expected suspended member tokens excluded, got %d", len(tokens))
	}
}
