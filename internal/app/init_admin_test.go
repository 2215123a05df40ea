package app

import (
	"path/filepath"
	"testing"

	"github.com/dontaskus/backend/internal/db"
	"github.com/dontaskus/backend/internal/models"
	"github.com/dontaskus/backend/internal/security"
)

func TestCreateAdminUserWithConn(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "dontaskus-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	if errCreate := CreateAdminUserWithConn(conn, "admin", "correct horse battery"); errCreate != nil {
		t.Fatalf("CreateAdminUserWithConn: %v", errCreate)
	}

	var admin models.Admin
	if errFind := conn.Where("username = ?", "admin").First(&admin).Error; errFind != nil {
		t.Fatalf("find admin: %v", errFind)
	}
	if !admin.Active {
		t.Fatalf("expected first admin to be active")
	}
	if admin.Password == "correct horse battery" {
		t.Fatalf("expected password to be stored hashed")
	}
	if !security.VerifyPassword(admin.Password, "correct horse battery") {
		t.Fatalf("expected stored hash to verify against the password")
	}
}
