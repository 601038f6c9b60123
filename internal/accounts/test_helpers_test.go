package accounts

import (
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/inkpath/backend/internal/identifier"
	"gorm.io/gorm"
)

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	databasePath := filepath.Join(t.TempDir(), "accounts.db")
	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := database.AutoMigrate(&Account{}); err != nil {
		t.Fatalf("failed to migrate accounts: %v", err)
	}
	return database
}

func newTestService(t *testing.T) (*Service, Store) {
	t.Helper()
	store := NewGormStore(openTestDatabase(t))
	service, err := NewService(ServiceConfig{Store: store, IDProvider: identifier.NewUUIDProvider()})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service, store
}

func mustRegister(t *testing.T, service *Service, username string, email string) Account {
	t.Helper()
	account, err := service.Register(t.Context(), Registration{Username: username, Email: email, Password: "Passw0rdX"})
	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}
	return account
}
