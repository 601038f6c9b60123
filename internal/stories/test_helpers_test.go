package stories

import (
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	databasePath := filepath.Join(t.TempDir(), "stories.db")
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
	if err := database.AutoMigrate(&Story{}); err != nil {
		t.Fatalf("failed to migrate stories: %v", err)
	}
	return database
}

func newTestService(t *testing.T) (*Service, Store) {
	t.Helper()
	store := NewGormStore(openTestDatabase(t))
	service, err := NewService(ServiceConfig{Store: store})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service, store
}

func seedStory(t *testing.T, store Store, id string, author string) Story {
	t.Helper()
	story := NewStory(id, author)
	if err := store.Create(t.Context(), &story); err != nil {
		t.Fatalf("failed to seed story: %v", err)
	}
	return story
}

func stringPointer(value string) *string {
	return &value
}

func boolPointer(value bool) *bool {
	return &value
}
