package authoring

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/inkpath/backend/internal/accounts"
	"github.com/inkpath/backend/internal/database"
	"github.com/inkpath/backend/internal/identifier"
	"github.com/inkpath/backend/internal/stories"
	"go.uber.org/zap"
)

var errInjected = errors.New("injected store failure")

type testHarness struct {
	accounts accounts.Store
	stories  stories.Store
}

func newTestHarness(t *testing.T) testHarness {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "authoring.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return testHarness{accounts: accounts.NewGormStore(db), stories: stories.NewGormStore(db)}
}

func (h testHarness) service(t *testing.T, accountStore accounts.Store, storyStore stories.Store, logger *zap.Logger) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{
		Accounts:   accountStore,
		Stories:    storyStore,
		IDProvider: identifier.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service
}

func seedAccount(t *testing.T, store accounts.Store, id string, username string) accounts.Account {
	t.Helper()
	account := accounts.Account{
		ID:           id,
		Username:     username,
		UsernameKey:  accounts.UsernameKey(username),
		Email:        username + "@example.com",
		PasswordHash: "hash",
		ProfileImage: accounts.DefaultProfileImage,
		Bio:          accounts.DefaultBio,
	}
	if err := store.Create(t.Context(), &account); err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}
	return account
}

// failingStoryStore fails the configured operations and delegates everything else.
type failingStoryStore struct {
	stories.Store
	failDelete bool
}

func (s *failingStoryStore) Delete(ctx context.Context, id string) (stories.Story, error) {
	if s.failDelete {
		return stories.Story{}, errInjected
	}
	return s.Store.Delete(ctx, id)
}

// vanishingAccountStore deletes the author right before the story link is written.
type vanishingAccountStore struct {
	accounts.Store
}

func (s *vanishingAccountStore) PushStory(ctx context.Context, id string, storyID string) (accounts.Account, error) {
	if _, err := s.Store.Delete(ctx, id); err != nil {
		return accounts.Account{}, err
	}
	return s.Store.PushStory(ctx, id, storyID)
}
