package authoring

import (
	"slices"
	"testing"

	"github.com/inkpath/backend/internal/apperrors"
	"github.com/inkpath/backend/internal/stories"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewServiceRequiresDependencies(t *testing.T) {
	harness := newTestHarness(t)
	if _, err := NewService(ServiceConfig{Stories: harness.stories}); err == nil {
		t.Fatalf("expected error without account store")
	}
	if _, err := NewService(ServiceConfig{Accounts: harness.accounts}); err == nil {
		t.Fatalf("expected error without story store")
	}
	if _, err := NewService(ServiceConfig{Accounts: harness.accounts, Stories: harness.stories}); err == nil {
		t.Fatalf("expected error without id provider")
	}
}

func TestCreateStoryLinksAuthorExactlyOnce(t *testing.T) {
	harness := newTestHarness(t)
	service := harness.service(t, harness.accounts, harness.stories, nil)
	seedAccount(t, harness.accounts, "alice", "alice")
	createdBefore := testutil.ToFloat64(storiesCreatedTotal)

	story, err := service.CreateStory(t.Context(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if story.Author != "alice" {
		t.Fatalf("expected author alice, got %q", story.Author)
	}
	if story.Title != stories.DefaultTitle || story.Publish || len(story.Likes) != 0 || len(story.Chapters) != 0 {
		t.Fatalf("expected default story, got %+v", story)
	}

	stored, err := harness.stories.FindByID(t.Context(), story.ID)
	if err != nil {
		t.Fatalf("expected story to be stored: %v", err)
	}
	if stored.Author != "alice" {
		t.Fatalf("unexpected stored author %q", stored.Author)
	}
	account, err := harness.accounts.FindByID(t.Context(), "alice")
	if err != nil {
		t.Fatalf("unexpected account error: %v", err)
	}
	if !slices.Equal(account.Stories, []string{story.ID}) {
		t.Fatalf("expected story linked once, got %v", account.Stories)
	}
	if testutil.ToFloat64(storiesCreatedTotal) != createdBefore+1 {
		t.Fatalf("expected created counter to increment")
	}
}

func TestCreateStoryRequiresCaller(t *testing.T) {
	harness := newTestHarness(t)
	service := harness.service(t, harness.accounts, harness.stories, nil)

	_, err := service.CreateStory(t.Context(), "")
	if !apperrors.HasKind(err, apperrors.KindNotAuthenticated) {
		t.Fatalf("expected not authenticated, got %v", err)
	}
	all, err := harness.stories.List(t.Context())
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no story to be written, got %d", len(all))
	}
}

func TestCreateStoryRollsBackWhenAccountVanishes(t *testing.T) {
	harness := newTestHarness(t)
	service := harness.service(t, &vanishingAccountStore{Store: harness.accounts}, harness.stories, nil)
	seedAccount(t, harness.accounts, "alice", "alice")
	rollbacksBefore := testutil.ToFloat64(sagaRollbacksTotal.WithLabelValues(workflowCreateStory))

	_, err := service.CreateStory(t.Context(), "alice")
	if !apperrors.HasKind(err, apperrors.KindAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
	all, err := harness.stories.List(t.Context())
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected created story to be deleted, found %d", len(all))
	}
	if testutil.ToFloat64(sagaRollbacksTotal.WithLabelValues(workflowCreateStory)) != rollbacksBefore+1 {
		t.Fatalf("expected rollback counter to increment")
	}
}

func TestCreateStoryLogsOrphanWhenRollbackFails(t *testing.T) {
	harness := newTestHarness(t)
	core, logs := observer.New(zapcore.DebugLevel)
	storyStore := &failingStoryStore{Store: harness.stories, failDelete: true}
	service := harness.service(t, &vanishingAccountStore{Store: harness.accounts}, storyStore, zap.New(core))
	seedAccount(t, harness.accounts, "alice", "alice")
	orphansBefore := testutil.ToFloat64(orphanedStoriesTotal)

	_, err := service.CreateStory(t.Context(), "alice")
	if !apperrors.HasKind(err, apperrors.KindAccountNotFound) {
		t.Fatalf("expected account not found despite failed rollback, got %v", err)
	}

	all, err := harness.stories.List(t.Context())
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected the orphaned story to remain, found %d", len(all))
	}

	entries := logs.FilterField(zap.String("orphaned_story_id", all[0].ID)).FilterMessage("authoring service error").All()
	if len(entries) != 1 {
		t.Fatalf("expected one orphan log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level, got %s", entries[0].Level)
	}
	if entries[0].ContextMap()["reason"] != "compensation_failed" {
		t.Fatalf("unexpected log reason: %v", entries[0].ContextMap())
	}
	if testutil.ToFloat64(orphanedStoriesTotal) != orphansBefore+1 {
		t.Fatalf("expected orphan counter to increment")
	}
}

func TestDeleteStoryUnlinksAndPrunesFavourites(t *testing.T) {
	harness := newTestHarness(t)
	service := harness.service(t, harness.accounts, harness.stories, nil)
	seedAccount(t, harness.accounts, "alice", "alice")
	seedAccount(t, harness.accounts, "bob", "bob")

	story, err := service.CreateStory(t.Context(), "alice")
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if _, err := service.AddFavourite(t.Context(), "bob", story.ID); err != nil {
		t.Fatalf("unexpected favourite error: %v", err)
	}

	if err := service.DeleteStory(t.Context(), story.ID); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if _, err := harness.stories.FindByID(t.Context(), story.ID); err == nil {
		t.Fatalf("expected story to be deleted")
	}
	alice, _ := harness.accounts.FindByID(t.Context(), "alice")
	if slices.Contains(alice.Stories, story.ID) {
		t.Fatalf("expected story to be unlinked from author")
	}
	bob, _ := harness.accounts.FindByID(t.Context(), "bob")
	if slices.Contains(bob.FavouriteStories, story.ID) {
		t.Fatalf("expected story to be pruned from favourites")
	}

	if err := service.DeleteStory(t.Context(), story.ID); !apperrors.HasKind(err, apperrors.KindNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestDeleteStoryRestoresReferencesWhenDeleteFails(t *testing.T) {
	harness := newTestHarness(t)
	seedAccount(t, harness.accounts, "alice", "alice")
	seedAccount(t, harness.accounts, "bob", "bob")
	creator := harness.service(t, harness.accounts, harness.stories, nil)
	story, err := creator.CreateStory(t.Context(), "alice")
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if _, err := creator.AddFavourite(t.Context(), "bob", story.ID); err != nil {
		t.Fatalf("unexpected favourite error: %v", err)
	}

	service := harness.service(t, harness.accounts, &failingStoryStore{Store: harness.stories, failDelete: true}, nil)
	err = service.DeleteStory(t.Context(), story.ID)
	if !apperrors.HasKind(err, apperrors.KindPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}

	alice, _ := harness.accounts.FindByID(t.Context(), "alice")
	if !slices.Equal(alice.Stories, []string{story.ID}) {
		t.Fatalf("expected author link restored, got %v", alice.Stories)
	}
	bob, _ := harness.accounts.FindByID(t.Context(), "bob")
	if !slices.Equal(bob.FavouriteStories, []string{story.ID}) {
		t.Fatalf("expected favourite restored, got %v", bob.FavouriteStories)
	}
}

func TestDeleteStoryRollbackKeepsOwnedStoryOrder(t *testing.T) {
	harness := newTestHarness(t)
	seedAccount(t, harness.accounts, "alice", "alice")
	creator := harness.service(t, harness.accounts, harness.stories, nil)
	var created []string
	for range 3 {
		story, err := creator.CreateStory(t.Context(), "alice")
		if err != nil {
			t.Fatalf("unexpected create error: %v", err)
		}
		created = append(created, story.ID)
	}

	service := harness.service(t, harness.accounts, &failingStoryStore{Store: harness.stories, failDelete: true}, nil)
	if err := service.DeleteStory(t.Context(), created[1]); !apperrors.HasKind(err, apperrors.KindPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}

	alice, err := harness.accounts.FindByID(t.Context(), "alice")
	if err != nil {
		t.Fatalf("unexpected find error: %v", err)
	}
	if !slices.Equal(alice.Stories, created) {
		t.Fatalf("expected owned stories %v after rollback, got %v", created, alice.Stories)
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	harness := newTestHarness(t)
	service := harness.service(t, harness.accounts, harness.stories, nil)
	seedAccount(t, harness.accounts, "alice", "alice")
	seedAccount(t, harness.accounts, "bob", "bob")

	aliceStory, err := service.CreateStory(t.Context(), "alice")
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	bobStory, err := service.CreateStory(t.Context(), "bob")
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if _, err := service.AddFavourite(t.Context(), "bob", aliceStory.ID); err != nil {
		t.Fatalf("unexpected favourite error: %v", err)
	}
	if _, err := harness.stories.AddLike(t.Context(), bobStory.ID, "alice"); err != nil {
		t.Fatalf("unexpected like error: %v", err)
	}

	if err := service.DeleteAccount(t.Context(), "alice"); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}

	if _, err := harness.accounts.FindByID(t.Context(), "alice"); err == nil {
		t.Fatalf("expected account to be deleted")
	}
	if _, err := harness.stories.FindByID(t.Context(), aliceStory.ID); err == nil {
		t.Fatalf("expected authored story to be deleted")
	}
	bob, _ := harness.accounts.FindByID(t.Context(), "bob")
	if len(bob.FavouriteStories) != 0 {
		t.Fatalf("expected favourites pruned, got %v", bob.FavouriteStories)
	}
	remaining, err := harness.stories.FindByID(t.Context(), bobStory.ID)
	if err != nil {
		t.Fatalf("expected other story to survive: %v", err)
	}
	if len(remaining.Likes) != 0 {
		t.Fatalf("expected likes withdrawn, got %v", remaining.Likes)
	}

	if err := service.DeleteAccount(t.Context(), "alice"); !apperrors.HasKind(err, apperrors.KindNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestFavouritesAreIdempotent(t *testing.T) {
	harness := newTestHarness(t)
	service := harness.service(t, harness.accounts, harness.stories, nil)
	seedAccount(t, harness.accounts, "alice", "alice")
	story, err := service.CreateStory(t.Context(), "alice")
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	for range 2 {
		account, err := service.AddFavourite(t.Context(), "alice", story.ID)
		if err != nil {
			t.Fatalf("unexpected favourite error: %v", err)
		}
		if !slices.Equal(account.FavouriteStories, []string{story.ID}) {
			t.Fatalf("expected single favourite, got %v", account.FavouriteStories)
		}
		if account.PasswordHash != "" {
			t.Fatalf("expected sanitized account")
		}
	}

	for range 2 {
		account, err := service.RemoveFavourite(t.Context(), "alice", story.ID)
		if err != nil {
			t.Fatalf("unexpected unfavourite error: %v", err)
		}
		if len(account.FavouriteStories) != 0 {
			t.Fatalf("expected favourites empty, got %v", account.FavouriteStories)
		}
	}

	if _, err := service.AddFavourite(t.Context(), "alice", "missing"); !apperrors.HasKind(err, apperrors.KindNotFound) {
		t.Fatalf("expected not found for missing story, got %v", err)
	}
	if _, err := service.AddFavourite(t.Context(), "ghost", story.ID); !apperrors.HasKind(err, apperrors.KindAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
}
