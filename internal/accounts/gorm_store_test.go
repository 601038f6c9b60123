package accounts

import (
	"errors"
	"slices"
	"testing"
)

func seedAccount(t *testing.T, store Store, id string, username string) Account {
	t.Helper()
	account := Account{
		ID:           id,
		Username:     username,
		UsernameKey:  UsernameKey(username),
		Email:        username + "@example.com",
		PasswordHash: "hash",
		ProfileImage: DefaultProfileImage,
		Bio:          DefaultBio,
	}
	if err := store.Create(t.Context(), &account); err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}
	return account
}

func TestGormStoreCreateRejectsDuplicates(t *testing.T) {
	store := NewGormStore(openTestDatabase(t))
	seedAccount(t, store, "acc-1", "alice")

	duplicate := Account{ID: "acc-2", Username: "Alice", UsernameKey: UsernameKey("Alice"), Email: "x@example.com", PasswordHash: "hash"}
	if err := store.Create(t.Context(), &duplicate); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestGormStorePushStoryIsIdempotent(t *testing.T) {
	store := NewGormStore(openTestDatabase(t))
	seedAccount(t, store, "acc-1", "alice")

	for range 2 {
		if _, err := store.PushStory(t.Context(), "acc-1", "story-1"); err != nil {
			t.Fatalf("unexpected push error: %v", err)
		}
	}
	account, err := store.FindByID(t.Context(), "acc-1")
	if err != nil {
		t.Fatalf("unexpected find error: %v", err)
	}
	if !slices.Equal(account.Stories, []string{"story-1"}) {
		t.Fatalf("expected a single story reference, got %v", account.Stories)
	}

	account, err = store.PullStory(t.Context(), "acc-1", "story-1")
	if err != nil {
		t.Fatalf("unexpected pull error: %v", err)
	}
	if len(account.Stories) != 0 {
		t.Fatalf("expected story to be removed, got %v", account.Stories)
	}
}

func TestGormStoreInsertStoryKeepsOrder(t *testing.T) {
	store := NewGormStore(openTestDatabase(t))
	seedAccount(t, store, "acc-1", "alice")
	for _, storyID := range []string{"story-1", "story-3"} {
		if _, err := store.PushStory(t.Context(), "acc-1", storyID); err != nil {
			t.Fatalf("unexpected push error: %v", err)
		}
	}

	account, err := store.InsertStory(t.Context(), "acc-1", "story-2", 1)
	if err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
	if !slices.Equal(account.Stories, []string{"story-1", "story-2", "story-3"}) {
		t.Fatalf("expected story inserted in place, got %v", account.Stories)
	}

	account, err = store.InsertStory(t.Context(), "acc-1", "story-2", 0)
	if err != nil {
		t.Fatalf("unexpected repeat insert error: %v", err)
	}
	if !slices.Equal(account.Stories, []string{"story-1", "story-2", "story-3"}) {
		t.Fatalf("expected repeat insert to be a no-op, got %v", account.Stories)
	}

	account, err = store.InsertStory(t.Context(), "acc-1", "story-4", 10)
	if err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
	if !slices.Equal(account.Stories, []string{"story-1", "story-2", "story-3", "story-4"}) {
		t.Fatalf("expected out-of-range position to append, got %v", account.Stories)
	}

	if _, err := store.InsertStory(t.Context(), "missing", "story-1", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGormStoreMutationsReportMissingAccount(t *testing.T) {
	store := NewGormStore(openTestDatabase(t))

	if _, err := store.PushStory(t.Context(), "missing", "story-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.Delete(t.Context(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on delete, got %v", err)
	}
}

func TestGormStorePullFavouriteEverywhere(t *testing.T) {
	store := NewGormStore(openTestDatabase(t))
	seedAccount(t, store, "acc-1", "alice")
	seedAccount(t, store, "acc-2", "bob")
	seedAccount(t, store, "acc-3", "carol")

	for _, id := range []string{"acc-1", "acc-2"} {
		if _, err := store.AddFavourite(t.Context(), id, "story-1"); err != nil {
			t.Fatalf("unexpected favourite error: %v", err)
		}
	}
	if _, err := store.AddFavourite(t.Context(), "acc-3", "story-10"); err != nil {
		t.Fatalf("unexpected favourite error: %v", err)
	}

	affected, err := store.PullFavouriteEverywhere(t.Context(), "story-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	slices.Sort(affected)
	if !slices.Equal(affected, []string{"acc-1", "acc-2"}) {
		t.Fatalf("unexpected affected accounts: %v", affected)
	}

	carol, err := store.FindByID(t.Context(), "acc-3")
	if err != nil {
		t.Fatalf("unexpected find error: %v", err)
	}
	if !slices.Equal(carol.FavouriteStories, []string{"story-10"}) {
		t.Fatalf("expected unrelated favourite to survive, got %v", carol.FavouriteStories)
	}
}

func TestGormStoreFindByUsernameOrEmail(t *testing.T) {
	store := NewGormStore(openTestDatabase(t))
	seedAccount(t, store, "acc-1", "alice")

	if _, err := store.FindByUsernameOrEmail(t.Context(), "ALICE", "none@example.com"); err != nil {
		t.Fatalf("expected username match, got %v", err)
	}
	if _, err := store.FindByUsernameOrEmail(t.Context(), "zed", "alice@example.com"); err != nil {
		t.Fatalf("expected email match, got %v", err)
	}
	if _, err := store.FindByUsernameOrEmail(t.Context(), "zed", "zed@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
