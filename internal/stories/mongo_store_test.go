package stories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoURIEnv = "INKPATH_TEST_MONGO_URI"

func openTestMongo(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv(mongoURIEnv)
	if uri == "" {
		t.Skipf("%s not set", mongoURIEnv)
	}
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("failed to connect to mongo: %v", err)
	}
	database := client.Database(fmt.Sprintf("inkpath_stories_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cleanupCancel()
		_ = database.Drop(cleanupCtx)
		_ = client.Disconnect(cleanupCtx)
	})
	if err := EnsureMongoIndexes(ctx, database); err != nil {
		t.Fatalf("failed to create indexes: %v", err)
	}
	return database
}

func TestMongoStoreLikesAreSetLike(t *testing.T) {
	store := NewMongoStore(openTestMongo(t), nil)
	seedStory(t, store, "story-1", "alice")

	for range 2 {
		if _, err := store.AddLike(t.Context(), "story-1", "bob"); err != nil {
			t.Fatalf("unexpected like error: %v", err)
		}
	}
	story, err := store.RemoveLike(t.Context(), "story-1", "carol")
	if err != nil {
		t.Fatalf("unexpected unlike error: %v", err)
	}
	if !slices.Equal(story.Likes, []string{"bob"}) {
		t.Fatalf("expected likes [bob], got %v", story.Likes)
	}

	affected, err := store.RemoveLikesBy(t.Context(), "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(affected, []string{"story-1"}) {
		t.Fatalf("unexpected affected stories: %v", affected)
	}
}

func TestMongoStoreUpdateAndDelete(t *testing.T) {
	store := NewMongoStore(openTestMongo(t), nil)
	seedStory(t, store, "story-1", "alice")

	title := "Renamed"
	chapters := []Chapter{{Scenes: []Scene{{Title: "Start"}}}}
	story, err := store.Update(t.Context(), "story-1", Update{Title: &title, Chapters: &chapters})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if story.Title != title || len(story.Chapters) != 1 || story.Author != "alice" {
		t.Fatalf("unexpected updated story: %+v", story)
	}

	if _, err := store.Delete(t.Context(), "story-1"); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if _, err := store.FindByID(t.Context(), "story-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if _, err := store.SetPublish(t.Context(), "story-1", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on publish, got %v", err)
	}
}
