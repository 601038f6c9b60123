package stories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection holding story documents.
const CollectionName = "stories"

type mongoStore struct {
	collection *mongo.Collection
	clock      func() time.Time
}

// NewMongoStore returns a Store backed by the stories collection of db.
func NewMongoStore(db *mongo.Database, clock func() time.Time) Store {
	if clock == nil {
		clock = time.Now
	}
	return &mongoStore{collection: db.Collection(CollectionName), clock: clock}
}

// EnsureMongoIndexes creates the secondary indexes used by author and like lookups.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(CollectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "author", Value: 1}},
			Options: options.Index().SetName("idx_stories_author"),
		},
		{
			Keys:    bson.D{{Key: "likes", Value: 1}},
			Options: options.Index().SetName("idx_stories_likes"),
		},
	})
	return err
}

func (s *mongoStore) Create(ctx context.Context, story *Story) error {
	now := s.clock().UTC()
	story.CreatedAt = now
	story.UpdatedAt = now
	*story = story.withSlices()
	_, err := s.collection.InsertOne(ctx, story)
	return err
}

func (s *mongoStore) FindByID(ctx context.Context, id string) (Story, error) {
	var story Story
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&story)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Story{}, ErrNotFound
	}
	if err != nil {
		return Story{}, err
	}
	return story, nil
}

func (s *mongoStore) List(ctx context.Context) ([]Story, error) {
	return s.find(ctx, bson.D{})
}

func (s *mongoStore) ListByAuthor(ctx context.Context, authorID string) ([]Story, error) {
	return s.find(ctx, bson.M{"author": authorID})
}

func (s *mongoStore) Update(ctx context.Context, id string, update Update) (Story, error) {
	set := bson.M{}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Synopsis != nil {
		set["synopsis"] = *update.Synopsis
	}
	if update.Publish != nil {
		set["publish"] = *update.Publish
	}
	if update.Chapters != nil {
		chapters := *update.Chapters
		if chapters == nil {
			chapters = []Chapter{}
		}
		set["chapters"] = chapters
	}
	if len(set) == 0 {
		return s.FindByID(ctx, id)
	}
	return s.update(ctx, id, bson.M{"$set": set})
}

func (s *mongoStore) Delete(ctx context.Context, id string) (Story, error) {
	var deleted Story
	err := s.collection.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&deleted)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Story{}, ErrNotFound
	}
	if err != nil {
		return Story{}, err
	}
	return deleted, nil
}

func (s *mongoStore) AddLike(ctx context.Context, id string, accountID string) (Story, error) {
	return s.update(ctx, id, bson.M{"$addToSet": bson.M{"likes": accountID}})
}

func (s *mongoStore) RemoveLike(ctx context.Context, id string, accountID string) (Story, error) {
	return s.update(ctx, id, bson.M{"$pull": bson.M{"likes": accountID}})
}

func (s *mongoStore) SetPublish(ctx context.Context, id string, publish bool) (Story, error) {
	return s.update(ctx, id, bson.M{"$set": bson.M{"publish": publish}})
}

func (s *mongoStore) RemoveLikesBy(ctx context.Context, accountID string) ([]string, error) {
	liked, err := s.find(ctx, bson.M{"likes": accountID})
	if err != nil {
		return nil, err
	}
	if len(liked) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(liked))
	for _, story := range liked {
		ids = append(ids, story.ID)
	}
	_, err = s.collection.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{
			"$pull": bson.M{"likes": accountID},
			"$set":  bson.M{"updated_at": s.clock().UTC()},
		})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *mongoStore) find(ctx context.Context, filter any) ([]Story, error) {
	cursor, err := s.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stories []Story
	if err := cursor.All(ctx, &stories); err != nil {
		return nil, err
	}
	return stories, nil
}

func (s *mongoStore) update(ctx context.Context, id string, update bson.M) (Story, error) {
	set, _ := update["$set"].(bson.M)
	if set == nil {
		set = bson.M{}
	}
	set["updated_at"] = s.clock().UTC()
	update["$set"] = set

	var story Story
	err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&story)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Story{}, ErrNotFound
	}
	if err != nil {
		return Story{}, err
	}
	return story, nil
}
