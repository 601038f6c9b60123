package accounts

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection holding account documents.
const CollectionName = "accounts"

type mongoStore struct {
	collection *mongo.Collection
	clock      func() time.Time
}

// NewMongoStore returns a Store backed by the accounts collection of db.
func NewMongoStore(db *mongo.Database, clock func() time.Time) Store {
	if clock == nil {
		clock = time.Now
	}
	return &mongoStore{collection: db.Collection(CollectionName), clock: clock}
}

// EnsureMongoIndexes creates the unique indexes backing username and email uniqueness.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(CollectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_accounts_username_key"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_accounts_email"),
		},
		{
			Keys:    bson.D{{Key: "favourite_stories", Value: 1}},
			Options: options.Index().SetName("idx_accounts_favourite_stories"),
		},
	})
	return err
}

func (s *mongoStore) Create(ctx context.Context, account *Account) error {
	now := s.clock().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	if account.Stories == nil {
		account.Stories = []string{}
	}
	if account.FavouriteStories == nil {
		account.FavouriteStories = []string{}
	}
	_, err := s.collection.InsertOne(ctx, account)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (s *mongoStore) FindByID(ctx context.Context, id string) (Account, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *mongoStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	return s.findOne(ctx, bson.M{"email": NormalizeEmail(email)})
}

func (s *mongoStore) FindByUsername(ctx context.Context, username string) (Account, error) {
	return s.findOne(ctx, bson.M{"username_key": UsernameKey(username)})
}

func (s *mongoStore) FindByUsernameOrEmail(ctx context.Context, username string, email string) (Account, error) {
	return s.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"username_key": UsernameKey(username)},
		bson.M{"email": NormalizeEmail(email)},
	}})
}

func (s *mongoStore) List(ctx context.Context) ([]Account, error) {
	cursor, err := s.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var accounts []Account
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *mongoStore) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (Account, error) {
	set := bson.M{}
	if update.ProfileImage != nil {
		set["profile_image"] = *update.ProfileImage
	}
	if update.Bio != nil {
		set["bio"] = *update.Bio
	}
	if len(set) == 0 {
		return s.FindByID(ctx, id)
	}
	return s.update(ctx, id, bson.M{"$set": set})
}

func (s *mongoStore) SetAdmin(ctx context.Context, id string, admin bool) (Account, error) {
	return s.update(ctx, id, bson.M{"$set": bson.M{"admin": admin}})
}

func (s *mongoStore) Delete(ctx context.Context, id string) (Account, error) {
	var deleted Account
	err := s.collection.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&deleted)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return deleted, nil
}

func (s *mongoStore) PushStory(ctx context.Context, id string, storyID string) (Account, error) {
	return s.update(ctx, id, bson.M{"$addToSet": bson.M{"stories": storyID}})
}

func (s *mongoStore) InsertStory(ctx context.Context, id string, storyID string, position int) (Account, error) {
	var account Account
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "stories": bson.M{"$ne": storyID}},
		bson.M{
			"$push": bson.M{"stories": bson.M{"$each": bson.A{storyID}, "$position": max(position, 0)}},
			"$set":  bson.M{"updated_at": s.clock().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Either the account is gone or the id is already linked.
		return s.findOne(ctx, bson.M{"_id": id})
	}
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

func (s *mongoStore) PullStory(ctx context.Context, id string, storyID string) (Account, error) {
	return s.update(ctx, id, bson.M{"$pull": bson.M{"stories": storyID}})
}

func (s *mongoStore) AddFavourite(ctx context.Context, id string, storyID string) (Account, error) {
	return s.update(ctx, id, bson.M{"$addToSet": bson.M{"favourite_stories": storyID}})
}

func (s *mongoStore) RemoveFavourite(ctx context.Context, id string, storyID string) (Account, error) {
	return s.update(ctx, id, bson.M{"$pull": bson.M{"favourite_stories": storyID}})
}

func (s *mongoStore) PullFavouriteEverywhere(ctx context.Context, storyID string) ([]string, error) {
	filter := bson.M{"favourite_stories": storyID}
	cursor, err := s.collection.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var references []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &references); err != nil {
		return nil, err
	}
	if len(references) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(references))
	for _, reference := range references {
		ids = append(ids, reference.ID)
	}
	_, err = s.collection.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{
			"$pull": bson.M{"favourite_stories": storyID},
			"$set":  bson.M{"updated_at": s.clock().UTC()},
		})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *mongoStore) findOne(ctx context.Context, filter any) (Account, error) {
	var account Account
	err := s.collection.FindOne(ctx, filter).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

func (s *mongoStore) update(ctx context.Context, id string, update bson.M) (Account, error) {
	set, _ := update["$set"].(bson.M)
	if set == nil {
		set = bson.M{}
	}
	set["updated_at"] = s.clock().UTC()
	update["$set"] = set

	var account Account
	err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return account, nil
}
