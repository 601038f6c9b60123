package stories

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormStore struct {
	db *gorm.DB
}

// NewGormStore returns a Store backed by the stories table.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Create(ctx context.Context, story *Story) error {
	return s.db.WithContext(ctx).Create(story).Error
}

func (s *gormStore) FindByID(ctx context.Context, id string) (Story, error) {
	var story Story
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&story).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Story{}, ErrNotFound
	}
	if err != nil {
		return Story{}, err
	}
	return story, nil
}

func (s *gormStore) List(ctx context.Context) ([]Story, error) {
	var stories []Story
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&stories).Error; err != nil {
		return nil, err
	}
	return stories, nil
}

func (s *gormStore) ListByAuthor(ctx context.Context, authorID string) ([]Story, error) {
	var stories []Story
	if err := s.db.WithContext(ctx).Where("author = ?", authorID).Order("created_at ASC").Find(&stories).Error; err != nil {
		return nil, err
	}
	return stories, nil
}

func (s *gormStore) Update(ctx context.Context, id string, update Update) (Story, error) {
	return s.mutate(ctx, id, func(story Story) (Story, bool) {
		return update.Apply(story), !update.IsEmpty()
	})
}

func (s *gormStore) Delete(ctx context.Context, id string) (Story, error) {
	var deleted Story
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Take(&deleted).Error; err != nil {
			return err
		}
		return tx.Delete(&Story{}, "id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Story{}, ErrNotFound
	}
	if err != nil {
		return Story{}, err
	}
	return deleted, nil
}

func (s *gormStore) AddLike(ctx context.Context, id string, accountID string) (Story, error) {
	return s.mutate(ctx, id, func(story Story) (Story, bool) {
		return AddLike(story, accountID), !IsLikedBy(story, accountID)
	})
}

func (s *gormStore) RemoveLike(ctx context.Context, id string, accountID string) (Story, error) {
	return s.mutate(ctx, id, func(story Story) (Story, bool) {
		return RemoveLike(story, accountID), IsLikedBy(story, accountID)
	})
}

func (s *gormStore) SetPublish(ctx context.Context, id string, publish bool) (Story, error) {
	return s.mutate(ctx, id, func(story Story) (Story, bool) {
		changed := story.Publish != publish
		story.Publish = publish
		return story, changed
	})
}

func (s *gormStore) RemoveLikesBy(ctx context.Context, accountID string) ([]string, error) {
	var affected []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []Story
		// Textual prefilter on the JSON column; membership is then checked exactly.
		if err := tx.Where("likes LIKE ?", "%\""+accountID+"\"%").Find(&candidates).Error; err != nil {
			return err
		}
		for _, story := range candidates {
			if !IsLikedBy(story, accountID) {
				continue
			}
			updated := RemoveLike(story, accountID)
			if err := tx.Save(&updated).Error; err != nil {
				return err
			}
			affected = append(affected, story.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return affected, nil
}

// mutate loads, changes and saves one story inside a single transaction.
func (s *gormStore) mutate(ctx context.Context, id string, change func(Story) (Story, bool)) (Story, error) {
	var result Story
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var story Story
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&story).Error; err != nil {
			return err
		}
		updated, changed := change(story)
		if changed {
			if err := tx.Save(&updated).Error; err != nil {
				return err
			}
		}
		result = updated
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Story{}, ErrNotFound
	}
	if err != nil {
		return Story{}, err
	}
	return result, nil
}
