package accounts

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormStore struct {
	db *gorm.DB
}

// NewGormStore returns a Store backed by the accounts table.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Create(ctx context.Context, account *Account) error {
	err := s.db.WithContext(ctx).Create(account).Error
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *gormStore) FindByID(ctx context.Context, id string) (Account, error) {
	return s.take(s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *gormStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	return s.take(s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)))
}

func (s *gormStore) FindByUsername(ctx context.Context, username string) (Account, error) {
	return s.take(s.db.WithContext(ctx).Where("username_key = ?", UsernameKey(username)))
}

func (s *gormStore) FindByUsernameOrEmail(ctx context.Context, username string, email string) (Account, error) {
	return s.take(s.db.WithContext(ctx).
		Where("username_key = ? OR email = ?", UsernameKey(username), NormalizeEmail(email)))
}

func (s *gormStore) List(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *gormStore) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (Account, error) {
	return s.mutate(ctx, id, func(account Account) (Account, bool) {
		return update.Apply(account), !update.IsEmpty()
	})
}

func (s *gormStore) SetAdmin(ctx context.Context, id string, admin bool) (Account, error) {
	return s.mutate(ctx, id, func(account Account) (Account, bool) {
		changed := account.Admin != admin
		account.Admin = admin
		return account, changed
	})
}

func (s *gormStore) Delete(ctx context.Context, id string) (Account, error) {
	var deleted Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Take(&deleted).Error; err != nil {
			return err
		}
		return tx.Delete(&Account{}, "id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return deleted, nil
}

func (s *gormStore) PushStory(ctx context.Context, id string, storyID string) (Account, error) {
	return s.mutate(ctx, id, func(account Account) (Account, bool) {
		var changed bool
		account.Stories, changed = appendUnique(account.Stories, storyID)
		return account, changed
	})
}

func (s *gormStore) InsertStory(ctx context.Context, id string, storyID string, position int) (Account, error) {
	return s.mutate(ctx, id, func(account Account) (Account, bool) {
		var changed bool
		account.Stories, changed = insertUnique(account.Stories, storyID, position)
		return account, changed
	})
}

func (s *gormStore) PullStory(ctx context.Context, id string, storyID string) (Account, error) {
	return s.mutate(ctx, id, func(account Account) (Account, bool) {
		var changed bool
		account.Stories, changed = removeValue(account.Stories, storyID)
		return account, changed
	})
}

func (s *gormStore) AddFavourite(ctx context.Context, id string, storyID string) (Account, error) {
	return s.mutate(ctx, id, func(account Account) (Account, bool) {
		var changed bool
		account.FavouriteStories, changed = appendUnique(account.FavouriteStories, storyID)
		return account, changed
	})
}

func (s *gormStore) RemoveFavourite(ctx context.Context, id string, storyID string) (Account, error) {
	return s.mutate(ctx, id, func(account Account) (Account, bool) {
		var changed bool
		account.FavouriteStories, changed = removeValue(account.FavouriteStories, storyID)
		return account, changed
	})
}

func (s *gormStore) PullFavouriteEverywhere(ctx context.Context, storyID string) ([]string, error) {
	var affected []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []Account
		// The JSON column is matched textually first, membership is then checked exactly.
		if err := tx.Where("favourite_stories LIKE ?", "%\""+storyID+"\"%").
			Find(&candidates).Error; err != nil {
			return err
		}
		for _, account := range candidates {
			filtered, removed := removeValue(account.FavouriteStories, storyID)
			if !removed {
				continue
			}
			account.FavouriteStories = filtered
			if err := tx.Save(&account).Error; err != nil {
				return err
			}
			affected = append(affected, account.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return affected, nil
}

func (s *gormStore) take(query *gorm.DB) (Account, error) {
	var account Account
	err := query.Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// mutate loads, changes and saves one account inside a single transaction.
func (s *gormStore) mutate(ctx context.Context, id string, change func(Account) (Account, bool)) (Account, error) {
	var result Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account Account
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&account).Error; err != nil {
			return err
		}
		updated, changed := change(account)
		if changed {
			if err := tx.Save(&updated).Error; err != nil {
				return err
			}
		}
		result = updated
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return result, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
