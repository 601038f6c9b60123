package database

import (
	"errors"
	"time"

	"github.com/inkpath/backend/internal/accounts"
	"github.com/inkpath/backend/internal/stories"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillAccountDefaults  = "2026-09-14_backfill_account_defaults"
	migrationBackfillStoryCollections = "2026-09-21_backfill_story_collections"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillAccountDefaults, apply: backfillAccountDefaults},
		{name: migrationBackfillStoryCollections, apply: backfillStoryCollections},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Transaction(migration.apply); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillAccountDefaults fills profile fields and the username key of rows written before
// those columns were populated.
func backfillAccountDefaults(tx *gorm.DB) error {
	if err := tx.Model(&accounts.Account{}).
		Where("bio = '' OR bio IS NULL").
		Update("bio", accounts.DefaultBio).Error; err != nil {
		return err
	}
	if err := tx.Model(&accounts.Account{}).
		Where("profile_image = '' OR profile_image IS NULL").
		Update("profile_image", accounts.DefaultProfileImage).Error; err != nil {
		return err
	}
	return tx.Exec("UPDATE accounts SET username_key = lower(username) WHERE username_key = '' OR username_key IS NULL").Error
}

// backfillStoryCollections replaces null JSON collections with empty arrays.
func backfillStoryCollections(tx *gorm.DB) error {
	table := stories.Story{}.TableName()
	if err := tx.Exec("UPDATE " + table + " SET likes = '[]' WHERE likes IS NULL OR likes = 'null' OR likes = ''").Error; err != nil {
		return err
	}
	return tx.Exec("UPDATE " + table + " SET chapters = '[]' WHERE chapters IS NULL OR chapters = 'null' OR chapters = ''").Error
}
