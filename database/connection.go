package database

import (
	"fmt"

	"blogapi/config"
	"blogapi/models"
	"blogapi/observability"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the store selected by DB_DRIVER.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	level := logger.Info
	if cfg.IsProduction() {
		level = logger.Warn
	}

	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DBPath)
	default:
		dialector = postgres.Open(cfg.DatabaseURL())
	}

	db, err := Open(dialector, level)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	observability.Logger().Info("database connected", "driver", cfg.DBDriver)
	return db, nil
}

// Open wraps gorm.Open with the settings every connection in this service shares.
func Open(dialector gorm.Dialector, level logger.LogLevel) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.PostTag{},
		&models.PostLike{},
		&models.Comment{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := backfillSearchKeys(db); err != nil {
		return fmt.Errorf("failed to backfill search keys: %w", err)
	}

	observability.Logger().Info("database migrated")
	return nil
}

// backfillSearchKeys fills the folded search columns of rows written before
// those columns existed. Rows that already have a key are left alone.
func backfillSearchKeys(db *gorm.DB) error {
	var posts []models.Post
	err := db.Select("id", "title", "content").Where("search_text = ?", "").
		FindInBatches(&posts, 200, func(tx *gorm.DB, _ int) error {
			for i := range posts {
				key := models.SearchKey(posts[i].Title, posts[i].Content)
				if err := tx.Model(&posts[i]).UpdateColumn("search_text", key).Error; err != nil {
					return err
				}
			}
			return nil
		}).Error
	if err != nil {
		return err
	}

	var users []models.User
	return db.Select("id", "username").Where("username_key = ?", "").
		FindInBatches(&users, 200, func(tx *gorm.DB, _ int) error {
			for i := range users {
				key := models.SearchKey(users[i].Username)
				if err := tx.Model(&users[i]).UpdateColumn("username_key", key).Error; err != nil {
					return err
				}
			}
			return nil
		}).Error
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
