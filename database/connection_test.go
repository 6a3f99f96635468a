package database

import (
	"path/filepath"
	"testing"

	"blogapi/config"
	"blogapi/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestConnectAndMigrate_SQLite(t *testing.T) {
	cfg := &config.Config{
		Env:      "test",
		DBDriver: "sqlite",
		DBPath:   filepath.Join(t.TempDir(), "blog.db"),
	}

	db, err := Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Migrate(db))

	for _, table := range []interface{}{&models.User{}, &models.Post{}, &models.PostTag{}, &models.PostLike{}, &models.Comment{}} {
		assert.True(t, db.Migrator().HasTable(table))
	}
	assert.True(t, db.Migrator().HasIndex(&models.Post{}, "idx_posts_author_created"))
	assert.True(t, db.Migrator().HasIndex(&models.Post{}, "idx_posts_published_created"))
}

func TestMigrate_IsIdempotent(t *testing.T) {
	db, err := Connect(&config.Config{DBDriver: "sqlite", DBPath: filepath.Join(t.TempDir(), "blog.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Migrate(db))
	assert.NoError(t, Migrate(db))
}

func TestUniqueEmailIsTranslated(t *testing.T) {
	db, err := Connect(&config.Config{DBDriver: "sqlite", DBPath: filepath.Join(t.TempDir(), "blog.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	require.NoError(t, Migrate(db))

	require.NoError(t, db.Create(&models.User{Username: "a", Email: "a@example.com", Password: "x"}).Error)
	err = db.Create(&models.User{Username: "b", Email: "a@example.com", Password: "x"}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestMigrate_BackfillsSearchKeys(t *testing.T) {
	db, err := Connect(&config.Config{DBDriver: "sqlite", DBPath: filepath.Join(t.TempDir(), "blog.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	require.NoError(t, Migrate(db))

	user := &models.User{Username: "Zoë", Email: "zoe@example.com", Password: "x"}
	require.NoError(t, db.Create(user).Error)
	post := &models.Post{AuthorID: user.ID, Title: "École", Content: "Ça marche", Category: models.CategoryOther}
	require.NoError(t, db.Create(post).Error)

	require.NoError(t, db.Model(user).UpdateColumn("username_key", "").Error)
	require.NoError(t, db.Model(post).UpdateColumn("search_text", "").Error)

	require.NoError(t, Migrate(db))

	var gotUser models.User
	require.NoError(t, db.First(&gotUser, user.ID).Error)
	assert.Equal(t, "zoë", gotUser.UsernameKey)

	var gotPost models.Post
	require.NoError(t, db.First(&gotPost, post.ID).Error)
	assert.Equal(t, "école\nça marche", gotPost.SearchText)
}
