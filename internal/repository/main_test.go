package repository

import (
	"testing"
	"time"

	"chorus/internal/database"
	"chorus/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

type fixture struct {
	alice, bob, carol models.User
	post              models.Post
}

func seedFixture(t *testing.T, db *gorm.DB) fixture {
	t.Helper()
	f := fixture{
		alice: models.User{FullName: "Alice", Email: "alice@example.com", Role: models.RoleUser},
		bob:   models.User{FullName: "Bob", Email: "bob@example.com", Role: models.RoleUser},
		carol: models.User{FullName: "Carol", Email: "carol@example.com", Role: models.RoleAdmin},
	}
	require.NoError(t, db.Create(&f.alice).Error)
	require.NoError(t, db.Create(&f.bob).Error)
	require.NoError(t, db.Create(&f.carol).Error)

	f.post = models.Post{Title: "Hello", Content: "First post", AuthorID: f.alice.ID, Status: models.PostStatusPublished}
	require.NoError(t, db.Create(&f.post).Error)
	return f
}

func createComment(t *testing.T, db *gorm.DB, c models.Comment, at time.Time) models.Comment {
	t.Helper()
	c.CreatedAt = at
	require.NoError(t, db.Omit("Author", "Post").Create(&c).Error)
	return c
}
