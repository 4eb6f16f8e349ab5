package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	"chorus/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}))
	return db
}

func seedPosts(t *testing.T, db *gorm.DB, posts ...models.Post) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range posts {
		if posts[i].CreatedAt.IsZero() {
			posts[i].CreatedAt = start.Add(time.Duration(i) * time.Minute)
		}
		if posts[i].Status == "" {
			posts[i].Status = models.PostStatusPublished
		}
		require.NoError(t, db.Create(&posts[i]).Error)
	}
}

func run(t *testing.T, db *gorm.DB, params map[string]string) *Page[models.Post] {
	t.Helper()
	plan, err := Compose(Parse(params), postsCollection)
	require.NoError(t, err)
	page, err := Execute[models.Post](context.Background(), db, plan)
	require.NoError(t, err)
	return page
}

func titles(posts []models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Title)
	}
	return out
}

func TestExecute_PaginationBoundAndCount(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	var posts []models.Post
	for i := 0; i < 25; i++ {
		posts = append(posts, models.Post{Title: fmt.Sprintf("post %02d", i), Content: "body", AuthorID: 1})
	}
	seedPosts(t, db, posts...)

	for page, want := range map[int]int{1: 10, 2: 10, 3: 5, 4: 0} {
		got := run(t, db, map[string]string{KeyPage: fmt.Sprint(page)})
		assert.Len(t, got.Data, want, "page %d", page)
		assert.Equal(t, int64(25), got.Meta.Total, "page %d", page)
		assert.Equal(t, 3, got.Meta.TotalPage)
		assert.Equal(t, page, got.Meta.Page)
		assert.Equal(t, 10, got.Meta.Limit)
	}

	first := run(t, db, nil)
	assert.Equal(t, "post 24", first.Data[0].Title)
	assert.Equal(t, "post 15", first.Data[9].Title)
}

func TestExecute_SearchIsCaseInsensitiveAcrossFields(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	seedPosts(t, db,
		models.Post{Title: "Learning Go", Content: "channels", AuthorID: 1},
		models.Post{Title: "Rust notes", Content: "borrow checker vs GO", AuthorID: 1},
		models.Post{Title: "Cooking", Content: "pasta", AuthorID: 1},
		models.Post{Title: "50% off", Content: "sale", AuthorID: 1},
	)

	got := run(t, db, map[string]string{KeySearchTerm: "go", KeySortOrder: "asc"})
	assert.Equal(t, []string{"Learning Go", "Rust notes"}, titles(got.Data))
	assert.Equal(t, int64(2), got.Meta.Total)

	got = run(t, db, map[string]string{KeySearchTerm: "%"})
	assert.Equal(t, []string{"50% off"}, titles(got.Data))

	all := run(t, db, map[string]string{KeySearchTerm: "   "})
	assert.Equal(t, int64(4), all.Meta.Total)
}

func TestExecute_FiltersCombine(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	seedPosts(t, db,
		models.Post{Title: "a", Content: "x", AuthorID: 1, Status: models.PostStatusDraft},
		models.Post{Title: "b", Content: "x", AuthorID: 2},
		models.Post{Title: "c", Content: "x", AuthorID: 3},
		models.Post{Title: "d", Content: "x", AuthorID: 1},
	)

	got := run(t, db, map[string]string{"author": "1,2", KeySortOrder: "asc"})
	assert.Equal(t, []string{"a", "b", "d"}, titles(got.Data))

	got = run(t, db, map[string]string{"author": "1,2", "status": "published", KeySortOrder: "asc"})
	assert.Equal(t, []string{"b", "d"}, titles(got.Data))

	got = run(t, db, map[string]string{"author": "nobody"})
	assert.Empty(t, got.Data)
	assert.Equal(t, int64(0), got.Meta.Total)

	got = run(t, db, map[string]string{"unknown": "1"})
	assert.Equal(t, int64(4), got.Meta.Total)
}

func TestExecute_SkipsSoftDeleted(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	seedPosts(t, db,
		models.Post{Title: "kept", Content: "x", AuthorID: 1},
		models.Post{Title: "gone", Content: "x", AuthorID: 1},
	)
	require.NoError(t, db.Model(&models.Post{}).Where("title = ?", "gone").Update("is_deleted", true).Error)

	got := run(t, db, nil)
	assert.Equal(t, []string{"kept"}, titles(got.Data))
	assert.Equal(t, int64(1), got.Meta.Total)
}

func TestExecute_TiesBreakOnID(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	same := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	seedPosts(t, db,
		models.Post{Title: "first", Content: "x", AuthorID: 1, CreatedAt: same},
		models.Post{Title: "second", Content: "x", AuthorID: 1, CreatedAt: same},
		models.Post{Title: "third", Content: "x", AuthorID: 1, CreatedAt: same},
	)

	desc := run(t, db, map[string]string{KeyLimit: "2"})
	assert.Equal(t, []string{"third", "second"}, titles(desc.Data))
	next := run(t, db, map[string]string{KeyLimit: "2", KeyPage: "2"})
	assert.Equal(t, []string{"first"}, titles(next.Data))
}

func TestExecute_ProjectionAndExtraCondition(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	seedPosts(t, db,
		models.Post{Title: "mine", Content: "secret body", AuthorID: 5},
		models.Post{Title: "theirs", Content: "x", AuthorID: 6},
	)

	plan, err := Compose(Parse(map[string]string{KeyFields: "title"}), postsCollection)
	require.NoError(t, err)
	page, err := Execute[models.Post](context.Background(), db, plan.And("posts.author_id = ?", uint(5)))
	require.NoError(t, err)

	require.Len(t, page.Data, 1)
	assert.Equal(t, "mine", page.Data[0].Title)
	assert.Empty(t, page.Data[0].Content)
	assert.NotZero(t, page.Data[0].ID)
	assert.Equal(t, uint(5), page.Data[0].AuthorID)
	assert.Equal(t, int64(1), page.Meta.Total)
}
