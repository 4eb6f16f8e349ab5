// Package seed creates demo data for development databases: users, posts,
// comment threads and likes.
package seed

import (
	"fmt"
	"time"

	"chorus/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them.
type Factory struct {
	db    *gorm.DB
	faker *gofakeit.Faker
	now   time.Time
}

// NewFactory creates a Factory. A zero seed draws from the clock.
func NewFactory(db *gorm.DB, seed int64) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{db: db, faker: gofakeit.New(seed), now: time.Now()}
}

// CreateUser persists a user with generated profile data.
func (f *Factory) CreateUser(role string) (*models.User, error) {
	user := &models.User{
		FullName: f.faker.Name(),
		Email:    fmt.Sprintf("%s.%d@example.com", f.faker.Username(), f.faker.Number(1000, 9999)),
		Image:    fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
		Role:     role,
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// BuildPost returns an unsaved post by author with a creation time spread
// over the last maxDays days.
func (f *Factory) BuildPost(author *models.User, maxDays int) *models.Post {
	if maxDays <= 0 {
		maxDays = 30
	}
	status := models.PostStatusPublished
	if f.faker.Number(1, 10) == 1 {
		status = models.PostStatusDraft
	}

	images := make([]string, f.faker.Number(0, 3))
	for i := range images {
		images[i] = fmt.Sprintf("https://picsum.photos/seed/%s/800/600", f.faker.UUID())
	}

	return &models.Post{
		Title:     f.faker.Sentence(6),
		Content:   f.faker.Paragraph(2, 4, 12, "\n\n"),
		AuthorID:  author.ID,
		Images:    images,
		Status:    status,
		CreatedAt: f.pastTime(maxDays),
	}
}

// CreatePosts persists posts in one batch.
func (f *Factory) CreatePosts(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	return f.db.Omit("Author").Create(&posts).Error
}

// CreateComment persists a comment on post. When parent is set the comment
// is placed in the parent's thread: a reply to a reply hangs off the same
// top-level comment.
func (f *Factory) CreateComment(author *models.User, post *models.Post, parent *models.Comment) (*models.Comment, error) {
	c := &models.Comment{
		Content:  f.faker.Sentence(f.faker.Number(4, 20)),
		AuthorID: author.ID,
		PostID:   post.ID,
	}
	created := post.CreatedAt.Add(time.Duration(f.faker.Number(1, 600)) * time.Minute)
	if parent != nil {
		top := parent.ID
		if parent.ParentCommentID != nil {
			top = *parent.ParentCommentID
		}
		replyingTo := parent.ID
		c.ParentCommentID = &top
		c.ReplyingToID = &replyingTo
		created = parent.CreatedAt.Add(time.Duration(f.faker.Number(1, 120)) * time.Minute)
	}
	c.CreatedAt = created

	if err := f.db.Omit("Author", "Post").Create(c).Error; err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return c, nil
}

func (f *Factory) pastTime(maxDays int) time.Time {
	back := time.Duration(f.faker.Number(0, maxDays*24*60)) * time.Minute
	return f.now.Add(-back)
}
