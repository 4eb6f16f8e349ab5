package seed

import (
	"fmt"
	"log/slog"

	"chorus/internal/middleware"
	"chorus/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Options sizes a seeding run.
type Options struct {
	Users           int
	Admins          int
	PostsPerUser    int
	CommentsPerPost int
	ReplyRatio      float64
	LikeRatio       float64
	MaxDays         int
}

// DefaultOptions is a small but fully connected demo dataset.
func DefaultOptions() Options {
	return Options{
		Users:           20,
		Admins:          1,
		PostsPerUser:    3,
		CommentsPerPost: 4,
		ReplyRatio:      0.5,
		LikeRatio:       0.3,
		MaxDays:         30,
	}
}

// Result lists what a run created.
type Result struct {
	Users    []*models.User
	Posts    []*models.Post
	Comments []*models.Comment
	Likes    int
}

// Seeder fills a database with demo content.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
}

func NewSeeder(db *gorm.DB, seed int64) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db, seed)}
}

// ClearAll removes every row the seeder may have created.
func (s *Seeder) ClearAll() error {
	tables := []any{&models.CommentLike{}, &models.PostLike{}, &models.Comment{}, &models.Post{}, &models.User{}}
	for _, t := range tables {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(t).Error; err != nil {
			return fmt.Errorf("clear %T: %w", t, err)
		}
	}
	middleware.Logger.Info("database cleared")
	return nil
}

// Run creates users, their posts, comment threads and likes.
func (s *Seeder) Run(opts Options) (*Result, error) {
	f := s.factory
	res := &Result{}

	for i := 0; i < opts.Users; i++ {
		role := models.RoleUser
		if i < opts.Admins {
			role = models.RoleAdmin
		}
		u, err := f.CreateUser(role)
		if err != nil {
			return nil, err
		}
		res.Users = append(res.Users, u)
	}
	if len(res.Users) == 0 {
		return res, nil
	}

	for _, u := range res.Users {
		batch := make([]*models.Post, 0, opts.PostsPerUser)
		for i := 0; i < opts.PostsPerUser; i++ {
			batch = append(batch, f.BuildPost(u, opts.MaxDays))
		}
		if err := f.CreatePosts(batch); err != nil {
			return nil, fmt.Errorf("create posts: %w", err)
		}
		res.Posts = append(res.Posts, batch...)
	}

	for _, p := range res.Posts {
		var thread []*models.Comment
		for i := 0; i < opts.CommentsPerPost; i++ {
			var parent *models.Comment
			if len(thread) > 0 && f.faker.Float64() < opts.ReplyRatio {
				parent = thread[f.faker.Number(0, len(thread)-1)]
			}
			c, err := f.CreateComment(s.pick(res.Users), p, parent)
			if err != nil {
				return nil, err
			}
			thread = append(thread, c)
		}
		res.Comments = append(res.Comments, thread...)
	}

	likes, err := s.seedLikes(res, opts.LikeRatio)
	if err != nil {
		return nil, err
	}
	res.Likes = likes

	middleware.Logger.Info("seeding complete",
		slog.Int("users", len(res.Users)),
		slog.Int("posts", len(res.Posts)),
		slog.Int("comments", len(res.Comments)),
		slog.Int("likes", res.Likes),
	)
	return res, nil
}

func (s *Seeder) seedLikes(res *Result, ratio float64) (int, error) {
	var postLikes []models.PostLike
	for _, p := range res.Posts {
		for _, u := range res.Users {
			if s.factory.faker.Float64() < ratio {
				postLikes = append(postLikes, models.PostLike{PostID: p.ID, UserID: u.ID})
			}
		}
	}
	var commentLikes []models.CommentLike
	for _, c := range res.Comments {
		for _, u := range res.Users {
			if s.factory.faker.Float64() < ratio/2 {
				commentLikes = append(commentLikes, models.CommentLike{CommentID: c.ID, UserID: u.ID})
			}
		}
	}

	if len(postLikes) > 0 {
		if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(postLikes, 200).Error; err != nil {
			return 0, fmt.Errorf("create post likes: %w", err)
		}
	}
	if len(commentLikes) > 0 {
		if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(commentLikes, 200).Error; err != nil {
			return 0, fmt.Errorf("create comment likes: %w", err)
		}
	}
	return len(postLikes) + len(commentLikes), nil
}

func (s *Seeder) pick(users []*models.User) *models.User {
	return users[s.factory.faker.Number(0, len(users)-1)]
}
