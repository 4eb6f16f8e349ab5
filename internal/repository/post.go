package repository

import (
	"context"

	"chorus/internal/cache"
	"chorus/internal/models"
	"chorus/internal/observability"
	"chorus/internal/query"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context, d query.Descriptor) (*query.Page[models.Post], error)
	ListByAuthor(ctx context.Context, authorID uint, d query.Descriptor) (*query.Page[models.Post], error)
	Update(ctx context.Context, post *models.Post) error
	SoftDelete(ctx context.Context, id uint) error
	ToggleLike(ctx context.Context, postID, userID uint) (bool, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", "posts")()
	return storeError(r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error, "Post", post.ID)
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		defer observability.TrackQuery("get", "posts")()
		db := readDB(r.db).WithContext(ctx)
		if err := withAuthor(query.Live(db, "posts")).First(&post, "posts.id = ?", id).Error; err != nil {
			return err
		}
		likes, err := postLikes(db, []uint{post.ID})
		if err != nil {
			return err
		}
		post.Likes = likes[post.ID]
		return nil
	})
	if err != nil {
		return nil, storeError(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, d query.Descriptor) (*query.Page[models.Post], error) {
	plan, err := query.Compose(d, PostCollection)
	if err != nil {
		return nil, err
	}
	return r.execute(ctx, plan)
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID uint, d query.Descriptor) (*query.Page[models.Post], error) {
	plan, err := query.Compose(d, PostCollection)
	if err != nil {
		return nil, err
	}
	return r.execute(ctx, plan.And("posts.author_id = ?", authorID))
}

func (r *postRepository) execute(ctx context.Context, plan query.Plan) (*query.Page[models.Post], error) {
	defer observability.TrackQuery("list", "posts")()
	observability.ListingWindow.WithLabelValues("posts").Observe(float64(plan.Limit))

	db := readDB(r.db)
	page, err := query.Execute[models.Post](ctx, db, plan, withAuthor)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, len(page.Data))
	for i := range page.Data {
		ids[i] = page.Data[i].ID
	}
	likes, err := postLikes(db.WithContext(ctx), ids)
	if err != nil {
		return nil, storeError(err, "Post", ids)
	}
	for i := range page.Data {
		page.Data[i].Likes = likes[page.Data[i].ID]
	}
	return page, nil
}

// Update writes the mutable post fields. Author and likes are never written here.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("update", "posts")()
	res := query.Live(r.db.WithContext(ctx).Model(&models.Post{ID: post.ID}), "posts").
		Select("title", "content", "images", "status", "updated_at").
		Updates(post)
	if res.Error != nil {
		return storeError(res.Error, "Post", post.ID)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", post.ID)
	}
	cache.InvalidatePost(ctx, post.ID)
	return nil
}

func (r *postRepository) SoftDelete(ctx context.Context, id uint) error {
	defer observability.TrackQuery("delete", "posts")()
	res := query.Live(r.db.WithContext(ctx).Model(&models.Post{}), "posts").
		Where("posts.id = ?", id).
		Update("is_deleted", true)
	if res.Error != nil {
		return storeError(res.Error, "Post", id)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	cache.InvalidatePost(ctx, id)
	return nil
}

// ToggleLike flips userID's like on a live post and reports whether the post
// is now liked.
func (r *postRepository) ToggleLike(ctx context.Context, postID, userID uint) (bool, error) {
	defer observability.TrackQuery("toggle_like", "post_likes")()
	var liked bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := query.Live(tx.Model(&models.Post{}), "posts").Where("posts.id = ?", postID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.NewNotFoundError("Post", postID)
		}

		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			liked = false
			return nil
		}

		liked = true
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.PostLike{PostID: postID, UserID: userID}).Error
	})
	if err != nil {
		return false, storeError(err, "Post", postID)
	}
	cache.InvalidatePost(ctx, postID)
	return liked, nil
}

func postLikes(db *gorm.DB, postIDs []uint) (map[uint][]uint, error) {
	out := make(map[uint][]uint, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	var rows []models.PostLike
	if err := db.Where("post_id IN ?", postIDs).Order("created_at, user_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.PostID] = append(out[row.PostID], row.UserID)
	}
	for _, id := range postIDs {
		if out[id] == nil {
			out[id] = []uint{}
		}
	}
	return out, nil
}
