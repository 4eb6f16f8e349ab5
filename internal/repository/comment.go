package repository

import (
	"context"

	"chorus/internal/models"
	"chorus/internal/observability"
	"chorus/internal/query"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	List(ctx context.Context, d query.Descriptor) (*query.Page[models.Comment], error)
	ListTopLevelByPost(ctx context.Context, postID uint) ([]models.Comment, error)
	ListReplies(ctx context.Context, parentID uint) ([]models.Comment, error)
	UpdateContent(ctx context.Context, id uint, content string) error
	SoftDelete(ctx context.Context, id uint) error
	SoftDeleteReplies(ctx context.Context, parentID uint) (int64, error)
	ToggleLike(ctx context.Context, commentID, userID uint) (bool, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// withPostTitle embeds the live post; a soft-deleted post leaves Post nil.
func withPostTitle(db *gorm.DB) *gorm.DB {
	return db.Preload("Post", func(tx *gorm.DB) *gorm.DB {
		return query.Live(tx, "posts").Select("id", "title", "author_id")
	})
}

// Create inserts comment if its post is still live. The check runs against
// the store, not the post cache, so a stale cached post cannot admit it.
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	defer observability.TrackQuery("create", "comments")()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := query.Live(tx.Model(&models.Post{}), "posts").Where("posts.id = ?", comment.PostID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.NewNotFoundError("Post", comment.PostID)
		}
		return tx.Omit(clause.Associations).Create(comment).Error
	})
	return storeError(err, "Comment", comment.ID)
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	defer observability.TrackQuery("get", "comments")()
	db := readDB(r.db).WithContext(ctx)

	var comment models.Comment
	err := withPostTitle(withAuthor(query.Live(db, "comments"))).First(&comment, "comments.id = ?", id).Error
	if err != nil {
		return nil, storeError(err, "Comment", id)
	}
	if err := r.attachLikes(db, []*models.Comment{&comment}); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) List(ctx context.Context, d query.Descriptor) (*query.Page[models.Comment], error) {
	plan, err := query.Compose(d, CommentCollection)
	if err != nil {
		return nil, err
	}

	defer observability.TrackQuery("list", "comments")()
	observability.ListingWindow.WithLabelValues("comments").Observe(float64(plan.Limit))

	db := readDB(r.db)
	page, err := query.Execute[models.Comment](ctx, db, plan, withAuthor, withPostTitle)
	if err != nil {
		return nil, err
	}
	if err := r.attachLikes(db.WithContext(ctx), pointers(page.Data)); err != nil {
		return nil, err
	}
	return page, nil
}

// ListTopLevelByPost returns the live top-level comments of a post, newest first.
func (r *commentRepository) ListTopLevelByPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	return r.listWhere(ctx, "comments.post_id = ? AND comments.parent_comment_id IS NULL", postID, "DESC")
}

// ListReplies returns the live replies under a top-level comment, oldest first.
func (r *commentRepository) ListReplies(ctx context.Context, parentID uint) ([]models.Comment, error) {
	return r.listWhere(ctx, "comments.parent_comment_id = ?", parentID, "ASC")
}

func (r *commentRepository) listWhere(ctx context.Context, cond string, arg uint, dir string) ([]models.Comment, error) {
	defer observability.TrackQuery("list", "comments")()
	db := readDB(r.db).WithContext(ctx)

	comments := []models.Comment{}
	err := withAuthor(query.Live(db, "comments")).
		Where(cond, arg).
		Order("comments.created_at " + dir).
		Order("comments.id " + dir).
		Find(&comments).Error
	if err != nil {
		return nil, storeError(err, "Comment", arg)
	}
	if err := r.attachLikes(db, pointers(comments)); err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *commentRepository) UpdateContent(ctx context.Context, id uint, content string) error {
	defer observability.TrackQuery("update", "comments")()
	res := query.Live(r.db.WithContext(ctx).Model(&models.Comment{}), "comments").
		Where("comments.id = ?", id).
		Update("content", content)
	if res.Error != nil {
		return storeError(res.Error, "Comment", id)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

func (r *commentRepository) SoftDelete(ctx context.Context, id uint) error {
	defer observability.TrackQuery("delete", "comments")()
	res := query.Live(r.db.WithContext(ctx).Model(&models.Comment{}), "comments").
		Where("comments.id = ?", id).
		Update("is_deleted", true)
	if res.Error != nil {
		return storeError(res.Error, "Comment", id)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

// SoftDeleteReplies marks every live reply under parentID deleted in one
// statement and returns how many rows changed.
func (r *commentRepository) SoftDeleteReplies(ctx context.Context, parentID uint) (int64, error) {
	defer observability.TrackQuery("cascade", "comments")()
	res := query.Live(r.db.WithContext(ctx).Model(&models.Comment{}), "comments").
		Where("comments.parent_comment_id = ?", parentID).
		Update("is_deleted", true)
	if res.Error != nil {
		return 0, storeError(res.Error, "Comment", parentID)
	}
	return res.RowsAffected, nil
}

// ToggleLike flips userID's like on a live comment and reports whether the
// comment is now liked.
func (r *commentRepository) ToggleLike(ctx context.Context, commentID, userID uint) (bool, error) {
	defer observability.TrackQuery("toggle_like", "comment_likes")()
	var liked bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := query.Live(tx.Model(&models.Comment{}), "comments").Where("comments.id = ?", commentID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.NewNotFoundError("Comment", commentID)
		}

		res := tx.Where("comment_id = ? AND user_id = ?", commentID, userID).Delete(&models.CommentLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			liked = false
			return nil
		}

		liked = true
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.CommentLike{CommentID: commentID, UserID: userID}).Error
	})
	if err != nil {
		return false, storeError(err, "Comment", commentID)
	}
	return liked, nil
}

func (r *commentRepository) attachLikes(db *gorm.DB, comments []*models.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	ids := make([]uint, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}

	var rows []models.CommentLike
	if err := db.Where("comment_id IN ?", ids).Order("created_at, user_id").Find(&rows).Error; err != nil {
		return storeError(err, "Comment", ids)
	}
	likes := make(map[uint][]uint, len(ids))
	for _, row := range rows {
		likes[row.CommentID] = append(likes[row.CommentID], row.UserID)
	}
	for _, c := range comments {
		c.Likes = likes[c.ID]
		if c.Likes == nil {
			c.Likes = []uint{}
		}
	}
	return nil
}

func pointers[T any](items []T) []*T {
	out := make([]*T, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}
