// Package service holds the business rules for posts and comments.
package service

import (
	"context"

	"chorus/internal/models"
	"chorus/internal/observability"
	"chorus/internal/query"
	"chorus/internal/repository"
	"chorus/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

type PostService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
}

type CreatePostInput struct {
	AuthorID uint     `json:"-"`
	Title    string   `json:"title" validate:"required,max=300"`
	Content  string   `json:"content" validate:"required,max=50000"`
	Images   []string `json:"images" validate:"max=10,dive,required,max=2048"`
	Status   string   `json:"status" validate:"omitempty,oneof=published draft"`
}

// UpdatePostInput carries the fields a post author may change. Nil fields are
// left untouched.
type UpdatePostInput struct {
	UserID  uint      `json:"-"`
	PostID  uint      `json:"-"`
	Title   *string   `json:"title" validate:"omitempty,min=1,max=300"`
	Content *string   `json:"content" validate:"omitempty,min=1,max=50000"`
	Images  *[]string `json:"images" validate:"omitempty,max=10,dive,required,max=2048"`
	Status  *string   `json:"status" validate:"omitempty,oneof=published draft"`
}

func NewPostService(postRepo repository.PostRepository, userRepo repository.UserRepository) *PostService {
	return &PostService{
		postRepo: postRepo,
		userRepo: userRepo,
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetByID(ctx, in.AuthorID); err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError("Account not found")
		}
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = models.PostStatusPublished
	}
	images := in.Images
	if images == nil {
		images = []string{}
	}

	post := &models.Post{
		Title:    in.Title,
		Content:  in.Content,
		AuthorID: in.AuthorID,
		Images:   images,
		Status:   status,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID)
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id)
}

func (s *PostService) ListPosts(ctx context.Context, d query.Descriptor) (*query.Page[models.Post], error) {
	return s.postRepo.List(ctx, d)
}

// ListMyPosts lists the caller's own posts; the author scope cannot be
// overridden by filters.
func (s *PostService) ListMyPosts(ctx context.Context, userID uint, d query.Descriptor) (*query.Page[models.Post], error) {
	return s.postRepo.ListByAuthor(ctx, userID, d)
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != in.UserID {
		return nil, models.NewForbiddenError("You are not authorized to update this post")
	}

	if in.Title != nil {
		post.Title = *in.Title
	}
	if in.Content != nil {
		post.Content = *in.Content
	}
	if in.Images != nil {
		post.Images = *in.Images
	}
	if in.Status != nil {
		post.Status = *in.Status
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID)
}

func (s *PostService) DeletePost(ctx context.Context, userID, postID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, models.NewForbiddenError("You are not authorized to delete this post")
	}
	if err := s.postRepo.SoftDelete(ctx, postID); err != nil {
		return nil, err
	}
	post.IsDeleted = true
	return post, nil
}

// ToggleLike flips the caller's like and returns the refreshed post.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID uint) (post *models.Post, liked bool, err error) {
	ctx, span := observability.StartSpan(ctx, "PostService.ToggleLike",
		attribute.Int64("post.id", int64(postID)),
		attribute.Int64("user.id", int64(userID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	liked, err = s.postRepo.ToggleLike(ctx, postID, userID)
	if err != nil {
		return nil, false, err
	}
	observability.RecordLikeToggle("post", liked)

	post, err = s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, false, err
	}
	return post, liked, nil
}
