package service

import (
	"context"
	"log/slog"

	"chorus/internal/middleware"
	"chorus/internal/models"
	"chorus/internal/moderation"
	"chorus/internal/observability"
	"chorus/internal/query"
	"chorus/internal/repository"
	"chorus/internal/thread"
	"chorus/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
}

// CreateCommentInput is a new comment. ReplyingToID is accepted for
// compatibility and always replaced by the resolved thread placement.
type CreateCommentInput struct {
	AuthorID        uint   `json:"-"`
	PostID          uint   `json:"post" validate:"required"`
	Content         string `json:"content" validate:"required,max=10000"`
	ParentCommentID *uint  `json:"parentComment"`
	ReplyingToID    *uint  `json:"replyingTo"`
}

type UpdateCommentInput struct {
	UserID    uint   `json:"-"`
	CommentID uint   `json:"-"`
	Content   string `json:"content" validate:"required,max=10000"`
}

type DeleteCommentInput struct {
	Actor     moderation.Actor
	CommentID uint
}

func NewCommentService(commentRepo repository.CommentRepository, postRepo repository.PostRepository) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
	}
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (comment *models.Comment, err error) {
	ctx, span := observability.StartSpan(ctx, "CommentService.CreateComment",
		attribute.Int64("post.id", int64(in.PostID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.postRepo.GetByID(ctx, in.PostID); err != nil {
		return nil, err
	}

	placement, err := thread.Resolve(ctx, s.commentRepo, in.PostID, in.ParentCommentID)
	if err != nil {
		return nil, err
	}

	comment = &models.Comment{
		Content:         in.Content,
		AuthorID:        in.AuthorID,
		PostID:          in.PostID,
		ParentCommentID: placement.Parent,
		ReplyingToID:    placement.ReplyingTo,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	return s.commentRepo.GetByID(ctx, comment.ID)
}

func (s *CommentService) GetComment(ctx context.Context, id uint) (*models.Comment, error) {
	return s.commentRepo.GetByID(ctx, id)
}

func (s *CommentService) ListComments(ctx context.Context, d query.Descriptor) (*query.Page[models.Comment], error) {
	return s.commentRepo.List(ctx, d)
}

// ListByPost returns a post's top-level comments, newest first.
func (s *CommentService) ListByPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	return s.commentRepo.ListTopLevelByPost(ctx, postID)
}

// ListReplies returns the replies under a top-level comment, oldest first.
func (s *CommentService) ListReplies(ctx context.Context, commentID uint) ([]models.Comment, error) {
	return s.commentRepo.ListReplies(ctx, commentID)
}

func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != in.UserID {
		return nil, models.NewForbiddenError("You are not authorized to update this comment")
	}

	if err := s.commentRepo.UpdateContent(ctx, in.CommentID, in.Content); err != nil {
		return nil, err
	}
	return s.commentRepo.GetByID(ctx, in.CommentID)
}

// DeleteComment soft-deletes a comment when the moderation rules allow it.
// Deleting a top-level comment first soft-deletes its replies; a failed
// cascade is returned and the comment stays live.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) (deleted *models.Comment, err error) {
	ctx, span := observability.StartSpan(ctx, "CommentService.DeleteComment",
		attribute.Int64("comment.id", int64(in.CommentID)),
		attribute.Int64("actor.id", int64(in.Actor.UserID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}

	target, err := s.moderationTarget(ctx, comment)
	if err != nil {
		return nil, err
	}

	decision, err := moderation.CanDeleteComment(in.Actor, target)
	observability.RecordModeration(decision.Rule, decision.Allowed)
	span.SetAttributes(attribute.String("moderation.rule", decision.Rule))
	if err != nil {
		return nil, err
	}

	// Replies go first so a failed cascade leaves the parent live and the
	// delete can be retried.
	if comment.IsTopLevel() {
		n, err := s.commentRepo.SoftDeleteReplies(ctx, comment.ID)
		if err != nil {
			middleware.Logger.ErrorContext(ctx, "reply cascade failed",
				slog.Uint64("comment_id", uint64(comment.ID)),
				slog.String("error", err.Error()),
			)
			return nil, err
		}
		observability.CascadeDeletes.Observe(float64(n))
	}

	if err := s.commentRepo.SoftDelete(ctx, comment.ID); err != nil {
		return nil, err
	}
	comment.IsDeleted = true

	return comment, nil
}

func (s *CommentService) moderationTarget(ctx context.Context, comment *models.Comment) (moderation.Target, error) {
	var postAuthorID uint
	if comment.Post != nil {
		postAuthorID = comment.Post.AuthorID
	} else {
		post, err := s.postRepo.GetByID(ctx, comment.PostID)
		if err != nil && !models.IsCode(err, models.CodeNotFound) {
			return moderation.Target{}, err
		}
		if post != nil {
			postAuthorID = post.AuthorID
		}
	}

	var parent *models.Comment
	if !comment.IsTopLevel() {
		p, err := s.commentRepo.GetByID(ctx, *comment.ParentCommentID)
		switch {
		case err == nil:
			parent = p
		case !models.IsCode(err, models.CodeNotFound):
			return moderation.Target{}, err
		}
	}

	return moderation.NewTarget(comment, postAuthorID, parent), nil
}

// ToggleLike flips the caller's like and returns the refreshed comment.
func (s *CommentService) ToggleLike(ctx context.Context, commentID, userID uint) (*models.Comment, bool, error) {
	liked, err := s.commentRepo.ToggleLike(ctx, commentID, userID)
	if err != nil {
		return nil, false, err
	}
	observability.RecordLikeToggle("comment", liked)

	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, false, err
	}
	return comment, liked, nil
}
