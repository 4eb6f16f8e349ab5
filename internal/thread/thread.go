// Package thread places new comments into a two-level thread.
package thread

import (
	"context"
	"errors"

	"chorus/internal/models"
)

// Loader fetches a comment that has not been soft-deleted. It returns a
// NotFound AppError when the comment is missing or deleted.
type Loader interface {
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
}

// Placement is where a new comment lands. Both fields are nil for a
// top-level comment.
type Placement struct {
	Parent     *uint
	ReplyingTo *uint
}

// IsTopLevel reports whether the placement has no parent.
func (p Placement) IsTopLevel() bool {
	return p.Parent == nil
}

// Resolve flattens a reply to parentID so that the stored parent is always a
// top-level comment of postID. Replying to a reply attaches to that reply's
// parent and records the reply itself as ReplyingTo.
func Resolve(ctx context.Context, loader Loader, postID uint, parentID *uint) (Placement, error) {
	if parentID == nil {
		return Placement{}, nil
	}

	parent, err := loader.GetByID(ctx, *parentID)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return Placement{}, appErr
		}
		return Placement{}, models.NewOperationFailedError("failed to load parent comment", err)
	}
	if parent == nil || parent.IsDeleted || parent.PostID != postID {
		return Placement{}, models.NewNotFoundError("Parent comment", *parentID)
	}

	replyingTo := parent.ID
	if parent.IsTopLevel() {
		top := parent.ID
		return Placement{Parent: &top, ReplyingTo: &replyingTo}, nil
	}

	top := *parent.ParentCommentID
	return Placement{Parent: &top, ReplyingTo: &replyingTo}, nil
}
