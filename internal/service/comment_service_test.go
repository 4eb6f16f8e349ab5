package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"chorus/internal/models"
	"chorus/internal/moderation"
	"chorus/internal/query"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn             func(context.Context, *models.Comment) error
	getByIDFn            func(context.Context, uint) (*models.Comment, error)
	listFn               func(context.Context, query.Descriptor) (*query.Page[models.Comment], error)
	listTopLevelByPostFn func(context.Context, uint) ([]models.Comment, error)
	listRepliesFn        func(context.Context, uint) ([]models.Comment, error)
	updateContentFn      func(context.Context, uint, string) error
	softDeleteFn         func(context.Context, uint) error
	softDeleteRepliesFn  func(context.Context, uint) (int64, error)
	toggleLikeFn         func(context.Context, uint, uint) (bool, error)
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) List(ctx context.Context, d query.Descriptor) (*query.Page[models.Comment], error) {
	return s.listFn(ctx, d)
}
func (s *commentRepoStub) ListTopLevelByPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	return s.listTopLevelByPostFn(ctx, postID)
}
func (s *commentRepoStub) ListReplies(ctx context.Context, parentID uint) ([]models.Comment, error) {
	return s.listRepliesFn(ctx, parentID)
}
func (s *commentRepoStub) UpdateContent(ctx context.Context, id uint, content string) error {
	return s.updateContentFn(ctx, id, content)
}
func (s *commentRepoStub) SoftDelete(ctx context.Context, id uint) error {
	return s.softDeleteFn(ctx, id)
}
func (s *commentRepoStub) SoftDeleteReplies(ctx context.Context, parentID uint) (int64, error) {
	return s.softDeleteRepliesFn(ctx, parentID)
}
func (s *commentRepoStub) ToggleLike(ctx context.Context, commentID, userID uint) (bool, error) {
	return s.toggleLikeFn(ctx, commentID, userID)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn:  func(_ context.Context, _ *models.Comment) error { return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Comment, error) { return &models.Comment{ID: id, PostID: 1}, nil },
		listFn: func(_ context.Context, _ query.Descriptor) (*query.Page[models.Comment], error) {
			return &query.Page[models.Comment]{}, nil
		},
		listTopLevelByPostFn: func(_ context.Context, _ uint) ([]models.Comment, error) { return nil, nil },
		listRepliesFn:        func(_ context.Context, _ uint) ([]models.Comment, error) { return nil, nil },
		updateContentFn:      func(_ context.Context, _ uint, _ string) error { return nil },
		softDeleteFn:         func(_ context.Context, _ uint) error { return nil },
		softDeleteRepliesFn:  func(_ context.Context, _ uint) (int64, error) { return 0, nil },
		toggleLikeFn:         func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
	}
}

// commentStore backs a commentRepoStub with an in-memory map.
func commentStore(comments ...models.Comment) (*commentRepoStub, map[uint]*models.Comment) {
	byID := make(map[uint]*models.Comment, len(comments))
	for i := range comments {
		byID[comments[i].ID] = &comments[i]
	}
	repo := noopCommentRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
		c, ok := byID[id]
		if !ok || c.IsDeleted {
			return nil, models.NewNotFoundError("Comment", id)
		}
		cp := *c
		return &cp, nil
	}
	repo.softDeleteFn = func(_ context.Context, id uint) error {
		byID[id].IsDeleted = true
		return nil
	}
	repo.softDeleteRepliesFn = func(_ context.Context, parentID uint) (int64, error) {
		var n int64
		for _, c := range byID {
			if c.ParentCommentID != nil && *c.ParentCommentID == parentID && !c.IsDeleted {
				c.IsDeleted = true
				n++
			}
		}
		return n, nil
	}
	return repo, byID
}

func TestCommentService_CreateComment_Validation(t *testing.T) {
	t.Parallel()

	svc := NewCommentService(noopCommentRepo(), noopPostRepo())
	ctx := context.Background()

	t.Run("empty content", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreateComment(ctx, CreateCommentInput{AuthorID: 1, PostID: 1})
		assertValidationError(t, err)
	})

	t.Run("content too long", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreateComment(ctx, CreateCommentInput{
			AuthorID: 1,
			PostID:   1,
			Content:  strings.Repeat("x", 10001),
		})
		assertValidationError(t, err)
	})

	t.Run("missing post", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreateComment(ctx, CreateCommentInput{AuthorID: 1, Content: "hi"})
		assertValidationError(t, err)
	})

	t.Run("post not found propagates repo error", func(t *testing.T) {
		t.Parallel()
		postRepo := noopPostRepo()
		postRepo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
			return nil, models.NewNotFoundError("Post", id)
		}
		svc2 := NewCommentService(noopCommentRepo(), postRepo)
		_, err := svc2.CreateComment(ctx, CreateCommentInput{AuthorID: 1, PostID: 99, Content: "hi"})
		assertAppErrorCode(t, err, models.CodeNotFound)
	})
}

func TestCommentService_CreateComment_ResolvesThread(t *testing.T) {
	t.Parallel()

	topID := uint(10)
	repo, _ := commentStore(
		models.Comment{ID: 10, PostID: 1, AuthorID: 2},
		models.Comment{ID: 11, PostID: 1, AuthorID: 3, ParentCommentID: &topID, ReplyingToID: &topID},
		models.Comment{ID: 20, PostID: 2, AuthorID: 3},
	)
	var created []models.Comment
	repo.createFn = func(_ context.Context, c *models.Comment) error {
		c.ID = uint(100 + len(created))
		created = append(created, *c)
		return nil
	}
	getStored := repo.getByIDFn
	repo.getByIDFn = func(ctx context.Context, id uint) (*models.Comment, error) {
		for _, c := range created {
			if c.ID == id {
				cp := c
				return &cp, nil
			}
		}
		return getStored(ctx, id)
	}
	svc := NewCommentService(repo, noopPostRepo())
	ctx := context.Background()

	top, err := svc.CreateComment(ctx, CreateCommentInput{AuthorID: 1, PostID: 1, Content: "top"})
	require.NoError(t, err)
	assert.Nil(t, top.ParentCommentID)
	assert.Nil(t, top.ReplyingToID)

	direct, err := svc.CreateComment(ctx, CreateCommentInput{AuthorID: 1, PostID: 1, Content: "a", ParentCommentID: ptr(uint(10))})
	require.NoError(t, err)
	assert.Equal(t, ptr(uint(10)), direct.ParentCommentID)
	assert.Equal(t, ptr(uint(10)), direct.ReplyingToID)

	nested, err := svc.CreateComment(ctx, CreateCommentInput{
		AuthorID:        1,
		PostID:          1,
		Content:         "b",
		ParentCommentID: ptr(uint(11)),
		ReplyingToID:    ptr(uint(999)),
	})
	require.NoError(t, err)
	assert.Equal(t, ptr(uint(10)), nested.ParentCommentID)
	assert.Equal(t, ptr(uint(11)), nested.ReplyingToID)

	_, err = svc.CreateComment(ctx, CreateCommentInput{AuthorID: 1, PostID: 1, Content: "c", ParentCommentID: ptr(uint(20))})
	assertAppErrorCode(t, err, models.CodeNotFound)
	assert.Len(t, created, 3)
}

func TestCommentService_UpdateComment_Ownership(t *testing.T) {
	t.Parallel()

	t.Run("non-owner cannot update", func(t *testing.T) {
		t.Parallel()
		repo, _ := commentStore(models.Comment{ID: 1, AuthorID: 10, PostID: 1})
		svc := NewCommentService(repo, noopPostRepo())
		_, err := svc.UpdateComment(context.Background(), UpdateCommentInput{UserID: 1, CommentID: 1, Content: "new"})
		assertForbiddenError(t, err)
	})

	t.Run("empty content is invalid", func(t *testing.T) {
		t.Parallel()
		repo, _ := commentStore(models.Comment{ID: 1, AuthorID: 1, PostID: 1})
		svc := NewCommentService(repo, noopPostRepo())
		_, err := svc.UpdateComment(context.Background(), UpdateCommentInput{UserID: 1, CommentID: 1, Content: ""})
		assertValidationError(t, err)
	})

	t.Run("owner can update content", func(t *testing.T) {
		t.Parallel()
		repo, byID := commentStore(models.Comment{ID: 1, AuthorID: 1, PostID: 1, Content: "old"})
		repo.updateContentFn = func(_ context.Context, id uint, content string) error {
			byID[id].Content = content
			return nil
		}
		svc := NewCommentService(repo, noopPostRepo())
		comment, err := svc.UpdateComment(context.Background(), UpdateCommentInput{UserID: 1, CommentID: 1, Content: "updated"})
		require.NoError(t, err)
		assert.Equal(t, "updated", comment.Content)
	})
}

func TestCommentService_DeleteComment_Rules(t *testing.T) {
	t.Parallel()

	const (
		postAuthor   = uint(1)
		topAuthor    = uint(2)
		replyAuthor  = uint(3)
		stranger     = uint(4)
		adminID      = uint(5)
		topCommentID = uint(10)
		replyID      = uint(11)
	)
	fixture := func() []models.Comment {
		parent := topCommentID
		post := &models.Post{ID: 1, AuthorID: postAuthor}
		return []models.Comment{
			{ID: topCommentID, PostID: 1, AuthorID: topAuthor, Post: post},
			{ID: replyID, PostID: 1, AuthorID: replyAuthor, Post: post, ParentCommentID: &parent, ReplyingToID: &parent},
		}
	}

	tests := []struct {
		name      string
		actor     moderation.Actor
		commentID uint
		allowed   bool
	}{
		{"admin deletes any comment", moderation.Actor{UserID: adminID, Role: models.RoleAdmin}, replyID, true},
		{"author deletes own reply", moderation.Actor{UserID: replyAuthor, Role: models.RoleUser}, replyID, true},
		{"post author deletes top-level", moderation.Actor{UserID: postAuthor, Role: models.RoleUser}, topCommentID, true},
		{"post author cannot delete reply", moderation.Actor{UserID: postAuthor, Role: models.RoleUser}, replyID, false},
		{"parent author deletes reply", moderation.Actor{UserID: topAuthor, Role: models.RoleUser}, replyID, true},
		{"reply author cannot delete parent", moderation.Actor{UserID: replyAuthor, Role: models.RoleUser}, topCommentID, false},
		{"stranger denied", moderation.Actor{UserID: stranger, Role: models.RoleUser}, topCommentID, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo, byID := commentStore(fixture()...)
			svc := NewCommentService(repo, noopPostRepo())

			deleted, err := svc.DeleteComment(context.Background(), DeleteCommentInput{Actor: tt.actor, CommentID: tt.commentID})
			if !tt.allowed {
				assertForbiddenError(t, err)
				assert.False(t, byID[tt.commentID].IsDeleted)
				return
			}
			require.NoError(t, err)
			assert.True(t, deleted.IsDeleted)
			assert.True(t, byID[tt.commentID].IsDeleted)
		})
	}
}

func TestCommentService_DeleteComment_CascadesReplies(t *testing.T) {
	t.Parallel()

	parent := uint(10)
	post := &models.Post{ID: 1, AuthorID: 1}
	repo, byID := commentStore(
		models.Comment{ID: 10, PostID: 1, AuthorID: 2, Post: post},
		models.Comment{ID: 11, PostID: 1, AuthorID: 3, Post: post, ParentCommentID: &parent},
		models.Comment{ID: 12, PostID: 1, AuthorID: 4, Post: post, ParentCommentID: &parent},
		models.Comment{ID: 13, PostID: 1, AuthorID: 4, Post: post},
	)
	svc := NewCommentService(repo, noopPostRepo())

	_, err := svc.DeleteComment(context.Background(), DeleteCommentInput{
		Actor:     moderation.Actor{UserID: 1, Role: models.RoleUser},
		CommentID: 10,
	})
	require.NoError(t, err)
	assert.True(t, byID[10].IsDeleted)
	assert.True(t, byID[11].IsDeleted)
	assert.True(t, byID[12].IsDeleted)
	assert.False(t, byID[13].IsDeleted)
}

func TestCommentService_DeleteComment_ReplyDoesNotCascade(t *testing.T) {
	t.Parallel()

	parent := uint(10)
	repo, _ := commentStore(
		models.Comment{ID: 10, PostID: 1, AuthorID: 2, Post: &models.Post{ID: 1, AuthorID: 1}},
		models.Comment{ID: 11, PostID: 1, AuthorID: 3, Post: &models.Post{ID: 1, AuthorID: 1}, ParentCommentID: &parent},
	)
	repo.softDeleteRepliesFn = func(_ context.Context, _ uint) (int64, error) {
		t.Fatal("replies have no children to cascade to")
		return 0, nil
	}
	svc := NewCommentService(repo, noopPostRepo())

	_, err := svc.DeleteComment(context.Background(), DeleteCommentInput{
		Actor:     moderation.Actor{UserID: 3, Role: models.RoleUser},
		CommentID: 11,
	})
	require.NoError(t, err)
}

func TestCommentService_DeleteComment_CascadeFailureSurfacesAndRetryCompletes(t *testing.T) {
	t.Parallel()

	repo, byID := commentStore(
		models.Comment{ID: 10, PostID: 1, AuthorID: 2, Post: &models.Post{ID: 1, AuthorID: 1}},
		models.Comment{ID: 11, PostID: 1, AuthorID: 3, ParentCommentID: ptr(uint(10)), ReplyingToID: ptr(uint(10))},
	)
	cascade := repo.softDeleteRepliesFn
	repo.softDeleteRepliesFn = func(_ context.Context, _ uint) (int64, error) {
		return 0, models.NewOperationFailedError("Failed to delete replies", errors.New("connection reset"))
	}
	svc := NewCommentService(repo, noopPostRepo())
	in := DeleteCommentInput{
		Actor:     moderation.Actor{UserID: 2, Role: models.RoleUser},
		CommentID: 10,
	}

	_, err := svc.DeleteComment(context.Background(), in)
	assertAppErrorCode(t, err, models.CodeOperationFailed)
	assert.False(t, byID[10].IsDeleted)
	assert.False(t, byID[11].IsDeleted)

	repo.softDeleteRepliesFn = cascade
	deleted, err := svc.DeleteComment(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.True(t, byID[10].IsDeleted)
	assert.True(t, byID[11].IsDeleted)
}

func TestCommentService_DeleteComment_LoadsPostAuthorWhenNotPreloaded(t *testing.T) {
	t.Parallel()

	repo, _ := commentStore(models.Comment{ID: 10, PostID: 7, AuthorID: 2})
	postRepo := noopPostRepo()
	postRepo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, AuthorID: 1}, nil
	}
	svc := NewCommentService(repo, postRepo)

	_, err := svc.DeleteComment(context.Background(), DeleteCommentInput{
		Actor:     moderation.Actor{UserID: 1, Role: models.RoleUser},
		CommentID: 10,
	})
	require.NoError(t, err)
}

func TestCommentService_DeleteComment_Missing(t *testing.T) {
	t.Parallel()

	repo, _ := commentStore()
	svc := NewCommentService(repo, noopPostRepo())
	_, err := svc.DeleteComment(context.Background(), DeleteCommentInput{
		Actor:     moderation.Actor{UserID: 1, Role: models.RoleAdmin},
		CommentID: 42,
	})
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestCommentService_ToggleLike(t *testing.T) {
	t.Parallel()

	var set []uint
	repo := noopCommentRepo()
	repo.toggleLikeFn = func(_ context.Context, _ uint, userID uint) (bool, error) {
		var liked bool
		set, liked = models.ToggleMember(set, userID)
		return liked, nil
	}
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
		return &models.Comment{ID: id, Likes: set}, nil
	}
	svc := NewCommentService(repo, noopPostRepo())

	comment, liked, err := svc.ToggleLike(context.Background(), 3, 8)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, []uint{8}, comment.Likes)

	comment, liked, err = svc.ToggleLike(context.Background(), 3, 8)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Empty(t, comment.Likes)
}
