package server

import (
	"chorus/internal/middleware"
	"chorus/internal/moderation"
	"chorus/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateComment handles POST /api/comments/create
func (s *Server) CreateComment(c *fiber.Ctx) error {
	userID, _, _ := middleware.CurrentUser(c)

	var in service.CreateCommentInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.AuthorID = userID

	comment, err := s.commentService.CreateComment(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusCreated, "Comment created successfully", comment)
}

// GetComments handles GET /api/comments
func (s *Server) GetComments(c *fiber.Ctx) error {
	page, err := s.commentService.ListComments(c.UserContext(), descriptor(c))
	if err != nil {
		return respondError(c, err)
	}
	return respondPage(c, "Comments retrieved successfully", page)
}

// GetComment handles GET /api/comments/:id
func (s *Server) GetComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	comment, err := s.commentService.GetComment(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Comment retrieved successfully", comment)
}

// GetPostComments handles GET /api/comments/post/:postId
func (s *Server) GetPostComments(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}

	comments, err := s.commentService.ListByPost(c.UserContext(), postID)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Comments retrieved successfully", comments)
}

// GetReplies handles GET /api/comments/:commentId/replies
func (s *Server) GetReplies(c *fiber.Ctx) error {
	commentID, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}

	replies, err := s.commentService.ListReplies(c.UserContext(), commentID)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Replies retrieved successfully", replies)
}

// UpdateComment handles PATCH /api/comments/:id
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	userID, _, _ := middleware.CurrentUser(c)
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var in service.UpdateCommentInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.UserID = userID
	in.CommentID = commentID

	comment, err := s.commentService.UpdateComment(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Comment updated successfully", comment)
}

// DeleteComment handles DELETE /api/comments/:id
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	userID, role, _ := middleware.CurrentUser(c)
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	comment, err := s.commentService.DeleteComment(c.UserContext(), service.DeleteCommentInput{
		Actor:     moderation.Actor{UserID: userID, Role: role},
		CommentID: commentID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Comment deleted successfully", comment)
}

// ToggleCommentLike handles PATCH /api/comments/:id/like
func (s *Server) ToggleCommentLike(c *fiber.Ctx) error {
	userID, _, _ := middleware.CurrentUser(c)
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	comment, liked, err := s.commentService.ToggleLike(c.UserContext(), commentID, userID)
	if err != nil {
		return respondError(c, err)
	}
	message := "Comment unliked successfully"
	if liked {
		message = "Comment liked successfully"
	}
	return respond(c, fiber.StatusOK, message, comment)
}
