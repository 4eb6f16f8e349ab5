package server

import (
	"chorus/internal/middleware"
	"chorus/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/posts/create
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID, _, _ := middleware.CurrentUser(c)

	var in service.CreatePostInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.AuthorID = userID

	post, err := s.postService.CreatePost(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusCreated, "Post created successfully", post)
}

// GetPosts handles GET /api/posts
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page, err := s.postService.ListPosts(c.UserContext(), descriptor(c))
	if err != nil {
		return respondError(c, err)
	}
	return respondPage(c, "Posts retrieved successfully", page)
}

// GetMyPosts handles GET /api/posts/my-posts
func (s *Server) GetMyPosts(c *fiber.Ctx) error {
	userID, _, _ := middleware.CurrentUser(c)

	page, err := s.postService.ListMyPosts(c.UserContext(), userID, descriptor(c))
	if err != nil {
		return respondError(c, err)
	}
	return respondPage(c, "Posts retrieved successfully", page)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Post retrieved successfully", post)
}

// UpdatePost handles PATCH /api/posts/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	userID, _, _ := middleware.CurrentUser(c)
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var in service.UpdatePostInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.UserID = userID
	in.PostID = postID

	post, err := s.postService.UpdatePost(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Post updated successfully", post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	userID, _, _ := middleware.CurrentUser(c)
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.DeletePost(c.UserContext(), userID, postID)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Post deleted successfully", post)
}

// TogglePostLike handles PATCH /api/posts/:id/like
func (s *Server) TogglePostLike(c *fiber.Ctx) error {
	userID, _, _ := middleware.CurrentUser(c)
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, liked, err := s.postService.ToggleLike(c.UserContext(), postID, userID)
	if err != nil {
		return respondError(c, err)
	}
	message := "Post unliked successfully"
	if liked {
		message = "Post liked successfully"
	}
	return respond(c, fiber.StatusOK, message, post)
}
