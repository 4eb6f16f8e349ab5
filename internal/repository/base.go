// Package repository provides data access layer implementations for the application.
package repository

import (
	"errors"

	"chorus/internal/database"
	"chorus/internal/models"
	"chorus/internal/query"

	"gorm.io/gorm"
)

func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}

// storeError maps gorm errors onto AppErrors.
func storeError(err error, resource string, id any) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewOperationFailedError(resource+" operation failed", err)
}

func withAuthor(db *gorm.DB) *gorm.DB {
	return db.Preload("Author")
}

// PostCollection is what post listings may search, filter, sort and project.
var PostCollection = query.Collection{
	Table: "posts",
	Fields: map[string]query.Field{
		"title":      {Column: "title"},
		"content":    {Column: "content"},
		"status":     {Column: "status", Enum: models.PostStatuses},
		"author":     {Column: "author_id", Kind: query.KindUint},
		"author_id":  {Column: "author_id", Kind: query.KindUint},
		"images":     {Column: "images"},
		"created_at": {Column: "created_at"},
		"updated_at": {Column: "updated_at"},
	},
	Search:  []string{"title", "content"},
	Filter:  []string{"status", "author", "author_id"},
	Sort:    []string{"created_at", "updated_at", "title"},
	Project: []string{"title", "content", "status", "images", "created_at", "updated_at"},
	Keep:    []string{"author_id"},
}

// CommentCollection is what comment listings may search, filter, sort and project.
var CommentCollection = query.Collection{
	Table: "comments",
	Fields: map[string]query.Field{
		"content":        {Column: "content"},
		"post":           {Column: "post_id", Kind: query.KindUint},
		"post_id":        {Column: "post_id", Kind: query.KindUint},
		"author":         {Column: "author_id", Kind: query.KindUint},
		"author_id":      {Column: "author_id", Kind: query.KindUint},
		"parent_comment": {Column: "parent_comment_id", Kind: query.KindUint},
		"created_at":     {Column: "created_at"},
		"updated_at":     {Column: "updated_at"},
	},
	Search:  []string{"content"},
	Filter:  []string{"post", "post_id", "author", "author_id", "parent_comment"},
	Sort:    []string{"created_at", "updated_at"},
	Project: []string{"content", "created_at", "updated_at"},
	Keep:    []string{"author_id", "post_id", "parent_comment_id", "replying_to_id"},
}
