// Package models contains data structures for the application's domain models.
package models

import "time"

// Post statuses.
const (
	PostStatusPublished = "published"
	PostStatusDraft     = "draft"
)

// PostStatuses lists every accepted post status.
var PostStatuses = []string{PostStatusPublished, PostStatusDraft}

// Post represents a post authored by a user.
type Post struct {
	ID       uint     `gorm:"primaryKey" json:"id"`
	Title    string   `gorm:"not null" json:"title"`
	Content  string   `gorm:"type:text;not null" json:"content"`
	AuthorID uint     `gorm:"not null;index" json:"author_id"`
	Author   *User    `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Images   []string `gorm:"serializer:json;type:text" json:"images"`
	Status   string   `gorm:"not null;default:published;index" json:"status"`
	// Likes is the set of user IDs that liked the post; loaded from post_likes
	Likes     []uint    `gorm:"-" json:"likes"`
	IsDeleted bool      `gorm:"not null;default:false;index" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidPostStatus reports whether s is an accepted post status.
func ValidPostStatus(s string) bool {
	for _, status := range PostStatuses {
		if s == status {
			return true
		}
	}
	return false
}
