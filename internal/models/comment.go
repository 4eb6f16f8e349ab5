package models

import "time"

// Comment is a comment on a post. ParentCommentID, when set, always names a
// top-level comment; ReplyingToID names the comment the author answered.
type Comment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Content         string    `gorm:"type:text;not null" json:"content"`
	AuthorID        uint      `gorm:"not null;index" json:"author_id"`
	Author          *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	PostID          uint      `gorm:"not null;index" json:"post_id"`
	Post            *Post     `gorm:"foreignKey:PostID" json:"post,omitempty"`
	ParentCommentID *uint     `gorm:"index" json:"parent_comment_id"`
	ReplyingToID    *uint     `json:"replying_to_id"`
	Likes           []uint    `gorm:"-" json:"likes"`
	IsDeleted       bool      `gorm:"not null;default:false;index" json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsTopLevel reports whether the comment hangs directly off its post.
func (c *Comment) IsTopLevel() bool {
	return c.ParentCommentID == nil
}
