package models

import "time"

// PostLike records that a user liked a post.
// The combination of PostID and UserID is the primary key, so membership is a set.
type PostLike struct {
	PostID    uint      `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentLike records that a user liked a comment.
type CommentLike struct {
	CommentID uint      `gorm:"primaryKey;autoIncrement:false" json:"comment_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ToggleMember flips id's membership in set and reports whether it is now a
// member. The input slice is not modified.
func ToggleMember(set []uint, id uint) ([]uint, bool) {
	out := make([]uint, 0, len(set)+1)
	found := false
	for _, v := range set {
		if v == id {
			found = true
			continue
		}
		out = append(out, v)
	}
	if found {
		return out, false
	}
	return append(out, id), true
}
