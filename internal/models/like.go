package models

import (
	"time"
)

// PostLike marks that a user likes a post. Existence is the whole payload;
// at most one row per (post, user) pair.
type PostLike struct {
	PostID    string    `gorm:"primaryKey;type:uuid;column:post_id" json:"post_id"`
	UserID    string    `gorm:"primaryKey;type:uuid;column:user_id" json:"user_id"`
	CreatedAt time.Time `gorm:"not null;column:created_at" json:"created_at"`
}

// TableName specifies the table name for PostLike
func (PostLike) TableName() string {
	return "post_likes"
}

// CommentLike marks that a user likes a comment, parallel to PostLike.
type CommentLike struct {
	CommentID string    `gorm:"primaryKey;type:uuid;column:comment_id" json:"comment_id"`
	UserID    string    `gorm:"primaryKey;type:uuid;column:user_id" json:"user_id"`
	CreatedAt time.Time `gorm:"not null;column:created_at" json:"created_at"`
}

// TableName specifies the table name for CommentLike
func (CommentLike) TableName() string {
	return "comment_likes"
}
