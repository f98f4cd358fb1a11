package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment represents a comment on a post. A comment with a nil ParentID is
// a thread root; a comment with a non-nil ParentID is a reply. Thread depth
// is capped at two levels, so a reply must never itself become a parent.
type Comment struct {
	ID         string    `gorm:"primaryKey;type:uuid;column:id" json:"id"`
	PostID     string    `gorm:"type:uuid;not null;index;column:post_id" json:"post_id"`
	UserID     string    `gorm:"type:uuid;not null;column:user_id" json:"user_id"`
	ParentID   *string   `gorm:"type:uuid;index;column:parent_id" json:"parent_id,omitempty"`
	Nickname   string    `gorm:"type:varchar(20);not null;column:nickname" json:"nickname"`
	Content    string    `gorm:"type:text;not null;column:content" json:"content"`
	LikesCount int       `gorm:"not null;default:0;column:likes_count" json:"likes_count"`
	CreatedAt  time.Time `gorm:"not null;column:created_at" json:"created_at"`

	// Replies is populated by the thread builder, never persisted.
	Replies []Comment `gorm:"-" json:"replies,omitempty"`
}

// TableName specifies the table name for Comment
func (Comment) TableName() string {
	return "comments"
}

// BeforeCreate assigns the canonical identifier and timestamp on insert.
func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return nil
}

// IsReply reports whether the comment is a second-level reply.
func (c *Comment) IsReply() bool {
	return c.ParentID != nil
}
