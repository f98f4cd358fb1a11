package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post represents an anonymous confession post.
// UserID is nullable: guest-authored legacy rows carry no author identifier.
// LikesCount is the authoritative counter; it converges to the cardinality
// of the post_likes relation but is not required to match it instantaneously.
type Post struct {
	ID         string    `gorm:"primaryKey;type:uuid;column:id" json:"id"`
	UserID     *string   `gorm:"type:uuid;index;column:user_id" json:"user_id,omitempty"`
	Nickname   string    `gorm:"type:varchar(20);not null;column:nickname" json:"nickname"`
	Category   Category  `gorm:"type:varchar(32);not null;index;column:category" json:"category"`
	Title      string    `gorm:"type:varchar(255);column:title" json:"title,omitempty"`
	Content    string    `gorm:"type:text;not null;column:content" json:"content"`
	ImageURL   string    `gorm:"type:varchar(512);column:image_url" json:"image_url,omitempty"`
	LikesCount int       `gorm:"not null;default:0;column:likes_count" json:"likes_count"`
	CreatedAt  time.Time `gorm:"not null;column:created_at" json:"created_at"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "posts"
}

// BeforeCreate assigns the canonical identifier and timestamp on insert.
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return nil
}

// AuthoredBy reports whether the post was authored by the given user.
// Guest-authored rows match nobody.
func (p *Post) AuthoredBy(userID string) bool {
	return userID != "" && p.UserID != nil && *p.UserID == userID
}
