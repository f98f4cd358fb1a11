package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationKind identifies what a notification is about.
type NotificationKind string

// Notification kind constants
const (
	NotifyKindComment NotificationKind = "COMMENT"
	NotifyKindLike    NotificationKind = "LIKE"
	NotifyKindHotPost NotificationKind = "HOT_POST"
)

// Notification represents a personal notification row owned by its
// recipient. HOT_POST entries are never persisted: they are synthesized by
// the aggregator from the trending view and carry an empty UserID.
type Notification struct {
	ID        string           `gorm:"primaryKey;type:uuid;column:id" json:"id"`
	UserID    string           `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	Kind      NotificationKind `gorm:"type:varchar(16);not null;column:type" json:"type"`
	PostID    string           `gorm:"type:uuid;not null;column:post_id" json:"post_id"`
	Message   string           `gorm:"type:text;not null;column:content" json:"content"`
	IsRead    bool             `gorm:"not null;default:false;index;column:is_read" json:"is_read"`
	CreatedAt time.Time        `gorm:"not null;column:created_at" json:"created_at"`
}

// TableName specifies the table name for Notification
func (Notification) TableName() string {
	return "notifications"
}

// BeforeCreate assigns the canonical identifier and timestamp on insert.
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return nil
}
