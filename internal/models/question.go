package models

import (
	"time"

	"gorm.io/gorm"
)

// MaxBodyLength is the upper bound for question and reply bodies.
const MaxBodyLength = 1000

// Question represents a question posted by a user. CreatedAt is the
// ordering key for every listing (newest first).
type Question struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Body      string         `gorm:"type:text;not null" json:"body"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	User      User           `gorm:"foreignKey:UserID" json:"user"`
	Tags      []Tag          `gorm:"many2many:question_tags;" json:"tags"`
	Replies   []Reply        `gorm:"foreignKey:QuestionID" json:"replies,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
