package models

import (
	"time"

	"gorm.io/gorm"
)

// Reply represents an answer to a question.
type Reply struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Body       string         `gorm:"type:text;not null" json:"body"`
	UserID     uint           `gorm:"not null;index" json:"user_id"`
	User       User           `gorm:"foreignKey:UserID" json:"user"`
	QuestionID uint           `gorm:"not null;index" json:"question_id"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}
