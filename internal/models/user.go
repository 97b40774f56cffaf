// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered member of the forum.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"unique;not null" json:"username"`
	Email        string         `gorm:"unique;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	IsTeacher    bool           `gorm:"default:false" json:"is_teacher"`
	AboutMe      string         `gorm:"size:140" json:"about_me"`
	LastSeen     time.Time      `json:"last_seen"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	Questions []Question `gorm:"foreignKey:UserID" json:"questions,omitempty"`
	Replies   []Reply    `gorm:"foreignKey:UserID" json:"replies,omitempty"`
}
