package models

import "time"

// Tag is a short label attached to zero or more questions. Names are stored
// trimmed of surrounding whitespace; lookups are by exact name, so case is
// significant.
type Tag struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Name      string     `gorm:"unique;not null" json:"name"`
	Questions []Question `gorm:"many2many:question_tags;" json:"questions,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
