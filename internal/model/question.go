package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Question struct {
	ID            uint                        `gorm:"primarykey" json:"id"`
	TestID        uint                        `json:"test_id" gorm:"not null;index"`
	OrderInTest   int                         `json:"order_in_test" gorm:"not null"`
	Type          string                      `json:"type" gorm:"not null"` // "multiple_choice", "true_false", "short_answer"
	Prompt        string                      `json:"prompt" gorm:"type:text;not null"`
	Options       datatypes.JSONSlice[string] `json:"options" gorm:"type:jsonb"`
	CorrectAnswer string                      `json:"correct_answer" gorm:"type:text;not null"`
	Points        int                         `json:"points" gorm:"not null;default:1"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
	DeletedAt     gorm.DeletedAt              `gorm:"index" json:"-"`
}
