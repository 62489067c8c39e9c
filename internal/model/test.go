package model

import (
	"time"

	"gorm.io/gorm"
)

// Category types drive the proficiency scale and the certificate validity.
const (
	CategoryLanguage     = "LANGUAGE"
	CategoryTechnical    = "TECHNICAL"
	CategoryProfessional = "PROFESSIONAL"
	CategoryAcademic     = "ACADEMIC"
)

type Test struct {
	ID              uint       `gorm:"primarykey" json:"id"`
	Title           string     `json:"title" gorm:"not null;uniqueIndex"`
	Description     string     `json:"description,omitempty"`
	DurationMinutes int        `json:"duration_minutes" gorm:"not null"`
	PassingScore    int        `json:"passing_score" gorm:"not null"` // percentage
	TotalQuestions  int        `json:"total_questions" gorm:"not null;default:0"`
	CategoryType    string     `json:"category_type" gorm:"not null;index"`
	Level           *string    `json:"level,omitempty"` // explicit proficiency tag, e.g. "A1"
	IsPublished     bool       `json:"is_published" gorm:"not null;default:false"`
	// CertificateValidityMonths overrides the category lookup; 0 means never expires.
	CertificateValidityMonths *int           `json:"certificate_validity_months,omitempty"`
	Questions                 []Question     `json:"questions,omitempty" gorm:"foreignKey:TestID"`
	CreatedAt                 time.Time      `json:"created_at"`
	UpdatedAt                 time.Time      `json:"updated_at"`
	DeletedAt                 gorm.DeletedAt `gorm:"index" json:"-"`
}
