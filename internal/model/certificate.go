package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	CertificateStatusPending = "pending" // row created, file not yet written
	CertificateStatusIssued  = "issued"
	CertificateStatusFailed  = "failed" // render or file write failed; needs repair
)

const (
	TemplateClassic = "classic"
	TemplateModern  = "modern"
	TemplateMinimal = "minimal"
)

// Certificate is never deleted; revocation flips IsValid.
type Certificate struct {
	ID               uint           `gorm:"primarykey" json:"id"`
	UserID           uint           `json:"user_id" gorm:"not null;index"`
	TestAttemptID    uint           `json:"test_attempt_id" gorm:"not null;uniqueIndex"`
	TestID           uint           `json:"test_id" gorm:"not null;index"`
	VerificationCode string         `json:"verification_code" gorm:"not null;uniqueIndex;size:64"`
	Title            string         `json:"title" gorm:"not null"`
	RecipientName    string         `json:"recipient_name" gorm:"not null"`
	Score            int            `json:"score" gorm:"not null"` // percentage
	ProficiencyLevel string         `json:"proficiency_level" gorm:"not null"`
	TemplateType     string         `json:"template_type" gorm:"not null;default:'classic'"`
	QRCodeData       string         `json:"qr_code_data" gorm:"type:text"`
	CertificateData  datatypes.JSON `json:"certificate_data" gorm:"type:jsonb"`
	FilePath         *string        `json:"file_path,omitempty"`
	Status           string         `json:"status" gorm:"not null;default:'pending'"`
	IssueDate        time.Time      `json:"issue_date" gorm:"not null"`
	ExpiryDate       *time.Time     `json:"expiry_date,omitempty"`
	IsValid          bool           `json:"is_valid" gorm:"not null;default:true"`
	RevokedAt        *time.Time     `json:"revoked_at,omitempty"`
	RevokedReason    *string        `json:"revoked_reason,omitempty" gorm:"type:text"`
	ViewCount        int            `json:"view_count" gorm:"not null;default:0"`
	DownloadCount    int            `json:"download_count" gorm:"not null;default:0"`
	EmailSent        bool           `json:"email_sent" gorm:"not null;default:false"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// IsExpired reports whether the certificate has an expiry date at or before now.
func (c *Certificate) IsExpired(now time.Time) bool {
	return c.ExpiryDate != nil && !now.Before(*c.ExpiryDate)
}

// CertificateData is the snapshot rendered onto the document and returned by verification.
type CertificateData struct {
	RecipientName    string     `json:"recipient_name"`
	TestTitle        string     `json:"test_title"`
	CategoryType     string     `json:"category_type"`
	Score            int        `json:"score"`
	ProficiencyLevel string     `json:"proficiency_level"`
	CorrectAnswers   int        `json:"correct_answers"`
	TotalQuestions   int        `json:"total_questions"`
	TimeSpentMinutes int        `json:"time_spent_minutes"`
	CompletedAt      time.Time  `json:"completed_at"`
	IssueDate        time.Time  `json:"issue_date"`
	ExpiryDate       *time.Time `json:"expiry_date,omitempty"`
	VerificationCode string     `json:"verification_code"`
}
