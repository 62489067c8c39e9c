package dto

import (
	"encoding/json"
	"time"
)

type GenerateCertificateDTO struct {
	TestAttemptID uint    `json:"test_attempt_id" binding:"required"`
	TemplateType  *string `json:"template_type" binding:"omitempty,oneof=classic modern minimal"`
	RecipientName *string `json:"recipient_name"`
	PerformedBy   *uint   `json:"performed_by"`
}

type GenerationResultDTO struct {
	CertificateID    uint   `json:"certificate_id"`
	VerificationCode string `json:"verification_code"`
	FilePath         string `json:"file_path"`
}

type CertificateResponseDTO struct {
	ID               uint            `json:"id"`
	UserID           uint            `json:"user_id"`
	TestAttemptID    uint            `json:"test_attempt_id"`
	TestID           uint            `json:"test_id"`
	VerificationCode string          `json:"verification_code"`
	Title            string          `json:"title"`
	RecipientName    string          `json:"recipient_name"`
	Score            int             `json:"score"`
	ProficiencyLevel string          `json:"proficiency_level"`
	TemplateType     string          `json:"template_type"`
	CertificateData  json.RawMessage `json:"certificate_data,omitempty"`
	Status           string          `json:"status"`
	IssueDate        time.Time       `json:"issue_date"`
	ExpiryDate       *time.Time      `json:"expiry_date,omitempty"`
	IsValid          bool            `json:"is_valid"`
	RevokedAt        *time.Time      `json:"revoked_at,omitempty"`
	RevokedReason    *string         `json:"revoked_reason,omitempty"`
	ViewCount        int             `json:"view_count"`
	DownloadCount    int             `json:"download_count"`
	EmailSent        bool            `json:"email_sent"`
}

type AuditLogResponseDTO struct {
	ID          uint            `json:"id"`
	Action      string          `json:"action"`
	PerformedBy *uint           `json:"performed_by,omitempty"`
	IPAddress   *string         `json:"ip_address,omitempty"`
	UserAgent   *string         `json:"user_agent,omitempty"`
	RequestID   *string         `json:"request_id,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}
