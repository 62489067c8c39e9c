package model

import (
	"time"

	"gorm.io/datatypes"
)

type AuditAction string

const (
	AuditGenerated  AuditAction = "GENERATED"
	AuditRevoked    AuditAction = "REVOKED"
	AuditRestored   AuditAction = "RESTORED"
	AuditViewed     AuditAction = "VIEWED"
	AuditDownloaded AuditAction = "DOWNLOADED"
	AuditEmailed    AuditAction = "EMAILED"
)

// CertificateAuditLog rows are append-only; there is no UpdatedAt or DeletedAt.
type CertificateAuditLog struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	CertificateID uint           `json:"certificate_id" gorm:"not null;index"`
	Action        AuditAction    `json:"action" gorm:"not null;index;size:20"`
	PerformedBy   *uint          `json:"performed_by,omitempty"`
	IPAddress     *string        `json:"ip_address,omitempty" gorm:"size:45"`
	UserAgent     *string        `json:"user_agent,omitempty" gorm:"type:text"`
	RequestID     *string        `json:"request_id,omitempty" gorm:"size:64"`
	Details       datatypes.JSON `json:"details,omitempty" gorm:"type:jsonb"`
	Timestamp     time.Time      `json:"timestamp" gorm:"not null;index"`
}
