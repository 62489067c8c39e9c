package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lshigami/testcert/internal/model"
	"github.com/lshigami/testcert/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

// Actor describes who performed an action and from where. All fields are optional.
type Actor struct {
	UserID    *uint
	IPAddress string
	UserAgent string
	RequestID string
}

type AuditEntry struct {
	CertificateID uint
	Action        model.AuditAction
	Actor         Actor
	Details       map[string]interface{}
}

type AuditLogService interface {
	Record(ctx context.Context, entry AuditEntry) error
	ListForCertificate(ctx context.Context, certificateID uint) ([]model.CertificateAuditLog, error)
}

type auditLogService struct {
	repo repository.AuditLogRepository
	now  func() time.Time
}

func NewAuditLogService(repo repository.AuditLogRepository) AuditLogService {
	return NewAuditLogServiceWithClock(repo, time.Now)
}

func NewAuditLogServiceWithClock(repo repository.AuditLogRepository, now func() time.Time) AuditLogService {
	return &auditLogService{repo: repo, now: now}
}

func (s *auditLogService) Record(ctx context.Context, entry AuditEntry) error {
	row := &model.CertificateAuditLog{
		CertificateID: entry.CertificateID,
		Action:        entry.Action,
		PerformedBy:   entry.Actor.UserID,
		IPAddress:     optionalString(entry.Actor.IPAddress),
		UserAgent:     optionalString(entry.Actor.UserAgent),
		RequestID:     optionalString(entry.Actor.RequestID),
		Timestamp:     s.now(),
	}
	if len(entry.Details) > 0 {
		details, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		row.Details = datatypes.JSON(details)
	}
	if err := s.repo.Create(ctx, row); err != nil {
		log.Error().Err(err).Uint("certificateID", entry.CertificateID).Str("action", string(entry.Action)).Msg("Failed to append certificate audit log")
		return fmt.Errorf("%w: append audit log: %w", ErrExternalFailure, err)
	}
	return nil
}

func (s *auditLogService) ListForCertificate(ctx context.Context, certificateID uint) ([]model.CertificateAuditLog, error) {
	entries, err := s.repo.FindByCertificateID(ctx, certificateID)
	if err != nil {
		return nil, fmt.Errorf("%w: audit log for certificate %d: %w", ErrExternalFailure, certificateID, err)
	}
	return entries, nil
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
