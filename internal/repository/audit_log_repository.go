package repository

import (
	"context"

	"github.com/lshigami/testcert/internal/model"
	"gorm.io/gorm"
)

// AuditLogRepository is append-only: there is no update or delete.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *model.CertificateAuditLog) error
	FindByCertificateID(ctx context.Context, certificateID uint) ([]model.CertificateAuditLog, error)
}

type auditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) Create(ctx context.Context, entry *model.CertificateAuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditLogRepository) FindByCertificateID(ctx context.Context, certificateID uint) ([]model.CertificateAuditLog, error) {
	var entries []model.CertificateAuditLog
	err := r.db.WithContext(ctx).Where("certificate_id = ?", certificateID).Order("timestamp ASC, id ASC").Find(&entries).Error
	return entries, err
}
