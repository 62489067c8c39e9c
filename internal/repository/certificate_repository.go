package repository

import (
	"context"
	"errors"

	"github.com/lshigami/testcert/internal/model"
	"gorm.io/gorm"
)

type CertificateRepository interface {
	Create(ctx context.Context, certificate *model.Certificate) error
	FindByID(ctx context.Context, id uint) (*model.Certificate, error)
	FindByTestAttemptID(ctx context.Context, attemptID uint) (*model.Certificate, error)
	FindByVerificationCode(ctx context.Context, code string) (*model.Certificate, error)
	ExistsByVerificationCode(ctx context.Context, code string) (bool, error)
	FindAllByUser(ctx context.Context, userID uint) ([]model.Certificate, error)
	Update(ctx context.Context, id uint, patch map[string]interface{}) error
	// IncrementCounter atomically bumps view_count or download_count.
	IncrementCounter(ctx context.Context, id uint, column string) error
}

var ErrUnknownCounter = errors.New("unknown certificate counter")

type certificateRepository struct {
	db *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) CertificateRepository {
	return &certificateRepository{db: db}
}

func (r *certificateRepository) Create(ctx context.Context, certificate *model.Certificate) error {
	return r.db.WithContext(ctx).Create(certificate).Error
}

func (r *certificateRepository) FindByID(ctx context.Context, id uint) (*model.Certificate, error) {
	var certificate model.Certificate
	if err := r.db.WithContext(ctx).First(&certificate, id).Error; err != nil {
		return nil, err
	}
	return &certificate, nil
}

func (r *certificateRepository) FindByTestAttemptID(ctx context.Context, attemptID uint) (*model.Certificate, error) {
	var certificate model.Certificate
	if err := r.db.WithContext(ctx).Where("test_attempt_id = ?", attemptID).First(&certificate).Error; err != nil {
		return nil, err
	}
	return &certificate, nil
}

func (r *certificateRepository) FindByVerificationCode(ctx context.Context, code string) (*model.Certificate, error) {
	var certificate model.Certificate
	if err := r.db.WithContext(ctx).Where("verification_code = ?", code).First(&certificate).Error; err != nil {
		return nil, err
	}
	return &certificate, nil
}

func (r *certificateRepository) ExistsByVerificationCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Certificate{}).Where("verification_code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *certificateRepository) FindAllByUser(ctx context.Context, userID uint) ([]model.Certificate, error) {
	var certificates []model.Certificate
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("issue_date DESC").Find(&certificates).Error
	return certificates, err
}

func (r *certificateRepository) Update(ctx context.Context, id uint, patch map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&model.Certificate{}).Where("id = ?", id).Updates(patch)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *certificateRepository) IncrementCounter(ctx context.Context, id uint, column string) error {
	if column != "view_count" && column != "download_count" {
		return ErrUnknownCounter
	}
	return r.db.WithContext(ctx).Model(&model.Certificate{}).Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1)).Error
}
