package repository

import (
	"context"
	"time"

	"github.com/lshigami/testcert/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TestAttemptRepository interface {
	Create(ctx context.Context, attempt *model.TestAttempt) error
	FindByID(ctx context.Context, id uint) (*model.TestAttempt, error)
	FindInProgress(ctx context.Context) ([]model.TestAttempt, error)
	UpdateProgress(ctx context.Context, id uint, answers map[uint]string, questionOrder []uint, currentIndex int) error
	// Finalize writes the scored result only if the attempt is not completed
	// yet. It reports false when another caller already finalized it.
	Finalize(ctx context.Context, attempt *model.TestAttempt) (bool, error)
	// Abandon closes an unfinished attempt without a score.
	Abandon(ctx context.Context, id uint, closedAt time.Time) (bool, error)
	FindAllByTestAndUser(ctx context.Context, testID uint, userID *uint) ([]model.TestAttempt, error)
}

type testAttemptRepository struct {
	db *gorm.DB
}

func NewTestAttemptRepository(db *gorm.DB) TestAttemptRepository {
	return &testAttemptRepository{db: db}
}

func (r *testAttemptRepository) Create(ctx context.Context, attempt *model.TestAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *testAttemptRepository) FindByID(ctx context.Context, id uint) (*model.TestAttempt, error) {
	var attempt model.TestAttempt
	if err := r.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *testAttemptRepository) FindInProgress(ctx context.Context) ([]model.TestAttempt, error) {
	var attempts []model.TestAttempt
	err := r.db.WithContext(ctx).Where("completed_at IS NULL").Order("started_at ASC").Find(&attempts).Error
	return attempts, err
}

func (r *testAttemptRepository) UpdateProgress(ctx context.Context, id uint, answers map[uint]string, questionOrder []uint, currentIndex int) error {
	result := r.db.WithContext(ctx).Model(&model.TestAttempt{}).
		Where("id = ? AND completed_at IS NULL", id).
		Updates(map[string]interface{}{
			"answers":                datatypes.NewJSONType(answers),
			"question_order":         datatypes.JSONSlice[uint](questionOrder),
			"current_question_index": currentIndex,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *testAttemptRepository) Finalize(ctx context.Context, attempt *model.TestAttempt) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.TestAttempt{}).
		Where("id = ? AND completed_at IS NULL", attempt.ID).
		Updates(map[string]interface{}{
			"answers":            attempt.Answers,
			"score":              attempt.Score,
			"total_points":       attempt.TotalPoints,
			"percentage":         attempt.Percentage,
			"correct_answers":    attempt.CorrectAnswers,
			"passed":             attempt.Passed,
			"time_spent_minutes": attempt.TimeSpentMinutes,
			"status":             model.AttemptStatusCompleted,
			"completed_at":       attempt.CompletedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *testAttemptRepository) Abandon(ctx context.Context, id uint, closedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.TestAttempt{}).
		Where("id = ? AND completed_at IS NULL", id).
		Updates(map[string]interface{}{
			"status":       model.AttemptStatusAbandoned,
			"completed_at": closedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *testAttemptRepository) FindAllByTestAndUser(ctx context.Context, testID uint, userID *uint) ([]model.TestAttempt, error) {
	var attempts []model.TestAttempt
	query := r.db.WithContext(ctx).Where("test_id = ?", testID)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	err := query.Order("started_at DESC").Find(&attempts).Error
	return attempts, err
}
