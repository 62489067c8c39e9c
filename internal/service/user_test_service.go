package service

import (
	"context"
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/lshigami/testcert/internal/dto"
	"github.com/lshigami/testcert/internal/repository"
	"github.com/rs/zerolog/log"
)

type UserTestService interface {
	GetAllTests(ctx context.Context) ([]dto.TestSummaryDTO, error)
	GetTestDetails(ctx context.Context, testID uint) (*dto.TestResponseDTO, error)
}

type userTestService struct {
	testRepo repository.TestRepository
}

func NewUserTestService(testRepo repository.TestRepository) UserTestService {
	return &userTestService{testRepo: testRepo}
}

func (s *userTestService) GetAllTests(ctx context.Context) ([]dto.TestSummaryDTO, error) {
	testsWithCount, err := s.testRepo.FindAllPublishedWithQuestionCount(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get published tests with question count from repository")
		return nil, fmt.Errorf("%w: error fetching tests: %w", ErrExternalFailure, err)
	}

	dtos := make([]dto.TestSummaryDTO, 0, len(testsWithCount))
	for _, twc := range testsWithCount {
		dtos = append(dtos, dto.TestSummaryDTO{
			ID:              twc.Test.ID,
			Title:           twc.Test.Title,
			Description:     twc.Test.Description,
			DurationMinutes: twc.Test.DurationMinutes,
			PassingScore:    twc.Test.PassingScore,
			CategoryType:    twc.Test.CategoryType,
			QuestionCount:   twc.QuestionCount,
			CreatedAt:       twc.Test.CreatedAt,
		})
	}
	return dtos, nil
}

// GetTestDetails hides unpublished tests and never exposes answer keys.
func (s *userTestService) GetTestDetails(ctx context.Context, testID uint) (*dto.TestResponseDTO, error) {
	test, err := s.testRepo.FindByIDWithQuestions(ctx, testID)
	if err != nil {
		log.Warn().Err(err).Uint("testID", testID).Msg("Failed to get test details from repository")
		return nil, notFoundOr(err, "test %d", testID)
	}
	if !test.IsPublished {
		return nil, fmt.Errorf("%w: test %d", ErrNotFound, testID)
	}

	var resp dto.TestResponseDTO
	if err := copier.Copy(&resp, test); err != nil {
		log.Error().Err(err).Msg("Failed to copy Test model to TestResponseDTO")
		return nil, fmt.Errorf("error preparing test details response: %w", err)
	}
	return &resp, nil
}
