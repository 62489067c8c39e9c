package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jinzhu/copier"
	"github.com/lshigami/testcert/internal/dto"
	"github.com/lshigami/testcert/internal/model"
	"github.com/lshigami/testcert/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	QuestionTypeMultipleChoice = "multiple_choice"
	QuestionTypeTrueFalse      = "true_false"
	QuestionTypeShortAnswer    = "short_answer"
)

// ErrInvalidTest is returned for authoring payloads that fail validation.
var ErrInvalidTest = errors.New("invalid test")

type AdminTestService interface {
	CreateTest(ctx context.Context, req dto.TestCreateDTO) (*dto.AdminTestResponseDTO, error)
	PublishTest(ctx context.Context, testID uint) (*dto.AdminTestResponseDTO, error)
	GetTest(ctx context.Context, testID uint) (*dto.AdminTestResponseDTO, error)
}

type adminTestService struct {
	testRepo   repository.TestRepository
	classifier ProficiencyClassifier
}

func NewAdminTestService(testRepo repository.TestRepository, classifier ProficiencyClassifier) AdminTestService {
	return &adminTestService{testRepo: testRepo, classifier: classifier}
}

func (s *adminTestService) CreateTest(ctx context.Context, req dto.TestCreateDTO) (*dto.AdminTestResponseDTO, error) {
	switch req.CategoryType {
	case model.CategoryLanguage, model.CategoryTechnical, model.CategoryProfessional, model.CategoryAcademic:
	default:
		return nil, fmt.Errorf("%w: unknown category type %q", ErrInvalidTest, req.CategoryType)
	}
	if req.Level != nil && *req.Level != "" && !s.knownLevel(req.CategoryType, *req.Level) {
		return nil, fmt.Errorf("%w: level %q is not on the %s scale", ErrInvalidTest, *req.Level, req.CategoryType)
	}
	if len(req.Questions) == 0 {
		return nil, fmt.Errorf("%w: a test must have at least one question", ErrInvalidTest)
	}

	orderMap := make(map[int]bool)
	questions := make([]model.Question, 0, len(req.Questions))
	for _, qDto := range req.Questions {
		if orderMap[qDto.OrderInTest] {
			return nil, fmt.Errorf("%w: duplicate order_in_test %d", ErrInvalidTest, qDto.OrderInTest)
		}
		orderMap[qDto.OrderInTest] = true
		if err := validateQuestion(qDto); err != nil {
			return nil, err
		}

		var question model.Question
		if err := copier.Copy(&question, &qDto); err != nil {
			return nil, fmt.Errorf("error preparing question %d: %w", qDto.OrderInTest, err)
		}
		questions = append(questions, question)
	}

	testModel := model.Test{
		Title:                     strings.TrimSpace(req.Title),
		Description:               req.Description,
		DurationMinutes:           req.DurationMinutes,
		PassingScore:              req.PassingScore,
		TotalQuestions:            len(questions),
		CategoryType:              req.CategoryType,
		Level:                     req.Level,
		CertificateValidityMonths: req.CertificateValidityMonths,
		Questions:                 questions,
	}
	if err := s.testRepo.Create(ctx, &testModel); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: a test titled %q already exists", ErrInvalidTest, testModel.Title)
		}
		log.Error().Err(err).Str("title", testModel.Title).Msg("Failed to create test in database")
		return nil, fmt.Errorf("%w: database error creating test: %w", ErrExternalFailure, err)
	}
	log.Info().Uint("testID", testModel.ID).Int("questions", len(questions)).Msg("Test created")
	return toAdminTestResponse(&testModel)
}

func (s *adminTestService) PublishTest(ctx context.Context, testID uint) (*dto.AdminTestResponseDTO, error) {
	if err := s.testRepo.Publish(ctx, testID); err != nil {
		return nil, notFoundOr(err, "test %d", testID)
	}
	log.Info().Uint("testID", testID).Msg("Test published")
	return s.GetTest(ctx, testID)
}

func (s *adminTestService) GetTest(ctx context.Context, testID uint) (*dto.AdminTestResponseDTO, error) {
	test, err := s.testRepo.FindByIDWithQuestions(ctx, testID)
	if err != nil {
		return nil, notFoundOr(err, "test %d", testID)
	}
	return toAdminTestResponse(test)
}

func (s *adminTestService) knownLevel(categoryType, level string) bool {
	for _, band := range s.classifier.Bands(categoryType) {
		if band.Level == level {
			return true
		}
	}
	return false
}

func validateQuestion(q dto.QuestionCreateDTO) error {
	switch q.Type {
	case QuestionTypeMultipleChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: question %d needs at least two options", ErrInvalidTest, q.OrderInTest)
		}
		for _, option := range q.Options {
			if option == q.CorrectAnswer {
				return nil
			}
		}
		return fmt.Errorf("%w: correct answer of question %d is not one of its options", ErrInvalidTest, q.OrderInTest)
	case QuestionTypeTrueFalse:
		if q.CorrectAnswer != "true" && q.CorrectAnswer != "false" {
			return fmt.Errorf("%w: question %d must be answered true or false", ErrInvalidTest, q.OrderInTest)
		}
	case QuestionTypeShortAnswer:
	default:
		return fmt.Errorf("%w: question %d has unknown type %q", ErrInvalidTest, q.OrderInTest, q.Type)
	}
	return nil
}

func toAdminTestResponse(test *model.Test) (*dto.AdminTestResponseDTO, error) {
	var resp dto.AdminTestResponseDTO
	if err := copier.Copy(&resp, test); err != nil {
		log.Error().Err(err).Uint("testID", test.ID).Msg("Failed to copy Test model to AdminTestResponseDTO")
		return nil, fmt.Errorf("error preparing response data: %w", err)
	}
	return &resp, nil
}
