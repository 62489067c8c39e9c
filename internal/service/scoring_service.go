package service

import (
	"math"
	"time"

	"github.com/lshigami/testcert/internal/model"
)

type TestResult struct {
	Score            int  `json:"score"`
	TotalPoints      int  `json:"total_points"`
	Percentage       int  `json:"percentage"`
	Passed           bool `json:"passed"`
	CorrectAnswers   int  `json:"correct_answers"`
	TotalQuestions   int  `json:"total_questions"`
	TimeSpentMinutes int  `json:"time_spent_minutes"`
}

type ScoreInput struct {
	Answers      map[uint]string
	Questions    []model.Question // canonical, never the session copy
	PassingScore int
	StartedAt    time.Time
	CompletedAt  time.Time
}

// ScoringService is deterministic and side-effect free.
type ScoringService interface {
	Score(in ScoreInput) TestResult
}

type scoringService struct{}

func NewScoringService() ScoringService {
	return &scoringService{}
}

func (s *scoringService) Score(in ScoreInput) TestResult {
	result := TestResult{TotalQuestions: len(in.Questions)}
	for _, q := range in.Questions {
		result.TotalPoints += q.Points
		if answer, ok := in.Answers[q.ID]; ok && answer == q.CorrectAnswer {
			result.CorrectAnswers++
			result.Score += q.Points
		}
	}
	result.Percentage = percentage(result.Score, result.TotalPoints)
	result.Passed = result.Percentage >= in.PassingScore
	result.TimeSpentMinutes = int(math.Round(in.CompletedAt.Sub(in.StartedAt).Minutes()))
	return result
}

// percentage rounds half up; a zero total yields 0.
func percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}
