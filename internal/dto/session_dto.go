package dto

import "time"

type StartSessionDTO struct {
	UserID uint `json:"user_id" binding:"required"`
	TestID uint `json:"test_id" binding:"required"`
}

type AnswerDTO struct {
	QuestionID uint   `json:"question_id" binding:"required"`
	Answer     string `json:"answer"`
}

type NavigateDTO struct {
	Direction string `json:"direction" binding:"required,oneof=next previous goto"`
	Index     *int   `json:"index"`
}

type SubmitSessionDTO struct {
	UserID uint `json:"user_id" binding:"required"`
}

// SessionResponseDTO never carries correct answers.
type SessionResponseDTO struct {
	ID                   uint                  `json:"id"`
	TestID               uint                  `json:"test_id"`
	UserID               uint                  `json:"user_id"`
	Questions            []QuestionResponseDTO `json:"questions"`
	StartTime            time.Time             `json:"start_time"`
	TimeLimit            int                   `json:"time_limit"`
	CurrentQuestionIndex int                   `json:"current_question_index"`
	Answers              map[uint]string       `json:"answers"`
	RemainingSeconds     int64                 `json:"remaining_seconds"`
}

type SessionValidityDTO struct {
	SessionID uint `json:"session_id"`
	IsValid   bool `json:"is_valid"`
}

type SessionResultDTO struct {
	AttemptID        uint `json:"attempt_id"`
	Score            int  `json:"score"`
	TotalPoints      int  `json:"total_points"`
	Percentage       int  `json:"percentage"`
	Passed           bool `json:"passed"`
	CorrectAnswers   int  `json:"correct_answers"`
	TotalQuestions   int  `json:"total_questions"`
	TimeSpentMinutes int  `json:"time_spent_minutes"`
}
