package dto

import "time"

// QuestionResponseDTO is a question as shown to candidates, without its answer.
type QuestionResponseDTO struct {
	ID          uint     `json:"id"`
	OrderInTest int      `json:"order_in_test"`
	Type        string   `json:"type"`
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options,omitempty"`
	Points      int      `json:"points"`
}

// TestResponseDTO is used for displaying full test details to users.
type TestResponseDTO struct {
	ID              uint                  `json:"id"`
	Title           string                `json:"title"`
	Description     string                `json:"description,omitempty"`
	DurationMinutes int                   `json:"duration_minutes"`
	PassingScore    int                   `json:"passing_score"`
	TotalQuestions  int                   `json:"total_questions"`
	CategoryType    string                `json:"category_type"`
	Level           *string               `json:"level,omitempty"`
	Questions       []QuestionResponseDTO `json:"questions,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

// TestSummaryDTO is used for listing tests available to users.
type TestSummaryDTO struct {
	ID              uint      `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	PassingScore    int       `json:"passing_score"`
	CategoryType    string    `json:"category_type"`
	QuestionCount   int       `json:"question_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// TestAttemptSummaryDTO is one row of a user's attempt history.
type TestAttemptSummaryDTO struct {
	ID               uint       `json:"id"`
	TestID           uint       `json:"test_id"`
	UserID           uint       `json:"user_id"`
	Status           string     `json:"status"`
	Score            int        `json:"score"`
	TotalPoints      int        `json:"total_points"`
	Percentage       int        `json:"percentage"`
	CorrectAnswers   int        `json:"correct_answers"`
	Passed           bool       `json:"passed"`
	TimeSpentMinutes int        `json:"time_spent_minutes"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}
