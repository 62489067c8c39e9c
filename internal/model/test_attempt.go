package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	AttemptStatusInProgress = "in_progress"
	AttemptStatusCompleted  = "completed"
	AttemptStatusAbandoned  = "abandoned" // closed unscored because its test is gone
)

// TestAttempt is the durable record of one attempt. Its ID doubles as the
// session id of the in-progress TestSession.
type TestAttempt struct {
	ID     uint `gorm:"primarykey" json:"id"`
	TestID uint `json:"test_id" gorm:"not null;index"`
	Test   Test `json:"test,omitempty" gorm:"foreignKey:TestID"`
	UserID uint `json:"user_id" gorm:"not null;index"`
	// Answers is a questionID -> answer text snapshot.
	Answers              datatypes.JSONType[map[uint]string] `json:"answers" gorm:"type:jsonb"`
	QuestionOrder        datatypes.JSONSlice[uint]           `json:"question_order" gorm:"type:jsonb"`
	CurrentQuestionIndex int                                 `json:"current_question_index" gorm:"not null;default:0"`
	Score                int                                 `json:"score" gorm:"not null;default:0"`
	TotalPoints          int                                 `json:"total_points" gorm:"not null;default:0"`
	Percentage           int                                 `json:"percentage" gorm:"not null;default:0"`
	CorrectAnswers       int                                 `json:"correct_answers" gorm:"not null;default:0"`
	Passed               bool                                `json:"passed" gorm:"not null;default:false"`
	TimeSpentMinutes     int                                 `json:"time_spent_minutes" gorm:"not null;default:0"`
	Status               string                              `json:"status" gorm:"not null;default:'in_progress'"`
	StartedAt            time.Time                           `json:"started_at" gorm:"not null"`
	CompletedAt          *time.Time                          `json:"completed_at,omitempty" gorm:"index"`
	CreatedAt            time.Time                           `json:"created_at"`
	UpdatedAt            time.Time                           `json:"updated_at"`
	DeletedAt            gorm.DeletedAt                      `gorm:"index" json:"-"`
}

// AnswerMap returns the answers snapshot, never nil.
func (a *TestAttempt) AnswerMap() map[uint]string {
	answers := a.Answers.Data()
	if answers == nil {
		return map[uint]string{}
	}
	return answers
}
