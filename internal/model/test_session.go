package model

import "time"

// SessionQuestion is the per-session view of a question. It never carries
// the correct answer; scoring always reloads canonical questions.
type SessionQuestion struct {
	ID          uint     `json:"id"`
	OrderInTest int      `json:"order_in_test"`
	Type        string   `json:"type"`
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	Points      int      `json:"points"`
}

// TestSession is the ephemeral state of an in-progress attempt. ID equals
// the TestAttempt ID. It is not safe for concurrent writers to the same
// session id: answers are last-write-wins per question.
type TestSession struct {
	ID                   uint              `json:"id"`
	TestID               uint              `json:"test_id"`
	UserID               uint              `json:"user_id"`
	Questions            []SessionQuestion `json:"questions"`
	StartTime            time.Time         `json:"start_time"`
	TimeLimit            int               `json:"time_limit"` // minutes
	CurrentQuestionIndex int               `json:"current_question_index"`
	Answers              map[uint]string   `json:"answers"`
}

// Deadline is the instant at which the session expires.
func (s *TestSession) Deadline() time.Time {
	return s.StartTime.Add(time.Duration(s.TimeLimit) * time.Minute)
}

// IsValid reports elapsed < timeLimit; elapsed == timeLimit is expired.
func (s *TestSession) IsValid(now time.Time) bool {
	return now.Before(s.Deadline())
}

// RemainingTime is clamped at zero.
func (s *TestSession) RemainingTime(now time.Time) time.Duration {
	remaining := s.Deadline().Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HasQuestion reports whether questionID belongs to this session's question set.
func (s *TestSession) HasQuestion(questionID uint) bool {
	for _, q := range s.Questions {
		if q.ID == questionID {
			return true
		}
	}
	return false
}

// QuestionOrder returns the session's question ids in presentation order.
func (s *TestSession) QuestionOrder() []uint {
	order := make([]uint, len(s.Questions))
	for i, q := range s.Questions {
		order[i] = q.ID
	}
	return order
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (s *TestSession) Clone() *TestSession {
	clone := *s
	clone.Questions = make([]SessionQuestion, len(s.Questions))
	for i, q := range s.Questions {
		q.Options = append([]string(nil), q.Options...)
		clone.Questions[i] = q
	}
	clone.Answers = make(map[uint]string, len(s.Answers))
	for k, v := range s.Answers {
		clone.Answers[k] = v
	}
	return &clone
}
