package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lshigami/testcert/config"
	"github.com/lshigami/testcert/internal/cache"
	"github.com/lshigami/testcert/internal/model"
	"github.com/lshigami/testcert/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	NavigateNext     = "next"
	NavigatePrevious = "previous"
	NavigateGoto     = "goto"
)

type SubmissionResult struct {
	AttemptID uint `json:"attempt_id"`
	TestResult
}

type SessionProgress struct {
	CurrentQuestion   int   `json:"current_question"` // 1-based
	TotalQuestions    int   `json:"total_questions"`
	Percentage        int   `json:"percentage"` // answered share
	AnsweredQuestions int   `json:"answered_questions"`
	RemainingSeconds  int64 `json:"remaining_seconds"`
}

// TestSessionService owns the lifecycle of in-progress attempts. Every
// mutating call re-checks the deadline and auto-submits an expired session.
type TestSessionService interface {
	Start(ctx context.Context, userID, testID uint) (*model.TestSession, error)
	GetSession(ctx context.Context, sessionID uint) (*model.TestSession, error)
	GetCurrentQuestion(ctx context.Context, sessionID uint) (*model.SessionQuestion, error)
	Answer(ctx context.Context, sessionID, questionID uint, value string) (*model.TestSession, error)
	Navigate(ctx context.Context, sessionID uint, direction string, index *int) (*model.TestSession, error)
	IsValid(ctx context.Context, sessionID uint) (bool, error)
	Submit(ctx context.Context, sessionID, userID uint) (*SubmissionResult, error)
	CleanupExpired(ctx context.Context) (int, error)
	Progress(ctx context.Context, sessionID uint) (*SessionProgress, error)
	AttemptHistory(ctx context.Context, testID uint, userID *uint) ([]model.TestAttempt, error)
}

type SessionOption func(*testSessionService)

// WithSessionClock replaces time.Now.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *testSessionService) { s.now = now }
}

type testSessionService struct {
	testRepo     repository.TestRepository
	questionRepo repository.QuestionRepository
	attemptRepo  repository.TestAttemptRepository
	sessions     cache.SessionCache
	randomizer   QuestionRandomizer
	scorer       ScoringService
	gracePeriod  time.Duration
	now          func() time.Time
}

func NewTestSessionService(
	testRepo repository.TestRepository,
	questionRepo repository.QuestionRepository,
	attemptRepo repository.TestAttemptRepository,
	sessions cache.SessionCache,
	randomizer QuestionRandomizer,
	scorer ScoringService,
	cfg *config.Config,
	opts ...SessionOption,
) TestSessionService {
	s := &testSessionService{
		testRepo:     testRepo,
		questionRepo: questionRepo,
		attemptRepo:  attemptRepo,
		sessions:     sessions,
		randomizer:   randomizer,
		scorer:       scorer,
		gracePeriod:  cfg.Session.GracePeriod,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *testSessionService) Start(ctx context.Context, userID, testID uint) (*model.TestSession, error) {
	test, err := s.testRepo.FindByID(ctx, testID)
	if err != nil {
		log.Warn().Err(err).Uint("testID", testID).Msg("Start: test lookup failed")
		return nil, notFoundOr(err, "test %d", testID)
	}
	if !test.IsPublished {
		return nil, fmt.Errorf("%w: test %d is not published", ErrUnavailable, testID)
	}

	questions, err := s.questionRepo.FindByTestID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("%w: load questions for test %d: %w", ErrExternalFailure, testID, err)
	}
	randomized := s.randomizer.Randomize(questions)

	session := &model.TestSession{
		TestID:    testID,
		UserID:    userID,
		Questions: toSessionQuestions(randomized),
		StartTime: s.now(),
		TimeLimit: test.DurationMinutes,
		Answers:   map[uint]string{},
	}

	attempt := &model.TestAttempt{
		TestID:        testID,
		UserID:        userID,
		Answers:       datatypes.NewJSONType(map[uint]string{}),
		QuestionOrder: session.QuestionOrder(),
		Status:        model.AttemptStatusInProgress,
		StartedAt:     session.StartTime,
	}
	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		log.Error().Err(err).Uint("testID", testID).Uint("userID", userID).Msg("Start: failed to create test attempt")
		return nil, fmt.Errorf("%w: create attempt: %w", ErrExternalFailure, err)
	}
	session.ID = attempt.ID

	if err := s.sessions.Set(ctx, session, s.ttl(session)); err != nil {
		// The attempt row is in progress, so the session is rebuilt on next access.
		log.Error().Err(err).Uint("sessionID", session.ID).Msg("Start: failed to cache session")
		return nil, fmt.Errorf("%w: cache session %d: %w", ErrExternalFailure, session.ID, err)
	}

	log.Info().Uint("sessionID", session.ID).Uint("testID", testID).Uint("userID", userID).Int("questions", len(session.Questions)).Msg("Test session started")
	return session, nil
}

func (s *testSessionService) GetSession(ctx context.Context, sessionID uint) (*model.TestSession, error) {
	return s.load(ctx, sessionID)
}

func (s *testSessionService) GetCurrentQuestion(ctx context.Context, sessionID uint) (*model.SessionQuestion, error) {
	session, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	idx := session.CurrentQuestionIndex
	if idx < 0 || idx >= len(session.Questions) {
		return nil, nil
	}
	question := session.Questions[idx]
	return &question, nil
}

// Answer records value unconditionally (last write wins); whether it is one
// of the offered options is only checked by scoring.
func (s *testSessionService) Answer(ctx context.Context, sessionID, questionID uint, value string) (*model.TestSession, error) {
	session, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.HasQuestion(questionID) {
		return nil, fmt.Errorf("%w: question %d is not part of session %d", ErrInvalidState, questionID, sessionID)
	}
	session.Answers[questionID] = value
	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Navigate clamps next/previous to the question range. An out-of-range goto
// returns the session unchanged without error.
func (s *testSessionService) Navigate(ctx context.Context, sessionID uint, direction string, index *int) (*model.TestSession, error) {
	session, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	total := len(session.Questions)
	current := session.CurrentQuestionIndex

	next := current
	switch direction {
	case NavigateNext:
		next = clampIndex(current+1, total)
	case NavigatePrevious:
		next = clampIndex(current-1, total)
	case NavigateGoto:
		if index == nil || *index < 0 || *index >= total {
			return session, nil
		}
		next = *index
	default:
		return nil, fmt.Errorf("%w: unknown navigation direction %q", ErrInvalidState, direction)
	}
	if next == current {
		return session, nil
	}

	session.CurrentQuestionIndex = next
	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *testSessionService) IsValid(ctx context.Context, sessionID uint) (bool, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return session.IsValid(s.now()), nil
}

func (s *testSessionService) Submit(ctx context.Context, sessionID, userID uint) (*SubmissionResult, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, fmt.Errorf("%w: session %d", ErrNotFound, sessionID)
	}
	return s.finalize(ctx, session, s.now())
}

// CleanupExpired auto-submits every expired session, first from the cache
// and then from in-progress attempt rows whose cache entry is already gone.
func (s *testSessionService) CleanupExpired(ctx context.Context) (int, error) {
	now := s.now()
	handled := make(map[uint]bool)
	count := 0

	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: list sessions: %w", ErrExternalFailure, err)
	}
	for _, session := range sessions {
		handled[session.ID] = true
		if session.IsValid(now) {
			continue
		}
		if s.expire(ctx, session, now) {
			count++
		}
	}

	attempts, err := s.attemptRepo.FindInProgress(ctx)
	if err != nil {
		return count, fmt.Errorf("%w: list in-progress attempts: %w", ErrExternalFailure, err)
	}
	durations := make(map[uint]int)
	for _, attempt := range attempts {
		if handled[attempt.ID] {
			continue
		}
		duration, ok := durations[attempt.TestID]
		if !ok {
			test, err := s.testRepo.FindByID(ctx, attempt.TestID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if s.abandon(ctx, attempt.ID, now, err) {
					count++
				}
				continue
			}
			if err != nil {
				log.Warn().Err(err).Uint("attemptID", attempt.ID).Uint("testID", attempt.TestID).Msg("CleanupExpired: test lookup failed, skipping attempt")
				continue
			}
			duration = test.DurationMinutes
			durations[attempt.TestID] = duration
		}
		session := &model.TestSession{
			ID:        attempt.ID,
			TestID:    attempt.TestID,
			UserID:    attempt.UserID,
			StartTime: attempt.StartedAt,
			TimeLimit: duration,
			Answers:   attempt.AnswerMap(),
		}
		if session.IsValid(now) {
			continue
		}
		if s.expire(ctx, session, now) {
			count++
		}
	}

	if count > 0 {
		log.Info().Int("expired", count).Msg("Expired test sessions auto-submitted")
	}
	return count, nil
}

func (s *testSessionService) Progress(ctx context.Context, sessionID uint) (*SessionProgress, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	total := len(session.Questions)
	answered := 0
	for id := range session.Answers {
		if session.HasQuestion(id) {
			answered++
		}
	}
	current := 0
	if total > 0 {
		current = session.CurrentQuestionIndex + 1
	}
	return &SessionProgress{
		CurrentQuestion:   current,
		TotalQuestions:    total,
		Percentage:        percentage(answered, total),
		AnsweredQuestions: answered,
		RemainingSeconds:  int64(session.RemainingTime(s.now()).Seconds()),
	}, nil
}

func (s *testSessionService) AttemptHistory(ctx context.Context, testID uint, userID *uint) ([]model.TestAttempt, error) {
	attempts, err := s.attemptRepo.FindAllByTestAndUser(ctx, testID, userID)
	if err != nil {
		log.Error().Err(err).Uint("testID", testID).Interface("userID", userID).Msg("AttemptHistory: repository error")
		return nil, fmt.Errorf("%w: attempts for test %d: %w", ErrExternalFailure, testID, err)
	}
	return attempts, nil
}

// expire auto-submits an expired session and reports whether it was removed.
func (s *testSessionService) expire(ctx context.Context, session *model.TestSession, now time.Time) bool {
	_, err := s.finalize(ctx, session, now)
	switch {
	case err == nil:
		log.Info().Uint("sessionID", session.ID).Msg("Expired session auto-submitted")
		return true
	case errors.Is(err, ErrInvalidState):
		// already submitted elsewhere; finalize dropped the cache entry
		return true
	case errors.Is(err, ErrNotFound):
		return s.abandon(ctx, session.ID, now, err)
	default:
		log.Error().Err(err).Uint("sessionID", session.ID).Msg("Auto-submit of expired session failed, will retry on next sweep")
		return false
	}
}

// abandon closes an attempt whose test no longer exists so sweeps stop revisiting it.
func (s *testSessionService) abandon(ctx context.Context, attemptID uint, now time.Time, cause error) bool {
	closed, err := s.attemptRepo.Abandon(ctx, attemptID, now)
	if err != nil {
		log.Error().Err(err).Uint("sessionID", attemptID).Msg("Failed to abandon session of a missing test, will retry on next sweep")
		return false
	}
	s.drop(ctx, attemptID)
	if closed {
		log.Warn().AnErr("cause", cause).Uint("sessionID", attemptID).Msg("Expired session abandoned, its test no longer exists")
	}
	return true
}

// finalize scores against freshly loaded canonical questions and writes the
// result once. On failure the cached session is left in place.
func (s *testSessionService) finalize(ctx context.Context, session *model.TestSession, completedAt time.Time) (*SubmissionResult, error) {
	test, err := s.testRepo.FindByID(ctx, session.TestID)
	if err != nil {
		log.Error().Err(err).Uint("sessionID", session.ID).Uint("testID", session.TestID).Msg("Submit: test lookup failed")
		return nil, notFoundOr(err, "test %d", session.TestID)
	}
	questions, err := s.questionRepo.FindByTestID(ctx, session.TestID)
	if err != nil {
		return nil, fmt.Errorf("%w: load questions for test %d: %w", ErrExternalFailure, session.TestID, err)
	}

	result := s.scorer.Score(ScoreInput{
		Answers:      session.Answers,
		Questions:    questions,
		PassingScore: test.PassingScore,
		StartedAt:    session.StartTime,
		CompletedAt:  completedAt,
	})

	attempt := &model.TestAttempt{
		ID:               session.ID,
		Answers:          datatypes.NewJSONType(session.Answers),
		Score:            result.Score,
		TotalPoints:      result.TotalPoints,
		Percentage:       result.Percentage,
		CorrectAnswers:   result.CorrectAnswers,
		Passed:           result.Passed,
		TimeSpentMinutes: result.TimeSpentMinutes,
		CompletedAt:      &completedAt,
	}
	updated, err := s.attemptRepo.Finalize(ctx, attempt)
	if err != nil {
		log.Error().Err(err).Uint("sessionID", session.ID).Msg("Submit: failed to persist final attempt")
		return nil, fmt.Errorf("%w: finalize attempt %d: %w", ErrExternalFailure, session.ID, err)
	}
	s.drop(ctx, session.ID)
	if !updated {
		return nil, fmt.Errorf("%w: attempt %d was already submitted", ErrInvalidState, session.ID)
	}

	log.Info().Uint("attemptID", session.ID).Int("score", result.Score).Int("totalPoints", result.TotalPoints).Int("percentage", result.Percentage).Bool("passed", result.Passed).Msg("Test attempt submitted")
	return &SubmissionResult{AttemptID: session.ID, TestResult: result}, nil
}

func (s *testSessionService) drop(ctx context.Context, sessionID uint) {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		log.Warn().Err(err).Uint("sessionID", sessionID).Msg("Failed to remove session from cache; TTL will evict it")
	}
}

// persist writes through to the attempt row before refreshing the cache.
func (s *testSessionService) persist(ctx context.Context, session *model.TestSession) error {
	err := s.attemptRepo.UpdateProgress(ctx, session.ID, session.Answers, session.QuestionOrder(), session.CurrentQuestionIndex)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.drop(ctx, session.ID)
		return fmt.Errorf("%w: attempt %d is no longer in progress", ErrInvalidState, session.ID)
	}
	if err != nil {
		log.Error().Err(err).Uint("sessionID", session.ID).Msg("Failed to persist session progress")
		return fmt.Errorf("%w: persist session %d: %w", ErrExternalFailure, session.ID, err)
	}
	if err := s.sessions.Set(ctx, session, s.ttl(session)); err != nil {
		log.Warn().Err(err).Uint("sessionID", session.ID).Msg("Failed to refresh cached session; it will be rebuilt from the attempt")
	}
	return nil
}

// loadActive loads a session and auto-submits it if the deadline has passed.
func (s *testSessionService) loadActive(ctx context.Context, sessionID uint) (*model.TestSession, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !session.IsValid(now) {
		s.expire(ctx, session, now)
		return nil, fmt.Errorf("%w: session %d expired", ErrInvalidState, sessionID)
	}
	return session, nil
}

func (s *testSessionService) load(ctx context.Context, sessionID uint) (*model.TestSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, cache.ErrSessionNotFound) {
		log.Warn().Err(err).Uint("sessionID", sessionID).Msg("Session cache read failed, rebuilding from attempt")
	}
	return s.rebuild(ctx, sessionID)
}

// rebuild restores an in-progress session from its attempt row. Question
// order is kept; options are reshuffled.
func (s *testSessionService) rebuild(ctx context.Context, sessionID uint) (*model.TestSession, error) {
	attempt, err := s.attemptRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, notFoundOr(err, "session %d", sessionID)
	}
	if attempt.CompletedAt != nil {
		return nil, fmt.Errorf("%w: session %d already submitted", ErrNotFound, sessionID)
	}
	test, err := s.testRepo.FindByID(ctx, attempt.TestID)
	if err != nil {
		return nil, notFoundOr(err, "test %d", attempt.TestID)
	}
	questions, err := s.questionRepo.FindByTestID(ctx, attempt.TestID)
	if err != nil {
		return nil, fmt.Errorf("%w: load questions for test %d: %w", ErrExternalFailure, attempt.TestID, err)
	}

	position := make(map[uint]int, len(attempt.QuestionOrder))
	for i, id := range attempt.QuestionOrder {
		position[id] = i
	}
	randomized := s.randomizer.Randomize(questions)
	sort.SliceStable(randomized, func(i, j int) bool {
		pi, oki := position[randomized[i].ID]
		pj, okj := position[randomized[j].ID]
		if oki != okj {
			return oki
		}
		return pi < pj
	})

	session := &model.TestSession{
		ID:                   attempt.ID,
		TestID:               attempt.TestID,
		UserID:               attempt.UserID,
		Questions:            toSessionQuestions(randomized),
		StartTime:            attempt.StartedAt,
		TimeLimit:            test.DurationMinutes,
		CurrentQuestionIndex: clampIndex(attempt.CurrentQuestionIndex, len(randomized)),
		Answers:              attempt.AnswerMap(),
	}
	if err := s.sessions.Set(ctx, session, s.ttl(session)); err != nil {
		log.Warn().Err(err).Uint("sessionID", sessionID).Msg("Failed to cache rebuilt session")
	}
	log.Info().Uint("sessionID", sessionID).Msg("Test session rebuilt from attempt record")
	return session, nil
}

// ttl keeps the entry past the deadline long enough for the sweep to auto-submit it.
func (s *testSessionService) ttl(session *model.TestSession) time.Duration {
	ttl := session.RemainingTime(s.now()) + s.gracePeriod
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func clampIndex(idx, total int) int {
	if total <= 0 || idx < 0 {
		return 0
	}
	return min(idx, total-1)
}

func toSessionQuestions(questions []model.Question) []model.SessionQuestion {
	out := make([]model.SessionQuestion, len(questions))
	for i, q := range questions {
		out[i] = model.SessionQuestion{
			ID:          q.ID,
			OrderInTest: q.OrderInTest,
			Type:        q.Type,
			Prompt:      q.Prompt,
			Options:     append([]string(nil), q.Options...),
			Points:      q.Points,
		}
	}
	return out
}
