package user

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/testcert/internal/controller"
	"github.com/lshigami/testcert/internal/dto"
	"github.com/lshigami/testcert/internal/model"
	"github.com/lshigami/testcert/internal/service"
	"github.com/rs/zerolog/log"
)

type SessionController struct {
	sessionService service.TestSessionService
	now            func() time.Time
}

func NewSessionController(sessions service.TestSessionService) *SessionController {
	return &SessionController{sessionService: sessions, now: time.Now}
}

// StartSession godoc
// @Summary (User) Start a timed test session
// @Description Creates an in-progress attempt with a randomized question order.
// @Tags User - Sessions
// @Accept json
// @Produce json
// @Param body body dto.StartSessionDTO true "User and test"
// @Success 201 {object} dto.SessionResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid request body"
// @Failure 403 {object} dto.ErrorResponse "Test not published"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /sessions [post]
func (c *SessionController) StartSession(ctx *gin.Context) {
	var req dto.StartSessionDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	session, err := c.sessionService.Start(ctx.Request.Context(), req.UserID, req.TestID)
	if err != nil {
		log.Warn().Err(err).Uint("userID", req.UserID).Uint("testID", req.TestID).Msg("StartSession: service error")
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, c.toResponse(session))
}

// GetSession godoc
// @Summary (User) Get a test session
// @Tags User - Sessions
// @Produce json
// @Param session_id path int true "Session ID"
// @Success 200 {object} dto.SessionResponseDTO
// @Failure 404 {object} dto.ErrorResponse "Session not found"
// @Router /sessions/{session_id} [get]
func (c *SessionController) GetSession(ctx *gin.Context) {
	sessionID, ok := controller.ParseID(ctx, "session_id")
	if !ok {
		return
	}
	session, err := c.sessionService.GetSession(ctx.Request.Context(), sessionID)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, c.toResponse(session))
}

// GetCurrentQuestion godoc
// @Summary (User) Current question of a session
// @Tags User - Sessions
// @Produce json
// @Param session_id path int true "Session ID"
// @Success 200 {object} dto.QuestionResponseDTO
// @Success 204 "Session has no questions"
// @Failure 404 {object} dto.ErrorResponse "Session not found"
// @Failure 409 {object} dto.ErrorResponse "Session expired"
// @Router /sessions/{session_id}/current-question [get]
func (c *SessionController) GetCurrentQuestion(ctx *gin.Context) {
	sessionID, ok := controller.ParseID(ctx, "session_id")
	if !ok {
		return
	}
	question, err := c.sessionService.GetCurrentQuestion(ctx.Request.Context(), sessionID)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	if question == nil {
		ctx.Status(http.StatusNoContent)
		return
	}
	ctx.JSON(http.StatusOK, toQuestionResponse(*question))
}

// AnswerQuestion godoc
// @Summary (User) Record an answer
// @Description Overwrites any previous answer to the same question.
// @Tags User - Sessions
// @Accept json
// @Produce json
// @Param session_id path int true "Session ID"
// @Param body body dto.AnswerDTO true "Answer"
// @Success 200 {object} dto.SessionResponseDTO
// @Failure 404 {object} dto.ErrorResponse "Session not found"
// @Failure 409 {object} dto.ErrorResponse "Session expired or question not in session"
// @Router /sessions/{session_id}/answers [put]
func (c *SessionController) AnswerQuestion(ctx *gin.Context) {
	sessionID, ok := controller.ParseID(ctx, "session_id")
	if !ok {
		return
	}
	var req dto.AnswerDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	session, err := c.sessionService.Answer(ctx.Request.Context(), sessionID, req.QuestionID, req.Answer)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, c.toResponse(session))
}

// Navigate godoc
// @Summary (User) Move between questions
// @Tags User - Sessions
// @Accept json
// @Produce json
// @Param session_id path int true "Session ID"
// @Param body body dto.NavigateDTO true "Direction and optional index for goto"
// @Success 200 {object} dto.SessionResponseDTO
// @Failure 404 {object} dto.ErrorResponse "Session not found"
// @Failure 409 {object} dto.ErrorResponse "Session expired"
// @Router /sessions/{session_id}/navigate [post]
func (c *SessionController) Navigate(ctx *gin.Context) {
	sessionID, ok := controller.ParseID(ctx, "session_id")
	if !ok {
		return
	}
	var req dto.NavigateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	if req.Direction == service.NavigateGoto && req.Index == nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "index is required for goto"})
		return
	}
	session, err := c.sessionService.Navigate(ctx.Request.Context(), sessionID, req.Direction, req.Index)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, c.toResponse(session))
}

// GetValidity godoc
// @Summary (User) Whether a session is still within its time limit
// @Tags User - Sessions
// @Produce json
// @Param session_id path int true "Session ID"
// @Success 200 {object} dto.SessionValidityDTO
// @Failure 404 {object} dto.ErrorResponse "Session not found"
// @Router /sessions/{session_id}/validity [get]
func (c *SessionController) GetValidity(ctx *gin.Context) {
	sessionID, ok := controller.ParseID(ctx, "session_id")
	if !ok {
		return
	}
	valid, err := c.sessionService.IsValid(ctx.Request.Context(), sessionID)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.SessionValidityDTO{SessionID: sessionID, IsValid: valid})
}

// GetProgress godoc
// @Summary (User) Progress of a session
// @Tags User - Sessions
// @Produce json
// @Param session_id path int true "Session ID"
// @Success 200 {object} service.SessionProgress
// @Failure 404 {object} dto.ErrorResponse "Session not found"
// @Router /sessions/{session_id}/progress [get]
func (c *SessionController) GetProgress(ctx *gin.Context) {
	sessionID, ok := controller.ParseID(ctx, "session_id")
	if !ok {
		return
	}
	progress, err := c.sessionService.Progress(ctx.Request.Context(), sessionID)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, progress)
}

// SubmitSession godoc
// @Summary (User) Submit a session for scoring
// @Tags User - Sessions
// @Accept json
// @Produce json
// @Param session_id path int true "Session ID"
// @Param body body dto.SubmitSessionDTO true "Owner of the session"
// @Success 200 {object} dto.SessionResultDTO
// @Failure 404 {object} dto.ErrorResponse "Session not found"
// @Failure 409 {object} dto.ErrorResponse "Already submitted"
// @Router /sessions/{session_id}/submit [post]
func (c *SessionController) SubmitSession(ctx *gin.Context) {
	sessionID, ok := controller.ParseID(ctx, "session_id")
	if !ok {
		return
	}
	var req dto.SubmitSessionDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	result, err := c.sessionService.Submit(ctx.Request.Context(), sessionID, req.UserID)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.SessionResultDTO{
		AttemptID:        result.AttemptID,
		Score:            result.Score,
		TotalPoints:      result.TotalPoints,
		Percentage:       result.Percentage,
		Passed:           result.Passed,
		CorrectAnswers:   result.CorrectAnswers,
		TotalQuestions:   result.TotalQuestions,
		TimeSpentMinutes: result.TimeSpentMinutes,
	})
}

func (c *SessionController) toResponse(session *model.TestSession) dto.SessionResponseDTO {
	questions := make([]dto.QuestionResponseDTO, len(session.Questions))
	for i, q := range session.Questions {
		questions[i] = toQuestionResponse(q)
	}
	answers := session.Answers
	if answers == nil {
		answers = map[uint]string{}
	}
	return dto.SessionResponseDTO{
		ID:                   session.ID,
		TestID:               session.TestID,
		UserID:               session.UserID,
		Questions:            questions,
		StartTime:            session.StartTime,
		TimeLimit:            session.TimeLimit,
		CurrentQuestionIndex: session.CurrentQuestionIndex,
		Answers:              answers,
		RemainingSeconds:     int64(session.RemainingTime(c.now()).Seconds()),
	}
}

func toQuestionResponse(q model.SessionQuestion) dto.QuestionResponseDTO {
	return dto.QuestionResponseDTO{
		ID:          q.ID,
		OrderInTest: q.OrderInTest,
		Type:        q.Type,
		Prompt:      q.Prompt,
		Options:     q.Options,
		Points:      q.Points,
	}
}
