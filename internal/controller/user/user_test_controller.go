package user

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"github.com/lshigami/testcert/internal/controller"
	"github.com/lshigami/testcert/internal/dto"
	"github.com/lshigami/testcert/internal/service"
	"github.com/rs/zerolog/log"
)

type UserTestController struct {
	userTestService service.UserTestService
	sessionService  service.TestSessionService
}

func NewUserTestController(uts service.UserTestService, sessions service.TestSessionService) *UserTestController {
	return &UserTestController{
		userTestService: uts,
		sessionService:  sessions,
	}
}

// GetAllTests godoc
// @Summary (User) List published tests
// @Tags User - Tests
// @Produce json
// @Success 200 {array} dto.TestSummaryDTO
// @Failure 502 {object} dto.ErrorResponse "Database failure"
// @Router /tests [get]
func (c *UserTestController) GetAllTests(ctx *gin.Context) {
	tests, err := c.userTestService.GetAllTests(ctx.Request.Context())
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, tests)
}

// GetTestDetails godoc
// @Summary (User) Get details of a published test
// @Description Questions are returned without their correct answers.
// @Tags User - Tests
// @Produce json
// @Param test_id path int true "Test ID"
// @Success 200 {object} dto.TestResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid Test ID format"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /tests/{test_id} [get]
func (c *UserTestController) GetTestDetails(ctx *gin.Context) {
	testID, ok := controller.ParseID(ctx, "test_id")
	if !ok {
		return
	}
	testDetails, err := c.userTestService.GetTestDetails(ctx.Request.Context(), testID)
	if err != nil {
		log.Warn().Err(err).Uint("testID", testID).Msg("User GetTestDetails: service error")
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, testDetails)
}

// GetTestAttempts godoc
// @Summary (User) Attempt history for a test
// @Description Lists attempts on a test, newest first. Filter by user with the user_id query parameter.
// @Tags User - Tests
// @Produce json
// @Param test_id path int true "Test ID"
// @Param user_id query int false "User ID"
// @Success 200 {array} dto.TestAttemptSummaryDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid ID format"
// @Router /tests/{test_id}/attempts [get]
func (c *UserTestController) GetTestAttempts(ctx *gin.Context) {
	testID, ok := controller.ParseID(ctx, "test_id")
	if !ok {
		return
	}
	var userID *uint
	if raw := ctx.Query("user_id"); raw != "" {
		val, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid User ID format in query"})
			return
		}
		uID := uint(val)
		userID = &uID
	}

	attempts, err := c.sessionService.AttemptHistory(ctx.Request.Context(), testID, userID)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	resp := make([]dto.TestAttemptSummaryDTO, 0, len(attempts))
	if err := copier.Copy(&resp, &attempts); err != nil {
		log.Error().Err(err).Msg("Failed to copy attempts to TestAttemptSummaryDTO")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to prepare response"})
		return
	}
	ctx.JSON(http.StatusOK, resp)
}
