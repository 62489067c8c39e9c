package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/testcert/internal/controller"
	"github.com/lshigami/testcert/internal/dto"
	"github.com/lshigami/testcert/internal/service"
	"github.com/rs/zerolog/log"
)

type AdminSessionController struct {
	sessionService service.TestSessionService
}

func NewAdminSessionController(sessions service.TestSessionService) *AdminSessionController {
	return &AdminSessionController{sessionService: sessions}
}

// CleanupExpired godoc
// @Summary (Admin) Auto-submit every expired session now
// @Description Runs the same sweep the background ticker runs.
// @Tags Admin - Sessions
// @Produce json
// @Success 200 {object} dto.CountResponse "Number of sessions submitted"
// @Failure 502 {object} dto.ErrorResponse "Store failure"
// @Router /admin/sessions/cleanup [post]
func (c *AdminSessionController) CleanupExpired(ctx *gin.Context) {
	count, err := c.sessionService.CleanupExpired(ctx.Request.Context())
	if err != nil {
		log.Error().Err(err).Int("expired", count).Msg("Admin CleanupExpired: sweep incomplete")
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.CountResponse{Count: count})
}
