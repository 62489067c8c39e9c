package admin

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/testcert/internal/controller"
	usercontroller "github.com/lshigami/testcert/internal/controller/user"
	"github.com/lshigami/testcert/internal/dto"
	"github.com/lshigami/testcert/internal/model"
	"github.com/lshigami/testcert/internal/service"
)

type AdminCertificateController struct {
	certificateService service.CertificateService
}

func NewAdminCertificateController(certificates service.CertificateService) *AdminCertificateController {
	return &AdminCertificateController{certificateService: certificates}
}

// RevokeCertificate godoc
// @Summary (Admin) Revoke a certificate
// @Tags Admin - Certificates
// @Accept json
// @Produce json
// @Param certificate_id path int true "Certificate ID"
// @Param body body dto.RevokeCertificateDTO true "Reason"
// @Success 200 {object} dto.CertificateResponseDTO
// @Failure 404 {object} dto.ErrorResponse "Certificate not found"
// @Failure 409 {object} dto.ErrorResponse "Already revoked"
// @Router /admin/certificates/{certificate_id}/revoke [post]
func (c *AdminCertificateController) RevokeCertificate(ctx *gin.Context) {
	certificateID, ok := controller.ParseID(ctx, "certificate_id")
	if !ok {
		return
	}
	var req dto.RevokeCertificateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	cert, err := c.certificateService.Revoke(ctx.Request.Context(), certificateID, req.Reason, controller.ActorFrom(ctx, req.PerformedBy))
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	respondCertificate(ctx, cert)
}

// RestoreCertificate godoc
// @Summary (Admin) Restore a revoked certificate
// @Tags Admin - Certificates
// @Accept json
// @Produce json
// @Param certificate_id path int true "Certificate ID"
// @Param body body dto.CertificateActionDTO false "Acting administrator"
// @Success 200 {object} dto.CertificateResponseDTO
// @Failure 404 {object} dto.ErrorResponse "Certificate not found"
// @Failure 409 {object} dto.ErrorResponse "Not revoked"
// @Router /admin/certificates/{certificate_id}/restore [post]
func (c *AdminCertificateController) RestoreCertificate(ctx *gin.Context) {
	certificateID, ok := controller.ParseID(ctx, "certificate_id")
	if !ok {
		return
	}
	req, ok := bindOptional[dto.CertificateActionDTO](ctx)
	if !ok {
		return
	}
	cert, err := c.certificateService.Restore(ctx.Request.Context(), certificateID, controller.ActorFrom(ctx, req.PerformedBy))
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	respondCertificate(ctx, cert)
}

// RegenerateCertificate godoc
// @Summary (Admin) Re-render a certificate document
// @Description Keeps the verification code; optionally switches the template.
// @Tags Admin - Certificates
// @Accept json
// @Produce json
// @Param certificate_id path int true "Certificate ID"
// @Param body body dto.RegenerateCertificateDTO false "Template"
// @Success 200 {object} dto.GenerationResultDTO
// @Failure 404 {object} dto.ErrorResponse "Certificate not found"
// @Failure 502 {object} dto.CertificateIncompleteResponse "Document could not be produced"
// @Router /admin/certificates/{certificate_id}/regenerate [post]
func (c *AdminCertificateController) RegenerateCertificate(ctx *gin.Context) {
	certificateID, ok := controller.ParseID(ctx, "certificate_id")
	if !ok {
		return
	}
	req, ok := bindOptional[dto.RegenerateCertificateDTO](ctx)
	if !ok {
		return
	}
	result, err := c.certificateService.Regenerate(ctx.Request.Context(), certificateID, req.TemplateType, controller.ActorFrom(ctx, req.PerformedBy))
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.GenerationResultDTO{CertificateID: result.CertificateID, VerificationCode: result.VerificationCode, FilePath: result.FilePath})
}

// RepairCertificate godoc
// @Summary (Admin) Finish a pending or failed certificate
// @Tags Admin - Certificates
// @Accept json
// @Produce json
// @Param certificate_id path int true "Certificate ID"
// @Param body body dto.CertificateActionDTO false "Acting administrator"
// @Success 200 {object} dto.GenerationResultDTO
// @Failure 404 {object} dto.ErrorResponse "Certificate not found"
// @Failure 409 {object} dto.ErrorResponse "Already issued"
// @Failure 502 {object} dto.CertificateIncompleteResponse "Document could not be produced"
// @Router /admin/certificates/{certificate_id}/repair [post]
func (c *AdminCertificateController) RepairCertificate(ctx *gin.Context) {
	certificateID, ok := controller.ParseID(ctx, "certificate_id")
	if !ok {
		return
	}
	req, ok := bindOptional[dto.CertificateActionDTO](ctx)
	if !ok {
		return
	}
	result, err := c.certificateService.Repair(ctx.Request.Context(), certificateID, controller.ActorFrom(ctx, req.PerformedBy))
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.GenerationResultDTO{CertificateID: result.CertificateID, VerificationCode: result.VerificationCode, FilePath: result.FilePath})
}

// GetAuditTrail godoc
// @Summary (Admin) Audit trail of a certificate
// @Tags Admin - Certificates
// @Produce json
// @Param certificate_id path int true "Certificate ID"
// @Success 200 {array} dto.AuditLogResponseDTO
// @Failure 404 {object} dto.ErrorResponse "Certificate not found"
// @Router /admin/certificates/{certificate_id}/audit [get]
func (c *AdminCertificateController) GetAuditTrail(ctx *gin.Context) {
	certificateID, ok := controller.ParseID(ctx, "certificate_id")
	if !ok {
		return
	}
	entries, err := c.certificateService.AuditTrail(ctx.Request.Context(), certificateID)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	resp := make([]dto.AuditLogResponseDTO, 0, len(entries))
	for _, entry := range entries {
		item := dto.AuditLogResponseDTO{
			ID:          entry.ID,
			Action:      string(entry.Action),
			PerformedBy: entry.PerformedBy,
			IPAddress:   entry.IPAddress,
			UserAgent:   entry.UserAgent,
			RequestID:   entry.RequestID,
			Timestamp:   entry.Timestamp,
		}
		if len(entry.Details) > 0 {
			item.Details = json.RawMessage(entry.Details)
		}
		resp = append(resp, item)
	}
	ctx.JSON(http.StatusOK, resp)
}

func respondCertificate(ctx *gin.Context, cert *model.Certificate) {
	resp, err := usercontroller.ToCertificateResponse(cert)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to prepare response"})
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// bindOptional binds a JSON body when one is sent; an empty body yields the zero value.
func bindOptional[T any](ctx *gin.Context) (T, bool) {
	var req T
	if ctx.Request.ContentLength == 0 {
		return req, true
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return req, false
	}
	return req, true
}
