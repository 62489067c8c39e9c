package user

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"github.com/lshigami/testcert/internal/controller"
	"github.com/lshigami/testcert/internal/dto"
	"github.com/lshigami/testcert/internal/model"
	"github.com/lshigami/testcert/internal/service"
	"github.com/rs/zerolog/log"
)

type CertificateController struct {
	certificateService service.CertificateService
}

func NewCertificateController(certificates service.CertificateService) *CertificateController {
	return &CertificateController{certificateService: certificates}
}

// GenerateCertificate godoc
// @Summary (User) Issue a certificate for a completed attempt
// @Description At most one certificate exists per attempt. A 502 with certificate_id means the row exists and must be repaired.
// @Tags User - Certificates
// @Accept json
// @Produce json
// @Param body body dto.GenerateCertificateDTO true "Attempt and template"
// @Success 201 {object} dto.GenerationResultDTO
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Failure 409 {object} dto.ErrorResponse "Attempt not completed or certificate already exists"
// @Failure 502 {object} dto.CertificateIncompleteResponse "Document could not be produced"
// @Router /certificates [post]
func (c *CertificateController) GenerateCertificate(ctx *gin.Context) {
	var req dto.GenerateCertificateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	result, err := c.certificateService.Generate(ctx.Request.Context(), service.GenerateCertificateRequest{
		TestAttemptID: req.TestAttemptID,
		TemplateType:  req.TemplateType,
		RecipientName: req.RecipientName,
		Actor:         controller.ActorFrom(ctx, req.PerformedBy),
	})
	if err != nil {
		log.Warn().Err(err).Uint("attemptID", req.TestAttemptID).Msg("GenerateCertificate: service error")
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.GenerationResultDTO{
		CertificateID:    result.CertificateID,
		VerificationCode: result.VerificationCode,
		FilePath:         result.FilePath,
	})
}

// VerifyCertificate godoc
// @Summary Public certificate verification
// @Description Always answers 200 for a well-formed request; is_valid is false for unknown, revoked or expired certificates.
// @Tags Public - Verification
// @Produce json
// @Param code path string true "Verification code"
// @Success 200 {object} service.VerificationResult
// @Failure 429 {object} dto.ErrorResponse "Too many requests"
// @Router /certificates/verify/{code} [get]
func (c *CertificateController) VerifyCertificate(ctx *gin.Context) {
	result, err := c.certificateService.Verify(ctx.Request.Context(), ctx.Param("code"), controller.ActorFrom(ctx, nil))
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetCertificate godoc
// @Summary (User) Get a certificate
// @Tags User - Certificates
// @Produce json
// @Param certificate_id path int true "Certificate ID"
// @Success 200 {object} dto.CertificateResponseDTO
// @Failure 404 {object} dto.ErrorResponse "Certificate not found"
// @Router /certificates/{certificate_id} [get]
func (c *CertificateController) GetCertificate(ctx *gin.Context) {
	certificateID, ok := controller.ParseID(ctx, "certificate_id")
	if !ok {
		return
	}
	cert, err := c.certificateService.GetCertificate(ctx.Request.Context(), certificateID)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	resp, err := ToCertificateResponse(cert)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to prepare response"})
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// DownloadCertificate godoc
// @Summary (User) Download the certificate PDF
// @Tags User - Certificates
// @Produce application/pdf
// @Param certificate_id path int true "Certificate ID"
// @Param user_id query int false "Downloading user, recorded in the audit trail"
// @Success 200 {file} file
// @Failure 404 {object} dto.ErrorResponse "Certificate not found"
// @Failure 409 {object} dto.ErrorResponse "Certificate has no document yet"
// @Router /certificates/{certificate_id}/download [get]
func (c *CertificateController) DownloadCertificate(ctx *gin.Context) {
	certificateID, ok := controller.ParseID(ctx, "certificate_id")
	if !ok {
		return
	}
	var performedBy *uint
	if raw := ctx.Query("user_id"); raw != "" {
		val, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid User ID format in query"})
			return
		}
		uID := uint(val)
		performedBy = &uID
	}
	content, cert, err := c.certificateService.Download(ctx.Request.Context(), certificateID, controller.ActorFrom(ctx, performedBy))
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="certificate-%s.pdf"`, cert.VerificationCode))
	ctx.Data(http.StatusOK, "application/pdf", content)
}

// ListUserCertificates godoc
// @Summary (User) List a user's certificates
// @Tags User - Certificates
// @Produce json
// @Param user_id path int true "User ID"
// @Success 200 {array} dto.CertificateResponseDTO
// @Router /users/{user_id}/certificates [get]
func (c *CertificateController) ListUserCertificates(ctx *gin.Context) {
	userID, ok := controller.ParseID(ctx, "user_id")
	if !ok {
		return
	}
	certs, err := c.certificateService.ListUserCertificates(ctx.Request.Context(), userID)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	resp := make([]dto.CertificateResponseDTO, 0, len(certs))
	for i := range certs {
		item, err := ToCertificateResponse(&certs[i])
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to prepare response"})
			return
		}
		resp = append(resp, *item)
	}
	ctx.JSON(http.StatusOK, resp)
}

func ToCertificateResponse(cert *model.Certificate) (*dto.CertificateResponseDTO, error) {
	var resp dto.CertificateResponseDTO
	if err := copier.Copy(&resp, cert); err != nil {
		log.Error().Err(err).Uint("certificateID", cert.ID).Msg("Failed to copy Certificate model to CertificateResponseDTO")
		return nil, err
	}
	if len(cert.CertificateData) > 0 {
		resp.CertificateData = json.RawMessage(cert.CertificateData)
	}
	return &resp, nil
}
