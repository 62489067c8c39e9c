package user

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/testcert/internal/controller"
	"github.com/lshigami/testcert/internal/dto"
	"github.com/lshigami/testcert/internal/model"
	"github.com/lshigami/testcert/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type stubCertificateService struct {
	service.CertificateService

	verify      *service.VerificationResult
	generate    *service.GenerationResult
	generateErr error
	cert        *model.Certificate
	pdf         []byte
	lastActor   service.Actor
	lastCode    string
}

func (s *stubCertificateService) Generate(_ context.Context, req service.GenerateCertificateRequest) (*service.GenerationResult, error) {
	s.lastActor = req.Actor
	return s.generate, s.generateErr
}

func (s *stubCertificateService) Verify(_ context.Context, code string, actor service.Actor) (*service.VerificationResult, error) {
	s.lastCode = code
	s.lastActor = actor
	return s.verify, nil
}

func (s *stubCertificateService) GetCertificate(_ context.Context, id uint) (*model.Certificate, error) {
	if s.cert == nil || s.cert.ID != id {
		return nil, fmt.Errorf("%w: certificate %d", service.ErrNotFound, id)
	}
	return s.cert, nil
}

func (s *stubCertificateService) Download(_ context.Context, id uint, actor service.Actor) ([]byte, *model.Certificate, error) {
	s.lastActor = actor
	if s.cert == nil || s.cert.ID != id {
		return nil, nil, fmt.Errorf("%w: certificate %d", service.ErrNotFound, id)
	}
	return s.pdf, s.cert, nil
}

func newCertificateRouter(svc service.CertificateService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	ctrl := NewCertificateController(svc)
	router := gin.New()
	router.Use(controller.RequestID())
	router.POST("/certificates", ctrl.GenerateCertificate)
	router.GET("/certificates/verify/:code", ctrl.VerifyCertificate)
	router.GET("/certificates/:certificate_id", ctrl.GetCertificate)
	router.GET("/certificates/:certificate_id/download", ctrl.DownloadCertificate)
	return router
}

func TestVerifyCertificate_AlwaysOK(t *testing.T) {
	svc := &stubCertificateService{verify: &service.VerificationResult{IsValid: false, Error: "certificate not found"}}
	router := newCertificateRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/certificates/verify/CERT-UNKNOWN", nil)
	req.Header.Set(controller.RequestIDHeader, "verify-1")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body service.VerificationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.IsValid)
	assert.Equal(t, "certificate not found", body.Error)
	assert.Equal(t, "CERT-UNKNOWN", svc.lastCode)
	assert.Equal(t, "verify-1", svc.lastActor.RequestID)
}

func TestGenerateCertificate(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := &stubCertificateService{generate: &service.GenerationResult{CertificateID: 3, VerificationCode: "CERT-1", FilePath: "42/2024-03-01/3.pdf"}}
		w := httptest.NewRecorder()
		newCertificateRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/certificates",
			strings.NewReader(`{"test_attempt_id": 9, "performed_by": 42}`)))

		assert.Equal(t, http.StatusCreated, w.Code)
		var body dto.GenerationResultDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, uint(3), body.CertificateID)
		require.NotNil(t, svc.lastActor.UserID)
		assert.Equal(t, uint(42), *svc.lastActor.UserID)
	})

	t.Run("incomplete", func(t *testing.T) {
		svc := &stubCertificateService{generateErr: &service.IncompleteCertificateError{CertificateID: 5, Stage: "render", Err: fmt.Errorf("font missing")}}
		w := httptest.NewRecorder()
		newCertificateRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/certificates",
			strings.NewReader(`{"test_attempt_id": 9}`)))

		assert.Equal(t, http.StatusBadGateway, w.Code)
		var body dto.CertificateIncompleteResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, uint(5), body.CertificateID)
	})

	t.Run("missing attempt id", func(t *testing.T) {
		w := httptest.NewRecorder()
		newCertificateRouter(&stubCertificateService{}).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/certificates", strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetAndDownloadCertificate(t *testing.T) {
	path := "42/2024-03-01/3.pdf"
	svc := &stubCertificateService{
		cert: &model.Certificate{
			ID:               3,
			UserID:           42,
			VerificationCode: "CERT-ABC",
			Status:           model.CertificateStatusIssued,
			FilePath:         &path,
			CertificateData:  datatypes.JSON(`{"recipient_name":"Ada"}`),
		},
		pdf: []byte("%PDF-1.3"),
	}
	router := newCertificateRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/certificates/3", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.CertificateResponseDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "CERT-ABC", resp.VerificationCode)
	assert.JSONEq(t, `{"recipient_name":"Ada"}`, string(resp.CertificateData))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/certificates/4", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/certificates/3/download?user_id=42", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "certificate-CERT-ABC.pdf")
	assert.Equal(t, "%PDF-1.3", w.Body.String())
	require.NotNil(t, svc.lastActor.UserID)
	assert.Equal(t, uint(42), *svc.lastActor.UserID)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/certificates/3/download?user_id=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
