package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lshigami/testcert/config"
	"github.com/lshigami/testcert/internal/model"
	"github.com/lshigami/testcert/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxCodeAttempts = 5

var verificationCodeRegexp = regexp.MustCompile(VerificationCodePattern)

type GenerateCertificateRequest struct {
	TestAttemptID uint
	TemplateType  *string
	RecipientName *string
	Actor         Actor
}

type GenerationResult struct {
	CertificateID    uint   `json:"certificate_id"`
	VerificationCode string `json:"verification_code"`
	FilePath         string `json:"file_path"`
}

type VerifiedCertificate struct {
	model.CertificateData
	Title         string     `json:"title"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedReason *string    `json:"revoked_reason,omitempty"`
}

type VerificationResult struct {
	IsValid         bool                 `json:"is_valid"`
	CertificateData *VerifiedCertificate `json:"certificate_data,omitempty"`
	Error           string               `json:"error,omitempty"`
}

// CertificateService issues certificates for completed attempts. Issuance is
// not transactional: a failure after the row exists leaves it failed and
// returns IncompleteCertificateError; use Repair rather than Generate again.
type CertificateService interface {
	Generate(ctx context.Context, req GenerateCertificateRequest) (*GenerationResult, error)
	Regenerate(ctx context.Context, certificateID uint, templateType *string, actor Actor) (*GenerationResult, error)
	Repair(ctx context.Context, certificateID uint, actor Actor) (*GenerationResult, error)
	Revoke(ctx context.Context, certificateID uint, reason string, actor Actor) (*model.Certificate, error)
	Restore(ctx context.Context, certificateID uint, actor Actor) (*model.Certificate, error)
	Verify(ctx context.Context, code string, actor Actor) (*VerificationResult, error)
	Download(ctx context.Context, certificateID uint, actor Actor) ([]byte, *model.Certificate, error)
	GetCertificate(ctx context.Context, certificateID uint) (*model.Certificate, error)
	ListUserCertificates(ctx context.Context, userID uint) ([]model.Certificate, error)
	AuditTrail(ctx context.Context, certificateID uint) ([]model.CertificateAuditLog, error)
}

type CertificateOption func(*certificateService)

func WithCertificateClock(now func() time.Time) CertificateOption {
	return func(s *certificateService) { s.now = now }
}

func WithCodeGenerator(gen func(time.Time) (string, error)) CertificateOption {
	return func(s *certificateService) { s.newCode = gen }
}

type certificateService struct {
	attemptRepo     repository.TestAttemptRepository
	testRepo        repository.TestRepository
	certRepo        repository.CertificateRepository
	classifier      ProficiencyClassifier
	renderer        PdfRenderer
	qr              QRCodeGenerator
	files           FileStore
	audit           AuditLogService
	notifier        Notifier
	verifyBaseURL   string
	defaultTemplate string
	now             func() time.Time
	newCode         func(time.Time) (string, error)
}

func NewCertificateService(
	attemptRepo repository.TestAttemptRepository,
	testRepo repository.TestRepository,
	certRepo repository.CertificateRepository,
	classifier ProficiencyClassifier,
	renderer PdfRenderer,
	qr QRCodeGenerator,
	files FileStore,
	audit AuditLogService,
	notifier Notifier,
	cfg *config.Config,
	opts ...CertificateOption,
) CertificateService {
	s := &certificateService{
		attemptRepo:     attemptRepo,
		testRepo:        testRepo,
		certRepo:        certRepo,
		classifier:      classifier,
		renderer:        renderer,
		qr:              qr,
		files:           files,
		audit:           audit,
		notifier:        notifier,
		verifyBaseURL:   strings.TrimRight(cfg.Certificate.VerifyBaseURL, "/"),
		defaultTemplate: cfg.Certificate.DefaultTemplate,
		now:             time.Now,
		newCode:         GenerateVerificationCode,
	}
	if s.defaultTemplate == "" {
		s.defaultTemplate = model.TemplateClassic
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *certificateService) Generate(ctx context.Context, req GenerateCertificateRequest) (*GenerationResult, error) {
	attempt, err := s.attemptRepo.FindByID(ctx, req.TestAttemptID)
	if err != nil {
		return nil, notFoundOr(err, "test attempt %d", req.TestAttemptID)
	}
	if attempt.CompletedAt == nil || attempt.Status == model.AttemptStatusAbandoned {
		return nil, fmt.Errorf("%w: test attempt %d is not completed", ErrInvalidState, attempt.ID)
	}
	if _, err := s.certRepo.FindByTestAttemptID(ctx, attempt.ID); err == nil {
		return nil, fmt.Errorf("%w: certificate already exists for test attempt %d", ErrInvalidState, attempt.ID)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: certificate lookup for attempt %d: %w", ErrExternalFailure, attempt.ID, err)
	}

	templateType, err := s.resolveTemplate(req.TemplateType, "")
	if err != nil {
		return nil, err
	}
	test, err := s.testRepo.FindByID(ctx, attempt.TestID)
	if err != nil {
		return nil, notFoundOr(err, "test %d", attempt.TestID)
	}
	level, ok := s.classifier.Classify(attempt.Percentage, test.CategoryType, test.Level)
	if !ok {
		return nil, fmt.Errorf("%w: no proficiency band for %d%% in category %s", ErrInvalidState, attempt.Percentage, test.CategoryType)
	}
	code, err := s.uniqueCode(ctx)
	if err != nil {
		return nil, err
	}
	qrData, err := s.qr.Generate(s.verificationURL(code))
	if err != nil {
		return nil, fmt.Errorf("%w: qr code for %s: %w", ErrExternalFailure, code, err)
	}

	issueDate := s.now()
	recipient := fmt.Sprintf("Candidate %d", attempt.UserID)
	if req.RecipientName != nil && strings.TrimSpace(*req.RecipientName) != "" {
		recipient = strings.TrimSpace(*req.RecipientName)
	}
	data := model.CertificateData{
		RecipientName:    recipient,
		TestTitle:        test.Title,
		CategoryType:     test.CategoryType,
		Score:            attempt.Percentage,
		ProficiencyLevel: level,
		CorrectAnswers:   attempt.CorrectAnswers,
		TotalQuestions:   len(attempt.QuestionOrder),
		TimeSpentMinutes: attempt.TimeSpentMinutes,
		CompletedAt:      *attempt.CompletedAt,
		IssueDate:        issueDate,
		ExpiryDate:       ExpiryDate(test.CategoryType, issueDate, test.CertificateValidityMonths),
		VerificationCode: code,
	}
	snapshot, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode certificate data: %w", err)
	}

	cert := &model.Certificate{
		UserID:           attempt.UserID,
		TestAttemptID:    attempt.ID,
		TestID:           test.ID,
		VerificationCode: code,
		Title:            test.Title + " Certificate",
		RecipientName:    recipient,
		Score:            attempt.Percentage,
		ProficiencyLevel: level,
		TemplateType:     templateType,
		QRCodeData:       qrData,
		CertificateData:  datatypes.JSON(snapshot),
		Status:           model.CertificateStatusPending,
		IssueDate:        issueDate,
		ExpiryDate:       data.ExpiryDate,
		IsValid:          true,
	}
	if err := s.certRepo.Create(ctx, cert); err != nil {
		return nil, s.createFailure(ctx, attempt.ID, err)
	}

	path, err := s.renderAndStore(ctx, cert, data, templateType, qrData)
	if err != nil {
		return nil, err
	}

	s.record(ctx, AuditEntry{
		CertificateID: cert.ID,
		Action:        model.AuditGenerated,
		Actor:         req.Actor,
		Details:       map[string]interface{}{"test_attempt_id": attempt.ID, "template_type": templateType, "proficiency_level": level},
	})
	log.Info().Uint("certificateID", cert.ID).Uint("attemptID", attempt.ID).Str("level", level).Msg("Certificate generated")

	cert.FilePath = &path
	s.notify(ctx, cert, req.Actor)
	return &GenerationResult{CertificateID: cert.ID, VerificationCode: code, FilePath: path}, nil
}

func (s *certificateService) Regenerate(ctx context.Context, certificateID uint, templateType *string, actor Actor) (*GenerationResult, error) {
	cert, err := s.certRepo.FindByID(ctx, certificateID)
	if err != nil {
		return nil, notFoundOr(err, "certificate %d", certificateID)
	}
	tmpl, err := s.resolveTemplate(templateType, cert.TemplateType)
	if err != nil {
		return nil, err
	}
	data, err := snapshotOf(cert)
	if err != nil {
		return nil, err
	}
	qrData, err := s.qr.Generate(s.verificationURL(cert.VerificationCode))
	if err != nil {
		return nil, fmt.Errorf("%w: qr code for %s: %w", ErrExternalFailure, cert.VerificationCode, err)
	}
	// An issued certificate keeps its row and previous document when re-rendering fails.
	path, stage, err := s.produceDocument(cert, data, tmpl, qrData)
	if err != nil {
		log.Error().Err(err).Uint("certificateID", cert.ID).Str("stage", stage).Msg("Certificate regeneration failed, previous document kept")
		return nil, fmt.Errorf("%w: regenerate certificate %d at %s: %w", ErrExternalFailure, cert.ID, stage, err)
	}
	if err := s.finalizeDocument(ctx, cert, path, tmpl, qrData); err != nil {
		return nil, fmt.Errorf("%w: regenerate certificate %d at finalize: %w", ErrExternalFailure, cert.ID, err)
	}
	s.record(ctx, AuditEntry{
		CertificateID: cert.ID,
		Action:        model.AuditGenerated,
		Actor:         actor,
		Details:       map[string]interface{}{"regenerated": true, "template_type": tmpl},
	})
	log.Info().Uint("certificateID", cert.ID).Str("template", tmpl).Msg("Certificate regenerated")
	return &GenerationResult{CertificateID: cert.ID, VerificationCode: cert.VerificationCode, FilePath: path}, nil
}

// Repair finishes a certificate left pending or failed by Generate.
func (s *certificateService) Repair(ctx context.Context, certificateID uint, actor Actor) (*GenerationResult, error) {
	cert, err := s.certRepo.FindByID(ctx, certificateID)
	if err != nil {
		return nil, notFoundOr(err, "certificate %d", certificateID)
	}
	if cert.Status == model.CertificateStatusIssued && cert.FilePath != nil {
		return nil, fmt.Errorf("%w: certificate %d is already issued", ErrInvalidState, certificateID)
	}
	data, err := snapshotOf(cert)
	if err != nil {
		return nil, err
	}
	qrData := cert.QRCodeData
	if qrData == "" {
		if qrData, err = s.qr.Generate(s.verificationURL(cert.VerificationCode)); err != nil {
			return nil, fmt.Errorf("%w: qr code for %s: %w", ErrExternalFailure, cert.VerificationCode, err)
		}
	}
	path, err := s.renderAndStore(ctx, cert, data, cert.TemplateType, qrData)
	if err != nil {
		return nil, err
	}
	s.record(ctx, AuditEntry{
		CertificateID: cert.ID,
		Action:        model.AuditGenerated,
		Actor:         actor,
		Details:       map[string]interface{}{"repaired": true, "previous_status": cert.Status},
	})
	log.Info().Uint("certificateID", cert.ID).Str("previousStatus", cert.Status).Msg("Certificate repaired")
	cert.FilePath = &path
	if !cert.EmailSent {
		s.notify(ctx, cert, actor)
	}
	return &GenerationResult{CertificateID: cert.ID, VerificationCode: cert.VerificationCode, FilePath: path}, nil
}

func (s *certificateService) Revoke(ctx context.Context, certificateID uint, reason string, actor Actor) (*model.Certificate, error) {
	cert, err := s.certRepo.FindByID(ctx, certificateID)
	if err != nil {
		return nil, notFoundOr(err, "certificate %d", certificateID)
	}
	if !cert.IsValid {
		return nil, fmt.Errorf("%w: certificate %d is already revoked", ErrInvalidState, certificateID)
	}
	now := s.now()
	reason = strings.TrimSpace(reason)
	err = s.certRepo.Update(ctx, cert.ID, map[string]interface{}{
		"is_valid":       false,
		"revoked_at":     now,
		"revoked_reason": reason,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: revoke certificate %d: %w", ErrExternalFailure, certificateID, err)
	}
	cert.IsValid = false
	cert.RevokedAt = &now
	cert.RevokedReason = &reason

	s.record(ctx, AuditEntry{CertificateID: cert.ID, Action: model.AuditRevoked, Actor: actor, Details: map[string]interface{}{"reason": reason}})
	log.Info().Uint("certificateID", cert.ID).Str("reason", reason).Msg("Certificate revoked")
	return cert, nil
}

func (s *certificateService) Restore(ctx context.Context, certificateID uint, actor Actor) (*model.Certificate, error) {
	cert, err := s.certRepo.FindByID(ctx, certificateID)
	if err != nil {
		return nil, notFoundOr(err, "certificate %d", certificateID)
	}
	if cert.IsValid {
		return nil, fmt.Errorf("%w: certificate %d is not revoked", ErrInvalidState, certificateID)
	}
	err = s.certRepo.Update(ctx, cert.ID, map[string]interface{}{
		"is_valid":       true,
		"revoked_at":     nil,
		"revoked_reason": nil,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: restore certificate %d: %w", ErrExternalFailure, certificateID, err)
	}
	previousReason := cert.RevokedReason
	cert.IsValid = true
	cert.RevokedAt = nil
	cert.RevokedReason = nil

	s.record(ctx, AuditEntry{CertificateID: cert.ID, Action: model.AuditRestored, Actor: actor, Details: map[string]interface{}{"previous_reason": previousReason}})
	log.Info().Uint("certificateID", cert.ID).Msg("Certificate restored")
	return cert, nil
}

// Verify validates the code format before any lookup. Lookup failures other
// than "not found" are returned as errors; everything else is a result.
func (s *certificateService) Verify(ctx context.Context, code string, actor Actor) (*VerificationResult, error) {
	if !verificationCodeRegexp.MatchString(code) {
		return &VerificationResult{IsValid: false, Error: "invalid verification code format"}, nil
	}
	cert, err := s.certRepo.FindByVerificationCode(ctx, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &VerificationResult{IsValid: false, Error: "certificate not found"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: verify %s: %w", ErrExternalFailure, code, err)
	}

	data, err := snapshotOf(cert)
	if err != nil {
		return nil, err
	}
	verified := &VerifiedCertificate{
		CertificateData: data,
		Title:           cert.Title,
		RevokedAt:       cert.RevokedAt,
		RevokedReason:   cert.RevokedReason,
	}

	if err := s.certRepo.IncrementCounter(ctx, cert.ID, "view_count"); err != nil {
		log.Warn().Err(err).Uint("certificateID", cert.ID).Msg("Failed to increment certificate view count")
	}
	s.record(ctx, AuditEntry{CertificateID: cert.ID, Action: model.AuditViewed, Actor: actor, Details: map[string]interface{}{"via": "verification"}})

	result := &VerificationResult{IsValid: true, CertificateData: verified}
	switch {
	case !cert.IsValid:
		result.IsValid = false
		result.Error = "certificate has been revoked"
	case cert.IsExpired(s.now()):
		result.IsValid = false
		result.Error = "certificate has expired"
	}
	return result, nil
}

func (s *certificateService) Download(ctx context.Context, certificateID uint, actor Actor) ([]byte, *model.Certificate, error) {
	cert, err := s.certRepo.FindByID(ctx, certificateID)
	if err != nil {
		return nil, nil, notFoundOr(err, "certificate %d", certificateID)
	}
	if cert.FilePath == nil {
		return nil, nil, fmt.Errorf("%w: certificate %d has no document (status %s)", ErrInvalidState, certificateID, cert.Status)
	}
	content, err := s.files.Read(*cert.FilePath)
	if err != nil {
		log.Error().Err(err).Uint("certificateID", cert.ID).Str("path", *cert.FilePath).Msg("Failed to read certificate document")
		return nil, nil, fmt.Errorf("%w: read certificate %d: %w", ErrExternalFailure, certificateID, err)
	}
	if err := s.certRepo.IncrementCounter(ctx, cert.ID, "download_count"); err != nil {
		log.Warn().Err(err).Uint("certificateID", cert.ID).Msg("Failed to increment certificate download count")
	}
	s.record(ctx, AuditEntry{CertificateID: cert.ID, Action: model.AuditDownloaded, Actor: actor})
	return content, cert, nil
}

func (s *certificateService) GetCertificate(ctx context.Context, certificateID uint) (*model.Certificate, error) {
	cert, err := s.certRepo.FindByID(ctx, certificateID)
	if err != nil {
		return nil, notFoundOr(err, "certificate %d", certificateID)
	}
	return cert, nil
}

func (s *certificateService) ListUserCertificates(ctx context.Context, userID uint) ([]model.Certificate, error) {
	certs, err := s.certRepo.FindAllByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: certificates for user %d: %w", ErrExternalFailure, userID, err)
	}
	return certs, nil
}

func (s *certificateService) AuditTrail(ctx context.Context, certificateID uint) ([]model.CertificateAuditLog, error) {
	if _, err := s.certRepo.FindByID(ctx, certificateID); err != nil {
		return nil, notFoundOr(err, "certificate %d", certificateID)
	}
	return s.audit.ListForCertificate(ctx, certificateID)
}

// renderAndStore produces the document for a pending or failed row and marks
// it issued. Any render or store failure marks the row failed with no file path.
func (s *certificateService) renderAndStore(ctx context.Context, cert *model.Certificate, data model.CertificateData, templateType, qrData string) (string, error) {
	path, stage, err := s.produceDocument(cert, data, templateType, qrData)
	if err != nil {
		return "", s.markFailed(ctx, cert.ID, stage, err)
	}
	if err := s.finalizeDocument(ctx, cert, path, templateType, qrData); err != nil {
		log.Error().Err(err).Uint("certificateID", cert.ID).Msg("Certificate document stored but row update failed")
		return "", &IncompleteCertificateError{CertificateID: cert.ID, Stage: "finalize", Err: err}
	}
	return path, nil
}

// produceDocument renders and writes {userId}/{isoDate}/{certificateId}.pdf.
// On failure stage is "render" or "store"; the row is not touched.
func (s *certificateService) produceDocument(cert *model.Certificate, data model.CertificateData, templateType, qrData string) (path, stage string, err error) {
	content, err := s.renderer.Render(data, templateType, qrData, cert.VerificationCode, cert.IssueDate)
	if err != nil {
		return "", "render", err
	}
	path = fmt.Sprintf("%d/%s/%d.pdf", cert.UserID, cert.IssueDate.UTC().Format("2006-01-02"), cert.ID)
	stored, err := s.files.Write(path, content)
	if err != nil {
		return "", "store", err
	}
	return stored, "", nil
}

func (s *certificateService) finalizeDocument(ctx context.Context, cert *model.Certificate, path, templateType, qrData string) error {
	err := s.certRepo.Update(ctx, cert.ID, map[string]interface{}{
		"file_path":     path,
		"status":        model.CertificateStatusIssued,
		"template_type": templateType,
		"qr_code_data":  qrData,
	})
	if err != nil {
		return err
	}
	cert.FilePath = &path
	cert.Status = model.CertificateStatusIssued
	cert.TemplateType = templateType
	cert.QRCodeData = qrData
	return nil
}

func (s *certificateService) markFailed(ctx context.Context, certificateID uint, stage string, cause error) error {
	log.Error().Err(cause).Uint("certificateID", certificateID).Str("stage", stage).Msg("Certificate issuance failed")
	err := s.certRepo.Update(ctx, certificateID, map[string]interface{}{
		"status":    model.CertificateStatusFailed,
		"file_path": nil,
	})
	if err != nil {
		log.Error().Err(err).Uint("certificateID", certificateID).Msg("Failed to mark certificate as failed")
	}
	return &IncompleteCertificateError{CertificateID: certificateID, Stage: stage, Err: cause}
}

// createFailure separates a lost race on the attempt from a code collision.
func (s *certificateService) createFailure(ctx context.Context, attemptID uint, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		if _, findErr := s.certRepo.FindByTestAttemptID(ctx, attemptID); findErr == nil {
			return fmt.Errorf("%w: certificate already exists for test attempt %d", ErrInvalidState, attemptID)
		}
		return fmt.Errorf("%w: verification code collision for attempt %d: %w", ErrExternalFailure, attemptID, err)
	}
	log.Error().Err(err).Uint("attemptID", attemptID).Msg("Failed to create certificate row")
	return fmt.Errorf("%w: create certificate for attempt %d: %w", ErrExternalFailure, attemptID, err)
}

func (s *certificateService) uniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := s.newCode(s.now())
		if err != nil {
			return "", fmt.Errorf("%w: generate verification code: %w", ErrExternalFailure, err)
		}
		exists, err := s.certRepo.ExistsByVerificationCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("%w: check verification code: %w", ErrExternalFailure, err)
		}
		if !exists {
			return code, nil
		}
		log.Warn().Str("code", code).Int("attempt", i+1).Msg("Verification code collision, regenerating")
	}
	return "", fmt.Errorf("%w: no unique verification code after %d attempts", ErrExternalFailure, maxCodeAttempts)
}

func (s *certificateService) resolveTemplate(requested *string, current string) (string, error) {
	tmpl := current
	if requested != nil && *requested != "" {
		tmpl = *requested
	}
	if tmpl == "" {
		tmpl = s.defaultTemplate
	}
	if !IsKnownTemplate(tmpl) {
		return "", fmt.Errorf("%w: unknown certificate template %q", ErrInvalidState, tmpl)
	}
	return tmpl, nil
}

func (s *certificateService) verificationURL(code string) string {
	return s.verifyBaseURL + "/" + code
}

// notify publishes the issuance event; failures are logged and never roll back.
func (s *certificateService) notify(ctx context.Context, cert *model.Certificate, actor Actor) {
	err := s.notifier.CertificateIssued(ctx, CertificateNotification{
		CertificateID:    cert.ID,
		UserID:           cert.UserID,
		RecipientName:    cert.RecipientName,
		Title:            cert.Title,
		Score:            cert.Score,
		ProficiencyLevel: cert.ProficiencyLevel,
		VerificationCode: cert.VerificationCode,
		VerificationURL:  s.verificationURL(cert.VerificationCode),
		IssueDate:        cert.IssueDate,
		ExpiryDate:       cert.ExpiryDate,
	})
	if errors.Is(err, ErrNotifierDisabled) {
		return
	}
	if err != nil {
		log.Warn().Err(err).Uint("certificateID", cert.ID).Msg("Certificate notification failed")
		return
	}
	if err := s.certRepo.Update(ctx, cert.ID, map[string]interface{}{"email_sent": true}); err != nil {
		log.Warn().Err(err).Uint("certificateID", cert.ID).Msg("Failed to flag certificate email as sent")
	}
	cert.EmailSent = true
	s.record(ctx, AuditEntry{CertificateID: cert.ID, Action: model.AuditEmailed, Actor: actor})
}

// record appends an audit entry; the action it describes has already happened,
// so a failed append is logged rather than returned.
func (s *certificateService) record(ctx context.Context, entry AuditEntry) {
	if err := s.audit.Record(ctx, entry); err != nil {
		log.Error().Err(err).Uint("certificateID", entry.CertificateID).Str("action", string(entry.Action)).Msg("Audit entry lost")
	}
}

func snapshotOf(cert *model.Certificate) (model.CertificateData, error) {
	var data model.CertificateData
	if len(cert.CertificateData) == 0 {
		return data, fmt.Errorf("%w: certificate %d has no data snapshot", ErrInvalidState, cert.ID)
	}
	if err := json.Unmarshal(cert.CertificateData, &data); err != nil {
		return data, fmt.Errorf("decode certificate %d data: %w", cert.ID, err)
	}
	return data, nil
}
