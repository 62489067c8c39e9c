package service

import (
	"bytes"
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/lshigami/testcert/config"
	"github.com/lshigami/testcert/internal/model"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerificationCode_Format(t *testing.T) {
	pattern := regexp.MustCompile(VerificationCodePattern)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := GenerateVerificationCode(now)
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190, "random suffix should rarely repeat")
}

func TestExpiryDate(t *testing.T) {
	issue := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
	six := 6
	zero := 0

	tests := []struct {
		name     string
		category string
		override *int
		months   int
	}{
		{name: "language", category: model.CategoryLanguage, months: 24},
		{name: "technical", category: model.CategoryTechnical, months: 12},
		{name: "professional", category: model.CategoryProfessional, months: 36},
		{name: "academic never", category: model.CategoryAcademic, months: 0},
		{name: "unknown default", category: "HOBBY", months: 24},
		{name: "override", category: model.CategoryAcademic, override: &six, months: 6},
		{name: "override zero never", category: model.CategoryTechnical, override: &zero, months: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.months, ValidityMonths(tc.category, tc.override))
			got := ExpiryDate(tc.category, issue, tc.override)
			if tc.months == 0 {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, issue.AddDate(0, tc.months, 0), *got)
		})
	}
}

func TestQRCodeGenerator_RoundTrip(t *testing.T) {
	dataURL, err := NewQRCodeGenerator().Generate("https://certs.example.com/verify/CERT-ABC-123456")
	require.NoError(t, err)
	assert.Contains(t, dataURL, pngDataURLPrefix)

	png, err := decodePNGDataURL(dataURL)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, err = decodePNGDataURL("data:image/gif;base64,R0lGOD")
	assert.Error(t, err)
}

func TestPdfRenderer(t *testing.T) {
	qr, err := NewQRCodeGenerator().Generate("https://certs.example.com/verify/CERT-ABC-123456")
	require.NoError(t, err)
	issue := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	data := model.CertificateData{
		RecipientName:    "Ada Lovelace",
		TestTitle:        "English B2 Exam",
		Score:            85,
		ProficiencyLevel: "B2",
		IssueDate:        issue,
	}

	renderer, err := NewPdfRenderer(&config.Config{})
	require.NoError(t, err)
	for _, tmpl := range []string{model.TemplateClassic, model.TemplateModern, model.TemplateMinimal} {
		t.Run(tmpl, func(t *testing.T) {
			assert.True(t, IsKnownTemplate(tmpl))
			out, err := renderer.Render(data, tmpl, qr, "CERT-ABC-123456", issue)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
		})
	}

	_, err = renderer.Render(data, "gothic", qr, "CERT-ABC-123456", issue)
	assert.Error(t, err)
	assert.False(t, IsKnownTemplate("gothic"))
}

func TestPdfRenderer_TranslatesToCoreFontEncoding(t *testing.T) {
	renderer, err := newPdfRenderer(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	renderer.uncompressed = true
	data := model.CertificateData{RecipientName: "José Núñez", TestTitle: "Français B2", ProficiencyLevel: "B2"}

	out, err := renderer.Render(data, model.TemplateClassic, "", "CERT-ABC-123456", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, bytes.Contains(out, []byte("Jos\xe9 N\xfa\xf1ez")), "cp1252 bytes for the recipient")
	assert.True(t, bytes.Contains(out, []byte("Fran\xe7ais B2")))
	assert.False(t, bytes.Contains(out, []byte("Jos\xc3\xa9")), "raw UTF-8 is never written with core fonts")
}

func TestPdfRenderer_FontFile(t *testing.T) {
	_, err := newPdfRenderer(afero.NewMemMapFs(), "fonts/missing.ttf")
	assert.Error(t, err)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "fonts/cert.ttf", []byte("ttf bytes"), 0o644))
	renderer, err := newPdfRenderer(fs, "fonts/cert.ttf")
	require.NoError(t, err)
	assert.Equal(t, []byte("ttf bytes"), renderer.utf8Font)
}

func TestFileStore(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewFileStoreWithFs(fs)

	path, err := store.Write("42/2024-03-01/1.pdf", []byte("%PDF-1.3"))
	require.NoError(t, err)
	assert.Equal(t, "42/2024-03-01/1.pdf", path)

	exists, err := afero.DirExists(fs, "42/2024-03-01")
	require.NoError(t, err)
	assert.True(t, exists)

	content, err := store.Read(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.3"), content)

	_, err = store.Read("missing.pdf")
	assert.Error(t, err)

	_, err = store.Write(path, []byte("%PDF-1.3 second"))
	require.NoError(t, err)
	content, err = store.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3 second", string(content))
	leftover, err := afero.Exists(fs, path+".tmp")
	require.NoError(t, err)
	assert.False(t, leftover)

	readOnly := NewFileStoreWithFs(afero.NewReadOnlyFs(afero.NewMemMapFs()))
	_, err = readOnly.Write("1.pdf", []byte("x"))
	assert.Error(t, err)
}

func TestAuditLogService_Record(t *testing.T) {
	repo := &fakeAuditRepo{}
	clock := newFakeClock()
	svc := NewAuditLogServiceWithClock(repo, clock.Now)
	admin := uint(3)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, AuditEntry{
		CertificateID: 9,
		Action:        model.AuditRevoked,
		Actor:         Actor{UserID: &admin, IPAddress: "10.1.1.1", UserAgent: "curl/8"},
		Details:       map[string]interface{}{"reason": "fraud"},
	}))
	require.NoError(t, svc.Record(ctx, AuditEntry{CertificateID: 9, Action: model.AuditViewed}))

	entries, err := svc.ListForCertificate(ctx, 9)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, model.AuditRevoked, entries[0].Action)
	assert.Equal(t, &admin, entries[0].PerformedBy)
	assert.Equal(t, "10.1.1.1", *entries[0].IPAddress)
	assert.Nil(t, entries[0].RequestID)
	assert.JSONEq(t, `{"reason":"fraud"}`, string(entries[0].Details))
	assert.Equal(t, clock.Now(), entries[0].Timestamp)

	assert.Nil(t, entries[1].PerformedBy)
	assert.Nil(t, entries[1].IPAddress)
	assert.Empty(t, entries[1].Details)

	repo.err = errStoreDown
	err = svc.Record(ctx, AuditEntry{CertificateID: 9, Action: model.AuditViewed})
	assert.ErrorIs(t, err, ErrExternalFailure)
}

func TestNewNotifier_DisabledWithoutURL(t *testing.T) {
	notifier, err := NewNotifier(&config.Config{})
	require.NoError(t, err)
	err = notifier.CertificateIssued(context.Background(), CertificateNotification{CertificateID: 1})
	assert.ErrorIs(t, err, ErrNotifierDisabled)
	assert.NoError(t, notifier.Close())
}
