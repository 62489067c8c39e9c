package service

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/lshigami/testcert/config"
	"github.com/lshigami/testcert/internal/model"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const utf8FontFamily = "CertificateUTF8"

type PdfRenderer interface {
	Render(data model.CertificateData, templateType, qrCodeDataURL, verificationCode string, issueDate time.Time) ([]byte, error)
}

type certificateTheme struct {
	accent     [3]int
	font       string
	heading    string
	doubleLine bool
}

var certificateThemes = map[string]certificateTheme{
	model.TemplateClassic: {accent: [3]int{128, 98, 35}, font: "Times", heading: "Certificate of Achievement", doubleLine: true},
	model.TemplateModern:  {accent: [3]int{25, 90, 160}, font: "Helvetica", heading: "Certificate of Proficiency"},
	model.TemplateMinimal: {accent: [3]int{60, 60, 60}, font: "Helvetica", heading: "Certificate"},
}

// IsKnownTemplate reports whether templateType has a renderer theme.
func IsKnownTemplate(templateType string) bool {
	_, ok := certificateThemes[templateType]
	return ok
}

type pdfRenderer struct {
	utf8Font     []byte
	uncompressed bool
}

// NewPdfRenderer embeds CERTIFICATE_FONT_FILE when set so any script renders.
// Without it the core fonts are used and text is translated to cp1252.
func NewPdfRenderer(cfg *config.Config) (PdfRenderer, error) {
	r, err := newPdfRenderer(afero.NewOsFs(), cfg.Certificate.FontFile)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func newPdfRenderer(fs afero.Fs, fontFile string) (*pdfRenderer, error) {
	if fontFile == "" {
		log.Info().Msg("No certificate font configured, non cp1252 characters print as dots")
		return &pdfRenderer{}, nil
	}
	font, err := afero.ReadFile(fs, fontFile)
	if err != nil {
		return nil, fmt.Errorf("read certificate font %s: %w", fontFile, err)
	}
	return &pdfRenderer{utf8Font: font}, nil
}

func (r *pdfRenderer) Render(data model.CertificateData, templateType, qrCodeDataURL, verificationCode string, issueDate time.Time) ([]byte, error) {
	theme, ok := certificateThemes[templateType]
	if !ok {
		return nil, fmt.Errorf("unknown certificate template %q", templateType)
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetCompression(!r.uncompressed)
	text := pdf.UnicodeTranslatorFromDescriptor("")
	if r.utf8Font != nil {
		pdf.AddUTF8FontFromBytes(utf8FontFamily, "", r.utf8Font)
		pdf.AddUTF8FontFromBytes(utf8FontFamily, "B", r.utf8Font)
		theme.font = utf8FontFamily
		text = func(s string) string { return s }
	}
	pdf.SetTitle(theme.heading, true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()

	pdf.SetDrawColor(theme.accent[0], theme.accent[1], theme.accent[2])
	pdf.SetLineWidth(1.5)
	pdf.Rect(10, 10, pageW-20, pageH-20, "D")
	if theme.doubleLine {
		pdf.SetLineWidth(0.4)
		pdf.Rect(14, 14, pageW-28, pageH-28, "D")
	}

	pdf.SetTextColor(theme.accent[0], theme.accent[1], theme.accent[2])
	pdf.SetFont(theme.font, "B", 30)
	pdf.SetXY(20, 32)
	pdf.CellFormat(pageW-40, 14, theme.heading, "", 1, "C", false, 0, "")

	pdf.SetTextColor(40, 40, 40)
	pdf.SetFont(theme.font, "", 14)
	pdf.SetX(20)
	pdf.CellFormat(pageW-40, 10, "This certifies that", "", 1, "C", false, 0, "")

	pdf.SetFont(theme.font, "B", 26)
	pdf.SetX(20)
	pdf.CellFormat(pageW-40, 16, text(data.RecipientName), "", 1, "C", false, 0, "")

	pdf.SetFont(theme.font, "", 14)
	pdf.SetX(20)
	pdf.CellFormat(pageW-40, 10, "has successfully completed", "", 1, "C", false, 0, "")
	pdf.SetFont(theme.font, "B", 18)
	pdf.SetX(20)
	pdf.CellFormat(pageW-40, 12, text(data.TestTitle), "", 1, "C", false, 0, "")

	pdf.SetFont(theme.font, "", 13)
	pdf.SetX(20)
	pdf.CellFormat(pageW-40, 10, text(fmt.Sprintf("Score: %d%%    Proficiency level: %s", data.Score, data.ProficiencyLevel)), "", 1, "C", false, 0, "")

	pdf.SetFont(theme.font, "", 11)
	pdf.SetXY(24, pageH-42)
	pdf.CellFormat(120, 7, "Issued: "+issueDate.Format("January 2, 2006"), "", 2, "L", false, 0, "")
	expiry := "Valid: no expiry"
	if data.ExpiryDate != nil {
		expiry = "Valid until: " + data.ExpiryDate.Format("January 2, 2006")
	}
	pdf.CellFormat(120, 7, expiry, "", 2, "L", false, 0, "")
	pdf.CellFormat(120, 7, "Verification code: "+verificationCode, "", 2, "L", false, 0, "")

	if qrCodeDataURL != "" {
		png, err := decodePNGDataURL(qrCodeDataURL)
		if err != nil {
			return nil, err
		}
		opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(png))
		pdf.ImageOptions("qr", pageW-62, pageH-62, 40, 40, false, opts, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render certificate pdf: %w", err)
	}
	return buf.Bytes(), nil
}
