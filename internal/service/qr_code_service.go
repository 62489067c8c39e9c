package service

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/skip2/go-qrcode"
)

const pngDataURLPrefix = "data:image/png;base64,"

type QRCodeGenerator interface {
	// Generate encodes content as a PNG QR code data URL.
	Generate(content string) (string, error)
}

type qrCodeGenerator struct {
	size int
}

func NewQRCodeGenerator() QRCodeGenerator {
	return &qrCodeGenerator{size: 256}
}

func (g *qrCodeGenerator) Generate(content string) (string, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, g.size)
	if err != nil {
		return "", err
	}
	return pngDataURLPrefix + base64.StdEncoding.EncodeToString(png), nil
}

// decodePNGDataURL returns the PNG bytes of a data URL produced by Generate.
func decodePNGDataURL(dataURL string) ([]byte, error) {
	if !strings.HasPrefix(dataURL, pngDataURLPrefix) {
		return nil, errors.New("qr code is not a PNG data URL")
	}
	return base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, pngDataURLPrefix))
}
