package service

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// VerificationCodePattern is checked before any lookup.
const VerificationCodePattern = `^CERT-[A-Z0-9]+-[A-Z0-9]+$`

const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateVerificationCode builds "CERT-" + base36(unix millis) + "-" + six
// random base36 characters, uppercased.
func GenerateVerificationCode(now time.Time) (string, error) {
	suffix := make([]byte, 6)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		suffix[i] = codeAlphabet[n.Int64()]
	}
	stamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return "CERT-" + stamp + "-" + string(suffix), nil
}
