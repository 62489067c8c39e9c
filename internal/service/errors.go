package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrUnavailable     = errors.New("unavailable")
	ErrExternalFailure = errors.New("external failure")
)

// IncompleteCertificateError reports a certificate row that exists without
// a stored document. Repair re-runs the missing steps.
type IncompleteCertificateError struct {
	CertificateID uint
	Stage         string // "render", "store" or "finalize"
	Err           error
}

func (e *IncompleteCertificateError) Error() string {
	return fmt.Sprintf("certificate %d incomplete at %s: %v", e.CertificateID, e.Stage, e.Err)
}

func (e *IncompleteCertificateError) Unwrap() []error {
	return []error{ErrExternalFailure, e.Err}
}

// notFoundOr maps gorm.ErrRecordNotFound to ErrNotFound and anything else to ErrExternalFailure.
func notFoundOr(err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrExternalFailure, msg, err)
}
