package service

import (
	"time"

	"github.com/lshigami/testcert/internal/model"
)

const defaultValidityMonths = 24

// validityMonths per category; 0 means the certificate never expires.
var validityMonths = map[string]int{
	model.CategoryLanguage:     24,
	model.CategoryTechnical:    12,
	model.CategoryProfessional: 36,
	model.CategoryAcademic:     0,
}

// ValidityMonths returns the override when set, else the category lookup.
func ValidityMonths(categoryType string, override *int) int {
	if override != nil {
		return *override
	}
	if months, ok := validityMonths[categoryType]; ok {
		return months
	}
	return defaultValidityMonths
}

// ExpiryDate returns nil for certificates that never expire.
func ExpiryDate(categoryType string, issueDate time.Time, override *int) *time.Time {
	months := ValidityMonths(categoryType, override)
	if months <= 0 {
		return nil
	}
	expiry := issueDate.AddDate(0, months, 0)
	return &expiry
}
