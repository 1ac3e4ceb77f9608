package domain

import (
	"regexp"
	"strings"
)

var mobilePattern = regexp.MustCompile(`^(010|011|012|015)\d{8}$`)

// ValidMobile accepts Egyptian mobile numbers: a known operator prefix
// followed by eight digits.
func ValidMobile(mobile string) bool {
	return mobilePattern.MatchString(mobile)
}

// SameName compares client names case-insensitively.
func SameName(a string, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
