// utils/validation.go
package utils

import (
	"regexp"
	"strings"
)

// E.164 with an optional leading plus, 2 to 15 digits, no leading zero.
var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// ValidatePhone reports whether a phone number is dialable internationally.
// Common formatting characters are stripped before matching, so inputs like
// "+1 (555) 123-4567" pass.
func ValidatePhone(phone string) bool {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, phone)
	return phonePattern.MatchString(cleaned)
}
