package formatter

import "strings"

// sensitiveFields are field-name substrings that force masking of the
// associated value in any rendered output.
var sensitiveFields = []string{
	"password",
	"secret",
	"token",
	"key",
	"cvv",
	"ssn",
	"card_number",
	"credit_card",
}

const maskedValue = "••••••••"

// MaskValue returns value unchanged, or the mask when the field name
// matches a sensitive pattern. Matching is case-insensitive substring so
// "api_key" and "Password2" both mask.
func MaskValue(value, field string) string {
	lower := strings.ToLower(field)
	for _, f := range sensitiveFields {
		if strings.Contains(lower, f) {
			return maskedValue
		}
	}
	return value
}
