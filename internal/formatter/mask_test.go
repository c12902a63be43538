package formatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskValue(t *testing.T) {
	testCases := []struct {
		name     string
		value    string
		field    string
		expected string
	}{
		{"PasswordField", "hunter2", "password", "••••••••"},
		{"SubstringMatch", "abc", "api_key", "••••••••"},
		{"CaseInsensitive", "abc", "Password2", "••••••••"},
		{"CardNumber", "4111111111111111", "card_number", "••••••••"},
		{"PlainField", "dark", "theme", "dark"},
		{"EmptyField", "x", "", "x"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, MaskValue(tc.value, tc.field))
		})
	}
}
