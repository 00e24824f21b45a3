package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidCode(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"482913", true},
		{"100000", true},
		{"999999", true},
		{"", false},
		{"12345", false},
		{"1234567", false},
		{"12a456", false},
		{" 48291", false},
		{"４８２９１３", false},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			assert.Equal(t, tc.valid, IsValidCode(tc.code))
		})
	}
}

func TestIsValidEnum(t *testing.T) {
	assert.True(t, IsValidEnum("", []string{"a"}))
	assert.True(t, IsValidEnum("json", []string{"console", "json"}))
	assert.False(t, IsValidEnum("xml", []string{"console", "json"}))
}
