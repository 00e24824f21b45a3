package util

import (
	"regexp"
)

var pairingCodeRegex = regexp.MustCompile(`^[0-9]{6}$`)

// IsValidCode reports whether s has the shape of a pairing code.
func IsValidCode(s string) bool {
	return pairingCodeRegex.MatchString(s)
}

func IsValidEnum(value string, validValues []string) bool {
	if value == "" {
		return true
	}
	for _, v := range validValues {
		if value == v {
			return true
		}
	}
	return false
}
