package utils

import (
	"strings"
)

// SplitDataURL separates "data:<mime>;base64,<payload>". Bare base64 input is
// returned with an empty mime type.
func SplitDataURL(value string) (string, string) {
	if !strings.HasPrefix(value, "data:") {
		return "", value
	}

	value = strings.TrimPrefix(value, "data:")
	parts := strings.SplitN(value, ";base64,", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}
