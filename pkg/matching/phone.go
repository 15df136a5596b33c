package matching

import (
	"strings"
	"unicode"
)

// NormalizePhone brings a phone number into international form. Whitespace and leading
// zeros are stripped and a leading "+" is ensured. A number already starting with one of
// codes is kept; otherwise defaultCode is prepended to the national digits.
func NormalizePhone(raw string, codes []string, defaultCode string) string {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)

	digits := strings.TrimLeft(strings.TrimPrefix(s, "+"), "0")
	if digits == "" {
		return s
	}

	candidate := "+" + digits
	for _, code := range codes {
		code = normalizeCode(code)
		if code != "" && strings.HasPrefix(candidate, code) {
			return candidate
		}
	}

	if code := normalizeCode(defaultCode); code != "" {
		return code + digits
	}
	return candidate
}

func normalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	return "+" + strings.TrimLeft(strings.TrimPrefix(code, "+"), "0")
}
