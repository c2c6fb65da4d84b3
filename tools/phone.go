package tools

import (
	"strings"
	"unicode"
)

// NormalizeDisplayPhone turns a Graph display_phone_number ("+91 00000 00000",
// "1 (555) 010-0000") into "+<digits>". Empty or digit-less input returns "".
func NormalizeDisplayPhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(raw) + 1)
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimLeft(b.String(), "0")
	if digits == "" {
		return ""
	}
	return "+" + digits
}
