package domain

import (
	"strings"
)

// NormalizeText prepares free text for comparison:
//   - trims leading/trailing whitespace
//   - converts to lowercase
//   - compresses multiple spaces into one
//
// Used for employee names and other text fields where formatting noise
// between two document exports must not count as a change.
func NormalizeText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	text = strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(text))
	prevSpace := false
	for _, r := range text {
		if r == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeEmployeeKey reduces an employee identifier to its digits, which
// survive formatting differences between document exports ("EMP-00123" and
// "00123" are the same employee). When the identifier contains no digits
// at all, the trimmed lowercase form is the key instead.
func NormalizeEmployeeKey(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return NormalizeText(id)
	}
	return b.String()
}
