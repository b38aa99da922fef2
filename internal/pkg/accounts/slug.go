package accounts

import (
	"strings"
	"unicode"
)

// Parameterize turns a display name into a URL-safe slug: lowercase ASCII
// letters, digits and single dashes, no leading/trailing dash.
func Parameterize(name string) string {
	var b strings.Builder
	lastDash := true // suppress leading dash

	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) && r < 128, unicode.IsDigit(r) && r < 128:
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	return strings.TrimRight(b.String(), "-")
}
