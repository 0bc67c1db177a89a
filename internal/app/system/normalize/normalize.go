// internal/app/system/normalize/normalize.go
package normalize

import "strings"

// Email trims and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// LocalPart returns the part of an email before the last "@" and whether the
// remainder equals domain (case-insensitive).
func LocalPart(email, domain string) (string, bool) {
	i := strings.LastIndexByte(email, '@')
	if i <= 0 {
		return "", false
	}
	return email[:i], strings.EqualFold(email[i+1:], domain)
}
