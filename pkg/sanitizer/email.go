// Package sanitizer normalizes untrusted input before validation and
// storage. Only the transformations the auth flows need live here.
package sanitizer

import (
	"regexp"
	"strings"
)

var dotRegex = regexp.MustCompile(`\.{2,}`)

// NormalizeEmail lowercases and trims an email address and consolidates
// consecutive dots in the local part. Input that does not look like an
// email is returned trimmed and lowercased, preserving the original shape
// so validation can reject it with a useful message.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	email = strings.ToLower(email)

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}

	local := dotRegex.ReplaceAllString(parts[0], ".")
	local = strings.Trim(local, ".")

	return local + "@" + parts[1]
}

// EmailLocalPart returns the part of an email address before the '@'.
// Registration uses it as the default profile username.
func EmailLocalPart(email string) string {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	if at < 0 {
		return email
	}
	return email[:at]
}
