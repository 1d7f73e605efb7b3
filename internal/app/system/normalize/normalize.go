// Package normalize canonicalizes user-entered values before they are stored
// or compared.
package normalize

import "strings"

// Email lowercases and trims an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding space and collapses internal runs of whitespace.
// Case is preserved.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Role lowercases and trims a role value.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Status lowercases and trims a status value.
func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// TaskStatus lowercases a column name and accepts "in progress" and
// "in-progress" as spellings of in_progress.
func TaskStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return s
}
