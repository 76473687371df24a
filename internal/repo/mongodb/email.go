package mongodb

import "strings"

// emails are matched case-insensitively through a lowered shadow field
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
