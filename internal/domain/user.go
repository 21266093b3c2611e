package domain

import "strings"

// User is a person record from the ticketing system directory.
type User struct {
	ID    string
	Email string
	Name  string
}

// MatchesEmail compares case-insensitively.
func (u User) MatchesEmail(email string) bool {
	return u.Email != "" && strings.EqualFold(strings.TrimSpace(u.Email), strings.TrimSpace(email))
}
