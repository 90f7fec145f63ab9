package domain

import (
	"strings"
	"time"
	"unicode"
)

// TaughtResponse is an operator-taught trigger and its canned answer.
type TaughtResponse struct {
	ID         int64
	Trigger    string
	Response   string
	AuthorID   string
	UsageCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NormalizeTrigger lower-cases text, strips punctuation and collapses whitespace.
// Hyphens and underscores become spaces so "game-help" and "game help" collide.
func NormalizeTrigger(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r == '-' || r == '_':
			b.WriteRune(' ')
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
