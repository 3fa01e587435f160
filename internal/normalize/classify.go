package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"aurionplan/internal/model"
)

// Classify maps a portal class name and title to an event category. Rules
// are evaluated in priority order; the first match wins.
func Classify(className, title string) model.EventType {
	cl := strings.ToLower(className)
	t := strings.ToLower(title)

	switch {
	case strings.Contains(cl, "epreuve") || strings.Contains(cl, "exam") ||
		strings.Contains(t, "examen") || strings.Contains(t, "partiel") || strings.Contains(t, "épreuve"):
		return model.TypeExam
	case hasToken(t, "td") || strings.Contains(cl, "td"):
		return model.TypeTD
	case hasToken(t, "tp") || strings.Contains(cl, "tp"):
		return model.TypeTP
	case hasToken(t, "cm") || strings.Contains(t, "cours magistral") || strings.Contains(cl, "cm"):
		return model.TypeCM
	case strings.Contains(t, "projet") || strings.Contains(cl, "projet"):
		return model.TypeProjet
	case strings.Contains(t, "réunion") || strings.Contains(t, "reunion"):
		return model.TypeReunion
	}
	return model.TypeCours
}

// hasToken reports whether word occurs in s with no letter directly before
// or after it. Digits may follow, so "tp2" counts as "tp".
func hasToken(s, word string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], word)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(word)
		if !letterBefore(s, start) && !letterAt(s, end) {
			return true
		}
		i = start + 1
	}
}

func letterBefore(s string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return unicode.IsLetter(r)
}

func letterAt(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsLetter(r)
}
