package normalize

import (
	"regexp"
	"strings"
)

// Placeholder is used as course name when a title has no usable line.
const Placeholder = "Sans titre"

// Title holds the fields recovered from a multi-line portal title.
// Absent fields are empty strings.
type Title struct {
	CourseName string
	Room       string
	Professor  string
	Group      string
	Raw        string
}

var roomPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Z]?\d{3}[A-Z]?$`), // A301, 204, 301B
	regexp.MustCompile(`(?i)salle`),
	regexp.MustCompile(`(?i)amphi`),
	regexp.MustCompile(`(?i)labo`),
	regexp.MustCompile(`^[A-Z]{1,3}[-\s]?\d{1,4}$`), // B-201, TD3
}

var professorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(M\.|Mme|Mr|Pr|Dr)\s`),
	// "Prénom NOM"
	regexp.MustCompile(`^[A-ZÉÈÊËÀÂÄÙÛÜÔÖÏÎ][a-zéèêëàâäùûüôöïî]+\s[A-ZÉÈÊËÀÂÄÙÛÜÔÖÏÎ]{2,}`),
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// splitLines returns the non-empty trimmed lines of s.
func splitLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// ParseTitle assigns each line, in order, to the first still-empty slot it
// qualifies for: room, then professor, then course name, then group. Rule
// order is significant and changing it changes output.
func ParseTitle(raw string) Title {
	lines := splitLines(raw)
	out := Title{Raw: raw}

	for _, line := range lines {
		switch {
		case out.Room == "" && matchesAny(roomPatterns, line):
			out.Room = line
		case out.Professor == "" && matchesAny(professorPatterns, line):
			out.Professor = line
		case out.CourseName == "":
			out.CourseName = line
		case out.Group == "":
			out.Group = line
		}
	}

	if out.CourseName == "" {
		if len(lines) > 0 {
			out.CourseName = lines[0]
		} else {
			out.CourseName = Placeholder
		}
	}
	if out.Professor == "" && len(lines) > 2 {
		out.Professor = lines[len(lines)-1]
	}

	return out
}
