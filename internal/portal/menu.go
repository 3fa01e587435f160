package portal

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MenuSelector addresses the spans of the portal's side menu.
const MenuSelector = "li > a > span"

var menuTerms = []string{"planning", "emploi du temps"}

// MenuLocator finds the schedule entry in a parsed page. It returns a CSS
// selector and the index of the element to click among its matches.
type MenuLocator interface {
	Locate(doc *goquery.Document) (selector string, index int, ok bool)
}

// TextLocator picks the first element matching Selector whose trimmed,
// lower-cased text contains one of the schedule terms.
type TextLocator struct {
	Selector string
}

func (l TextLocator) Locate(doc *goquery.Document) (string, int, bool) {
	index := -1
	doc.Find(l.Selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if isScheduleLabel(s.Text()) {
			index = i
			return false
		}
		return true
	})
	if index < 0 {
		return "", 0, false
	}
	return l.Selector, index, true
}

func isScheduleLabel(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, term := range menuTerms {
		if strings.Contains(t, term) {
			return true
		}
	}
	return false
}

// DefaultLocators tries the side menu first, then any link.
func DefaultLocators() []MenuLocator {
	return []MenuLocator{
		TextLocator{Selector: MenuSelector},
		TextLocator{Selector: "a"},
	}
}

// menuLabels returns the non-empty side menu labels of doc.
func menuLabels(doc *goquery.Document) []string {
	labels := []string{}
	doc.Find(MenuSelector).Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			labels = append(labels, t)
		}
	})
	return labels
}
