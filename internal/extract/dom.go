package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"aurionplan/internal/browser"
	"aurionplan/internal/model"
)

const (
	domEventSelector = `.fc-event, .fc-day-grid-event, .fc-time-grid-event, [class*="event"]`
	domTitleSelector = `.fc-title, .fc-list-item-title, .event-title`
	domTimeSelector  = `.fc-time, .fc-list-item-time, .event-time`
)

// DOMStrategy reads rendered event elements. Entries get synthetic ids
// "dom-<n>" where n is the element's position among all candidates.
type DOMStrategy struct{}

func (DOMStrategy) Name() string { return "dom" }

func (DOMStrategy) TryExtract(ctx context.Context, page browser.Page) ([]model.RawEntry, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return ParseDOM(html)
}

// ParseDOM extracts entries from a rendered calendar document.
func ParseDOM(html string) ([]model.RawEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse calendar html: %w", err)
	}

	var entries []model.RawEntry
	doc.Find(domEventSelector).Each(func(i int, el *goquery.Selection) {
		title := el.Find(domTitleSelector).First()
		if title.Length() == 0 {
			return
		}

		start := el.AttrOr("data-start", "")
		if start == "" {
			start = strings.TrimSpace(el.Find(domTimeSelector).First().Text())
		}

		entries = append(entries, model.RawEntry{
			ID:        fmt.Sprintf("dom-%d", i),
			Title:     strings.TrimSpace(title.Text()),
			Start:     start,
			End:       el.AttrOr("data-end", ""),
			ClassName: el.AttrOr("class", ""),
		})
	})
	return entries, nil
}
