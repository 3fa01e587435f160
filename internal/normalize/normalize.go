// Package normalize turns raw calendar entries scraped from the portal into
// the public event model: title heuristics, type classification and
// timestamp parsing.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	appLog "aurionplan/internal/log"
	"aurionplan/internal/model"
)

// Normalizer composes ParseTitle and Classify. Location is used for portal
// timestamps that carry no offset.
type Normalizer struct {
	Location *time.Location
	// NewID generates ids for entries the portal sent without one.
	NewID func() string
}

func New(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{
		Location: loc,
		NewID:    uuid.NewString,
	}
}

// Events normalizes entries in order, dropping empty slots and breaks.
func (n *Normalizer) Events(raws []model.RawEntry) []model.NormalizedEvent {
	out := make([]model.NormalizedEvent, 0, len(raws))
	for _, raw := range raws {
		if raw.IsEmpty || raw.IsBreak {
			continue
		}
		out = append(out, n.Event(raw))
	}
	return out
}

// Event normalizes a single entry regardless of its empty/break flags.
func (n *Normalizer) Event(raw model.RawEntry) model.NormalizedEvent {
	title := ParseTitle(raw.Title)

	id := raw.ID
	if id == "" {
		id = n.NewID()
	}

	start, ok := ParseTimestamp(raw.Start, n.Location)
	if !ok && raw.Start != "" {
		appLog.Debug("unparseable event start", "id", id, "start", raw.Start)
	}
	end, ok := ParseTimestamp(raw.End, n.Location)
	if !ok && raw.End != "" {
		appLog.Debug("unparseable event end", "id", id, "end", raw.End)
	}

	return model.NormalizedEvent{
		ID:        id,
		Title:     title.CourseName,
		Room:      title.Room,
		Professor: title.Professor,
		Group:     title.Group,
		Start:     start,
		End:       end,
		Type:      Classify(raw.ClassName, raw.Title),
		RawTitle:  title.Raw,
		AllDay:    raw.AllDay,
	}
}

var zonedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp understands the shapes the portal and its calendar widget
// produce: ISO 8601 with or without offset, date-only values and Unix
// milliseconds. Values without offset are read in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && len(s) >= 10 {
		return time.UnixMilli(ms).In(loc), true
	}
	return time.Time{}, false
}
