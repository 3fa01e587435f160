package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// EventType is the category tag attached to every normalized event.
type EventType string

const (
	TypeCM      EventType = "cm"
	TypeTD      EventType = "td"
	TypeTP      EventType = "tp"
	TypeExam    EventType = "exam"
	TypeProjet  EventType = "projet"
	TypeReunion EventType = "reunion"
	TypeCours   EventType = "cours"
)

// Valid reports whether t is one of the fixed categories.
func (t EventType) Valid() bool {
	switch t {
	case TypeCM, TypeTD, TypeTP, TypeExam, TypeProjet, TypeReunion, TypeCours:
		return true
	}
	return false
}

// RawEntry is a calendar entry as produced by one extraction strategy,
// before any interpretation of its title. Start and End keep the portal's
// own textual representation.
type RawEntry struct {
	ID        string
	Title     string
	Start     string
	End       string
	ClassName string
	AllDay    bool
	IsEmpty   bool
	IsBreak   bool
}

// rawEntryJSON accepts the shapes the portal and the in-page widget emit:
// ids as strings or numbers, class names as a string or a list, and both
// snake_case and camelCase flags.
type rawEntryJSON struct {
	ID         json.RawMessage `json:"id"`
	Title      string          `json:"title"`
	Start      json.RawMessage `json:"start"`
	End        json.RawMessage `json:"end"`
	ClassName  json.RawMessage `json:"className"`
	AllDay     bool            `json:"allDay"`
	SnakeEmpty bool            `json:"is_empty"`
	SnakeBreak bool            `json:"is_break"`
	CamelEmpty bool            `json:"isEmpty"`
	CamelBreak bool            `json:"isBreak"`
}

func (e *RawEntry) UnmarshalJSON(data []byte) error {
	var in rawEntryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*e = RawEntry{
		ID:        scalarString(in.ID),
		Title:     in.Title,
		Start:     scalarString(in.Start),
		End:       scalarString(in.End),
		ClassName: classNames(in.ClassName),
		AllDay:    in.AllDay,
		IsEmpty:   in.SnakeEmpty || in.CamelEmpty,
		IsBreak:   in.SnakeBreak || in.CamelBreak,
	}
	return nil
}

// scalarString renders a JSON string or number as plain text; anything else
// (null, objects) yields "".
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// classNames flattens a string or an array of strings into one
// space-joined string.
func classNames(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, " ")
	}
	return scalarString(raw)
}

// NormalizedEvent is the public schedule entry served to clients and
// persisted in the cache. Optional fields are empty strings when absent.
type NormalizedEvent struct {
	ID        string
	Title     string
	Room      string
	Professor string
	Group     string

	// Start / End are zero when the portal timestamp could not be parsed.
	Start time.Time
	End   time.Time

	Type     EventType
	RawTitle string
	AllDay   bool
}

type eventJSON struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Room      string    `json:"room"`
	Professor string    `json:"professor"`
	Group     string    `json:"group"`
	Start     string    `json:"start"`
	End       string    `json:"end"`
	Type      EventType `json:"type"`
	RawTitle  string    `json:"rawTitle"`
	AllDay    bool      `json:"allDay"`
}

func (e NormalizedEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		ID:        e.ID,
		Title:     e.Title,
		Room:      e.Room,
		Professor: e.Professor,
		Group:     e.Group,
		Start:     formatTime(e.Start),
		End:       formatTime(e.End),
		Type:      e.Type,
		RawTitle:  e.RawTitle,
		AllDay:    e.AllDay,
	})
}

func (e *NormalizedEvent) UnmarshalJSON(data []byte) error {
	var in eventJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	start, err := parseTime(in.Start)
	if err != nil {
		return err
	}
	end, err := parseTime(in.End)
	if err != nil {
		return err
	}
	typ := in.Type
	if !typ.Valid() {
		typ = TypeCours
	}
	*e = NormalizedEvent{
		ID:        in.ID,
		Title:     in.Title,
		Room:      in.Room,
		Professor: in.Professor,
		Group:     in.Group,
		Start:     start,
		End:       end,
		Type:      typ,
		RawTitle:  in.RawTitle,
		AllDay:    in.AllDay,
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
