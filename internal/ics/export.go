// Package ics renders normalized schedule events as an iCalendar feed.
package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "aurionplan/internal/log"
	"aurionplan/internal/model"
)

const (
	DefaultProductID = "-//Supmeca Planning//FR"
	DefaultName      = "Supmeca Planning"
	DefaultUIDDomain = "supmeca-planning"

	localLayout = "20060102T150405"
	dateLayout  = "20060102"
)

// Options controls calendar-level properties.
type Options struct {
	ProductID string
	Name      string
	UIDDomain string
	// Location is the zone DTSTART/DTEND are written in, with its name as TZID.
	Location *time.Location
	// Now stamps every VEVENT; defaults to time.Now.
	Now func() time.Time
}

func (o *Options) normalize() {
	if o.ProductID == "" {
		o.ProductID = DefaultProductID
	}
	if o.Name == "" {
		o.Name = DefaultName
	}
	if o.UIDDomain == "" {
		o.UIDDomain = DefaultUIDDomain
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Export renders events as a VCALENDAR. Events without a start time are
// skipped; a missing end means a one hour slot.
func Export(events []model.NormalizedEvent, opts Options) ([]byte, error) {
	opts.normalize()
	tzid := opts.Location.String()

	cal := ical.NewCalendar()
	cal.SetProductId(opts.ProductID)
	cal.SetMethod(ical.MethodPublish)
	cal.SetCalscale("GREGORIAN")
	cal.SetXWRCalName(opts.Name)
	cal.SetXWRTimezone(tzid)

	stamp := opts.Now().UTC()
	skipped := 0
	for _, ev := range events {
		if ev.Start.IsZero() {
			skipped++
			continue
		}

		vev := cal.AddEvent(fmt.Sprintf("%s@%s", ev.ID, opts.UIDDomain))
		vev.SetDtStampTime(stamp)
		setTimes(vev, ev, opts.Location, tzid)

		vev.SetSummary(ev.Title)
		if ev.Room != "" {
			vev.SetLocation(ev.Room)
		}
		if desc := description(ev); desc != "" {
			vev.SetDescription(desc)
		}
		vev.SetProperty(ical.ComponentPropertyCategories, strings.ToUpper(string(ev.Type)))
	}

	if skipped > 0 {
		appLog.Debug("ics export skipped undated events", "skipped", skipped)
	}
	return []byte(cal.Serialize()), nil
}

func setTimes(vev *ical.VEvent, ev model.NormalizedEvent, loc *time.Location, tzid string) {
	start := ev.Start.In(loc)
	end := ev.End.In(loc)

	if ev.AllDay {
		if ev.End.IsZero() || !end.After(start) {
			end = start.AddDate(0, 0, 1)
		}
		date := &ical.KeyValues{Key: string(ical.ParameterValue), Value: []string{"DATE"}}
		vev.SetProperty(ical.ComponentPropertyDtStart, start.Format(dateLayout), date)
		vev.SetProperty(ical.ComponentPropertyDtEnd, end.Format(dateLayout), date)
		return
	}

	if ev.End.IsZero() {
		end = start.Add(time.Hour)
	}
	tz := &ical.KeyValues{Key: string(ical.ParameterTzid), Value: []string{tzid}}
	vev.SetProperty(ical.ComponentPropertyDtStart, start.Format(localLayout), tz)
	vev.SetProperty(ical.ComponentPropertyDtEnd, end.Format(localLayout), tz)
}

// description joins professor, group and the portal title with " | ".
func description(ev model.NormalizedEvent) string {
	var parts []string
	for _, p := range []string{ev.Professor, ev.Group, ev.RawTitle} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " | ")
}

// Filename is the download name for an export made at t.
func Filename(t time.Time) string {
	return "supmeca-planning-" + t.UTC().Format("2006-01-02") + ".ics"
}
