package extract

import (
	"context"

	"aurionplan/internal/browser"
	"aurionplan/internal/model"
)

// widgetScript reads the events held by a jQuery FullCalendar (v3) instance.
// It never mutates the page and returns [] on any failure.
const widgetScript = `(() => {
	const el = document.querySelector('.fc, [class*="fullcalendar"], #calendar, .schedule-calendar');
	if (!el) return [];
	const jq = typeof jQuery !== 'undefined' ? jQuery : (typeof $ !== 'undefined' ? $ : null);
	if (!jq) return [];
	try {
		const cal = jq(el);
		if (!cal.fullCalendar && !cal.data('fullCalendar')) return [];
		const iso = (m) => !m ? '' : (m.toISOString ? m.toISOString() : (m.format ? m.format() : String(m)));
		return cal.fullCalendar('clientEvents').map((e) => ({
			id: e.id || e._id || '',
			title: e.title || '',
			start: iso(e.start),
			end: iso(e.end),
			className: typeof e.className === 'string' ? e.className : (Array.isArray(e.className) ? e.className.join(' ') : ''),
			allDay: !!e.allDay,
		}));
	} catch (err) {
		return [];
	}
})()`

// WidgetStrategy asks the calendar widget for its in-memory events.
type WidgetStrategy struct{}

func (WidgetStrategy) Name() string { return "widget" }

func (WidgetStrategy) TryExtract(ctx context.Context, page browser.Page) ([]model.RawEntry, error) {
	var entries []model.RawEntry
	if err := page.Evaluate(ctx, widgetScript, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
