package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"aurionplan/internal/browser/browsertest"
	"aurionplan/internal/model"
)

const calendarHTML = `<html><body><div class="fc">
<a class="fc-day-grid-event fc-event td" data-start="2024-03-04T08:00:00" data-end="2024-03-04T10:00:00">
  <div class="fc-content"><span class="fc-time">8:00</span><span class="fc-title"> Algorithmique </span></div>
</a>
<a class="fc-time-grid-event fc-event cm">
  <div class="fc-content"><span class="fc-time">10:15 - 12:15</span><span class="fc-title">Physique</span></div>
</a>
<div class="fc-event-placeholder"></div>
</div></body></html>`

func TestParseDOM(t *testing.T) {
	entries, err := ParseDOM(calendarHTML)
	require.NoError(t, err)
	require.Equal(t, []model.RawEntry{
		{
			ID:        "dom-0",
			Title:     "Algorithmique",
			Start:     "2024-03-04T08:00:00",
			End:       "2024-03-04T10:00:00",
			ClassName: "fc-day-grid-event fc-event td",
		},
		{
			ID:        "dom-1",
			Title:     "Physique",
			Start:     "10:15 - 12:15",
			ClassName: "fc-time-grid-event fc-event cm",
		},
	}, entries)
}

func TestParseDOMNoEvents(t *testing.T) {
	entries, err := ParseDOM(`<html><body><p>Aucun cours</p></body></html>`)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestDOMStrategyReadsPage(t *testing.T) {
	page := &browsertest.Page{Document: calendarHTML}
	entries, err := DOMStrategy{}.TryExtract(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
