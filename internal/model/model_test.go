package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRawEntryUnmarshalPortalShapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want RawEntry
	}{
		{
			name: "string id and class",
			in:   `{"id":"a1","title":"Algo","start":"2024-03-04T08:00:00","end":"2024-03-04T10:00:00","className":"td","allDay":false}`,
			want: RawEntry{ID: "a1", Title: "Algo", Start: "2024-03-04T08:00:00", End: "2024-03-04T10:00:00", ClassName: "td"},
		},
		{
			name: "numeric id and class list",
			in:   `{"id":42,"title":"Projet","className":["fc-event","projet"],"allDay":true}`,
			want: RawEntry{ID: "42", Title: "Projet", ClassName: "fc-event projet", AllDay: true},
		},
		{
			name: "snake case flags",
			in:   `{"id":"b","title":"","is_empty":true,"is_break":true}`,
			want: RawEntry{ID: "b", IsEmpty: true, IsBreak: true},
		},
		{
			name: "camel case flags and null id",
			in:   `{"id":null,"title":"Pause","isBreak":true,"start":1709539200000}`,
			want: RawEntry{Title: "Pause", IsBreak: true, Start: "1709539200000"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got RawEntry
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizedEventJSONShape(t *testing.T) {
	start := time.Date(2024, 3, 4, 8, 0, 0, 0, time.FixedZone("CET", 3600))
	ev := NormalizedEvent{
		ID:        "1",
		Title:     "Algorithmique",
		Room:      "B201",
		Professor: "M. Dupont",
		Start:     start,
		End:       start.Add(2 * time.Hour),
		Type:      TypeTD,
		RawTitle:  "Algorithmique\nM. Dupont\nB201",
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	require.Equal(t, "2024-03-04T08:00:00+01:00", fields["start"])
	require.Equal(t, "", fields["group"])
	require.Equal(t, "td", fields["type"])
	require.Equal(t, "Algorithmique\nM. Dupont\nB201", fields["rawTitle"])
	require.Equal(t, false, fields["allDay"])

	var back NormalizedEvent
	require.NoError(t, json.Unmarshal(data, &back))
	require.True(t, back.Start.Equal(ev.Start))
	require.Equal(t, ev.Room, back.Room)
}

func TestNormalizedEventZeroTimesRenderEmpty(t *testing.T) {
	data, err := json.Marshal(NormalizedEvent{ID: "x", Title: "Sans titre", Type: TypeCours})
	require.NoError(t, err)
	require.Contains(t, string(data), `"start":""`)

	var back NormalizedEvent
	require.NoError(t, json.Unmarshal([]byte(`{"id":"x","type":"bogus","start":""}`), &back))
	require.True(t, back.Start.IsZero())
	require.Equal(t, TypeCours, back.Type)
}
