package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"aurionplan/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		className string
		title     string
		want      model.EventType
	}{
		{"exam beats td", "", "Examen TD algorithmique", model.TypeExam},
		{"partiel", "", "Partiel de mécanique", model.TypeExam},
		{"exam class", "fc-event epreuve", "Algo", model.TypeExam},
		{"accented epreuve title", "", "Épreuve écrite", model.TypeExam},
		{"td title token", "", "TD Algorithmique", model.TypeTD},
		{"td class", "td", "Algorithmique\nM. Dupont\nB201", model.TypeTD},
		{"td inside a word is not a token", "", "Outdoor", model.TypeCours},
		{"tp with group digit", "", "Électronique TP2", model.TypeTP},
		{"cm token", "", "CM Thermodynamique", model.TypeCM},
		{"cours magistral", "", "Cours magistral de physique", model.TypeCM},
		{"cm class", "cours-cm", "Physique", model.TypeCM},
		{"projet", "", "Projet tutoré", model.TypeProjet},
		{"projet class", "projet", "Suivi", model.TypeProjet},
		{"reunion accented", "", "Réunion de rentrée", model.TypeReunion},
		{"reunion plain", "", "reunion pedagogique", model.TypeReunion},
		{"default", "fc-event", "Anglais", model.TypeCours},
		{"empty", "", "", model.TypeCours},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.className, tt.title))
		})
	}
}

func TestHasToken(t *testing.T) {
	require.True(t, hasToken("td", "td"))
	require.True(t, hasToken("algo\ntd\nb201", "td"))
	require.True(t, hasToken("groupe td-3", "td"))
	require.False(t, hasToken("std", "td"))
	require.False(t, hasToken("tdm", "td"))
	require.False(t, hasToken("étd", "td"))
}
