package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"aurionplan/internal/browser"
	"aurionplan/internal/browser/browsertest"
	"aurionplan/internal/model"
)

type stubStrategy struct {
	name    string
	entries []model.RawEntry
	err     error
	calls   int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) TryExtract(context.Context, browser.Page) ([]model.RawEntry, error) {
	s.calls++
	return s.entries, s.err
}

func TestCascadeStopsAtFirstNonEmpty(t *testing.T) {
	a := &stubStrategy{name: "a", entries: []model.RawEntry{{ID: "1", Title: "Algo"}}}
	b := &stubStrategy{name: "b", err: errors.New("boom")}
	c := &stubStrategy{name: "c", err: errors.New("boom")}

	entries, winner, err := NewCascade(a, b, c).Run(context.Background(), &browsertest.Page{})
	require.NoError(t, err)
	require.Equal(t, "a", winner)
	require.Equal(t, []model.RawEntry{{ID: "1", Title: "Algo"}}, entries)
	require.Equal(t, 1, a.calls)
	require.Zero(t, b.calls)
	require.Zero(t, c.calls)
}

func TestCascadeTreatsErrorsAsEmpty(t *testing.T) {
	a := &stubStrategy{name: "a", err: errors.New("no widget")}
	b := &stubStrategy{name: "b"}
	c := &stubStrategy{name: "c", entries: []model.RawEntry{{ID: "dom-0"}}}

	entries, winner, err := NewCascade(a, b, c).Run(context.Background(), &browsertest.Page{})
	require.NoError(t, err)
	require.Equal(t, "c", winner)
	require.Len(t, entries, 1)
	require.Equal(t, 1, b.calls)
}

func TestCascadeAllEmpty(t *testing.T) {
	a := &stubStrategy{name: "a"}
	b := &stubStrategy{name: "b", err: errors.New("timeout")}

	entries, winner, err := NewCascade(a, b).Run(context.Background(), &browsertest.Page{})
	require.NoError(t, err)
	require.Empty(t, winner)
	require.NotNil(t, entries)
	require.Empty(t, entries)
}

func TestCascadeHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := &stubStrategy{name: "a", entries: []model.RawEntry{{ID: "1"}}}

	_, _, err := NewCascade(a).Run(ctx, &browsertest.Page{})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, a.calls)
}

func TestDefaultOrder(t *testing.T) {
	c := Default(Options{})
	names := make([]string, 0, len(c.Strategies))
	for _, s := range c.Strategies {
		names = append(names, s.Name())
	}
	require.Equal(t, []string{"widget", "intercept", "dom"}, names)
	require.Equal(t, InterceptStrategy{Timeout: defaultInterceptTimeout, Pause: defaultInterceptPause}, c.Strategies[1])
}
