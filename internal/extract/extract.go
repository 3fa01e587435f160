// Package extract pulls raw calendar entries out of a rendered schedule page.
// Several strategies of decreasing fidelity are tried in order; the first one
// that yields entries wins.
package extract

import (
	"context"
	"time"

	"aurionplan/internal/browser"
	appLog "aurionplan/internal/log"
	"aurionplan/internal/model"
)

// Strategy is one way of reading entries off a page. An empty result means
// "try the next strategy".
type Strategy interface {
	Name() string
	TryExtract(ctx context.Context, page browser.Page) ([]model.RawEntry, error)
}

const (
	defaultInterceptTimeout = 15 * time.Second
	defaultInterceptPause   = 2 * time.Second
)

// Options tunes the built-in strategies.
type Options struct {
	// InterceptTimeout bounds the wait for a calendar data response.
	InterceptTimeout time.Duration
	// InterceptPause separates the "next" and "prev" clicks.
	InterceptPause time.Duration
}

func (o *Options) normalize() {
	if o.InterceptTimeout <= 0 {
		o.InterceptTimeout = defaultInterceptTimeout
	}
	if o.InterceptPause <= 0 {
		o.InterceptPause = defaultInterceptPause
	}
}

// Cascade runs strategies in order.
type Cascade struct {
	Strategies []Strategy
}

func NewCascade(strategies ...Strategy) *Cascade {
	return &Cascade{Strategies: strategies}
}

// Default returns the widget → intercept → DOM cascade.
func Default(opts Options) *Cascade {
	opts.normalize()
	return NewCascade(
		WidgetStrategy{},
		InterceptStrategy{Timeout: opts.InterceptTimeout, Pause: opts.InterceptPause},
		DOMStrategy{},
	)
}

// Run returns the entries of the first strategy that produced any, together
// with its name. A failing strategy counts as empty. When every strategy is
// empty, Run returns an empty slice and an empty name; the only error it
// reports is ctx cancellation.
func (c *Cascade) Run(ctx context.Context, page browser.Page) ([]model.RawEntry, string, error) {
	for _, s := range c.Strategies {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		entries, err := s.TryExtract(ctx, page)
		if err != nil {
			appLog.Error("extraction strategy failed", err, "strategy", s.Name())
			continue
		}
		if len(entries) > 0 {
			appLog.Info("extraction succeeded", "strategy", s.Name(), "entries", len(entries))
			return entries, s.Name(), nil
		}
		appLog.Debug("extraction strategy empty", "strategy", s.Name())
	}

	appLog.Info("no entries extracted")
	return []model.RawEntry{}, "", ctx.Err()
}
