// Package cache keeps the last schedule fetched for each user so that a
// recent one can be served without driving the portal.
package cache

import (
	"context"
	"errors"
	"time"

	appLog "aurionplan/internal/log"
	"aurionplan/internal/model"
)

var ErrNotFound = errors.New("cache: no record")

// DefaultMaxAgeHours is how long a record counts as fresh.
const DefaultMaxAgeHours = 2

// Record is the cached schedule of one user.
type Record struct {
	Owner         string
	Events        []model.NormalizedEvent
	LastUpdatedAt time.Time
}

// Store persists one record per owner.
type Store interface {
	// Get returns ErrNotFound when owner has no record.
	Get(ctx context.Context, owner string) (*Record, error)
	// Save replaces owner's record.
	Save(ctx context.Context, owner string, events []model.NormalizedEvent, at time.Time) error
	Close() error
}

// IsFresh reports whether a record written at last is younger than
// maxAgeHours at now. A zero last is never fresh.
func IsFresh(last, now time.Time, maxAgeHours float64) bool {
	if last.IsZero() {
		return false
	}
	return now.Sub(last) < time.Duration(maxAgeHours*float64(time.Hour))
}

// Result is a schedule together with where it came from.
type Result struct {
	Events    []model.NormalizedEvent
	FromCache bool
	// CachedAt is set when FromCache is true.
	CachedAt time.Time
}

// Gate decides between the cache and a live fetch. Store failures never
// fail a request: reads degrade to a miss, writes are logged.
type Gate struct {
	store       Store
	maxAgeHours float64
	now         func() time.Time
}

func NewGate(store Store, maxAgeHours float64) *Gate {
	if store == nil {
		store = Disabled()
	}
	if maxAgeHours <= 0 {
		maxAgeHours = DefaultMaxAgeHours
	}
	return &Gate{store: store, maxAgeHours: maxAgeHours, now: time.Now}
}

// MaxAgeHours returns the freshness window.
func (g *Gate) MaxAgeHours() float64 { return g.maxAgeHours }

// Fresh reports whether rec is within the freshness window.
func (g *Gate) Fresh(rec *Record) bool {
	return rec != nil && IsFresh(rec.LastUpdatedAt, g.now(), g.maxAgeHours)
}

// Fetch returns owner's record or nil.
func (g *Gate) Fetch(ctx context.Context, owner string) *Record {
	rec, err := g.store.Get(ctx, owner)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			appLog.Error("cache read failed", err, "owner", owner)
		}
		return nil
	}
	return rec
}

// Save stores events for owner, logging failures.
func (g *Gate) Save(ctx context.Context, owner string, events []model.NormalizedEvent) {
	if events == nil {
		events = []model.NormalizedEvent{}
	}
	if err := g.store.Save(ctx, owner, events, g.now()); err != nil {
		appLog.Error("cache write failed", err, "owner", owner, "events", len(events))
		return
	}
	appLog.Debug("cache saved", "owner", owner, "events", len(events))
}

// Resolve serves a fresh cached record when there is one and otherwise
// calls live and caches what it returns.
func (g *Gate) Resolve(ctx context.Context, owner string, live func(context.Context) ([]model.NormalizedEvent, error)) (Result, error) {
	if rec := g.Fetch(ctx, owner); g.Fresh(rec) {
		appLog.Info("serving cached schedule", "owner", owner, "events", len(rec.Events), "cached_at", rec.LastUpdatedAt)
		return Result{Events: rec.Events, FromCache: true, CachedAt: rec.LastUpdatedAt}, nil
	}

	events, err := live(ctx)
	if err != nil {
		return Result{}, err
	}
	g.Save(ctx, owner, events)
	return Result{Events: events}, nil
}

// Close releases the underlying store.
func (g *Gate) Close() error { return g.store.Close() }
