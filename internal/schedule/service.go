// Package schedule ties the portal login, extraction, normalization, session
// and cache layers into the operations the API exposes.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"aurionplan/internal/browser"
	"aurionplan/internal/cache"
	"aurionplan/internal/extract"
	"aurionplan/internal/ics"
	appLog "aurionplan/internal/log"
	"aurionplan/internal/model"
	"aurionplan/internal/normalize"
	"aurionplan/internal/portal"
	"aurionplan/internal/session"
)

var (
	ErrMissingCredentials = errors.New("schedule: username and password are required")
	ErrNoCachedSchedule   = errors.New("schedule: no cached schedule")
)

// Launcher starts a fresh browser page.
type Launcher interface {
	Launch(ctx context.Context) (browser.Page, error)
}

// Extractor reads raw entries off a schedule page.
type Extractor interface {
	Run(ctx context.Context, page browser.Page) ([]model.RawEntry, string, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Launcher   Launcher
	Auth       *portal.Authenticator
	Extractor  Extractor
	Normalizer *normalize.Normalizer
	Sessions   *session.Manager
	Cache      *cache.Gate

	// InterceptTimeout bounds the wait for calendar data after navigation.
	InterceptTimeout time.Duration
	// Location is used for calendar exports.
	Location *time.Location
}

type Service struct {
	d Deps
}

func New(d Deps) *Service {
	if d.Extractor == nil {
		d.Extractor = extract.Default(extract.Options{InterceptTimeout: d.InterceptTimeout})
	}
	if d.Normalizer == nil {
		d.Normalizer = normalize.New(d.Location)
	}
	if d.Cache == nil {
		d.Cache = cache.NewGate(nil, 0)
	}
	if d.InterceptTimeout <= 0 {
		d.InterceptTimeout = 15 * time.Second
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	return &Service{d: d}
}

// LoginResult is the outcome of LoginAndFetch.
type LoginResult struct {
	Token     string
	Events    []model.NormalizedEvent
	FromCache bool
	// CachedAt is set when FromCache is true.
	CachedAt time.Time
	Message  string
}

// LoginAndFetch returns username's schedule, from cache when it is fresh and
// from the portal otherwise. A live fetch keeps the browser open as a
// session addressed by the returned token. A cache hit returns a token that
// addresses no session.
func (s *Service) LoginAndFetch(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	var token string
	res, err := s.d.Cache.Resolve(ctx, username, func(ctx context.Context) ([]model.NormalizedEvent, error) {
		page, events, err := s.scrape(ctx, username, password)
		if err != nil {
			return nil, err
		}
		token, err = s.d.Sessions.Create(username, page)
		if err != nil {
			closePage(page)
			return nil, err
		}
		return events, nil
	})
	if err != nil {
		return nil, err
	}

	out := &LoginResult{Events: res.Events, FromCache: res.FromCache}
	if res.FromCache {
		token, err = session.NewToken()
		if err != nil {
			return nil, err
		}
		out.CachedAt = res.CachedAt
		out.Message = fmt.Sprintf("%d événements (cache). Données mises à jour il y a moins de %sh.",
			len(res.Events), strconv.FormatFloat(s.d.Cache.MaxAgeHours(), 'f', -1, 64))
	} else {
		out.Message = fmt.Sprintf("Connecté en tant que %s. %d événements trouvés.", username, len(res.Events))
	}
	out.Token = token
	return out, nil
}

// Fetch runs the live pipeline once, caches the result and closes the
// browser.
func (s *Service) Fetch(ctx context.Context, username, password string) ([]model.NormalizedEvent, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	page, events, err := s.scrape(ctx, username, password)
	if err != nil {
		return nil, err
	}
	closePage(page)
	s.d.Cache.Save(ctx, username, events)
	return events, nil
}

// scrape logs in on a new browser and extracts the schedule. On success the
// caller owns the returned page; on failure it is already closed.
func (s *Service) scrape(ctx context.Context, username, password string) (browser.Page, []model.NormalizedEvent, error) {
	appLog.Info("launching browser", "owner", username)
	page, err := s.d.Launcher.Launch(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("launch browser: %w", err)
	}

	ok := false
	defer func() {
		if !ok {
			closePage(page)
		}
	}()

	if _, err := s.d.Auth.Login(ctx, page, username, password); err != nil {
		return nil, nil, err
	}

	raws, strategy, err := s.d.Extractor.Run(ctx, page)
	if err != nil {
		return nil, nil, err
	}
	events := s.d.Normalizer.Events(raws)
	appLog.Info("schedule extracted", "owner", username, "strategy", strategy, "raw", len(raws), "events", len(events))

	ok = true
	return page, events, nil
}

// Direction moves the calendar of a live session.
type Direction string

const (
	DirectionNext  Direction = "next"
	DirectionPrev  Direction = "prev"
	DirectionToday Direction = "today"
)

func (d Direction) selector() string {
	switch d {
	case DirectionNext:
		return ".fc-next-button"
	case DirectionPrev:
		return ".fc-prev-button"
	default:
		return extract.TodaySelector
	}
}

// Navigate moves the session's calendar and returns the events the portal
// sent for the new period. Unknown directions go to today. An expired or
// unknown token yields session.ErrSessionNotFound.
func (s *Service) Navigate(ctx context.Context, token string, dir Direction) ([]model.NormalizedEvent, error) {
	sess, release, err := s.d.Sessions.Acquire(ctx, token)
	if err != nil {
		return nil, err
	}
	defer release()

	page := sess.Page
	raws, err := extract.Intercept(ctx, page, s.d.InterceptTimeout, func(ctx context.Context) error {
		clicked, err := page.Click(ctx, dir.selector(), 0)
		if err == nil && !clicked {
			appLog.Debug("calendar button not found", "direction", string(dir))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("navigate %s: %w", dir, err)
	}

	events := s.d.Normalizer.Events(raws)
	appLog.Info("calendar navigated", "owner", sess.Owner, "direction", string(dir), "events", len(events))
	return events, nil
}

// Logout closes the session if it exists, waiting for an in-flight
// navigation on it to finish first.
func (s *Service) Logout(ctx context.Context, token string) {
	if err := s.d.Sessions.Close(ctx, token); err != nil {
		appLog.Error("logout gave up waiting for session", err, "token", appLog.Redact(token))
	}
}

// CachedSchedule is the cache view of one user.
type CachedSchedule struct {
	Events []model.NormalizedEvent
	// CachedAt is nil when there is nothing cached.
	CachedAt *time.Time
	Fresh    bool
}

// CachedEvents returns username's cached schedule without touching the
// portal. An empty record counts as nothing cached.
func (s *Service) CachedEvents(ctx context.Context, username string) CachedSchedule {
	rec := s.d.Cache.Fetch(ctx, username)
	if rec == nil || len(rec.Events) == 0 {
		return CachedSchedule{Events: []model.NormalizedEvent{}}
	}
	at := rec.LastUpdatedAt
	return CachedSchedule{Events: rec.Events, CachedAt: &at, Fresh: s.d.Cache.Fresh(rec)}
}

// Export renders username's cached schedule as iCalendar.
func (s *Service) Export(ctx context.Context, username string) ([]byte, error) {
	rec := s.d.Cache.Fetch(ctx, username)
	if rec == nil {
		return nil, ErrNoCachedSchedule
	}
	return s.ExportEvents(rec.Events)
}

// ExportEvents renders events as iCalendar in the service's location.
func (s *Service) ExportEvents(events []model.NormalizedEvent) ([]byte, error) {
	return ics.Export(events, ics.Options{Location: s.d.Location})
}

// ActiveSessions reports how many browser sessions are open.
func (s *Service) ActiveSessions() int {
	return s.d.Sessions.Len()
}

func closePage(p browser.Page) {
	if err := p.Close(); err != nil {
		appLog.Error("failed to close browser", err)
	}
}
