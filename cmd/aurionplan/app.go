package main

import (
	"context"
	"errors"

	"aurionplan/internal/browser"
	"aurionplan/internal/cache"
	"aurionplan/internal/config"
	"aurionplan/internal/extract"
	appLog "aurionplan/internal/log"
	"aurionplan/internal/normalize"
	"aurionplan/internal/portal"
	"aurionplan/internal/schedule"
	"aurionplan/internal/session"
)

// app is the wired object graph behind every subcommand.
type app struct {
	conf     *config.Config
	sessions *session.Manager
	gate     *cache.Gate
	svc      *schedule.Service
}

func newApp(ctx context.Context, conf *config.Config) (*app, error) {
	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone, using local time", err, "timezone", conf.Timezone)
	}

	store, err := cache.Open(ctx, conf.Cache)
	if err != nil {
		// The cache only saves portal round trips; run without it.
		appLog.Error("cache unavailable, continuing without it", err, "driver", conf.Cache.Driver)
		store = cache.Disabled()
	}
	gate := cache.NewGate(store, conf.Cache.MaxAgeHours)

	sessions := session.NewManager(session.Options{
		IdleTimeout: conf.Session.IdleTimeout(),
		SweepSpec:   conf.Session.Sweep,
	})

	launcher := browser.NewLauncher(browser.LaunchOptions{
		ExecPath:       conf.Browser.ExecPath,
		Headless:       conf.Browser.IsHeadless(),
		Width:          conf.Browser.Width,
		Height:         conf.Browser.Height,
		AcceptLanguage: conf.Portal.AcceptLanguage,
		ActionTimeout:  conf.Timeouts.Navigation(),
	})

	auth := portal.NewAuthenticator(portal.Options{
		LoginURL:          conf.Portal.LoginURL(),
		UsernameSelector:  conf.Portal.UsernameSelector,
		PasswordSelector:  conf.Portal.PasswordSelector,
		NavigationTimeout: conf.Timeouts.Navigation(),
		MenuWait:          conf.Timeouts.MenuWait(),
		Settle:            conf.Timeouts.Settle(),
		MonthSettle:       conf.Timeouts.MonthSettle(),
	})

	svc := schedule.New(schedule.Deps{
		Launcher:         launcher,
		Auth:             auth,
		Extractor:        extract.Default(extract.Options{InterceptTimeout: conf.Timeouts.Intercept()}),
		Normalizer:       normalize.New(loc),
		Sessions:         sessions,
		Cache:            gate,
		InterceptTimeout: conf.Timeouts.Intercept(),
		Location:         loc,
	})

	return &app{conf: conf, sessions: sessions, gate: gate, svc: svc}, nil
}

// close releases every browser and the cache.
func (a *app) close(ctx context.Context) error {
	return errors.Join(
		a.sessions.Shutdown(ctx),
		a.gate.Close(),
	)
}
