// Package portal drives the academic portal from its login form to a
// rendered schedule page.
package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"aurionplan/internal/browser"
	appLog "aurionplan/internal/log"
)

// State is a step of the login flow.
type State int

const (
	StateStart State = iota
	StateLoginPageLoaded
	StateCredentialsSubmitted
	StateLoginFailed
	StateLoggedIn
	StateMenuNavigated
	StateScheduleReady
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateLoginPageLoaded:
		return "login_page_loaded"
	case StateCredentialsSubmitted:
		return "credentials_submitted"
	case StateLoginFailed:
		return "login_failed"
	case StateLoggedIn:
		return "logged_in"
	case StateMenuNavigated:
		return "menu_navigated"
	case StateScheduleReady:
		return "schedule_ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	errorSelector       = ".ui-messages-error, .error-message, .alert-danger, #message-erreur"
	monthButtonSelector = `.fc-right > button.fc-month-button, .fc-month-button, button[title="mois"], button[title="Mois"]`
)

// Options configures the flow. Zero durations fall back to the portal's
// usual bounds.
type Options struct {
	LoginURL         string
	UsernameSelector string
	PasswordSelector string

	NavigationTimeout time.Duration
	MenuWait          time.Duration
	// Settle is waited after the schedule page loaded so that the calendar
	// widget can render.
	Settle      time.Duration
	MonthSettle time.Duration

	Locators []MenuLocator
}

func (o *Options) normalize() {
	if o.UsernameSelector == "" {
		o.UsernameSelector = "#username"
	}
	if o.PasswordSelector == "" {
		o.PasswordSelector = "#password"
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 30 * time.Second
	}
	if o.MenuWait <= 0 {
		o.MenuWait = 15 * time.Second
	}
	if len(o.Locators) == 0 {
		o.Locators = DefaultLocators()
	}
}

// Authenticator logs a user into the portal and opens the schedule.
type Authenticator struct {
	opts Options
}

func NewAuthenticator(opts Options) *Authenticator {
	opts.normalize()
	return &Authenticator{opts: opts}
}

// Login runs the whole flow on page and returns the last state reached.
// On success that is StateScheduleReady. Failures are *AuthError,
// *MenuNotFoundError, ErrNavigationTimeout or a browser error.
func (a *Authenticator) Login(ctx context.Context, page browser.Page, username, password string) (State, error) {
	r := &run{opts: a.opts, page: page, owner: username, state: StateStart}
	err := r.login(ctx, username, password)
	return r.state, err
}

type run struct {
	opts  Options
	page  browser.Page
	owner string
	state State
}

func (r *run) enter(s State) {
	appLog.Debug("portal state", "owner", r.owner, "from", r.state, "to", s)
	r.state = s
}

func (r *run) login(ctx context.Context, username, password string) error {
	o := r.opts

	if err := r.page.Navigate(ctx, o.LoginURL, o.NavigationTimeout); err != nil {
		return navigationError("load login page", err)
	}
	r.enter(StateLoginPageLoaded)

	if err := r.page.Type(ctx, o.UsernameSelector, username); err != nil {
		return fmt.Errorf("type username: %w", err)
	}
	if err := r.page.Type(ctx, o.PasswordSelector, password); err != nil {
		return fmt.Errorf("type password: %w", err)
	}

	wait := r.page.ExpectNavigation(ctx)
	if err := r.page.PressEnter(ctx, o.PasswordSelector); err != nil {
		return fmt.Errorf("submit login form: %w", err)
	}
	if err := wait(o.NavigationTimeout); err != nil {
		return navigationError("submit credentials", err)
	}
	r.enter(StateCredentialsSubmitted)

	url, err := r.page.URL(ctx)
	if err != nil {
		return fmt.Errorf("read location: %w", err)
	}
	if strings.Contains(strings.ToLower(url), "login") {
		r.enter(StateLoginFailed)
		return r.authError(ctx)
	}
	r.enter(StateLoggedIn)
	appLog.Info("portal login succeeded", "owner", r.owner)

	if err := r.openSchedule(ctx); err != nil {
		return err
	}
	r.enter(StateMenuNavigated)

	if err := r.monthView(ctx); err != nil {
		return err
	}
	r.enter(StateScheduleReady)
	return nil
}

func (r *run) authError(ctx context.Context) error {
	msg := DefaultAuthMessage
	html, err := r.page.HTML(ctx)
	if err == nil {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
			if t := strings.TrimSpace(doc.Find(errorSelector).First().Text()); t != "" {
				msg = t
			}
		}
	}
	appLog.Info("portal rejected credentials", "owner", r.owner, "message", msg)
	return &AuthError{Message: msg}
}

func (r *run) openSchedule(ctx context.Context) error {
	o := r.opts

	if err := r.page.WaitReady(ctx, MenuSelector, o.MenuWait); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		appLog.Debug("side menu not rendered", "owner", r.owner, "err", err)
	}

	html, err := r.page.HTML(ctx)
	if err != nil {
		return fmt.Errorf("read home page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse home page: %w", err)
	}

	for _, loc := range o.Locators {
		selector, index, ok := loc.Locate(doc)
		if !ok {
			continue
		}

		wait := r.page.ExpectNavigation(ctx)
		clicked, err := r.page.Click(ctx, selector, index)
		if err != nil {
			return fmt.Errorf("click schedule menu: %w", err)
		}
		if !clicked {
			continue
		}
		if err := wait(o.NavigationTimeout); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			appLog.Debug("schedule navigation not observed", "owner", r.owner, "err", err)
		}
		// TODO: replace the fixed settle with a wait on the calendar
		// widget's first render once its markers are known.
		return browser.Sleep(ctx, o.Settle)
	}

	labels := menuLabels(doc)
	appLog.Info("schedule menu not found", "owner", r.owner, "labels", labels)
	return &MenuNotFoundError{Labels: labels}
}

// monthView switches the calendar to its month view when the button exists.
func (r *run) monthView(ctx context.Context) error {
	clicked, err := r.page.Click(ctx, monthButtonSelector, 0)
	if err != nil {
		return fmt.Errorf("click month view: %w", err)
	}
	if !clicked {
		return nil
	}
	return browser.Sleep(ctx, r.opts.MonthSettle)
}

func navigationError(step string, err error) error {
	if errors.Is(err, browser.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", step, ErrNavigationTimeout, err)
	}
	return fmt.Errorf("%s: %w", step, err)
}
