package portal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"aurionplan/internal/browser"
	"aurionplan/internal/browser/browsertest"
)

const (
	loginURL = "https://portal.test/faces/Login.xhtml"
	homeURL  = "https://portal.test/faces/MainMenuPage.xhtml"
)

const homeHTML = `<html><body><ul>
<li><a href="#"><span>Accueil</span></a></li>
<li><a href="#"><span> Mon Planning </span></a></li>
<li><a href="#"><span>Mes notes</span></a></li>
</ul></body></html>`

func newAuthenticator() *Authenticator {
	return NewAuthenticator(Options{LoginURL: loginURL})
}

func submitTo(url, html string) func(p *browsertest.Page) {
	return func(p *browsertest.Page) { p.SetDocument(url, html) }
}

func TestLoginReachesSchedule(t *testing.T) {
	page := &browsertest.Page{OnSubmit: submitTo(homeURL, homeHTML)}

	state, err := newAuthenticator().Login(context.Background(), page, "jdoe", "secret")
	require.NoError(t, err)
	require.Equal(t, StateScheduleReady, state)
	require.Equal(t, []string{loginURL}, page.Visited)
	require.Equal(t, map[string]string{"#username": "jdoe", "#password": "secret"}, page.Typed)
	require.Equal(t, []browsertest.Click{
		{Selector: MenuSelector, Index: 1},
		{Selector: monthButtonSelector, Index: 0},
	}, page.Clicks)
}

func TestLoginWithoutMonthButton(t *testing.T) {
	page := &browsertest.Page{
		OnSubmit: submitTo(homeURL, homeHTML),
		OnClick:  func(selector string, _ int) bool { return selector != monthButtonSelector },
	}

	state, err := newAuthenticator().Login(context.Background(), page, "jdoe", "secret")
	require.NoError(t, err)
	require.Equal(t, StateScheduleReady, state)
	require.Equal(t, []string{MenuSelector}, page.ClickedSelectors())
}

func TestLoginRejected(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "portal message",
			html: `<div class="ui-messages-error"><span> Mot de passe invalide </span></div><div class="alert-danger">autre</div>`,
			want: "Mot de passe invalide",
		},
		{
			name: "no message",
			html: `<form id="login"></form>`,
			want: DefaultAuthMessage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := &browsertest.Page{OnSubmit: submitTo("https://portal.test/faces/LOGIN.xhtml?error", tt.html)}

			state, err := newAuthenticator().Login(context.Background(), page, "jdoe", "bad")
			require.ErrorIs(t, err, ErrAuthenticationFailed)
			var authErr *AuthError
			require.True(t, errors.As(err, &authErr))
			require.Equal(t, tt.want, authErr.Message)
			require.Equal(t, StateLoginFailed, state)
			require.Empty(t, page.Clicks)
		})
	}
}

func TestLoginSubmitTimeout(t *testing.T) {
	page := &browsertest.Page{NavigationErrs: []error{browser.ErrTimeout}}

	state, err := newAuthenticator().Login(context.Background(), page, "jdoe", "secret")
	require.ErrorIs(t, err, ErrNavigationTimeout)
	require.Equal(t, StateLoginPageLoaded, state)
}

func TestLoginPageUnreachable(t *testing.T) {
	page := &browsertest.Page{NavigateErr: browser.ErrTimeout}

	state, err := newAuthenticator().Login(context.Background(), page, "jdoe", "secret")
	require.ErrorIs(t, err, ErrNavigationTimeout)
	require.Equal(t, StateStart, state)
}

func TestLoginMenuNotFound(t *testing.T) {
	html := `<ul><li><a><span>Accueil</span></a></li><li><a><span> </span></a></li><li><a><span>Mes notes</span></a></li></ul>`
	page := &browsertest.Page{OnSubmit: submitTo(homeURL, html)}

	state, err := newAuthenticator().Login(context.Background(), page, "jdoe", "secret")
	require.ErrorIs(t, err, ErrMenuNotFound)
	var menuErr *MenuNotFoundError
	require.True(t, errors.As(err, &menuErr))
	require.Equal(t, []string{"Accueil", "Mes notes"}, menuErr.Labels)
	require.Equal(t, `Impossible de trouver le menu "Mon Planning". Menus disponibles: Accueil, Mes notes`, err.Error())
	require.Equal(t, StateLoggedIn, state)
}

func TestLoginFallsBackToLinks(t *testing.T) {
	html := `<ul><li><a><span>Accueil</span></a></li></ul><a href="/x">Aide</a><a href="/planning">Emploi du temps</a>`
	page := &browsertest.Page{OnSubmit: submitTo(homeURL, html)}

	state, err := newAuthenticator().Login(context.Background(), page, "jdoe", "secret")
	require.NoError(t, err)
	require.Equal(t, StateScheduleReady, state)
	require.Equal(t, browsertest.Click{Selector: "a", Index: 2}, page.Clicks[0])
}

func TestLoginToleratesMissingScheduleNavigation(t *testing.T) {
	page := &browsertest.Page{
		OnSubmit:       submitTo(homeURL, homeHTML),
		NavigationErrs: []error{nil, browser.ErrTimeout},
		ReadyErr:       browser.ErrTimeout,
	}

	state, err := newAuthenticator().Login(context.Background(), page, "jdoe", "secret")
	require.NoError(t, err)
	require.Equal(t, StateScheduleReady, state)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "schedule_ready", StateScheduleReady.String())
	require.Equal(t, "state(42)", State(42).String())
}
