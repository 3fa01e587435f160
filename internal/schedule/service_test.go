package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aurionplan/internal/browser"
	"aurionplan/internal/browser/browsertest"
	"aurionplan/internal/cache"
	"aurionplan/internal/model"
	"aurionplan/internal/portal"
	"aurionplan/internal/session"
)

const homeHTML = `<ul><li><a href="#"><span>Mon planning</span></a></li></ul>`

type launcher struct {
	pages    []*browsertest.Page
	err      error
	launched int
}

func (l *launcher) Launch(context.Context) (browser.Page, error) {
	l.launched++
	if l.err != nil {
		return nil, l.err
	}
	p := &browsertest.Page{
		OnSubmit: func(p *browsertest.Page) {
			p.SetDocument("https://portal.test/faces/MainMenuPage.xhtml", homeHTML)
		},
	}
	l.pages = append(l.pages, p)
	return p, nil
}

type extractor struct {
	entries []model.RawEntry
	err     error
}

func (e extractor) Run(context.Context, browser.Page) ([]model.RawEntry, string, error) {
	return e.entries, "widget", e.err
}

type fixture struct {
	svc      *Service
	launcher *launcher
	sessions *session.Manager
	store    *cache.MemoryStore
}

func newFixture(t *testing.T, ex extractor) *fixture {
	t.Helper()
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	f := &fixture{
		launcher: &launcher{},
		sessions: session.NewManager(session.Options{}),
		store:    cache.NewMemoryStore(time.Hour),
	}
	f.svc = New(Deps{
		Launcher:         f.launcher,
		Auth:             portal.NewAuthenticator(portal.Options{LoginURL: "https://portal.test/faces/Login.xhtml"}),
		Extractor:        ex,
		Sessions:         f.sessions,
		Cache:            cache.NewGate(f.store, 2),
		InterceptTimeout: time.Second,
		Location:         paris,
	})
	return f
}

var algo = model.RawEntry{
	ID:        "evt-1",
	Title:     "Algorithmique\nM. Dupont\nB201",
	Start:     "2024-03-04T08:00:00",
	End:       "2024-03-04T10:00:00",
	ClassName: "td",
}

func TestLoginAndFetchLiveThenCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, extractor{entries: []model.RawEntry{algo, {ID: "x", IsBreak: true}}})

	live, err := f.svc.LoginAndFetch(ctx, "jdoe", "secret")
	require.NoError(t, err)
	require.False(t, live.FromCache)
	require.Regexp(t, `^[0-9a-f]{32}$`, live.Token)
	require.Equal(t, "Connecté en tant que jdoe. 1 événements trouvés.", live.Message)
	require.Len(t, live.Events, 1)
	require.Equal(t, model.TypeTD, live.Events[0].Type)
	require.Equal(t, "B201", live.Events[0].Room)
	require.Equal(t, 1, f.svc.ActiveSessions())
	require.Zero(t, f.launcher.pages[0].CloseCount())

	sess, err := f.sessions.Get(live.Token)
	require.NoError(t, err)
	require.Equal(t, "jdoe", sess.Owner)

	cached, err := f.svc.LoginAndFetch(ctx, "jdoe", "secret")
	require.NoError(t, err)
	require.True(t, cached.FromCache)
	require.Equal(t, "1 événements (cache). Données mises à jour il y a moins de 2h.", cached.Message)
	require.NotEqual(t, live.Token, cached.Token)
	require.False(t, cached.CachedAt.IsZero())
	require.Equal(t, 1, f.launcher.launched)
	require.Equal(t, 1, f.svc.ActiveSessions())

	_, err = f.sessions.Get(cached.Token)
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestLoginAndFetchRequiresCredentials(t *testing.T) {
	f := newFixture(t, extractor{})
	for _, c := range [][2]string{{"", "secret"}, {"jdoe", ""}} {
		_, err := f.svc.LoginAndFetch(context.Background(), c[0], c[1])
		require.ErrorIs(t, err, ErrMissingCredentials)
	}
	require.Zero(t, f.launcher.launched)
}

func TestLoginAndFetchClosesBrowserOnFailure(t *testing.T) {
	t.Run("rejected credentials", func(t *testing.T) {
		f := newFixture(t, extractor{})
		f.svc.d.Launcher = launcherFunc(func(context.Context) (browser.Page, error) {
			p := &browsertest.Page{OnSubmit: func(p *browsertest.Page) {
				p.SetDocument("https://portal.test/faces/Login.xhtml", `<div class="alert-danger">Compte bloqué</div>`)
			}}
			f.launcher.pages = append(f.launcher.pages, p)
			return p, nil
		})

		_, err := f.svc.LoginAndFetch(context.Background(), "jdoe", "bad")
		var authErr *portal.AuthError
		require.True(t, errors.As(err, &authErr))
		require.Equal(t, "Compte bloqué", authErr.Message)
		require.Equal(t, 1, f.launcher.pages[0].CloseCount())
		require.Zero(t, f.svc.ActiveSessions())
	})

	t.Run("extraction error", func(t *testing.T) {
		boom := errors.New("context canceled")
		f := newFixture(t, extractor{err: boom})

		_, err := f.svc.LoginAndFetch(context.Background(), "jdoe", "secret")
		require.ErrorIs(t, err, boom)
		require.Equal(t, 1, f.launcher.pages[0].CloseCount())
		require.Zero(t, f.svc.ActiveSessions())

		_, err = f.store.Get(context.Background(), "jdoe")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("launch error", func(t *testing.T) {
		f := newFixture(t, extractor{})
		f.launcher.err = errors.New("chrome not found")

		_, err := f.svc.LoginAndFetch(context.Background(), "jdoe", "secret")
		require.ErrorContains(t, err, "chrome not found")
	})
}

type launcherFunc func(context.Context) (browser.Page, error)

func (f launcherFunc) Launch(ctx context.Context) (browser.Page, error) { return f(ctx) }

const nextMonthXML = `<partial-response><changes><update id="form:calendar"><![CDATA[{"events":[{"id":"n1","title":"CM Physique\nAmphi A","start":"2024-04-01T08:00:00","end":"2024-04-01T10:00:00"},{"id":"n2","title":"","is_empty":true}]}]]></update></changes></partial-response>`

func TestNavigate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, extractor{entries: []model.RawEntry{algo}})

	res, err := f.svc.LoginAndFetch(ctx, "jdoe", "secret")
	require.NoError(t, err)

	page := f.launcher.pages[0]
	page.Respond(".fc-next-button", browser.Response{ContentType: "text/xml", Body: []byte(nextMonthXML)})

	events, err := f.svc.Navigate(ctx, res.Token, DirectionNext)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "n1", events[0].ID)
	require.Equal(t, model.TypeCM, events[0].Type)
	require.Equal(t, "Amphi A", events[0].Room)
	require.Contains(t, page.ClickedSelectors(), ".fc-next-button")

	_, err = f.svc.Navigate(ctx, "deadbeef", DirectionNext)
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestNavigateWithoutResponseIsEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, extractor{entries: []model.RawEntry{algo}})
	f.svc.d.InterceptTimeout = 20 * time.Millisecond

	res, err := f.svc.LoginAndFetch(ctx, "jdoe", "secret")
	require.NoError(t, err)

	events, err := f.svc.Navigate(ctx, res.Token, Direction("sideways"))
	require.NoError(t, err)
	require.Empty(t, events)
	require.Contains(t, f.launcher.pages[0].ClickedSelectors(), ".fc-today-button")
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, extractor{entries: []model.RawEntry{algo}})

	res, err := f.svc.LoginAndFetch(ctx, "jdoe", "secret")
	require.NoError(t, err)

	f.svc.Logout(ctx, res.Token)
	require.Zero(t, f.svc.ActiveSessions())
	require.Equal(t, 1, f.launcher.pages[0].CloseCount())

	f.svc.Logout(ctx, res.Token)
	f.svc.Logout(ctx, "unknown")
}

func TestCachedEventsAndExport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, extractor{entries: []model.RawEntry{algo}})

	empty := f.svc.CachedEvents(ctx, "jdoe")
	require.NotNil(t, empty.Events)
	require.Empty(t, empty.Events)
	require.Nil(t, empty.CachedAt)
	require.False(t, empty.Fresh)

	_, err := f.svc.Export(ctx, "jdoe")
	require.ErrorIs(t, err, ErrNoCachedSchedule)

	events, err := f.svc.Fetch(ctx, "jdoe", "secret")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, 1, f.launcher.pages[0].CloseCount())
	require.Zero(t, f.svc.ActiveSessions())

	got := f.svc.CachedEvents(ctx, "jdoe")
	require.Len(t, got.Events, 1)
	require.NotNil(t, got.CachedAt)
	require.True(t, got.Fresh)

	out, err := f.svc.Export(ctx, "jdoe")
	require.NoError(t, err)
	require.Contains(t, string(out), "UID:evt-1@supmeca-planning")
	require.Contains(t, string(out), "DTSTART;TZID=Europe/Paris:20240304T080000")
}
