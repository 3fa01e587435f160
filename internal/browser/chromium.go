package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	appLog "aurionplan/internal/log"
)

// Default viewport for portal sessions. The portal collapses its menu
// below desktop widths, so keep this large.
const (
	DefaultWidth         = 1920
	DefaultHeight        = 1080
	DefaultActionTimeout = 30 * time.Second
)

// LaunchOptions defines how Chromium is started for one portal session.
type LaunchOptions struct {
	// ExecPath overrides Chromium discovery when non-empty.
	ExecPath string
	Headless bool

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// AcceptLanguage is sent as an extra header on every request.
	AcceptLanguage string

	// ActionTimeout bounds element interactions (typing, clicks) that have
	// no bound of their own. If zero, DefaultActionTimeout is used.
	ActionTimeout time.Duration
}

// Launcher starts one Chromium process per Launch call.
type Launcher struct {
	opts LaunchOptions
}

func NewLauncher(opts LaunchOptions) *Launcher {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = DefaultActionTimeout
	}
	return &Launcher{opts: opts}
}

// Launch starts a browser and returns its single tab. The browser outlives
// ctx: it is only released by Tab.Close. ctx bounds the start-up itself.
func (l *Launcher) Launch(ctx context.Context) (Page, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.DisableGPU,
		chromedp.WindowSize(l.opts.Width, l.opts.Height),
	)
	if l.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(l.opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			appLog.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			appLog.Debug("chromedp error", "msg", fmt.Sprintf(format, args...))
		}),
	)

	t := &Tab{
		ctx:           tabCtx,
		cancel:        tabCancel,
		allocCancel:   allocCancel,
		actionTimeout: l.opts.ActionTimeout,
	}

	setup := chromedp.Tasks{
		network.Enable(),
		chromedp.EmulateViewport(int64(l.opts.Width), int64(l.opts.Height)),
	}
	if l.opts.AcceptLanguage != "" {
		setup = append(setup, network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": l.opts.AcceptLanguage,
		}))
	}

	if err := t.start(ctx, l.opts.ActionTimeout, setup); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("browser: launch failed: %w", err)
	}

	appLog.Debug("browser launched", "headless", l.opts.Headless, "width", l.opts.Width, "height", l.opts.Height)
	return t, nil
}

// Tab is a chromedp-backed Page.
type Tab struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	actionTimeout time.Duration
	closeOnce     sync.Once
	closeErr      error
}

var _ Page = (*Tab)(nil)

// start performs the first Run, which allocates the browser process and
// binds it to the context it runs on. It must therefore run on the tab
// context itself; ctx and timeout abort start-up by cancelling the tab.
func (t *Tab) start(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var timedOut atomic.Bool
	timer := time.AfterFunc(timeout, func() {
		timedOut.Store(true)
		t.cancel()
	})
	detach := context.AfterFunc(ctx, t.cancel)

	err := chromedp.Run(t.ctx, actions...)
	stopped := timer.Stop()
	detached := detach()
	if err == nil && stopped && detached {
		return nil
	}
	if err == nil {
		// Start-up succeeded but the tab was cancelled right after.
		err = context.Canceled
	}
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case timedOut.Load():
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// run executes actions on the tab. The tab context is the parent so that
// cancelling a request never tears down the browser; ctx cancellation and
// timeout only abort this call.
func (t *Tab) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	rctx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	if timeout > 0 {
		var tcancel context.CancelFunc
		rctx, tcancel = context.WithTimeout(rctx, timeout)
		defer tcancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(rctx, actions...)
	if err != nil && errors.Is(rctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func (t *Tab) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return t.run(ctx, timeout, chromedp.Navigate(url))
}

func (t *Tab) URL(ctx context.Context) (string, error) {
	var u string
	err := t.run(ctx, t.actionTimeout, chromedp.Location(&u))
	return u, err
}

func (t *Tab) HTML(ctx context.Context) (string, error) {
	var html string
	err := t.run(ctx, t.actionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (t *Tab) Evaluate(ctx context.Context, expr string, out any) error {
	var raw []byte
	if err := t.run(ctx, t.actionTimeout, chromedp.Evaluate(expr, &raw)); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (t *Tab) Type(ctx context.Context, selector, text string) error {
	return t.run(ctx, t.actionTimeout, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

func (t *Tab) PressEnter(ctx context.Context, selector string) error {
	return t.run(ctx, t.actionTimeout, chromedp.SendKeys(selector, kb.Enter, chromedp.ByQuery))
}

const clickScript = `(() => {
	const els = document.querySelectorAll(%s);
	if (els.length <= %d) return false;
	els[%d].click();
	return true;
})()`

func (t *Tab) Click(ctx context.Context, selector string, index int) (bool, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return false, err
	}
	var clicked bool
	err = t.Evaluate(ctx, fmt.Sprintf(clickScript, quoted, index, index), &clicked)
	return clicked, err
}

func (t *Tab) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	return t.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (t *Tab) ExpectNavigation(ctx context.Context) func(timeout time.Duration) error {
	lctx, cancel := context.WithCancel(t.ctx)
	loaded := make(chan struct{}, 1)

	chromedp.ListenTarget(lctx, func(ev any) {
		if _, ok := ev.(*page.EventLoadEventFired); ok {
			select {
			case loaded <- struct{}{}:
			default:
			}
		}
	})

	return func(timeout time.Duration) error {
		defer cancel()
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-loaded:
			return nil
		case <-timer.C:
			return ErrTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Responses streams XML and JSON responses only; other bodies are never
// fetched from the browser.
func (t *Tab) Responses(ctx context.Context) (<-chan Response, func()) {
	lctx, cancel := context.WithCancel(t.ctx)
	out := make(chan Response, 16)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		closed  bool
		pending = make(map[network.RequestID]Response)
	)

	chromedp.ListenTarget(lctx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			ct := contentType(e.Response)
			if !strings.Contains(ct, "xml") && !strings.Contains(ct, "json") {
				return
			}
			mu.Lock()
			pending[e.RequestID] = Response{URL: e.Response.URL, ContentType: ct}
			mu.Unlock()

		case *network.EventLoadingFinished:
			mu.Lock()
			resp, ok := pending[e.RequestID]
			delete(pending, e.RequestID)
			if ok && !closed {
				wg.Add(1)
			} else {
				ok = false
			}
			mu.Unlock()
			if !ok {
				return
			}

			// Listener callbacks must not block on the browser, so the body
			// is fetched from its own goroutine.
			go func(id network.RequestID, resp Response) {
				defer wg.Done()
				c := chromedp.FromContext(lctx)
				body, err := network.GetResponseBody(id).Do(cdp.WithExecutor(lctx, c.Target))
				if err != nil {
					appLog.Debug("response body unavailable", "url", resp.URL, "err", err)
					return
				}
				resp.Body = body
				select {
				case out <- resp:
				case <-lctx.Done():
				}
			}(e.RequestID, resp)
		}
	})

	var once sync.Once
	stop := func() {
		once.Do(func() {
			mu.Lock()
			closed = true
			mu.Unlock()
			cancel()
			go func() {
				wg.Wait()
				close(out)
			}()
		})
	}
	detach := context.AfterFunc(ctx, stop)

	return out, func() {
		detach()
		stop()
	}
}

func contentType(r *network.Response) string {
	if r == nil {
		return ""
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, "content-type") {
			if s, ok := v.(string); ok {
				return strings.ToLower(s)
			}
		}
	}
	return strings.ToLower(r.MimeType)
}

// Close shuts the browser down. Errors are reported once; later calls
// return the same result.
func (t *Tab) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = chromedp.Cancel(t.ctx)
		t.cancel()
		t.allocCancel()
	})
	return t.closeErr
}
