// Package browser drives a headless Chromium tab through chromedp and
// exposes it to the scraping pipeline as a small Page capability.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when a bounded wait (navigation, selector) expires.
var ErrTimeout = errors.New("browser: wait timed out")

// Response is a network response observed on the page.
type Response struct {
	URL         string
	ContentType string
	Body        []byte
}

// Page is everything the login flow and the extraction strategies need from
// a rendered portal page. A Page owns its browser process: Close releases
// both.
type Page interface {
	// Navigate loads url and waits for the load event, bounded by timeout.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// URL returns the current top-level document location.
	URL(ctx context.Context) (string, error)
	// HTML returns the serialized DOM of the current document.
	HTML(ctx context.Context) (string, error)
	// Evaluate runs a read-only script and JSON-decodes its result into out.
	Evaluate(ctx context.Context, expr string, out any) error
	// Type sends text as key strokes to the first element matching selector.
	Type(ctx context.Context, selector, text string) error
	// PressEnter sends the Enter key to the first element matching selector.
	PressEnter(ctx context.Context, selector string) error
	// Click clicks the index-th element matching selector. It reports false,
	// without error, when there is no such element.
	Click(ctx context.Context, selector string, index int) (bool, error)
	// WaitReady waits until selector matches at least one element.
	WaitReady(ctx context.Context, selector string, timeout time.Duration) error
	// ExpectNavigation subscribes to the next page load; call the returned
	// function after triggering the navigation to wait for it.
	ExpectNavigation(ctx context.Context) func(timeout time.Duration) error
	// Responses streams responses until stop is called. The channel is
	// closed after stop.
	Responses(ctx context.Context) (responses <-chan Response, stop func())
	// Close releases the page and its browser. Safe to call more than once.
	Close() error
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
