// Package browsertest provides a scripted browser.Page for tests of code
// that drives the portal.
package browsertest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"aurionplan/internal/browser"
)

// Click records one Click call.
type Click struct {
	Selector string
	Index    int
}

// Page is an in-memory browser.Page. Zero value is usable; configure the
// exported fields before handing it to the code under test.
type Page struct {
	mu sync.Mutex

	// CurrentURL is returned by URL and replaced by Navigate.
	CurrentURL string
	// Document is returned by HTML.
	Document string

	NavigateErr error
	ReadyErr    error
	// NavigationErrs is consumed in order by ExpectNavigation waiters; once
	// exhausted every wait succeeds.
	NavigationErrs []error

	// OnEvaluate answers Evaluate; its result is JSON round-tripped into out.
	OnEvaluate func(expr string) (any, error)
	// OnClick decides whether an element exists for selector. When nil,
	// every click succeeds.
	OnClick func(selector string, index int) bool
	// OnSubmit runs when PressEnter is called, typically to move CurrentURL.
	OnSubmit func(p *Page)

	Typed   map[string]string
	Clicks  []Click
	Visited []string
	Closed  int

	clickResponses map[string][]browser.Response
	subscribers    []chan browser.Response
}

var _ browser.Page = (*Page)(nil)

// Respond schedules responses to be emitted to active subscribers when
// selector is clicked.
func (p *Page) Respond(selector string, responses ...browser.Response) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.clickResponses == nil {
		p.clickResponses = make(map[string][]browser.Response)
	}
	p.clickResponses[selector] = append(p.clickResponses[selector], responses...)
}

// SetDocument swaps URL and document. It does not lock: it is meant for
// OnSubmit hooks, which already run with the page locked.
func (p *Page) SetDocument(url, html string) {
	p.CurrentURL = url
	p.Document = html
}

func (p *Page) Navigate(_ context.Context, url string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Visited = append(p.Visited, url)
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.CurrentURL = url
	return nil
}

func (p *Page) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL, nil
}

func (p *Page) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Document, nil
}

func (p *Page) Evaluate(_ context.Context, expr string, out any) error {
	p.mu.Lock()
	hook := p.OnEvaluate
	p.mu.Unlock()
	if hook == nil {
		return errors.New("browsertest: evaluate not scripted")
	}
	res, err := hook(expr)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (p *Page) Type(_ context.Context, selector, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Typed == nil {
		p.Typed = make(map[string]string)
	}
	p.Typed[selector] += text
	return nil
}

func (p *Page) PressEnter(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.OnSubmit != nil {
		p.OnSubmit(p)
	}
	return nil
}

func (p *Page) Click(_ context.Context, selector string, index int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.OnClick != nil && !p.OnClick(selector, index) {
		return false, nil
	}
	p.Clicks = append(p.Clicks, Click{Selector: selector, Index: index})

	for _, resp := range p.clickResponses[selector] {
		for _, sub := range p.subscribers {
			go func(ch chan browser.Response, r browser.Response) {
				defer func() { _ = recover() }() // subscriber may have stopped
				ch <- r
			}(sub, resp)
		}
	}
	return true, nil
}

func (p *Page) WaitReady(context.Context, string, time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ReadyErr
}

func (p *Page) ExpectNavigation(context.Context) func(time.Duration) error {
	return func(time.Duration) error {
		p.mu.Lock()
		defer p.mu.Unlock()
		if len(p.NavigationErrs) == 0 {
			return nil
		}
		err := p.NavigationErrs[0]
		p.NavigationErrs = p.NavigationErrs[1:]
		return err
	}
}

func (p *Page) Responses(context.Context) (<-chan browser.Response, func()) {
	ch := make(chan browser.Response)
	p.mu.Lock()
	p.subscribers = append(p.subscribers, ch)
	p.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			for i, sub := range p.subscribers {
				if sub == ch {
					p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
					break
				}
			}
			close(ch)
		})
	}
	return ch, stop
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed++
	return nil
}

// ClickedSelectors lists clicked selectors in order.
func (p *Page) ClickedSelectors() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.Clicks))
	for _, c := range p.Clicks {
		out = append(out, c.Selector)
	}
	return out
}

// CloseCount reports how many times Close was called.
func (p *Page) CloseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Closed
}
