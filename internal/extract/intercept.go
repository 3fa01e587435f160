package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"strings"
	"time"

	"aurionplan/internal/browser"
	appLog "aurionplan/internal/log"
	"aurionplan/internal/model"
)

const (
	NextSelector  = `.fc-next-button, .fc-right > .fc-button-group > button:last-child, button[title="suivant"], button[title="Suivant"]`
	PrevSelector  = `.fc-prev-button, .fc-left > .fc-button-group > button:first-child, button[title="précédent"], button[title="Précédent"]`
	TodaySelector = `.fc-today-button`
)

// InterceptStrategy makes the calendar reload by moving forward then back and
// captures the data response it fetches.
type InterceptStrategy struct {
	Timeout time.Duration
	Pause   time.Duration
}

func (InterceptStrategy) Name() string { return "intercept" }

func (s InterceptStrategy) TryExtract(ctx context.Context, page browser.Page) ([]model.RawEntry, error) {
	return Intercept(ctx, page, s.Timeout, func(ctx context.Context) error {
		ok, err := page.Click(ctx, NextSelector, 0)
		if err != nil {
			return err
		}
		if !ok {
			appLog.Debug("calendar next button not found")
			return nil
		}
		if err := browser.Sleep(ctx, s.Pause); err != nil {
			return err
		}
		_, err = page.Click(ctx, PrevSelector, 0)
		return err
	})
}

// Intercept subscribes to page responses, runs trigger and returns the
// entries of the first response that carries calendar data. When nothing
// qualifies before timeout it returns an empty result and no error. The
// subscription is removed before Intercept returns.
func Intercept(ctx context.Context, page browser.Page, timeout time.Duration, trigger func(context.Context) error) ([]model.RawEntry, error) {
	responses, stop := page.Responses(ctx)
	defer stop()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	if err := trigger(ctx); err != nil {
		return nil, err
	}

	for {
		select {
		case resp, ok := <-responses:
			if !ok {
				return nil, nil
			}
			if entries, found := Decode(resp); found {
				appLog.Debug("calendar response intercepted", "url", resp.URL, "entries", len(entries))
				return entries, nil
			}
		case <-timer.C:
			appLog.Debug("calendar response wait timed out", "timeout", timeout)
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

type partialResponse struct {
	XMLName xml.Name `xml:"partial-response"`
	Updates []struct {
		ID   string `xml:"id,attr"`
		Data string `xml:",chardata"`
	} `xml:"changes>update"`
}

type eventsPayload struct {
	Events []model.RawEntry `json:"events"`
}

// Decode extracts calendar entries from a JSF partial response (an <update>
// whose content is JSON with an "events" array) or from a JSON document of
// the same shape. found is true when an events array was present, even an
// empty one.
func Decode(resp browser.Response) (entries []model.RawEntry, found bool) {
	ct := strings.ToLower(resp.ContentType)

	if strings.Contains(ct, "xml") && bytes.Contains(resp.Body, []byte("partial-response")) {
		var pr partialResponse
		if err := xml.Unmarshal(resp.Body, &pr); err == nil {
			for _, u := range pr.Updates {
				if entries, ok := decodeEvents([]byte(u.Data)); ok {
					return entries, true
				}
			}
		}
	}

	if strings.Contains(ct, "json") {
		return decodeEvents(resp.Body)
	}
	return nil, false
}

var utf8BOM = []byte("\xef\xbb\xbf")

func decodeEvents(data []byte) ([]model.RawEntry, bool) {
	data = bytes.TrimSpace(bytes.TrimPrefix(bytes.TrimSpace(data), utf8BOM))
	if len(data) == 0 || data[0] != '{' {
		return nil, false
	}
	var p eventsPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Events == nil {
		return nil, false
	}
	return p.Events, true
}
