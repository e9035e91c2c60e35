// Package calendar lists upcoming events from Google Calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/kalambet/attune/internal/apperr"
	"github.com/kalambet/attune/internal/timewindow"
)

// MaxEvents caps a single listing.
const MaxEvents = 50

const (
	untitled = "Untitled Event"
	source   = "google_calendar"
)

// Event is a normalized calendar entry. Start and End hold an RFC 3339
// date-time, or a YYYY-MM-DD date for all-day events.
type Event struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`
	AllDay   bool   `json:"allDay,omitempty"`
	Location string `json:"location,omitempty"`
	JoinURL  string `json:"joinUrl,omitempty"`
	Source   string `json:"source"`
}

// Client wraps the Calendar v3 service.
type Client struct {
	svc *gcal.Service
}

// NewClient creates a Calendar client. Pass googleauth.Credentials.ClientOptions
// in production or googletest.Options in tests.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// ListEvents returns single-instance events in w ordered by start time.
func (c *Client) ListEvents(ctx context.Context, calendarID string, w timewindow.Window) ([]Event, error) {
	resp, err := c.svc.Events.List(calendarID).
		TimeMin(w.Start.Format(time.RFC3339)).
		TimeMax(w.End.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(MaxEvents).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", upstream(err))
	}

	events := make([]Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		events = append(events, toEvent(item))
	}
	return events, nil
}

func toEvent(e *gcal.Event) Event {
	ev := Event{
		ID:       e.Id,
		Title:    e.Summary,
		Location: e.Location,
		JoinURL:  joinURL(e),
		Source:   source,
	}
	if ev.Title == "" {
		ev.Title = untitled
	}
	ev.Start, ev.AllDay = when(e.Start)
	ev.End, _ = when(e.End)
	return ev
}

func when(t *gcal.EventDateTime) (string, bool) {
	switch {
	case t == nil:
		return "", false
	case t.DateTime != "":
		return t.DateTime, false
	default:
		return t.Date, t.Date != ""
	}
}

// joinURL prefers the video entry point of structured conference data and
// falls back to the legacy hangout link.
func joinURL(e *gcal.Event) string {
	if e.ConferenceData != nil {
		for _, ep := range e.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" && ep.Uri != "" {
				return ep.Uri
			}
		}
	}
	return e.HangoutLink
}

func upstream(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &apperr.UpstreamError{
			Service: "Google Calendar",
			Status:  gerr.Code,
			Reason:  http.StatusText(gerr.Code),
			Body:    gerr.Message,
		}
	}
	return err
}
