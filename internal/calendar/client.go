package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sadrozzy/Assistant-AI/internal/storage"
)

const (
	defaultBaseURL = "https://www.googleapis.com/calendar/v3"
	calendarID     = "primary"

	maxErrorBody = int64(1 << 20) // 1 MiB
)

// Event is a fully specified remote event for insertion.
type Event struct {
	Summary string
	Start   time.Time
	End     time.Time
	// ReminderMinutes sets the event's own reminder override; nil keeps
	// the calendar's default reminder policy.
	ReminderMinutes *int
}

// EventPatch carries a partial update; nil fields are left untouched on
// the remote event.
type EventPatch struct {
	Summary         *string
	Start           *time.Time
	End             *time.Time
	ReminderMinutes *int
}

// Remote is the per-user authorized calendar surface the reconciler
// drives. Credential refresh is the remote's own responsibility.
type Remote interface {
	InsertEvent(ctx context.Context, creds storage.Credentials, ev Event) (string, error)
	PatchEvent(ctx context.Context, creds storage.Credentials, eventID string, patch EventPatch) error
	DeleteEvent(ctx context.Context, creds storage.Credentials, eventID string) error
}

// GoogleClient talks to the Google Calendar v3 REST API.
type GoogleClient struct {
	baseURL string
	http    *http.Client
}

type GoogleOption func(*GoogleClient)

// WithBaseURL points the client at a different endpoint; used by tests.
func WithBaseURL(u string) GoogleOption {
	return func(c *GoogleClient) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) GoogleOption {
	return func(c *GoogleClient) { c.http = h }
}

func NewGoogleClient(opts ...GoogleOption) *GoogleClient {
	c := &GoogleClient{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type wireTime struct {
	DateTime string `json:"dateTime"`
}

type wireOverride struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

type wireReminders struct {
	UseDefault bool           `json:"useDefault"`
	Overrides  []wireOverride `json:"overrides,omitempty"`
}

type wireEvent struct {
	ID        string         `json:"id,omitempty"`
	Summary   string         `json:"summary,omitempty"`
	Start     *wireTime      `json:"start,omitempty"`
	End       *wireTime      `json:"end,omitempty"`
	Reminders *wireReminders `json:"reminders,omitempty"`
}

func (c *GoogleClient) InsertEvent(ctx context.Context, creds storage.Credentials, ev Event) (string, error) {
	body := wireEvent{
		Summary: ev.Summary,
		Start:   &wireTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:     &wireTime{DateTime: ev.End.Format(time.RFC3339)},
	}
	if ev.ReminderMinutes != nil {
		body.Reminders = &wireReminders{
			Overrides: []wireOverride{{Method: "popup", Minutes: *ev.ReminderMinutes}},
		}
	}

	var out wireEvent
	err := c.do(ctx, creds, http.MethodPost, c.eventsURL(""), body, &out)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("calendar insert: empty event id in response")
	}
	return out.ID, nil
}

func (c *GoogleClient) PatchEvent(ctx context.Context, creds storage.Credentials, eventID string, patch EventPatch) error {
	body := wireEvent{}
	if patch.Summary != nil {
		body.Summary = *patch.Summary
	}
	if patch.Start != nil {
		body.Start = &wireTime{DateTime: patch.Start.Format(time.RFC3339)}
	}
	if patch.End != nil {
		body.End = &wireTime{DateTime: patch.End.Format(time.RFC3339)}
	}
	if patch.ReminderMinutes != nil {
		body.Reminders = &wireReminders{
			Overrides: []wireOverride{{Method: "popup", Minutes: *patch.ReminderMinutes}},
		}
	}
	return c.do(ctx, creds, http.MethodPatch, c.eventsURL(eventID), body, nil)
}

func (c *GoogleClient) DeleteEvent(ctx context.Context, creds storage.Credentials, eventID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.eventsURL(eventID), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Already gone counts as deleted.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil
	}
	return checkStatus(resp)
}

func (c *GoogleClient) eventsURL(eventID string) string {
	u := c.baseURL + "/calendars/" + calendarID + "/events"
	if eventID != "" {
		u += "/" + url.PathEscape(eventID)
	}
	return u
}

func (c *GoogleClient) do(ctx context.Context, creds storage.Credentials, method, u string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("calendar api: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
