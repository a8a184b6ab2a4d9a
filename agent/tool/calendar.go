package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	contractx "github.com/tanpawarit/majordomo/agent/contract"
)

const (
	defaultSearchDaysAhead  = 30
	maxCalendarResponseSize = 1 << 20
)

// CalendarConfig selects the family calendar REST service.
type CalendarConfig struct {
	BaseURL string        `envconfig:"BASE_URL" split_words:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// CalendarEvent is the wire shape the calendar service exchanges.
type CalendarEvent struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end,omitempty"`
	AllDay      bool   `json:"all_day,omitempty"`
}

type calendarListResponse struct {
	Events []CalendarEvent `json:"events"`
	Error  string          `json:"error,omitempty"`
}

// CalendarClient talks to the family calendar REST service. All four
// calendar tools share one client.
type CalendarClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	location   *time.Location
	now        func() time.Time
}

func NewCalendarClient(cfg CalendarConfig, location *time.Location) (*CalendarClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("calendar base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid calendar url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if location == nil {
		location = time.UTC
	}

	return &CalendarClient{
		baseURL:    baseURL,
		token:      strings.TrimSpace(cfg.Token),
		httpClient: &http.Client{Timeout: timeout},
		location:   location,
		now:        time.Now,
	}, nil
}

func (c *CalendarClient) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, int, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal calendar request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, 0, fmt.Errorf("build calendar request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("execute calendar request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxCalendarResponseSize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read calendar response: %w", err)
	}
	return raw, resp.StatusCode, nil
}

func (c *CalendarClient) createEvent(ctx context.Context, ev CalendarEvent) (*CalendarEvent, error) {
	raw, status, err := c.do(ctx, http.MethodPost, "/events", nil, ev)
	if err != nil {
		return nil, err
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("calendar http status=%d body=%s", status, string(raw))
	}

	var created CalendarEvent
	if err := json.Unmarshal(raw, &created); err != nil {
		return nil, fmt.Errorf("decode created event: %w", err)
	}
	return &created, nil
}

func (c *CalendarClient) listEvents(ctx context.Context, query url.Values) ([]CalendarEvent, error) {
	raw, status, err := c.do(ctx, http.MethodGet, "/events", query, nil)
	if err != nil {
		return nil, err
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("calendar http status=%d body=%s", status, string(raw))
	}

	var parsed calendarListResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode event list: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return parsed.Events, nil
}

func (c *CalendarClient) deleteEvent(ctx context.Context, id string) error {
	raw, status, err := c.do(ctx, http.MethodDelete, "/events/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("no event with id %q", id)
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return fmt.Errorf("calendar http status=%d body=%s", status, string(raw))
	}
	return nil
}

func formatEvent(ev CalendarEvent) string {
	var b strings.Builder
	title := ev.Title
	if title == "" {
		title = "(no title)"
	}
	fmt.Fprintf(&b, "- %s\n  ID: %s\n  Start: %s", title, ev.ID, ev.Start)
	if ev.End != "" {
		fmt.Fprintf(&b, "\n  End: %s", ev.End)
	}
	if ev.Description != "" {
		fmt.Fprintf(&b, "\n  Description: %s", ev.Description)
	}
	return b.String()
}

func formatEvents(events []CalendarEvent) string {
	parts := make([]string, len(events))
	for i, ev := range events {
		parts[i] = formatEvent(ev)
	}
	return strings.Join(parts, "\n\n")
}

// CreateEventTool creates a timed or all-day event on the family calendar.
type CreateEventTool struct {
	client *CalendarClient
}

var _ Tool = (*CreateEventTool)(nil)

func NewCreateEventTool(client *CalendarClient) *CreateEventTool {
	return &CreateEventTool{client: client}
}

func (t *CreateEventTool) Describe() contractx.ToolDescriptor {
	return contractx.ToolDescriptor{
		Name:        "create_calendar_event",
		Description: "Create a new event on the family calendar. Supports timed and all-day events.",
		Parameters: contractx.ObjectSchema(map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "Event title.",
			},
			"date": map[string]any{
				"type":        "string",
				"description": "Event date in YYYY-MM-DD format.",
			},
			"start_time": map[string]any{
				"type":        "string",
				"description": "Start time in HH:MM (24-hour). Omit for all-day events.",
			},
			"end_time": map[string]any{
				"type":        "string",
				"description": "End time in HH:MM (24-hour). Omit for all-day events.",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "Optional event description.",
			},
			"all_day": map[string]any{
				"type":        "boolean",
				"description": "If true, create an all-day event (default false).",
			},
		}, "title", "date"),
	}
}

func (t *CreateEventTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	title, _ := args["title"].(string)
	date, _ := args["date"].(string)
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return "", fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}

	startTime, _ := args["start_time"].(string)
	endTime, _ := args["end_time"].(string)
	description, _ := args["description"].(string)
	allDay, _ := args["all_day"].(bool)

	ev := CalendarEvent{Title: title, Description: description}
	if allDay || (startTime == "" && endTime == "") {
		ev.AllDay = true
		ev.Start = date
	} else {
		if startTime == "" {
			startTime = "09:00"
		}
		if endTime == "" {
			et, err := addHour(startTime)
			if err != nil {
				return "", err
			}
			endTime = et
		}
		ev.Start = date + "T" + startTime + ":00"
		ev.End = date + "T" + endTime + ":00"
	}

	created, err := t.client.createEvent(ctx, ev)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Event created: %q on %s. Event ID: %s", created.Title, date, created.ID), nil
}

// addHour returns an end time one hour after start (HH:MM).
func addHour(start string) (string, error) {
	parsed, err := time.Parse("15:04", start)
	if err != nil {
		return "", fmt.Errorf("start_time must be HH:MM: %w", err)
	}
	return parsed.Add(time.Hour).Format("15:04"), nil
}

// ListEventsTool lists family calendar events in an inclusive date range.
type ListEventsTool struct {
	client *CalendarClient
}

var _ Tool = (*ListEventsTool)(nil)

func NewListEventsTool(client *CalendarClient) *ListEventsTool {
	return &ListEventsTool{client: client}
}

func (t *ListEventsTool) Describe() contractx.ToolDescriptor {
	return contractx.ToolDescriptor{
		Name:        "list_calendar_events",
		Description: "List events on the family calendar between two dates (inclusive).",
		Parameters: contractx.ObjectSchema(map[string]any{
			"start_date": map[string]any{
				"type":        "string",
				"description": "Range start in YYYY-MM-DD.",
			},
			"end_date": map[string]any{
				"type":        "string",
				"description": "Range end in YYYY-MM-DD (inclusive).",
			},
		}, "start_date", "end_date"),
	}
}

func (t *ListEventsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	startDate, _ := args["start_date"].(string)
	endDate, _ := args["end_date"].(string)
	for _, d := range []string{startDate, endDate} {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return "", fmt.Errorf("dates must be YYYY-MM-DD: %w", err)
		}
	}

	query := url.Values{
		"from": {startDate},
		"to":   {endDate},
	}
	events, err := t.client.listEvents(ctx, query)
	if err != nil {
		return "", err
	}
	if len(events) == 0 {
		return fmt.Sprintf("No events found between %s and %s.", startDate, endDate), nil
	}
	return fmt.Sprintf("Found %d event(s) from %s to %s:\n\n%s",
		len(events), startDate, endDate, formatEvents(events)), nil
}

// DeleteEventTool removes an event from the family calendar by ID.
type DeleteEventTool struct {
	client *CalendarClient
}

var _ Tool = (*DeleteEventTool)(nil)

func NewDeleteEventTool(client *CalendarClient) *DeleteEventTool {
	return &DeleteEventTool{client: client}
}

func (t *DeleteEventTool) Describe() contractx.ToolDescriptor {
	return contractx.ToolDescriptor{
		Name:        "delete_calendar_event",
		Description: "Delete an event from the family calendar by its event ID.",
		Parameters: contractx.ObjectSchema(map[string]any{
			"event_id": map[string]any{
				"type":        "string",
				"description": "The event ID to delete.",
			},
		}, "event_id"),
	}
}

func (t *DeleteEventTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	id, _ := args["event_id"].(string)
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("event_id must not be empty")
	}
	if err := t.client.deleteEvent(ctx, id); err != nil {
		return "", err
	}
	return fmt.Sprintf("Event %s deleted.", id), nil
}

// SearchEventsTool searches upcoming family calendar events by text.
type SearchEventsTool struct {
	client *CalendarClient
}

var _ Tool = (*SearchEventsTool)(nil)

func NewSearchEventsTool(client *CalendarClient) *SearchEventsTool {
	return &SearchEventsTool{client: client}
}

func (t *SearchEventsTool) Describe() contractx.ToolDescriptor {
	return contractx.ToolDescriptor{
		Name:        "search_calendar_events",
		Description: "Search for upcoming family calendar events matching a text query.",
		Parameters: contractx.ObjectSchema(map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Free-text search query.",
			},
			"days_ahead": map[string]any{
				"type":        "integer",
				"description": "How many days ahead to search (default 30).",
			},
		}, "query"),
	}
}

func (t *SearchEventsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	q, _ := args["query"].(string)
	q = strings.TrimSpace(q)
	if q == "" {
		return "", fmt.Errorf("query must not be empty")
	}

	daysAhead := defaultSearchDaysAhead
	if v, ok := args["days_ahead"].(float64); ok && v > 0 {
		daysAhead = int(v)
	}

	now := t.client.now().In(t.client.location)
	query := url.Values{
		"q":    {q},
		"from": {now.Format("2006-01-02")},
		"to":   {now.AddDate(0, 0, daysAhead).Format("2006-01-02")},
		"max":  {strconv.Itoa(25)},
	}
	events, err := t.client.listEvents(ctx, query)
	if err != nil {
		return "", err
	}
	if len(events) == 0 {
		return fmt.Sprintf("No events matching %q in the next %d days.", q, daysAhead), nil
	}
	return fmt.Sprintf("Found %d event(s) matching %q:\n\n%s", len(events), q, formatEvents(events)), nil
}
