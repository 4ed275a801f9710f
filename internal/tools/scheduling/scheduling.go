// Package scheduling is the calendar capability: it lists, creates and
// cancels events through the Google Calendar v3 REST API with the tenant's
// OAuth2 credentials.
package scheduling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"switchboard/internal/api"
	"switchboard/internal/capability"
)

// Name is the implementation name stored in bindings.
const Name = "scheduling"

const (
	// DefaultBaseURL is the Google Calendar v3 API root.
	DefaultBaseURL = "https://www.googleapis.com/calendar/v3"

	// DefaultTokenURL is Google's OAuth2 token endpoint.
	DefaultTokenURL = "https://oauth2.googleapis.com/token"

	defaultCalendarID = "primary"
	maxErrorBody      = 4096
)

// Public configuration keys.
const (
	ConfigBaseURL    = "base_url"
	ConfigCalendarID = "calendar_id"
	ConfigTimeZone   = "time_zone"
)

// Sensitive configuration keys.
const (
	CredentialAccessToken  = "access_token"
	CredentialRefreshToken = "refresh_token"
	CredentialClientID     = "client_id"
	CredentialClientSecret = "client_secret"
	CredentialTokenURL     = "token_url"
)

// Definition registers the capability.
func Definition() capability.Definition {
	return capability.Definition{
		Name:        Name,
		Description: "Google Calendar events for the tenant's calendar",
		Prototype:   &Calendar{},
		New: func(cfg api.ImplementationConfig) (capability.Implementation, error) {
			return New(cfg, nil), nil
		},
	}
}

// Calendar is a session-scoped calendar client. Credentials are read from the
// execution context on every call and are never retained.
type Calendar struct {
	baseURL    string
	calendarID string
	timeZone   string

	// transport is the base transport under the OAuth2 layer; nil means
	// http.DefaultTransport.
	transport http.RoundTripper
}

// New creates a Calendar from the tenant's public configuration.
func New(cfg api.ImplementationConfig, transport http.RoundTripper) *Calendar {
	c := &Calendar{
		baseURL:    DefaultBaseURL,
		calendarID: defaultCalendarID,
		transport:  transport,
	}
	if v, ok := cfg.Public[ConfigBaseURL].(string); ok && v != "" {
		c.baseURL = strings.TrimRight(v, "/")
	}
	if v, ok := cfg.Public[ConfigCalendarID].(string); ok && v != "" {
		c.calendarID = v
	}
	if v, ok := cfg.Public[ConfigTimeZone].(string); ok {
		c.timeZone = v
	}
	return c
}

// OperationDocs lists the callable operations.
func (c *Calendar) OperationDocs() map[string]string {
	return map[string]string{
		"list_events":  "List upcoming events on the tenant's calendar, ordered by start time.",
		"create_event": "Create an event on the tenant's calendar and return it.",
		"cancel_event": "Cancel (delete) an event on the tenant's calendar.",
	}
}

// ListEventsArgs are the arguments of list_events.
type ListEventsArgs struct {
	TimeMin    *time.Time `json:"time_min" default:"null" desc:"Only events ending after this RFC3339 time; defaults to now"`
	TimeMax    *time.Time `json:"time_max" default:"null" desc:"Only events starting before this RFC3339 time"`
	MaxResults int        `json:"max_results" default:"10" desc:"Maximum number of events to return (1-250)"`
	Query      string     `json:"query" default:"" desc:"Free text filter on event fields"`
}

// CreateEventArgs are the arguments of create_event.
type CreateEventArgs struct {
	Summary     string    `json:"summary" desc:"Event title"`
	Start       time.Time `json:"start" desc:"RFC3339 start time"`
	End         time.Time `json:"end" desc:"RFC3339 end time"`
	Description string    `json:"description" default:"" desc:"Event description"`
	Location    *string   `json:"location" default:"null" desc:"Event location"`
	Attendees   []string  `json:"attendees" default:"null" desc:"Attendee email addresses"`
}

// CancelEventArgs are the arguments of cancel_event.
type CancelEventArgs struct {
	EventID string `json:"event_id" desc:"ID of the event to cancel"`
	Notify  bool   `json:"notify" default:"false" desc:"Email the attendees about the cancellation"`
}

// Event is the calendar event shape returned to callers.
type Event struct {
	ID          string   `json:"id"`
	Summary     string   `json:"summary"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location,omitempty"`
	Status      string   `json:"status,omitempty"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Attendees   []string `json:"attendees,omitempty"`
	HTMLLink    string   `json:"html_link,omitempty"`
}

// ListEvents lists events.
func (c *Calendar) ListEvents(ctx context.Context, ec *api.ExecutionContext, args ListEventsArgs) (interface{}, error) {
	if args.MaxResults < 1 || args.MaxResults > 250 {
		return nil, fmt.Errorf("max_results must be between 1 and 250, got %d", args.MaxResults)
	}

	timeMin := time.Now().UTC()
	if args.TimeMin != nil {
		timeMin = *args.TimeMin
	}

	q := url.Values{}
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")
	q.Set("maxResults", strconv.Itoa(args.MaxResults))
	q.Set("timeMin", timeMin.Format(time.RFC3339))
	if args.TimeMax != nil {
		q.Set("timeMax", args.TimeMax.Format(time.RFC3339))
	}
	if args.Query != "" {
		q.Set("q", args.Query)
	}
	if c.timeZone != "" {
		q.Set("timeZone", c.timeZone)
	}

	var resp struct {
		Items []apiEvent `json:"items"`
	}
	if err := c.do(ctx, ec, http.MethodGet, c.eventsURL("")+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		events = append(events, item.toEvent())
	}
	return map[string]interface{}{"events": events}, nil
}

// CreateEvent creates an event.
func (c *Calendar) CreateEvent(ctx context.Context, ec *api.ExecutionContext, args CreateEventArgs) (interface{}, error) {
	if strings.TrimSpace(args.Summary) == "" {
		return nil, fmt.Errorf("summary must not be empty")
	}
	if !args.End.After(args.Start) {
		return nil, fmt.Errorf("end %s must be after start %s", args.End.Format(time.RFC3339), args.Start.Format(time.RFC3339))
	}

	body := apiEvent{
		Summary:     args.Summary,
		Description: args.Description,
		Start:       apiTime{DateTime: args.Start.Format(time.RFC3339), TimeZone: c.timeZone},
		End:         apiTime{DateTime: args.End.Format(time.RFC3339), TimeZone: c.timeZone},
	}
	if args.Location != nil {
		body.Location = *args.Location
	}
	for _, email := range args.Attendees {
		body.Attendees = append(body.Attendees, apiAttendee{Email: email})
	}

	var created apiEvent
	if err := c.do(ctx, ec, http.MethodPost, c.eventsURL(""), body, &created); err != nil {
		return nil, err
	}
	return created.toEvent(), nil
}

// CancelEvent deletes an event.
func (c *Calendar) CancelEvent(ctx context.Context, ec *api.ExecutionContext, args CancelEventArgs) (interface{}, error) {
	if args.EventID == "" {
		return nil, fmt.Errorf("event_id must not be empty")
	}

	sendUpdates := "none"
	if args.Notify {
		sendUpdates = "all"
	}
	target := c.eventsURL(args.EventID) + "?sendUpdates=" + sendUpdates

	if err := c.do(ctx, ec, http.MethodDelete, target, nil, nil); err != nil {
		return nil, err
	}
	return map[string]interface{}{"event_id": args.EventID, "cancelled": true}, nil
}

func (c *Calendar) eventsURL(eventID string) string {
	u := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(c.calendarID))
	if eventID != "" {
		u += "/" + url.PathEscape(eventID)
	}
	return u
}

// httpClient builds an OAuth2 client from the session's credentials. With a
// refresh token and client credentials the access token is refreshed when
// missing or expired; otherwise the access token is used as is.
func (c *Calendar) httpClient(ctx context.Context, ec *api.ExecutionContext) (*http.Client, error) {
	accessToken, _ := ec.Credential(CredentialAccessToken)
	refreshToken, _ := ec.Credential(CredentialRefreshToken)
	if accessToken == "" && refreshToken == "" {
		return nil, fmt.Errorf("no %s or %s credential configured", CredentialAccessToken, CredentialRefreshToken)
	}

	if c.transport != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: c.transport})
	}

	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}

	clientID, _ := ec.Credential(CredentialClientID)
	if refreshToken == "" || clientID == "" {
		return oauth2.NewClient(ctx, oauth2.StaticTokenSource(token)), nil
	}

	clientSecret, _ := ec.Credential(CredentialClientSecret)
	tokenURL, _ := ec.Credential(CredentialTokenURL)
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
	}
	return conf.Client(ctx, token), nil
}

func (c *Calendar) do(ctx context.Context, ec *api.ExecutionContext, method, target string, in, out interface{}) error {
	client, err := c.httpClient(ctx, ec)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode calendar response: %w", err)
	}
	return nil
}

// apiError extracts the message of a Google API error response.
func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error.Message != "" {
		return fmt.Errorf("calendar API returned %d: %s", resp.StatusCode, payload.Error.Message)
	}
	return fmt.Errorf("calendar API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}

type apiTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

func (t apiTime) String() string {
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}

type apiAttendee struct {
	Email string `json:"email"`
}

type apiEvent struct {
	ID          string        `json:"id,omitempty"`
	Summary     string        `json:"summary"`
	Description string        `json:"description,omitempty"`
	Location    string        `json:"location,omitempty"`
	Status      string        `json:"status,omitempty"`
	HTMLLink    string        `json:"htmlLink,omitempty"`
	Start       apiTime       `json:"start"`
	End         apiTime       `json:"end"`
	Attendees   []apiAttendee `json:"attendees,omitempty"`
}

func (e apiEvent) toEvent() Event {
	out := Event{
		ID:          e.ID,
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
		Status:      e.Status,
		Start:       e.Start.String(),
		End:         e.End.String(),
		HTMLLink:    e.HTMLLink,
	}
	for _, a := range e.Attendees {
		out.Attendees = append(out.Attendees, a.Email)
	}
	return out
}
