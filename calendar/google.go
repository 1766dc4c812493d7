package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

const eventsURL = "https://www.googleapis.com/calendar/v3/calendars/primary/events"

// Configuration errors, reported eagerly at construction.
var (
	ErrMissingClientID     = errors.New("calendar: client id is required")
	ErrMissingClientSecret = errors.New("calendar: client secret is required")
)

// ErrNotAuthenticated is returned when no usable OAuth token is available.
// Obtaining one is the job of the surrounding application's OAuth flow.
var ErrNotAuthenticated = errors.New("calendar: not authenticated")

// GoogleConfig configures the Google Calendar event source.
type GoogleConfig struct {
	// ClientID and ClientSecret are the OAuth client credentials. Required.
	ClientID     string
	ClientSecret string

	// TokenFile is where the OAuth token is persisted as JSON.
	// Defaults to "token.json".
	TokenFile string
}

// GoogleSource lists events from the Google Calendar REST API. It owns no
// business logic: authentication state lives in the token file, responses
// are normalized into EventRecords and nothing else.
type GoogleSource struct {
	oauth     *oauth2.Config
	tokenFile string
	client    *http.Client
}

// NewGoogleSource validates cfg and creates the source. No network calls are
// made until Authenticate or Events.
func NewGoogleSource(cfg GoogleConfig) (*GoogleSource, error) {
	if cfg.ClientID == "" {
		return nil, ErrMissingClientID
	}
	if cfg.ClientSecret == "" {
		return nil, ErrMissingClientSecret
	}
	if cfg.TokenFile == "" {
		cfg.TokenFile = "token.json"
	}

	return &GoogleSource{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
			RedirectURL: "http://localhost",
			Scopes:      []string{"https://www.googleapis.com/auth/calendar.readonly"},
		},
		tokenFile: cfg.TokenFile,
	}, nil
}

// Authenticate loads the persisted token and prepares an HTTP client that
// refreshes it as needed. Refreshed tokens are written back to the token
// file so the next process start skips the refresh. Safe to call repeatedly.
func (s *GoogleSource) Authenticate(ctx context.Context) error {
	if s.client != nil {
		return nil
	}

	token, err := s.loadToken()
	if err != nil {
		return err
	}

	s.client = oauth2.NewClient(ctx, &savingTokenSource{
		src:    s.oauth.TokenSource(ctx, token),
		source: s,
		last:   token.AccessToken,
	})
	return nil
}

// SaveToken persists an OAuth token obtained by an external consent flow.
func (s *GoogleSource) SaveToken(token *oauth2.Token) error {
	if err := s.writeToken(token); err != nil {
		return err
	}
	// Force the next Authenticate to pick up the new token.
	s.client = nil
	return nil
}

func (s *GoogleSource) writeToken(token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if err := os.WriteFile(s.tokenFile, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// savingTokenSource writes tokens back to the token file whenever the
// underlying source hands out a new one. A failed write is logged, not
// fatal: the in-memory token still works for this process.
type savingTokenSource struct {
	src    oauth2.TokenSource
	source *GoogleSource

	mu   sync.Mutex
	last string
}

func (ts *savingTokenSource) Token() (*oauth2.Token, error) {
	token, err := ts.src.Token()
	if err != nil {
		return nil, err
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	if token.AccessToken != ts.last {
		if err := ts.source.writeToken(token); err != nil {
			log.Printf("[CALENDAR] Could not persist refreshed token: %v", err)
		} else {
			ts.last = token.AccessToken
		}
	}
	return token, nil
}

func (s *GoogleSource) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.tokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	if token.RefreshToken == "" && !token.Valid() {
		return nil, ErrNotAuthenticated
	}
	return &token, nil
}

// Events lists events in [start, end), ordered by start time.
func (s *GoogleSource) Events(ctx context.Context, start, end time.Time, max int) ([]EventRecord, error) {
	if err := s.Authenticate(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"timeMin":      {start.UTC().Format(time.RFC3339)},
		"timeMax":      {end.UTC().Format(time.RFC3339)},
		"maxResults":   {strconv.Itoa(max)},
		"singleEvents": {"true"},
		"orderBy":      {"startTime"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, eventsURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read calendar response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar API returned %d: %s", resp.StatusCode, gjson.GetBytes(body, "error.message").String())
	}

	return parseEvents(body), nil
}

// parseEvents normalizes the raw API payload. Events with unparseable times
// are skipped rather than failing the whole listing.
func parseEvents(body []byte) []EventRecord {
	items := gjson.GetBytes(body, "items")
	if !items.Exists() {
		return nil
	}

	var events []EventRecord
	items.ForEach(func(_, item gjson.Result) bool {
		start, allDay, okStart := parseEventTime(item.Get("start"))
		end, _, okEnd := parseEventTime(item.Get("end"))
		if !okStart || !okEnd {
			return true
		}

		events = append(events, EventRecord{
			Summary:     item.Get("summary").String(),
			Start:       start,
			End:         end,
			AllDay:      allDay,
			Location:    item.Get("location").String(),
			Description: item.Get("description").String(),
		})
		return true
	})
	return events
}

// parseEventTime handles both precise instants (dateTime) and date-only
// markers (date) in event start/end objects.
func parseEventTime(field gjson.Result) (t time.Time, allDay, ok bool) {
	if dt := field.Get("dateTime"); dt.Exists() {
		parsed, err := time.Parse(time.RFC3339, dt.String())
		if err != nil {
			return time.Time{}, false, false
		}
		return parsed, false, true
	}
	if d := field.Get("date"); d.Exists() {
		parsed, err := time.ParseInLocation("2006-01-02", d.String(), time.UTC)
		if err != nil {
			return time.Time{}, false, false
		}
		return parsed, true, true
	}
	return time.Time{}, false, false
}
