// Package calendar creates Google Calendar events on a configured
// calendar, authenticated as a service account.
package calendar

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"sidequest/faults"
)

// DefaultZone anchors event times that arrive without a zone offset.
const DefaultZone = "Asia/Kolkata"

// defaultDuration is applied when a request has no end time.
const defaultDuration = 30 * time.Minute

// EventRequest is the create_event payload. StartTime is required and
// accepts RFC 3339, a zoneless timestamp, or a bare date; zoneless
// values are anchored in the scheduler's zone.
type EventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

// Event reports a created calendar event.
type Event struct {
	ID       string `json:"event_id"`
	Title    string `json:"title"`
	Start    string `json:"start"`
	End      string `json:"end"`
	HTMLLink string `json:"html_link"`
}

// Config configures a Scheduler.
type Config struct {
	// CalendarID is the target calendar. Required.
	CalendarID string

	// Timezone anchors zoneless request times. Defaults to DefaultZone.
	Timezone string
}

// Scheduler inserts events into a single Google calendar.
type Scheduler struct {
	svc        *gcal.Service
	calendarID string
	zone       *time.Location
	logger     *zap.Logger
}

// NewService builds a Calendar API client from a service account key
// file, scoped to full calendar access.
func NewService(ctx context.Context, credentialsPath string) (*gcal.Service, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read service account key: %w", err)
	}
	jwt, err := google.JWTConfigFromJSON(data, gcal.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	svc, err := gcal.NewService(ctx, option.WithHTTPClient(jwt.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("build calendar service: %w", err)
	}
	return svc, nil
}

// NewScheduler creates a Scheduler for the configured calendar.
func NewScheduler(svc *gcal.Service, cfg Config, logger *zap.Logger) (*Scheduler, error) {
	if svc == nil {
		return nil, fmt.Errorf("calendar service is required")
	}
	if cfg.CalendarID == "" {
		return nil, fmt.Errorf("calendar ID is required")
	}
	zoneName := cfg.Timezone
	if zoneName == "" {
		zoneName = DefaultZone
	}
	zone, err := time.LoadLocation(zoneName)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", zoneName, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		svc:        svc,
		calendarID: cfg.CalendarID,
		zone:       zone,
		logger:     logger.Named("calendar"),
	}, nil
}

// CreateEvent inserts a calendar event. A missing end time means the
// event runs for defaultDuration after its start.
func (s *Scheduler) CreateEvent(ctx context.Context, req EventRequest) (*Event, error) {
	if req.StartTime == "" {
		return nil, faults.New(faults.CodeInvalidInput, "start_time is required")
	}
	start, err := parseEventTime(req.StartTime, s.zone)
	if err != nil {
		return nil, faults.New(faults.CodeInvalidInput, fmt.Sprintf("invalid start_time %q", req.StartTime), faults.WithCause(err))
	}

	var end time.Time
	if req.EndTime != "" {
		end, err = parseEventTime(req.EndTime, s.zone)
		if err != nil {
			return nil, faults.New(faults.CodeInvalidInput, fmt.Sprintf("invalid end_time %q", req.EndTime), faults.WithCause(err))
		}
	} else {
		end = start.Add(defaultDuration)
	}

	title := req.Title
	if title == "" {
		title = "Untitled Event"
	}

	body := &gcal.Event{
		Summary:     title,
		Description: req.Description,
		Start:       &gcal.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: s.zone.String()},
		End:         &gcal.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: s.zone.String()},
	}

	created, err := s.svc.Events.Insert(s.calendarID, body).Context(ctx).Do()
	if err != nil {
		return nil, faults.WrapWithCode(err, faults.CodeUnavailable, "insert calendar event")
	}

	s.logger.Info("event created",
		zap.String("event_id", created.Id),
		zap.String("title", created.Summary))

	out := &Event{ID: created.Id, Title: created.Summary, HTMLLink: created.HtmlLink}
	if created.Start != nil {
		out.Start = created.Start.DateTime
	}
	if created.End != nil {
		out.End = created.End.DateTime
	}
	return out, nil
}

var eventTimeFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseEventTime(value string, zone *time.Location) (time.Time, error) {
	var err error
	for _, format := range eventTimeFormats {
		var t time.Time
		if t, err = time.ParseInLocation(format, value, zone); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
