// Package events is the resource service for events: list, get, create,
// update, and delete against the remote backend, with list snapshots flowing
// through the shared query cache.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/sipanit/sipanit-client/internal/api"
	"github.com/sipanit/sipanit-client/internal/logging"
	"github.com/sipanit/sipanit-client/internal/services/cache"
)

const basePath = "/api/events/"

const cacheEntity = "events"

// Event is the typed record shaped for UI consumption.
type Event struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Venue       string `json:"venue,omitempty"`
	Status      string `json:"status,omitempty"`
	Date        string `json:"date,omitempty"`
	PlannerID   string `json:"planner_id,omitempty"`
	GuestCount  int    `json:"guest_count,omitempty"`
}

// ListParams are the optional filters for List.
type ListParams struct {
	Status   string
	Search   string
	Page     int
	PageSize int
}

func (p ListParams) query() url.Values {
	query := url.Values{}
	if p.Status != "" {
		query.Set("status", p.Status)
	}
	if p.Search != "" {
		query.Set("search", p.Search)
	}
	if p.Page > 0 {
		query.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(p.PageSize))
	}
	return query
}

func (p ListParams) cacheKey() string {
	params := map[string]string{
		"status": p.Status,
		"search": p.Search,
	}
	if p.Page > 0 {
		params["page"] = strconv.Itoa(p.Page)
	}
	if p.PageSize > 0 {
		params["page_size"] = strconv.Itoa(p.PageSize)
	}
	return cache.Key(cacheEntity, params)
}

// Service issues event REST calls.
type Service struct {
	client *api.Client
	cache  *cache.Cache
	logger *slog.Logger
}

// NewService wires the event service. A nil cache disables caching.
func NewService(client *api.Client, c *cache.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, cache: c, logger: logger}
}

func (s *Service) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return logging.ServiceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

// listEnvelope tolerates the two list shapes the backend has shipped: a bare
// array and a paginated {results: [...]} wrapper.
func decodeList(raw json.RawMessage) ([]Event, error) {
	var direct []Event
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct, nil
	}
	var wrapped struct {
		Results []Event `json:"results"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Results, nil
}

// List fetches events matching params, serving fresh identical queries from
// the cache.
func (s *Service) List(ctx context.Context, params ListParams) (events []Event, err error) {
	logger := s.loggerWith(ctx, "List", "status", params.Status, "search", params.Search)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "event list failed", "error", err, "error_kind", api.ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "events listed", "count", len(events))
	}()

	key := params.cacheKey()
	if cached, ok := s.cache.Get(key); ok {
		if snapshot, ok := cached.([]Event); ok {
			return cloneEvents(snapshot), nil
		}
	}

	var raw json.RawMessage
	if err = s.client.Get(ctx, "list events", basePath, params.query(), &raw); err != nil {
		return nil, err
	}
	events, err = decodeList(raw)
	if err != nil {
		return nil, &api.Error{Kind: api.KindServer, Op: "list events", Message: "list events failed: unreadable response", Err: err}
	}

	s.cache.Store(key, cloneEvents(events))
	return events, nil
}

// Get fetches one event by ID.
func (s *Service) Get(ctx context.Context, id string) (Event, error) {
	var event Event
	if err := s.client.Get(ctx, "get event", basePath+id+"/", nil, &event); err != nil {
		s.loggerWith(ctx, "Get", "event_id", id).ErrorContext(ctx, "event fetch failed", "error", err, "error_kind", api.ErrorKind(err))
		return Event{}, err
	}
	return event, nil
}

// Input carries caller provided event fields for create and update.
type Input struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Venue       string `json:"venue,omitempty"`
	Status      string `json:"status,omitempty"`
	Date        string `json:"date,omitempty"`
}

// Create persists a new event and invalidates cached lists.
func (s *Service) Create(ctx context.Context, input Input) (Event, error) {
	var event Event
	if err := s.client.Post(ctx, "create event", basePath, input, &event); err != nil {
		s.loggerWith(ctx, "Create", "name", input.Name).ErrorContext(ctx, "event create failed", "error", err, "error_kind", api.ErrorKind(err))
		return Event{}, err
	}
	s.cache.Invalidate(cacheEntity)
	s.loggerWith(ctx, "Create", "event_id", event.ID).InfoContext(ctx, "event created")
	return event, nil
}

// Update applies a partial update and invalidates cached lists.
func (s *Service) Update(ctx context.Context, id string, input Input) (Event, error) {
	var event Event
	if err := s.client.Patch(ctx, "update event", basePath+id+"/", input, &event); err != nil {
		s.loggerWith(ctx, "Update", "event_id", id).ErrorContext(ctx, "event update failed", "error", err, "error_kind", api.ErrorKind(err))
		return Event{}, err
	}
	s.cache.Invalidate(cacheEntity)
	return event, nil
}

// Delete removes an event. The backend cascades dependent records (guests,
// config) best-effort; the client only invalidates its own snapshots.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, "delete event", basePath+id+"/"); err != nil {
		s.loggerWith(ctx, "Delete", "event_id", id).ErrorContext(ctx, "event delete failed", "error", err, "error_kind", api.ErrorKind(err))
		return err
	}
	s.cache.Invalidate(cacheEntity)
	s.loggerWith(ctx, "Delete", "event_id", id).InfoContext(ctx, "event deleted")
	return nil
}

func cloneEvents(events []Event) []Event {
	if len(events) == 0 {
		return nil
	}
	out := make([]Event, len(events))
	copy(out, events)
	return out
}
