// Package guests is the resource service for event guests, including the CSV
// bulk import and on-demand QR code retrieval.
package guests

import (
	"context"
	"io"
	"log/slog"
	"net/url"

	"github.com/sipanit/sipanit-client/internal/api"
	"github.com/sipanit/sipanit-client/internal/logging"
	"github.com/sipanit/sipanit-client/internal/services/cache"
)

const basePath = "/api/guests/"

const cacheEntity = "guests"

// Guest is the typed guest record. Seat and Tags are assigned by the layout
// process server-side and are read-only here; Input deliberately omits them.
type Guest struct {
	ID                 string   `json:"id,omitempty"`
	EventID            string   `json:"event_id"`
	Name               string   `json:"name"`
	Email              string   `json:"email"`
	Phone              string   `json:"phone,omitempty"`
	DietaryRestriction string   `json:"dietary_restriction,omitempty"`
	AccessibilityNeeds string   `json:"accessibility_needs,omitempty"`
	Seat               string   `json:"seat,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	CheckedIn          bool     `json:"checked_in,omitempty"`
}

// Input carries writable guest fields for create and update.
type Input struct {
	EventID            string `json:"event_id,omitempty"`
	Name               string `json:"name,omitempty"`
	Email              string `json:"email,omitempty"`
	Phone              string `json:"phone,omitempty"`
	DietaryRestriction string `json:"dietary_restriction,omitempty"`
	AccessibilityNeeds string `json:"accessibility_needs,omitempty"`
	CheckedIn          *bool  `json:"checked_in,omitempty"`
}

// ImportResult reports the per-row outcome of a CSV import. The server
// decides row by row what to accept.
type ImportResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// Service issues guest REST calls.
type Service struct {
	client *api.Client
	cache  *cache.Cache
	logger *slog.Logger
}

// NewService wires the guest service. A nil cache disables caching.
func NewService(client *api.Client, c *cache.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, cache: c, logger: logger}
}

func (s *Service) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return logging.ServiceLogger(ctx, s.logger, "GuestService", operation, attrs...)
}

// List fetches the guests of an event.
func (s *Service) List(ctx context.Context, eventID string) (guests []Guest, err error) {
	logger := s.loggerWith(ctx, "List", "event_id", eventID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "guest list failed", "error", err, "error_kind", api.ErrorKind(err))
		}
	}()

	key := cache.Key(cacheEntity, map[string]string{"event": eventID})
	if cached, ok := s.cache.Get(key); ok {
		if snapshot, ok := cached.([]Guest); ok {
			return cloneGuests(snapshot), nil
		}
	}

	query := url.Values{}
	query.Set("event", eventID)
	if err = s.client.Get(ctx, "list guests", basePath, query, &guests); err != nil {
		return nil, err
	}
	s.cache.Store(key, cloneGuests(guests))
	return guests, nil
}

// Get fetches one guest by ID.
func (s *Service) Get(ctx context.Context, id string) (Guest, error) {
	var guest Guest
	if err := s.client.Get(ctx, "get guest", basePath+id+"/", nil, &guest); err != nil {
		s.loggerWith(ctx, "Get", "guest_id", id).ErrorContext(ctx, "guest fetch failed", "error", err, "error_kind", api.ErrorKind(err))
		return Guest{}, err
	}
	return guest, nil
}

// Create adds a guest to an event.
func (s *Service) Create(ctx context.Context, input Input) (Guest, error) {
	var guest Guest
	if err := s.client.Post(ctx, "create guest", basePath, input, &guest); err != nil {
		s.loggerWith(ctx, "Create", "event_id", input.EventID).ErrorContext(ctx, "guest create failed", "error", err, "error_kind", api.ErrorKind(err))
		return Guest{}, err
	}
	s.cache.Invalidate(cacheEntity)
	return guest, nil
}

// Update applies a partial update to a guest.
func (s *Service) Update(ctx context.Context, id string, input Input) (Guest, error) {
	var guest Guest
	if err := s.client.Patch(ctx, "update guest", basePath+id+"/", input, &guest); err != nil {
		s.loggerWith(ctx, "Update", "guest_id", id).ErrorContext(ctx, "guest update failed", "error", err, "error_kind", api.ErrorKind(err))
		return Guest{}, err
	}
	s.cache.Invalidate(cacheEntity)
	return guest, nil
}

// Delete removes a guest.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, "delete guest", basePath+id+"/"); err != nil {
		s.loggerWith(ctx, "Delete", "guest_id", id).ErrorContext(ctx, "guest delete failed", "error", err, "error_kind", api.ErrorKind(err))
		return err
	}
	s.cache.Invalidate(cacheEntity)
	return nil
}

// ImportCSV uploads a CSV of guests for an event. The server validates each
// row and reports how many it created versus skipped.
func (s *Service) ImportCSV(ctx context.Context, eventID, filename string, csv io.Reader) (result ImportResult, err error) {
	logger := s.loggerWith(ctx, "ImportCSV", "event_id", eventID, "filename", filename)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "guest import failed", "error", err, "error_kind", api.ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "guests imported", "created", result.Created, "skipped", result.Skipped)
	}()

	fields := map[string]string{"event": eventID}
	if err = s.client.PostMultipart(ctx, "import guests", basePath+"import/", fields, "file", filename, csv, &result); err != nil {
		return ImportResult{}, err
	}
	s.cache.Invalidate(cacheEntity)
	return result, nil
}

// QRCode fetches the guest's QR code image as an opaque blob.
func (s *Service) QRCode(ctx context.Context, id string) ([]byte, error) {
	blob, err := s.client.GetBlob(ctx, "fetch guest qr", basePath+id+"/qr/")
	if err != nil {
		s.loggerWith(ctx, "QRCode", "guest_id", id).ErrorContext(ctx, "guest qr fetch failed", "error", err, "error_kind", api.ErrorKind(err))
		return nil, err
	}
	return blob, nil
}

func cloneGuests(guests []Guest) []Guest {
	if len(guests) == 0 {
		return nil
	}
	out := make([]Guest, len(guests))
	copy(out, guests)
	return out
}
