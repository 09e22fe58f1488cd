// Package configs is the resource service for versioned event configurations:
// branding, QR toggles, the collaborator list, and the version history with
// notes. One config exists per event.
package configs

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/sipanit/sipanit-client/internal/api"
	"github.com/sipanit/sipanit-client/internal/logging"
	"github.com/sipanit/sipanit-client/internal/services/cache"
)

const basePath = "/api/event-configs/"

const cacheEntity = "event-configs"

// Version statuses.
const (
	StatusCurrent   = "current"
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Branding is the visual identity block of a config.
type Branding struct {
	Logo           string `json:"logo,omitempty"`
	PrimaryColor   string `json:"primary_color"`
	SecondaryColor string `json:"secondary_color"`
	Theme          string `json:"theme"`
}

// QRCodes toggles the QR features for an event.
type QRCodes struct {
	GuestCheckin bool   `json:"guest_checkin"`
	SeatLookup   bool   `json:"seat_lookup"`
	GeneratedAt  string `json:"generated_at,omitempty"`
}

// Member is one collaborator on an event config.
type Member struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Status      string   `json:"status,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Note is a remark attached to one version.
type Note struct {
	ID        string `json:"id"`
	Note      string `json:"note"`
	CreatedAt string `json:"created_at"`
	CreatedBy string `json:"created_by"`
	Version   int    `json:"version"`
}

// Version is one entry in a config's version history.
type Version struct {
	ID          string `json:"id"`
	Version     int    `json:"version"`
	Status      string `json:"status"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
	CreatedBy   string `json:"created_by"`
	Notes       []Note `json:"notes,omitempty"`
}

// EventConfig is the full config record for one event.
type EventConfig struct {
	ID            string   `json:"id,omitempty"`
	EventID       string   `json:"event_id"`
	Branding      Branding `json:"branding"`
	QRCodes       QRCodes  `json:"qr_codes"`
	Collaboration struct {
		Members []Member `json:"members"`
	} `json:"collaboration"`
	VersionHistory struct {
		Versions []Version `json:"versions"`
	} `json:"version_history"`
}

// Service issues event-config REST calls.
type Service struct {
	client      *api.Client
	cache       *cache.Cache
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewService wires the config service. Nil idGenerator and now fall back to
// uuid and wall-clock time.
func NewService(client *api.Client, c *cache.Cache, idGenerator func() string, now func() time.Time, logger *slog.Logger) *Service {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, cache: c, idGenerator: idGenerator, now: now, logger: logger}
}

func (s *Service) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return logging.ServiceLogger(ctx, s.logger, "EventConfigService", operation, attrs...)
}

// GetByEvent fetches the config for an event, or a NotFound error when none
// exists yet.
func (s *Service) GetByEvent(ctx context.Context, eventID string) (EventConfig, error) {
	cfg, found, err := s.lookup(ctx, eventID)
	if err != nil {
		return EventConfig{}, err
	}
	if !found {
		return EventConfig{}, &api.Error{
			Kind:    api.KindNotFound,
			Op:      "get event config",
			Message: "no configuration exists for this event",
		}
	}
	return cfg, nil
}

func (s *Service) lookup(ctx context.Context, eventID string) (EventConfig, bool, error) {
	query := url.Values{}
	query.Set("event", eventID)

	var existing []EventConfig
	if err := s.client.Get(ctx, "get event config", basePath, query, &existing); err != nil {
		return EventConfig{}, false, err
	}
	if len(existing) == 0 {
		return EventConfig{}, false, nil
	}
	// The backend should hold at most one config per event; if duplicates
	// slipped in through a concurrent save, the first listed wins.
	return existing[0], true, nil
}

// Save persists the config for cfg.EventID, creating on first save and
// updating in place after. The create-or-update decision is a read before a
// write with no transactional guarantee; the remote backend is the authority
// on uniqueness, and concurrent saves resolve as last write wins.
func (s *Service) Save(ctx context.Context, cfg EventConfig) (saved EventConfig, err error) {
	logger := s.loggerWith(ctx, "Save", "event_id", cfg.EventID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "config save failed", "error", err, "error_kind", api.ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "config saved", "config_id", saved.ID)
	}()

	existing, found, err := s.lookup(ctx, cfg.EventID)
	if err != nil {
		return EventConfig{}, err
	}

	if found {
		cfg.ID = existing.ID
		if err = s.client.Put(ctx, "update event config", basePath+existing.ID+"/", cfg, &saved); err != nil {
			return EventConfig{}, err
		}
	} else {
		if err = s.client.Post(ctx, "create event config", basePath, cfg, &saved); err != nil {
			return EventConfig{}, err
		}
	}
	s.cache.Invalidate(cacheEntity)
	return saved, nil
}

// Delete removes the config for an event. Deleting a never-configured event
// is not an error; the cascade from event deletion is best-effort.
func (s *Service) Delete(ctx context.Context, eventID string) error {
	existing, found, err := s.lookup(ctx, eventID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if err := s.client.Delete(ctx, "delete event config", basePath+existing.ID+"/"); err != nil {
		s.loggerWith(ctx, "Delete", "event_id", eventID).ErrorContext(ctx, "config delete failed", "error", err, "error_kind", api.ErrorKind(err))
		return err
	}
	s.cache.Invalidate(cacheEntity)
	return nil
}

// AddVersion appends a draft version to the event's history and saves. The
// version number continues the highest existing number.
func (s *Service) AddVersion(ctx context.Context, eventID, description, createdBy string) (EventConfig, error) {
	cfg, err := s.GetByEvent(ctx, eventID)
	if err != nil {
		return EventConfig{}, err
	}

	next := 0
	for _, v := range cfg.VersionHistory.Versions {
		if v.Version > next {
			next = v.Version
		}
	}

	cfg.VersionHistory.Versions = append(cfg.VersionHistory.Versions, Version{
		ID:          s.idGenerator(),
		Version:     next + 1,
		Status:      StatusDraft,
		Description: description,
		Timestamp:   s.now().UTC().Format(time.RFC3339),
		CreatedBy:   createdBy,
	})
	return s.Save(ctx, cfg)
}

// PublishVersion makes the given version current, archiving whichever version
// was current before.
func (s *Service) PublishVersion(ctx context.Context, eventID, versionID string) (EventConfig, error) {
	cfg, err := s.GetByEvent(ctx, eventID)
	if err != nil {
		return EventConfig{}, err
	}

	target := -1
	for i, v := range cfg.VersionHistory.Versions {
		if v.ID == versionID {
			target = i
			break
		}
	}
	if target == -1 {
		return EventConfig{}, &api.Error{
			Kind:    api.KindNotFound,
			Op:      "publish config version",
			Message: "version not found in history",
		}
	}

	for i := range cfg.VersionHistory.Versions {
		if cfg.VersionHistory.Versions[i].Status == StatusCurrent {
			cfg.VersionHistory.Versions[i].Status = StatusArchived
		}
	}
	cfg.VersionHistory.Versions[target].Status = StatusCurrent
	return s.Save(ctx, cfg)
}

// AddVersionNote attaches a note to a version in the history and saves.
func (s *Service) AddVersionNote(ctx context.Context, eventID, versionID, note, createdBy string) (EventConfig, error) {
	cfg, err := s.GetByEvent(ctx, eventID)
	if err != nil {
		return EventConfig{}, err
	}

	for i := range cfg.VersionHistory.Versions {
		v := &cfg.VersionHistory.Versions[i]
		if v.ID != versionID {
			continue
		}
		v.Notes = append(v.Notes, Note{
			ID:        s.idGenerator(),
			Note:      note,
			CreatedAt: s.now().UTC().Format(time.RFC3339),
			CreatedBy: createdBy,
			Version:   v.Version,
		})
		return s.Save(ctx, cfg)
	}

	return EventConfig{}, &api.Error{
		Kind:    api.KindNotFound,
		Op:      "add config version note",
		Message: "version not found in history",
	}
}

// UpdateCollaborators replaces the collaborator list and saves.
func (s *Service) UpdateCollaborators(ctx context.Context, eventID string, members []Member) (EventConfig, error) {
	cfg, err := s.GetByEvent(ctx, eventID)
	if err != nil {
		return EventConfig{}, err
	}
	cfg.Collaboration.Members = members
	return s.Save(ctx, cfg)
}
