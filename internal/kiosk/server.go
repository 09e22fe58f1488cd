// Package kiosk serves the venue-door guest kiosk: event lookup, guest
// check-in, seat lookup, and QR image retrieval, backed by the resource
// services with the kiosk's own session.
package kiosk

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sipanit/sipanit-client/internal/api"
	"github.com/sipanit/sipanit-client/internal/services/events"
	"github.com/sipanit/sipanit-client/internal/services/guests"
)

// EventGetter is the slice of the event service the kiosk needs.
type EventGetter interface {
	Get(ctx context.Context, id string) (events.Event, error)
}

// GuestDirectory is the slice of the guest service the kiosk needs.
type GuestDirectory interface {
	List(ctx context.Context, eventID string) ([]guests.Guest, error)
	Update(ctx context.Context, id string, input guests.Input) (guests.Guest, error)
	QRCode(ctx context.Context, id string) ([]byte, error)
}

// Server is the kiosk HTTP server.
type Server struct {
	engine *gin.Engine
	events EventGetter
	guests GuestDirectory
	logger *slog.Logger
}

// NewServer wires routes over the given services.
func NewServer(eventSvc EventGetter, guestSvc GuestDirectory, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{engine: engine, events: eventSvc, guests: guestSvc, logger: logger}

	kiosk := engine.Group("/kiosk")
	{
		kiosk.GET("/guests/:id/qr.png", s.guestQR)
		kiosk.GET("/:event", s.eventSummary)
		kiosk.POST("/:event/checkin", s.checkIn)
		kiosk.GET("/:event/seat", s.seatLookup)
	}

	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests
// before returning.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("failed to shutdown kiosk", "error", err)
		}
	}()

	s.logger.Info("kiosk listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// writeServiceError maps transport failures onto kiosk HTTP statuses.
func (s *Server) writeServiceError(c *gin.Context, err error) {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		s.logger.Error("kiosk request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	status := http.StatusBadGateway
	switch apiErr.Kind {
	case api.KindNotFound:
		status = http.StatusNotFound
	case api.KindValidation:
		status = http.StatusUnprocessableEntity
	case api.KindAuthentication, api.KindSessionExpired:
		status = http.StatusUnauthorized
	}
	c.JSON(status, gin.H{"error": apiErr.Message})
}

func (s *Server) eventSummary(c *gin.Context) {
	event, err := s.events.Get(c.Request.Context(), c.Param("event"))
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":     event.ID,
		"name":   event.Name,
		"venue":  event.Venue,
		"status": event.Status,
		"date":   event.Date,
	})
}

type checkInRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *Server) checkIn(c *gin.Context) {
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Email) == "" && strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email or name is required"})
		return
	}

	guest, ok, err := s.findGuest(c.Request.Context(), c.Param("event"), req.Email, req.Name)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "guest not on the list"})
		return
	}
	if guest.CheckedIn {
		c.JSON(http.StatusOK, gin.H{"guest": guest.Name, "seat": guest.Seat, "already_checked_in": true})
		return
	}

	checked := true
	updated, err := s.guests.Update(c.Request.Context(), guest.ID, guests.Input{CheckedIn: &checked})
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	s.logger.Info("guest checked in", "guest_id", updated.ID, "event_id", c.Param("event"))
	c.JSON(http.StatusOK, gin.H{"guest": updated.Name, "seat": updated.Seat, "already_checked_in": false})
}

func (s *Server) seatLookup(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}

	guest, ok, err := s.findGuest(c.Request.Context(), c.Param("event"), query, query)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "guest not on the list"})
		return
	}
	if guest.Seat == "" {
		c.JSON(http.StatusOK, gin.H{"guest": guest.Name, "seat": nil, "message": "seat not assigned yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"guest": guest.Name, "seat": guest.Seat})
}

func (s *Server) guestQR(c *gin.Context) {
	blob, err := s.guests.QRCode(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", blob)
}

// findGuest matches a guest of the event by email first, then by name, both
// case-insensitive.
func (s *Server) findGuest(ctx context.Context, eventID, email, name string) (guests.Guest, bool, error) {
	list, err := s.guests.List(ctx, eventID)
	if err != nil {
		return guests.Guest{}, false, err
	}

	email = strings.TrimSpace(email)
	if email != "" {
		for _, g := range list {
			if strings.EqualFold(g.Email, email) {
				return g, true, nil
			}
		}
	}
	name = strings.TrimSpace(name)
	if name != "" {
		for _, g := range list {
			if strings.EqualFold(g.Name, name) {
				return g, true, nil
			}
		}
	}
	return guests.Guest{}, false, nil
}
