// Package users is the resource service for platform accounts, used by the
// admin dashboard.
package users

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/sipanit/sipanit-client/internal/api"
	"github.com/sipanit/sipanit-client/internal/logging"
	"github.com/sipanit/sipanit-client/internal/services/cache"
)

const basePath = "/api/users/"

const cacheEntity = "users"

// Role values the backend recognises. Role is authoritative for client-side
// routing only; the backend enforces access.
const (
	RoleAdmin   = "admin"
	RolePlanner = "planner"
	RoleVendor  = "vendor"
	RoleGuest   = "guest"
)

// User is the typed account record.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	IsActive  bool   `json:"is_active"`
	Company   string `json:"company,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Input carries writable account fields.
type Input struct {
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role,omitempty"`
	IsActive  *bool  `json:"is_active,omitempty"`
	Company   string `json:"company,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Service issues user REST calls.
type Service struct {
	client *api.Client
	cache  *cache.Cache
	logger *slog.Logger
}

// NewService wires the user service. A nil cache disables caching.
func NewService(client *api.Client, c *cache.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, cache: c, logger: logger}
}

func (s *Service) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return logging.ServiceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// List fetches accounts, optionally filtered by role.
func (s *Service) List(ctx context.Context, role string) (users []User, err error) {
	logger := s.loggerWith(ctx, "List", "role", role)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "user list failed", "error", err, "error_kind", api.ErrorKind(err))
		}
	}()

	key := cache.Key(cacheEntity, map[string]string{"role": role})
	if cached, ok := s.cache.Get(key); ok {
		if snapshot, ok := cached.([]User); ok {
			return cloneUsers(snapshot), nil
		}
	}

	query := url.Values{}
	if role != "" {
		query.Set("role", role)
	}
	if err = s.client.Get(ctx, "list users", basePath, query, &users); err != nil {
		return nil, err
	}
	s.cache.Store(key, cloneUsers(users))
	return users, nil
}

// Get fetches one account by ID.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	var user User
	if err := s.client.Get(ctx, "get user", basePath+id+"/", nil, &user); err != nil {
		s.loggerWith(ctx, "Get", "user_id", id).ErrorContext(ctx, "user fetch failed", "error", err, "error_kind", api.ErrorKind(err))
		return User{}, err
	}
	return user, nil
}

// Create registers an account through the admin surface.
func (s *Service) Create(ctx context.Context, input Input) (User, error) {
	var user User
	if err := s.client.Post(ctx, "create user", basePath, input, &user); err != nil {
		s.loggerWith(ctx, "Create", "email", input.Email).ErrorContext(ctx, "user create failed", "error", err, "error_kind", api.ErrorKind(err))
		return User{}, err
	}
	s.cache.Invalidate(cacheEntity)
	return user, nil
}

// Update applies a partial update to an account.
func (s *Service) Update(ctx context.Context, id string, input Input) (User, error) {
	var user User
	if err := s.client.Patch(ctx, "update user", basePath+id+"/", input, &user); err != nil {
		s.loggerWith(ctx, "Update", "user_id", id).ErrorContext(ctx, "user update failed", "error", err, "error_kind", api.ErrorKind(err))
		return User{}, err
	}
	s.cache.Invalidate(cacheEntity)
	return user, nil
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, "delete user", basePath+id+"/"); err != nil {
		s.loggerWith(ctx, "Delete", "user_id", id).ErrorContext(ctx, "user delete failed", "error", err, "error_kind", api.ErrorKind(err))
		return err
	}
	s.cache.Invalidate(cacheEntity)
	return nil
}

// SetActive flips the is_active flag through a partial update.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (User, error) {
	return s.Update(ctx, id, Input{IsActive: &active})
}

func cloneUsers(users []User) []User {
	if len(users) == 0 {
		return nil
	}
	out := make([]User, len(users))
	copy(out, users)
	return out
}
