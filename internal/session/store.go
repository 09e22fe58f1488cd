// Package session is the single source of truth for "is this client
// authenticated, and as whom". Tokens and a few denormalized user hints live
// in a durable state store; every storage failure degrades to
// "not authenticated" instead of surfacing an error.
package session

import (
	"log/slog"

	"github.com/sipanit/sipanit-client/internal/session/state"
)

// Store reads and writes the authenticated session.
type Store struct {
	state  state.Store
	logger *slog.Logger
}

// UserHints are the denormalized convenience copies of the signed-in user
// persisted alongside the tokens for cheap display and routing.
type UserHints struct {
	ID    string
	Email string
	Role  string
}

// NewStore wires a session store over the given durable state.
func NewStore(st state.Store, logger *slog.Logger) *Store {
	if st == nil {
		st = state.NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{state: st, logger: logger}
}

// read returns the first present value among the canonical key and its legacy
// aliases. Storage errors degrade to absent.
func (s *Store) read(canonical string, legacy []string) string {
	if value, ok, err := s.state.Get(canonical); err == nil && ok {
		return value
	} else if err != nil {
		s.logger.Warn("state read failed", "key", canonical, "error", err)
	}
	for _, key := range legacy {
		if value, ok, err := s.state.Get(key); err == nil && ok {
			return value
		}
	}
	return ""
}

// write persists under the canonical key; empty values clear instead.
func (s *Store) write(canonical string, legacy []string, value string) {
	if value == "" {
		s.remove(canonical, legacy)
		return
	}
	if err := s.state.Set(canonical, value); err != nil {
		s.logger.Warn("state write failed", "key", canonical, "error", err)
	}
}

func (s *Store) remove(canonical string, legacy []string) {
	if err := s.state.Delete(canonical); err != nil {
		s.logger.Warn("state delete failed", "key", canonical, "error", err)
	}
	for _, key := range legacy {
		if err := s.state.Delete(key); err != nil {
			s.logger.Warn("state delete failed", "key", key, "error", err)
		}
	}
}

// SetAccessToken persists the access token; an empty token clears it. The
// token structure is not validated here.
func (s *Store) SetAccessToken(token string) {
	s.write(keyAccessToken, legacyAccessTokenKeys, token)
}

// SetRefreshToken persists the refresh token; an empty token clears it.
func (s *Store) SetRefreshToken(token string) {
	s.write(keyRefreshToken, legacyRefreshTokenKeys, token)
}

// AccessToken returns the stored access token, or "" when absent or when
// storage is unreadable.
func (s *Store) AccessToken() string {
	return s.read(keyAccessToken, legacyAccessTokenKeys)
}

// RefreshToken returns the stored refresh token, or "" when absent.
func (s *Store) RefreshToken() string {
	return s.read(keyRefreshToken, legacyRefreshTokenKeys)
}

// Authenticated reports whether an access token is present. It is a presence
// check only; expiry and signature are the backend's concern.
func (s *Store) Authenticated() bool {
	return s.AccessToken() != ""
}

// Claims decodes the current access token's payload. It returns false when no
// token is stored or the token is malformed.
func (s *Store) Claims() (Claims, bool) {
	return decodeClaims(s.AccessToken())
}

// IsAdmin reports whether the current claims identify an administrator.
func (s *Store) IsAdmin() bool {
	claims, ok := s.Claims()
	if !ok {
		return false
	}
	return claimsIndicateAdmin(claims)
}

// SetUserHints persists the denormalized user copies.
func (s *Store) SetUserHints(hints UserHints) {
	s.write(keyUserID, legacyUserIDKeys, hints.ID)
	s.write(keyUserEmail, legacyUserEmailKeys, hints.Email)
	s.write(keyUserRole, legacyUserRoleKeys, hints.Role)
}

// Hints returns the stored user hints; absent fields are empty strings.
func (s *Store) Hints() UserHints {
	return UserHints{
		ID:    s.read(keyUserID, legacyUserIDKeys),
		Email: s.read(keyUserEmail, legacyUserEmailKeys),
		Role:  s.read(keyUserRole, legacyUserRoleKeys),
	}
}

// SignOut clears both tokens and the user hints. It is idempotent and never
// surfaces storage errors.
func (s *Store) SignOut() {
	s.remove(keyAccessToken, legacyAccessTokenKeys)
	s.remove(keyRefreshToken, legacyRefreshTokenKeys)
	s.remove(keyUserID, legacyUserIDKeys)
	s.remove(keyUserEmail, legacyUserEmailKeys)
	s.remove(keyUserRole, legacyUserRoleKeys)
}
