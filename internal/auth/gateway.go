// Package auth performs the network exchanges that produce or refresh a
// session: login, registration, token refresh, Google sign-in, and password
// resets against the remote identity endpoints.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sipanit/sipanit-client/internal/api"
	"github.com/sipanit/sipanit-client/internal/config"
	"github.com/sipanit/sipanit-client/internal/logging"
	"github.com/sipanit/sipanit-client/internal/session"
)

// ErrNoRefreshToken is returned by Refresh when no refresh token is stored.
var ErrNoRefreshToken = errors.New("auth: no refresh token")

// Gateway drives the identity endpoints and populates the session store.
type Gateway struct {
	client  *api.Client
	session *session.Store
	paths   config.Paths
	logger  *slog.Logger
}

// NewGateway wires an auth gateway over the shared API client and session store.
func NewGateway(client *api.Client, sess *session.Store, paths config.Paths, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{client: client, session: sess, paths: paths, logger: logger}
}

func (g *Gateway) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return logging.ServiceLogger(ctx, g.logger, "AuthGateway", operation, attrs...)
}

// UserPayload is the user object some identity responses carry inline.
type UserPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// tokenResponse covers both backend conventions: simplejwt-style
// {access, refresh} and legacy {token}.
type tokenResponse struct {
	Access  string       `json:"access"`
	Token   string       `json:"token"`
	Refresh string       `json:"refresh"`
	User    *UserPayload `json:"user"`
	Created bool         `json:"created"`
	IsNew   bool         `json:"is_new_user"`
}

func (r tokenResponse) accessToken() string {
	if r.Access != "" {
		return r.Access
	}
	return r.Token
}

// LoginResult reports the outcome of a successful sign-in.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         *UserPayload
}

// Login exchanges credentials for tokens and stores them. The identifier may
// be a username or an email; when an email is rejected, one retry is made
// with the local part before "@" as username. Beyond that, nothing retries.
func (g *Gateway) Login(ctx context.Context, identifier, password string) (result LoginResult, err error) {
	identifier = strings.TrimSpace(identifier)
	logger := g.loggerWith(ctx, "Login", "identifier", identifier)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "login failed", "error", err, "error_kind", api.ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "login succeeded")
	}()

	result, err = g.postCredentials(ctx, identifier, password)
	if err == nil {
		return result, nil
	}

	if at := strings.Index(identifier, "@"); at > 0 {
		fallback := identifier[:at]
		logger.InfoContext(ctx, "retrying login with username fallback", "username", fallback)
		if retried, retryErr := g.postCredentials(ctx, fallback, password); retryErr == nil {
			return retried, nil
		}
	}
	return LoginResult{}, err
}

func (g *Gateway) postCredentials(ctx context.Context, identifier, password string) (LoginResult, error) {
	body := map[string]string{
		"username": identifier,
		"password": password,
	}
	if strings.Contains(identifier, "@") {
		body["email"] = identifier
	}

	var resp tokenResponse
	if err := g.client.Post(ctx, "login", g.paths.Login, body, &resp); err != nil {
		return LoginResult{}, g.asAuthError(err)
	}
	return g.storeTokens("login", resp)
}

// storeTokens validates and persists a token response. A successful HTTP
// exchange without a token field is still an authentication failure.
func (g *Gateway) storeTokens(op string, resp tokenResponse) (LoginResult, error) {
	access := resp.accessToken()
	if access == "" {
		return LoginResult{}, &api.Error{
			Kind:    api.KindAuthentication,
			Op:      op,
			Message: fmt.Sprintf("%s failed: no token in response", op),
		}
	}

	g.session.SetAccessToken(access)
	if resp.Refresh != "" {
		g.session.SetRefreshToken(resp.Refresh)
	}
	if resp.User != nil {
		g.session.SetUserHints(session.UserHints{ID: resp.User.ID, Email: resp.User.Email, Role: resp.User.Role})
	}
	return LoginResult{AccessToken: access, RefreshToken: resp.Refresh, User: resp.User}, nil
}

func (g *Gateway) asAuthError(err error) error {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Kind != api.KindNetwork {
		return &api.Error{Kind: api.KindAuthentication, Op: apiErr.Op, Status: apiErr.Status, Message: apiErr.Message, Err: apiErr}
	}
	return err
}

// RegisterPayload carries a new-account registration.
type RegisterPayload struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role,omitempty"`
	Company   string `json:"company,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Register creates a new account. A missing username defaults to the email.
func (g *Gateway) Register(ctx context.Context, payload RegisterPayload) (err error) {
	if strings.TrimSpace(payload.Username) == "" {
		payload.Username = payload.Email
	}

	logger := g.loggerWith(ctx, "Register", "email", payload.Email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "registration failed", "error", err, "error_kind", api.ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "registration succeeded")
	}()

	if err := g.client.Post(ctx, "register", g.paths.Register, payload, nil); err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Kind != api.KindNetwork {
			return &api.Error{Kind: api.KindRegistration, Op: apiErr.Op, Status: apiErr.Status, Message: apiErr.Message, Err: apiErr}
		}
		return err
	}
	return nil
}

// Refresh exchanges the stored refresh token for a new access token. A
// rejected refresh clears the whole session before the error propagates; the
// caller is signed out, not left with a half-valid state.
func (g *Gateway) Refresh(ctx context.Context) (access string, err error) {
	logger := g.loggerWith(ctx, "Refresh")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "token refresh failed", "error", err, "error_kind", api.ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "token refreshed")
	}()

	refresh := g.session.RefreshToken()
	if refresh == "" {
		return "", ErrNoRefreshToken
	}

	var resp tokenResponse
	if err := g.client.Post(ctx, "refresh token", g.paths.Refresh, map[string]string{"refresh": refresh}, &resp); err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Kind != api.KindNetwork {
			g.session.SignOut()
			return "", &api.Error{Kind: api.KindSessionExpired, Op: apiErr.Op, Status: apiErr.Status, Message: "session expired, please sign in again", Err: apiErr}
		}
		return "", err
	}

	access = resp.accessToken()
	if access == "" {
		g.session.SignOut()
		return "", &api.Error{Kind: api.KindSessionExpired, Op: "refresh token", Message: "session expired, please sign in again"}
	}
	g.session.SetAccessToken(access)
	return access, nil
}

// GoogleResult reports a Google sign-in outcome, including whether the
// account was created by this exchange.
type GoogleResult struct {
	LoginResult
	NewAccount bool
}

// GoogleLogin exchanges an external identity token, optionally requesting a
// role for newly created accounts.
func (g *Gateway) GoogleLogin(ctx context.Context, idToken, role string) (result GoogleResult, err error) {
	logger := g.loggerWith(ctx, "GoogleLogin", "role", role)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "google login failed", "error", err, "error_kind", api.ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "google login succeeded", "new_account", result.NewAccount)
	}()

	body := map[string]string{"id_token": idToken}
	if role != "" {
		body["role"] = role
	}

	var resp tokenResponse
	if err := g.client.Post(ctx, "google login", g.paths.GoogleLogin, body, &resp); err != nil {
		return GoogleResult{}, g.asAuthError(err)
	}

	stored, err := g.storeTokens("google login", resp)
	if err != nil {
		return GoogleResult{}, err
	}
	return GoogleResult{LoginResult: stored, NewAccount: resp.Created || resp.IsNew}, nil
}

// RequestPasswordReset asks the backend to mail a reset link. Fire and
// forget; no retry.
func (g *Gateway) RequestPasswordReset(ctx context.Context, email string) error {
	logger := g.loggerWith(ctx, "RequestPasswordReset", "email", email)
	if err := g.client.Post(ctx, "request password reset", g.paths.PasswordReset, map[string]string{"email": email}, nil); err != nil {
		logger.ErrorContext(ctx, "password reset request failed", "error", err, "error_kind", api.ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "password reset requested")
	return nil
}

// ConfirmPasswordReset completes a reset with the mailed uid/token pair.
func (g *Gateway) ConfirmPasswordReset(ctx context.Context, uid, token, newPassword string) error {
	logger := g.loggerWith(ctx, "ConfirmPasswordReset")
	body := map[string]string{"uid": uid, "token": token, "new_password": newPassword}
	if err := g.client.Post(ctx, "confirm password reset", g.paths.PasswordResetConfirm, body, nil); err != nil {
		logger.ErrorContext(ctx, "password reset confirmation failed", "error", err, "error_kind", api.ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "password reset confirmed")
	return nil
}
