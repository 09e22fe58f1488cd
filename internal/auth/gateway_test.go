package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sipanit/sipanit-client/internal/api"
	"github.com/sipanit/sipanit-client/internal/config"
	"github.com/sipanit/sipanit-client/internal/session"
	"github.com/sipanit/sipanit-client/internal/session/state"
)

func testPaths() config.Paths {
	return config.Paths{
		Login:                "/api/token/",
		Refresh:              "/api/token/refresh/",
		Register:             "/api/auth/register/",
		GoogleLogin:          "/api/auth/google/",
		PasswordReset:        "/api/auth/password-reset/",
		PasswordResetConfirm: "/api/auth/password-reset/confirm/",
	}
}

func newGateway(t *testing.T, handler http.Handler) (*Gateway, *session.Store, *httptest.Server) {
	t.Helper()
	backend := httptest.NewServer(handler)
	t.Cleanup(backend.Close)
	sess := session.NewStore(state.NewMemoryStore(), nil)
	client := api.NewClient(backend.URL, backend.Client(), sess, nil)
	return NewGateway(client, sess, testPaths(), nil), sess, backend
}

func decodeBody(t *testing.T, r *http.Request) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Errorf("failed to decode request body: %v", err)
	}
	return body
}

func TestGateway_Login(t *testing.T) {
	t.Parallel()

	t.Run("stores tokens and hints from an access response", func(t *testing.T) {
		t.Parallel()

		gw, sess, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"access":"acc-1","refresh":"ref-1","user":{"id":"u-1","email":"u@example.com","role":"planner"}}`))
		}))

		result, err := gw.Login(context.Background(), "u@example.com", "pw")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if result.AccessToken != "acc-1" || result.RefreshToken != "ref-1" {
			t.Fatalf("unexpected result: %+v", result)
		}
		if sess.AccessToken() != "acc-1" || sess.RefreshToken() != "ref-1" {
			t.Fatalf("expected session tokens stored")
		}
		if hints := sess.Hints(); hints.ID != "u-1" || hints.Role != "planner" {
			t.Fatalf("expected user hints stored, got %+v", hints)
		}
	})

	t.Run("accepts the legacy token field", func(t *testing.T) {
		t.Parallel()

		gw, sess, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"token":"legacy-1"}`))
		}))

		result, err := gw.Login(context.Background(), "user", "pw")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if result.AccessToken != "legacy-1" || sess.AccessToken() != "legacy-1" {
			t.Fatalf("expected legacy token stored, got %+v", result)
		}
	})

	t.Run("retries the local part when an email is rejected", func(t *testing.T) {
		t.Parallel()

		var attempts []string
		gw, sess, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body := decodeBody(t, r)
			attempts = append(attempts, body["username"])
			if body["username"] == "user" {
				w.Write([]byte(`{"access":"acc-2"}`))
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"invalid credentials"}`))
		}))

		result, err := gw.Login(context.Background(), "user@example.com", "pw")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if len(attempts) != 2 || attempts[0] != "user@example.com" || attempts[1] != "user" {
			t.Fatalf("unexpected attempts: %v", attempts)
		}
		if result.AccessToken != "acc-2" || sess.AccessToken() != "acc-2" {
			t.Fatalf("expected token from second attempt")
		}
	})

	t.Run("surfaces the original error when the fallback also fails", func(t *testing.T) {
		t.Parallel()

		gw, _, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"bad credentials"}`))
		}))

		_, err := gw.Login(context.Background(), "user@example.com", "pw")
		if !api.IsKind(err, api.KindAuthentication) {
			t.Fatalf("expected authentication error, got %v", err)
		}
		if err.Error() != "bad credentials" {
			t.Fatalf("expected server detail, got %q", err.Error())
		}
	})

	t.Run("a success response without a token is a failure", func(t *testing.T) {
		t.Parallel()

		gw, sess, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"user":{"id":"u-1"}}`))
		}))

		_, err := gw.Login(context.Background(), "user", "pw")
		if !api.IsKind(err, api.KindAuthentication) {
			t.Fatalf("expected authentication error, got %v", err)
		}
		if sess.Authenticated() {
			t.Fatalf("expected no token stored")
		}
	})

	t.Run("does not retry plain usernames", func(t *testing.T) {
		t.Parallel()

		var attempts int
		gw, _, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			w.WriteHeader(http.StatusUnauthorized)
		}))

		if _, err := gw.Login(context.Background(), "plainuser", "pw"); err == nil {
			t.Fatalf("expected error")
		}
		if attempts != 1 {
			t.Fatalf("expected a single attempt, got %d", attempts)
		}
	})
}

func TestGateway_Register(t *testing.T) {
	t.Parallel()

	t.Run("defaults username to email", func(t *testing.T) {
		t.Parallel()

		var got map[string]any
		gw, _, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("decode failed: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
		}))

		err := gw.Register(context.Background(), RegisterPayload{Email: "new@example.com", Password: "pw", Role: "vendor"})
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if got["username"] != "new@example.com" {
			t.Fatalf("expected username defaulted to email, got %v", got["username"])
		}
	})

	t.Run("maps rejection to a registration error", func(t *testing.T) {
		t.Parallel()

		gw, _, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"email already registered"}`))
		}))

		err := gw.Register(context.Background(), RegisterPayload{Email: "dup@example.com", Password: "pw"})
		if !api.IsKind(err, api.KindRegistration) {
			t.Fatalf("expected registration error, got %v", err)
		}
		if err.Error() != "email already registered" {
			t.Fatalf("expected server message, got %q", err.Error())
		}
	})
}

func TestGateway_Refresh(t *testing.T) {
	t.Parallel()

	t.Run("errors without a stored refresh token", func(t *testing.T) {
		t.Parallel()

		gw, _, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Errorf("refresh endpoint should not be called")
		}))

		if _, err := gw.Refresh(context.Background()); err != ErrNoRefreshToken {
			t.Fatalf("expected ErrNoRefreshToken, got %v", err)
		}
	})

	t.Run("stores the rotated access token", func(t *testing.T) {
		t.Parallel()

		gw, sess, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body := decodeBody(t, r)
			if body["refresh"] != "ref-1" {
				t.Errorf("expected stored refresh token in body, got %q", body["refresh"])
			}
			w.Write([]byte(`{"access":"acc-new"}`))
		}))
		sess.SetAccessToken("acc-old")
		sess.SetRefreshToken("ref-1")

		access, err := gw.Refresh(context.Background())
		if err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
		if access != "acc-new" || sess.AccessToken() != "acc-new" {
			t.Fatalf("expected rotated token, got %q", access)
		}
		if sess.RefreshToken() != "ref-1" {
			t.Fatalf("refresh token should survive a successful rotation")
		}
	})

	t.Run("a rejected refresh clears the whole session", func(t *testing.T) {
		t.Parallel()

		gw, sess, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"token blacklisted"}`))
		}))
		sess.SetAccessToken("acc-old")
		sess.SetRefreshToken("ref-bad")
		sess.SetUserHints(session.UserHints{ID: "u-1"})

		_, err := gw.Refresh(context.Background())
		if !api.IsKind(err, api.KindSessionExpired) {
			t.Fatalf("expected session expired error, got %v", err)
		}
		if sess.Authenticated() {
			t.Fatalf("expected full sign-out after rejected refresh")
		}
		if sess.RefreshToken() != "" {
			t.Fatalf("expected refresh token cleared")
		}
		if hints := sess.Hints(); hints.ID != "" {
			t.Fatalf("expected hints cleared, got %+v", hints)
		}
	})
}

func TestGateway_GoogleLogin(t *testing.T) {
	t.Parallel()

	gw, sess, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		if body["id_token"] != "google-id" || body["role"] != "planner" {
			t.Errorf("unexpected body: %v", body)
		}
		w.Write([]byte(`{"access":"acc-g","refresh":"ref-g","created":true,"user":{"id":"u-9","email":"g@example.com","role":"planner"}}`))
	}))

	result, err := gw.GoogleLogin(context.Background(), "google-id", "planner")
	if err != nil {
		t.Fatalf("GoogleLogin failed: %v", err)
	}
	if !result.NewAccount {
		t.Fatalf("expected new-account flag")
	}
	if sess.AccessToken() != "acc-g" || sess.RefreshToken() != "ref-g" {
		t.Fatalf("expected tokens stored")
	}
}

func TestGateway_PasswordReset(t *testing.T) {
	t.Parallel()

	var calls []string
	gw, _, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := gw.RequestPasswordReset(context.Background(), "u@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if err := gw.ConfirmPasswordReset(context.Background(), "uid-1", "tok-1", "newpw"); err != nil {
		t.Fatalf("ConfirmPasswordReset failed: %v", err)
	}
	if len(calls) != 2 || calls[0] != "/api/auth/password-reset/" || calls[1] != "/api/auth/password-reset/confirm/" {
		t.Fatalf("unexpected calls: %v", calls)
	}
}
