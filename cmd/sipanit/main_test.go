package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sipanit/sipanit-client/internal/config"
	"github.com/sipanit/sipanit-client/internal/session/state"
)

func testApp(t *testing.T, backend http.Handler) *app {
	t.Helper()

	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	cfg := config.Config{
		APIBaseURL: server.URL,
		Auth: config.Paths{
			Login:   "/api/token/",
			Refresh: "/api/token/refresh/",
		},
		CacheTTL:        30 * time.Second,
		CacheMaxEntries: 16,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return buildApp(cfg, state.NewMemoryStore(), logger)
}

func runCommand(t *testing.T, a *app, in string, args ...string) string {
	t.Helper()
	var out strings.Builder
	if err := a.run(context.Background(), args, strings.NewReader(in), &out); err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out.String()
}

func TestRun_UnknownCommand(t *testing.T) {
	t.Parallel()

	a := testApp(t, http.NotFoundHandler())
	var out strings.Builder
	err := a.run(context.Background(), []string{"bogus"}, strings.NewReader(""), &out)
	if err != errUsage {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestRun_NoArguments(t *testing.T) {
	t.Parallel()

	a := testApp(t, http.NotFoundHandler())
	var out strings.Builder
	err := a.run(context.Background(), nil, strings.NewReader(""), &out)
	if err != errUsage {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestRun_WhoamiSignedOut(t *testing.T) {
	t.Parallel()

	a := testApp(t, http.NotFoundHandler())
	out := runCommand(t, a, "", "whoami")
	if !strings.Contains(out, "not signed in") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRun_LoginThenWhoamiThenSignout(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access":  "access-token",
			"refresh": "refresh-token",
			"user":    map[string]string{"id": "u-1", "email": "ana@example.com", "role": "planner"},
		})
	})

	a := testApp(t, mux)

	out := runCommand(t, a, "secret\n", "login", "ana@example.com")
	if !strings.Contains(out, "signed in, dashboard: planner") {
		t.Fatalf("unexpected login output: %q", out)
	}

	out = runCommand(t, a, "", "whoami")
	if !strings.Contains(out, "ana@example.com") || !strings.Contains(out, "role: planner") {
		t.Fatalf("unexpected whoami output: %q", out)
	}

	runCommand(t, a, "", "signout")
	out = runCommand(t, a, "", "whoami")
	if !strings.Contains(out, "not signed in") {
		t.Fatalf("expected signed-out state after signout, got %q", out)
	}
}

func TestRun_EventsList(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/events/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "ev-1", "name": "Summer Gala", "venue": "Grand Hall", "status": "published"},
			{"id": "ev-2", "name": "Autumn Expo", "venue": "Pier 9", "status": "draft"},
		})
	})

	a := testApp(t, mux)
	out := runCommand(t, a, "", "events", "list")
	if !strings.Contains(out, "Summer Gala") || !strings.Contains(out, "Autumn Expo") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRun_EventsSearch(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/events/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "ev-1", "name": "Summer Gala", "venue": "Grand Hall", "status": "published"},
			{"id": "ev-2", "name": "Autumn Expo", "venue": "Pier 9", "status": "draft"},
		})
	})

	a := testApp(t, mux)
	out := runCommand(t, a, "", "events", "search", "gala")
	if !strings.Contains(out, "Summer Gala") || strings.Contains(out, "Autumn Expo") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRun_ConfigShow(t *testing.T) {
	t.Parallel()

	t.Run("reports the current version of a configured event", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/api/event-configs/", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode([]map[string]any{
				{
					"id":       "cfg-1",
					"event_id": "ev-1",
					"version_history": map[string]any{
						"versions": []map[string]any{
							{"id": "v-1", "version": 1, "status": "archived"},
							{"id": "v-2", "version": 2, "status": "current"},
						},
					},
				},
			})
		})

		a := testApp(t, mux)
		out := runCommand(t, a, "", "config", "show", "ev-1")
		if !strings.Contains(out, "config cfg-1") || !strings.Contains(out, "version: v2") {
			t.Fatalf("unexpected output: %q", out)
		}
		if !strings.Contains(out, "versions: 2") {
			t.Fatalf("expected version count in output, got %q", out)
		}
	})

	t.Run("reports a config with no version history as unversioned", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/api/event-configs/", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": "cfg-1", "event_id": "ev-1"},
			})
		})

		a := testApp(t, mux)
		out := runCommand(t, a, "", "config", "show", "ev-1")
		if !strings.Contains(out, "version: unversioned") {
			t.Fatalf("unexpected output: %q", out)
		}
	})

	t.Run("reports an unconfigured event", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/api/event-configs/", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode([]map[string]any{})
		})

		a := testApp(t, mux)
		out := runCommand(t, a, "", "config", "show", "ev-1")
		if !strings.Contains(out, "event is not configured yet") {
			t.Fatalf("unexpected output: %q", out)
		}
	})
}

func TestRun_KioskDisabled(t *testing.T) {
	t.Parallel()

	a := testApp(t, http.NotFoundHandler())
	var out strings.Builder
	err := a.run(context.Background(), []string{"kiosk"}, strings.NewReader(""), &out)
	if err == nil || !strings.Contains(err.Error(), "kiosk is disabled") {
		t.Fatalf("expected kiosk disabled error, got %v", err)
	}
}
