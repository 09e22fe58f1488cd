package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sipanit/sipanit-client/internal/api"
	"github.com/sipanit/sipanit-client/internal/auth"
	"github.com/sipanit/sipanit-client/internal/config"
	"github.com/sipanit/sipanit-client/internal/guard"
	"github.com/sipanit/sipanit-client/internal/kiosk"
	"github.com/sipanit/sipanit-client/internal/logging"
	"github.com/sipanit/sipanit-client/internal/search"
	"github.com/sipanit/sipanit-client/internal/services/cache"
	"github.com/sipanit/sipanit-client/internal/services/configs"
	"github.com/sipanit/sipanit-client/internal/services/events"
	"github.com/sipanit/sipanit-client/internal/services/guests"
	"github.com/sipanit/sipanit-client/internal/services/users"
	"github.com/sipanit/sipanit-client/internal/session"
	"github.com/sipanit/sipanit-client/internal/session/state"
)

var errUsage = errors.New("unknown or incomplete command")

func main() {
	logger := logging.New(os.Stdout, slog.LevelInfo)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	st, closeState, err := openState(cfg)
	if err != nil {
		logger.Error("failed to open state store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := closeState(); cerr != nil {
			logger.Error("failed to close state store", "error", cerr)
		}
	}()

	app := buildApp(cfg, st, logger)
	if err := app.run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			usage(os.Stderr)
			os.Exit(2)
		}
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// openState opens the durable client state, sealed at rest when a seal
// secret is configured.
func openState(cfg config.Config) (state.Store, func() error, error) {
	sqliteStore, err := state.OpenSQLite(cfg.StateDSN)
	if err != nil {
		return nil, nil, err
	}
	var st state.Store = sqliteStore
	if cfg.StateSealSecret != "" {
		st = state.NewSealedStore(st, cfg.StateSealSecret, session.SensitiveKeys())
	}
	return st, sqliteStore.Close, nil
}

type app struct {
	cfg     config.Config
	logger  *slog.Logger
	session *session.Store
	gateway *auth.Gateway
	events  *events.Service
	guests  *guests.Service
	users   *users.Service
	configs *configs.Service
}

func buildApp(cfg config.Config, st state.Store, logger *slog.Logger) *app {
	sess := session.NewStore(st, logger)
	client := api.NewClient(cfg.APIBaseURL, nil, sess, logger)
	shared := cache.New(cfg.CacheTTL, cfg.CacheMaxEntries, time.Now)

	return &app{
		cfg:     cfg,
		logger:  logger,
		session: sess,
		gateway: auth.NewGateway(client, sess, cfg.Auth, logger),
		events:  events.NewService(client, shared, logger),
		guests:  guests.NewService(client, shared, logger),
		users:   users.NewService(client, shared, logger),
		configs: configs.NewService(client, shared, nil, nil, logger),
	}
}

func (a *app) run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "login":
		return a.login(ctx, args[1:], in, out)
	case "refresh":
		return a.refresh(ctx, out)
	case "whoami":
		return a.whoami(out)
	case "signout":
		a.session.SignOut()
		fmt.Fprintln(out, "signed out")
		return nil
	case "events":
		return a.eventsCommand(ctx, args[1:], out)
	case "guests":
		return a.guestsCommand(ctx, args[1:], out)
	case "config":
		return a.configCommand(ctx, args[1:], out)
	case "kiosk":
		return a.kiosk(ctx)
	default:
		return errUsage
	}
}

func (a *app) login(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	if len(args) != 1 {
		return errUsage
	}
	fmt.Fprint(out, "password: ")
	password, err := readLine(in)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	result, err := a.gateway.Login(ctx, args[0], password)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "signed in, dashboard: %s\n", guard.Resolve(a.session))
	if result.User != nil && result.User.Email != "" {
		fmt.Fprintf(out, "account: %s\n", result.User.Email)
	}
	return nil
}

func (a *app) refresh(ctx context.Context, out io.Writer) error {
	if _, err := a.gateway.Refresh(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "session refreshed")
	return nil
}

func (a *app) whoami(out io.Writer) error {
	if !a.session.Authenticated() {
		fmt.Fprintln(out, "not signed in")
		return nil
	}
	hints := a.session.Hints()
	fmt.Fprintf(out, "signed in as %s (role: %s)\n", valueOr(hints.Email, hints.ID), valueOr(hints.Role, "unknown"))
	fmt.Fprintf(out, "dashboard: %s\n", guard.Resolve(a.session))
	return nil
}

func (a *app) eventsCommand(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "list":
		flags := flag.NewFlagSet("events list", flag.ContinueOnError)
		status := flags.String("status", "", "filter by event status")
		query := flags.String("search", "", "server-side search term")
		if err := flags.Parse(args[1:]); err != nil {
			return err
		}
		list, err := a.events.List(ctx, events.ListParams{Status: *status, Search: *query})
		if err != nil {
			return err
		}
		for _, event := range list {
			fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", event.ID, event.Name, event.Venue, event.Status)
		}
		return nil
	case "search":
		if len(args) != 2 {
			return errUsage
		}
		list, err := a.events.List(ctx, events.ListParams{})
		if err != nil {
			return err
		}
		for _, result := range search.Filter(list, args[1], true, 5) {
			fmt.Fprintf(out, "%s\t%s\t%s\n", result.EventID, result.Name, result.Venue)
		}
		return nil
	default:
		return errUsage
	}
}

func (a *app) guestsCommand(ctx context.Context, args []string, out io.Writer) error {
	if len(args) != 2 || args[0] != "list" {
		return errUsage
	}
	list, err := a.guests.List(ctx, args[1])
	if err != nil {
		return err
	}
	for _, guest := range list {
		checked := " "
		if guest.CheckedIn {
			checked = "x"
		}
		fmt.Fprintf(out, "[%s] %s\t%s\t%s\n", checked, guest.Name, guest.Email, guest.Seat)
	}
	return nil
}

func (a *app) configCommand(ctx context.Context, args []string, out io.Writer) error {
	if len(args) != 2 || args[0] != "show" {
		return errUsage
	}
	cfg, err := a.configs.GetByEvent(ctx, args[1])
	if err != nil {
		if api.IsKind(err, api.KindNotFound) {
			fmt.Fprintln(out, "event is not configured yet")
			return nil
		}
		return err
	}
	fmt.Fprintf(out, "config %s\tversion: %s\tversions: %d\n", cfg.ID, currentVersionLabel(cfg), len(cfg.VersionHistory.Versions))
	return nil
}

// currentVersionLabel names the version marked current, or "unversioned" when
// no version history exists yet.
func currentVersionLabel(cfg configs.EventConfig) string {
	for _, v := range cfg.VersionHistory.Versions {
		if v.Status == configs.StatusCurrent {
			return fmt.Sprintf("v%d", v.Version)
		}
	}
	return "unversioned"
}

// kiosk serves the venue-door kiosk until the context is cancelled.
func (a *app) kiosk(ctx context.Context) error {
	if !a.cfg.KioskEnabled {
		return errors.New("kiosk is disabled, set SIPANIT_KIOSK_ENABLED=true")
	}

	srv := kiosk.NewServer(a.events, a.guests, a.logger)
	return srv.Run(ctx, fmt.Sprintf(":%d", a.cfg.KioskPort))
}

func readLine(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func valueOr(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: sipanit <command>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  login <username|email>   sign in and store tokens")
	fmt.Fprintln(w, "  refresh                  rotate the access token")
	fmt.Fprintln(w, "  whoami                   show the current session")
	fmt.Fprintln(w, "  signout                  clear all stored session state")
	fmt.Fprintln(w, "  events list              list events (-status, -search)")
	fmt.Fprintln(w, "  events search <query>    client-side quick search")
	fmt.Fprintln(w, "  guests list <event>      list guests of an event")
	fmt.Fprintln(w, "  config show <event>      show the event configuration")
	fmt.Fprintln(w, "  kiosk                    serve the guest check-in kiosk")
}
