// Package search implements the debounced search-and-navigate behavior of the
// top navigation bars: keystrokes are debounced, the event list is fetched
// once the query settles, and matching is done client-side over the snapshot.
package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sipanit/sipanit-client/internal/api"
	"github.com/sipanit/sipanit-client/internal/logging"
	"github.com/sipanit/sipanit-client/internal/services/events"
)

// EventSource supplies the snapshot the controller filters. The events
// service satisfies this.
type EventSource interface {
	List(ctx context.Context, params events.ListParams) ([]events.Event, error)
}

// Result is one row in the dropdown.
type Result struct {
	EventID string
	Name    string
	Venue   string
	Status  string
}

// Options tune a controller.
type Options struct {
	// Debounce is the settle delay after the last keystroke. Default 300ms.
	Debounce time.Duration
	// MinQuery is the minimum trimmed query length that triggers a fetch.
	// Default 2.
	MinQuery int
	// Limit caps the result list. Default 5.
	Limit int
	// MatchVenueStatus extends matching to venue and status, the behavior of
	// the planner topbar variant.
	MatchVenueStatus bool
	// Schedule runs fn after d and returns a cancel function. Defaults to
	// time.AfterFunc; tests inject a manual scheduler.
	Schedule func(d time.Duration, fn func()) (cancel func())
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = 300 * time.Millisecond
	}
	if o.MinQuery <= 0 {
		o.MinQuery = 2
	}
	if o.Limit <= 0 {
		o.Limit = 5
	}
	if o.Schedule == nil {
		o.Schedule = func(d time.Duration, fn func()) func() {
			timer := time.AfterFunc(d, fn)
			return func() { timer.Stop() }
		}
	}
	return o
}

// Controller owns one search widget's state. At most one debounce is pending
// at a time: every keystroke cancels the previous one.
type Controller struct {
	mu        sync.Mutex
	source    EventSource
	opts      Options
	logger    *slog.Logger
	onResults func([]Result)

	query   string
	open    bool
	results []Result
	cancel  func()
	seq     int
}

// NewController wires a search controller. onResults is invoked with the
// dropdown rows whenever they change; nil is allowed.
func NewController(source EventSource, opts Options, onResults func([]Result), logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		source:    source,
		opts:      opts.withDefaults(),
		logger:    logger,
		onResults: onResults,
	}
}

// SetQuery records a keystroke. Queries shorter than the minimum close the
// dropdown immediately; longer ones fetch after the debounce elapses.
func (c *Controller) SetQuery(ctx context.Context, query string) {
	trimmed := strings.TrimSpace(query)

	c.mu.Lock()
	c.query = query
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.seq++
	seq := c.seq

	if len([]rune(trimmed)) < c.opts.MinQuery {
		c.closeLocked()
		c.mu.Unlock()
		return
	}

	c.cancel = c.opts.Schedule(c.opts.Debounce, func() {
		c.fetch(ctx, trimmed, seq)
	})
	c.mu.Unlock()
}

func (c *Controller) fetch(ctx context.Context, query string, seq int) {
	logger := logging.ServiceLogger(ctx, c.logger, "SearchController", "fetch", "query", query)

	snapshot, err := c.source.List(ctx, events.ListParams{})
	if err != nil {
		logger.ErrorContext(ctx, "search fetch failed", "error", err, "error_kind", api.ErrorKind(err))
		return
	}
	matched := Filter(snapshot, query, c.opts.MatchVenueStatus, c.opts.Limit)

	c.mu.Lock()
	if seq != c.seq {
		// A newer keystroke superseded this fetch.
		c.mu.Unlock()
		return
	}
	c.results = matched
	c.open = true
	callback := c.onResults
	c.mu.Unlock()

	if callback != nil {
		callback(matched)
	}
}

// Results returns the current dropdown rows.
func (c *Controller) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Result, len(c.results))
	copy(out, c.results)
	return out
}

// Open reports whether the dropdown is showing.
func (c *Controller) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Select picks a result: the dropdown closes, the query clears, and the
// navigation target for the event's detail page is returned.
func (c *Controller) Select(result Result) string {
	c.mu.Lock()
	c.query = ""
	c.closeLocked()
	c.mu.Unlock()
	return "/events/" + result.EventID
}

// Close dismisses the dropdown, as on an outside click. Pending debounces are
// cancelled.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.seq++
	c.closeLocked()
	c.mu.Unlock()
}

func (c *Controller) closeLocked() {
	c.open = false
	c.results = nil
}

// Filter matches events by case-insensitive substring on name, optionally
// also venue and status, capped at limit. No ranking beyond first N in list
// order.
func Filter(snapshot []events.Event, query string, matchVenueStatus bool, limit int) []Result {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}

	results := make([]Result, 0, limit)
	for _, event := range snapshot {
		if len(results) >= limit {
			break
		}
		haystacks := []string{event.Name}
		if matchVenueStatus {
			haystacks = append(haystacks, event.Venue, event.Status)
		}
		for _, haystack := range haystacks {
			if strings.Contains(strings.ToLower(haystack), needle) {
				results = append(results, Result{
					EventID: event.ID,
					Name:    event.Name,
					Venue:   event.Venue,
					Status:  event.Status,
				})
				break
			}
		}
	}
	return results
}
