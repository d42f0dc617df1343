package debounce

import (
	"log/slog"
	"sync"
	"time"

	"previewd/internal/config"
	"previewd/internal/logging"
)

// historyLimit bounds the retained notification history.
const historyLimit = 100

// EventTypeImport is the only event type that arms a debounce window; the
// rest are recorded and ignored.
const EventTypeImport = "Download"

// Notification statuses, matching the outcome of the receive path.
const (
	StatusQueued    = "queued"
	StatusDisabled  = "disabled"
	StatusIgnored   = "ignored"
	StatusTest      = "test"
	StatusTriggered = "triggered"
)

// Notification is one received import event, kept for operator inspection.
type Notification struct {
	Source     string    `json:"source"`
	Library    string    `json:"library"`
	Resolved   string    `json:"resolved"`
	EventType  string    `json:"event_type"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	ReceivedAt time.Time `json:"received_at"`
}

// TriggerFunc fires once a library's notification burst has settled. An
// empty library means the burst did not resolve to a single library and the
// whole catalog should be scanned.
type TriggerFunc func(source, library string)

// Debouncer coalesces bursts of import notifications into a single trigger
// per (source, library) pair. Every new notification for a pair restarts its
// full delay window, so a steady stream keeps pushing the trigger out rather
// than queueing one trigger per event.
type Debouncer struct {
	enabled bool
	delay   time.Duration
	resolve map[string]string
	trigger TriggerFunc
	logger  *slog.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	gens    map[string]uint64
	history []Notification
	stopped bool
}

// New builds a debouncer from the webhook configuration. The trigger runs on
// a timer goroutine and must not block for long.
func New(cfg *config.Config, trigger TriggerFunc, logger *slog.Logger) *Debouncer {
	return &Debouncer{
		enabled: cfg.Webhooks.Enabled,
		delay:   time.Duration(cfg.Webhooks.DelaySeconds) * time.Second,
		resolve: cfg.Webhooks.LibraryMappings,
		trigger: trigger,
		logger:  logging.NewComponentLogger(logger, "debounce"),
		timers:  make(map[string]*time.Timer),
		gens:    make(map[string]uint64),
	}
}

// Resolve maps a webhook library name through the configured mappings.
// Unmapped names resolve to the empty string, which the trigger treats as
// "all libraries"; every unmapped name for a source therefore shares one
// debounce window.
func (d *Debouncer) Resolve(library string) string {
	return d.resolve[library]
}

// Notify records an import notification and, for import events with webhook
// handling enabled, arms (or rearms) the debounce window for its library.
// The returned status reflects how the notification was handled: "queued",
// "disabled", "ignored" for non-import event types, or "test".
func (d *Debouncer) Notify(source, library, eventType, title string) string {
	resolved := d.Resolve(library)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ""
	}

	status := StatusQueued
	switch {
	case eventType == "Test":
		status = StatusTest
	case !d.enabled:
		status = StatusDisabled
	case eventType != EventTypeImport:
		status = StatusIgnored
	}

	d.appendHistoryLocked(Notification{
		Source:     source,
		Library:    library,
		Resolved:   resolved,
		EventType:  eventType,
		Title:      title,
		Status:     status,
		ReceivedAt: time.Now(),
	})

	if status != StatusQueued {
		d.logger.Debug("notification recorded without arming",
			logging.String(logging.FieldSource, source),
			logging.String(logging.FieldLibrary, library),
			logging.String("status", status))
		return status
	}

	d.armLocked(source, resolved)
	d.logger.Info("debounce window armed",
		logging.String(logging.FieldSource, source),
		logging.String(logging.FieldLibrary, resolved),
		logging.Duration("delay", d.delay))
	return status
}

// History returns recorded notifications, newest first.
func (d *Debouncer) History() []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Notification, len(d.history))
	for i, n := range d.history {
		out[len(d.history)-1-i] = n
	}
	return out
}

// Stop cancels every pending window. Windows already firing may still invoke
// the trigger.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for key, timer := range d.timers {
		timer.Stop()
		delete(d.timers, key)
	}
}

// armLocked cancels any pending timer for the key and schedules a fresh one.
// The generation counter lets a fire callback that already left its timer
// detect it was superseded: Stop cannot cancel a callback that is past its
// deadline and blocked on the mutex.
func (d *Debouncer) armLocked(source, resolved string) {
	key := source + "\x00" + resolved
	if timer, ok := d.timers[key]; ok {
		timer.Stop()
	}
	d.gens[key]++
	gen := d.gens[key]
	d.timers[key] = time.AfterFunc(d.delay, func() { d.fire(key, source, resolved, gen) })
}

func (d *Debouncer) fire(key, source, resolved string, gen uint64) {
	d.mu.Lock()
	if d.stopped || d.gens[key] != gen {
		d.mu.Unlock()
		return
	}
	delete(d.timers, key)
	d.appendHistoryLocked(Notification{
		Source:     source,
		Library:    resolved,
		Resolved:   resolved,
		EventType:  EventTypeImport,
		Status:     StatusTriggered,
		ReceivedAt: time.Now(),
	})
	d.mu.Unlock()

	d.logger.Info("debounce window elapsed, triggering",
		logging.String(logging.FieldLibrary, resolved))
	d.trigger(source, resolved)
}

func (d *Debouncer) appendHistoryLocked(n Notification) {
	d.history = append(d.history, n)
	if len(d.history) > historyLimit {
		d.history = d.history[len(d.history)-historyLimit:]
	}
}
