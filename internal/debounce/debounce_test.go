package debounce

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"previewd/internal/config"
	"previewd/internal/logging"
)

type triggerRecorder struct {
	mu        sync.Mutex
	libraries []string
}

func (r *triggerRecorder) trigger(_, library string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.libraries = append(r.libraries, library)
}

func (r *triggerRecorder) fired() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.libraries...)
}

func newTestDebouncer(t *testing.T, enabled bool, mappings map[string]string) (*Debouncer, *triggerRecorder) {
	t.Helper()
	cfg := config.Default()
	cfg.Webhooks.Enabled = enabled
	cfg.Webhooks.LibraryMappings = mappings

	recorder := &triggerRecorder{}
	d := New(&cfg, recorder.trigger, logging.NewNop())
	d.delay = 30 * time.Millisecond
	t.Cleanup(d.Stop)
	return d, recorder
}

func waitForTriggers(t *testing.T, r *triggerRecorder, want int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fired := r.fired(); len(fired) >= want {
			return fired
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("only %d of %d triggers fired", len(r.fired()), want)
	return nil
}

func TestBurstCollapsesToSingleTrigger(t *testing.T) {
	d, recorder := newTestDebouncer(t, true, map[string]string{"Movies": "1"})

	for i := 0; i < 5; i++ {
		if status := d.Notify("plex", "Movies", EventTypeImport, "Movie A"); status != StatusQueued {
			t.Fatalf("Notify status = %q, want queued", status)
		}
	}

	fired := waitForTriggers(t, recorder, 1)
	time.Sleep(60 * time.Millisecond)
	if got := recorder.fired(); len(got) != 1 {
		t.Fatalf("triggers = %d, want exactly 1", len(got))
	}
	if fired[0] != "1" {
		t.Fatalf("triggered library = %q", fired[0])
	}
}

func TestNotificationExtendsWindow(t *testing.T) {
	d, recorder := newTestDebouncer(t, true, nil)
	d.delay = 80 * time.Millisecond

	d.Notify("plex", "Movies", EventTypeImport, "")
	time.Sleep(50 * time.Millisecond)
	d.Notify("plex", "Movies", EventTypeImport, "")
	time.Sleep(50 * time.Millisecond)

	// 100ms after the first notification, but only 50ms after the second:
	// the rearmed window must still be open.
	if fired := recorder.fired(); len(fired) != 0 {
		t.Fatalf("trigger fired inside extended window: %v", fired)
	}
	waitForTriggers(t, recorder, 1)
}

func TestRearmDuringPendingFireSuppressesStaleTrigger(t *testing.T) {
	d, recorder := newTestDebouncer(t, true, map[string]string{"Movies": "1"})
	d.delay = 20 * time.Millisecond

	d.Notify("plex", "Movies", EventTypeImport, "Movie A")

	// Hold the mutex past the first deadline so its callback is stuck waiting
	// for the lock, then rearm the window the way Notify would. The stale
	// callback must notice it was superseded and not fire.
	d.mu.Lock()
	time.Sleep(40 * time.Millisecond)
	d.armLocked("plex", "1")
	d.mu.Unlock()

	waitForTriggers(t, recorder, 1)
	time.Sleep(60 * time.Millisecond)
	if got := recorder.fired(); len(got) != 1 {
		t.Fatalf("one burst produced %d triggers, want 1", len(got))
	}
}

func TestDistinctLibrariesTriggerIndependently(t *testing.T) {
	d, recorder := newTestDebouncer(t, true, map[string]string{"Movies": "1", "Shows": "2"})

	d.Notify("plex", "Movies", EventTypeImport, "")
	d.Notify("plex", "Shows", EventTypeImport, "")

	fired := waitForTriggers(t, recorder, 2)
	seen := map[string]bool{}
	for _, lib := range fired {
		seen[lib] = true
	}
	if !seen["1"] || !seen["2"] {
		t.Fatalf("triggered libraries = %v", fired)
	}
}

func TestUnmappedLibrariesShareCatalogWindow(t *testing.T) {
	d, recorder := newTestDebouncer(t, true, nil)

	d.Notify("plex", "Movies", EventTypeImport, "")
	d.Notify("plex", "Shows", EventTypeImport, "")

	fired := waitForTriggers(t, recorder, 1)
	time.Sleep(60 * time.Millisecond)
	if got := recorder.fired(); len(got) != 1 {
		t.Fatalf("triggers = %d, want one catalog-wide trigger", len(got))
	}
	if fired[0] != "" {
		t.Fatalf("trigger target = %q, want empty for catalog-wide", fired[0])
	}
}

func TestDisabledRecordsHistoryOnly(t *testing.T) {
	d, recorder := newTestDebouncer(t, false, nil)

	if status := d.Notify("plex", "Movies", EventTypeImport, ""); status != StatusDisabled {
		t.Fatalf("Notify status = %q, want disabled", status)
	}
	time.Sleep(60 * time.Millisecond)

	if fired := recorder.fired(); len(fired) != 0 {
		t.Fatalf("disabled debouncer triggered: %v", fired)
	}
	history := d.History()
	if len(history) != 1 || history[0].Status != StatusDisabled {
		t.Fatalf("history = %+v", history)
	}
}

func TestNonImportEventsAreIgnored(t *testing.T) {
	d, recorder := newTestDebouncer(t, true, nil)

	if status := d.Notify("radarr", "Movies", "Rename", ""); status != StatusIgnored {
		t.Fatalf("Notify status = %q, want ignored", status)
	}
	if status := d.Notify("radarr", "", "Test", ""); status != StatusTest {
		t.Fatalf("Notify status = %q, want test", status)
	}
	time.Sleep(60 * time.Millisecond)

	if fired := recorder.fired(); len(fired) != 0 {
		t.Fatalf("non-import events triggered: %v", fired)
	}
	history := d.History()
	if len(history) != 2 || history[0].Status != StatusTest || history[1].Status != StatusIgnored {
		t.Fatalf("history = %+v", history)
	}
}

func TestLibraryMappingResolvesTriggerTarget(t *testing.T) {
	d, recorder := newTestDebouncer(t, true, map[string]string{"4K Movies": "1"})

	d.Notify("plex", "4K Movies", EventTypeImport, "Movie A")

	fired := waitForTriggers(t, recorder, 1)
	if fired[0] != "1" {
		t.Fatalf("trigger target = %q, want mapped library id", fired[0])
	}
	history := d.History()
	// Newest first: the fire appended a triggered entry after the queued one.
	if history[0].Status != StatusTriggered || history[0].Resolved != "1" {
		t.Fatalf("triggered entry = %+v", history[0])
	}
	if history[1].Library != "4K Movies" || history[1].Resolved != "1" ||
		history[1].Status != StatusQueued || history[1].Title != "Movie A" {
		t.Fatalf("queued entry = %+v", history[1])
	}
}

func TestHistoryBoundedNewestFirst(t *testing.T) {
	d, _ := newTestDebouncer(t, false, nil)

	for i := 0; i < historyLimit+5; i++ {
		d.Notify("plex", fmt.Sprintf("Library %d", i), EventTypeImport, "")
	}

	history := d.History()
	if len(history) != historyLimit {
		t.Fatalf("history length = %d, want %d", len(history), historyLimit)
	}
	if history[0].Library != fmt.Sprintf("Library %d", historyLimit+4) {
		t.Fatalf("newest entry = %q", history[0].Library)
	}
}

func TestStopCancelsPendingWindows(t *testing.T) {
	d, recorder := newTestDebouncer(t, true, nil)

	d.Notify("plex", "Movies", EventTypeImport, "")
	d.Stop()
	time.Sleep(60 * time.Millisecond)

	if fired := recorder.fired(); len(fired) != 0 {
		t.Fatalf("trigger fired after Stop: %v", fired)
	}
	if d.History() != nil && len(d.History()) != 1 {
		t.Fatalf("history length = %d", len(d.History()))
	}
}
