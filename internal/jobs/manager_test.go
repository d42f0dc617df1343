package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"previewd/internal/config"
	"previewd/internal/logging"
	"previewd/internal/services"
	"previewd/internal/services/plex"
)

type fakeCatalog struct {
	libraries []plex.Library
	items     map[string][]plex.MediaItem
	err       error
}

func (f *fakeCatalog) Libraries(context.Context) ([]plex.Library, error) {
	return f.libraries, f.err
}

func (f *fakeCatalog) Items(_ context.Context, libraryID string) ([]plex.MediaItem, error) {
	return f.items[libraryID], f.err
}

type memPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *memPublisher) Publish(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *memPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

func testCatalog(count int) *fakeCatalog {
	items := make([]plex.MediaItem, count)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range items {
		items[i] = plex.MediaItem{
			RatingKey:  fmt.Sprintf("rk-%d", i),
			Title:      fmt.Sprintf("Movie %d", i),
			File:       fmt.Sprintf("/media/movie-%d.mkv", i),
			Size:       1 << 20,
			BundleHash: fmt.Sprintf("%040d", i),
			AddedAt:    base.Add(time.Duration(i) * time.Hour),
		}
	}
	return &fakeCatalog{
		libraries: []plex.Library{{ID: "1", Name: "Movies", Type: "movie"}},
		items:     map[string][]plex.MediaItem{"1": items},
	}
}

func newTestManager(t *testing.T, catalog plex.Catalog, publisher Publisher) *Manager {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.PlexConfigDir = t.TempDir()
	m := NewManager(&cfg, catalog, publisher, logging.NewNop())
	t.Cleanup(m.Close)
	return m
}

// drain pulls assignments from the feed and reports every item as completed
// until the feed stalls.
func drain(t *testing.T, m *Manager, workerID string) {
	t.Helper()
	for {
		select {
		case assignment := <-m.Feed():
			if !m.ItemStarted(assignment.Job, assignment.Item, workerID) {
				continue
			}
			m.ReportOutcome(assignment.Job, assignment.Item, OutcomeCompleted, time.Millisecond, workerID, nil)
		case <-time.After(200 * time.Millisecond):
			return
		}
	}
}

func waitForStatus(t *testing.T, m *Manager, id string, want Status) *Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := m.Get(id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if snap.Status == want {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	snap, _ := m.Get(id)
	t.Fatalf("job never reached %s, stuck at %s", want, snap.Status)
	return nil
}

func TestCreateJobUnknownLibrary(t *testing.T) {
	m := newTestManager(t, testCatalog(3), nil)
	_, err := m.CreateJob(context.Background(), Selection{LibraryIDs: []string{"99"}}, SortNewest, false)
	if !services.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateJobEmptySelection(t *testing.T) {
	m := newTestManager(t, testCatalog(3), nil)
	_, err := m.CreateJob(context.Background(), Selection{}, SortNewest, false)
	if !services.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateJobEmptyLibrary(t *testing.T) {
	catalog := &fakeCatalog{
		libraries: []plex.Library{{ID: "1", Name: "Movies", Type: "movie"}},
		items:     map[string][]plex.MediaItem{},
	}
	m := newTestManager(t, catalog, nil)
	_, err := m.CreateJob(context.Background(), Selection{AllLibraries: true}, SortNewest, false)
	if !services.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateJobStaysPendingWithoutWorkers(t *testing.T) {
	m := newTestManager(t, testCatalog(2), nil)
	snap, err := m.CreateJob(context.Background(), Selection{AllLibraries: true}, SortNewest, false)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if snap.Status != StatusPending {
		t.Fatalf("status = %s, want pending", snap.Status)
	}
}

func TestJobRunsToCompletion(t *testing.T) {
	publisher := &memPublisher{}
	m := newTestManager(t, testCatalog(4), publisher)
	m.RegisterWorker("standard-1", "standard")

	done := make(chan struct{})
	go func() {
		defer close(done)
		drain(t, m, "standard-1")
	}()

	snap, err := m.CreateJob(context.Background(), Selection{AllLibraries: true}, SortNewest, false)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	final := waitForStatus(t, m, snap.ID, StatusCompleted)
	<-done
	if final.CompletedItems != 4 || final.FailedItems != 0 || final.SkippedItems != 0 {
		t.Fatalf("counters = %d/%d/%d", final.CompletedItems, final.FailedItems, final.SkippedItems)
	}
	if final.ProgressPercent != 100 {
		t.Fatalf("progress = %v", final.ProgressPercent)
	}

	var sawCreated, sawComplete bool
	for _, typ := range publisher.types() {
		switch typ {
		case EventJobCreated:
			sawCreated = true
		case EventJobComplete:
			sawComplete = true
		}
	}
	if !sawCreated || !sawComplete {
		t.Fatalf("event stream missing lifecycle events: %v", publisher.types())
	}
}

func TestJobStartsWhenWorkerAttaches(t *testing.T) {
	m := newTestManager(t, testCatalog(2), nil)
	snap, err := m.CreateJob(context.Background(), Selection{AllLibraries: true}, SortNewest, false)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if snap.Status != StatusPending {
		t.Fatalf("status = %s, want pending", snap.Status)
	}

	m.RegisterWorker("standard-1", "standard")
	go drain(t, m, "standard-1")
	waitForStatus(t, m, snap.ID, StatusCompleted)
}

func TestAllItemsSkippedCompletesImmediately(t *testing.T) {
	catalog := testCatalog(2)
	m := newTestManager(t, catalog, nil)

	// Drop an existing artifact at every item's target path.
	for _, item := range catalog.items["1"] {
		target, err := plex.BundleIndexPath(m.cfg.Paths.PlexConfigDir, item.BundleHash)
		if err != nil {
			t.Fatalf("BundleIndexPath: %v", err)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(target, []byte("BIF"), 0o644); err != nil {
			t.Fatalf("write artifact: %v", err)
		}
	}

	snap, err := m.CreateJob(context.Background(), Selection{AllLibraries: true}, SortNewest, false)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", snap.Status)
	}
	if snap.SkippedItems != 2 || snap.TotalItems != 2 {
		t.Fatalf("skipped = %d, total = %d", snap.SkippedItems, snap.TotalItems)
	}
}

func TestRegenerateQueuesExistingArtifacts(t *testing.T) {
	catalog := testCatalog(1)
	m := newTestManager(t, catalog, nil)

	target, err := plex.BundleIndexPath(m.cfg.Paths.PlexConfigDir, catalog.items["1"][0].BundleHash)
	if err != nil {
		t.Fatalf("BundleIndexPath: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(target, []byte("BIF"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	snap, err := m.CreateJob(context.Background(), Selection{AllLibraries: true}, SortNewest, true)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if snap.SkippedItems != 0 || snap.Status != StatusPending {
		t.Fatalf("snapshot = %+v, want zero skips and pending", snap)
	}
}

func TestCancelPendingJob(t *testing.T) {
	m := newTestManager(t, testCatalog(2), nil)
	snap, err := m.CreateJob(context.Background(), Selection{AllLibraries: true}, SortNewest, false)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := m.Cancel(snap.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	final := waitForStatus(t, m, snap.ID, StatusCancelled)
	if final.CompletedItems != 0 {
		t.Fatalf("completed = %d", final.CompletedItems)
	}
	if err := m.Cancel(snap.ID); !services.IsConflict(err) {
		t.Fatalf("expected conflict on second cancel, got %v", err)
	}
}

func TestCancelRunningJobCountsInFlightItem(t *testing.T) {
	m := newTestManager(t, testCatalog(3), nil)
	m.RegisterWorker("standard-1", "standard")

	snap, err := m.CreateJob(context.Background(), Selection{AllLibraries: true}, SortNewest, false)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	assignment := <-m.Feed()
	if !m.ItemStarted(assignment.Job, assignment.Item, "standard-1") {
		t.Fatal("first item refused")
	}
	if err := m.Cancel(snap.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	// The in-flight item finishes naturally and is still counted.
	m.ReportOutcome(assignment.Job, assignment.Item, OutcomeCompleted, time.Millisecond, "standard-1", nil)

	final := waitForStatus(t, m, snap.ID, StatusCancelled)
	if final.CompletedItems != 1 {
		t.Fatalf("completed = %d, want 1", final.CompletedItems)
	}
}

func TestItemStartedRefusedAfterCancel(t *testing.T) {
	m := newTestManager(t, testCatalog(2), nil)
	m.RegisterWorker("standard-1", "standard")

	snap, err := m.CreateJob(context.Background(), Selection{AllLibraries: true}, SortNewest, false)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	assignment := <-m.Feed()
	if err := m.Cancel(snap.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if m.ItemStarted(assignment.Job, assignment.Item, "standard-1") {
		t.Fatal("assignment accepted after cancellation")
	}
	waitForStatus(t, m, snap.ID, StatusCancelled)
}

func TestFailJobRecordsError(t *testing.T) {
	publisher := &memPublisher{}
	m := newTestManager(t, testCatalog(2), publisher)
	m.RegisterWorker("standard-1", "standard")

	snap, err := m.CreateJob(context.Background(), Selection{AllLibraries: true}, SortNewest, false)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	assignment := <-m.Feed()
	if !m.ItemStarted(assignment.Job, assignment.Item, "standard-1") {
		t.Fatal("first item refused")
	}
	m.ReportOutcome(assignment.Job, assignment.Item, OutcomeFailed, time.Millisecond, "standard-1", errors.New("boom"))
	m.FailJob(assignment.Job, errors.New("media server unreachable"))

	final := waitForStatus(t, m, snap.ID, StatusFailed)
	if final.Error == "" {
		t.Fatal("expected error message on failed job")
	}

	var sawError bool
	for _, typ := range publisher.types() {
		if typ == EventJobError {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("missing job_error event: %v", publisher.types())
	}
}

func TestDeleteRequiresTerminalStatus(t *testing.T) {
	m := newTestManager(t, testCatalog(2), nil)
	snap, err := m.CreateJob(context.Background(), Selection{AllLibraries: true}, SortNewest, false)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := m.Delete(snap.ID); !services.IsConflict(err) {
		t.Fatalf("expected conflict deleting pending job, got %v", err)
	}
	if err := m.Cancel(snap.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	waitForStatus(t, m, snap.ID, StatusCancelled)
	if err := m.Delete(snap.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get(snap.ID); !services.IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestSortOrder(t *testing.T) {
	m := newTestManager(t, testCatalog(3), nil)
	snap, err := m.CreateJob(context.Background(), Selection{AllLibraries: true}, SortOldest, false)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	m.mu.Lock()
	job := m.byID[snap.ID]
	first, last := job.queue[0], job.queue[len(job.queue)-1]
	m.mu.Unlock()
	if !first.AddedAt.Before(last.AddedAt) {
		t.Fatalf("oldest-first ordering violated: %v then %v", first.AddedAt, last.AddedAt)
	}
}

func TestSortBreaksTiesBySize(t *testing.T) {
	added := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	items := []*Item{
		{Source: "/media/small.mkv", Size: 1 << 20, AddedAt: added},
		{Source: "/media/large.mkv", Size: 8 << 30, AddedAt: added},
		{Source: "/media/medium.mkv", Size: 2 << 30, AddedAt: added},
	}

	sortItems(items, SortNewest)

	if items[0].Source != "/media/large.mkv" || items[2].Source != "/media/small.mkv" {
		t.Fatalf("equal add times not ordered by size: %s, %s, %s",
			items[0].Source, items[1].Source, items[2].Source)
	}
}

func TestRetentionEvictsOldestTerminalJobs(t *testing.T) {
	catalog := testCatalog(1)
	cfg := config.Default()
	cfg.Paths.PlexConfigDir = t.TempDir()
	cfg.Jobs.RetentionLimit = 2
	m := NewManager(&cfg, catalog, nil, logging.NewNop())
	t.Cleanup(m.Close)

	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		snap, err := m.CreateJob(context.Background(), Selection{AllLibraries: true}, SortNewest, false)
		if err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
		if err := m.Cancel(snap.ID); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		waitForStatus(t, m, snap.ID, StatusCancelled)
		ids = append(ids, snap.ID)
	}

	if _, err := m.Get(ids[0]); !services.IsNotFound(err) {
		t.Fatalf("oldest job should be evicted, got %v", err)
	}
	if len(m.List()) != 2 {
		t.Fatalf("registry size = %d, want 2", len(m.List()))
	}
}

func TestListNewestFirst(t *testing.T) {
	m := newTestManager(t, testCatalog(1), nil)
	first, err := m.CreateJob(context.Background(), Selection{AllLibraries: true}, SortNewest, false)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	second, err := m.CreateJob(context.Background(), Selection{AllLibraries: true}, SortNewest, false)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	list := m.List()
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("unexpected list order: %+v", list)
	}
}
